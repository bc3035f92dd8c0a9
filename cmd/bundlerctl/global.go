package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/geopack/bundler/internal/debug"
)

type globalOptions struct {
	Server  string
	Timeout time.Duration
	JSON    bool
}

var globalOpts globalOptions

func (o *globalOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&o.Server, "server", "s", "http://localhost:8080", "base `url` of the bundlerd instance")
	f.DurationVar(&o.Timeout, "timeout", 30*time.Second, "per-request timeout (0 disables it)")
	f.BoolVar(&o.JSON, "json", false, "print raw JSON responses")
}

// createGlobalContext returns a context that is cancelled on the first
// SIGINT or SIGTERM. A second signal kills the process the usual way.
func createGlobalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	go func() {
		s := <-ch
		debug.Log("signal %v received", s)
		cancel()
		signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	}()
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ctx
}
