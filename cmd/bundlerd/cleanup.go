package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/debug"
)

// createGlobalContext returns a context that is cancelled on the first
// SIGINT or SIGTERM. A second signal kills the process the usual way.
func createGlobalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	go cleanupHandler(ch, cancel)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ctx
}

func cleanupHandler(c <-chan os.Signal, cancel context.CancelFunc) {
	s := <-c
	debug.Log("signal %v received", s)
	log.WithField("signal", s).Info("shutdown requested")
	cancel()
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
}
