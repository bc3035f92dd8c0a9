// Command bundlerd is the bundling daemon. It accepts bundle jobs over
// HTTP, packs the requested files into archives on the staging
// filesystem and tracks every job until its archives and hash files
// have been written.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geopack/bundler/internal/config"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
)

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bundlerd",
		Short: "Serve the file bundling API",
		Long: `
bundlerd accepts bundle jobs over HTTP, packs the requested files into
bounded archives on the staging filesystem and reports per-job progress
until every archive and its hash file have been written.
`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,

		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg)
			return runServe(c.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "read settings from the properties `file`")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.ServerDebug {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	debug.Log("main %#v", os.Args)

	err := newRootCommand().ExecuteContext(createGlobalContext())
	switch {
	case err == nil:
	case errors.IsFatal(err):
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		log.WithError(err).Error("bundlerd failed")
		os.Exit(1)
	}
}
