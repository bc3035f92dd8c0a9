// Command bundlerctl is the command line client for bundlerd. It
// submits bundle jobs, polls their state and follows running jobs with
// a progress bar.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geopack/bundler/internal/debug"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundlerctl",
		Short: "Submit and track bundle jobs",
		Long: `
bundlerctl talks to a running bundlerd instance: it submits bundle jobs,
reports their state and waits for them to finish.
`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	globalOpts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newSubmitCommand(),
		newStatusCommand(),
		newWatchCommand(),
		newJobsCommand(),
		newPingCommand(),
	)

	return cmd
}

func main() {
	debug.Log("main %#v", os.Args)

	if err := newRootCommand().ExecuteContext(createGlobalContext()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
