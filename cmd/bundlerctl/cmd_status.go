package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/ui"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status job-id",
		Short: "Show the state of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runStatus(c, args[0])
		},
	}
}

func runStatus(c *cobra.Command, jobID string) error {
	msg, raw, err := newClient(globalOpts).state(c.Context(), jobID)
	if err != nil {
		return err
	}

	if globalOpts.JSON {
		fmt.Println(string(raw))
		return nil
	}

	printState(msg)
	return nil
}

func printState(msg *bundler.TrackerMessage) {
	fmt.Printf("job:      %v\n", msg.JobID)
	if msg.UserName != "" {
		fmt.Printf("user:     %v\n", msg.UserName)
	}
	fmt.Printf("state:    %v\n", msg.State)
	if msg.State == bundler.StateNotAvailable || msg.State == bundler.StateInvalidRequest {
		return
	}

	fmt.Printf("archives: %d / %d\n", msg.ThreadsComplete, msg.Threads)
	fmt.Printf("files:    %d / %d\n", msg.FilesComplete, msg.NumFiles)
	fmt.Printf("size:     %v / %v  %v\n",
		ui.FormatBytes(uint64(msg.SizeComplete)), ui.FormatBytes(uint64(msg.Size)),
		ui.FormatPercent(uint64(msg.SizeComplete), uint64(msg.Size)))
	fmt.Printf("elapsed:  %v\n", ui.FormatDuration(time.Duration(msg.ElapsedTime)*time.Millisecond))

	for _, arch := range msg.Archives {
		target := arch.ArchiveURL
		if target == "" {
			target = arch.Archive
		}
		fmt.Printf("  archive %d: %-8v %v\n", arch.ArchiveID, arch.State, target)
	}
}
