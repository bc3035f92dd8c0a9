package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
)

func newWatchCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch job-id",
		Short: "Follow a job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return watchJob(c.Context(), newClient(globalOpts), args[0], interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "polling interval")
	return cmd
}

// watchJob polls the job state and renders file and byte progress until
// the job reaches a terminal state. The bars go to stderr so that the
// final report can be piped.
func watchJob(ctx context.Context, client *client, jobID string, interval time.Duration) error {
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))

	filesBar := p.New(0, mpb.BarStyle(),
		mpb.PrependDecorators(decor.Name("files ", decor.WC{W: 6}), decor.CountersNoUnit("%d / %d")),
		mpb.AppendDecorators(decor.Percentage()))
	bytesBar := p.New(0, mpb.BarStyle(),
		mpb.PrependDecorators(decor.Name("bytes ", decor.WC{W: 6}), decor.CountersKibiByte("% .2f / % .2f")),
		mpb.AppendDecorators(decor.Percentage()))

	abort := func() {
		filesBar.Abort(true)
		bytesBar.Abort(true)
		p.Wait()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var msg *bundler.TrackerMessage
	notKnown := 0
	for {
		var err error
		msg, _, err = client.state(ctx, jobID)
		if err != nil {
			abort()
			return err
		}

		// A fresh submission may not be persisted yet; give it a few
		// polls before declaring the id unknown.
		if msg.State == bundler.StateNotAvailable {
			if notKnown++; notKnown > 20 {
				abort()
				return errors.Fatalf("job %v is not known to the server", jobID)
			}
		} else {
			notKnown = 0
		}

		filesBar.SetTotal(msg.NumFiles, false)
		filesBar.SetCurrent(msg.FilesComplete)
		bytesBar.SetTotal(msg.Size, false)
		bytesBar.SetCurrent(msg.SizeComplete)

		if msg.State.Terminal() || msg.State == bundler.StateInvalidRequest {
			filesBar.SetTotal(msg.NumFiles, true)
			bytesBar.SetTotal(msg.Size, true)
			break
		}

		select {
		case <-ctx.Done():
			abort()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	p.Wait()

	printState(msg)
	if msg.State != bundler.StateComplete {
		return errors.Fatalf("job %v finished in state %v", jobID, msg.State)
	}
	return nil
}
