package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
)

func newSubmitCommand() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit [flags] [path ...]",
		Short: "Submit a bundle job",
		Long: `
submit sends a bundle job to the server. The source files are named on
the command line or, with --request, read as a prepared JSON body.

The server answers immediately; use --watch or the watch command to
follow the job until its archives are written.
`,
		RunE: func(c *cobra.Command, args []string) error {
			return runSubmit(c, opts, args)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

type submitOptions struct {
	RequestFile string
	Type        string
	MaxSize     int64
	Output      string
	User        string
	Watch       bool
}

func (o *submitOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&o.RequestFile, "request", "f", "", "read the request body from `file` (\"-\" for stdin)")
	f.StringVarP(&o.Type, "type", "t", "", "archive type (ZIP, TAR, TAR.GZ, CPIO, AR)")
	f.Int64Var(&o.MaxSize, "max-size", 0, "target archive size in `megabytes`")
	f.StringVarP(&o.Output, "output", "o", "", "base `name` for the archive files")
	f.StringVarP(&o.User, "user", "u", "", "submitting user")
	f.BoolVarP(&o.Watch, "watch", "w", false, "follow the job until it finishes")
}

func runSubmit(c *cobra.Command, opts submitOptions, args []string) error {
	body, err := submitBody(opts, args)
	if err != nil {
		return err
	}

	client := newClient(globalOpts)
	msg, raw, err := client.submit(c.Context(), body)
	if err != nil {
		return err
	}

	if globalOpts.JSON {
		fmt.Println(string(raw))
	} else {
		fmt.Printf("job %v submitted for user %v\n", msg.JobID, msg.UserName)
	}

	if opts.Watch {
		return watchJob(c.Context(), client, msg.JobID, 500*time.Millisecond)
	}
	return nil
}

func submitBody(opts submitOptions, args []string) ([]byte, error) {
	if opts.RequestFile != "" {
		if len(args) > 0 {
			return nil, errors.Fatal("--request and file arguments are mutually exclusive")
		}
		if opts.RequestFile == "-" {
			return io.ReadAll(os.Stdin)
		}
		return os.ReadFile(opts.RequestFile)
	}

	if len(args) == 0 {
		return nil, errors.Fatal("nothing to bundle: name at least one file")
	}

	req := bundler.BundleRequest{
		Type:           opts.Type,
		MaxSize:        opts.MaxSize,
		OutputFilename: opts.Output,
		UserName:       opts.User,
	}
	for _, p := range args {
		req.Files = append(req.Files, bundler.FileRequest{Path: p})
	}
	return json.Marshal(&req)
}
