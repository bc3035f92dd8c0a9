package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is alive",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			answer, err := newClient(globalOpts).ping(c.Context())
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
}
