package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetchr"
)

func (a *app) newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the backends in the order downloads try them",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRIORITY\tBACKEND\tAVAILABLE")
			for i, b := range fetchr.Backends() {
				fmt.Fprintf(tw, "%d\t%s\t%t\n", i+1, b, b.Available())
			}
			return tw.Flush()
		},
	}
}
