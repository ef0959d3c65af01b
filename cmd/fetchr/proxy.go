package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetchr/proxy"
)

func (a *app) newProxyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxy <url>",
		Short: "Show the proxy a download of url would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing url %q: %w", args[0], err)
			}

			var r proxy.Resolver
			key, value, ok := r.Setting(u)
			if !ok {
				fmt.Fprintln(a.stdout, "direct")
				return nil
			}

			t, ok := proxy.Parse(value)
			if !ok {
				fmt.Fprintf(a.stdout, "direct (%s=%q is not usable)\n", key, value)
				return nil
			}

			fmt.Fprintf(a.stdout, "%s (from %s)\n", t.Addr(), key)
			return nil
		},
	}
}
