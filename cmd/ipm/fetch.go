package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download a VRP export into the local cache",
		Long: `'fetch' downloads the VRP export of a relying party (routinator /csv or
/json, rpki-client, the RIPE validator api/export.json) given with --vrps-url
into the zstd compressed cache file. A cache younger than --max-age is kept.
It prints the cache file name and the export kind.`,
		Example: `  ipm fetch --vrps-url http://localhost:8323/json --cache /var/cache/ipm/vrps`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if a.cfg.GetString(cfgVRPsURL) == "" {
				return errors.New("--vrps-url is required")
			}
			res, err := a.fetch(cmd.Context())
			if err != nil {
				return err
			}
			state := "fetched"
			if res.Cached {
				state = "cached"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", res.File, res.Kind, state)
			return err
		},
	}
}
