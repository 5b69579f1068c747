package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paepcke.de/ipmatch"
)

// grep config keys
const (
	cfgNetwork = "network"
	cfgFile    = "file"
	cfgColumn  = "column"
	cfgRegexp  = "regexp"
)

func newGrepCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grep [flags] [file]...",
		Short: "Print lines whose address lies inside the given networks",
		Long: `'grep' keeps the input lines whose first token, CSV column --column or
first --regexp capture group is an address or prefix inside one of the
networks given with --network or listed in --file. Lines the regexp does not
match are dropped. Input comes from the named files (.gz, .zst, .xz are
decompressed) or stdin.`,
		Example: `  ipm grep -n 10.0.0.0/8 -n fd00::/8 access.log
  ipm grep -f bogons.txt --column 2 flows.csv.zst
  ipm grep -n 192.0.2.0/24 -r 'from ([0-9.]+) port' /var/log/auth.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.runGrep(cmd, args)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceP(cfgNetwork, "n", nil, "network (address or prefix) to match, repeatable")
	flags.StringP(cfgFile, "f", "", "file with one network per line")
	flags.Int(cfgColumn, -1, "0-based CSV column holding the address, -1 is the first token")
	flags.StringP(cfgRegexp, "r", "", "take the address from the first capture group of this regexp")
	return cmd
}

func (a *app) runGrep(cmd *cobra.Command, args []string) error {
	g := ipmatch.NewGrep(a.logger)
	for _, n := range a.cfg.GetStringSlice(cfgNetwork) {
		if err := g.AddPattern(n); err != nil {
			return err
		}
	}
	if file := a.cfg.GetString(cfgFile); file != "" {
		rc, err := ipmatch.Open(file)
		if err != nil {
			return err
		}
		_, err = g.ReadPatterns(rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	if g.Len() == 0 {
		return errors.New("no networks given, use --network or --file")
	}
	if expr := a.cfg.GetString(cfgRegexp); expr != "" {
		if err := g.SetKeyRegexp(expr); err != nil {
			return err
		}
	}

	column := a.cfg.GetInt(cfgColumn)
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		_, err := g.Filter(cmd.InOrStdin(), out, column)
		return err
	}
	for _, name := range args {
		if err := grepFile(g, name, out, column, a.logger); err != nil {
			return err
		}
	}
	return nil
}

func grepFile(g *ipmatch.Grep, name string, out io.Writer, column int, logger *zap.Logger) error {
	rc, err := ipmatch.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	n, err := g.Filter(rc, out, column)
	logger.Debug("grep", zap.String("file", name), zap.Int("matched", n))
	return err
}
