// package main ...
package main

// import ...
import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paepcke.de/ipmatch"
	"paepcke.de/ipmatch/ipaddr"
	"paepcke.de/ipmatch/vrpfetch"
)

// const shortcuts
const (
	// DEFAULTS
	_APPNAME          = "ipm"
	_ENV_PREFIX       = "IPM"
	_DEFAULT_LOGLEVEL = "warn"
	_DEFAULT_CACHE    = "ipm-vrps"

	// CONFIG KEYS [flag names, env IPM_<KEY>]
	cfgVRPs         = "vrps"
	cfgVRPsJSON     = "vrps-json"
	cfgRouteTable   = "routetable"
	cfgCSV          = "csv"
	cfgIPv4         = "ipv4"
	cfgIPv6         = "ipv6"
	cfgStrict       = "strict"
	cfgExpandRanges = "expand-ranges"
	cfgWorkers      = "workers"
	cfgLogLevel     = "log-level"
	cfgConfig       = "config"
	cfgVRPsURL      = "vrps-url"
	cfgCache        = "cache"
	cfgMaxAge       = "max-age"
	cfgTrustCA      = "trust-ca"
	cfgKeyPin       = "tls-keypin"
	cfgTSV          = "tsv"
	cfgDump         = "dump"
)

var errQueries = errors.New("invalid queries")

// main ..
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app is the per invocation state shared by all commands.
type app struct {
	cfg    *viper.Viper
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: viper.New(), logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:   _APPNAME + " [flags] [address[ label]]...",
		Short: "Longest prefix match of addresses against VRP, route and CSV tables",
		Long: `'ipm' loads one table (RPKI VRP export, Linux route table dump or any CSV
with a prefix column) and prints one line address,label,result per query.

Queries are taken from the arguments or, when there are none, from stdin. Each
query line is split at the first space, else at the first comma, into address
and label.

Every flag can also be set as environment variable IPM_<FLAG> (dashes become
underscores) or in the file given with --config.`,
		Example: `  ipm -v vrps.csv 217.31.48.0/20,testlabel1
  ip -6 route | ipm -6 -r - fd00:a0b7::10:11:112:214
  ipm -c routes.csv.zst < addresses.txt
  ipm -t ip2asn-v4.tsv.gz 1.1.1.1
  ipm --vrps-url http://localhost:8323/csv 1.1.1.1
  ipm -r /tmp/routes.txt --dump`,
		Args: cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.runMatch(cmd, args)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	tableFlags(cmd.Flags())
	globalFlags(cmd.PersistentFlags())

	cmd.AddCommand(newFetchCmd(a), newGrepCmd(a))
	return cmd
}

// tableFlags select the table and how it is parsed.
func tableFlags(flags *pflag.FlagSet) {
	flags.StringP(cfgVRPs, "v", "", "VRP CSV export")
	flags.StringP(cfgVRPsJSON, "j", "", "VRP JSON export")
	flags.StringP(cfgRouteTable, "r", "", "ip route / ip -6 route dump")
	flags.StringP(cfgCSV, "c", "", "CSV table, the first prefix column is the key")
	flags.StringP(cfgTSV, "t", "", "tab separated range table (ip2asn)")
	flags.BoolP(cfgIPv4, "4", false, "route table is IPv4 (default)")
	flags.BoolP(cfgIPv6, "6", false, "route table is IPv6")
	flags.Bool(cfgStrict, false, "fail on the first malformed table line")
	flags.Bool(cfgExpandRanges, false, "CSV: expand first,last address columns into prefixes")
	flags.Int(cfgWorkers, runtime.NumCPU(), "parallel query workers")
	flags.Bool(cfgDump, false, "print every loaded entry as prefix,result and exit")
}

// globalFlags are shared with all subcommands.
func globalFlags(flags *pflag.FlagSet) {
	flags.String(cfgLogLevel, _DEFAULT_LOGLEVEL, "log level (debug, info, warn, error)")
	flags.String(cfgConfig, "", "config file (yaml, toml, json)")
	flags.String(cfgVRPsURL, "", "fetch the VRP export from a relying party URL")
	flags.String(cfgCache, filepath.Join(os.TempDir(), _DEFAULT_CACHE), "VRP download cache file")
	flags.Duration(cfgMaxAge, 0, "reuse a cached VRP download younger than this, 0 is 15m, negative always fetches")
	flags.String(cfgTrustCA, "", "PEM file with CA certificates to trust for --vrps-url")
	flags.StringSlice(cfgKeyPin, nil, "base64 sha256 public key pin(s) of the --vrps-url server")
}

// setup binds flags, env and config file, then builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.cfg.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.cfg.SetEnvPrefix(_ENV_PREFIX)
	a.cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.cfg.AutomaticEnv()
	if file := a.cfg.GetString(cfgConfig); file != "" {
		a.cfg.SetConfigFile(file)
		if err := a.cfg.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "[config] unable to read [%s]", file)
		}
	}
	logger, err := newLogger(a.cfg.GetString(cfgLogLevel))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// newLogger writes human readable logs to stderr, stdout carries results.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "[log-level] [%s]", level)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl)
	return zap.New(core).Named(_APPNAME), nil
}

// source resolves the table flags to exactly one file and its format.
func (a *app) source(ctx context.Context) (string, ipmatch.Format, error) {
	var (
		name string
		f    ipmatch.Format
		n    int
	)
	for _, s := range []struct {
		key string
		f   ipmatch.Format
	}{
		{cfgVRPs, ipmatch.FormatVRP},
		{cfgVRPsJSON, ipmatch.FormatVRPJSON},
		{cfgRouteTable, ipmatch.FormatRoute},
		{cfgCSV, ipmatch.FormatCSV},
		{cfgTSV, ipmatch.FormatTSV},
		{cfgVRPsURL, ipmatch.FormatUnknown},
	} {
		if v := a.cfg.GetString(s.key); v != "" {
			name, f = v, s.f
			n++
		}
	}
	switch {
	case n == 0:
		return "", 0, errors.New("no table given, use one of --vrps, --vrps-json, --routetable, --csv, --tsv or --vrps-url")
	case n > 1:
		return "", 0, errors.New("more than one table given")
	case f != ipmatch.FormatUnknown:
		return name, f, nil
	}
	res, err := a.fetch(ctx)
	if err != nil {
		return "", 0, err
	}
	if res.Kind == vrpfetch.KindJSON {
		return res.File, ipmatch.FormatVRPJSON, nil
	}
	return res.File, ipmatch.FormatVRP, nil
}

func (a *app) fetch(ctx context.Context) (vrpfetch.Result, error) {
	return vrpfetch.Fetch(ctx, vrpfetch.Source{
		URL:       a.cfg.GetString(cfgVRPsURL),
		File:      a.cfg.GetString(cfgCache),
		MaxAge:    a.cfg.GetDuration(cfgMaxAge),
		TrustCA:   a.cfg.GetString(cfgTrustCA),
		TLSKeyPin: a.cfg.GetStringSlice(cfgKeyPin),
	}, a.logger)
}

func (a *app) family() (ipaddr.Family, error) {
	v4, v6 := a.cfg.GetBool(cfgIPv4), a.cfg.GetBool(cfgIPv6)
	switch {
	case v4 && v6:
		return 0, errors.New("-4 and -6 are mutually exclusive")
	case v6:
		return ipaddr.IPv6, nil
	}
	return ipaddr.IPv4, nil
}

// runMatch loads the table, resolves all queries and prints one line each.
func (a *app) runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, f, err := a.source(ctx)
	if err != nil {
		return err
	}
	fam, err := a.family()
	if err != nil {
		return err
	}
	dump := a.cfg.GetBool(cfgDump)
	if name == "-" && len(args) == 0 && !dump {
		return errors.New("table and queries can not both be read from stdin")
	}
	tbl, err := ipmatch.LoadFile(ctx, name, f,
		ipmatch.WithFamily(fam),
		ipmatch.WithStrict(a.cfg.GetBool(cfgStrict)),
		ipmatch.WithExpandRanges(a.cfg.GetBool(cfgExpandRanges)),
		ipmatch.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	if dump {
		return tbl.Dump(cmd.OutOrStdout())
	}

	qs := ipmatch.QueriesFromArgs(args)
	if len(args) == 0 {
		if qs, err = ipmatch.ReadQueries(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	results, err := tbl.ResolveAll(ctx, qs, a.cfg.GetInt(cfgWorkers))
	if err != nil {
		return err
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	invalid := 0
	for _, r := range results {
		if r.Err != nil {
			invalid++
			a.logger.Warn("invalid query", zap.String("query", r.Query.Text), zap.Error(r.Err))
			continue
		}
		if _, err := w.WriteString(r.Line() + "\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if invalid > 0 {
		return errors.Wrapf(errQueries, "%d of %d", invalid, len(results))
	}
	return nil
}
