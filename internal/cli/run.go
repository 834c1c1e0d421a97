package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-model/pkg/di"
	flag "github.com/spf13/pflag"
)

type globalFlags struct {
	configPath string
	driver     string
	dsn        string
	logLevel   string
	noCache    bool
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, bool, error) {
	var g globalFlags

	fs := flag.NewFlagSet("modelctl", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})
	fs.SetInterspersed(false)
	fs.StringVarP(&g.configPath, "config", "c", "", "JSONC config file")
	fs.StringVar(&g.driver, "driver", "", "database driver (sqlite, sqlite3, postgres)")
	fs.StringVar(&g.dsn, "dsn", "", "database connection string")
	fs.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&g.noCache, "no-cache", false, "disable the cache backend")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return g, true, nil
		}
		return g, false, err
	}
	g.remaining = fs.Args()
	return g, false, nil
}

// config loads the config file, if any, and applies flag overrides.
func (g globalFlags) config() (di.Config, error) {
	cfg := di.DefaultConfig()
	if g.configPath != "" {
		loaded, err := di.LoadConfig(g.configPath)
		if err != nil {
			return di.Config{}, err
		}
		cfg = loaded
	}

	if g.driver != "" {
		cfg.Database.Driver = g.driver
	}
	if g.dsn != "" {
		cfg.Database.DSN = g.dsn
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.noCache {
		cfg.Cache = nil
	}
	return cfg, nil
}

// Run is the main entry point. Returns exit code.
func Run(ctx context.Context, out, errOut io.Writer, args []string) int {
	g, help, err := parseGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		printUsage(errOut)
		return 1
	}
	if help || len(g.remaining) == 0 {
		printUsage(out)
		return 0
	}

	name := g.remaining[0]
	var cmd *Command
	for _, c := range commands() {
		if c.Name() == name {
			cmd = c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut)
		return 1
	}

	rest, done, err := cmd.parse(out, g.remaining[1:])
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if done {
		return 0
	}

	cfg, err := g.config()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	container, err := di.NewContainer(cfg, di.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer container.Close()

	if err := cmd.Exec(ctx, container, out, rest); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		if errors.Is(err, errUsage) {
			cmd.PrintHelp(errOut)
		}
		return 1
	}
	return 0
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn
	}
	return level
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: modelctl [--config file] [--driver name] [--dsn dsn] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintln(w, c.HelpLine())
	}
}
