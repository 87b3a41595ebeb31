// Command ratsarchiv acquires council records from a SessionNet portal,
// indexes them and exports filtered batches.
//
// Exit codes: 0 complete, 2 partial (items skipped or interrupted), 1 failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ratsarchiv/archiv"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

type globalFlags struct {
	configPath string
	logLevel   string
	rawRoot    string
	indexPath  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := rootCMD()
	err := root.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err))
}

func rootCMD() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "ratsarchiv",
		Short:         "Council records archive: fetch, index, export",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "yaml config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.rawRoot, "raw-root", "", "raw artifact root")
	root.PersistentFlags().StringVar(&g.indexPath, "index", "", "SQLite index path")

	root.AddCommand(fetchCMD(g), indexCMD(g), migrateCMD(g), exportCMD(g), importCMD(g), serveCMD(g))
	return root
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

// load resolves the configuration: file, environment, then flags.
func (g *globalFlags) load() (*archiv.Config, *slog.Logger, error) {
	cfg, err := archiv.LoadConfig(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.rawRoot != "" {
		cfg.RawRoot = g.rawRoot
	}
	if g.indexPath != "" {
		cfg.IndexPath = g.indexPath
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
