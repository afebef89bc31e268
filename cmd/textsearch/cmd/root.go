// Package cmd provides the CLI commands for textsearch.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Aman-CERP/textsearch/internal/config"
	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/logging"
	"github.com/Aman-CERP/textsearch/internal/profiling"
	"github.com/Aman-CERP/textsearch/pkg/version"
)

// Global flags
var (
	debugMode  bool
	configFile string
	jsonOutput bool
)

var (
	// loadedConfig is set by the persistent pre-run of every command.
	loadedConfig   *config.Config
	loggingCleanup func()

	profileOpts profiling.Options
	profiler    *profiling.Profiler
)

// NewRootCmd creates the root command for the textsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "textsearch",
		Short: "Embedded full-text search indexes described by a JSON mapping",
		Long: `textsearch creates and queries on-disk full-text indexes.

An index is a directory. Its shape is fixed by a JSON mapping that lists
every field with a type (text, u64, bool, json) and flags (stored,
text, fast, indexed). Documents are JSON objects; they become searchable
after commit.

  textsearch create ./idx --mapping '{"properties":{"data":{"type":"text","text":true,"stored":true}}}'
  textsearch add ./idx '{"data":"hello world"}'
  textsearch search ./idx hello`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("textsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.textsearch/logs/")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Machine-readable JSON output")
	registerProfileFlags(cmd.PersistentFlags())

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newDropCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newAggregateCmd())
	cmd.AddCommand(newShellCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging loads the configuration and installs the process logger.
// The MCP server logs to file only since stdout carries JSON-RPC.
func startLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		// A broken config must not lock users out of repairing it.
		if !underConfigCmd(cmd) {
			return err
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), tserrors.FormatForCLI(err))
		cfg = config.NewConfig()
	}
	loadedConfig = cfg

	settings := cfg.LoggingSettings()
	if debugMode {
		settings.Level = "debug"
	}

	var cleanup func()
	if cmd.Name() == "serve" {
		cleanup, err = logging.SetupMCPMode(settings.Level)
	} else {
		cleanup, err = logging.SetupDefault(settings)
	}
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup

	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))

	if profileOpts.Enabled() {
		p, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profiler = p
		slog.Info("profiling_started",
			slog.String("cpu", profileOpts.CPU),
			slog.String("heap", profileOpts.Heap),
			slog.String("trace", profileOpts.Trace))
	}
	return nil
}

// registerProfileFlags adds the hidden profiling flags used when tuning
// bulk loads.
func registerProfileFlags(fs *pflag.FlagSet) {
	fs.StringVar(&profileOpts.CPU, "profile-cpu", "", "Write a CPU profile to this file")
	fs.StringVar(&profileOpts.Heap, "profile-mem", "", "Write a heap profile to this file on exit")
	fs.StringVar(&profileOpts.Trace, "profile-trace", "", "Write an execution trace to this file")
	for _, name := range []string{"profile-cpu", "profile-mem", "profile-trace"} {
		_ = fs.MarkHidden(name)
	}
}

func underConfigCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

func stopLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	return err
}

// printError reports err in the format selected by --json.
func printError(w io.Writer, err error) {
	if jsonOutput {
		if data, jerr := tserrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, tserrors.FormatForCLI(err))
}

// currentConfig returns the configuration loaded for this command, or
// the defaults when the pre-run did not execute.
func currentConfig() *config.Config {
	if loadedConfig == nil {
		return config.NewConfig()
	}
	return loadedConfig
}
