// Package cmd provides the CLI commands for searchkit.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/logging"
	"github.com/Aman-CERP/searchkit/internal/profiling"
	"github.com/Aman-CERP/searchkit/pkg/version"
)

// Global flags, bound again by every NewRootCmd.
var (
	configFile string
	debugMode  bool
	noColor    bool

	profileOpts profiling.Options
	profiler    *profiling.Session

	loggingCleanup func()
)

// NewRootCmd creates the root command for the searchkit CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchkit",
		Short: "Typed search expressions and zero-downtime index lifecycle",
		Long: `searchkit compiles typed boolean search expressions into backend
queries and manages index generations behind aliases, with delta capture
during rebuilds and an atomic alias cutover.

The backend is Elasticsearch or an embedded bleve store, chosen in
.searchkit.yaml or with SEARCHKIT_BACKEND.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("searchkit version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: .searchkit.yaml in the project root)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.searchkit/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newAliasCmd())
	cmd.AddCommand(newMappingCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.Text = true
	if debugMode {
		cfg = logging.DebugConfig()
		cfg.WriteToStderr = false
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		if profiler, err = profiling.Start(profileOpts); err != nil {
			return err
		}
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profiler != nil {
		err := profiler.Stop()
		profiler = nil
		if err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx and prints any error the
// way the terminal expects it.
func ExecuteContext(ctx context.Context) error {
	return execute(ctx, NewRootCmd())
}

// execute runs root and reports a failure on its error stream, as JSON
// when the failing command was asked for JSON output.
func execute(ctx context.Context, root *cobra.Command) error {
	c, err := root.ExecuteContextC(ctx)
	if err == nil {
		return nil
	}
	w := root.ErrOrStderr()
	if wantsJSON(c) {
		if data, jerr := errors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintf(w, "%s\n", data)
			return err
		}
	}
	_, _ = fmt.Fprint(w, errors.FormatForCLI(err))
	return err
}

func wantsJSON(c *cobra.Command) bool {
	if c == nil {
		return false
	}
	f := c.Flags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}
