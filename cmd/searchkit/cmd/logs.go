package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/logging"
	"github.com/Aman-CERP/searchkit/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View searchkit logs",
		Long: `View and tail the JSON log written with --debug or logging.file.

Examples:
  searchkit logs                    # last 50 lines
  searchkit logs -f                 # follow new entries
  searchkit logs --level warn       # warnings and errors only
  searchkit logs --filter rebuild   # entries matching a pattern`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file (default: logging.file, else ~/.searchkit/logs/searchkit.log)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	explicit := opts.logFile
	if explicit == "" {
		if cfg, _, err := loadConfig(); err == nil {
			explicit = cfg.Logging.File
		}
	}
	path, err := logging.FindLogFile(explicit)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound, err.Error(), err)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return errors.New(errors.ErrCodeInvalidInput, "invalid filter pattern", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()),
	}, cmd.OutOrStdout())

	stderr := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(stderr, "Log file: %s\n---\n", path)

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	if !opts.follow {
		return nil
	}
	return followLogs(cmd.Context(), cmd, viewer, path)
}

func followLogs(ctx context.Context, cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case e := <-entries:
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(e))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "\n---\nStopped.")
			return nil
		}
	}
}
