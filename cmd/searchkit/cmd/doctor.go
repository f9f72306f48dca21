package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that searchkit can run",
		Long: `Run preflight checks: the schema builds, the state and data directories
are writable with enough free space, the file descriptor limit suits the
embedded backend and the backend answers.

Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			opts := []preflight.Option{
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			}
			conn, connErr := newConnector(cfg)
			if connErr == nil {
				defer func() { _ = conn.Close() }()
				opts = append(opts, preflight.WithConnector(conn, cfg.Timeout()))
			}

			checker := preflight.New(opts...)
			results := checker.RunAll(cmd.Context(), cfg)
			if connErr != nil {
				results = append(results, preflight.CheckResult{
					Name:     "backend",
					Status:   preflight.StatusFail,
					Message:  fmt.Sprintf("cannot open %s backend", cfg.Backend.Kind),
					Details:  connErr.Error(),
					Required: true,
				})
			}
			slog.Info("preflight_completed",
				slog.String("status", checker.SummaryStatus(results)),
				slog.Int("checks", len(results)))

			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}
			if checker.HasCriticalFailures(results) {
				return errors.New(errors.ErrCodeBackendUnavailable, "preflight checks failed", nil).
					WithSuggestion("Run 'searchkit doctor --verbose' for details")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
