package cmd

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/telemetry"
	"github.com/Aman-CERP/searchkit/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var (
		jsonOutput bool
		reset      bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query statistics recorded by searchkit search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store := telemetry.NewFileStore(filepath.Join(cfg.Index.StateDir, metricsFile))
			if reset {
				return store.Save(&telemetry.QueryMetricsSnapshot{Since: time.Now()})
			}
			snap, err := store.Load()
			if err != nil {
				return err
			}
			if snap == nil {
				snap = &telemetry.QueryMetricsSnapshot{}
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return r.RenderJSON(snap)
			}
			r.RenderQueryStats(snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear the recorded statistics")
	return cmd
}
