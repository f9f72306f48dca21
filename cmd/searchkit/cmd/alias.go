package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/ui"
)

func newAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Inspect and remove aliases",
	}
	cmd.AddCommand(newAliasResolveCmd())
	cmd.AddCommand(newAliasStatusCmd())
	cmd.AddCommand(newAliasDeleteCmd())
	return cmd
}

func newAliasResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <alias>",
		Short: "Print the physical index an alias serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			name, err := s.svc.ResolveAlias(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
			return err
		},
	}
}

func newAliasStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status <alias>",
		Short: "Show the generations of an alias and whether it needs a rebuild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			status, err := aliasStatus(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return r.RenderJSON(status)
			}
			r.RenderAlias(status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func aliasStatus(ctx context.Context, s *session, alias string) (ui.AliasStatus, error) {
	mgr := s.svc.Manager()
	status := ui.AliasStatus{Alias: alias, SchemaVersion: s.schema.Version}

	gens, err := mgr.Generations(ctx, alias)
	if err != nil {
		return status, err
	}
	status.Generations = gens

	live, err := mgr.ResolveAlias(ctx, alias)
	switch errors.GetCode(err) {
	case "":
		status.Live = live
		if status.NeedsRebuild, err = mgr.NeedsRebuild(ctx, alias); err != nil {
			return status, err
		}
	case errors.ErrCodeAliasNotFound:
	default:
		return status, err
	}

	if name, running, ok := incompleteBuild(s.cfg.Index.StateDir, alias); ok {
		b := &async.ProgressSnapshot{Alias: alias, Index: name, Status: string(async.StatusBuilding)}
		if !running {
			b.Status = string(async.StatusError)
			b.ErrorMessage = "build was interrupted; the next build removes " + name
		}
		status.Build = b
	}
	return status, nil
}

func newAliasDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <alias>",
		Short: "Remove an alias and delete every index behind it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New(errors.ErrCodeInvalidInput,
					fmt.Sprintf("deleting %q removes its indexes and documents", args[0]), nil).
					WithSuggestion("Repeat with --yes to confirm")
			}
			s, err := openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.svc.Manager().DeleteAlias(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted alias %s\n", args[0])
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}
