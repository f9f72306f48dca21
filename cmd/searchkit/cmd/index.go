package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/index"
	"github.com/Aman-CERP/searchkit/internal/ui"
)

type indexOptions struct {
	source  string
	idField string
	stripID bool
	plain   bool
	wait    bool
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build index generations and write documents",
	}
	cmd.AddCommand(newIndexBuildCmd("create", false,
		"Create the first generation of an alias",
		"Fails when the alias already serves an index; use rebuild for that."))
	cmd.AddCommand(newIndexBuildCmd("rebuild", true,
		"Rebuild an alias into a new generation with zero downtime",
		`Writes arriving through searchkit during the rebuild are captured and
replayed into the new generation before the alias is switched over.`))
	cmd.AddCommand(newIndexWriteCmd("add", "Index documents through an alias"))
	remove := newIndexWriteCmd("remove", "Delete documents by id through an alias")
	remove.Use = "remove <alias> [id...]"
	remove.Args = cobra.MinimumNArgs(1)
	cmd.AddCommand(remove)
	return cmd
}

func bindSourceFlags(cmd *cobra.Command, opts *indexOptions) {
	cmd.Flags().StringVar(&opts.source, "source", "-", "NDJSON file with one document per line, - for stdin")
	cmd.Flags().StringVar(&opts.idField, "id-field", "id", "Document property holding the id")
	cmd.Flags().BoolVar(&opts.stripID, "strip-id", false, "Remove the id property from the stored document")
}

func newIndexBuildCmd(use string, rebuild bool, short, long string) *cobra.Command {
	var opts indexOptions
	cmd := &cobra.Command{
		Use:   use + " <alias>",
		Short: short,
		Long:  long + "\n\nExample:\n  searchkit index " + use + " products --source products.ndjson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexBuild(cmd, args[0], rebuild, opts)
		},
	}
	bindSourceFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output even on a terminal")
	return cmd
}

func (o indexOptions) documentSource(stdin io.Reader) *index.NDJSONSource {
	return &index.NDJSONSource{
		Open: func() (io.ReadCloser, error) {
			if o.source == "-" {
				return io.NopCloser(stdin), nil
			}
			return os.Open(o.source)
		},
		IDField: o.idField,
		StripID: o.stripID,
	}
}

func runIndexBuild(cmd *cobra.Command, alias string, rebuild bool, opts indexOptions) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, sessionOptions{watchPresets: true})
	if err != nil {
		return err
	}
	defer s.Close()

	stateDir := s.cfg.Index.StateDir
	cleanupIncompleteBuild(ctx, s, alias)

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(noColor || ui.DetectNoColor()),
		ui.WithTitle(alias)))

	builder := async.NewBackgroundBuilder(async.BuilderConfig{
		StateDir: stateDir,
		Alias:    alias,
		Listener: renderer,
	})
	src := opts.documentSource(cmd.InOrStdin())
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		_, err := s.svc.CreateAndInitializeIndex(ctx, alias, rebuild, src, l, index.ModeBlocking)
		return err
	}

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	builder.Start(ctx)
	buildErr := builder.Wait()
	renderer.Complete(builder.Progress().Snapshot())
	if err := renderer.Stop(); err != nil {
		slog.Warn("renderer_stop_failed", slog.String("error", err.Error()))
	}
	return buildErr
}

// incompleteBuild reports the generation a build of alias marked as in
// progress, and whether another process is still running that build.
func incompleteBuild(stateDir, alias string) (name string, running, ok bool) {
	name, ok = async.IncompleteBuild(stateDir, alias)
	if !ok {
		return "", false, false
	}
	lock := index.NewRebuildLock(stateDir, alias)
	acquired, err := lock.TryLock()
	if err != nil {
		return name, false, true
	}
	if acquired {
		_ = lock.Unlock()
	}
	return name, !acquired, true
}

// cleanupIncompleteBuild deletes the generation a crashed build left
// behind, unless the alias serves it or the build is still running.
func cleanupIncompleteBuild(ctx context.Context, s *session, alias string) {
	name, running, ok := incompleteBuild(s.cfg.Index.StateDir, alias)
	if !ok || running {
		return
	}
	mgr := s.svc.Manager()
	if live, err := mgr.ResolveAlias(ctx, alias); err == nil && live == name {
		return
	}
	err := mgr.Call(ctx, "delete_index", func(c context.Context) error {
		exists, err := mgr.Connector().IndexExists(c, name)
		if err != nil || !exists {
			return err
		}
		return mgr.Connector().DeleteIndex(c, name)
	})
	if err != nil {
		slog.Warn("incomplete_build_cleanup_failed",
			slog.String("alias", alias),
			slog.String("index", name),
			errors.FormatForLog(err))
		return
	}
	slog.Info("incomplete_build_removed", slog.String("alias", alias), slog.String("index", name))
}

func newIndexWriteCmd(use, short string) *cobra.Command {
	var opts indexOptions
	cmd := &cobra.Command{
		Use:   use + " <alias>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexWrite(cmd, use, args[0], args[1:], opts)
		},
	}
	bindSourceFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Return once the changes are searchable")
	return cmd
}

func runIndexWrite(cmd *cobra.Command, action, alias string, ids []string, opts indexOptions) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	mode := index.ModeAsync
	if opts.wait {
		mode = index.ModeBlocking
	}

	var docs []backend.Document
	if action == "add" || len(ids) == 0 {
		err := opts.documentSource(cmd.InOrStdin()).Each(ctx, func(d backend.Document) error {
			if action == "remove" {
				ids = append(ids, d.ID)
			} else {
				docs = append(docs, d)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if len(ids) == 0 && len(docs) == 0 {
		return errNoDocuments
	}

	var res *backend.BulkResult
	if action == "remove" {
		res, err = s.svc.RemoveAllFromIndex(ctx, alias, ids, mode)
	} else {
		res, err = s.svc.AddAllToIndex(ctx, alias, docs, mode)
	}
	if res != nil {
		reportBulk(cmd.OutOrStdout(), action, res)
	}
	return err
}

func reportBulk(out io.Writer, action string, res *backend.BulkResult) {
	failed := res.Failed()
	verb := "indexed"
	if action == "remove" {
		verb = "removed"
	}
	_, _ = fmt.Fprintf(out, "%d documents %s", len(res.Items)-len(failed), verb)
	if len(failed) > 0 {
		_, _ = fmt.Fprintf(out, ", %d rejected", len(failed))
	}
	_, _ = fmt.Fprintln(out)
	for _, it := range failed {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", it.ID, it.Error)
	}
}

// errNoDocuments is returned when a write reads nothing.
var errNoDocuments = errors.New(errors.ErrCodeInvalidInput, "no documents to write", nil).
	WithSuggestion("Pass ids as arguments or an NDJSON file with --source")
