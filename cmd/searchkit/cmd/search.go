package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/searchkit/internal/compiler"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
	"github.com/Aman-CERP/searchkit/internal/search"
	"github.com/Aman-CERP/searchkit/internal/ui"
)

type searchOptions struct {
	filters []string
	fields  []string
	sorts   []string
	facets  []string
	locale  string
	size    int
	sizeSet bool
	from    int
	exact   bool
	explain bool
	json    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <alias> [text...]",
		Short: "Search an alias",
		Long: `Search an alias with free text and typed filters.

Filters are ANDed. Free text goes through the query-string preprocessor,
so "red shoe -sale" and "title:(red | blue)" work as expected.

Examples:
  searchkit search products red shoe
  searchkit search products --filter tag=shoe --filter price=10..50
  searchkit search products --filter created>=2024-03-01 --sort -price
  searchkit search products shoe --facet tag --facet created:month --locale de-CH
  searchkit search products --filter tag=shoe|hat --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sizeSet = cmd.Flags().Changed("size")
			return runSearch(cmd, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "Filter as field<op>value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Fields free text searches (default: search.default_fields)")
	cmd.Flags().StringSliceVarP(&opts.sorts, "sort", "s", nil, "Sort fields; prefix with - for descending, _score for relevance")
	cmd.Flags().StringArrayVar(&opts.facets, "facet", nil, "Facet as field, field:size or date field:interval (repeatable)")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "Locale of multilingual fields, e.g. de-CH")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "Number of hits; 0 prints totals and facets only (default: search.default_size)")
	cmd.Flags().IntVar(&opts.from, "from", 0, "Offset of the first hit")
	cmd.Flags().BoolVar(&opts.exact, "exact-total", false, "Count all matches instead of a lower bound")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Print the compiled request instead of running it")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, alias, text string, opts searchOptions) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, sessionOptions{metrics: !opts.explain})
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := buildExpression(s, text, opts)
	if err != nil {
		return err
	}
	params, err := buildParams(s, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.explain {
		req, err := s.svc.Prepare(e, params)
		if err != nil {
			return err
		}
		return writeExplain(out, e, req)
	}

	res, err := s.svc.Search(ctx, alias, e, params)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(out, searchJSON(res))
	}
	writeResult(out, res, ui.GetStyles(noColor || ui.DetectNoColor()))
	return nil
}

func buildExpression(s *session, text string, opts searchOptions) (expr.Expr, error) {
	filters, err := search.ParseFilters(s.schema, opts.filters)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return filters, nil
	}
	return expr.And(expr.Text(text, opts.fields...), filters), nil
}

func buildParams(s *session, opts searchOptions) (search.Params, error) {
	p := search.Params{
		From:           opts.from,
		Locale:         opts.locale,
		TrackTotalHits: opts.exact,
	}
	if opts.sizeSet {
		size := opts.size
		p.Size = &size
	}
	for _, raw := range opts.sorts {
		p.Sort = append(p.Sort, parseSort(raw))
	}
	for _, raw := range opts.facets {
		spec, err := parseFacet(s, raw)
		if err != nil {
			return p, err
		}
		p.Aggregations = append(p.Aggregations, spec)
	}
	return p, nil
}

// parseSort reads "field", "-field" or "_score".
func parseSort(raw string) compiler.SortSpec {
	if raw == "_score" {
		return compiler.SortSpec{Relevance: true}
	}
	if name, ok := strings.CutPrefix(raw, "-"); ok {
		return compiler.SortSpec{Field: name, Desc: true}
	}
	return compiler.SortSpec{Field: strings.TrimPrefix(raw, "+")}
}

// parseFacet reads "field", "field:size" for terms, or "field:interval"
// for date fields, which become a date histogram.
func parseFacet(s *session, raw string) (compiler.AggregationSpec, error) {
	field, arg, _ := strings.Cut(raw, ":")
	spec := compiler.AggregationSpec{Field: field, Kind: plan.AggTerms}
	f, ok := s.schema.Lookup(field)
	if !ok {
		return spec, errors.Newf(errors.ErrCodeUnknownField, "unknown facet field %q", field)
	}
	if f.Type == schema.TypeDate {
		spec.Kind = plan.AggDateHistogram
		spec.Interval = "month"
		if arg != "" {
			spec.Interval = arg
		}
		return spec, nil
	}
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return spec, errors.Newf(errors.ErrCodeInvalidInput, "facet %q: size must be a positive integer", raw)
		}
		spec.Size = n
	}
	return spec, nil
}

func writeExplain(out io.Writer, e expr.Expr, req *plan.SearchRequest) error {
	exprString := "<empty>"
	if e != nil {
		exprString = e.String()
	}
	_, _ = fmt.Fprintf(out, "Expression: %s\n", exprString)
	_, _ = fmt.Fprintf(out, "Optimized:  %s\n\n", expr.Optimize(e))
	return writeJSON(out, req.Source())
}

func writeResult(out io.Writer, res *search.Result, st ui.Styles) {
	total := strconv.FormatInt(res.Total, 10)
	if res.TotalIsLowerBound {
		total = "≥" + total
	}
	_, _ = fmt.Fprintf(out, "%s\n", st.Header.Render(fmt.Sprintf("%s hits in %s", total, res.Took.Round(time.Millisecond))))
	for _, h := range res.Hits {
		src, _ := json.Marshal(h.Source)
		_, _ = fmt.Fprintf(out, "  %s %s %s\n",
			st.Active.Render(h.ID),
			st.Dim.Render(strconv.FormatFloat(h.Score, 'f', 3, 64)),
			src)
	}
	for _, f := range res.Facets {
		_, _ = fmt.Fprintf(out, "\n%s\n", st.Label.Render(f.Name))
		for _, b := range f.Buckets {
			_, _ = fmt.Fprintf(out, "  %-24s %d\n", b.Label, b.Count)
		}
	}
}

type hitJSON struct {
	ID     string         `json:"id"`
	Index  string         `json:"index"`
	Score  float64        `json:"score"`
	Source map[string]any `json:"source"`
}

type bucketJSON struct {
	Key   any      `json:"key"`
	Label string   `json:"label"`
	Count int64    `json:"count"`
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
}

type facetJSON struct {
	Name    string       `json:"name"`
	Kind    string       `json:"kind"`
	Total   int64        `json:"total"`
	Buckets []bucketJSON `json:"buckets"`
}

type resultJSON struct {
	Total             int64       `json:"total"`
	TotalIsLowerBound bool        `json:"total_is_lower_bound,omitempty"`
	TookMS            int64       `json:"took_ms"`
	Hits              []hitJSON   `json:"hits"`
	Facets            []facetJSON `json:"facets,omitempty"`
}

func searchJSON(res *search.Result) resultJSON {
	out := resultJSON{
		Total:             res.Total,
		TotalIsLowerBound: res.TotalIsLowerBound,
		TookMS:            res.Took.Milliseconds(),
		Hits:              make([]hitJSON, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, hitJSON{ID: h.ID, Index: h.Index, Score: h.Score, Source: h.Source})
	}
	for _, f := range res.Facets {
		fj := facetJSON{Name: f.Name, Kind: string(f.Kind), Total: f.Total, Buckets: make([]bucketJSON, 0, len(f.Buckets))}
		for _, b := range f.Buckets {
			fj.Buckets = append(fj.Buckets, bucketJSON{Key: b.Key, Label: b.Label, Count: b.Count, From: b.From, To: b.To})
		}
		out.Facets = append(out.Facets, fj)
	}
	sort.SliceStable(out.Facets, func(i, j int) bool { return out.Facets[i].Name < out.Facets[j].Name })
	return out
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
