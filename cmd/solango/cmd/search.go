package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/result"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	rows    int
	start   int
	filters []string
	params  []string // key=value
	format  string   // "text", "json"
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var so searchOptions

	cmd := &cobra.Command{
		Use:   "search [text...]",
		Short: "Query the search backend",
		Long: `Run a query through the configured search defaults and print the hits
and facets.

Examples:
  solango search django
  solango search --fq model:blog__post --param facet.field=tags release notes
  solango search --format json "*:*"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(strings.Join(args, " "), so)
			if err != nil {
				return err
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.search()
			if err != nil {
				return err
			}
			res, err := svc.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if so.format == "json" {
				return writeSearchJSON(cmd.OutOrStdout(), res)
			}
			writeSearchText(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&so.rows, "rows", "n", 0, "Page size (default from config)")
	cmd.Flags().IntVar(&so.start, "start", 0, "Offset of the first hit")
	cmd.Flags().StringSliceVar(&so.filters, "fq", nil, "Filter query (repeatable)")
	cmd.Flags().StringArrayVarP(&so.params, "param", "p", nil, "Extra parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&so.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func buildQuery(text string, so searchOptions) (*query.Query, error) {
	q := query.Text(text)
	if so.rows > 0 {
		if err := q.Set("rows", so.rows); err != nil {
			return nil, err
		}
	}
	if so.start > 0 {
		if err := q.Set("start", so.start); err != nil {
			return nil, err
		}
	}
	if err := q.Add("fq", so.filters); err != nil {
		return nil, err
	}
	for _, p := range so.params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--param %q: expected key=value", p)
		}
		if err := q.Add(k, v); err != nil {
			return nil, err
		}
	}
	return q, nil
}

type searchHit struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	Highlight string         `json:"highlight,omitempty"`
}

func writeSearchJSON(out io.Writer, res *result.Select) error {
	hits := make([]searchHit, 0, len(res.Documents))
	for _, d := range res.Documents {
		hits = append(hits, searchHit{ID: d.PrimaryKey(), Fields: d.Values(), Highlight: d.Highlight()})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*result.Select
		Hits []searchHit `json:"hits"`
	}{res, hits})
}

func writeSearchText(out io.Writer, res *result.Select) {
	_, _ = fmt.Fprintf(out, "%d hits (showing %d from %d, %dms)\n",
		res.Count, len(res.Documents), res.Start, res.Header.QTime)
	for i, d := range res.Documents {
		_, _ = fmt.Fprintf(out, "%3d. %s\n", int(res.Start)+i+1, d.PrimaryKey())
		if h := d.Highlight(); h != "" {
			_, _ = fmt.Fprintf(out, "     %s\n", h)
		}
	}
	for _, f := range res.Facets {
		_, _ = fmt.Fprintf(out, "\n[%s]\n", f.Name)
		for _, v := range f.Values {
			_, _ = fmt.Fprintf(out, "%s%s (%d)\n", strings.Repeat("  ", v.Level), v.Label, v.Count)
		}
	}
}
