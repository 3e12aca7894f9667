package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		list   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay deferred writes against the backend",
		Long: `Replay deferred writes oldest first. Successful writes are removed
from the queue, failed ones stay with their latest error.

Use --list to show the queue without replaying.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.replay(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				recs, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				if format == "json" {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(recs)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tMETHOD\tDOC\tQUEUED\tERROR")
				for _, r := range recs {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.Method, r.DocKey, r.Timestamp.Format(time.RFC3339), r.Error)
				}
				return tw.Flush()
			}

			rep, err := svc.Drain(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "replayed %d, failed %d, superseded %d\n",
				rep.Replayed, rep.Failed, rep.Superseded)
			if rep.Failed > 0 {
				return fmt.Errorf("%d deferred writes still failing", rep.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List pending writes instead of replaying")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "List output format: text, json")
	return cmd
}
