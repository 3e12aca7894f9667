package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	indexinguc "github.com/kailas-cloud/solango/internal/usecase/indexing"
)

func newReindexCmd(opts *rootOptions) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "reindex [type...]",
		Short: "Rebuild the index from the record store",
		Long: `Rebuild the index for the given record types, or for every declared
type when none is given. Records are read from records.path.

Examples:
  solango reindex
  solango reindex blog__post --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.indexing(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = a.schemas.Keys()
			}
			if workers <= 0 {
				workers = a.cfg.Index.Workers
			}
			return runReindex(cmd.Context(), cmd.OutOrStdout(), svc, args, workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel workers per type (default index.workers)")
	return cmd
}

func runReindex(ctx context.Context, out io.Writer, svc *indexinguc.Service, types []string, workers int) error {
	for _, typeKey := range types {
		var (
			rep indexinguc.Report
			err error
		)
		if workers > 1 {
			rep, err = svc.ReindexParallel(ctx, typeKey, workers)
		} else {
			rep, err = svc.Reindex(ctx, typeKey)
		}
		printReport(out, typeKey, rep)
		if err != nil {
			return fmt.Errorf("reindex %s: %w", typeKey, err)
		}
	}
	return nil
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var queue bool

	cmd := &cobra.Command{
		Use:   "index <type> <id>...",
		Short: "Index individual records by id",
		Long: `Index the given records of one type. Ids missing from the record
store are deleted from the index.

With --queue the ids are only queued; index-queued indexes them later.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.indexing(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]indexinguc.Key, 0, len(args)-1)
			for _, id := range args[1:] {
				keys = append(keys, indexinguc.Key{TypeKey: args[0], ID: id})
			}
			if queue {
				rep, err := svc.QueueKeys(cmd.Context(), keys)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: queued %d\n", args[0], rep.Queued)
				return err
			}
			rep, err := svc.IndexKeys(cmd.Context(), keys)
			printReport(cmd.OutOrStdout(), args[0], rep)
			return err
		},
	}

	cmd.Flags().BoolVar(&queue, "queue", false, "Queue the ids for index-queued instead of indexing now")
	return cmd
}

func newIndexQueuedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index-queued",
		Short: "Index the queued records and clear them from the queue",
		Long: `Index every record key queued so far, each key once, then remove
those keys from the queue. Keys queued while the run is in progress are
left for the next run. Run it from a scheduler; concurrent runs may index
the same keys twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.indexing(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := svc.IndexQueued(cmd.Context())
			printReport(cmd.OutOrStdout(), "queued", rep)
			return err
		},
	}
}

func printReport(out io.Writer, typeKey string, rep indexinguc.Report) {
	line := fmt.Sprintf("%s: added %d, deleted %d, deferred %d, skipped %d",
		typeKey, rep.Added, rep.Deleted, rep.Deferred, rep.Skipped)
	if failed := rep.Updates.Failed(); len(failed) > 0 {
		msgs := make([]string, 0, len(failed))
		for _, u := range failed {
			msgs = append(msgs, u.Err.Error())
		}
		line += " (" + strings.Join(msgs, "; ") + ")"
	}
	_, _ = fmt.Fprintln(out, line)
}
