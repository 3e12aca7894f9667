package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var errFlushDeclined = errors.New("flush declined")

func newFlushCmd(opts *rootOptions) *cobra.Command {
	var (
		query string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete documents from the index",
		Long: `Delete every document from the index, or only those matching --query,
and commit. Asks for confirmation unless --yes is given.

Examples:
  solango flush --yes
  solango flush --query 'model:blog__post'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conn := a.connection()
			if !yes {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delete documents matching %s from %s? [y/N] ", query, conn.UpdateURL())
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if ans := strings.TrimSpace(answer); ans != "y" && ans != "Y" {
					return errFlushDeclined
				}
			}

			if err := conn.DeleteByQuery(cmd.Context(), query, true).Err(); err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "flushed %s\n", query)
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "*:*", "Delete only documents matching this query")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
