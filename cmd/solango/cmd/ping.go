package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/solango/internal/domain"
)

func newPingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the search backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conn := a.connection()
			ok := conn.Available(cmd.Context())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.cfg.Backend.UpdateURL, conn.State())
			if !ok {
				return domain.ErrUnavailable
			}
			return nil
		},
	}
}
