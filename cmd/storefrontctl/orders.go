package main

import (
	"encoding/json"
	"fmt"

	"github.com/punchamoorthee/storefront/internal/store"
	"github.com/spf13/cobra"
)

func ordersCmd() *cobra.Command {
	var userID, reference string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Print orders for a user or a single payment reference as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (userID == "") == (reference == "") {
				return fmt.Errorf("exactly one of --user or --reference is required")
			}
			src, err := dbSource(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := store.NewStore(ctx, src)
			if err != nil {
				return fmt.Errorf("unable to connect to database: %w", err)
			}
			defer s.Close()

			var out any
			if reference != "" {
				out, err = s.GetOrderByReference(ctx, reference)
			} else {
				out, err = s.ListOrdersByUser(ctx, userID)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Identity-provider user id")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "Gateway payment reference")
	return cmd
}
