package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"keyward/internal/domain"
	"keyward/internal/services/prekey"
)

func prekeysCmd() *cobra.Command {
	var (
		scope string
		count int
	)
	cmd := &cobra.Command{
		Use:   "prekeys",
		Short: "Generate a pre-key batch and print the public bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := domain.ParseIdentityScope(scope)
			if err != nil {
				return err
			}
			refreshed, err := wire.Prekeys.Refresh(cmd.Context(), sc, count)
			if err != nil {
				return err
			}
			bundle, err := wire.Prekeys.LoadBundle(cmd.Context(), sc)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Generated prekey.Refreshed `json:"generated"`
				Bundle    prekey.Bundle    `json:"bundle"`
			}{refreshed, bundle})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "aci", "identity scope (aci|pni)")
	cmd.Flags().IntVarP(&count, "count", "n", prekey.DefaultBatchSize, "one-time pre-keys to generate")
	return cmd
}
