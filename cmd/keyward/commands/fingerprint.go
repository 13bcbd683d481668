package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the fingerprints of both identity keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := wire.Account.Fingerprints()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ACI fingerprint: %s\nPNI fingerprint: %s\n", fp.Aci, fp.Pni)
			return nil
		},
	}
	return cmd
}
