package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"keyward/internal/domain"
	"keyward/internal/services/account"
)

func initCmd() *cobra.Command {
	var (
		aci, pni, number string
		device           uint32
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local identity for a new registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire.Config.Passphrase != "" {
				if err := account.CheckPassphrase(wire.Config.Passphrase); err != nil {
					return err
				}
			}
			reg := account.Registration{DeviceID: domain.DeviceID(device)}
			var err error
			if reg.Aci, err = uuid.Parse(aci); err != nil {
				return fmt.Errorf("--aci: %w", err)
			}
			if reg.Pni, err = uuid.Parse(pni); err != nil {
				return fmt.Errorf("--pni: %w", err)
			}
			if number != "" {
				if reg.E164, err = domain.ParsePhoneNumber(number); err != nil {
					return err
				}
			}
			if reg.DeviceID == 0 {
				reg.DeviceID = wire.Config.DeviceID
			}

			fp, err := wire.Account.Bootstrap(cmd.Context(), reg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Identity created.\n")
			fmt.Fprintf(out, "ACI fingerprint: %s\nPNI fingerprint: %s\n", fp.Aci, fp.Pni)
			return nil
		},
	}
	cmd.Flags().StringVar(&aci, "aci", "", "account identity UUID")
	cmd.Flags().StringVar(&pni, "pni", "", "phone number identity UUID")
	cmd.Flags().StringVar(&number, "number", "", "E.164 phone number")
	cmd.Flags().Uint32Var(&device, "device", 0, "device id (default from config)")
	_ = cmd.MarkFlagRequired("aci")
	_ = cmd.MarkFlagRequired("pni")
	return cmd
}
