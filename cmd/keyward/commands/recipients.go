package commands

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"keyward/internal/domain"
)

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the recipient standing for this account",
		RunE: func(cmd *cobra.Command, args []string) error {
			self, err := wire.Account.SelfRecipient(cmd.Context())
			if err != nil {
				return err
			}
			acct, err := wire.Account.Account()
			if err != nil {
				return err
			}
			printRecipient(cmd.OutOrStdout(), self)
			fmt.Fprintf(cmd.OutOrStdout(), "device=%d\n", acct.DeviceID)
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	var (
		number, aci, pni string
		certain          bool
	)
	cmd := &cobra.Command{
		Use:   "resolve [address]",
		Short: "Reconcile identifiers into a single recipient",
		Long: "Resolve finds or creates the one recipient matching the given identifiers,\n" +
			"merging and reassigning rows as needed. An address argument (a bare ACI or\n" +
			"PNI:<uuid>) may be given instead of the flags.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trust := domain.Uncertain
			if certain {
				trust = domain.Certain
			}

			var (
				r       domain.Recipient
				changed bool
				err     error
			)
			if len(args) == 1 {
				r, changed, err = wire.Account.ReconcileAddress(cmd.Context(), domain.Address(args[0]), trust)
			} else {
				var e164 *domain.PhoneNumber
				var a, p *uuid.UUID
				if e164, err = optionalPhone(number); err != nil {
					return err
				}
				if a, err = optionalUUID("aci", aci); err != nil {
					return err
				}
				if p, err = optionalUUID("pni", pni); err != nil {
					return err
				}
				r, changed, err = wire.Account.Reconcile(cmd.Context(), e164, a, p, trust)
			}
			if err != nil {
				return err
			}
			printRecipient(cmd.OutOrStdout(), r)
			fmt.Fprintf(cmd.OutOrStdout(), "changed=%t\n", changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "E.164 phone number")
	cmd.Flags().StringVar(&aci, "aci", "", "account identity UUID")
	cmd.Flags().StringVar(&pni, "pni", "", "phone number identity UUID")
	cmd.Flags().BoolVar(&certain, "certain", false, "the pairing comes from an authoritative source")
	return cmd
}

func recipientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recipients",
		Short: "List every known recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := wire.DB.ListRecipients(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range all {
				printRecipient(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func setNumberCmd() *cobra.Command {
	var pni string
	cmd := &cobra.Command{
		Use:   "set-number <e164>",
		Short: "Record a phone number change for this account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e164, err := domain.ParsePhoneNumber(args[0])
			if err != nil {
				return err
			}
			id, err := uuid.Parse(pni)
			if err != nil {
				return fmt.Errorf("--pni: %w", err)
			}
			self, err := wire.Account.SetNumber(cmd.Context(), e164, id)
			if err != nil {
				return err
			}
			printRecipient(cmd.OutOrStdout(), self)
			return nil
		},
	}
	cmd.Flags().StringVar(&pni, "pni", "", "phone number identity UUID that came with the number")
	_ = cmd.MarkFlagRequired("pni")
	return cmd
}

func printRecipient(w io.Writer, r domain.Recipient) {
	fmt.Fprintf(w, "#%d aci=%s pni=%s e164=%s\n", r.ID, orDash(r.Aci), orDash(r.Pni), orDash(r.E164))
}

func orDash[T fmt.Stringer](v *T) string {
	if v == nil {
		return "-"
	}
	return (*v).String()
}

func optionalPhone(s string) (*domain.PhoneNumber, error) {
	if s == "" {
		return nil, nil
	}
	p, err := domain.ParsePhoneNumber(s)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func optionalUUID(name, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &id, nil
}
