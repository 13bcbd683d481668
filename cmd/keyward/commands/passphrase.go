package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keyward/internal/secrets"
	"keyward/internal/services/account"
)

// keyringPasswordEnv unlocks the encrypted file keyring backend.
const keyringPasswordEnv = "KEYWARD_KEYRING_PASSWORD"

func keyringPrompt(string) (string, error) {
	if pw := os.Getenv(keyringPasswordEnv); pw != "" {
		return pw, nil
	}
	return "", fmt.Errorf("set %s to unlock the file keyring", keyringPasswordEnv)
}

func openKeyring() (*secrets.Passphrases, error) {
	if !wire.Config.Keyring.Enabled {
		return nil, errors.New("keyring is disabled (set keyring.enabled in config.yaml)")
	}
	return secrets.Open(wire.Config.Keyring, wire.Config.Home, keyringPrompt)
}

func passphraseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passphrase",
		Short: "Manage the storage passphrase kept in the OS keyring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Remember the current passphrase (-p) for this storage root",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire.Config.Passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if err := account.CheckPassphrase(wire.Config.Passphrase); err != nil {
				return err
			}
			ring, err := openKeyring()
			if err != nil {
				return err
			}
			if err := ring.Set(wire.Config.Passphrase); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Passphrase saved.")
			return nil
		},
	}, &cobra.Command{
		Use:   "forget",
		Short: "Remove the remembered passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := openKeyring()
			if err != nil {
				return err
			}
			if err := ring.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Passphrase forgotten.")
			return nil
		},
	})
	return cmd
}
