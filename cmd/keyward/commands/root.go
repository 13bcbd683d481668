package commands

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keyward/internal/app"
	"keyward/internal/logging"
)

var (
	home       string
	configPath string
	passphrase string
	logLevel   string
	wire       *app.Wire
)

func Execute() error {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

// run executes one command line and releases the graph afterwards, also
// when the subcommand fails.
func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer func() {
		if wire != nil {
			wire.Close()
			wire = nil
		}
	}()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "keyward",
		Short:        "Recipient identity and protocol key store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".keyward")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			path := configPath
			if path == "" {
				path = filepath.Join(home, app.ConfigFileName)
			}
			cfg, err := app.LoadConfig(path, app.DefaultConfig(home))
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("passphrase") {
				cfg.Passphrase = passphrase
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cfg, err = app.ResolvePassphrase(cfg, keyringPrompt); err != nil {
				return err
			}

			log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cfg, log)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "storage root (default ~/.keyward)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.yaml)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting keys at rest")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		whoamiCmd(),
		resolveCmd(),
		recipientsCmd(),
		prekeysCmd(),
		setNumberCmd(),
		passphraseCmd(),
	)
	return root
}
