package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gameforge/pkg/config"
)

func newSecretsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted secrets file",
		Long: `Provider API keys can live in an encrypted file instead of the
environment. The password comes from GAMEFORGE_PASSWORD or a terminal prompt.
Environment variables always win over the file.`,
	}
	cmd.PersistentFlags().StringVar(&path, "file", "", "secrets file (default ~/.gameforge/secrets.json.enc)")

	resolve := func() (string, error) {
		if path != "" {
			return path, nil
		}
		return config.DefaultSecretsPath() //nolint:wrapcheck
	}

	set := &cobra.Command{
		Use:   "set <NAME> [value]",
		Short: "Store a secret; the value is prompted for when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := resolve()
			if err != nil {
				return err
			}
			password, err := config.ResolvePassword(os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err //nolint:wrapcheck
			}

			secrets := map[string]string{}
			if config.SecretsFileExists(file) {
				if secrets, err = config.DecryptSecretsFile(file, password); err != nil {
					return err //nolint:wrapcheck
				}
			}

			name := strings.TrimSpace(args[0])
			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Value for %s: ", name)
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &value); err != nil {
					return fmt.Errorf("read value: %w", err)
				}
			}
			if name == "" || value == "" {
				return fmt.Errorf("secret name and value are required")
			}

			secrets[name] = value
			if err := config.EncryptSecretsFile(file, password, secrets); err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s in %s\n", name, file)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List secret names (values are never printed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := resolve()
			if err != nil {
				return err
			}
			if !config.SecretsFileExists(file) {
				fmt.Fprintf(cmd.OutOrStdout(), "no secrets file at %s\n", file)
				return nil
			}
			password, err := config.ResolvePassword(os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err //nolint:wrapcheck
			}
			if err := config.UnlockSecrets(file, password); err != nil {
				return err //nolint:wrapcheck
			}
			for _, name := range config.SecretNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.AddCommand(set, list)
	return cmd
}
