package main

import (
	"github.com/spf13/cobra"

	"ctsmirror/internal/config"
	"ctsmirror/internal/secrets"
)

func newSecretsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the service-account key kept in the OS keychain",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <service-account.json>",
		Short: "Store a service-account key for the configured project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := root.keyringAccount()
			if err != nil {
				return err
			}
			if err := secrets.SetCredentialsFile(account, args[0]); err != nil {
				return err
			}
			cmd.Printf("stored credentials for %s\n", account)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored service-account key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := root.keyringAccount()
			if err != nil {
				return err
			}
			if err := secrets.DeleteCredentials(account); err != nil {
				return err
			}
			cmd.Printf("deleted credentials for %s\n", account)
			return nil
		},
	})
	return cmd
}

func (o *rootOptions) keyringAccount() (string, error) {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return "", err
	}
	cfg, _ = config.NormalizeAndValidate(cfg)
	if cfg.Project.ID == "" {
		return "", withCode(exitValidation, errProjectRequired)
	}
	return secrets.Account(cfg.Project.KeyringAccount, cfg.Project.ID), nil
}
