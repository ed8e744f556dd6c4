package main

import (
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"ctsmirror/internal/config"
)

var errProjectRequired = errors.New("project id is required (set project.id, CTS_PROJECT_ID or --project)")

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := root.loadConfig()
			if err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			cmd.Println(abs)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config and print errors and warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			_, vr := config.NormalizeAndValidate(cfg)
			if err := writeJSONLine(cmd.OutOrStdout(), vr); err != nil {
				return err
			}
			if !vr.OK() {
				return withCode(exitValidation, errors.Errorf("config has %d error(s)", len(vr.Errors)))
			}
			return nil
		},
	})
	return cmd
}
