package main

import (
	"github.com/spf13/cobra"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Check every mirrored entity against the service once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("prune") {
				prune = a.cfg.Sync.PruneMissing
			}
			rep, err := a.auditor(prune).Run(ctx)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete mirror rows whose remote entity is gone (default: sync.prune_missing)")
	return cmd
}
