package main

import (
	"github.com/spf13/cobra"
)

func newTenantCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Create, get and delete tenants",
	}
	cmd.AddCommand(newTenantCreateCmd(root))
	cmd.AddCommand(newTenantGetCmd(root))
	cmd.AddCommand(newTenantDeleteCmd(root))
	return cmd
}

func newTenantCreateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <external-id>...",
		Short: "Create tenants and mirror them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				res, err := a.mirror.CreateTenant(ctx, id)
				if err != nil {
					return err
				}
				if err := writeJSONLine(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newTenantGetCmd(root *rootOptions) *cobra.Command {
	var g getOptions
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			q, err := g.query("", "")
			if err != nil {
				return err
			}
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.resolver.Tenants(ctx, q)
			return printEntities(cmd, found, err)
		},
	}
	g.bind(cmd)
	return cmd
}

func newTenantDeleteCmd(root *rootOptions) *cobra.Command {
	var forced bool
	cmd := &cobra.Command{
		Use:   "delete <external-id>...",
		Short: "Delete tenants remotely and from the mirror",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				res, err := a.mirror.DeleteTenant(ctx, id, forced)
				if err != nil {
					return err
				}
				if err := writeJSONLine(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forced, "forced", false, "Find the tenant through the remote listing instead of the mirror")
	return cmd
}
