package main

import (
	"github.com/spf13/cobra"

	"ctsmirror/internal/mirror"
)

func newCompanyCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Create, get and delete companies",
	}
	cmd.AddCommand(newCompanyCreateCmd(root))
	cmd.AddCommand(newCompanyGetCmd(root))
	cmd.AddCommand(newCompanyDeleteCmd(root))
	return cmd
}

func newCompanyCreateCmd(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create companies from a file of JSON objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			companies, err := mirror.ReadCompaniesFile(file)
			if err != nil {
				return err
			}
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, c := range companies {
				res, err := a.mirror.CreateCompany(ctx, a.cfg.Project.TenantID, c)
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
	cmd.Flags().StringVar(&file, "file", "", "JSON file with one or more company objects (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCompanyGetCmd(root *rootOptions) *cobra.Command {
	var g getOptions
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := g.query(a.cfg.Project.TenantID, "")
			if err != nil {
				return err
			}
			found, err := a.resolver.Companies(ctx, q)
			return printEntities(cmd, found, err)
		},
	}
	g.bind(cmd)
	return cmd
}

func newCompanyDeleteCmd(root *rootOptions) *cobra.Command {
	var forced bool
	cmd := &cobra.Command{
		Use:   "delete <external-id>...",
		Short: "Delete companies remotely and from the mirror",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				res, err := a.mirror.DeleteCompany(ctx, a.cfg.Project.TenantID, id, forced)
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
	cmd.Flags().BoolVar(&forced, "forced", false, "Find the company through the remote listing instead of the mirror")
	return cmd
}
