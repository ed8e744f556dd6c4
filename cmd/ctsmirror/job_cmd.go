package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/mirror"
)

func newJobCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Create, get and delete jobs",
	}
	cmd.AddCommand(newJobCreateCmd(root))
	cmd.AddCommand(newJobGetCmd(root))
	cmd.AddCommand(newJobDeleteCmd(root))
	return cmd
}

func newJobCreateCmd(root *rootOptions) *cobra.Command {
	var (
		file string
		line string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create jobs from a JSON-lines file in batches, or a single job with --json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if line != "" {
				res, err := a.mirror.CreateJob(ctx, a.cfg.Project.TenantID, line)
				if err != nil {
					return err
				}
				return writeJSONLine(cmd.OutOrStdout(), res)
			}

			rep, err := a.orchestrator().Run(ctx, file)
			if rep != nil {
				if werr := writeJSONLine(cmd.OutOrStdout(), rep); werr != nil {
					return werr
				}
			}
			if err != nil {
				return err
			}
			if bad := rep.Counts.Total() - rep.Counts.Success - rep.Counts.Skipped; bad > 0 {
				return withCode(exitPartial, fmt.Errorf("%d of %d lines were not created", bad, rep.Counts.Total()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON-lines file, one job per line")
	cmd.Flags().StringVar(&line, "json", "", "A single job as one JSON object")
	cmd.MarkFlagsMutuallyExclusive("file", "json")
	cmd.MarkFlagsOneRequired("file", "json")
	return cmd
}

func newJobGetCmd(root *rootOptions) *cobra.Command {
	var (
		g       getOptions
		company string
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up a company's jobs by requisition id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := g.query(a.cfg.Project.TenantID, company)
			if err != nil {
				return err
			}
			found, err := a.resolver.Jobs(ctx, q)
			return printEntities(cmd, found, err)
		},
	}
	g.bind(cmd)
	cmd.Flags().StringVar(&company, "company", "", "Company external id (required)")
	cmd.Flags().StringVar(&g.languages, "languages", "", "Comma separated language codes (default: project.default_language)")
	cmd.Flags().StringVar(&g.status, "status", "", "Full scope job status filter: OPEN, EXPIRED or ALL (default OPEN)")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newJobDeleteCmd(root *rootOptions) *cobra.Command {
	var (
		forced bool
		ref    mirror.JobRef
	)
	cmd := &cobra.Command{
		Use:   "delete <requisition-id>...",
		Short: "Delete job postings remotely and from the mirror",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ref.Company == "" {
				return domain.Invalid("company", "--company is required")
			}
			a, err := root.open(ctx, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ref.Tenant = a.cfg.Project.TenantID
			if ref.LanguageCode == "" {
				ref.LanguageCode = a.cfg.Project.DefaultLanguage
			}
			for _, id := range args {
				j := ref
				j.RequisitionID = id
				res, err := a.mirror.DeleteJob(ctx, j, forced)
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
	cmd.Flags().StringVar(&ref.Company, "company", "", "Company external id (required)")
	cmd.Flags().StringVar(&ref.LanguageCode, "language", "", "Language code (default: project.default_language)")
	cmd.Flags().BoolVar(&forced, "forced", false, "Find the job through the remote listing instead of the mirror")
	return cmd
}
