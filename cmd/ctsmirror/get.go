package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/resolve"
)

type getOptions struct {
	ids       string
	all       bool
	scope     string
	languages string
	status    string
}

func (g *getOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.ids, "ids", "", "Comma separated external ids")
	cmd.Flags().BoolVar(&g.all, "all", false, "Every mirrored entity")
	cmd.Flags().StringVar(&g.scope, "scope", "limited", "limited (mirror only) or full (fetch from the service)")
	cmd.MarkFlagsMutuallyExclusive("ids", "all")
	cmd.MarkFlagsOneRequired("ids", "all")
}

func (g *getOptions) query(tenant, company string) (resolve.Query, error) {
	scope, err := resolve.ParseScope(g.scope)
	if err != nil {
		return resolve.Query{}, err
	}
	return resolve.Query{
		Tenant:      tenant,
		Company:     company,
		ExternalIDs: g.ids,
		All:         g.all,
		Scope:       scope,
		Languages:   g.languages,
		Status:      g.status,
	}, nil
}

// printEntities writes whatever was found, one per line, then reports unknown ids.
func printEntities(cmd *cobra.Command, found []domain.Entity, err error) error {
	var missing *resolve.MissingError
	if err != nil && !errors.As(err, &missing) {
		return err
	}
	for _, e := range found {
		if werr := writeJSONLine(cmd.OutOrStdout(), e); werr != nil {
			return werr
		}
	}
	return err
}
