// Package resolve answers "which of these entities do we know about" from the local mirror,
// optionally fetching the full remote representation.
package resolve

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/key"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
)

type Scope int

const (
	// Limited answers from mirror rows only.
	Limited Scope = iota
	// Full fetches every matched entity from the remote service.
	Full
)

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "limited":
		return Limited, nil
	case "full":
		return Full, nil
	}
	return Limited, domain.Invalid("scope", "unknown scope %q (want limited or full)", s)
}

type Query struct {
	Tenant  string
	Company string

	// ExternalIDs is comma delimited. Exactly one of ExternalIDs and All must be set.
	ExternalIDs string
	All         bool

	Scope Scope
	// Languages is comma delimited; empty means the resolver default.
	Languages string
	// Status filters full-scope job listings; empty means OPEN.
	Status string
}

func (q Query) validate() error {
	ids := SplitList(q.ExternalIDs)
	switch {
	case len(ids) > 0 && q.All:
		return domain.Invalid("external_ids", "external ids and all are mutually exclusive")
	case len(ids) == 0 && !q.All:
		return domain.Invalid("external_ids", "either external ids or all is required")
	}
	return nil
}

// MissingError lists requested ids that have no mirror row. It is returned together with
// whatever was found.
type MissingError struct {
	Kind domain.Kind
	IDs  []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("unknown %s ids: %s", e.Kind, strings.Join(e.IDs, ", "))
}

type Resolver struct {
	db              *store.DB
	remote          talent.Service
	project         string
	defaultLanguage string
	log             *logging.Logger
}

func New(db *store.DB, remote talent.Service, project, defaultLanguage string, log *logging.Logger) *Resolver {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{
		db:              db,
		remote:          remote,
		project:         project,
		defaultLanguage: defaultLanguage,
		log:             log,
	}
}

func (r *Resolver) Project() string { return r.project }

func (r *Resolver) Tenants(ctx context.Context, q Query) ([]domain.Entity, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := (key.Key{Project: r.project}).Validate(); err != nil {
		return nil, err
	}

	if q.All {
		if q.Scope == Full {
			ts, err := r.remote.ListTenants(ctx, r.remote.ProjectPath(r.project))
			if err != nil {
				return nil, err
			}
			out := make([]domain.Entity, 0, len(ts))
			for _, t := range ts {
				out = append(out, t)
			}
			return out, nil
		}
		rows, err := r.scan(ctx, domain.KindTenant, key.Key{Project: r.project}, 1)
		if err != nil {
			return nil, err
		}
		return refs(rows), nil
	}

	ids := SplitList(q.ExternalIDs)
	keys := make([]key.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, key.Tenant(r.project, id))
	}
	return r.lookup(ctx, domain.KindTenant, q.Scope, ids, keys, func(row store.Row) string { return row.ExternalID })
}

func (r *Resolver) Companies(ctx context.Context, q Query) ([]domain.Entity, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	tenant, parent, err := r.companyParent(ctx, q.Tenant)
	if err != nil {
		return nil, err
	}

	if q.All {
		if q.Scope == Full {
			cs, err := r.remote.ListCompanies(ctx, parent)
			if err != nil {
				return nil, err
			}
			out := make([]domain.Entity, 0, len(cs))
			for _, c := range cs {
				out = append(out, c)
			}
			return out, nil
		}
		rows, err := r.scan(ctx, domain.KindCompany, key.Key{Project: r.project, Tenant: tenant}, 1)
		if err != nil {
			return nil, err
		}
		return refs(rows), nil
	}

	ids := SplitList(q.ExternalIDs)
	keys := make([]key.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, key.Company(r.project, tenant, id))
	}
	return r.lookup(ctx, domain.KindCompany, q.Scope, ids, keys, func(row store.Row) string { return row.ExternalID })
}

func (r *Resolver) Jobs(ctx context.Context, q Query) ([]domain.Entity, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if q.Company == "" {
		return nil, domain.Invalid("company", "company external id is required for jobs")
	}

	tenant, parent, err := r.companyParent(ctx, q.Tenant)
	if err != nil {
		return nil, err
	}
	company, err := r.Company(ctx, tenant, q.Company)
	if err != nil {
		return nil, err
	}
	companyKey := key.Company(r.project, tenant, q.Company)

	if q.All {
		if q.Scope == Full {
			js, err := r.remote.ListJobs(ctx, parent, talent.JobFilter(q.Status, company.Name))
			if err != nil {
				return nil, err
			}
			out := make([]domain.Entity, 0, len(js))
			for _, j := range js {
				out = append(out, j)
			}
			return out, nil
		}
		rows, err := r.scan(ctx, domain.KindJob, companyKey, 2)
		if err != nil {
			return nil, err
		}
		return refs(rows), nil
	}

	langs := SplitList(q.Languages)
	if len(langs) == 0 {
		langs = []string{r.defaultLanguage}
	}

	var ids []string
	var keys []key.Key
	for _, id := range SplitList(q.ExternalIDs) {
		for _, lang := range langs {
			ids = append(ids, JobID(id, lang))
			keys = append(keys, key.Job(r.project, tenant, q.Company, id, lang))
		}
	}
	return r.lookup(ctx, domain.KindJob, q.Scope, ids, keys, func(row store.Row) string {
		return JobID(row.ExternalID, row.LanguageCode)
	})
}

// JobID is how a single job posting is named in MissingError and reports.
func JobID(requisitionID, language string) string {
	return requisitionID + "/" + language
}

// Tenant returns the mirror row for a tenant or a NotFoundError.
func (r *Resolver) Tenant(ctx context.Context, externalID string) (store.Row, error) {
	rows, err := r.db.PointLookup(ctx, domain.KindTenant, []key.Key{key.Tenant(r.project, externalID)})
	if err != nil {
		return store.Row{}, err
	}
	if len(rows) == 0 {
		return store.Row{}, &domain.NotFoundError{Kind: domain.KindTenant, ID: externalID}
	}
	return rows[0], nil
}

// Company returns the mirror row for a company or a NotFoundError.
func (r *Resolver) Company(ctx context.Context, tenant key.Segment, externalID string) (store.Row, error) {
	rows, err := r.db.PointLookup(ctx, domain.KindCompany, []key.Key{key.Company(r.project, tenant, externalID)})
	if err != nil {
		return store.Row{}, err
	}
	if len(rows) == 0 {
		return store.Row{}, &domain.NotFoundError{Kind: domain.KindCompany, ID: externalID}
	}
	return rows[0], nil
}

// CompanyParent is the tenant key segment and remote parent path companies live under.
// A named tenant must be mirrored.
func (r *Resolver) CompanyParent(ctx context.Context, tenantID string) (key.Segment, string, error) {
	return r.companyParent(ctx, tenantID)
}

func (r *Resolver) companyParent(ctx context.Context, tenantID string) (key.Segment, string, error) {
	if err := (key.Key{Project: r.project}).Validate(); err != nil {
		return key.None(), "", err
	}
	if tenantID == "" {
		return key.None(), r.remote.ProjectPath(r.project), nil
	}
	row, err := r.Tenant(ctx, tenantID)
	if err != nil {
		return key.None(), "", err
	}
	return key.Some(tenantID), row.Name, nil
}

// scan lists rows exactly depth segments below prefix.
func (r *Resolver) scan(ctx context.Context, kind domain.Kind, prefix key.Key, depth int) ([]store.Row, error) {
	rows, err := r.db.PrefixLookup(ctx, kind, prefix)
	if err != nil {
		return nil, err
	}
	want := prefix.Depth() + depth
	out := rows[:0]
	for _, row := range rows {
		if len(key.Split(row.Key)) == want {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *Resolver) lookup(
	ctx context.Context,
	kind domain.Kind,
	scope Scope,
	ids []string,
	keys []key.Key,
	idOf func(store.Row) string,
) ([]domain.Entity, error) {
	rows, err := r.db.PointLookup(ctx, kind, keys)
	if err != nil {
		return nil, err
	}

	var out []domain.Entity
	if scope == Full {
		out, err = r.fetch(ctx, kind, rows)
		if err != nil {
			return nil, err
		}
	} else {
		out = refs(rows)
	}

	if len(rows) < len(dedupe(ids)) {
		found := make(map[string]bool, len(rows))
		for _, row := range rows {
			found[idOf(row)] = true
		}
		var missing []string
		for _, id := range dedupe(ids) {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return out, &MissingError{Kind: kind, IDs: missing}
	}
	return out, nil
}

// fetch gets each row's remote entity. Rows the remote no longer has come back as stale refs.
func (r *Resolver) fetch(ctx context.Context, kind domain.Kind, rows []store.Row) ([]domain.Entity, error) {
	out := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		var (
			e   domain.Entity
			err error
		)
		switch kind {
		case domain.KindTenant:
			e, err = r.remote.GetTenant(ctx, row.Name)
		case domain.KindCompany:
			e, err = r.remote.GetCompany(ctx, row.Name)
		case domain.KindJob:
			e, err = r.remote.GetJob(ctx, row.Name)
		}
		if talent.IsNotFound(err) {
			r.log.Warn("mirror row is stale", "kind", kind, "key", row.Key, "name", row.Name)
			ref := row.Ref()
			ref.Stale = true
			out = append(out, ref)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func refs(rows []store.Row) []domain.Entity {
	out := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Ref())
	}
	return out
}

// SplitList splits a comma delimited list, trimming blanks and dropping empties and repeats.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
