package mirror

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/key"
	"ctsmirror/internal/talent"
)

// JobRef names one job posting.
type JobRef struct {
	Tenant        string
	Company       string
	RequisitionID string
	LanguageCode  string
}

// DeleteTenant deletes remotely, then locally. With forced the tenant is found through the
// remote listing, so it can be deleted even when the mirror never recorded it.
func (m *Manager) DeleteTenant(ctx context.Context, externalID string, forced bool) (Result, error) {
	ref := domain.Ref{Type: domain.KindTenant, ExternalID: externalID, ProjectID: m.project}

	if forced {
		ts, err := m.remote.ListTenants(ctx, m.remote.ProjectPath(m.project))
		if err != nil {
			return Result{}, err
		}
		for _, t := range ts {
			if t.ExternalID == externalID {
				ref.Name = t.Name
			}
		}
	} else {
		row, err := m.resolver.Tenant(ctx, externalID)
		if err != nil {
			return Result{}, err
		}
		ref = row.Ref()
	}
	if ref.Name == "" {
		return Result{}, &domain.NotFoundError{Kind: domain.KindTenant, ID: externalID}
	}

	return m.remove(ctx, ref, m.remote.DeleteTenant)
}

func (m *Manager) DeleteCompany(ctx context.Context, tenant, externalID string, forced bool) (Result, error) {
	ref, err := m.findCompany(ctx, tenant, externalID, forced)
	if err != nil {
		return Result{}, err
	}
	return m.remove(ctx, ref, m.remote.DeleteCompany)
}

func (m *Manager) DeleteJob(ctx context.Context, j JobRef, forced bool) (Result, error) {
	if j.LanguageCode == "" {
		return Result{}, domain.Invalid("language_code", "language code is required")
	}
	company, err := m.findCompany(ctx, j.Tenant, j.Company, forced)
	if err != nil {
		return Result{}, err
	}

	ref := domain.Ref{
		Type:         domain.KindJob,
		ExternalID:   j.RequisitionID,
		LanguageCode: j.LanguageCode,
		CompanyName:  company.Name,
		ProjectID:    m.project,
	}

	if forced {
		_, parent, err := m.parent(ctx, j.Tenant, forced)
		if err != nil {
			return Result{}, err
		}
		js, err := m.remote.ListJobs(ctx, parent, talent.JobFilter("", company.Name))
		if err != nil {
			return Result{}, err
		}
		for _, rj := range js {
			if rj.RequisitionID == j.RequisitionID && rj.LanguageCode == j.LanguageCode {
				ref.Name = rj.Name
			}
		}
	} else {
		tenantSeg := key.Maybe(j.Tenant)
		rows, err := m.db.PointLookup(ctx, domain.KindJob, []key.Key{
			key.Job(m.project, tenantSeg, j.Company, j.RequisitionID, j.LanguageCode),
		})
		if err != nil {
			return Result{}, err
		}
		if len(rows) > 0 {
			ref = rows[0].Ref()
		}
	}
	if ref.Name == "" {
		return Result{}, &domain.NotFoundError{Kind: domain.KindJob, ID: j.RequisitionID + "/" + j.LanguageCode}
	}

	return m.remove(ctx, ref, m.remote.DeleteJob)
}

// parent resolves the remote parent of a company. Forced deletes fall back to the remote
// tenant listing when the tenant is not mirrored.
func (m *Manager) parent(ctx context.Context, tenant string, forced bool) (key.Segment, string, error) {
	seg, parent, err := m.resolver.CompanyParent(ctx, tenant)
	if err == nil || !forced {
		return seg, parent, err
	}
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		return seg, parent, err
	}

	ts, lerr := m.remote.ListTenants(ctx, m.remote.ProjectPath(m.project))
	if lerr != nil {
		return seg, parent, lerr
	}
	for _, t := range ts {
		if t.ExternalID == tenant {
			return key.Some(tenant), t.Name, nil
		}
	}
	return seg, parent, err
}

func (m *Manager) findCompany(ctx context.Context, tenant, externalID string, forced bool) (domain.Ref, error) {
	seg, parent, err := m.parent(ctx, tenant, forced)
	if err != nil {
		return domain.Ref{}, err
	}

	if !forced {
		row, err := m.resolver.Company(ctx, seg, externalID)
		if err != nil {
			return domain.Ref{}, err
		}
		return row.Ref(), nil
	}

	cs, err := m.remote.ListCompanies(ctx, parent)
	if err != nil {
		return domain.Ref{}, err
	}
	for _, c := range cs {
		if c.ExternalID == externalID {
			return domain.Ref{
				Type:       domain.KindCompany,
				ExternalID: externalID,
				Name:       c.Name,
				ProjectID:  m.project,
				TenantName: tenantName(seg, parent),
			}, nil
		}
	}
	return domain.Ref{}, &domain.NotFoundError{Kind: domain.KindCompany, ID: externalID}
}

// remove deletes remotely first. A remote not-found still clears the local row.
// A failed local delete leaves a stale row, which is reported as a warning.
func (m *Manager) remove(ctx context.Context, ref domain.Ref, del func(context.Context, string) error) (Result, error) {
	err := del(ctx, ref.Name)
	m.metrics.Remote("delete "+string(ref.Type), err)
	if err != nil && !talent.IsNotFound(err) {
		return Result{}, err
	}
	if err != nil {
		m.log.Warn("remote entity already gone", "kind", ref.Type, "name", ref.Name)
	}

	res := Result{Entity: ref}
	n, lerr := m.db.Delete(ctx, ref.Type, ref.Name)
	if lerr != nil {
		res.Warning = fmt.Sprintf("%s %s deleted remotely but the mirror row is stale: %v", ref.Type, ref.Name, lerr)
		m.log.Warn("stale mirror row", "kind", ref.Type, "name", ref.Name, "err", lerr)
		return res, nil
	}
	if n > 0 {
		m.metrics.MirrorWrite(string(ref.Type), "delete")
	}
	m.log.Info("deleted", "kind", ref.Type, "name", ref.Name, "rows", n)
	m.notify(ref, "delete")
	return res, nil
}
