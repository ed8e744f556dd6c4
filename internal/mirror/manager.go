// Package mirror creates and deletes single tenants, companies and jobs, keeping the local
// mirror in step with the remote service.
package mirror

import (
	"context"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/events"
	"ctsmirror/internal/key"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/metrics"
	"ctsmirror/internal/poll"
	"ctsmirror/internal/reconcile"
	"ctsmirror/internal/resolve"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
)

var ErrAlreadyMirrored = errors.New("already mirrored")

// Result is the outcome of one create or delete.
type Result struct {
	Entity domain.Entity `json:"entity"`
	// Synced is set when the entity already existed remotely and was only recorded locally.
	Synced bool `json:"synced,omitempty"`
	// Warning is set when the remote side succeeded but the mirror could not be updated.
	Warning string `json:"warning,omitempty"`
}

type Manager struct {
	project    string
	db         *store.DB
	remote     talent.Service
	resolver   *resolve.Resolver
	reconciler *reconcile.Reconciler
	log        *logging.Logger
	metrics    *metrics.Metrics
	pub        poll.Publisher
}

type Deps struct {
	DB         *store.DB
	Remote     talent.Service
	Resolver   *resolve.Resolver
	Reconciler *reconcile.Reconciler
	Log        *logging.Logger
	Metrics    *metrics.Metrics
	Publisher  poll.Publisher
}

func New(project string, d Deps) *Manager {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		project:    project,
		db:         d.DB,
		remote:     d.Remote,
		resolver:   d.Resolver,
		reconciler: d.Reconciler,
		log:        log,
		metrics:    d.Metrics,
		pub:        d.Publisher,
	}
}

func (m *Manager) CreateTenant(ctx context.Context, externalID string) (Result, error) {
	if externalID == "" {
		return Result{}, domain.Invalid("external_id", "tenant external id is required")
	}
	k := key.Tenant(m.project, externalID)
	if err := k.Validate(); err != nil {
		return Result{}, err
	}
	if err := m.ensureAbsent(ctx, domain.KindTenant, k); err != nil {
		return Result{}, err
	}

	created, err := m.remote.CreateTenant(ctx, m.remote.ProjectPath(m.project), domain.Tenant{ExternalID: externalID})
	m.metrics.Remote("create tenant", err)

	ref := domain.Ref{Type: domain.KindTenant, ExternalID: externalID, ProjectID: m.project}
	if err != nil {
		return m.sync(ctx, k, ref, err)
	}
	ref.Name = created.Name
	return m.record(ctx, k, ref, created)
}

func (m *Manager) CreateCompany(ctx context.Context, tenant string, c domain.Company) (Result, error) {
	if err := domain.Validate(c); err != nil {
		return Result{}, err
	}
	tenantSeg, parent, err := m.resolver.CompanyParent(ctx, tenant)
	if err != nil {
		return Result{}, err
	}
	k := key.Company(m.project, tenantSeg, c.ExternalID)
	if err := m.ensureAbsent(ctx, domain.KindCompany, k); err != nil {
		return Result{}, err
	}

	created, err := m.remote.CreateCompany(ctx, parent, c)
	m.metrics.Remote("create company", err)

	ref := domain.Ref{
		Type:       domain.KindCompany,
		ExternalID: c.ExternalID,
		ProjectID:  m.project,
		TenantName: tenantName(tenantSeg, parent),
	}
	if err != nil {
		return m.sync(ctx, k, ref, err)
	}
	ref.Name = created.Name
	ref.Suspended = created.Suspended
	return m.record(ctx, k, ref, created)
}

// CreateJob creates one job from a line in the batch input format.
func (m *Manager) CreateJob(ctx context.Context, tenant, line string) (Result, error) {
	posting, err := poll.ParseJob(line)
	if err != nil {
		return Result{}, &domain.ParseError{Err: err}
	}
	tenantSeg, parent, err := m.resolver.CompanyParent(ctx, tenant)
	if err != nil {
		return Result{}, err
	}
	company, err := m.resolver.Company(ctx, tenantSeg, posting.CompanyID)
	if err != nil {
		return Result{}, err
	}

	j := posting.Job
	j.Company = company.Name
	k := key.Job(m.project, tenantSeg, posting.CompanyID, j.RequisitionID, j.LanguageCode)
	if err := m.ensureAbsent(ctx, domain.KindJob, k); err != nil {
		return Result{}, err
	}

	created, err := m.remote.CreateJob(ctx, parent, j)
	m.metrics.Remote("create job", err)

	ref := domain.Ref{
		Type:         domain.KindJob,
		ExternalID:   j.RequisitionID,
		LanguageCode: j.LanguageCode,
		CompanyName:  company.Name,
		TenantName:   tenantName(tenantSeg, parent),
		ProjectID:    m.project,
	}
	if err != nil {
		return m.sync(ctx, k, ref, err)
	}
	ref.Name = created.Name
	return m.record(ctx, k, ref, created)
}

func tenantName(tenant key.Segment, parent string) string {
	if tenant.IsSet() {
		return parent
	}
	return ""
}

func (m *Manager) ensureAbsent(ctx context.Context, kind domain.Kind, k key.Key) error {
	rows, err := m.db.PointLookup(ctx, kind, []key.Key{k})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return errors.Wrapf(ErrAlreadyMirrored, "%s %s as %s", kind, k.String(), rows[0].Name)
	}
	return nil
}

func (m *Manager) record(ctx context.Context, k key.Key, ref domain.Ref, created domain.Entity) (Result, error) {
	err := m.db.Insert(ctx, k, store.Row{
		Kind:         ref.Type,
		ExternalID:   ref.ExternalID,
		Name:         ref.Name,
		LanguageCode: ref.LanguageCode,
		CompanyName:  ref.CompanyName,
		TenantName:   ref.TenantName,
		ProjectID:    ref.ProjectID,
		Suspended:    ref.Suspended,
	})
	if err != nil {
		return Result{Entity: created}, errors.Wrapf(err, "%s %s created remotely as %s but not mirrored", ref.Type, k.String(), ref.Name)
	}
	m.log.Info("created", "kind", ref.Type, "key", k.String(), "name", ref.Name)
	m.metrics.MirrorWrite(string(ref.Type), "create")
	m.notify(ref, "create")
	return Result{Entity: created}, nil
}

func (m *Manager) sync(ctx context.Context, k key.Key, ref domain.Ref, createErr error) (Result, error) {
	if !talent.IsConflict(createErr) {
		return Result{}, createErr
	}
	if _, err := m.reconciler.Reconcile(ctx, k, ref, createErr); err != nil {
		return Result{}, err
	}
	ref.Name, _ = reconcile.ExistingName(ref.Type, createErr)
	m.notify(ref, "sync")
	return Result{Entity: ref, Synced: true}, nil
}

func (m *Manager) notify(ref domain.Ref, action string) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(events.MakeEvent("", events.TypeMirrorWrite, 1, map[string]any{
		"action": action,
		"entity": ref,
	}))
}
