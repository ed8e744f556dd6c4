// Package talenttest is an in-memory talent.Service for tests.
package talenttest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/talent"
)

// Service keeps tenants, companies and jobs in maps keyed by resource name.
// Batch creates are applied when their operation finishes.
type Service struct {
	// PollsToDone is how many Poll calls an operation needs before it finishes. Zero means one.
	PollsToDone int
	// NeverFinish keeps every batch operation running.
	NeverFinish bool
	// OpaqueConflicts leaves ConflictError.Name empty so callers must parse the message.
	OpaqueConflicts bool
	// ItemCodes forces a per-item status code for the given requisition ids.
	ItemCodes map[string]int
	// FailFirst forces a per-item status code the first time each requisition id is submitted.
	FailFirst map[string]int
	// BatchErr is returned by BatchCreateJobs when set.
	BatchErr error

	mu        sync.Mutex
	seq       int
	tenants   map[string]domain.Tenant
	companies map[string]domain.Company
	jobs      map[string]domain.Job
	calls     map[string]int
}

var _ talent.Service = (*Service)(nil)

func New() *Service {
	return &Service{
		tenants:   map[string]domain.Tenant{},
		companies: map[string]domain.Company{},
		jobs:      map[string]domain.Job{},
		calls:     map[string]int{},
	}
}

// Calls reports how often the named method was invoked.
func (s *Service) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Service) ProjectPath(project string) string {
	return "projects/" + project
}

func (s *Service) record(method string) {
	s.calls[method]++
}

func (s *Service) nextName(parent, collection string) string {
	s.seq++
	return fmt.Sprintf("%s/%s/%d", parent, collection, s.seq)
}

func (s *Service) conflict(kind domain.Kind, name string) error {
	e := &talent.ConflictError{
		Kind:    kind,
		Message: fmt.Sprintf("%s %s already exists. Request ID for tracking: fake", kind.Title(), name),
	}
	if !s.OpaqueConflicts {
		e.Name = name
	}
	return e
}

func notFound(op, name string) error {
	return &talent.RemoteCallError{Op: op, Code: 404, Err: fmt.Errorf("%s not found", name)}
}

func under(parent, name, collection string) bool {
	return strings.HasPrefix(name, parent+"/"+collection+"/")
}

func (s *Service) CreateTenant(_ context.Context, parent string, t domain.Tenant) (domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateTenant")

	for name, existing := range s.tenants {
		if under(parent, name, "tenants") && existing.ExternalID == t.ExternalID {
			return domain.Tenant{}, s.conflict(domain.KindTenant, name)
		}
	}
	t.Name = s.nextName(parent, "tenants")
	s.tenants[t.Name] = t
	return t, nil
}

func (s *Service) GetTenant(_ context.Context, name string) (domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetTenant")

	t, ok := s.tenants[name]
	if !ok {
		return domain.Tenant{}, notFound("get tenant", name)
	}
	return t, nil
}

func (s *Service) DeleteTenant(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteTenant")

	if _, ok := s.tenants[name]; !ok {
		return notFound("delete tenant", name)
	}
	delete(s.tenants, name)
	return nil
}

func (s *Service) ListTenants(_ context.Context, parent string) ([]domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListTenants")

	var out []domain.Tenant
	for name, t := range s.tenants {
		if under(parent, name, "tenants") {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) CreateCompany(_ context.Context, parent string, c domain.Company) (domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateCompany")

	for name, existing := range s.companies {
		if under(parent, name, "companies") && existing.ExternalID == c.ExternalID {
			return domain.Company{}, s.conflict(domain.KindCompany, name)
		}
	}
	c.Name = s.nextName(parent, "companies")
	s.companies[c.Name] = c
	return c, nil
}

func (s *Service) GetCompany(_ context.Context, name string) (domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetCompany")

	c, ok := s.companies[name]
	if !ok {
		return domain.Company{}, notFound("get company", name)
	}
	return c, nil
}

func (s *Service) DeleteCompany(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteCompany")

	if _, ok := s.companies[name]; !ok {
		return notFound("delete company", name)
	}
	delete(s.companies, name)
	return nil
}

func (s *Service) ListCompanies(_ context.Context, parent string) ([]domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListCompanies")

	var out []domain.Company
	for name, c := range s.companies {
		if under(parent, name, "companies") {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) CreateJob(_ context.Context, parent string, j domain.Job) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateJob")

	created, code := s.createJobLocked(parent, j)
	switch code {
	case talent.CodeOK:
		return created, nil
	case talent.CodeAlreadyExists:
		return domain.Job{}, s.conflict(domain.KindJob, created.Name)
	default:
		return domain.Job{}, notFound("create job", j.Company)
	}
}

// createJobLocked returns the new job with CodeOK, the existing one with CodeAlreadyExists,
// or CodeNotFound when the job's company is unknown.
func (s *Service) createJobLocked(parent string, j domain.Job) (domain.Job, int) {
	if _, ok := s.companies[j.Company]; !ok {
		return domain.Job{}, talent.CodeNotFound
	}
	for name, existing := range s.jobs {
		if under(parent, name, "jobs") &&
			existing.Company == j.Company &&
			existing.RequisitionID == j.RequisitionID &&
			existing.LanguageCode == j.LanguageCode {
			return existing, talent.CodeAlreadyExists
		}
	}
	j.Name = s.nextName(parent, "jobs")
	s.jobs[j.Name] = j
	return j, talent.CodeOK
}

func (s *Service) GetJob(_ context.Context, name string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetJob")

	j, ok := s.jobs[name]
	if !ok {
		return domain.Job{}, notFound("get job", name)
	}
	return j, nil
}

func (s *Service) DeleteJob(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteJob")

	if _, ok := s.jobs[name]; !ok {
		return notFound("delete job", name)
	}
	delete(s.jobs, name)
	return nil
}

// ListJobs honours the companyName clause of the filter; status is ignored since every fake job is open.
func (s *Service) ListJobs(_ context.Context, parent, filter string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListJobs")

	var out []domain.Job
	for name, j := range s.jobs {
		if !under(parent, name, "jobs") {
			continue
		}
		if filter != "" && !strings.Contains(filter, "companyName = "+strconv.Quote(j.Company)) {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Service) BatchCreateJobs(_ context.Context, parent string, js []domain.Job) (talent.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("BatchCreateJobs")

	if s.BatchErr != nil {
		return nil, s.BatchErr
	}

	s.seq++
	op := &operation{
		svc:    s,
		name:   fmt.Sprintf("projects/fake/operations/%d", s.seq),
		parent: parent,
		jobs:   append([]domain.Job(nil), js...),
		need:   max(s.PollsToDone, 1),
	}
	if len(js) == 0 {
		op.done = true
		op.result = &talent.BatchResult{}
	}
	return op, nil
}

type operation struct {
	svc    *Service
	name   string
	parent string
	jobs   []domain.Job
	need   int

	mu     sync.Mutex
	polls  int
	done   bool
	result *talent.BatchResult
}

func (o *operation) Name() string { return o.name }

func (o *operation) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *operation) Poll(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return true, nil
	}

	o.svc.mu.Lock()
	defer o.svc.mu.Unlock()
	o.svc.record("Poll")
	if o.svc.NeverFinish {
		return false, nil
	}

	o.polls++
	if o.polls < o.need {
		return false, nil
	}

	res := &talent.BatchResult{Items: make([]talent.ItemResult, 0, len(o.jobs))}
	for _, j := range o.jobs {
		if code, ok := o.svc.ItemCodes[j.RequisitionID]; ok {
			res.Items = append(res.Items, talent.ItemResult{Job: j, Code: code, Message: "forced failure"})
			continue
		}
		if code, ok := o.svc.FailFirst[j.RequisitionID]; ok {
			delete(o.svc.FailFirst, j.RequisitionID)
			res.Items = append(res.Items, talent.ItemResult{Job: j, Code: code, Message: "forced failure"})
			continue
		}
		created, code := o.svc.createJobLocked(o.parent, j)
		item := talent.ItemResult{Job: created, Code: code}
		switch code {
		case talent.CodeAlreadyExists:
			item.Message = fmt.Sprintf("Job %s already exists. Request ID for tracking: fake", created.Name)
			item.Job = j
		case talent.CodeNotFound:
			item.Message = fmt.Sprintf("company %s not found", j.Company)
			item.Job = j
		}
		res.Items = append(res.Items, item)
	}

	o.done = true
	o.result = res
	return true, nil
}

func (o *operation) Result() (*talent.BatchResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.done {
		return nil, fmt.Errorf("operation %s still running", o.name)
	}
	return o.result, nil
}
