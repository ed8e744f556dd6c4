// Package talent is the contract ctsmirror needs from the remote job-posting service.
package talent

import (
	"context"
	"fmt"

	"ctsmirror/internal/domain"
)

// Per-item status codes reported inside a batch result (google.rpc.Code).
const (
	CodeOK            = 0
	CodeNotFound      = 5
	CodeAlreadyExists = 6
)

const StatusOpen = "OPEN"

type Service interface {
	ProjectPath(project string) string

	CreateTenant(ctx context.Context, parent string, t domain.Tenant) (domain.Tenant, error)
	GetTenant(ctx context.Context, name string) (domain.Tenant, error)
	DeleteTenant(ctx context.Context, name string) error
	ListTenants(ctx context.Context, parent string) ([]domain.Tenant, error)

	CreateCompany(ctx context.Context, parent string, c domain.Company) (domain.Company, error)
	GetCompany(ctx context.Context, name string) (domain.Company, error)
	DeleteCompany(ctx context.Context, name string) error
	ListCompanies(ctx context.Context, parent string) ([]domain.Company, error)

	CreateJob(ctx context.Context, parent string, j domain.Job) (domain.Job, error)
	GetJob(ctx context.Context, name string) (domain.Job, error)
	DeleteJob(ctx context.Context, name string) error
	ListJobs(ctx context.Context, parent, filter string) ([]domain.Job, error)

	// BatchCreateJobs starts a long-running create and returns its handle without waiting.
	BatchCreateJobs(ctx context.Context, parent string, jobs []domain.Job) (Operation, error)
}

// Operation is a handle on a long-running batch create.
type Operation interface {
	Name() string
	// Poll refreshes the operation once and reports whether it has finished.
	Poll(ctx context.Context) (bool, error)
	Done() bool
	// Result is only meaningful once Done is true.
	Result() (*BatchResult, error)
}

type ItemResult struct {
	Job     domain.Job
	Code    int
	Message string
}

// BatchResult holds one ItemResult per submitted job, in submission order.
type BatchResult struct {
	Items []ItemResult
}

// JobFilter is the list filter for open jobs of one company.
func JobFilter(status, companyName string) string {
	if status == "" {
		status = StatusOpen
	}
	return fmt.Sprintf(`status = %q AND companyName = %q`, status, companyName)
}
