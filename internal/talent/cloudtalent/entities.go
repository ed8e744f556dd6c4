package cloudtalent

import (
	"context"

	jobs "google.golang.org/api/jobs/v4"

	"ctsmirror/internal/domain"
)

func (c *Client) CreateTenant(ctx context.Context, parent string, t domain.Tenant) (domain.Tenant, error) {
	if err := c.wait(ctx, "create tenant"); err != nil {
		return domain.Tenant{}, err
	}
	out, err := c.svc.Projects.Tenants.Create(parent, &jobs.Tenant{ExternalId: t.ExternalID}).Context(ctx).Do()
	if err != nil {
		return domain.Tenant{}, callError("create tenant", domain.KindTenant, err)
	}
	return tenantFromAPI(out), nil
}

func (c *Client) GetTenant(ctx context.Context, name string) (domain.Tenant, error) {
	if err := c.wait(ctx, "get tenant"); err != nil {
		return domain.Tenant{}, err
	}
	out, err := c.svc.Projects.Tenants.Get(name).Context(ctx).Do()
	if err != nil {
		return domain.Tenant{}, callError("get tenant", domain.KindTenant, err)
	}
	return tenantFromAPI(out), nil
}

func (c *Client) DeleteTenant(ctx context.Context, name string) error {
	if err := c.wait(ctx, "delete tenant"); err != nil {
		return err
	}
	_, err := c.svc.Projects.Tenants.Delete(name).Context(ctx).Do()
	return callError("delete tenant", domain.KindTenant, err)
}

func (c *Client) ListTenants(ctx context.Context, parent string) ([]domain.Tenant, error) {
	if err := c.wait(ctx, "list tenants"); err != nil {
		return nil, err
	}
	var out []domain.Tenant
	err := c.svc.Projects.Tenants.List(parent).PageSize(100).Pages(ctx, func(resp *jobs.ListTenantsResponse) error {
		for _, t := range resp.Tenants {
			out = append(out, tenantFromAPI(t))
		}
		return nil
	})
	if err != nil {
		return nil, callError("list tenants", domain.KindTenant, err)
	}
	return out, nil
}

func (c *Client) CreateCompany(ctx context.Context, parent string, co domain.Company) (domain.Company, error) {
	if err := c.wait(ctx, "create company"); err != nil {
		return domain.Company{}, err
	}
	out, err := c.svc.Projects.Tenants.Companies.Create(parent, companyToAPI(co)).Context(ctx).Do()
	if err != nil {
		return domain.Company{}, callError("create company", domain.KindCompany, err)
	}
	return companyFromAPI(out), nil
}

func (c *Client) GetCompany(ctx context.Context, name string) (domain.Company, error) {
	if err := c.wait(ctx, "get company"); err != nil {
		return domain.Company{}, err
	}
	out, err := c.svc.Projects.Tenants.Companies.Get(name).Context(ctx).Do()
	if err != nil {
		return domain.Company{}, callError("get company", domain.KindCompany, err)
	}
	return companyFromAPI(out), nil
}

func (c *Client) DeleteCompany(ctx context.Context, name string) error {
	if err := c.wait(ctx, "delete company"); err != nil {
		return err
	}
	_, err := c.svc.Projects.Tenants.Companies.Delete(name).Context(ctx).Do()
	return callError("delete company", domain.KindCompany, err)
}

func (c *Client) ListCompanies(ctx context.Context, parent string) ([]domain.Company, error) {
	if err := c.wait(ctx, "list companies"); err != nil {
		return nil, err
	}
	var out []domain.Company
	err := c.svc.Projects.Tenants.Companies.List(parent).PageSize(100).Pages(ctx, func(resp *jobs.ListCompaniesResponse) error {
		for _, co := range resp.Companies {
			out = append(out, companyFromAPI(co))
		}
		return nil
	})
	if err != nil {
		return nil, callError("list companies", domain.KindCompany, err)
	}
	return out, nil
}

func (c *Client) CreateJob(ctx context.Context, parent string, j domain.Job) (domain.Job, error) {
	if err := c.wait(ctx, "create job"); err != nil {
		return domain.Job{}, err
	}
	out, err := c.svc.Projects.Tenants.Jobs.Create(parent, jobToAPI(j)).Context(ctx).Do()
	if err != nil {
		return domain.Job{}, callError("create job", domain.KindJob, err)
	}
	return jobFromAPI(out), nil
}

func (c *Client) GetJob(ctx context.Context, name string) (domain.Job, error) {
	if err := c.wait(ctx, "get job"); err != nil {
		return domain.Job{}, err
	}
	out, err := c.svc.Projects.Tenants.Jobs.Get(name).Context(ctx).Do()
	if err != nil {
		return domain.Job{}, callError("get job", domain.KindJob, err)
	}
	return jobFromAPI(out), nil
}

func (c *Client) DeleteJob(ctx context.Context, name string) error {
	if err := c.wait(ctx, "delete job"); err != nil {
		return err
	}
	_, err := c.svc.Projects.Tenants.Jobs.Delete(name).Context(ctx).Do()
	return callError("delete job", domain.KindJob, err)
}

func (c *Client) ListJobs(ctx context.Context, parent, filter string) ([]domain.Job, error) {
	if err := c.wait(ctx, "list jobs"); err != nil {
		return nil, err
	}
	var out []domain.Job
	err := c.svc.Projects.Tenants.Jobs.List(parent).Filter(filter).PageSize(100).Pages(ctx, func(resp *jobs.ListJobsResponse) error {
		for _, j := range resp.Jobs {
			out = append(out, jobFromAPI(j))
		}
		return nil
	})
	if err != nil {
		return nil, callError("list jobs", domain.KindJob, err)
	}
	return out, nil
}
