package cloudtalent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	jobs "google.golang.org/api/jobs/v4"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/talent"
)

func (c *Client) BatchCreateJobs(ctx context.Context, parent string, js []domain.Job) (talent.Operation, error) {
	if err := c.wait(ctx, "batch create jobs"); err != nil {
		return nil, err
	}
	req := &jobs.BatchCreateJobsRequest{Jobs: make([]*jobs.Job, 0, len(js))}
	for _, j := range js {
		req.Jobs = append(req.Jobs, jobToAPI(j))
	}

	op, err := c.svc.Projects.Tenants.Jobs.BatchCreate(parent, req).Context(ctx).Do()
	if err != nil {
		return nil, callError("batch create jobs", domain.KindJob, err)
	}
	return &operation{client: c, op: op}, nil
}

type operation struct {
	client *Client

	mu sync.Mutex
	op *jobs.Operation
}

func (o *operation) Name() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.op.Name
}

func (o *operation) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.op.Done
}

func (o *operation) Poll(ctx context.Context) (bool, error) {
	if o.Done() {
		return true, nil
	}
	if err := o.client.wait(ctx, "get operation"); err != nil {
		return false, err
	}
	next, err := o.client.svc.Projects.Operations.Get(o.Name()).Context(ctx).Do()
	if err != nil {
		return false, callError("get operation", domain.KindJob, err)
	}

	o.mu.Lock()
	o.op = next
	o.mu.Unlock()
	return next.Done, nil
}

func (o *operation) Result() (*talent.BatchResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.op.Done {
		return nil, errors.Errorf("operation %s still running", o.op.Name)
	}
	if o.op.Error != nil && o.op.Error.Code != talent.CodeOK {
		return nil, &talent.RemoteCallError{
			Op:   "batch create jobs",
			Code: int(o.op.Error.Code),
			Err:  errors.New(o.op.Error.Message),
		}
	}

	var resp jobs.BatchCreateJobsResponse
	if len(o.op.Response) > 0 {
		if err := json.Unmarshal(o.op.Response, &resp); err != nil {
			return nil, errors.Wrap(err, "decode batch response")
		}
	}

	out := &talent.BatchResult{Items: make([]talent.ItemResult, 0, len(resp.JobResults))}
	for _, r := range resp.JobResults {
		item := talent.ItemResult{}
		if r.Job != nil {
			item.Job = jobFromAPI(r.Job)
		}
		if r.Status != nil {
			item.Code = int(r.Status.Code)
			item.Message = r.Status.Message
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
