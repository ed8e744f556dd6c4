// Package cloudtalent implements talent.Service on the Cloud Talent Solution REST API (jobs/v4).
package cloudtalent

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	jobs "google.golang.org/api/jobs/v4"
	"google.golang.org/api/option"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/talent"
)

type Config struct {
	CredentialsPath string
	CredentialsJSON []byte

	// QPS caps outgoing calls; zero means unlimited.
	QPS   float64
	Burst int

	// Endpoint overrides the API base URL (tests).
	Endpoint   string
	HTTPClient *http.Client
}

type Client struct {
	svc     *jobs.Service
	limiter *rate.Limiter
}

var _ talent.Service = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption

	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsPath != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	default:
		return nil, errors.New("cloudtalent: credentials path or JSON is required")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := jobs.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloudtalent: create service")
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.QPS > 0 {
		limit = rate.Limit(cfg.QPS)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Client{svc: svc, limiter: rate.NewLimiter(limit, burst)}, nil
}

func (c *Client) ProjectPath(project string) string {
	return "projects/" + project
}

func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &talent.RemoteCallError{Op: op, Exhausted: true, Err: err}
	}
	return nil
}

// callError maps API failures onto the talent error types.
func callError(op string, kind domain.Kind, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusConflict {
			ce := &talent.ConflictError{Kind: kind, Message: gerr.Message}
			if k, name, ok := talent.ParseConflict(gerr.Message); ok && k == kind {
				ce.Name = name
			}
			return ce
		}
		return &talent.RemoteCallError{Op: op, Code: gerr.Code, Err: errors.New(gerr.Message)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &talent.RemoteCallError{Op: op, Exhausted: true, Err: err}
	}
	return &talent.RemoteCallError{Op: op, Err: err}
}
