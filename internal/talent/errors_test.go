package talent

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"ctsmirror/internal/domain"
)

func TestParseConflict(t *testing.T) {
	tests := []struct {
		msg  string
		kind domain.Kind
		name string
		ok   bool
	}{
		{"Company projects/p1/companies/123 already exists. Request ID for tracking: abc", domain.KindCompany, "projects/p1/companies/123", true},
		{"Tenant projects/p1/tenants/9 already exists.", domain.KindTenant, "projects/p1/tenants/9", true},
		{"Job projects/p1/tenants/t/jobs/55 already exists", domain.KindJob, "projects/p1/tenants/t/jobs/55", true},
		{"  Job projects/p/jobs/1 already exists  ", domain.KindJob, "projects/p/jobs/1", true},
		{"Resource already exists", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		kind, name, ok := ParseConflict(tt.msg)
		assert.Equal(t, tt.ok, ok, tt.msg)
		assert.Equal(t, tt.kind, kind, tt.msg)
		assert.Equal(t, tt.name, name, tt.msg)
	}
}

func TestJobFilter(t *testing.T) {
	assert.Equal(t,
		`status = "OPEN" AND companyName = "projects/p1/companies/123"`,
		JobFilter("", "projects/p1/companies/123"))
}

func TestErrorClassification(t *testing.T) {
	conflict := errors.Wrap(&ConflictError{Kind: domain.KindCompany, Name: "x"}, "create")
	assert.True(t, IsConflict(conflict))
	assert.False(t, IsNotFound(conflict))

	assert.True(t, IsNotFound(&RemoteCallError{Op: "get", Code: 404, Err: errors.New("gone")}))
	assert.True(t, IsNotFound(&domain.NotFoundError{Kind: domain.KindJob, ID: "x"}))

	var rc *RemoteCallError
	err := Exhausted("batch", context.DeadlineExceeded)
	assert.True(t, errors.As(err, &rc))
	assert.True(t, rc.Exhausted)
}
