package talent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
)

// ConflictError is an already-exists answer to a create. Name is the existing resource,
// empty when the service did not say.
type ConflictError struct {
	Kind    domain.Kind
	Name    string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return "already exists: " + e.Message
	}
	return fmt.Sprintf("%s %s already exists", e.Kind, e.Name)
}

// RemoteCallError is any other failed call. Exhausted marks calls that ran out of
// deadline or retries inside the client.
type RemoteCallError struct {
	Op        string
	Code      int
	Exhausted bool
	Err       error
}

func (e *RemoteCallError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsNotFound(err error) bool {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var rc *RemoteCallError
	return errors.As(err, &rc) && rc.Code == 404
}

// Exhausted wraps deadline errors so callers can tell them from hard failures.
func Exhausted(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteCallError{Op: op, Exhausted: true, Err: err}
	}
	return err
}

var conflictRe = regexp.MustCompile(`^(Tenant|Company|Job) (\S+) already exists`)

// ParseConflict pulls the kind and resource name out of an already-exists message such as
// "Company projects/p1/companies/123 already exists. Request ID for tracking: ...".
// The format is not a documented contract; callers must cope with ok=false.
func ParseConflict(msg string) (kind domain.Kind, name string, ok bool) {
	m := conflictRe.FindStringSubmatch(strings.TrimSpace(msg))
	if m == nil {
		return "", "", false
	}
	return domain.Kind(strings.ToLower(m[1])), m[2], true
}
