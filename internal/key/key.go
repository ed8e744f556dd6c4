// Package key builds the composite keys the local mirror is indexed by.
//
// A key is rendered as project, tenant, company, external id and locale, in that
// order, joined by Delimiter. Absent segments are left out entirely; a present
// empty segment still renders (as an empty field), so "no tenant" and "tenant ''"
// never collide. Delimiter and Escape inside a segment are escaped.
//
// Keys built by the same constructor never collide, and neither do keys with a
// different number of segments. Keys of different kinds can render the same string
// (Tenant("p", "a") and Company("p", None(), "a") are both "p-a"); each kind lives
// in its own table, so that is never ambiguous.
package key

import (
	"strings"

	"ctsmirror/internal/domain"
)

const (
	Delimiter = '-'
	Escape    = '\\'
)

type Segment struct {
	value string
	ok    bool
}

func Some(v string) Segment { return Segment{value: v, ok: true} }
func None() Segment         { return Segment{} }

// Maybe treats the empty string as absent. Flag and config values go through here.
func Maybe(v string) Segment {
	if v == "" {
		return None()
	}
	return Some(v)
}

func (s Segment) Get() (string, bool) { return s.value, s.ok }
func (s Segment) Value() string       { return s.value }
func (s Segment) IsSet() bool         { return s.ok }

type Key struct {
	Project    string
	Tenant     Segment
	Company    Segment
	ExternalID Segment
	Locale     Segment
}

func Tenant(project, tenant string) Key {
	return Key{Project: project, ExternalID: Some(tenant)}
}

func Company(project string, tenant Segment, company string) Key {
	return Key{Project: project, Tenant: tenant, ExternalID: Some(company)}
}

func Job(project string, tenant Segment, company, requisitionID, locale string) Key {
	return Key{
		Project:    project,
		Tenant:     tenant,
		Company:    Some(company),
		ExternalID: Some(requisitionID),
		Locale:     Some(locale),
	}
}

// CompanyKey is the key of the company row a job key hangs off.
func (k Key) CompanyKey() Key {
	return Key{Project: k.Project, Tenant: k.Tenant, ExternalID: k.Company}
}

// TenantKey is the key of the tenant row a company or job key hangs off.
func (k Key) TenantKey() Key {
	return Key{Project: k.Project, ExternalID: k.Tenant}
}

func (k Key) Validate() error {
	if k.Project == "" {
		return domain.Invalid("project", "project id is required")
	}
	return nil
}

func (k Key) segments() []string {
	out := []string{k.Project}
	for _, s := range []Segment{k.Tenant, k.Company, k.ExternalID, k.Locale} {
		if s.ok {
			out = append(out, s.value)
		}
	}
	return out
}

func (k Key) String() string {
	var b strings.Builder
	for i, s := range k.segments() {
		if i > 0 {
			b.WriteRune(Delimiter)
		}
		writeEscaped(&b, s)
	}
	return b.String()
}

// Prefix matches every key below k and nothing that merely shares a leading substring.
func (k Key) Prefix() string {
	return k.String() + string(Delimiter)
}

func writeEscaped(b *strings.Builder, s string) {
	for _, r := range s {
		if r == Delimiter || r == Escape {
			b.WriteRune(Escape)
		}
		b.WriteRune(r)
	}
}

// Split undoes String: it returns the rendered segments in order.
func Split(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == Escape:
			escaped = true
		case r == Delimiter:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

// Depth is the number of rendered segments, project included.
func (k Key) Depth() int {
	return len(k.segments())
}
