package domain

import (
	"strings"
	"time"
)

type Kind string

const (
	KindTenant  Kind = "tenant"
	KindCompany Kind = "company"
	KindJob     Kind = "job"
)

// Title is the capitalised form the remote service uses in its messages ("Company ... already exists").
func (k Kind) Title() string {
	s := string(k)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Entity is either a Ref (mirror-only view) or one of the full remote shapes.
type Entity interface {
	Kind() Kind
	Reference() Ref
	isEntity()
}

// Ref is what the local mirror knows about an entity.
type Ref struct {
	Type         Kind      `json:"kind"`
	ExternalID   string    `json:"external_id"`
	Name         string    `json:"name"`
	LanguageCode string    `json:"language_code,omitempty"`
	CompanyName  string    `json:"company_name,omitempty"`
	TenantName   string    `json:"tenant_name,omitempty"`
	ProjectID    string    `json:"project_id"`
	Suspended    bool      `json:"suspended"`
	CreateTime   time.Time `json:"create_time"`

	// Stale is set when the mirror row points at a resource the remote service no longer has.
	Stale bool `json:"stale,omitempty"`
}

func (r Ref) Kind() Kind     { return r.Type }
func (r Ref) Reference() Ref { return r }
func (Ref) isEntity()        {}

type Tenant struct {
	Name       string `json:"name,omitempty"`
	ExternalID string `json:"external_id"`
}

func (Tenant) Kind() Kind { return KindTenant }
func (t Tenant) Reference() Ref {
	return Ref{Type: KindTenant, ExternalID: t.ExternalID, Name: t.Name}
}
func (Tenant) isEntity() {}

type Company struct {
	Name                string `json:"name,omitempty"`
	ExternalID          string `json:"external_id" validate:"required"`
	DisplayName         string `json:"display_name" validate:"required"`
	HeadquartersAddress string `json:"headquarters_address,omitempty"`
	WebsiteURI          string `json:"website_uri,omitempty" validate:"omitempty,url"`
	CareerSiteURI       string `json:"career_site_uri,omitempty" validate:"omitempty,url"`
	Size                string `json:"size,omitempty"`
	EEOText             string `json:"eeo_text,omitempty"`
	Suspended           bool   `json:"suspended,omitempty"`
}

func (Company) Kind() Kind { return KindCompany }
func (c Company) Reference() Ref {
	return Ref{Type: KindCompany, ExternalID: c.ExternalID, Name: c.Name, Suspended: c.Suspended}
}
func (Company) isEntity() {}

type CustomAttribute struct {
	StringValues      []string `json:"string_values,omitempty"`
	LongValues        []int64  `json:"long_values,omitempty"`
	Filterable        bool     `json:"filterable,omitempty"`
	KeywordSearchable bool     `json:"keyword_searchable,omitempty"`
}

type Job struct {
	Name               string                     `json:"name,omitempty"`
	Company            string                     `json:"company"`
	RequisitionID      string                     `json:"requisition_id"`
	Title              string                     `json:"title"`
	Description        string                     `json:"description"`
	LanguageCode       string                     `json:"language_code"`
	Addresses          []string                   `json:"addresses,omitempty"`
	EmploymentTypes    []string                   `json:"employment_types,omitempty"`
	PromotionValue     int64                      `json:"promotion_value,omitempty"`
	PostingPublishTime time.Time                  `json:"posting_publish_time,omitzero"`
	PostingExpireTime  time.Time                  `json:"posting_expire_time,omitzero"`
	CustomAttributes   map[string]CustomAttribute `json:"custom_attributes,omitempty"`
	Department         string                     `json:"department,omitempty"`
	Qualifications     string                     `json:"qualifications,omitempty"`
	Responsibilities   string                     `json:"responsibilities,omitempty"`
	Incentives         string                     `json:"incentives,omitempty"`
	JobLevel           string                     `json:"job_level,omitempty"`
	Visibility         string                     `json:"visibility,omitempty"`
}

func (Job) Kind() Kind { return KindJob }
func (j Job) Reference() Ref {
	return Ref{
		Type:         KindJob,
		ExternalID:   j.RequisitionID,
		Name:         j.Name,
		LanguageCode: j.LanguageCode,
		CompanyName:  j.Company,
	}
}
func (Job) isEntity() {}
