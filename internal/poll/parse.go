package poll

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
)

// Ident is the natural key of an input line, read before full validation so
// failures can still be reported against it.
type Ident struct {
	Company       string `json:"company"`
	RequisitionID string `json:"requisition_id"`
	LanguageCode  string `json:"language_code"`
}

func (i Ident) complete() bool {
	return i.Company != "" && i.RequisitionID != "" && i.LanguageCode != ""
}

// Posting is a parsed job line. Job.Company is empty until the company is resolved.
type Posting struct {
	CompanyID string
	Job       domain.Job
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Errorf("want string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

type jobLine struct {
	RequisitionID      flexString                 `json:"requisition_id" validate:"required"`
	Title              string                     `json:"title" validate:"required"`
	Description        string                     `json:"description" validate:"required,max=100000"`
	Company            flexString                 `json:"company" validate:"required"`
	LanguageCode       string                     `json:"language_code" validate:"required,bcp47_language_tag"`
	Addresses          []string                   `json:"addresses" validate:"omitempty,dive,required"`
	EmploymentTypes    []string                   `json:"employment_types"`
	PromotionValue     json.RawMessage            `json:"promotion_value"`
	PostingPublishTime json.RawMessage            `json:"posting_publish_time"`
	PostingExpireTime  json.RawMessage            `json:"posting_expire_time"`
	CustomAttributes   map[string]json.RawMessage `json:"custom_attributes"`
	Department         string                     `json:"department"`
	Qualifications     string                     `json:"qualifications"`
	Responsibilities   string                     `json:"responsibilities"`
	Incentives         string                     `json:"incentives"`
	JobLevel           string                     `json:"job_level"`
	Visibility         string                     `json:"visibility"`
}

// ReadIdent extracts the natural key without validating anything else.
func ReadIdent(text string) (Ident, error) {
	if strings.TrimSpace(text) == "" {
		return Ident{}, errors.New("empty line")
	}
	var raw struct {
		Company       flexString `json:"company"`
		RequisitionID flexString `json:"requisition_id"`
		LanguageCode  string     `json:"language_code"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Ident{}, errors.Wrap(err, "decode line")
	}
	return Ident{
		Company:       strings.TrimSpace(string(raw.Company)),
		RequisitionID: strings.TrimSpace(string(raw.RequisitionID)),
		LanguageCode:  strings.TrimSpace(raw.LanguageCode),
	}, nil
}

// ParseJob validates the mandatory fields of one line and coerces the optional ones.
func ParseJob(text string) (Posting, error) {
	if strings.TrimSpace(text) == "" {
		return Posting{}, errors.New("empty line")
	}

	var in jobLine
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return Posting{}, errors.Wrap(err, "decode line")
	}
	in.RequisitionID = flexString(strings.TrimSpace(string(in.RequisitionID)))
	in.Company = flexString(strings.TrimSpace(string(in.Company)))
	in.LanguageCode = strings.TrimSpace(in.LanguageCode)

	if err := domain.Validate(in); err != nil {
		return Posting{}, err
	}
	if err := checkDescription(in.Description); err != nil {
		return Posting{}, err
	}

	j := domain.Job{
		RequisitionID:    string(in.RequisitionID),
		Title:            in.Title,
		Description:      in.Description,
		LanguageCode:     in.LanguageCode,
		Addresses:        in.Addresses,
		EmploymentTypes:  upper(in.EmploymentTypes),
		Department:       in.Department,
		Qualifications:   in.Qualifications,
		Responsibilities: in.Responsibilities,
		Incentives:       in.Incentives,
		JobLevel:         strings.ToUpper(in.JobLevel),
		Visibility:       strings.ToUpper(in.Visibility),
	}

	var err error
	if j.PromotionValue, err = parseInt(in.PromotionValue); err != nil {
		return Posting{}, domain.Invalid("promotion_value", "%v", err)
	}
	if j.PostingPublishTime, err = parseTime(in.PostingPublishTime); err != nil {
		return Posting{}, domain.Invalid("posting_publish_time", "%v", err)
	}
	if j.PostingExpireTime, err = parseTime(in.PostingExpireTime); err != nil {
		return Posting{}, domain.Invalid("posting_expire_time", "%v", err)
	}
	if !j.PostingPublishTime.IsZero() && !j.PostingExpireTime.IsZero() && j.PostingExpireTime.Before(j.PostingPublishTime) {
		return Posting{}, domain.Invalid("posting_expire_time", "expires before it is published")
	}
	if j.CustomAttributes, err = parseAttributes(in.CustomAttributes); err != nil {
		return Posting{}, err
	}

	return Posting{CompanyID: string(in.Company), Job: j}, nil
}

// checkDescription rejects descriptions that are only markup.
func checkDescription(desc string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return domain.Invalid("description", "unparseable HTML: %v", err)
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return domain.Invalid("description", "description has no text")
	}
	return nil
}

func upper(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == `""`
}

func parseInt(raw json.RawMessage) (int64, error) {
	if isNull(raw) {
		return 0, nil
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64)
	if err != nil {
		return 0, errors.Errorf("%q is not an integer", s)
	}
	return n, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime accepts RFC 3339, a bare date, or unix seconds.
func parseTime(raw json.RawMessage) (time.Time, error) {
	if isNull(raw) {
		return time.Time{}, nil
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	v := strings.TrimSpace(string(s))

	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("%q is not a timestamp", v)
}

// parseAttributes takes either the full attribute object or a bare value / list of values.
// Strings become string_values and integers long_values.
func parseAttributes(in map[string]json.RawMessage) (map[string]domain.CustomAttribute, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]domain.CustomAttribute, len(in))
	for name, raw := range in {
		raw = bytes.TrimSpace(raw)
		var attr domain.CustomAttribute

		if len(raw) > 0 && raw[0] == '{' {
			if err := json.Unmarshal(raw, &attr); err != nil {
				return nil, domain.Invalid("custom_attributes."+name, "%v", err)
			}
		} else {
			var values []any
			if len(raw) > 0 && raw[0] == '[' {
				if err := json.Unmarshal(raw, &values); err != nil {
					return nil, domain.Invalid("custom_attributes."+name, "%v", err)
				}
			} else {
				var v any
				if err := json.Unmarshal(raw, &v); err != nil {
					return nil, domain.Invalid("custom_attributes."+name, "%v", err)
				}
				values = []any{v}
			}
			for _, v := range values {
				switch x := v.(type) {
				case string:
					attr.StringValues = append(attr.StringValues, x)
				case float64:
					if x != float64(int64(x)) {
						return nil, domain.Invalid("custom_attributes."+name, "%v is not an integer", x)
					}
					attr.LongValues = append(attr.LongValues, int64(x))
				default:
					return nil, domain.Invalid("custom_attributes."+name, "unsupported value %v", v)
				}
			}
			attr.Filterable = true
		}

		if len(attr.StringValues) > 0 && len(attr.LongValues) > 0 {
			return nil, domain.Invalid("custom_attributes."+name, "mixes strings and integers")
		}
		if len(attr.StringValues) == 0 && len(attr.LongValues) == 0 {
			return nil, domain.Invalid("custom_attributes."+name, "has no values")
		}
		out[name] = attr
	}
	return out, nil
}
