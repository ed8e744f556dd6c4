package cloudtalent

import (
	"time"

	"google.golang.org/api/googleapi"
	jobs "google.golang.org/api/jobs/v4"

	"ctsmirror/internal/domain"
)

func tenantFromAPI(t *jobs.Tenant) domain.Tenant {
	return domain.Tenant{Name: t.Name, ExternalID: t.ExternalId}
}

func companyToAPI(c domain.Company) *jobs.Company {
	return &jobs.Company{
		ExternalId:          c.ExternalID,
		DisplayName:         c.DisplayName,
		HeadquartersAddress: c.HeadquartersAddress,
		WebsiteUri:          c.WebsiteURI,
		CareerSiteUri:       c.CareerSiteURI,
		Size:                c.Size,
		EeoText:             c.EEOText,
	}
}

func companyFromAPI(c *jobs.Company) domain.Company {
	return domain.Company{
		Name:                c.Name,
		ExternalID:          c.ExternalId,
		DisplayName:         c.DisplayName,
		HeadquartersAddress: c.HeadquartersAddress,
		WebsiteURI:          c.WebsiteUri,
		CareerSiteURI:       c.CareerSiteUri,
		Size:                c.Size,
		EEOText:             c.EeoText,
		Suspended:           c.Suspended,
	}
}

func jobToAPI(j domain.Job) *jobs.Job {
	out := &jobs.Job{
		Name:             j.Name,
		Company:          j.Company,
		RequisitionId:    j.RequisitionID,
		Title:            j.Title,
		Description:      j.Description,
		LanguageCode:     j.LanguageCode,
		Addresses:        j.Addresses,
		EmploymentTypes:  j.EmploymentTypes,
		PromotionValue:   j.PromotionValue,
		Department:       j.Department,
		Qualifications:   j.Qualifications,
		Responsibilities: j.Responsibilities,
		Incentives:       j.Incentives,
		JobLevel:         j.JobLevel,
		Visibility:       j.Visibility,
	}
	if !j.PostingPublishTime.IsZero() {
		out.PostingPublishTime = j.PostingPublishTime.UTC().Format(time.RFC3339)
	}
	if !j.PostingExpireTime.IsZero() {
		out.PostingExpireTime = j.PostingExpireTime.UTC().Format(time.RFC3339)
	}
	if len(j.CustomAttributes) > 0 {
		out.CustomAttributes = make(map[string]jobs.CustomAttribute, len(j.CustomAttributes))
		for k, v := range j.CustomAttributes {
			out.CustomAttributes[k] = jobs.CustomAttribute{
				StringValues:      v.StringValues,
				LongValues:        googleapi.Int64s(v.LongValues),
				Filterable:        v.Filterable,
				KeywordSearchable: v.KeywordSearchable,
			}
		}
	}
	return out
}

func jobFromAPI(j *jobs.Job) domain.Job {
	out := domain.Job{
		Name:             j.Name,
		Company:          j.Company,
		RequisitionID:    j.RequisitionId,
		Title:            j.Title,
		Description:      j.Description,
		LanguageCode:     j.LanguageCode,
		Addresses:        j.Addresses,
		EmploymentTypes:  j.EmploymentTypes,
		PromotionValue:   j.PromotionValue,
		Department:       j.Department,
		Qualifications:   j.Qualifications,
		Responsibilities: j.Responsibilities,
		Incentives:       j.Incentives,
		JobLevel:         j.JobLevel,
		Visibility:       j.Visibility,
	}
	out.PostingPublishTime, _ = time.Parse(time.RFC3339, j.PostingPublishTime)
	out.PostingExpireTime, _ = time.Parse(time.RFC3339, j.PostingExpireTime)
	if len(j.CustomAttributes) > 0 {
		out.CustomAttributes = make(map[string]domain.CustomAttribute, len(j.CustomAttributes))
		for k, v := range j.CustomAttributes {
			out.CustomAttributes[k] = domain.CustomAttribute{
				StringValues:      v.StringValues,
				LongValues:        []int64(v.LongValues),
				Filterable:        v.Filterable,
				KeywordSearchable: v.KeywordSearchable,
			}
		}
	}
	return out
}
