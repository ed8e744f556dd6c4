package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsmirror/internal/domain"
)

func TestParseJobFull(t *testing.T) {
	p, err := ParseJob(`{
		"requisition_id": 1042,
		"title": "Engineer",
		"description": "<p>Build <b>things</b></p>",
		"company": "acme",
		"language_code": "en-US",
		"addresses": ["1 Main St"],
		"employment_types": ["full_time"],
		"promotion_value": "5",
		"posting_publish_time": "2024-05-01",
		"posting_expire_time": 1717200000,
		"custom_attributes": {
			"grade": 3,
			"teams": ["core", "infra"],
			"raw": {"string_values": ["x"], "keyword_searchable": true}
		},
		"job_level": "experienced"
	}`)
	require.NoError(t, err)

	assert.Equal(t, "acme", p.CompanyID)
	assert.Empty(t, p.Job.Company)
	assert.Equal(t, "1042", p.Job.RequisitionID)
	assert.Equal(t, []string{"FULL_TIME"}, p.Job.EmploymentTypes)
	assert.Equal(t, "EXPERIENCED", p.Job.JobLevel)
	assert.Equal(t, int64(5), p.Job.PromotionValue)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), p.Job.PostingPublishTime)
	assert.Equal(t, time.Unix(1717200000, 0).UTC(), p.Job.PostingExpireTime)

	assert.Equal(t, domain.CustomAttribute{LongValues: []int64{3}, Filterable: true}, p.Job.CustomAttributes["grade"])
	assert.Equal(t, []string{"core", "infra"}, p.Job.CustomAttributes["teams"].StringValues)
	assert.True(t, p.Job.CustomAttributes["raw"].KeywordSearchable)
	assert.False(t, p.Job.CustomAttributes["raw"].Filterable)
}

func TestParseJobRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "  ",
		"not json":      `{"title":`,
		"missing title": `{"requisition_id":"R1","description":"d","company":"acme","language_code":"en"}`,
		"bad language":  `{"requisition_id":"R1","title":"t","description":"d","company":"acme","language_code":"english please"}`,
		"markup only":   `{"requisition_id":"R1","title":"t","description":"<p> </p>","company":"acme","language_code":"en"}`,
		"bad promotion": `{"requisition_id":"R1","title":"t","description":"d","company":"acme","language_code":"en","promotion_value":"high"}`,
		"bad timestamp": `{"requisition_id":"R1","title":"t","description":"d","company":"acme","language_code":"en","posting_publish_time":"soon"}`,
		"expires early": `{"requisition_id":"R1","title":"t","description":"d","company":"acme","language_code":"en","posting_publish_time":"2024-05-02","posting_expire_time":"2024-05-01"}`,
		"mixed attr":    `{"requisition_id":"R1","title":"t","description":"d","company":"acme","language_code":"en","custom_attributes":{"a":["x",1]}}`,
		"fractional":    `{"requisition_id":"R1","title":"t","description":"d","company":"acme","language_code":"en","custom_attributes":{"a":1.5}}`,
		"blank company": `{"requisition_id":"R1","title":"t","description":"d","company":"  ","language_code":"en"}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJob(line)
			require.Error(t, err)
		})
	}
}

func TestParseJobValidationFields(t *testing.T) {
	_, err := ParseJob(`{"requisition_id":"R1","company":"acme","language_code":"en"}`)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title,description", ve.Field)
}

func TestReadIdent(t *testing.T) {
	id, err := ReadIdent(`{"company":" acme ","requisition_id":7,"language_code":"en","title":""}`)
	require.NoError(t, err)
	assert.Equal(t, Ident{Company: "acme", RequisitionID: "7", LanguageCode: "en"}, id)
	assert.True(t, id.complete())

	id, err = ReadIdent(`{"company":"acme"}`)
	require.NoError(t, err)
	assert.False(t, id.complete())

	_, err = ReadIdent("")
	require.Error(t, err)
}
