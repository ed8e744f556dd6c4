package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCompany(t *testing.T) {
	require.NoError(t, Validate(Company{ExternalID: "acme", DisplayName: "Acme"}))

	err := Validate(Company{ExternalID: "acme", WebsiteURI: "not a url"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "display_name,website_uri", ve.Field)
	assert.Contains(t, ve.Msg, "display_name is required")
}

func TestKindTitle(t *testing.T) {
	assert.Equal(t, "Company", KindCompany.Title())
	assert.Equal(t, "", Kind("").Title())
}

func TestParseErrorLine(t *testing.T) {
	err := &ParseError{Line: 7, Err: Invalid("title", "title is required")}
	assert.Equal(t, "line 7: invalid argument title: title is required", err.Error())

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
