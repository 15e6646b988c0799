package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionlab/visibility-engine/internal/model"
)

func fullContext() model.BusinessContext {
	return model.BusinessContext{
		BusinessID: "biz-1",
		Name:       "Acme Dental",
		URL:        "https://acmedental.example.com",
		Category:   "Dental Clinic",
		Location:   &model.Location{City: "Portland", State: "OR", Country: "United States"},
	}
}

func TestBuild_FullProfile(t *testing.T) {
	doc := Build(fullContext(), Limits{})

	assert.Equal(t, "Acme Dental", doc.Labels["en"].Value)
	assert.Equal(t, "dental clinic in Portland, OR", doc.Descriptions["en"].Value)

	require.Len(t, doc.Claims["P31"], 1)
	assert.Equal(t, "Q4830453", doc.Claims["P31"][0].Value)
	assert.Equal(t, model.ClaimTypeItem, doc.Claims["P31"][0].Type)

	require.Len(t, doc.Claims["P856"], 1)
	assert.Equal(t, "https://acmedental.example.com", doc.Claims["P856"][0].Value)
	assert.Equal(t, model.ClaimTypeURL, doc.Claims["P856"][0].Type)

	require.Len(t, doc.Claims["P1448"], 1)
	assert.Equal(t, "Acme Dental", doc.Claims["P1448"][0].Value)

	require.Len(t, doc.Claims["P17"], 1)
	assert.Equal(t, "Q30", doc.Claims["P17"][0].Value)
}

func TestBuild_MinimalProfileStillHasInstanceOf(t *testing.T) {
	doc := Build(model.BusinessContext{Name: "Acme Dental"}, Limits{})

	require.Len(t, doc.Claims["P31"], 1)
	assert.Empty(t, doc.Claims["P856"])
	assert.Empty(t, doc.Claims["P17"])
	assert.Equal(t, "business", doc.Descriptions["en"].Value)
	assert.True(t, Validate(doc))
}

func TestBuild_DescriptionFallsBackToHomepageTitle(t *testing.T) {
	bctx := model.BusinessContext{
		Name: "Acme Dental",
		CrawlData: &model.CrawlData{Pages: []model.CrawledPage{
			{Title: "Family Dentistry in Portland"},
		}},
	}

	doc := Build(bctx, Limits{})
	assert.Equal(t, "family dentistry in portland", doc.Descriptions["en"].Value)
}

func TestBuild_LongHomepageTitleIgnored(t *testing.T) {
	long := "Acme Dental | Portland's Most Trusted Family and Cosmetic Dentistry Practice Since 1987"
	bctx := model.BusinessContext{
		Name:      "Acme Dental",
		CrawlData: &model.CrawlData{Pages: []model.CrawledPage{{Title: long}}},
	}

	doc := Build(bctx, Limits{})
	assert.Equal(t, "business", doc.Descriptions["en"].Value)
}

func TestBuild_UnknownCountryOmitted(t *testing.T) {
	bctx := fullContext()
	bctx.Location.Country = "Atlantis"

	doc := Build(bctx, Limits{})
	assert.Empty(t, doc.Claims["P17"])
}

func TestBuild_PropertyBudgetKeepsHighestConfidence(t *testing.T) {
	doc := Build(fullContext(), Limits{MaxProperties: 2})

	// Instance-of (1.0) and website (0.95) survive; the rest are dropped.
	assert.Len(t, doc.Claims, 2)
	assert.NotEmpty(t, doc.Claims["P31"])
	assert.NotEmpty(t, doc.Claims["P856"])
	assert.Empty(t, doc.Claims["P1448"])
	assert.Empty(t, doc.Claims["P17"])
}

func TestBuild_QIDBudget(t *testing.T) {
	doc := Build(fullContext(), Limits{MaxQIDs: 1})

	// Both item claims compete for one slot; instance-of wins on confidence.
	assert.NotEmpty(t, doc.Claims["P31"])
	assert.Empty(t, doc.Claims["P17"])
	// Non-item claims are unaffected.
	assert.NotEmpty(t, doc.Claims["P856"])
	assert.NotEmpty(t, doc.Claims["P1448"])
}

func TestValidate(t *testing.T) {
	doc := Build(fullContext(), Limits{})
	assert.True(t, Validate(doc))

	noDescription := doc
	noDescription.Descriptions = map[string]model.Term{}
	assert.False(t, Validate(noDescription))

	noLabel := Build(fullContext(), Limits{})
	noLabel.Labels["en"] = model.Term{Language: "en"}
	assert.False(t, Validate(noLabel))

	wrongLanguage := Build(fullContext(), Limits{})
	wrongLanguage.Labels = map[string]model.Term{
		"de": {Language: "de", Value: "Acme Dental"},
	}
	assert.False(t, Validate(wrongLanguage))
}
