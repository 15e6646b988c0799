// Package entity maps a business profile plus crawl data into the
// labels/descriptions/claims document submitted to the remote knowledge
// base.
package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mentionlab/visibility-engine/internal/model"
)

// Well-known remote property and item identifiers.
const (
	propInstanceOf      = "P31"
	propOfficialWebsite = "P856"
	propOfficialName    = "P1448"
	propCountry         = "P17"

	itemBusiness = "Q4830453"
)

// countryItems maps common country names to their remote item IDs.
var countryItems = map[string]string{
	"united states":  "Q30",
	"usa":            "Q30",
	"us":             "Q30",
	"canada":         "Q16",
	"united kingdom": "Q145",
	"uk":             "Q145",
	"australia":      "Q408",
	"germany":        "Q183",
}

// Limits bounds the size of the built document. Zero values mean unbounded.
type Limits struct {
	MaxProperties int
	MaxQIDs       int
}

// Build constructs the entity document for a business. An instance-of
// claim is always emitted, and an official-website claim whenever a URL
// is known, even with no crawl data. Claims over budget are truncated
// lowest confidence first.
func Build(bctx model.BusinessContext, limits Limits) model.EntityDocument {
	doc := model.EntityDocument{
		Labels: map[string]model.Term{
			"en": {Language: "en", Value: bctx.Name},
		},
		Descriptions: map[string]model.Term{
			"en": {Language: "en", Value: describe(bctx)},
		},
		Claims: map[string][]model.ClaimValue{},
	}

	add := func(pid string, v model.ClaimValue) {
		doc.Claims[pid] = append(doc.Claims[pid], v)
	}

	add(propInstanceOf, model.ClaimValue{
		Type:       model.ClaimTypeItem,
		Value:      itemBusiness,
		Confidence: 1.0,
	})
	if bctx.URL != "" {
		add(propOfficialWebsite, model.ClaimValue{
			Type:       model.ClaimTypeURL,
			Value:      bctx.URL,
			Confidence: 0.95,
		})
	}
	add(propOfficialName, model.ClaimValue{
		Type:       model.ClaimTypeString,
		Value:      bctx.Name,
		Confidence: 0.9,
	})
	if bctx.Location != nil {
		if qid, ok := countryItems[strings.ToLower(bctx.Location.Country)]; ok {
			add(propCountry, model.ClaimValue{
				Type:       model.ClaimTypeItem,
				Value:      qid,
				Confidence: 0.8,
			})
		}
	}

	doc.Claims = truncate(doc.Claims, limits)
	return doc
}

// describe builds the short English description, preferring the business
// category and falling back to the crawled homepage title.
func describe(bctx model.BusinessContext) string {
	kind := strings.ToLower(bctx.Category)
	if kind == "" && bctx.CrawlData != nil && len(bctx.CrawlData.Pages) > 0 {
		if title := strings.TrimSpace(bctx.CrawlData.Pages[0].Title); title != "" && len(title) < 80 {
			kind = strings.ToLower(title)
		}
	}
	if kind == "" {
		kind = "business"
	}

	if bctx.Location != nil && bctx.Location.City != "" {
		place := bctx.Location.City
		if bctx.Location.State != "" {
			place += ", " + bctx.Location.State
		}
		return fmt.Sprintf("%s in %s", kind, place)
	}
	return kind
}

// truncate enforces the property and item-reference budgets by keeping
// the highest-confidence claims and dropping the rest, never erroring.
func truncate(claims map[string][]model.ClaimValue, limits Limits) map[string][]model.ClaimValue {
	type flat struct {
		pid   string
		value model.ClaimValue
	}

	all := make([]flat, 0, len(claims))
	for pid, values := range claims {
		for _, v := range values {
			all = append(all, flat{pid: pid, value: v})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].value.Confidence > all[j].value.Confidence
	})

	out := make(map[string][]model.ClaimValue, len(claims))
	qids := 0
	for _, f := range all {
		_, existing := out[f.pid]
		if !existing && limits.MaxProperties > 0 && len(out) >= limits.MaxProperties {
			continue
		}
		if f.value.Type == model.ClaimTypeItem {
			if limits.MaxQIDs > 0 && qids >= limits.MaxQIDs {
				continue
			}
			qids++
		}
		out[f.pid] = append(out[f.pid], f.value)
	}
	return out
}
