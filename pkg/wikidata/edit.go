package wikidata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidEntity is returned when an entity document is missing required
// labels or descriptions. It is raised before any network call.
var ErrInvalidEntity = eris.New("wikidata: entity missing required labels or descriptions")

func (c *httpClient) Publish(ctx context.Context, entity EntityData, opts PublishOptions) (*EditResult, error) {
	if !entity.valid() {
		return nil, ErrInvalidEntity
	}

	// De-duplication runs on every publish attempt, including automated
	// re-publishes: an existing label match switches to the update path.
	existing, err := c.SearchEntity(ctx, entity.Labels["en"].Value, opts.Target)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: dedup search")
	}

	sess, err := c.newSession(ctx, c.apiURL(opts.Target))
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &EditResult{
			Success: true,
			QID:     existing,
			Created: existing == "",
			DryRun:  true,
		}, nil
	}

	if existing != "" {
		return c.edit(ctx, sess, existing, entity)
	}
	return c.edit(ctx, sess, "", entity)
}

func (c *httpClient) Update(ctx context.Context, qid string, entity EntityData, opts PublishOptions) (*EditResult, error) {
	if !entity.valid() {
		return nil, ErrInvalidEntity
	}
	if qid == "" {
		return nil, eris.New("wikidata: update requires a qid")
	}

	sess, err := c.newSession(ctx, c.apiURL(opts.Target))
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &EditResult{Success: true, QID: qid, DryRun: true}, nil
	}

	return c.edit(ctx, sess, qid, entity)
}

type editResponse struct {
	Success int `json:"success"`
	Entity  struct {
		ID string `json:"id"`
	} `json:"entity"`
	Error *APIError `json:"error"`
}

// edit submits the entity document via a single wbeditentity action. An
// empty qid creates a new item; otherwise the existing item is updated.
// A structured API error is returned inside the EditResult, not as a Go
// error, so callers can branch on outcome.
func (c *httpClient) edit(ctx context.Context, sess *session, qid string, entity EntityData) (*EditResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "wikidata: rate limit")
		}
	}

	data, err := json.Marshal(editPayload(entity))
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: marshal entity")
	}

	form := url.Values{
		"action": {"wbeditentity"},
		"format": {"json"},
		"token":  {sess.csrfToken},
		"data":   {string(data)},
	}
	if qid == "" {
		form.Set("new", "item")
	} else {
		form.Set("id", qid)
	}

	var resp editResponse
	if err := sess.post(ctx, form, &resp); err != nil {
		return nil, eris.Wrap(err, "wikidata: edit request")
	}

	if resp.Error != nil {
		return &EditResult{Success: false, QID: qid, Error: resp.Error}, nil
	}
	if resp.Success != 1 || resp.Entity.ID == "" {
		return &EditResult{
			Success: false,
			QID:     qid,
			Error:   &APIError{Code: "unexpected-response", Info: "edit response missing entity id"},
		}, nil
	}

	return &EditResult{
		Success: true,
		QID:     resp.Entity.ID,
		Created: qid == "",
	}, nil
}

// editPayload converts the simplified claim values into the wire form the
// edit action expects.
func editPayload(entity EntityData) map[string]any {
	payload := map[string]any{
		"labels":       entity.Labels,
		"descriptions": entity.Descriptions,
	}

	if len(entity.Claims) == 0 {
		return payload
	}

	claims := make(map[string][]map[string]any, len(entity.Claims))
	for pid, values := range entity.Claims {
		for _, v := range values {
			claims[pid] = append(claims[pid], map[string]any{
				"mainsnak": map[string]any{
					"snaktype":  "value",
					"property":  pid,
					"datavalue": datavalue(v),
				},
				"type": "statement",
				"rank": "normal",
			})
		}
	}
	payload["claims"] = claims
	return payload
}

// datavalue encodes a ClaimValue. Item references become entity-id values;
// URLs ride as plain strings (the datatype lives on the property).
func datavalue(v ClaimValue) map[string]any {
	switch v.Type {
	case "wikibase-entityid":
		return map[string]any{
			"type": "wikibase-entityid",
			"value": map[string]any{
				"entity-type": "item",
				"id":          v.Value,
			},
		}
	default:
		return map[string]any{
			"type":  "string",
			"value": v.Value,
		}
	}
}

type searchResponse struct {
	Search []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"search"`
	Error *APIError `json:"error"`
}

func (c *httpClient) SearchEntity(ctx context.Context, query, target string) (string, error) {
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {query},
		"language": {"en"},
		"type":     {"item"},
		"limit":    {"5"},
		"format":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(target)+"?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "wikidata: create search request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	httpc := &http.Client{Timeout: c.timeout, Transport: c.transport}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "wikidata: search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", eris.Wrap(err, "wikidata: decode search response")
	}
	if result.Error != nil {
		return "", eris.Wrap(result.Error, "wikidata: search")
	}

	// Only an exact label match counts as a duplicate; fuzzy prefix hits
	// from the suggester must not hijack the create path.
	for _, hit := range result.Search {
		if strings.EqualFold(hit.Label, query) {
			return hit.ID, nil
		}
	}
	return "", nil
}
