package wikidata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWiki is an in-process MediaWiki API implementing just enough of the
// protocol to exercise the full token, login, csrf, search, edit sequence.
type fakeWiki struct {
	t *testing.T

	searchHits  []map[string]string // label/id pairs returned by wbsearchentities
	editError   *APIError
	nextQID     string
	rejectLogin bool

	requests   int
	loginCalls int
	editCalls  int
	editForms  []map[string]string
	lastUA     string
}

func (f *fakeWiki) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests++
		f.lastUA = r.Header.Get("User-Agent")
		require.NoError(f.t, r.ParseForm())

		switch r.Form.Get("action") {
		case "query":
			f.tokens(w, r)
		case "login":
			f.login(w, r)
		case "wbsearchentities":
			f.search(w)
		case "wbeditentity":
			f.edit(w, r)
		default:
			f.t.Errorf("unexpected action %q", r.Form.Get("action"))
		}
	})
}

func (f *fakeWiki) tokens(w http.ResponseWriter, r *http.Request) {
	tokenType := r.Form.Get("type")
	if tokenType == "csrf" {
		// CSRF tokens are only issued under the session cookie captured
		// at login.
		if _, err := r.Cookie("testsession"); err != nil {
			writeJSON(w, map[string]any{"query": map[string]any{"tokens": map[string]string{}}})
			return
		}
	}
	writeJSON(w, map[string]any{
		"query": map[string]any{
			"tokens": map[string]string{tokenType + "token": tokenType + "-token-1"},
		},
	})
}

func (f *fakeWiki) login(w http.ResponseWriter, r *http.Request) {
	f.loginCalls++
	assert.Equal(f.t, "bot-user", r.Form.Get("lgname"))
	assert.Equal(f.t, "bot-pass", r.Form.Get("lgpassword"))
	assert.Equal(f.t, "login-token-1", r.Form.Get("lgtoken"))

	if f.rejectLogin {
		writeJSON(w, map[string]any{"login": map[string]string{"result": "Failed", "reason": "bad password"}})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "testsession", Value: "s1"})
	writeJSON(w, map[string]any{"login": map[string]string{"result": "Success"}})
}

func (f *fakeWiki) search(w http.ResponseWriter) {
	hits := make([]map[string]string, 0, len(f.searchHits))
	hits = append(hits, f.searchHits...)
	writeJSON(w, map[string]any{"search": hits})
}

func (f *fakeWiki) edit(w http.ResponseWriter, r *http.Request) {
	f.editCalls++
	form := map[string]string{}
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}
	f.editForms = append(f.editForms, form)

	assert.Equal(f.t, "csrf-token-1", r.Form.Get("token"))

	if f.editError != nil {
		writeJSON(w, map[string]any{"error": f.editError})
		return
	}

	qid := r.Form.Get("id")
	if qid == "" {
		qid = f.nextQID
	}
	writeJSON(w, map[string]any{"success": 1, "entity": map[string]string{"id": qid}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeWiki) (Client, *httptest.Server) {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c := NewClient(
		Credentials{Username: "bot-user", Password: "bot-pass"},
		WithTestBaseURL(srv.URL),
		WithRateLimit(1000),
	)
	return c, srv
}

func sampleEntity() EntityData {
	return EntityData{
		Labels: map[string]Term{
			"en": {Language: "en", Value: "Acme Dental"},
		},
		Descriptions: map[string]Term{
			"en": {Language: "en", Value: "dental clinic in Portland, OR"},
		},
		Claims: map[string][]ClaimValue{
			"P31":  {{Type: "wikibase-entityid", Value: "Q4830453"}},
			"P856": {{Type: "url", Value: "https://acmedental.example.com"}},
		},
	}
}

func TestPublish_CreatesNewEntity(t *testing.T) {
	fake := &fakeWiki{t: t, nextQID: "Q123"}
	c, _ := newTestClient(t, fake)

	res, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Q123", res.QID)
	assert.True(t, res.Created)
	assert.Nil(t, res.Error)

	assert.Equal(t, 1, fake.loginCalls)
	require.Equal(t, 1, fake.editCalls)
	form := fake.editForms[0]
	assert.Equal(t, "item", form["new"])
	assert.Empty(t, form["id"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(form["data"]), &payload))
	assert.Contains(t, payload, "labels")
	assert.Contains(t, payload, "descriptions")
	assert.Contains(t, payload, "claims")
}

func TestPublish_ExactLabelMatchRoutesToUpdate(t *testing.T) {
	fake := &fakeWiki{
		t:          t,
		searchHits: []map[string]string{{"id": "Q77", "label": "Acme Dental"}},
	}
	c, _ := newTestClient(t, fake)

	res, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Q77", res.QID)
	assert.False(t, res.Created)

	require.Equal(t, 1, fake.editCalls)
	assert.Equal(t, "Q77", fake.editForms[0]["id"])
	assert.Empty(t, fake.editForms[0]["new"])
}

func TestPublish_FuzzySearchHitStillCreates(t *testing.T) {
	fake := &fakeWiki{
		t:          t,
		nextQID:    "Q200",
		searchHits: []map[string]string{{"id": "Q99", "label": "Acme Dental Group"}},
	}
	c, _ := newTestClient(t, fake)

	res, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "Q200", res.QID)
	assert.Equal(t, "item", fake.editForms[0]["new"])
}

func TestPublish_DryRunAuthenticatesButNeverEdits(t *testing.T) {
	fake := &fakeWiki{t: t}
	c, _ := newTestClient(t, fake)

	res, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.DryRun)
	assert.True(t, res.Created)
	assert.Empty(t, res.QID)

	// The handshake runs for real so credential problems surface in dry
	// runs, but no edit is ever submitted.
	assert.Equal(t, 1, fake.loginCalls)
	assert.Equal(t, 0, fake.editCalls)
}

func TestPublish_StructuredErrorInsideResult(t *testing.T) {
	fake := &fakeWiki{
		t:         t,
		editError: &APIError{Code: "failed-save", Info: "The save has failed."},
	}
	c, _ := newTestClient(t, fake)

	res, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{})
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "failed-save", res.Error.Code)
	assert.Equal(t, "The save has failed.", res.Error.Info)
}

func TestPublish_InvalidEntityRejectedBeforeNetwork(t *testing.T) {
	fake := &fakeWiki{t: t}
	c, _ := newTestClient(t, fake)

	entity := sampleEntity()
	entity.Descriptions = map[string]Term{}

	_, err := c.Publish(context.Background(), entity, PublishOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEntity)
	assert.Equal(t, 0, fake.requests)
}

func TestPublish_LoginRejected(t *testing.T) {
	fake := &fakeWiki{t: t, rejectLogin: true}
	c, _ := newTestClient(t, fake)

	_, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login rejected")
	assert.Equal(t, 0, fake.editCalls)
}

func TestUpdate_EditsByQID(t *testing.T) {
	fake := &fakeWiki{t: t}
	c, _ := newTestClient(t, fake)

	res, err := c.Update(context.Background(), "Q55", sampleEntity(), PublishOptions{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Q55", res.QID)
	assert.False(t, res.Created)
	assert.Equal(t, "Q55", fake.editForms[0]["id"])
}

func TestUpdate_RequiresQID(t *testing.T) {
	fake := &fakeWiki{t: t}
	c, _ := newTestClient(t, fake)

	_, err := c.Update(context.Background(), "", sampleEntity(), PublishOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, fake.requests)
}

func TestSearchEntity_ExactMatchOnly(t *testing.T) {
	fake := &fakeWiki{
		t: t,
		searchHits: []map[string]string{
			{"id": "Q1", "label": "Acme Dental Group"},
			{"id": "Q2", "label": "acme dental"},
		},
	}
	c, _ := newTestClient(t, fake)

	qid, err := c.SearchEntity(context.Background(), "Acme Dental", TargetTest)
	require.NoError(t, err)
	// Case-insensitive exact match; the fuzzy prefix hit is skipped.
	assert.Equal(t, "Q2", qid)

	qid, err = c.SearchEntity(context.Background(), "Nonexistent Business", TargetTest)
	require.NoError(t, err)
	assert.Empty(t, qid)
}

func TestWithUserAgent(t *testing.T) {
	fake := &fakeWiki{t: t, nextQID: "Q9"}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c := NewClient(
		Credentials{Username: "bot-user", Password: "bot-pass"},
		WithTestBaseURL(srv.URL),
		WithRateLimit(1000),
		WithUserAgent("mentionlab-publisher/2.0 (ops@mentionlab.example)"),
	)

	_, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mentionlab-publisher/2.0 (ops@mentionlab.example)", fake.lastUA)

	// An empty override keeps the default, so an unset config value never
	// blanks the header.
	bare := NewClient(Credentials{}, WithUserAgent("")).(*httpClient)
	assert.Equal(t, defaultUserAgent, bare.userAgent)
}

func TestUnknownTargetFallsBackToTest(t *testing.T) {
	fake := &fakeWiki{t: t, nextQID: "Q5"}
	c, srv := newTestClient(t, fake)

	// The production URL points nowhere; only the test endpoint is live.
	hc := c.(*httpClient)
	hc.prodURL = "http://127.0.0.1:1/api.php"

	res, err := c.Publish(context.Background(), sampleEntity(), PublishOptions{Target: "staging"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, srv.URL, hc.apiURL("staging"))
}
