package wikidata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// session holds the request-scoped authentication state for one publish
// call: a cookie jar bound to a single http.Client plus a CSRF edit token.
// Sessions are never shared or cached across publish calls.
type session struct {
	apiURL    string
	http      *http.Client
	userAgent string
	csrfToken string
}

// newSession performs the full login handshake: fetch a login token,
// submit credentials bound to that token, then fetch a CSRF edit token
// under the established cookie session.
func (c *httpClient) newSession(ctx context.Context, apiURL string) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: create cookie jar")
	}

	s := &session{
		apiURL:    apiURL,
		userAgent: c.userAgent,
		http: &http.Client{
			Timeout:   c.timeout,
			Jar:       jar,
			Transport: c.transport,
		},
	}

	loginToken, err := s.fetchToken(ctx, "login")
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: fetch login token")
	}

	if err := s.login(ctx, c.creds, loginToken); err != nil {
		return nil, err
	}

	csrf, err := s.fetchToken(ctx, "csrf")
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: fetch csrf token")
	}
	s.csrfToken = csrf

	return s, nil
}

type tokenResponse struct {
	Query struct {
		Tokens map[string]string `json:"tokens"`
	} `json:"query"`
	Error *APIError `json:"error"`
}

// fetchToken requests a token of the given type ("login" or "csrf").
func (s *session) fetchToken(ctx context.Context, tokenType string) (string, error) {
	params := url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {tokenType},
		"format": {"json"},
	}

	var resp tokenResponse
	if err := s.get(ctx, params, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	token := resp.Query.Tokens[tokenType+"token"]
	if token == "" {
		return "", eris.Errorf("wikidata: empty %s token", tokenType)
	}
	return token, nil
}

type loginResponse struct {
	Login struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	} `json:"login"`
	Error *APIError `json:"error"`
}

// login submits credentials bound to the login token. The session cookie
// is captured by the jar on success.
func (s *session) login(ctx context.Context, creds Credentials, loginToken string) error {
	form := url.Values{
		"action":     {"login"},
		"lgname":     {creds.Username},
		"lgpassword": {creds.Password},
		"lgtoken":    {loginToken},
		"format":     {"json"},
	}

	var resp loginResponse
	if err := s.post(ctx, form, &resp); err != nil {
		return eris.Wrap(err, "wikidata: login request")
	}
	if resp.Error != nil {
		return eris.Wrap(resp.Error, "wikidata: login")
	}
	if resp.Login.Result != "Success" {
		return eris.Errorf("wikidata: login rejected: %s %s", resp.Login.Result, resp.Login.Reason)
	}
	return nil
}

func (s *session) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "wikidata: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	return s.do(req, out)
}

func (s *session) post(ctx context.Context, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "wikidata: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, out)
}

func (s *session) do(req *http.Request, out any) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "wikidata: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "wikidata: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("wikidata: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "wikidata: unmarshal response")
	}
	return nil
}
