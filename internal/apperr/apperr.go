// Package apperr defines the typed error taxonomy for pipeline stages.
// Each error carries a stable code, an HTTP-style status, and optional
// structured details so callers can branch without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Stage identifies which pipeline stage produced an error.
type Stage string

const (
	StageCrawler    Stage = "crawler"
	StageLLM        Stage = "llm"
	StageNotability Stage = "notability"
	StageWikidata   Stage = "wikidata"
)

// Stable error codes.
const (
	CodeCrawlFailed    = "crawl_failed"
	CodeLLMQueryFailed = "llm_query_failed"
	CodeLLMRateLimited = "llm_rate_limited"
	CodeSearchFailed   = "search_failed"
	CodeJudgeFailed    = "judge_failed"
	CodeAuthFailed     = "wikidata_auth_failed"
	CodeEditFailed     = "wikidata_edit_failed"
	CodeEntityInvalid  = "entity_invalid"
	CodeRunActive      = "run_active"
)

// Error is a stage-tagged pipeline error.
type Error struct {
	Stage   Stage
	Code    string
	Status  int
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Crawler wraps an upstream crawl failure.
func Crawler(cause error, msg string) *Error {
	return &Error{Stage: StageCrawler, Code: CodeCrawlFailed, Status: 502, Message: msg, cause: cause}
}

// LLM wraps a model query failure.
func LLM(cause error, msg string) *Error {
	return &Error{Stage: StageLLM, Code: CodeLLMQueryFailed, Status: 502, Message: msg, cause: cause}
}

// LLMRateLimited wraps a model rate-limit rejection.
func LLMRateLimited(cause error, msg string) *Error {
	return &Error{Stage: StageLLM, Code: CodeLLMRateLimited, Status: 429, Message: msg, cause: cause}
}

// Notability wraps a search or judge failure.
func Notability(cause error, code, msg string) *Error {
	return &Error{Stage: StageNotability, Code: code, Status: 502, Message: msg, cause: cause}
}

// Wikidata wraps a remote publish failure.
func Wikidata(cause error, code string, status int, msg string) *Error {
	return &Error{Stage: StageWikidata, Code: code, Status: status, Message: msg, cause: cause}
}

// EntityInvalid reports a validation failure caught before any network call.
func EntityInvalid(msg string) *Error {
	return &Error{Stage: StageWikidata, Code: CodeEntityInvalid, Status: 422, Message: msg}
}

// RunActive reports a rejected duplicate trigger for a business that
// already has an active run.
func RunActive(businessID string) *Error {
	return &Error{
		Stage:   StageCrawler,
		Code:    CodeRunActive,
		Status:  409,
		Message: fmt.Sprintf("pipeline run already active for business %s", businessID),
	}
}

// FromStage extracts the stage tag from an error chain. Returns ("", false)
// if no *Error is present.
func FromStage(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}

// HasCode reports whether the error chain contains an *Error with the code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
