// Package store persists businesses, crawl data, and fingerprint history.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mentionlab/visibility-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// DueFilter selects businesses for a scheduled batch run.
type DueFilter struct {
	Now time.Time

	// CatchMissed includes businesses whose scheduled window has already
	// passed, not just those due in the current window.
	CatchMissed bool

	Limit int
}

// Store defines the persistence interface for the visibility pipeline.
// Fingerprint history is append-only: a new run inserts a new row and
// prior rows are never mutated.
type Store interface {
	// Businesses
	CreateBusiness(ctx context.Context, b *model.Business) error
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	ListDueBusinesses(ctx context.Context, filter DueFilter) ([]model.Business, error)
	UpdateBusinessStatus(ctx context.Context, id string, status model.PipelineStatus, message string) error
	SetBusinessQID(ctx context.Context, id, qid string) error
	SetNextRunAt(ctx context.Context, id string, at time.Time) error

	// Crawl data
	SaveCrawlData(ctx context.Context, businessID string, data *model.CrawlData) error
	GetCrawlData(ctx context.Context, businessID string) (*model.CrawlData, error)

	// Fingerprint history
	InsertFingerprint(ctx context.Context, analysis *model.FingerprintAnalysis) error
	ListFingerprints(ctx context.Context, businessID string, limit int) ([]model.FingerprintAnalysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
