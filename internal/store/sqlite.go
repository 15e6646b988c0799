package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mentionlab/visibility-engine/internal/model"
)

// SQLiteStore implements Store on a local SQLite file, for CLI use and
// development without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite handles one writer at a time; serialize access through a
	// single connection to avoid SQLITE_BUSY under the batch pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: pragma")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	url             TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	country         TEXT NOT NULL DEFAULT '',
	auto_publish    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	status_message  TEXT NOT NULL DEFAULT '',
	qid             TEXT NOT NULL DEFAULT '',
	last_crawled_at TIMESTAMP,
	next_run_at     TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_data (
	business_id TEXT PRIMARY KEY REFERENCES businesses(id),
	data        TEXT NOT NULL,
	crawled_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS fingerprints (
	id                TEXT PRIMARY KEY,
	business_id       TEXT NOT NULL REFERENCES businesses(id),
	business_name     TEXT NOT NULL,
	visibility_score  INTEGER NOT NULL,
	mention_rate      REAL NOT NULL,
	sentiment_score   REAL NOT NULL,
	accuracy_score    REAL NOT NULL,
	avg_rank_position REAL,
	llm_results       TEXT NOT NULL,
	leaderboard       TEXT,
	tokens_used       INTEGER NOT NULL DEFAULT 0,
	estimated_cost    REAL NOT NULL DEFAULT 0,
	generated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(status);
CREATE INDEX IF NOT EXISTS idx_businesses_next_run_at ON businesses(next_run_at);
CREATE INDEX IF NOT EXISTS idx_fingerprints_business ON fingerprints(business_id, generated_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = model.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO businesses (id, name, url, category, city, state, country, auto_publish, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.URL, b.Category, b.City, b.State, b.Country,
		b.AutoPublish, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: create business %s", b.ID)
	}
	return nil
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var b model.Business
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, category, city, state, country, auto_publish, status, status_message, qid, last_crawled_at, next_run_at, created_at, updated_at
		 FROM businesses WHERE id = ?`, id).Scan(
		&b.ID, &b.Name, &b.URL, &b.Category, &b.City, &b.State, &b.Country,
		&b.AutoPublish, &b.Status, &b.StatusMessage, &b.QID,
		&b.LastCrawledAt, &b.NextRunAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}
	return &b, nil
}

func (s *SQLiteStore) ListDueBusinesses(ctx context.Context, filter DueFilter) ([]model.Business, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	windowStart := filter.Now.Add(-1 * time.Hour)
	if filter.CatchMissed {
		windowStart = time.Time{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, category, city, state, country, auto_publish, status, status_message, qid, last_crawled_at, next_run_at, created_at, updated_at
		 FROM businesses
		 WHERE next_run_at IS NOT NULL AND next_run_at <= ? AND next_run_at > ? AND status NOT IN ('crawling', 'analyzing', 'publishing')
		 ORDER BY next_run_at ASC LIMIT ?`,
		filter.Now, windowStart, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list due businesses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Business
	for rows.Next() {
		var b model.Business
		if err := rows.Scan(
			&b.ID, &b.Name, &b.URL, &b.Category, &b.City, &b.State, &b.Country,
			&b.AutoPublish, &b.Status, &b.StatusMessage, &b.QID,
			&b.LastCrawledAt, &b.NextRunAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateBusinessStatus(ctx context.Context, id string, status model.PipelineStatus, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET status = ?, status_message = ?, updated_at = ? WHERE id = ?`,
		status, message, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	return nil
}

func (s *SQLiteStore) SetBusinessQID(ctx context.Context, id, qid string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET qid = ?, updated_at = ? WHERE id = ?`,
		qid, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set qid %s", id)
	}
	return nil
}

func (s *SQLiteStore) SetNextRunAt(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set next run %s", id)
	}
	return nil
}

func (s *SQLiteStore) SaveCrawlData(ctx context.Context, businessID string, data *model.CrawlData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal crawl data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO crawl_data (business_id, data, crawled_at) VALUES (?, ?, ?)
		 ON CONFLICT (business_id) DO UPDATE SET data = excluded.data, crawled_at = excluded.crawled_at`,
		businessID, string(payload), data.CrawledAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save crawl data %s", businessID)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE businesses SET last_crawled_at = ?, updated_at = ? WHERE id = ?`,
		data.CrawledAt, time.Now().UTC(), businessID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: stamp last crawled %s", businessID)
	}
	return nil
}

func (s *SQLiteStore) GetCrawlData(ctx context.Context, businessID string) (*model.CrawlData, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM crawl_data WHERE business_id = ?`, businessID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get crawl data %s", businessID)
	}

	var data model.CrawlData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal crawl data")
	}
	return &data, nil
}

func (s *SQLiteStore) InsertFingerprint(ctx context.Context, analysis *model.FingerprintAnalysis) error {
	results, err := json.Marshal(analysis.LLMResults)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal llm results")
	}

	var leaderboard any
	if analysis.Leaderboard != nil {
		b, err := json.Marshal(analysis.Leaderboard)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal leaderboard")
		}
		leaderboard = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (id, business_id, business_name, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_rank_position, llm_results, leaderboard, tokens_used, estimated_cost, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.ID, analysis.BusinessID, analysis.BusinessName,
		analysis.VisibilityScore, analysis.MentionRate, analysis.SentimentScore,
		analysis.AccuracyScore, analysis.AvgRankPosition, string(results), leaderboard,
		analysis.TokensUsed, analysis.EstimatedCost, analysis.GeneratedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert fingerprint %s", analysis.ID)
	}
	return nil
}

func (s *SQLiteStore) ListFingerprints(ctx context.Context, businessID string, limit int) ([]model.FingerprintAnalysis, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, business_name, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_rank_position, llm_results, leaderboard, tokens_used, estimated_cost, generated_at
		 FROM fingerprints WHERE business_id = ? ORDER BY generated_at DESC LIMIT ?`,
		businessID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list fingerprints %s", businessID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FingerprintAnalysis
	for rows.Next() {
		var (
			a           model.FingerprintAnalysis
			results     string
			leaderboard sql.NullString
		)
		if err := rows.Scan(
			&a.ID, &a.BusinessID, &a.BusinessName, &a.VisibilityScore,
			&a.MentionRate, &a.SentimentScore, &a.AccuracyScore,
			&a.AvgRankPosition, &results, &leaderboard,
			&a.TokensUsed, &a.EstimatedCost, &a.GeneratedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fingerprint")
		}
		if err := json.Unmarshal([]byte(results), &a.LLMResults); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal llm results")
		}
		if leaderboard.Valid && leaderboard.String != "" {
			if err := json.Unmarshal([]byte(leaderboard.String), &a.Leaderboard); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal leaderboard")
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
