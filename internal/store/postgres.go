package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mentionlab/visibility-engine/internal/db"
	"github.com/mentionlab/visibility-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_business":    `INSERT INTO businesses (id, name, url, category, city, state, country, auto_publish, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"get_business":       `SELECT id, name, url, category, city, state, country, auto_publish, status, status_message, qid, last_crawled_at, next_run_at, created_at, updated_at FROM businesses WHERE id = $1`,
	"update_status":      `UPDATE businesses SET status = $1, status_message = $2, updated_at = $3 WHERE id = $4`,
	"set_qid":            `UPDATE businesses SET qid = $1, updated_at = $2 WHERE id = $3`,
	"set_next_run":       `UPDATE businesses SET next_run_at = $1, updated_at = $2 WHERE id = $3`,
	"save_crawl":         `INSERT INTO crawl_data (business_id, data, crawled_at) VALUES ($1, $2, $3) ON CONFLICT (business_id) DO UPDATE SET data = EXCLUDED.data, crawled_at = EXCLUDED.crawled_at`,
	"get_crawl":          `SELECT data FROM crawl_data WHERE business_id = $1`,
	"insert_fingerprint": `INSERT INTO fingerprints (id, business_id, business_name, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_rank_position, llm_results, leaderboard, tokens_used, estimated_cost, generated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"list_fingerprints":  `SELECT id, business_id, business_name, visibility_score, mention_rate, sentiment_score, accuracy_score, avg_rank_position, llm_results, leaderboard, tokens_used, estimated_cost, generated_at FROM fingerprints WHERE business_id = $1 ORDER BY generated_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	url             TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	country         TEXT NOT NULL DEFAULT '',
	auto_publish    BOOLEAN NOT NULL DEFAULT false,
	status          TEXT NOT NULL DEFAULT 'pending',
	status_message  TEXT NOT NULL DEFAULT '',
	qid             TEXT NOT NULL DEFAULT '',
	last_crawled_at TIMESTAMPTZ,
	next_run_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crawl_data (
	business_id TEXT PRIMARY KEY REFERENCES businesses(id),
	data        JSONB NOT NULL,
	crawled_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fingerprints (
	id                TEXT PRIMARY KEY,
	business_id       TEXT NOT NULL REFERENCES businesses(id),
	business_name     TEXT NOT NULL,
	visibility_score  INT NOT NULL,
	mention_rate      DOUBLE PRECISION NOT NULL,
	sentiment_score   DOUBLE PRECISION NOT NULL,
	accuracy_score    DOUBLE PRECISION NOT NULL,
	avg_rank_position DOUBLE PRECISION,
	llm_results       JSONB NOT NULL,
	leaderboard       JSONB,
	tokens_used       INT NOT NULL DEFAULT 0,
	estimated_cost    DOUBLE PRECISION NOT NULL DEFAULT 0,
	generated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(status);
CREATE INDEX IF NOT EXISTS idx_businesses_next_run_at ON businesses(next_run_at);
CREATE INDEX IF NOT EXISTS idx_fingerprints_business ON fingerprints(business_id, generated_at DESC);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = model.StatusPending
	}

	_, err := s.pool.Exec(ctx, "insert_business",
		b.ID, b.Name, b.URL, b.Category, b.City, b.State, b.Country,
		b.AutoPublish, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: create business %s", b.ID)
	}
	return nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var b model.Business
	err := s.pool.QueryRow(ctx, "get_business", id).Scan(
		&b.ID, &b.Name, &b.URL, &b.Category, &b.City, &b.State, &b.Country,
		&b.AutoPublish, &b.Status, &b.StatusMessage, &b.QID,
		&b.LastCrawledAt, &b.NextRunAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}
	return &b, nil
}

func (s *PostgresStore) ListDueBusinesses(ctx context.Context, filter DueFilter) ([]model.Business, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	// Without catch-missed, only businesses due within the last schedule
	// window are picked up; older misses wait for an operator.
	query := `SELECT id, name, url, category, city, state, country, auto_publish, status, status_message, qid, last_crawled_at, next_run_at, created_at, updated_at
		FROM businesses
		WHERE next_run_at IS NOT NULL AND next_run_at <= $1 AND next_run_at > $2 AND status NOT IN ('crawling', 'analyzing', 'publishing')
		ORDER BY next_run_at ASC LIMIT $3`

	windowStart := filter.Now.Add(-1 * time.Hour)
	if filter.CatchMissed {
		windowStart = time.Time{}
	}

	rows, err := s.pool.Query(ctx, query, filter.Now, windowStart, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		var b model.Business
		if err := rows.Scan(
			&b.ID, &b.Name, &b.URL, &b.Category, &b.City, &b.State, &b.Country,
			&b.AutoPublish, &b.Status, &b.StatusMessage, &b.QID,
			&b.LastCrawledAt, &b.NextRunAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateBusinessStatus(ctx context.Context, id string, status model.PipelineStatus, message string) error {
	_, err := s.pool.Exec(ctx, "update_status", status, message, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", id)
	}
	return nil
}

func (s *PostgresStore) SetBusinessQID(ctx context.Context, id, qid string) error {
	_, err := s.pool.Exec(ctx, "set_qid", qid, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set qid %s", id)
	}
	return nil
}

func (s *PostgresStore) SetNextRunAt(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, "set_next_run", at, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set next run %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveCrawlData(ctx context.Context, businessID string, data *model.CrawlData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal crawl data")
	}
	if _, err := s.pool.Exec(ctx, "save_crawl", businessID, payload, data.CrawledAt); err != nil {
		return eris.Wrapf(err, "postgres: save crawl data %s", businessID)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE businesses SET last_crawled_at = $1, updated_at = $2 WHERE id = $3`,
		data.CrawledAt, time.Now().UTC(), businessID)
	if err != nil {
		return eris.Wrapf(err, "postgres: stamp last crawled %s", businessID)
	}
	return nil
}

func (s *PostgresStore) GetCrawlData(ctx context.Context, businessID string) (*model.CrawlData, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, "get_crawl", businessID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get crawl data %s", businessID)
	}

	var data model.CrawlData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal crawl data")
	}
	return &data, nil
}

func (s *PostgresStore) InsertFingerprint(ctx context.Context, analysis *model.FingerprintAnalysis) error {
	results, err := json.Marshal(analysis.LLMResults)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal llm results")
	}

	var leaderboard []byte
	if analysis.Leaderboard != nil {
		leaderboard, err = json.Marshal(analysis.Leaderboard)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal leaderboard")
		}
	}

	_, err = s.pool.Exec(ctx, "insert_fingerprint",
		analysis.ID, analysis.BusinessID, analysis.BusinessName,
		analysis.VisibilityScore, analysis.MentionRate, analysis.SentimentScore,
		analysis.AccuracyScore, analysis.AvgRankPosition, results, leaderboard,
		analysis.TokensUsed, analysis.EstimatedCost, analysis.GeneratedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert fingerprint %s", analysis.ID)
	}
	return nil
}

func (s *PostgresStore) ListFingerprints(ctx context.Context, businessID string, limit int) ([]model.FingerprintAnalysis, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, "list_fingerprints", businessID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list fingerprints %s", businessID)
	}
	defer rows.Close()

	var out []model.FingerprintAnalysis
	for rows.Next() {
		var (
			a           model.FingerprintAnalysis
			results     []byte
			leaderboard []byte
		)
		if err := rows.Scan(
			&a.ID, &a.BusinessID, &a.BusinessName, &a.VisibilityScore,
			&a.MentionRate, &a.SentimentScore, &a.AccuracyScore,
			&a.AvgRankPosition, &results, &leaderboard,
			&a.TokensUsed, &a.EstimatedCost, &a.GeneratedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fingerprint")
		}
		if err := json.Unmarshal(results, &a.LLMResults); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal llm results")
		}
		if len(leaderboard) > 0 {
			if err := json.Unmarshal(leaderboard, &a.Leaderboard); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal leaderboard")
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
