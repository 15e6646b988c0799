package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/internal/store"
	"github.com/mentionlab/visibility-engine/pkg/crawler"
	"github.com/mentionlab/visibility-engine/pkg/review"
	"github.com/mentionlab/visibility-engine/pkg/serp"
	"github.com/mentionlab/visibility-engine/pkg/wikidata"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Business), args.Error(1)
}

func (m *mockStore) ListDueBusinesses(ctx context.Context, filter store.DueFilter) ([]model.Business, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockStore) UpdateBusinessStatus(ctx context.Context, id string, status model.PipelineStatus, message string) error {
	return m.Called(ctx, id, status, message).Error(0)
}

func (m *mockStore) SetBusinessQID(ctx context.Context, id, qid string) error {
	return m.Called(ctx, id, qid).Error(0)
}

func (m *mockStore) SetNextRunAt(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockStore) SaveCrawlData(ctx context.Context, businessID string, data *model.CrawlData) error {
	return m.Called(ctx, businessID, data).Error(0)
}

func (m *mockStore) GetCrawlData(ctx context.Context, businessID string) (*model.CrawlData, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrawlData), args.Error(1)
}

func (m *mockStore) InsertFingerprint(ctx context.Context, analysis *model.FingerprintAnalysis) error {
	return m.Called(ctx, analysis).Error(0)
}

func (m *mockStore) ListFingerprints(ctx context.Context, businessID string, limit int) ([]model.FingerprintAnalysis, error) {
	args := m.Called(ctx, businessID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FingerprintAnalysis), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) StartCrawl(ctx context.Context, req crawler.CrawlRequest) (*crawler.CrawlResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawler.CrawlResponse), args.Error(1)
}

func (m *mockCrawler) GetCrawlStatus(ctx context.Context, id string) (*crawler.CrawlStatusResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawler.CrawlStatusResponse), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, entity wikidata.EntityData, opts wikidata.PublishOptions) (*wikidata.EditResult, error) {
	args := m.Called(ctx, entity, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wikidata.EditResult), args.Error(1)
}

func (m *mockPublisher) Update(ctx context.Context, qid string, entity wikidata.EntityData, opts wikidata.PublishOptions) (*wikidata.EditResult, error) {
	args := m.Called(ctx, qid, entity, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wikidata.EditResult), args.Error(1)
}

func (m *mockPublisher) SearchEntity(ctx context.Context, query, target string) (string, error) {
	args := m.Called(ctx, query, target)
	return args.String(0), args.Error(1)
}

type mockReview struct {
	mock.Mock
}

func (m *mockReview) Enqueue(ctx context.Context, dbID string, item review.Item) (string, error) {
	args := m.Called(ctx, dbID, item)
	return args.String(0), args.Error(1)
}

func (m *mockReview) Resolve(ctx context.Context, pageID, resolution string) error {
	return m.Called(ctx, pageID, resolution).Error(0)
}

func (m *mockReview) ListPending(ctx context.Context, dbID string) ([]string, error) {
	args := m.Called(ctx, dbID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// serpStub adapts a function to the search client interface.
type serpStub func(ctx context.Context, query string) ([]serp.Result, error)

func (f serpStub) Search(ctx context.Context, query string) ([]serp.Result, error) {
	return f(ctx, query)
}
