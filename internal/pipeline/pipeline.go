// Package pipeline sequences Crawl → Fingerprint → Notability → Publish
// for one business at a time and owns the run lifecycle: status
// transitions, single-active-run enforcement, and idempotency caching.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentionlab/visibility-engine/internal/apperr"
	"github.com/mentionlab/visibility-engine/internal/entity"
	"github.com/mentionlab/visibility-engine/internal/fingerprint"
	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/internal/notability"
	"github.com/mentionlab/visibility-engine/internal/store"
	"github.com/mentionlab/visibility-engine/pkg/crawler"
	"github.com/mentionlab/visibility-engine/pkg/review"
	"github.com/mentionlab/visibility-engine/pkg/wikidata"
)

// Config holds the orchestrator's publish and crawl settings.
type Config struct {
	Target             string
	DryRun             bool
	MaxProperties      int
	MaxQIDs            int
	IncludeCompetitors bool
	CrawlMaxPages      int
	CrawlMaxDepth      int
	TrendThreshold     int
	ReviewDB           string
}

// Orchestrator owns the lifecycle of pipeline runs. All stage collaborators
// are injected as interfaces so runs are testable without live services.
type Orchestrator struct {
	store     store.Store
	crawler   crawler.Client
	engine    *fingerprint.Engine
	checker   *notability.Checker
	publisher wikidata.Client
	review    review.Client
	cfg       Config

	cache  *resultCache
	active sync.Map // businessID -> struct{}, enforces one run per business
}

// New creates an Orchestrator. The review client may be nil when no
// manual-review queue is configured.
func New(st store.Store, cr crawler.Client, eng *fingerprint.Engine, chk *notability.Checker, pub wikidata.Client, rev review.Client, cfg Config) *Orchestrator {
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = 3
	}
	return &Orchestrator{
		store:     st,
		crawler:   cr,
		engine:    eng,
		checker:   chk,
		publisher: pub,
		review:    rev,
		cfg:       cfg,
		cache:     newResultCache(defaultCacheEntries, defaultCacheTTL),
	}
}

// RunOptions configures one pipeline trigger.
type RunOptions struct {
	// Caller identifies the trigger source (user ID, "scheduler", "webhook")
	// and scopes the idempotency key.
	Caller string

	// Force bypasses the idempotency cache.
	Force bool

	// ManualPublish requests the publish stage even when the business has
	// auto-publish disabled.
	ManualPublish bool
}

// RunOutcome is the terminal result of one pipeline run.
type RunOutcome struct {
	BusinessID string                      `json:"business_id"`
	Status     model.PipelineStatus        `json:"status"`
	Message    string                      `json:"message,omitempty"`
	Analysis   *model.FingerprintAnalysis  `json:"analysis,omitempty"`
	Notability *model.NotabilityAssessment `json:"notability,omitempty"`
	Publish    *model.PublishResult        `json:"publish,omitempty"`
}

// Run executes the full pipeline for one business. A duplicate trigger
// while a run is active is rejected with a run_active error; a duplicate
// trigger shortly after completion is served from the idempotency cache.
func (o *Orchestrator) Run(ctx context.Context, businessID string, opts RunOptions) (*RunOutcome, error) {
	key := idempotencyKey("run", businessID, opts.Caller)
	if opts.Force {
		// A forced rerun drops every cached outcome for the business, so
		// no caller is served a result that predates it.
		o.cache.invalidate(businessID)
	} else if cached, ok := o.cache.get(key); ok {
		zap.L().Info("serving cached pipeline result",
			zap.String("business_id", businessID),
			zap.String("caller", opts.Caller))
		return cached.(*RunOutcome), nil
	}

	if _, loaded := o.active.LoadOrStore(businessID, struct{}{}); loaded {
		return nil, apperr.RunActive(businessID)
	}
	defer o.active.Delete(businessID)

	business, err := o.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	outcome := &RunOutcome{BusinessID: businessID}

	// Crawl.
	crawlData, err := o.crawlStep(ctx, business)
	if err != nil {
		o.fail(ctx, businessID, err)
		outcome.Status = model.StatusError
		outcome.Message = err.Error()
		return outcome, err
	}

	// Fingerprint.
	analysis, err := o.fingerprintStep(ctx, business, crawlData)
	if err != nil {
		o.fail(ctx, businessID, err)
		outcome.Status = model.StatusError
		outcome.Message = err.Error()
		return outcome, err
	}
	outcome.Analysis = analysis
	outcome.Status = model.StatusFingerprinted

	// Publish gate: only on explicit request or auto-publish config.
	if !business.AutoPublish && !opts.ManualPublish {
		o.cache.put(key, outcome)
		return outcome, nil
	}

	assessment, err := o.checker.Check(ctx, business.Name, locationOf(business))
	if err != nil {
		o.fail(ctx, businessID, err)
		outcome.Status = model.StatusError
		outcome.Message = err.Error()
		return outcome, err
	}
	outcome.Notability = assessment

	if !assessment.IsNotable {
		// Not notable is a display result, never an error state.
		msg := "not notable: " + assessment.Summary
		if err := o.store.UpdateBusinessStatus(ctx, businessID, model.StatusFingerprinted, msg); err != nil {
			return outcome, err
		}
		outcome.Message = msg
		o.enqueueReview(ctx, business, analysis, assessment)
		o.cache.put(key, outcome)
		return outcome, nil
	}

	result, err := o.publishStep(ctx, business, crawlData)
	if err != nil {
		o.fail(ctx, businessID, err)
		outcome.Status = model.StatusError
		outcome.Message = err.Error()
		return outcome, err
	}
	outcome.Publish = result
	if o.cfg.DryRun {
		outcome.Status = model.StatusFingerprinted
		outcome.Message = "dry run: publish skipped"
	} else {
		outcome.Status = model.StatusPublished
	}

	o.cache.put(key, outcome)
	return outcome, nil
}

// crawlStep delegates to the crawler collaborator and persists the
// structured pages on success.
func (o *Orchestrator) crawlStep(ctx context.Context, b *model.Business) (*model.CrawlData, error) {
	if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusCrawling, ""); err != nil {
		return nil, err
	}

	status, err := crawler.CrawlAndWait(ctx, o.crawler, crawler.CrawlRequest{
		URL:      b.URL,
		JobID:    uuid.NewString(),
		MaxDepth: o.cfg.CrawlMaxDepth,
		Limit:    o.cfg.CrawlMaxPages,
	})
	if err != nil {
		return nil, apperr.Crawler(err, fmt.Sprintf("crawl %s", b.URL))
	}

	pages := make([]model.CrawledPage, 0, len(status.Data))
	for _, p := range status.Data {
		pages = append(pages, model.CrawledPage{
			URL:        p.URL,
			Title:      p.Title,
			Markdown:   p.Markdown,
			StatusCode: p.StatusCode,
		})
	}
	data := &model.CrawlData{Pages: pages, CrawledAt: time.Now().UTC()}

	if err := o.store.SaveCrawlData(ctx, b.ID, data); err != nil {
		return nil, err
	}
	if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusCrawled, ""); err != nil {
		return nil, err
	}
	return data, nil
}

// fingerprintStep runs the fan-out engine and appends the analysis to the
// business's history.
func (o *Orchestrator) fingerprintStep(ctx context.Context, b *model.Business, crawlData *model.CrawlData) (*model.FingerprintAnalysis, error) {
	if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusAnalyzing, ""); err != nil {
		return nil, err
	}

	analysis, err := o.engine.Run(ctx, b.Context(crawlData), fingerprint.RunOptions{
		IncludeCompetitors: o.cfg.IncludeCompetitors,
	})
	if err != nil {
		return nil, apperr.LLM(err, "fingerprint run")
	}

	if err := o.store.InsertFingerprint(ctx, analysis); err != nil {
		return nil, err
	}
	if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusFingerprinted, ""); err != nil {
		return nil, err
	}
	return analysis, nil
}

// publishStep builds, validates, and submits the entity document. An
// existing QID routes to the update path.
func (o *Orchestrator) publishStep(ctx context.Context, b *model.Business, crawlData *model.CrawlData) (*model.PublishResult, error) {
	if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusPublishing, ""); err != nil {
		return nil, err
	}

	doc := entity.Build(b.Context(crawlData), entity.Limits{
		MaxProperties: o.cfg.MaxProperties,
		MaxQIDs:       o.cfg.MaxQIDs,
	})
	if !entity.Validate(doc) {
		return nil, apperr.EntityInvalid(fmt.Sprintf("entity for business %s missing labels or descriptions", b.ID))
	}

	opts := wikidata.PublishOptions{Target: o.cfg.Target, DryRun: o.cfg.DryRun}
	data := toEntityData(doc)

	var (
		edit *wikidata.EditResult
		err  error
	)
	if b.QID != "" {
		edit, err = o.publisher.Update(ctx, b.QID, data, opts)
	} else {
		edit, err = o.publisher.Publish(ctx, data, opts)
	}
	if err != nil {
		return nil, apperr.Wikidata(err, apperr.CodeAuthFailed, 502, "publish entity")
	}

	result := &model.PublishResult{
		Success:     edit.Success,
		QID:         edit.QID,
		EntityID:    b.ID,
		PublishedTo: model.PublishTarget(o.cfg.Target),
	}
	if edit.Error != nil {
		result.Error = edit.Error.Error()
		return nil, apperr.Wikidata(edit.Error, apperr.CodeEditFailed, 502,
			fmt.Sprintf("remote rejected entity for business %s", b.ID))
	}

	if edit.DryRun {
		// Restore the row to fingerprinted: a preview must not leave the
		// business parked at publishing, where the batch scheduler would
		// never pick it up again.
		if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusFingerprinted, "dry run: publish skipped"); err != nil {
			return nil, err
		}
		zap.L().Info("dry-run publish validated",
			zap.String("business_id", b.ID),
			zap.String("target", o.cfg.Target))
		return result, nil
	}

	if err := o.store.SetBusinessQID(ctx, b.ID, edit.QID); err != nil {
		return nil, err
	}
	if err := o.store.UpdateBusinessStatus(ctx, b.ID, model.StatusPublished, ""); err != nil {
		return nil, err
	}

	zap.L().Info("entity published",
		zap.String("business_id", b.ID),
		zap.String("qid", edit.QID),
		zap.Bool("created", edit.Created),
		zap.String("target", o.cfg.Target))
	return result, nil
}

// Fingerprint runs only the analysis stage against the stored crawl data.
func (o *Orchestrator) Fingerprint(ctx context.Context, businessID string, force bool) (*model.FingerprintAnalysis, error) {
	key := idempotencyKey("fingerprint", businessID, "cli")
	if force {
		o.cache.invalidate(businessID)
	} else if cached, ok := o.cache.get(key); ok {
		return cached.(*model.FingerprintAnalysis), nil
	}

	if _, loaded := o.active.LoadOrStore(businessID, struct{}{}); loaded {
		return nil, apperr.RunActive(businessID)
	}
	defer o.active.Delete(businessID)

	business, err := o.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	crawlData, err := o.store.GetCrawlData(ctx, businessID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	analysis, err := o.fingerprintStep(ctx, business, crawlData)
	if err != nil {
		o.fail(ctx, businessID, err)
		return nil, err
	}

	o.cache.put(key, analysis)
	return analysis, nil
}

// CheckNotability runs only the notability gate, without publishing.
func (o *Orchestrator) CheckNotability(ctx context.Context, businessID string) (*model.NotabilityAssessment, error) {
	business, err := o.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return o.checker.Check(ctx, business.Name, locationOf(business))
}

// Publish runs the notability gate and publish stage against stored data.
func (o *Orchestrator) Publish(ctx context.Context, businessID string) (*RunOutcome, error) {
	if _, loaded := o.active.LoadOrStore(businessID, struct{}{}); loaded {
		return nil, apperr.RunActive(businessID)
	}
	defer o.active.Delete(businessID)

	business, err := o.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	crawlData, err := o.store.GetCrawlData(ctx, businessID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	outcome := &RunOutcome{BusinessID: businessID, Status: business.Status}

	assessment, err := o.checker.Check(ctx, business.Name, locationOf(business))
	if err != nil {
		return nil, err
	}
	outcome.Notability = assessment

	if !assessment.IsNotable {
		msg := "not notable: " + assessment.Summary
		outcome.Message = msg
		if err := o.store.UpdateBusinessStatus(ctx, businessID, model.StatusFingerprinted, msg); err != nil {
			return outcome, err
		}
		o.enqueueReview(ctx, business, nil, assessment)
		return outcome, nil
	}

	result, err := o.publishStep(ctx, business, crawlData)
	if err != nil {
		o.fail(ctx, businessID, err)
		outcome.Status = model.StatusError
		outcome.Message = err.Error()
		return outcome, err
	}
	outcome.Publish = result
	outcome.Status = model.StatusPublished
	if o.cfg.DryRun {
		outcome.Status = business.Status
		outcome.Message = "dry run: publish skipped"
	}
	return outcome, nil
}

// Active reports whether a run is currently in flight for the business.
func (o *Orchestrator) Active(businessID string) bool {
	_, ok := o.active.Load(businessID)
	return ok
}

// Trend computes the score direction from the two most recent analyses.
func (o *Orchestrator) Trend(ctx context.Context, businessID string) (model.Trend, error) {
	history, err := o.store.ListFingerprints(ctx, businessID, 2)
	if err != nil {
		return "", err
	}
	return fingerprint.ComputeTrend(history, o.cfg.TrendThreshold), nil
}

// fail records the error state. The business record stays intact for
// manual retry; only status and message change.
func (o *Orchestrator) fail(ctx context.Context, businessID string, cause error) {
	if err := o.store.UpdateBusinessStatus(ctx, businessID, model.StatusError, cause.Error()); err != nil {
		zap.L().Error("failed to record error state",
			zap.String("business_id", businessID),
			zap.Error(err))
	}
}

// enqueueReview pushes a manual-review item when a queue is configured.
// Queue failures are logged, never propagated.
func (o *Orchestrator) enqueueReview(ctx context.Context, b *model.Business, analysis *model.FingerprintAnalysis, assessment *model.NotabilityAssessment) {
	if o.review == nil || o.cfg.ReviewDB == "" {
		return
	}

	item := review.Item{
		BusinessID:   b.ID,
		BusinessName: b.Name,
		Reason:       assessment.Summary,
		Confidence:   assessment.Confidence,
		QID:          b.QID,
	}
	if analysis != nil {
		item.Score = analysis.VisibilityScore
	}

	if _, err := o.review.Enqueue(ctx, o.cfg.ReviewDB, item); err != nil {
		zap.L().Warn("failed to enqueue review item",
			zap.String("business_id", b.ID),
			zap.Error(err))
	}
}

func locationOf(b *model.Business) *model.Location {
	if b.City == "" && b.State == "" && b.Country == "" {
		return nil
	}
	return &model.Location{City: b.City, State: b.State, Country: b.Country}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// toEntityData converts the builder's document into the publishing
// client's wire types.
func toEntityData(doc model.EntityDocument) wikidata.EntityData {
	data := wikidata.EntityData{
		Labels:       make(map[string]wikidata.Term, len(doc.Labels)),
		Descriptions: make(map[string]wikidata.Term, len(doc.Descriptions)),
	}
	for lang, t := range doc.Labels {
		data.Labels[lang] = wikidata.Term{Language: t.Language, Value: t.Value}
	}
	for lang, t := range doc.Descriptions {
		data.Descriptions[lang] = wikidata.Term{Language: t.Language, Value: t.Value}
	}
	if len(doc.Claims) > 0 {
		data.Claims = make(map[string][]wikidata.ClaimValue, len(doc.Claims))
		for pid, values := range doc.Claims {
			for _, v := range values {
				data.Claims[pid] = append(data.Claims[pid], wikidata.ClaimValue{
					Type:  v.Type,
					Value: v.Value,
				})
			}
		}
	}
	return data
}
