package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mentionlab/visibility-engine/internal/fingerprint"
	"github.com/mentionlab/visibility-engine/internal/notability"
	"github.com/mentionlab/visibility-engine/internal/pipeline"
	"github.com/mentionlab/visibility-engine/internal/store"
	anthropicpkg "github.com/mentionlab/visibility-engine/pkg/anthropic"
	"github.com/mentionlab/visibility-engine/pkg/crawler"
	"github.com/mentionlab/visibility-engine/pkg/llm"
	"github.com/mentionlab/visibility-engine/pkg/openai"
	"github.com/mentionlab/visibility-engine/pkg/review"
	"github.com/mentionlab/visibility-engine/pkg/serp"
	"github.com/mentionlab/visibility-engine/pkg/wikidata"
)

// pipelineEnv holds the initialized store, clients, and orchestrator
// shared by the run/fingerprint/publish/batch/serve commands.
type pipelineEnv struct {
	Store        store.Store
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	}
}

// initEnv sets up the store, all API clients, and the orchestrator.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Judge roster: config file wins over inline defaults.
	roster := &fingerprint.Roster{
		Models:  cfg.Fingerprint.Models,
		Weights: cfg.Fingerprint.Weights,
	}
	if cfg.Fingerprint.RosterPath != "" {
		loaded, err := fingerprint.LoadRoster(cfg.Fingerprint.RosterPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		roster = loaded
	}

	// Judge providers routed by model-name prefix.
	router := llm.NewRouter(llm.WithTimeout(time.Duration(cfg.Fingerprint.QueryTimeoutSecs) * time.Second))
	if cfg.Anthropic.Key != "" {
		router.Register("claude", llm.NewAnthropicQuerier(anthropicpkg.NewClient(cfg.Anthropic.Key)))
	}
	if cfg.OpenAI.Key != "" {
		router.Register("gpt", llm.NewChatQuerier(openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL))))
	}
	if cfg.Perplexity.Key != "" {
		router.Register("sonar", llm.NewChatQuerier(openai.NewClient(cfg.Perplexity.Key, openai.WithBaseURL(cfg.Perplexity.BaseURL))))
	}

	engine := fingerprint.NewEngine(router, roster,
		fingerprint.WithMaxConcurrent(cfg.Fingerprint.MaxConcurrent))

	searchClient := serp.NewClient(cfg.Search.Key, serp.WithBaseURL(cfg.Search.BaseURL))
	checker := notability.NewChecker(searchClient, router, cfg.Notability.JudgeModel,
		notability.WithMaxResults(cfg.Notability.MaxResults))

	crawlClient := crawler.NewClient(cfg.Crawler.Key, crawler.WithBaseURL(cfg.Crawler.BaseURL))

	publisher := wikidata.NewClient(
		wikidata.Credentials{Username: cfg.Wikidata.Username, Password: cfg.Wikidata.Password},
		wikidata.WithTestBaseURL(cfg.Wikidata.TestBaseURL),
		wikidata.WithProductionBaseURL(cfg.Wikidata.ProductionBaseURL),
		wikidata.WithRateLimit(cfg.Wikidata.EditRateLimit),
		wikidata.WithUserAgent(cfg.Wikidata.UserAgent),
	)

	// Manual-review queue (optional).
	var reviewClient review.Client
	if cfg.Review.Token != "" && cfg.Review.DB != "" {
		reviewClient = review.NewClient(cfg.Review.Token)
		zap.L().Info("manual review queue enabled")
	} else {
		zap.L().Debug("review queue not configured, skipping")
	}

	orch := pipeline.New(st, crawlClient, engine, checker, publisher, reviewClient, pipeline.Config{
		Target:             cfg.Publish.Target,
		DryRun:             cfg.Publish.DryRun,
		MaxProperties:      cfg.Publish.MaxProperties,
		MaxQIDs:            cfg.Publish.MaxQIDs,
		IncludeCompetitors: true,
		CrawlMaxPages:      cfg.Crawler.MaxPages,
		CrawlMaxDepth:      cfg.Crawler.MaxDepth,
		TrendThreshold:     cfg.Fingerprint.TrendThreshold,
		ReviewDB:           cfg.Review.DB,
	})

	return &pipelineEnv{Store: st, Orchestrator: orch}, nil
}
