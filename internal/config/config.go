package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Crawler     CrawlerConfig     `yaml:"crawler" mapstructure:"crawler"`
	Wikidata    WikidataConfig    `yaml:"wikidata" mapstructure:"wikidata"`
	Review      ReviewConfig      `yaml:"review" mapstructure:"review"`
	Fingerprint FingerprintConfig `yaml:"fingerprint" mapstructure:"fingerprint"`
	Notability  NotabilityConfig  `yaml:"notability" mapstructure:"notability"`
	Publish     PublishConfig     `yaml:"publish" mapstructure:"publish"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings. Perplexity speaks the
// OpenAI chat-completions wire shape and shares that client.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig holds web search API settings for the notability gate.
type SearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CrawlerConfig holds crawl service settings.
type CrawlerConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth    int    `yaml:"max_depth" mapstructure:"max_depth"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WikidataConfig holds knowledge-base publishing credentials and endpoints.
type WikidataConfig struct {
	Username          string  `yaml:"username" mapstructure:"username"`
	Password          string  `yaml:"password" mapstructure:"password"`
	TestBaseURL       string  `yaml:"test_base_url" mapstructure:"test_base_url"`
	ProductionBaseURL string  `yaml:"production_base_url" mapstructure:"production_base_url"`
	EditRateLimit     float64 `yaml:"edit_rate_limit" mapstructure:"edit_rate_limit"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ReviewConfig holds the Notion manual-review queue settings.
type ReviewConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
	DB    string `yaml:"db" mapstructure:"db"`
}

// FingerprintConfig configures the judge fan-out and score aggregation.
type FingerprintConfig struct {
	RosterPath       string             `yaml:"roster_path" mapstructure:"roster_path"`
	Models           []string           `yaml:"models" mapstructure:"models"`
	Weights          map[string]float64 `yaml:"weights" mapstructure:"weights"`
	QueryTimeoutSecs int                `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	MaxConcurrent    int                `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	TrendThreshold   int                `yaml:"trend_threshold" mapstructure:"trend_threshold"`
}

// NotabilityConfig configures the notability gate.
type NotabilityConfig struct {
	JudgeModel string `yaml:"judge_model" mapstructure:"judge_model"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// PublishConfig configures entity building and publishing.
type PublishConfig struct {
	Target        string `yaml:"target" mapstructure:"target"`
	DryRun        bool   `yaml:"dry_run" mapstructure:"dry_run"`
	MaxProperties int    `yaml:"max_properties" mapstructure:"max_properties"`
	MaxQIDs       int    `yaml:"max_qids" mapstructure:"max_qids"`
}

// BatchConfig configures scheduled batch processing.
type BatchConfig struct {
	BatchSize   int  `yaml:"batch_size" mapstructure:"batch_size"`
	CatchMissed bool `yaml:"catch_missed" mapstructure:"catch_missed"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VISIBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("crawler.base_url", "https://api.crawlworks.dev/v1")
	v.SetDefault("crawler.max_pages", 25)
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.timeout_secs", 300)
	v.SetDefault("wikidata.test_base_url", "https://test.wikidata.org/w/api.php")
	v.SetDefault("wikidata.production_base_url", "https://www.wikidata.org/w/api.php")
	v.SetDefault("wikidata.edit_rate_limit", 2.0)
	v.SetDefault("fingerprint.models", []string{
		"claude-sonnet-4-5-20250929",
		"gpt-4o",
		"sonar-pro",
	})
	v.SetDefault("fingerprint.query_timeout_secs", 45)
	v.SetDefault("fingerprint.max_concurrent", 6)
	v.SetDefault("fingerprint.trend_threshold", 3)
	v.SetDefault("notability.judge_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("notability.max_results", 10)
	v.SetDefault("publish.target", "test")
	v.SetDefault("publish.max_properties", 20)
	v.SetDefault("publish.max_qids", 10)
	v.SetDefault("batch.batch_size", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
