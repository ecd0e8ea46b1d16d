// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Search      SearchConfig      `mapstructure:"search"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Replication ReplicationConfig `mapstructure:"replication"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Feeds       FeedsConfig       `mapstructure:"feeds"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SearchConfig governs the discovery sweep against the search API.
type SearchConfig struct {
	// Terms maps a category name to its search terms.
	Terms                map[string][]string `mapstructure:"terms"`
	MaxResultsPerTerm    int                 `mapstructure:"max_results_per_term"`
	StartYear            int                 `mapstructure:"start_year"`
	EndYear              int                 `mapstructure:"end_year"`
	QueryDelaySeconds    int                 `mapstructure:"query_delay_seconds"`
	SweepIntervalMinutes int                 `mapstructure:"sweep_interval_minutes"`
	CooldownSeconds      int                 `mapstructure:"cooldown_seconds"`
	BaseURL              string              `mapstructure:"base_url"`
	APIKey               string              `mapstructure:"api_key"`
}

// PipelineConfig governs worker and router behavior.
type PipelineConfig struct {
	QueueDepth             int     `mapstructure:"queue_depth"`
	EnrichTimeoutSeconds   int     `mapstructure:"enrich_timeout_seconds"`
	FulltextTimeoutSeconds int     `mapstructure:"fulltext_timeout_seconds"`
	DeadLetterRetryMinutes int     `mapstructure:"dead_letter_retry_minutes"`
	DedupFlushSeconds      int     `mapstructure:"dedup_flush_seconds"`
	RelevanceThreshold     float64 `mapstructure:"relevance_threshold"`
}

// ChunkingConfig sets the text window parameters.
type ChunkingConfig struct {
	WindowWords   int `mapstructure:"window_words"`
	OverlapWords  int `mapstructure:"overlap_words"`
	MinChunkChars int `mapstructure:"min_chunk_chars"`
}

// CadenceConfig overrides commit/push frequency for one stage.
type CadenceConfig struct {
	CommitEvery int `mapstructure:"commit_every"`
	PushEvery   int `mapstructure:"push_every"`
}

// CheckpointConfig tunes the checkpoint coordinator.
type CheckpointConfig struct {
	PushIntervalMinutes int                      `mapstructure:"push_interval_minutes"`
	Cadences            map[string]CadenceConfig `mapstructure:"cadences"`
}

// StorageConfig selects and parameterizes the artifact store backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// ReplicationConfig selects and parameterizes the checkpoint backend.
type ReplicationConfig struct {
	Backend     string `mapstructure:"backend"`
	RepoPath    string `mapstructure:"repo_path"`
	Remote      string `mapstructure:"remote"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// PubSubConfig holds metadata for completion-event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// FeedsConfig tunes feed regeneration.
type FeedsConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
	WindowDays    int `mapstructure:"window_days"`
}

// DashboardConfig tunes status dashboard regeneration.
type DashboardConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PUBMED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("search.max_results_per_term", 20)
	v.SetDefault("search.start_year", 2010)
	v.SetDefault("search.query_delay_seconds", 1)
	v.SetDefault("search.sweep_interval_minutes", 60)
	v.SetDefault("search.cooldown_seconds", 60)
	v.SetDefault("search.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pipeline.queue_depth", 1000)
	v.SetDefault("pipeline.enrich_timeout_seconds", 30)
	v.SetDefault("pipeline.fulltext_timeout_seconds", 120)
	v.SetDefault("pipeline.dead_letter_retry_minutes", 30)
	v.SetDefault("pipeline.dedup_flush_seconds", 300)
	v.SetDefault("pipeline.relevance_threshold", 0.3)
	v.SetDefault("chunking.window_words", 1000)
	v.SetDefault("chunking.overlap_words", 200)
	v.SetDefault("chunking.min_chunk_chars", 50)
	v.SetDefault("checkpoint.push_interval_minutes", 60)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "data/pubmed")
	v.SetDefault("replication.backend", "none")
	v.SetDefault("replication.remote", "origin")
	v.SetDefault("feeds.interval_hours", 6)
	v.SetDefault("feeds.window_days", 30)
	v.SetDefault("dashboard.interval_minutes", 30)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Search.Terms) == 0 {
		return fmt.Errorf("search.terms must define at least one category")
	}
	for category, terms := range c.Search.Terms {
		if len(terms) == 0 {
			return fmt.Errorf("search.terms.%s must define at least one term", category)
		}
	}
	if c.Search.MaxResultsPerTerm <= 0 {
		return fmt.Errorf("search.max_results_per_term must be > 0")
	}
	if c.Chunking.WindowWords <= 0 {
		return fmt.Errorf("chunking.window_words must be > 0")
	}
	switch c.Storage.Backend {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	switch c.Replication.Backend {
	case "none", "archive":
	case "git":
		if c.Replication.RepoPath == "" {
			return fmt.Errorf("replication.repo_path must be set for the git backend")
		}
	default:
		return fmt.Errorf("replication.backend %q is not one of git, archive, none", c.Replication.Backend)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// QueryDelay returns the politeness gap between search queries.
func (c SearchConfig) QueryDelay() time.Duration {
	return time.Duration(c.QueryDelaySeconds) * time.Second
}

// SweepInterval returns the gap between discovery sweeps.
func (c SearchConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// Cooldown returns the wait after an aborted sweep.
func (c SearchConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// EnrichTimeout returns the per-call enrichment budget.
func (c PipelineConfig) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutSeconds) * time.Second
}

// FulltextTimeout returns the per-call full-text budget.
func (c PipelineConfig) FulltextTimeout() time.Duration {
	return time.Duration(c.FulltextTimeoutSeconds) * time.Second
}

// DeadLetterRetry returns the dead-letter re-attempt interval.
func (c PipelineConfig) DeadLetterRetry() time.Duration {
	return time.Duration(c.DeadLetterRetryMinutes) * time.Minute
}

// DedupFlush returns the dedup snapshot flush interval.
func (c PipelineConfig) DedupFlush() time.Duration {
	return time.Duration(c.DedupFlushSeconds) * time.Second
}

// PushInterval returns the checkpoint push heartbeat.
func (c CheckpointConfig) PushInterval() time.Duration {
	return time.Duration(c.PushIntervalMinutes) * time.Minute
}

// Interval returns the feed regeneration gate.
func (c FeedsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// Interval returns the dashboard regeneration gate.
func (c DashboardConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
