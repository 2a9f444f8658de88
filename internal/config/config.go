// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	DB        DBConfig                `mapstructure:"db"`
	HTTP      HTTPConfig              `mapstructure:"http"`
	Collector CollectorConfig         `mapstructure:"collector"`
	Worker    WorkerConfig            `mapstructure:"worker"`
	Headless  HeadlessConfig          `mapstructure:"headless"`
	Blob      BlobConfig              `mapstructure:"blob"`
	PubSub    PubSubConfig            `mapstructure:"pubsub"`
	Domains   map[string]DomainConfig `mapstructure:"domains"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// HTTPConfig configures the outbound retry executor.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// CollectorConfig governs the reference-data ingestion runs.
type CollectorConfig struct {
	ServiceKey string `mapstructure:"service_key"`
	PageSize   int    `mapstructure:"page_size"`
	MaxPages   int    `mapstructure:"max_pages"`
}

// WorkerConfig governs the crawl-queue drain loop.
type WorkerConfig struct {
	Enabled         bool                  `mapstructure:"enabled"`
	JobName         string                `mapstructure:"job_name"`
	IntervalSeconds int                   `mapstructure:"interval_seconds"`
	MaxItems        int                   `mapstructure:"max_items"`
	Sources         map[string]SourceRule `mapstructure:"sources"`
}

// SourceRule tells the worker how to fetch one crawl source.
type SourceRule struct {
	URLTemplate   string `mapstructure:"url_template"`
	MinIntervalMs int    `mapstructure:"min_interval_ms"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// BlobConfig sets where raw page snapshots land.
type BlobConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DomainConfig describes one reference-data API.
type DomainConfig struct {
	BaseURL      string            `mapstructure:"base_url"`
	Path         string            `mapstructure:"path"`
	Table        string            `mapstructure:"table"`
	NaturalKeys  []string          `mapstructure:"natural_keys"`
	PageSize     int               `mapstructure:"page_size"`
	MaxPages     int               `mapstructure:"max_pages"`
	Extra        map[string]string `mapstructure:"extra"`
	SubResources []SubResource     `mapstructure:"sub_resources"`
}

// SubResource is one operation of a multi-operation API.
type SubResource struct {
	Name  string `mapstructure:"name"`
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDREF")
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

	if len(cfg.Domains) == 0 {
		cfg.Domains = DefaultDomains()
	}
	if len(cfg.Worker.Sources) == 0 {
		cfg.Worker.Sources = DefaultSources()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("collector.page_size", 100)
	v.SetDefault("collector.max_pages", 0)
	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.job_name", "crawl_queue_drain")
	v.SetDefault("worker.interval_seconds", 60)
	v.SetDefault("worker.max_items", 10)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 60)
	v.SetDefault("blob.prefix", "pages")
	v.SetDefault("blob.content_type", "text/html; charset=utf-8")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Collector.PageSize <= 0 {
		return fmt.Errorf("collector.page_size must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Worker.Enabled && c.Worker.MaxItems <= 0 {
		return fmt.Errorf("worker.max_items must be > 0 when the worker is enabled")
	}
	for name, d := range c.Domains {
		if d.BaseURL == "" {
			return fmt.Errorf("domains.%s.base_url must be set", name)
		}
		if len(d.NaturalKeys) == 0 {
			return fmt.Errorf("domains.%s.natural_keys must be set", name)
		}
		if len(d.SubResources) == 0 && d.Table == "" {
			return fmt.Errorf("domains.%s.table must be set", name)
		}
	}
	return nil
}

// RetryTimeout converts the HTTP timeout into a duration.
func (c Config) RetryTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
