package config

import (
	"fmt"
	"time"

	"github.com/utafrali/catalogue/internal/engine/elasticsearch"
	pkgconfig "github.com/utafrali/catalogue/pkg/config"
	"github.com/utafrali/catalogue/pkg/database"
	"github.com/utafrali/catalogue/pkg/httpclient"
	"github.com/utafrali/catalogue/pkg/tracing"
)

// ServiceName identifies the catalogue service in logs, metrics and traces.
const ServiceName = "catalogue-service"

// Backend selectors.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
	StoreRedis          = "redis"
	StoreMemory         = "memory"
)

// Config holds all configuration for the catalogue service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort               int `env:"CATALOGUE_HTTP_PORT" envDefault:"8020"`
	ShutdownTimeoutSeconds int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"30"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalogue"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalogue"`
	PostgresDB   string `env:"CATALOGUE_DB_NAME" envDefault:"catalogue"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis task status store
	TaskStore     string `env:"TASK_STORE" envDefault:"redis"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Task timestamps, as a Go time layout
	DateTimeFormat string `env:"DATE_TIME_FORMAT" envDefault:"2006-01-02 15:04:05"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine          string   `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	ElasticsearchURLs     []string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchUsername string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string   `env:"ELASTICSEARCH_PASSWORD"`
	ProductIndex          string   `env:"PRODUCT_INDEX" envDefault:"products_index"`
	CategoryIndex         string   `env:"CATEGORY_INDEX" envDefault:"categories_index"`
	BulkBatchSize         int      `env:"BULK_BATCH_SIZE" envDefault:"100"`
	SearchMaxResults      int      `env:"SEARCH_MAX_RESULTS" envDefault:"10"`
	SearchCacheSeconds    int      `env:"SEARCH_CACHE_SECONDS" envDefault:"30"`

	// Elasticsearch circuit breaker
	ESBreakerTimeoutSecs  int     `env:"ES_BREAKER_TIMEOUT_SECONDS" envDefault:"30"`
	ESBreakerFailureRatio float64 `env:"ES_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	ESBreakerMinRequests  uint32  `env:"ES_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Background reindex workers
	ReindexWorkers   int `env:"REINDEX_WORKERS" envDefault:"2"`
	ReindexQueueSize int `env:"REINDEX_QUEUE_SIZE" envDefault:"16"`

	// Shared secret for reindex triggers; empty disables the check
	APIKey string `env:"API_KEY"`

	// Per-client limit on reindex triggers; 0 disables it
	ReindexRatePerMinute int `env:"REINDEX_RATE_PER_MINUTE" envDefault:"6"`
	ReindexRateBurst     int `env:"REINDEX_RATE_BURST" envDefault:"3"`

	// Kafka
	KafkaEnabled       bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"catalogue-indexer"`
	KafkaDedupTTLHours int      `env:"KAFKA_DEDUP_TTL_HOURS" envDefault:"24"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalogue config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. It runs as part of Load.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	switch c.SearchEngine {
	case EngineElasticsearch:
		if len(c.ElasticsearchURLs) == 0 {
			return fmt.Errorf("ELASTICSEARCH_URL is required")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("SEARCH_ENGINE must be %q or %q, got %q", EngineElasticsearch, EngineMemory, c.SearchEngine)
	}
	if c.TaskStore != StoreRedis && c.TaskStore != StoreMemory {
		return fmt.Errorf("TASK_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, c.TaskStore)
	}
	if c.ProductIndex == "" || c.CategoryIndex == "" {
		return fmt.Errorf("PRODUCT_INDEX and CATEGORY_INDEX are required")
	}
	if c.ProductIndex == c.CategoryIndex {
		return fmt.Errorf("PRODUCT_INDEX and CATEGORY_INDEX must differ, both are %q", c.ProductIndex)
	}
	if c.BulkBatchSize < 1 || c.BulkBatchSize > 10000 {
		return fmt.Errorf("BULK_BATCH_SIZE must be between 1 and 10000, got %d", c.BulkBatchSize)
	}
	if c.SearchMaxResults < 1 || c.SearchMaxResults > 10000 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be between 1 and 10000, got %d", c.SearchMaxResults)
	}
	if c.ReindexWorkers < 1 {
		return fmt.Errorf("REINDEX_WORKERS must be positive, got %d", c.ReindexWorkers)
	}
	if c.ReindexQueueSize < 1 {
		return fmt.Errorf("REINDEX_QUEUE_SIZE must be positive, got %d", c.ReindexQueueSize)
	}
	if c.ReindexRatePerMinute < 0 || c.ReindexRateBurst < 0 {
		return fmt.Errorf("REINDEX_RATE_PER_MINUTE and REINDEX_RATE_BURST must not be negative")
	}
	if c.ShutdownTimeoutSeconds < 1 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be positive, got %d", c.ShutdownTimeoutSeconds)
	}
	if err := checkLayout(c.DateTimeFormat); err != nil {
		return err
	}
	if c.ESBreakerFailureRatio <= 0 || c.ESBreakerFailureRatio > 1.0 {
		return fmt.Errorf("ES_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", c.ESBreakerFailureRatio)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// checkLayout rejects layouts without any time element, which would stamp
// every task with the same literal text.
func checkLayout(layout string) error {
	probe := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if layout == "" || probe.Format(layout) == layout {
		return fmt.Errorf("DATE_TIME_FORMAT %q is not a Go time layout", layout)
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the task status store connection settings.
func (c *Config) Redis() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}

// Elasticsearch returns the search engine client settings.
func (c *Config) Elasticsearch() elasticsearch.ClientConfig {
	breaker := httpclient.DefaultCircuitBreakerConfig("elasticsearch")
	breaker.Timeout = time.Duration(c.ESBreakerTimeoutSecs) * time.Second
	breaker.FailureRatio = c.ESBreakerFailureRatio
	breaker.MinRequests = c.ESBreakerMinRequests

	return elasticsearch.ClientConfig{
		Addresses: c.ElasticsearchURLs,
		Username:  c.ElasticsearchUsername,
		Password:  c.ElasticsearchPassword,
		Transport: httpclient.DefaultTransportConfig(),
		Breaker:   breaker,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	cfg := tracing.DefaultConfig(ServiceName)
	cfg.Environment = c.Environment
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	cfg.Enabled = c.OTELEnabled
	return cfg
}

// ShutdownTimeout is how long shutdown waits for requests and reindex jobs.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// SlowQueryThreshold is the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
