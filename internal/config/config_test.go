package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8020, cfg.HTTPPort)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.ElasticsearchURLs)
	assert.Equal(t, "products_index", cfg.ProductIndex)
	assert.Equal(t, "categories_index", cfg.CategoryIndex)
	assert.Equal(t, EngineElasticsearch, cfg.SearchEngine)
	assert.Equal(t, StoreRedis, cfg.TaskStore)
	assert.Equal(t, 100, cfg.BulkBatchSize)
	assert.Equal(t, 2, cfg.ReindexWorkers)
	assert.Equal(t, 16, cfg.ReindexQueueSize)
	assert.Equal(t, "2006-01-02 15:04:05", cfg.DateTimeFormat)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, 6, cfg.ReindexRatePerMinute)
	assert.Equal(t, 3, cfg.ReindexRateBurst)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout())
}

func TestLoad_FromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"CATALOGUE_HTTP_PORT": "9090",
		"ELASTICSEARCH_URL":   "http://es1:9200,http://es2:9200",
		"SEARCH_ENGINE":       "memory",
		"TASK_STORE":          "memory",
		"BULK_BATCH_SIZE":     "250",
		"REINDEX_WORKERS":     "4",
		"API_KEY":             "secret",
		"DATE_TIME_FORMAT":    time.RFC3339,
		"KAFKA_ENABLED":       "true",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.ElasticsearchURLs)
	assert.Equal(t, EngineMemory, cfg.SearchEngine)
	assert.Equal(t, StoreMemory, cfg.TaskStore)
	assert.Equal(t, 250, cfg.BulkBatchSize)
	assert.Equal(t, 4, cfg.ReindexWorkers)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, time.RFC3339, cfg.DateTimeFormat)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{"port zero", map[string]string{"CATALOGUE_HTTP_PORT": "0"}, "invalid HTTP port"},
		{"port too high", map[string]string{"CATALOGUE_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"unknown engine", map[string]string{"SEARCH_ENGINE": "solr"}, "SEARCH_ENGINE"},
		{"unknown store", map[string]string{"TASK_STORE": "etcd"}, "TASK_STORE"},
		{"same index names", map[string]string{"PRODUCT_INDEX": "catalogue", "CATEGORY_INDEX": "catalogue"}, "must differ"},
		{"batch too large", map[string]string{"BULK_BATCH_SIZE": "20000"}, "BULK_BATCH_SIZE"},
		{"batch zero", map[string]string{"BULK_BATCH_SIZE": "0"}, "BULK_BATCH_SIZE"},
		{"no workers", map[string]string{"REINDEX_WORKERS": "0"}, "REINDEX_WORKERS"},
		{"no queue", map[string]string{"REINDEX_QUEUE_SIZE": "0"}, "REINDEX_QUEUE_SIZE"},
		{"literal layout", map[string]string{"DATE_TIME_FORMAT": "yyyy-mm-dd"}, "DATE_TIME_FORMAT"},
		{"breaker ratio", map[string]string{"ES_BREAKER_FAILURE_RATIO": "1.5"}, "ES_BREAKER_FAILURE_RATIO"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2"}, "OTEL_SAMPLE_RATE"},
		{"negative rate", map[string]string{"REINDEX_RATE_PER_MINUTE": "-1"}, "REINDEX_RATE_PER_MINUTE"},
		{"no shutdown budget", map[string]string{"SHUTDOWN_TIMEOUT_SECONDS": "0"}, "SHUTDOWN_TIMEOUT_SECONDS"},
		{"not a number", map[string]string{"REINDEX_WORKERS": "many"}, "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	setEnvs(t, map[string]string{
		"POSTGRES_HOST":              "db",
		"CATALOGUE_DB_NAME":          "shop",
		"DB_MAX_CONNS":               "20",
		"REDIS_HOST":                 "cache",
		"REDIS_DB":                   "3",
		"ES_BREAKER_TIMEOUT_SECONDS": "10",
		"ES_BREAKER_MIN_REQUESTS":    "8",
		"OTEL_ENABLED":               "true",
		"ENVIRONMENT":                "staging",
	})
	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, "shop", pg.DBName)
	assert.Equal(t, int32(20), pg.MaxConns)
	assert.Equal(t, time.Hour, pg.MaxConnLifetime)

	rd := cfg.Redis()
	assert.Equal(t, "cache:6379", rd.Addr())
	assert.Equal(t, 3, rd.DB)

	es := cfg.Elasticsearch()
	assert.Equal(t, "elasticsearch", es.Breaker.Name)
	assert.Equal(t, 10*time.Second, es.Breaker.Timeout)
	assert.Equal(t, uint32(8), es.Breaker.MinRequests)

	tr := cfg.Tracing()
	assert.True(t, tr.Enabled)
	assert.Equal(t, ServiceName, tr.ServiceName)
	assert.Equal(t, "staging", tr.Environment)

	assert.Equal(t, 500*time.Millisecond, cfg.SlowQueryThreshold())
}
