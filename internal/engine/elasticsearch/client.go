package elasticsearch

import (
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/catalogue/pkg/httpclient"
)

// ClientConfig holds Elasticsearch connection settings.
type ClientConfig struct {
	Addresses []string
	Username  string
	Password  string
	Transport httpclient.TransportConfig
	Breaker   httpclient.CircuitBreakerConfig
}

// NewClient builds an Elasticsearch client whose HTTP transport is guarded by
// a circuit breaker. Client-side retries are disabled; callers see the first
// failure.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*elasticsearch.Client, error) {
	if cfg.Breaker.Name == "" {
		cfg.Breaker = httpclient.DefaultCircuitBreakerConfig("elasticsearch")
	}
	transport := httpclient.NewBreakerTransport(httpclient.NewTransport(cfg.Transport), cfg.Breaker, logger)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return client, nil
}
