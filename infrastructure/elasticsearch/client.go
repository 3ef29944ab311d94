// Package elasticsearch builds verified go-elasticsearch clients.
package elasticsearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/retry"
)

// NewClient creates an Elasticsearch client and verifies the connection with retries.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*es.Client, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	url := normalizeURL(cfg.URL)

	clientConfig := es.Config{
		Addresses:  []string{url},
		Transport:  createTransport(cfg.InsecureSkipVerify),
		MaxRetries: cfg.MaxRetries,
	}

	switch {
	case cfg.APIKey != "":
		clientConfig.APIKey = cfg.APIKey
	case cfg.Username != "" && cfg.Password != "":
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, createErr := es.NewClient(clientConfig)
	if createErr != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", createErr)
	}

	log.Info("Verifying Elasticsearch connection", logger.String("url", url))

	if pingErr := retry.Retry(ctx, *cfg.RetryConfig, func() error {
		return ping(ctx, client, cfg.PingTimeout)
	}); pingErr != nil {
		return nil, fmt.Errorf("connect to elasticsearch: %w", pingErr)
	}

	log.Info("Elasticsearch connection established", logger.String("url", url))
	return client, nil
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func createTransport(insecureSkipVerify bool) *http.Transport {
	transport := &http.Transport{}
	if insecureSkipVerify {
		//nolint:gosec // operator opt-in for self-signed development clusters
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

func ping(ctx context.Context, client *es.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, pingErr := client.Ping(client.Ping.WithContext(pingCtx))
	if pingErr != nil {
		return fmt.Errorf("ping failed: %w", pingErr)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ping returned error [%s]: %s", res.Status(), string(body))
	}

	return nil
}
