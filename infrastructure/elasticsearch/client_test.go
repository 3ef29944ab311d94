//nolint:testpackage // exercises unexported helpers
package elasticsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"http://elasticsearch:9200", "http://elasticsearch:9200"},
		{"https://elasticsearch:9200", "https://elasticsearch:9200"},
		{"elasticsearch:9200", "http://elasticsearch:9200"},
		{"", "http://localhost:9200"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeURL(tt.input), tt.input)
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{URL: "http://custom:9200"}
	cfg.SetDefaults()

	assert.Equal(t, "http://custom:9200", cfg.URL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.PingTimeout)
	require.NotNil(t, cfg.RetryConfig)
	assert.Equal(t, 5, cfg.RetryConfig.MaxAttempts)
}

func TestCreateTransport(t *testing.T) {
	t.Parallel()

	assert.Nil(t, createTransport(false).TLSClientConfig)
	require.NotNil(t, createTransport(true).TLSClientConfig)
	assert.True(t, createTransport(true).TLSClientConfig.InsecureSkipVerify)
}

func TestNewClient_PingsServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{URL: srv.URL}, logger.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClient_UnreachableFailsAfterRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), Config{
		URL:         srv.URL,
		MaxRetries:  1,
		PingTimeout: time.Second,
		RetryConfig: &retry.Config{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			IsRetryable:  func(error) bool { return true },
		},
	}, nil)
	assert.Error(t, err)
}
