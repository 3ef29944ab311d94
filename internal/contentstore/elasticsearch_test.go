package contentstore_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/circuitbreaker"
	"github.com/jonesrussell/north-cloud/sitemap/internal/contentstore"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

func newStore(t *testing.T, handler http.HandlerFunc) *contentstore.ElasticsearchStore {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}, MaxRetries: 0, DisableRetry: true})
	require.NoError(t, err)

	return contentstore.NewElasticsearchStore(client, "")
}

func TestElasticsearchStore_Count(t *testing.T) {
	t.Parallel()

	var body map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sitemap_content/_count", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"count": 17}`))
	})

	n, err := store.Count(context.Background(),
		domain.ContentFilter{Category: "node", Subcategory: "article", PublishedOnly: true})

	require.NoError(t, err)
	assert.Equal(t, 17, n)

	filters := body["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Len(t, filters, 3)
}

func TestElasticsearchStore_FetchPage(t *testing.T) {
	t.Parallel()

	var query map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sitemap_content/_search", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &query)
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"1","_source":{"id":"1","category":"node","path":"/a","public":true,
				"translations":[{"language":"fr","public":true}],"images":["https://cdn/a.png"]}},
			{"_id":"2","_source":{"category":"node","path":"/b","changed_at":"2026-02-10T14:30:00Z"}}
		]}}`))
	})

	items, err := store.FetchPage(context.Background(), domain.ContentFilter{Category: "node"}, 20, 10)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.InDelta(t, 20, query["from"], 0)
	assert.InDelta(t, 10, query["size"], 0)
	assert.Equal(t, []string{"https://cdn/a.png"}, items[0].ImageURLs)
	assert.Equal(t, "fr", items[0].Translations[0].Language)
	assert.Equal(t, "2", items[1].ID)
	require.NotNil(t, items[1].ChangedAt)
}

func TestElasticsearchStore_GetNotFound(t *testing.T) {
	t.Parallel()

	store := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"_index":"sitemap_content","_id":"9","found":false}`))
	})

	_, err := store.Get(context.Background(), "9")

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestElasticsearchStore_Get(t *testing.T) {
	t.Parallel()

	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sitemap_content/_doc/5", r.URL.Path)
		_, _ = w.Write([]byte(`{"_id":"5","found":true,"_source":{"category":"node","path":"/e"}}`))
	})

	item, err := store.Get(context.Background(), "5")

	require.NoError(t, err)
	assert.Equal(t, "5", item.ID)
	assert.Equal(t, "/e", item.Path)
}

func TestElasticsearchStore_BreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	store := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	for range 5 {
		_, err := store.Count(context.Background(), domain.ContentFilter{Category: "node"})
		require.Error(t, err)
	}

	_, err := store.Count(context.Background(), domain.ContentFilter{Category: "node"})

	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestElasticsearchStore_EnsureIndexExisting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings string
		wantErr  bool
	}{
		{
			name:     "raised window",
			settings: `{"sitemap_content":{"settings":{"index.max_result_window":"1000000"}}}`,
		},
		{
			name:     "default window",
			settings: `{"sitemap_content":{"settings":{},"defaults":{"index.max_result_window":"10000"}}}`,
			wantErr:  true,
		},
		{
			name:     "lowered window",
			settings: `{"sitemap_content":{"settings":{"index.max_result_window":"50000"}}}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var created atomic.Bool
			store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodHead && r.URL.Path == "/sitemap_content":
					w.WriteHeader(http.StatusOK)
				case r.Method == http.MethodGet && r.URL.Path == "/sitemap_content/_settings/index.max_result_window":
					assert.Equal(t, "true", r.URL.Query().Get("include_defaults"))
					_, _ = w.Write([]byte(tt.settings))
				default:
					created.Store(true)
					w.WriteHeader(http.StatusBadRequest)
				}
			})

			err := store.EnsureIndex(context.Background())

			if tt.wantErr {
				require.ErrorIs(t, err, contentstore.ErrResultWindowTooSmall)
			} else {
				require.NoError(t, err)
			}
			assert.False(t, created.Load())
		})
	}
}

func TestElasticsearchStore_EnsureIndexCreates(t *testing.T) {
	t.Parallel()

	var mapping map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, http.MethodPut, r.Method)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &mapping)
		_, _ = w.Write([]byte(`{"acknowledged":true,"index":"sitemap_content"}`))
	})

	require.NoError(t, store.EnsureIndex(context.Background()))

	window := mapping["settings"].(map[string]any)["index"].(map[string]any)["max_result_window"]
	assert.InDelta(t, contentstore.MinResultWindow, window, 0)
}
