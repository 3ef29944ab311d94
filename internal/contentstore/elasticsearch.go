// Package contentstore reads linkable content from an Elasticsearch index.
package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/circuitbreaker"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// DefaultIndex is the index holding content documents.
const DefaultIndex = "sitemap_content"

// MinResultWindow is the smallest index.max_result_window the store accepts. FetchPage
// pages with from/size, so a smaller window fails once a data set outgrows it.
const MinResultWindow = 1000000

// defaultResultWindow is the Elasticsearch default for index.max_result_window.
const defaultResultWindow = 10000

// ErrResultWindowTooSmall is returned by EnsureIndex for an existing index whose
// result window cannot page every document.
var ErrResultWindowTooSmall = errors.New("index.max_result_window too small")

// Mapping is the index mapping expected by the store. Filter and sort fields are keywords.
// Paging uses from/size, so the result window is raised well past the default 10000.
const Mapping = `{
  "settings": {
    "index": {"max_result_window": 1000000}
  },
  "mappings": {
    "properties": {
      "id":           {"type": "keyword"},
      "category":     {"type": "keyword"},
      "subcategory":  {"type": "keyword"},
      "published":    {"type": "boolean"},
      "path":         {"type": "keyword"},
      "external":     {"type": "boolean"},
      "changed_at":   {"type": "date"},
      "translatable": {"type": "boolean"},
      "language":     {"type": "keyword"},
      "public":       {"type": "boolean"},
      "body":         {"type": "text", "index": false},
      "translations": {"type": "object"},
      "images":       {"type": "keyword", "index": false}
    }
  }
}`

// ElasticsearchStore implements the content store on an Elasticsearch index.
type ElasticsearchStore struct {
	client  *es.Client
	index   string
	breaker *circuitbreaker.Breaker
}

// NewElasticsearchStore creates a store reading from index. An empty index uses DefaultIndex.
func NewElasticsearchStore(client *es.Client, index string) *ElasticsearchStore {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchStore{
		client: client,
		index:  index,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name: "elasticsearch:" + index,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled)
			},
		}),
	}
}

func filterQuery(filter domain.ContentFilter) map[string]any {
	filters := []map[string]any{
		{"term": map[string]any{"category": filter.Category}},
	}
	if filter.Subcategory != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"subcategory": filter.Subcategory}})
	}
	if filter.PublishedOnly {
		filters = append(filters, map[string]any{"term": map[string]any{"published": true}})
	}

	return map[string]any{
		"bool": map[string]any{"filter": filters},
	}
}

// Count returns the number of documents matching filter.
func (s *ElasticsearchStore) Count(ctx context.Context, filter domain.ContentFilter) (int, error) {
	body, marshalErr := json.Marshal(map[string]any{"query": filterQuery(filter)})
	if marshalErr != nil {
		return 0, fmt.Errorf("failed to marshal count query: %w", marshalErr)
	}

	var result struct {
		Count int `json:"count"`
	}
	err := s.breaker.Execute(func() error {
		res, countErr := s.client.Count(
			s.client.Count.WithContext(ctx),
			s.client.Count.WithIndex(s.index),
			s.client.Count.WithBody(bytes.NewReader(body)),
		)
		if countErr != nil {
			return fmt.Errorf("failed to count: %w", countErr)
		}
		defer res.Body.Close()

		if res.IsError() {
			return fmt.Errorf("error counting %s: %s", filter.Category, res.String())
		}
		return json.NewDecoder(res.Body).Decode(&result)
	})
	if err != nil {
		return 0, fmt.Errorf("count content %s: %w", filter.Category, err)
	}

	return result.Count, nil
}

// FetchPage returns a page of documents matching filter in ascending ID order.
func (s *ElasticsearchStore) FetchPage(
	ctx context.Context,
	filter domain.ContentFilter,
	offset, limit int,
) ([]domain.ContentItem, error) {
	query := map[string]any{
		"query": filterQuery(filter),
		"from":  offset,
		"size":  limit,
		"sort": []map[string]any{
			{"id": map[string]any{"order": "asc"}},
		},
	}
	body, marshalErr := json.Marshal(query)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", marshalErr)
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				ID     string             `json:"_id"`
				Source domain.ContentItem `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	err := s.breaker.Execute(func() error {
		res, searchErr := s.client.Search(
			s.client.Search.WithContext(ctx),
			s.client.Search.WithIndex(s.index),
			s.client.Search.WithBody(bytes.NewReader(body)),
		)
		if searchErr != nil {
			return fmt.Errorf("failed to search: %w", searchErr)
		}
		defer res.Body.Close()

		if res.IsError() {
			return fmt.Errorf("error searching: %s", res.String())
		}
		return json.NewDecoder(res.Body).Decode(&searchResult)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch content %s at %d: %w", filter.Category, offset, err)
	}

	items := make([]domain.ContentItem, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		item := hit.Source
		if item.ID == "" {
			item.ID = hit.ID
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns one document by ID.
func (s *ElasticsearchStore) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	var doc struct {
		ID     string             `json:"_id"`
		Source domain.ContentItem `json:"_source"`
	}
	err := s.breaker.Execute(func() error {
		res, getErr := s.client.Get(s.index, id, s.client.Get.WithContext(ctx))
		if getErr != nil {
			return fmt.Errorf("error getting document: %w", getErr)
		}
		defer res.Body.Close()

		if res.StatusCode == http.StatusNotFound {
			_, _ = io.Copy(io.Discard, res.Body)
			return domain.ErrNotFound
		}
		if res.IsError() {
			return fmt.Errorf("error getting document: %s", res.String())
		}
		return json.NewDecoder(res.Body).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get content %s: %w", id, err)
	}

	item := doc.Source
	if item.ID == "" {
		item.ID = doc.ID
	}
	return &item, nil
}

// Upsert indexes item under its ID.
func (s *ElasticsearchStore) Upsert(ctx context.Context, item *domain.ContentItem) error {
	docBytes, marshalErr := json.Marshal(item)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal document: %w", marshalErr)
	}

	return s.breaker.Execute(func() error {
		res, indexErr := s.client.Index(
			s.index,
			bytes.NewReader(docBytes),
			s.client.Index.WithContext(ctx),
			s.client.Index.WithDocumentID(item.ID),
		)
		if indexErr != nil {
			return fmt.Errorf("failed to index document: %w", indexErr)
		}
		defer res.Body.Close()

		if res.IsError() {
			return fmt.Errorf("error indexing document %s: %s", item.ID, res.String())
		}
		return nil
	})
}

// EnsureIndex creates the index with Mapping when it does not exist. An existing index
// must allow a result window of at least MinResultWindow.
func (s *ElasticsearchStore) EnsureIndex(ctx context.Context) error {
	res, existsErr := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if existsErr != nil {
		return fmt.Errorf("check index %s: %w", s.index, existsErr)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return s.checkResultWindow(ctx)
	}

	created, createErr := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(Mapping))),
	)
	if createErr != nil {
		return fmt.Errorf("create index %s: %w", s.index, createErr)
	}
	defer created.Body.Close()

	if created.IsError() {
		return fmt.Errorf("error creating index %s: %s", s.index, created.String())
	}
	return nil
}

func (s *ElasticsearchStore) checkResultWindow(ctx context.Context) error {
	res, getErr := s.client.Indices.GetSettings(
		s.client.Indices.GetSettings.WithContext(ctx),
		s.client.Indices.GetSettings.WithIndex(s.index),
		s.client.Indices.GetSettings.WithName("index.max_result_window"),
		s.client.Indices.GetSettings.WithIncludeDefaults(true),
		s.client.Indices.GetSettings.WithFlatSettings(true),
	)
	if getErr != nil {
		return fmt.Errorf("get settings of index %s: %w", s.index, getErr)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error getting settings of index %s: %s", s.index, res.String())
	}

	var body map[string]struct {
		Settings map[string]string `json:"settings"`
		Defaults map[string]string `json:"defaults"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&body); decodeErr != nil {
		return fmt.Errorf("decode settings of index %s: %w", s.index, decodeErr)
	}

	window := defaultResultWindow
	for _, idx := range body {
		raw, ok := idx.Settings["index.max_result_window"]
		if !ok {
			raw, ok = idx.Defaults["index.max_result_window"]
		}
		if !ok {
			continue
		}
		n, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return fmt.Errorf("parse max_result_window of index %s: %w", s.index, parseErr)
		}
		window = n
	}

	if window < MinResultWindow {
		return fmt.Errorf("%w: index %s allows %d, need %d", ErrResultWindowTooSmall, s.index, window, MinResultWindow)
	}
	return nil
}
