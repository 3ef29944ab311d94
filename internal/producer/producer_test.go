package producer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/producer"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

type mockContentStore struct {
	countFunc func(ctx context.Context, filter domain.ContentFilter) (int, error)
	fetchFunc func(ctx context.Context, filter domain.ContentFilter, offset, limit int) ([]domain.ContentItem, error)
	getFunc   func(ctx context.Context, id string) (*domain.ContentItem, error)
}

func (m *mockContentStore) Count(ctx context.Context, filter domain.ContentFilter) (int, error) {
	return m.countFunc(ctx, filter)
}

func (m *mockContentStore) FetchPage(
	ctx context.Context, filter domain.ContentFilter, offset, limit int,
) ([]domain.ContentItem, error) {
	return m.fetchFunc(ctx, filter, offset, limit)
}

func (m *mockContentStore) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	return m.getFunc(ctx, id)
}

type mockMenuStore struct {
	links []domain.MenuLink
}

func (m *mockMenuStore) Count(_ context.Context, _ string) (int, error) {
	return len(m.links), nil
}

func (m *mockMenuStore) FetchPage(_ context.Context, _ string, offset, limit int) ([]domain.MenuLink, error) {
	if offset >= len(m.links) {
		return nil, nil
	}
	return m.links[offset:min(offset+limit, len(m.links))], nil
}

func testSettings() *settings.Settings {
	s := settings.Defaults()
	s.BaseURL = "https://example.com"
	s.SetBundle(settings.DefaultContext, "node", "article", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{
			Index: true, Priority: 0.7, ChangeFrequency: domain.ChangeWeekly, IncludeImages: true,
		},
	})
	s.SetBundle(settings.DefaultContext, "node", "page", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{Index: false, Priority: 0.5},
	})
	s.SetBundle(settings.DefaultContext, "taxonomy", "tags", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{Index: true, Priority: 0.3},
	})
	s.SetBundle(settings.DefaultContext, producer.MenuCategory, "main", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{Index: true, Priority: 0.6},
	})
	return s
}

func scopeFor(s *settings.Settings, ds domain.DataSet) producer.Scope {
	return producer.Scope{Context: "default", DataSet: ds, Settings: s}
}

type namedProducer struct {
	producer.CustomProducer
	name      string
	overrides []string
}

func (n *namedProducer) Name() string        { return n.name }
func (n *namedProducer) Overrides() []string { return n.overrides }

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	record := producer.NewRecordProducer(&mockContentStore{})
	menu := producer.NewMenuProducer(&mockMenuStore{}, nil)
	custom := producer.NewCustomProducer()

	reg, err := producer.NewRegistry(record, menu, custom)
	require.NoError(t, err)

	require.Len(t, reg.Producers(), 3)
	assert.Equal(t, producer.RecordProducerName, reg.Producers()[0].Name())

	owner, ok := reg.Owner(producer.MenuCategory)
	require.True(t, ok)
	assert.Equal(t, producer.MenuProducerName, owner)
	assert.True(t, reg.Skips(producer.RecordProducerName, producer.MenuCategory))
	assert.False(t, reg.Skips(producer.MenuProducerName, producer.MenuCategory))
	assert.False(t, reg.Skips(producer.RecordProducerName, "node"))

	_, err = producer.NewRegistry(record, record)
	require.Error(t, err)

	_, err = producer.NewRegistry(menu, &namedProducer{name: "other", overrides: []string{producer.MenuCategory}})
	require.Error(t, err)
}

func TestRecordProducer_DataSets(t *testing.T) {
	t.Parallel()

	p := producer.NewRecordProducer(&mockContentStore{})
	sets, err := p.DataSets(context.Background(), "default", testSettings())
	require.NoError(t, err)

	assert.Equal(t, []domain.DataSet{
		{Category: "menu_link_content", Subcategory: "main"},
		{Category: "node", Subcategory: "article"},
		{Category: "taxonomy", Subcategory: "tags"},
	}, sets)
}

func TestRecordProducer_DataSetsPerContext(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Contexts = []string{"default", "blog", "shop"}
	s.SetBundle("blog", "node", "page", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{Index: true, Priority: 0.2},
	})
	p := producer.NewRecordProducer(&mockContentStore{})
	ctx := context.Background()

	sets, err := p.DataSets(ctx, "blog", s)
	require.NoError(t, err)
	assert.Equal(t, []domain.DataSet{{Category: "node", Subcategory: "page"}}, sets)

	sets, err = p.DataSets(ctx, "shop", s)
	require.NoError(t, err)
	assert.Empty(t, sets)

	pageSet := domain.DataSet{Category: "node", Subcategory: "page"}
	page := &domain.ContentItem{ID: "5", Category: "node", Subcategory: "page", Published: true, Path: "/contact", Public: true}
	rec, err := p.ToURLRecord(ctx, producer.Scope{Context: "blog", DataSet: pageSet, Settings: s}, page)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, *rec.Priority, 1e-9)
	assert.Equal(t, "blog", rec.Context)

	_, err = p.ToURLRecord(ctx, scopeFor(s, pageSet), page)
	assert.ErrorIs(t, err, producer.ErrRejected)
}

func TestRecordProducer_CountAndFetch(t *testing.T) {
	t.Parallel()

	var gotFilter domain.ContentFilter
	store := &mockContentStore{
		countFunc: func(_ context.Context, filter domain.ContentFilter) (int, error) {
			gotFilter = filter
			return 2, nil
		},
		fetchFunc: func(_ context.Context, _ domain.ContentFilter, offset, limit int) ([]domain.ContentItem, error) {
			assert.Equal(t, 1, offset)
			assert.Equal(t, 5, limit)
			return []domain.ContentItem{{ID: "2"}}, nil
		},
	}
	p := producer.NewRecordProducer(store)
	scope := scopeFor(testSettings(), domain.DataSet{Category: "node", Subcategory: "article"})

	n, err := p.Count(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, gotFilter.PublishedOnly)

	candidates, err := p.Fetch(context.Background(), scope, 1, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "2", candidates[0].CandidateID())
}

func TestRecordProducer_CountError(t *testing.T) {
	t.Parallel()

	store := &mockContentStore{
		countFunc: func(context.Context, domain.ContentFilter) (int, error) {
			return 0, errors.New("connection refused")
		},
	}
	_, err := producer.NewRecordProducer(store).Count(
		context.Background(), scopeFor(testSettings(), domain.DataSet{Category: "node", Subcategory: "article"}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count node:article")
}

func TestRecordProducer_ToURLRecord(t *testing.T) {
	t.Parallel()

	changed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := testSettings()
	s.SetItem(settings.DefaultContext, "node", "article", "9", settings.ItemSettings{Index: false, Priority: 0.7})
	scope := scopeFor(s, domain.DataSet{Category: "node", Subcategory: "article"})
	p := producer.NewRecordProducer(&mockContentStore{})

	base := domain.ContentItem{
		ID: "1", Category: "node", Subcategory: "article", Published: true,
		Path: "news/one/", ChangedAt: &changed, Public: true, Language: "en", Translatable: true,
		ImageURLs: []string{"/files/a.png"},
		Body:      `<p><img src="/files/a.png"><img src="https://cdn.example.com/b.jpg"><img src="data:image/png;base64,x"></p>`,
	}

	t.Run("maps item", func(t *testing.T) {
		t.Parallel()
		item := base
		rec, err := p.ToURLRecord(context.Background(), scope, &item)
		require.NoError(t, err)
		assert.Equal(t, "/news/one", rec.Path)
		assert.Equal(t, &changed, rec.LastModified)
		assert.InDelta(t, 0.7, *rec.Priority, 1e-9)
		assert.Equal(t, domain.ChangeWeekly, rec.ChangeFrequency)
		assert.Equal(t, []string{"https://example.com/files/a.png", "https://cdn.example.com/b.jpg"}, rec.Images)
		assert.True(t, rec.Target.Translatable)
		assert.Equal(t, "1", rec.Meta.ItemID)
	})

	rejections := []struct {
		name   string
		mutate func(*domain.ContentItem)
	}{
		{name: "item override disables indexing", mutate: func(i *domain.ContentItem) { i.ID = "9" }},
		{name: "external path", mutate: func(i *domain.ContentItem) { i.External = true }},
		{name: "absolute path", mutate: func(i *domain.ContentItem) { i.Path = "https://elsewhere.example/x" }},
		{name: "no route", mutate: func(i *domain.ContentItem) { i.Path = "" }},
		{name: "not public", mutate: func(i *domain.ContentItem) { i.Public = false }},
		{name: "subcategory not indexed", mutate: func(i *domain.ContentItem) { i.Subcategory = "page" }},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			item := base
			tt.mutate(&item)
			_, err := p.ToURLRecord(context.Background(), scope, &item)
			assert.ErrorIs(t, err, producer.ErrRejected)
		})
	}

	t.Run("public translation only", func(t *testing.T) {
		t.Parallel()
		item := base
		item.Public = false
		item.Translations = []domain.Translation{{Language: "fr", Public: true}}
		_, err := p.ToURLRecord(context.Background(), scope, &item)
		assert.NoError(t, err)
	})
}

func TestMenuProducer(t *testing.T) {
	t.Parallel()

	changed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	content := &mockContentStore{
		getFunc: func(_ context.Context, id string) (*domain.ContentItem, error) {
			if id == "missing" {
				return nil, domain.ErrNotFound
			}
			return &domain.ContentItem{ID: id, Public: true, ChangedAt: &changed, Translatable: true, Language: "en"}, nil
		},
	}
	menus := &mockMenuStore{links: []domain.MenuLink{
		{ID: "m1", Menu: "main", Path: "/about", Enabled: true},
		{ID: "m2", Menu: "main", Path: "/news/1", Enabled: true, ContentID: "1"},
		{ID: "m3", Menu: "main", Path: "/hidden", Enabled: false},
		{ID: "m4", Menu: "main", Path: "https://other.example", External: true, Enabled: true},
		{ID: "m5", Menu: "main", Path: "/gone", Enabled: true, ContentID: "missing"},
	}}
	p := producer.NewMenuProducer(menus, content)
	s := testSettings()
	ctx := context.Background()

	sets, err := p.DataSets(ctx, "default", s)
	require.NoError(t, err)
	require.Equal(t, []domain.DataSet{{Category: producer.MenuCategory, Subcategory: "main"}}, sets)

	scope := scopeFor(s, sets[0])
	n, err := p.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	candidates, err := p.Fetch(ctx, scope, 0, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 5)

	rec, err := p.ToURLRecord(ctx, scope, candidates[0])
	require.NoError(t, err)
	assert.Equal(t, "/about", rec.Path)
	assert.True(t, rec.Target.Public)
	assert.False(t, rec.Target.Translatable)

	rec, err = p.ToURLRecord(ctx, scope, candidates[1])
	require.NoError(t, err)
	assert.Equal(t, &changed, rec.LastModified)
	assert.True(t, rec.Target.Translatable)

	for _, c := range candidates[2:] {
		_, err = p.ToURLRecord(ctx, scope, c)
		assert.ErrorIs(t, err, producer.ErrRejected, "candidate %s", c.CandidateID())
	}
}

func TestCustomProducer(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Contexts = []string{"default", "shop"}
	s.CustomLinks = []settings.CustomLink{
		{Path: "/", Priority: 1, ChangeFrequency: domain.ChangeDaily, Context: "default"},
		{Path: "/cart", Priority: 0.2, Context: "shop"},
	}
	p := producer.NewCustomProducer()
	ctx := context.Background()

	sets, err := p.DataSets(ctx, "shop", s)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	scope := producer.Scope{Context: "shop", DataSet: sets[0], Settings: s}
	n, err := p.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := p.Fetch(ctx, scope, 1, 5)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "/cart", page[0].CandidateID())

	rec, err := p.ToURLRecord(ctx, scope, page[0])
	require.NoError(t, err)
	assert.Equal(t, "/cart", rec.Path)
	assert.Equal(t, "shop", rec.Context)
	assert.InDelta(t, 0.2, *rec.Priority, 1e-9)

	empty, err := p.Fetch(ctx, scope, 5, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	s.CustomLinks = nil
	sets, err = p.DataSets(ctx, "default", s)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestArbitraryProducer(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Contexts = []string{"default", "shop"}
	changed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	links := []producer.ArbitraryLink{
		{
			CustomLink:   settings.CustomLink{Path: "/feed", Priority: 0.3, ChangeFrequency: domain.ChangeHourly},
			LastModified: &changed,
			Images:       []string{"/img/feed.png"},
		},
		{CustomLink: settings.CustomLink{Path: "/sale", Priority: 0.8, Context: "shop"}},
		{CustomLink: settings.CustomLink{Path: "no-slash", Priority: 0.5, Context: "shop"}},
		{CustomLink: settings.CustomLink{Path: "/too-high", Priority: 1.5, Context: "shop"}},
	}
	p := producer.NewArbitraryProducer(producer.LinkSourceFunc(func(context.Context) ([]producer.ArbitraryLink, error) {
		return links, nil
	}))
	ctx := context.Background()

	sets, err := p.DataSets(ctx, "default", s)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, producer.ArbitraryCategory, sets[0].Category)

	scope := producer.Scope{Context: "default", DataSet: sets[0], Settings: s}
	n, err := p.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := p.Fetch(ctx, scope, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)

	rec, err := p.ToURLRecord(ctx, scope, page[0])
	require.NoError(t, err)
	assert.Equal(t, "/feed", rec.Path)
	assert.Equal(t, &changed, rec.LastModified)
	assert.Equal(t, domain.ChangeHourly, rec.ChangeFrequency)
	assert.Equal(t, []string{"https://example.com/img/feed.png"}, rec.Images)
	assert.Equal(t, producer.ArbitraryProducerName, rec.Meta.Producer)
	assert.True(t, rec.Target.Public)

	shop := producer.Scope{Context: "shop", DataSet: sets[0], Settings: s}
	n, err = p.Count(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err = p.Fetch(ctx, shop, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "/sale", page[0].CandidateID())

	_, err = p.ToURLRecord(ctx, shop, page[1])
	require.ErrorIs(t, err, producer.ErrRejected)
	_, err = p.ToURLRecord(ctx, shop, page[2])
	require.ErrorIs(t, err, producer.ErrRejected)
}

func TestArbitraryProducer_Source(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := testSettings()

	none := producer.NewArbitraryProducer(nil)
	sets, err := none.DataSets(ctx, "default", s)
	require.NoError(t, err)
	assert.Empty(t, sets)

	failing := producer.NewArbitraryProducer(producer.LinkSourceFunc(func(context.Context) ([]producer.ArbitraryLink, error) {
		return nil, errors.New("feed unavailable")
	}))
	_, err = failing.DataSets(ctx, "default", s)
	require.ErrorContains(t, err, "feed unavailable")

	_, err = failing.Count(ctx, scopeFor(s, domain.DataSet{Category: producer.ArbitraryCategory}))
	require.Error(t, err)
}

func TestExtractImages(t *testing.T) {
	t.Parallel()

	images := producer.ExtractImages("https://example.com/", []string{"img/x.png", "ftp://bad/x.png"},
		`<div><img src="//cdn.example.com/y.png"><img alt="no src"></div>`)
	assert.Equal(t, []string{"https://example.com/img/x.png", "https://cdn.example.com/y.png"}, images)

	assert.Empty(t, producer.ExtractImages("https://example.com", nil, ""))
}
