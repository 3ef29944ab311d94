package settings_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraconfig "github.com/jonesrussell/north-cloud/sitemap/infrastructure/config"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

func validSettings() *settings.Settings {
	s := settings.Defaults()
	s.BaseURL = "https://example.com/"
	return s
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		want    settings.Priority
		wantErr bool
	}{
		{name: "zero", input: 0, want: 0},
		{name: "half", input: 0.5, want: 0.5},
		{name: "one", input: 1, want: 1},
		{name: "numeric string", input: "0.8", want: 0.8},
		{name: "negative", input: -0.1, wantErr: true},
		{name: "above one", input: 1.1, wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "nil", input: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := settings.ParsePriority(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, settings.ErrInvalid)

				var vErr *infraconfig.ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), float64(got), 1e-9)
		})
	}
}

func TestPriority_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var item settings.ItemSettings
	require.NoError(t, json.Unmarshal([]byte(`{"index":true,"priority":"0.7"}`), &item))
	assert.InDelta(t, 0.7, item.Priority.Float64(), 1e-9)

	err := json.Unmarshal([]byte(`{"priority":"abc"}`), &item)
	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrInvalid)

	err = json.Unmarshal([]byte(`{"priority":1.1}`), &item)
	assert.ErrorIs(t, err, settings.ErrInvalid)
}

func TestParseBatchSize(t *testing.T) {
	t.Parallel()

	got, err := settings.ParseBatchSize("batch_process_limit", "25")
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	for _, bad := range []any{0, -3, 2.5, "abc", true} {
		_, err = settings.ParseBatchSize("batch_process_limit", bad)
		assert.ErrorIs(t, err, settings.ErrInvalid, "input %v", bad)
	}

	limit, err := settings.ParseLinkLimit(0)
	require.NoError(t, err)
	assert.Zero(t, limit)
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	t.Run("defaults with base URL are valid", func(t *testing.T) {
		t.Parallel()
		s := validSettings()
		require.NoError(t, s.Normalize())
		assert.NoError(t, s.Validate())
		assert.Equal(t, "https://example.com", s.BaseURL)
	})

	t.Run("missing base URL", func(t *testing.T) {
		t.Parallel()
		s := settings.Defaults()
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid)
	})

	t.Run("default language must be configured", func(t *testing.T) {
		t.Parallel()
		s := validSettings()
		s.DefaultLanguage = "fr"
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid)
	})

	t.Run("invalid change frequency", func(t *testing.T) {
		t.Parallel()
		s := validSettings()
		s.SetBundle(settings.DefaultContext, "node", "page", settings.BundleSettings{
			ItemSettings: settings.ItemSettings{Index: true, Priority: 0.5, ChangeFrequency: "sometimes"},
		})
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid)
	})

	t.Run("generated-by comment cannot contain double hyphen", func(t *testing.T) {
		t.Parallel()
		s := validSettings()
		s.GeneratedBy = "a -- b"
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid)
	})

	t.Run("cron schedule must parse", func(t *testing.T) {
		t.Parallel()
		s := validSettings()
		s.CronSchedule = "every hour"
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid)

		s.CronSchedule = "0 */6 * * *"
		assert.NoError(t, s.Validate())
	})

	t.Run("duplicate contexts", func(t *testing.T) {
		t.Parallel()
		s := validSettings()
		s.Contexts = []string{"main", "main"}
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid)
	})
}

func TestSettings_Normalize(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Languages = []string{"EN", "fr-ca", "en"}
	s.DefaultLanguage = ""
	require.NoError(t, s.Normalize())

	assert.Equal(t, []string{"en", "fr-CA"}, s.Languages)
	assert.Equal(t, "en", s.DefaultLanguage)

	s.Languages = []string{"not a tag!"}
	assert.ErrorIs(t, s.Normalize(), settings.ErrInvalid)
}

func TestSettings_ActiveLanguages(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Languages = []string{"en", "fr", "de"}
	s.ExcludedLanguages = []string{"de", "en"}

	assert.Equal(t, []string{"en", "fr"}, s.ActiveLanguages())
	assert.True(t, s.Hreflang())

	s.ExcludedLanguages = []string{"fr", "de"}
	assert.False(t, s.Hreflang())
}

func TestSettings_ItemSettings(t *testing.T) {
	t.Parallel()

	s := validSettings()
	bundle := settings.ItemSettings{Index: true, Priority: 0.5, ChangeFrequency: domain.ChangeDaily}
	s.SetBundle(settings.DefaultContext, "node", "article", settings.BundleSettings{ItemSettings: bundle})

	override := settings.ItemSettings{Index: false, Priority: 0.5}
	s.SetItem(settings.DefaultContext, "node", "article", "7", override)

	assert.Equal(t, bundle, s.ItemSettings(settings.DefaultContext, "node", "article", "1"))
	assert.Equal(t, override, s.ItemSettings(settings.DefaultContext, "node", "article", "7"))

	// An override equal to the subcategory settings is dropped.
	s.SetItem(settings.DefaultContext, "node", "article", "7", bundle)
	assert.Empty(t, s.Bundle(settings.DefaultContext, "node", "article").Items)

	assert.Equal(t, settings.DefaultItemSettings(), s.ItemSettings(settings.DefaultContext, "node", "missing", "1"))
}

func TestSettings_ContextCategories(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Contexts = []string{"default", "blog"}
	article := settings.ItemSettings{Index: true, Priority: 0.9}
	page := settings.ItemSettings{Index: true, Priority: 0.2}
	s.SetBundle(settings.DefaultContext, "node", "article", settings.BundleSettings{ItemSettings: article})
	s.SetBundle("blog", "node", "page", settings.BundleSettings{ItemSettings: page})
	s.SetItem("blog", "node", "page", "4", settings.ItemSettings{Index: false, Priority: 0.2})

	assert.Equal(t, article, s.ItemSettings("", "node", "article", "1"))
	assert.Equal(t, page, s.ItemSettings("blog", "node", "page", "1"))
	assert.False(t, s.ItemSettings("blog", "node", "page", "4").Index)
	assert.False(t, s.Bundle("blog", "node", "article").Index)
	assert.False(t, s.Bundle(settings.DefaultContext, "node", "page").Index)
	assert.Empty(t, s.CategoriesOf("shop"))
	require.NoError(t, s.Validate())

	clone := s.Clone()
	clone.SetItem("blog", "node", "page", "5", settings.ItemSettings{Index: false})
	assert.NotContains(t, s.Bundle("blog", "node", "page").Items, "5")

	s.SetBundle("shop", "node", "page", settings.BundleSettings{ItemSettings: page})
	err := s.Validate()
	require.ErrorIs(t, err, settings.ErrInvalid)
	assert.Contains(t, err.Error(), "context_categories.shop")
}

func TestSettings_CustomLinksFor(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Contexts = []string{"default", "shop"}
	s.CustomLinks = []settings.CustomLink{
		{Path: "/", Priority: 1},
		{Path: "/cart", Priority: 0.3, Context: "shop"},
	}

	assert.Len(t, s.CustomLinksFor("default"), 1)
	assert.Len(t, s.CustomLinksFor("shop"), 2)
}

func TestManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr := settings.NewManager(settings.NewMemoryStore(), validSettings())

	updated, err := mgr.UpdateGlobal(ctx, map[string]any{
		"max_links":           float64(10),
		"batch_process_limit": "5",
		"languages":           []any{"en", "fr"},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.MaxLinks)
	assert.Equal(t, 5, updated.BatchProcessLimit)

	_, err = mgr.UpdateGlobal(ctx, map[string]any{"batch_process_limit": 2.5})
	require.ErrorIs(t, err, settings.ErrInvalid)

	_, err = mgr.UpdateGlobal(ctx, map[string]any{"no_such_setting": true})
	require.ErrorIs(t, err, settings.ErrInvalid)

	require.NoError(t, mgr.SetBundle(ctx, settings.DefaultContext, "node", "page", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{Index: true, Priority: 0.8},
	}))
	require.NoError(t, mgr.SetItem(ctx, settings.DefaultContext, "node", "page", "3", settings.ItemSettings{Index: false, Priority: 0.8}))

	require.NoError(t, mgr.AddCustomLink(ctx, settings.CustomLink{Path: "/contact", Priority: 0.4}))
	err = mgr.AddCustomLink(ctx, settings.CustomLink{Path: "contact", Priority: 0.4})
	require.ErrorIs(t, err, settings.ErrInvalid)

	loaded, err := mgr.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.MaxLinks)
	assert.Equal(t, []string{"en", "fr"}, loaded.Languages)
	assert.True(t, loaded.Bundle(settings.DefaultContext, "node", "page").Index)
	assert.False(t, loaded.ItemSettings(settings.DefaultContext, "node", "page", "3").Index)
	require.Len(t, loaded.CustomLinks, 1)
	assert.Equal(t, settings.DefaultContext, loaded.CustomLinks[0].Context)

	blog := validSettings()
	blog.Contexts = []string{"default", "blog"}
	blogMgr := settings.NewManager(settings.NewMemoryStore(), blog)
	require.NoError(t, blogMgr.SetBundle(ctx, "blog", "node", "page", settings.BundleSettings{
		ItemSettings: settings.ItemSettings{Index: true, Priority: 0.3},
	}))
	require.NoError(t, blogMgr.SetItem(ctx, "blog", "node", "page", "2", settings.ItemSettings{Index: false, Priority: 0.3}))
	err = blogMgr.SetBundle(ctx, "shop", "node", "page", settings.BundleSettings{ItemSettings: settings.ItemSettings{Index: true}})
	require.ErrorIs(t, err, settings.ErrInvalid)

	blogLoaded, err := blogMgr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, blogLoaded.Bundle("blog", "node", "page").Index)
	assert.False(t, blogLoaded.ItemSettings("blog", "node", "page", "2").Index)
	assert.False(t, blogLoaded.Bundle(settings.DefaultContext, "node", "page").Index)

	removed, err := mgr.RemoveCustomLink(ctx, "/contact", "")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = mgr.RemoveCustomLink(ctx, "/contact", "")
	require.NoError(t, err)
	assert.False(t, removed)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("unavailable") }
func (failingStore) Set(context.Context, string, []byte) error   { return errors.New("unavailable") }

func TestManager_StoreFailure(t *testing.T) {
	t.Parallel()

	mgr := settings.NewManager(failingStore{}, nil)
	_, err := mgr.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read setting settings")
}
