package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/language"
)

func threeLanguages(skipUntranslated bool) *language.Expander {
	return language.NewExpander(language.Config{
		BaseURL:          "https://example.com/",
		Languages:        []string{"en", "fr", "de"},
		Default:          "en",
		Excluded:         []string{"de"},
		SkipUntranslated: skipUntranslated,
	})
}

func TestExpander_TranslatedRecord(t *testing.T) {
	t.Parallel()

	e := threeLanguages(true)
	rec := &domain.URLRecord{
		Path: "/news/1",
		Target: domain.Target{
			Public:       true,
			Translatable: true,
			Language:     "en",
			Translations: []domain.Translation{
				{Language: "en", Public: true},
				{Language: "fr", Public: true},
				{Language: "de", Public: true},
			},
		},
	}

	variants := e.Expand(rec)
	require.Len(t, variants, 2)
	assert.Equal(t, "https://example.com/news/1", variants[0].URL)
	assert.Equal(t, "https://example.com/fr/news/1", variants[1].URL)
	for _, v := range variants {
		assert.Len(t, v.Alternates, 2)
	}
	assert.True(t, e.Hreflang())
}

func TestExpander_PrivateTranslationSkipped(t *testing.T) {
	t.Parallel()

	rec := &domain.URLRecord{
		Path: "/news/2",
		Target: domain.Target{
			Translatable: true,
			Language:     "en",
			Translations: []domain.Translation{
				{Language: "en", Public: false},
				{Language: "fr", Public: true},
			},
		},
	}

	variants := threeLanguages(true).Expand(rec)
	require.Len(t, variants, 1)
	assert.Equal(t, "fr", variants[0].Language)
}

func TestExpander_NonTranslatableRecord(t *testing.T) {
	t.Parallel()

	e := language.NewExpander(language.Config{
		BaseURL:          "https://example.com",
		Languages:        []string{"en", "fr", "de"},
		Default:          "en",
		SkipUntranslated: true,
	})
	rec := &domain.URLRecord{Path: "/", Target: domain.Target{Public: true}}

	variants := e.Expand(rec)
	require.Len(t, variants, 3)
	assert.Equal(t, "https://example.com/", variants[0].URL)
	assert.Equal(t, "https://example.com/fr", variants[1].URL)
	assert.Equal(t, "https://example.com/de", variants[2].URL)
	assert.Len(t, variants[2].Alternates, 3)
}

func TestExpander_TranslationHandlingDisabled(t *testing.T) {
	t.Parallel()

	rec := &domain.URLRecord{
		Path: "/news/3",
		Target: domain.Target{
			Public:       true,
			Translatable: true,
			Language:     "en",
			Translations: []domain.Translation{{Language: "en", Public: true}},
		},
	}

	assert.Len(t, threeLanguages(false).Expand(rec), 2)
}

func TestExpander_UnspecifiedLanguage(t *testing.T) {
	t.Parallel()

	rec := &domain.URLRecord{
		Path:   "/files/x",
		Target: domain.Target{Public: true, Translatable: true, Language: domain.LanguageNotApplicable},
	}

	variants := threeLanguages(true).Expand(rec)
	require.Len(t, variants, 1)
	assert.Equal(t, "en", variants[0].Language)

	rec.Target.Public = false
	assert.Empty(t, threeLanguages(true).Expand(rec))
}

func TestExpander_PrivateRecordHasNoVariants(t *testing.T) {
	t.Parallel()

	rec := &domain.URLRecord{Path: "/private", Target: domain.Target{Public: false}}
	assert.Empty(t, threeLanguages(false).Expand(rec))
}

func TestExpander_SingleLanguageDisablesHreflang(t *testing.T) {
	t.Parallel()

	e := language.NewExpander(language.Config{
		BaseURL:   "https://example.com",
		Languages: []string{"en", "fr"},
		Default:   "en",
		Excluded:  []string{"fr"},
	})
	assert.False(t, e.Hreflang())
}
