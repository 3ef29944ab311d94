// Package settings holds the typed generation settings, their validation and persistence.
package settings

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// ErrInvalid marks settings that failed validation. Wrapped errors also carry an
// *infraconfig.ValidationError naming the field.
var ErrInvalid = errors.New("invalid settings")

// Default setting values.
const (
	DefaultMaxLinks          = 2000
	DefaultBatchProcessLimit = 1500
	DefaultPriority          = 0.5
	DefaultCronSchedule      = "@every 1h"
	DefaultContext           = "default"
	DefaultLanguage          = "en"
	DefaultGeneratedBy       = "north-cloud sitemap generator"
)

// ItemSettings controls whether and how a category, subcategory or single item is indexed.
type ItemSettings struct {
	Index           bool                   `json:"index"            yaml:"index"`
	Priority        Priority               `json:"priority"         yaml:"priority"`
	ChangeFrequency domain.ChangeFrequency `json:"changefreq"       yaml:"changefreq"`
	IncludeImages   bool                   `json:"include_images"   yaml:"include_images"`
}

// BundleSettings is the settings of one subcategory plus per-item overrides keyed by item ID.
type BundleSettings struct {
	ItemSettings `yaml:",inline"`
	Items        map[string]ItemSettings `json:"items,omitempty" yaml:"items,omitempty"`
}

// CustomLink is an operator-declared path with its own priority and change frequency.
type CustomLink struct {
	Path            string                 `json:"path"             yaml:"path"`
	Priority        Priority               `json:"priority"         yaml:"priority"`
	ChangeFrequency domain.ChangeFrequency `json:"changefreq"       yaml:"changefreq"`
	// Context names the sitemap context; links in the default context appear in every context.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Global is the scalar part of the settings.
type Global struct {
	BaseURL                   string   `env:"SITEMAP_BASE_URL" json:"base_url"                     yaml:"base_url"`
	MaxLinks                  int      `json:"max_links"                    yaml:"max_links"`
	BatchProcessLimit         int      `json:"batch_process_limit"          yaml:"batch_process_limit"`
	CronGenerate              bool     `json:"cron_generate"                yaml:"cron_generate"`
	CronSchedule              string   `json:"cron_schedule"                yaml:"cron_schedule"`
	RemoveDuplicates          bool     `json:"remove_duplicates"            yaml:"remove_duplicates"`
	RemoveDuplicatesByContext bool     `json:"remove_duplicates_by_context" yaml:"remove_duplicates_by_context"`
	SkipUntranslated          bool     `json:"skip_untranslated"            yaml:"skip_untranslated"`
	Languages                 []string `json:"languages"                    yaml:"languages"`
	DefaultLanguage           string   `json:"default_language"             yaml:"default_language"`
	ExcludedLanguages         []string `json:"excluded_languages"           yaml:"excluded_languages"`
	Contexts                  []string `json:"contexts"                     yaml:"contexts"`
	GeneratedBy               string   `json:"generated_by"                 yaml:"generated_by"`
}

// Categories holds subcategory settings keyed by category, then subcategory.
type Categories map[string]map[string]BundleSettings

// Settings is the complete configuration of a generation run.
type Settings struct {
	Global `yaml:",inline"`
	// Categories configures the default context.
	Categories Categories `json:"categories" yaml:"categories"`
	// ContextCategories configures every other context. A context without an entry
	// indexes no categories; only its custom and code-supplied links are emitted.
	ContextCategories map[string]Categories `json:"context_categories,omitempty" yaml:"context_categories,omitempty"`
	CustomLinks       []CustomLink          `json:"custom_links"                 yaml:"custom_links"`
}

// Defaults returns settings with every default applied and no categories indexed.
func Defaults() *Settings {
	return &Settings{
		Global: Global{
			MaxLinks:          DefaultMaxLinks,
			BatchProcessLimit: DefaultBatchProcessLimit,
			CronGenerate:      true,
			CronSchedule:      DefaultCronSchedule,
			RemoveDuplicates:  true,
			Languages:         []string{DefaultLanguage},
			DefaultLanguage:   DefaultLanguage,
			Contexts:          []string{DefaultContext},
			GeneratedBy:       DefaultGeneratedBy,
		},
		Categories: make(Categories),
	}
}

// DefaultItemSettings returns the settings of a subcategory with no stored configuration.
func DefaultItemSettings() ItemSettings {
	return ItemSettings{Priority: DefaultPriority}
}

// CategoriesOf returns the category settings of a context. An empty name is the default context.
func (s *Settings) CategoriesOf(sitemapContext string) Categories {
	if sitemapContext == "" || sitemapContext == DefaultContext {
		return s.Categories
	}
	return s.ContextCategories[sitemapContext]
}

// Bundle returns the settings of a subcategory in a context, or the defaults when none are stored.
func (s *Settings) Bundle(sitemapContext, category, subcategory string) BundleSettings {
	if subs, ok := s.CategoriesOf(sitemapContext)[category]; ok {
		if b, found := subs[subcategory]; found {
			return b
		}
	}
	return BundleSettings{ItemSettings: DefaultItemSettings()}
}

// ItemSettings resolves the effective settings of one item in a context: its override
// when present, otherwise the subcategory settings.
func (s *Settings) ItemSettings(sitemapContext, category, subcategory, itemID string) ItemSettings {
	b := s.Bundle(sitemapContext, category, subcategory)
	if override, ok := b.Items[itemID]; ok {
		return override
	}
	return b.ItemSettings
}

// SetBundle stores subcategory settings, keeping existing item overrides when b has none.
func (s *Settings) SetBundle(sitemapContext, category, subcategory string, b BundleSettings) {
	subs := s.category(sitemapContext, category)
	if b.Items == nil {
		b.Items = subs[subcategory].Items
	}
	subs[subcategory] = b
}

func (s *Settings) category(sitemapContext, name string) map[string]BundleSettings {
	var categories Categories
	if sitemapContext == "" || sitemapContext == DefaultContext {
		if s.Categories == nil {
			s.Categories = make(Categories)
		}
		categories = s.Categories
	} else {
		if s.ContextCategories == nil {
			s.ContextCategories = make(map[string]Categories)
		}
		categories = s.ContextCategories[sitemapContext]
		if categories == nil {
			categories = make(Categories)
			s.ContextCategories[sitemapContext] = categories
		}
	}

	subs, ok := categories[name]
	if !ok {
		subs = make(map[string]BundleSettings)
		categories[name] = subs
	}
	return subs
}

// SetItem stores a per-item override. An override equal to the subcategory settings is removed.
func (s *Settings) SetItem(sitemapContext, category, subcategory, itemID string, item ItemSettings) {
	b := s.Bundle(sitemapContext, category, subcategory)
	items := make(map[string]ItemSettings, len(b.Items)+1)
	for id, v := range b.Items {
		items[id] = v
	}

	if item == b.ItemSettings {
		delete(items, itemID)
	} else {
		items[itemID] = item
	}

	if len(items) == 0 {
		items = nil
	}
	b.Items = items
	s.category(sitemapContext, category)[subcategory] = b
}

// ActiveLanguages returns the configured languages that are not excluded. The default
// language is always active.
func (s *Settings) ActiveLanguages() []string {
	active := make([]string, 0, len(s.Languages))
	for _, lang := range s.Languages {
		if lang != s.DefaultLanguage && slices.Contains(s.ExcludedLanguages, lang) {
			continue
		}
		active = append(active, lang)
	}
	return active
}

// Hreflang reports whether alternate-language links are emitted.
func (s *Settings) Hreflang() bool {
	return len(s.ActiveLanguages()) > 1
}

// CustomLinksFor returns the custom links that belong in a context, in declaration order.
func (s *Settings) CustomLinksFor(context string) []CustomLink {
	var links []CustomLink
	for _, l := range s.CustomLinks {
		if InContext(l.Context, context) {
			links = append(links, l)
		}
	}
	return links
}

// InContext reports whether a link declared for linkContext belongs in context. Links
// without a context, or in the default context, belong in every context.
func InContext(linkContext, context string) bool {
	return linkContext == "" || linkContext == DefaultContext || linkContext == context
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Languages = slices.Clone(s.Languages)
	c.ExcludedLanguages = slices.Clone(s.ExcludedLanguages)
	c.Contexts = slices.Clone(s.Contexts)
	c.CustomLinks = slices.Clone(s.CustomLinks)
	c.Categories = s.Categories.clone()
	c.ContextCategories = nil
	if s.ContextCategories != nil {
		c.ContextCategories = make(map[string]Categories, len(s.ContextCategories))
		for name, categories := range s.ContextCategories {
			c.ContextCategories[name] = categories.clone()
		}
	}
	return &c
}

func (c Categories) clone() Categories {
	copied := make(Categories, len(c))
	for cat, subs := range c {
		bundles := make(map[string]BundleSettings, len(subs))
		for sub, b := range subs {
			if b.Items != nil {
				items := make(map[string]ItemSettings, len(b.Items))
				for id, v := range b.Items {
					items[id] = v
				}
				b.Items = items
			}
			bundles[sub] = b
		}
		copied[cat] = bundles
	}
	return copied
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrInvalid, newValidationError(field, fmt.Sprintf(format, args...)))
}
