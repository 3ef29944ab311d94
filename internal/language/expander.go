// Package language fans a URL record out into one variant per public language version.
package language

import (
	"slices"
	"strings"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// Config is the language configuration of a run.
type Config struct {
	BaseURL   string
	Languages []string
	Default   string
	Excluded  []string
	// SkipUntranslated limits translatable records to their existing public translations.
	SkipUntranslated bool
}

// Expander builds language variants and their hreflang alternates.
type Expander struct {
	cfg      Config
	excluded map[string]bool
}

// NewExpander creates an Expander.
func NewExpander(cfg Config) *Expander {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	excluded := make(map[string]bool, len(cfg.Excluded))
	for _, code := range cfg.Excluded {
		excluded[code] = true
	}
	return &Expander{cfg: cfg, excluded: excluded}
}

// Hreflang reports whether more than one language is active.
func (e *Expander) Hreflang() bool {
	active := 0
	for _, code := range e.cfg.Languages {
		if e.included(code) {
			active++
		}
	}
	return active > 1
}

func (e *Expander) included(code string) bool {
	return code == e.cfg.Default || !e.excluded[code]
}

// URL builds the absolute URL of path in a language. Non-default languages carry a
// language path prefix.
func (e *Expander) URL(code, path string) string {
	if code == e.cfg.Default {
		return e.cfg.BaseURL + path
	}
	if path == "/" {
		return e.cfg.BaseURL + "/" + code
	}
	return e.cfg.BaseURL + "/" + code + path
}

// Alternates returns the language versions of rec in configured language order.
func (e *Expander) Alternates(rec *domain.URLRecord) []domain.Alternate {
	target := rec.Target
	if !target.Translatable || !e.cfg.SkipUntranslated {
		return e.allLanguages(rec)
	}

	if target.Language == domain.LanguageUnspecified || target.Language == domain.LanguageNotApplicable {
		if !target.Public {
			return nil
		}
		return []domain.Alternate{{Language: e.cfg.Default, URL: e.URL(e.cfg.Default, rec.Path)}}
	}

	var alternates []domain.Alternate
	for _, code := range e.cfg.Languages {
		if !e.included(code) {
			continue
		}
		idx := slices.IndexFunc(target.Translations, func(tr domain.Translation) bool {
			return tr.Language == code
		})
		if idx < 0 || !target.Translations[idx].Public {
			continue
		}
		alternates = append(alternates, domain.Alternate{Language: code, URL: e.URL(code, rec.Path)})
	}
	return alternates
}

func (e *Expander) allLanguages(rec *domain.URLRecord) []domain.Alternate {
	if !rec.Target.Public {
		return nil
	}
	alternates := make([]domain.Alternate, 0, len(e.cfg.Languages))
	for _, code := range e.cfg.Languages {
		if !e.included(code) {
			continue
		}
		alternates = append(alternates, domain.Alternate{Language: code, URL: e.URL(code, rec.Path)})
	}
	return alternates
}

// Expand returns one variant per alternate. Every variant carries the full sibling list.
func (e *Expander) Expand(rec *domain.URLRecord) []domain.Variant {
	alternates := e.Alternates(rec)
	if len(alternates) == 0 {
		return nil
	}

	variants := make([]domain.Variant, 0, len(alternates))
	for _, alt := range alternates {
		variants = append(variants, domain.Variant{
			Language:        alt.Language,
			URL:             alt.URL,
			LastModified:    rec.LastModified,
			Priority:        rec.Priority,
			ChangeFrequency: rec.ChangeFrequency,
			Images:          slices.Clone(rec.Images),
			Alternates:      slices.Clone(alternates),
			Meta:            rec.Meta,
		})
	}
	return variants
}
