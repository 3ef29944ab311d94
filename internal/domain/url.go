// Package domain contains the value types that flow through the sitemap generation pipeline.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// ChangeFrequency is the sitemap protocol changefreq value.
type ChangeFrequency string

// Change frequencies accepted by the sitemap protocol.
const (
	ChangeAlways  ChangeFrequency = "always"
	ChangeHourly  ChangeFrequency = "hourly"
	ChangeDaily   ChangeFrequency = "daily"
	ChangeWeekly  ChangeFrequency = "weekly"
	ChangeMonthly ChangeFrequency = "monthly"
	ChangeYearly  ChangeFrequency = "yearly"
	ChangeNever   ChangeFrequency = "never"
)

var validChangeFrequencies = map[ChangeFrequency]bool{
	ChangeAlways:  true,
	ChangeHourly:  true,
	ChangeDaily:   true,
	ChangeWeekly:  true,
	ChangeMonthly: true,
	ChangeYearly:  true,
	ChangeNever:   true,
}

// IsValid reports whether f is empty (unset) or one of the protocol values.
func (f ChangeFrequency) IsValid() bool {
	return f == "" || validChangeFrequencies[f]
}

// Language codes meaning "unspecified" and "not applicable".
const (
	LanguageUnspecified   = "und"
	LanguageNotApplicable = "zxx"
)

// Path errors returned by NormalizePath.
var (
	ErrNoRoute      = errors.New("path has no route")
	ErrExternalPath = errors.New("path points outside the site")
)

// NormalizePath converts a raw route path into the canonical server-relative form used
// as the deduplication key: leading slash, no duplicate or trailing slashes, no fragment.
// The query string is kept.
func NormalizePath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoRoute
	}

	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", fmt.Errorf("%w: %w", ErrNoRoute, parseErr)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", ErrExternalPath
	}
	if u.Path == "" {
		return "", ErrNoRoute
	}

	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)

	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}

	return p, nil
}

// Meta is diagnostic data about where a record came from. It is never serialized to XML.
type Meta struct {
	Producer    string `json:"producer,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	RawPath     string `json:"raw_path,omitempty"`
}

// Translation is one language version of a content item.
type Translation struct {
	Language string `json:"language"`
	Public   bool   `json:"public"`
}

// Target describes the routed item behind a record, as needed for language expansion.
type Target struct {
	// Public is the anonymous-access result for the base route.
	Public bool `json:"public"`
	// Translatable marks a translatable content record.
	Translatable bool `json:"translatable"`
	// Language is the record's own language; und/zxx mean unspecified/not applicable.
	Language     string        `json:"language,omitempty"`
	Translations []Translation `json:"translations,omitempty"`
}

// URLRecord is one candidate link before language expansion.
type URLRecord struct {
	Path            string          `json:"path"`
	LastModified    *time.Time      `json:"last_modified,omitempty"`
	Priority        *float64        `json:"priority,omitempty"`
	ChangeFrequency ChangeFrequency `json:"change_frequency,omitempty"`
	Images          []string        `json:"images,omitempty"`
	Context         string          `json:"context"`
	Meta            Meta            `json:"meta"`
	Target          Target          `json:"target"`
}

// Alternate is one hreflang sibling of a variant.
type Alternate struct {
	Language string `json:"lang"`
	URL      string `json:"url"`
}

// Variant is a language-specific absolute URL derived from one URLRecord.
// Alternates holds every sibling, this variant included, in configured language order.
type Variant struct {
	Language        string          `json:"lang"`
	URL             string          `json:"url"`
	LastModified    *time.Time      `json:"lastmod,omitempty"`
	Priority        *float64        `json:"priority,omitempty"`
	ChangeFrequency ChangeFrequency `json:"changefreq,omitempty"`
	Images          []string        `json:"images,omitempty"`
	Alternates      []Alternate     `json:"alternates,omitempty"`
	Meta            Meta            `json:"meta"`
}
