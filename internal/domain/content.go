package domain

import (
	"errors"
	"time"
)

// ContentFilter selects content items by category, subcategory and status.
type ContentFilter struct {
	Category      string
	Subcategory   string
	PublishedOnly bool
}

// ContentItem is a linkable record held by the content store.
type ContentItem struct {
	ID           string        `db:"id"           json:"id"`
	Category     string        `db:"category"     json:"category"`
	Subcategory  string        `db:"subcategory"  json:"subcategory"`
	Published    bool          `db:"published"    json:"published"`
	Path         string        `db:"path"         json:"path"`
	External     bool          `db:"external"     json:"external"`
	ChangedAt    *time.Time    `db:"changed_at"   json:"changed_at,omitempty"`
	Translatable bool          `db:"translatable" json:"translatable"`
	Language     string        `db:"language"     json:"language"`
	Public       bool          `db:"public"       json:"public"`
	Body         string        `db:"body"         json:"body,omitempty"`
	Translations []Translation `db:"-"            json:"translations,omitempty"`
	ImageURLs    []string      `db:"-"            json:"images,omitempty"`
}

// CandidateID identifies the item in progress reports.
func (c *ContentItem) CandidateID() string {
	return c.ID
}

// HasPublicAccess reports whether any language version is reachable anonymously.
func (c *ContentItem) HasPublicAccess() bool {
	if c.Public {
		return true
	}
	for _, t := range c.Translations {
		if t.Public {
			return true
		}
	}
	return false
}

// Target returns the expansion target for the item.
func (c *ContentItem) Target() Target {
	return Target{
		Public:       c.Public,
		Translatable: c.Translatable,
		Language:     c.Language,
		Translations: c.Translations,
	}
}

// MenuLink is a navigation entry in a named menu.
type MenuLink struct {
	ID        string `db:"id"         json:"id"`
	Menu      string `db:"menu_name"  json:"menu"`
	Title     string `db:"title"      json:"title"`
	Path      string `db:"path"       json:"path"`
	External  bool   `db:"external"   json:"external"`
	Enabled   bool   `db:"enabled"    json:"enabled"`
	Weight    int    `db:"weight"     json:"weight"`
	ContentID string `db:"content_id" json:"content_id,omitempty"`
}

// CandidateID identifies the link in progress reports.
func (m *MenuLink) CandidateID() string {
	return m.ID
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
