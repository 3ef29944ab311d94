package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Keys under which the settings are persisted.
const (
	KeyGlobal            = "settings"
	KeyCategories        = "categories"
	KeyContextCategories = "context_categories"
	KeyCustomLinks       = "custom_links"
)

// Store persists raw settings documents by key. Get returns nil data for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.values[key]), nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = slices.Clone(value)
	return nil
}

// Manager loads settings by layering stored values over defaults and persists changes.
type Manager struct {
	store    Store
	defaults *Settings
	mu       sync.Mutex
}

// NewManager creates a Manager. A nil defaults value means Defaults().
func NewManager(store Store, defaults *Settings) *Manager {
	if defaults == nil {
		defaults = Defaults()
	}
	return &Manager{store: store, defaults: defaults}
}

// Load returns the current settings, normalized but not validated.
func (m *Manager) Load(ctx context.Context) (*Settings, error) {
	s := m.defaults.Clone()

	if err := m.read(ctx, KeyGlobal, &s.Global); err != nil {
		return nil, err
	}
	if err := m.read(ctx, KeyCategories, &s.Categories); err != nil {
		return nil, err
	}
	if err := m.read(ctx, KeyContextCategories, &s.ContextCategories); err != nil {
		return nil, err
	}
	if err := m.read(ctx, KeyCustomLinks, &s.CustomLinks); err != nil {
		return nil, err
	}

	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) read(ctx context.Context, key string, dst any) error {
	data, getErr := m.store.Get(ctx, key)
	if getErr != nil {
		return fmt.Errorf("read setting %s: %w", key, getErr)
	}
	if len(data) == 0 {
		return nil
	}
	if unmarshalErr := json.Unmarshal(data, dst); unmarshalErr != nil {
		return fmt.Errorf("decode setting %s: %w", key, unmarshalErr)
	}
	return nil
}

func (m *Manager) write(ctx context.Context, key string, value any) error {
	data, marshalErr := json.Marshal(value)
	if marshalErr != nil {
		return fmt.Errorf("encode setting %s: %w", key, marshalErr)
	}
	if setErr := m.store.Set(ctx, key, data); setErr != nil {
		return fmt.Errorf("write setting %s: %w", key, setErr)
	}
	return nil
}

// UpdateGlobal validates and saves global settings given as loosely typed values.
func (m *Manager) UpdateGlobal(ctx context.Context, values map[string]any) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, loadErr := m.Load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}
	if applyErr := s.ApplyGlobal(values); applyErr != nil {
		return nil, applyErr
	}
	if writeErr := m.write(ctx, KeyGlobal, s.Global); writeErr != nil {
		return nil, writeErr
	}
	return s, nil
}

// SetBundle validates and saves the settings of one subcategory in a context.
// An empty context is the default context.
func (m *Manager) SetBundle(ctx context.Context, sitemapContext, category, subcategory string, b BundleSettings) error {
	field := fmt.Sprintf("categories.%s.%s", category, subcategory)
	if category == "" || subcategory == "" {
		return invalid(field, "category and subcategory are required")
	}
	if err := validateItem(field, b.ItemSettings); err != nil {
		return err
	}
	for id, item := range b.Items {
		if err := validateItem(field+".items."+id, item); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, loadErr := m.Load(ctx)
	if loadErr != nil {
		return loadErr
	}
	if !s.HasLinkContext(sitemapContext) {
		return invalid("context", "%q is not a configured context", sitemapContext)
	}
	s.SetBundle(sitemapContext, category, subcategory, b)
	return m.writeCategories(ctx, s, sitemapContext)
}

// SetItem validates and saves a per-item override in a context.
func (m *Manager) SetItem(ctx context.Context, sitemapContext, category, subcategory, itemID string, item ItemSettings) error {
	field := fmt.Sprintf("categories.%s.%s.items.%s", category, subcategory, itemID)
	if category == "" || subcategory == "" || itemID == "" {
		return invalid(field, "category, subcategory and item are required")
	}
	if err := validateItem(field, item); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, loadErr := m.Load(ctx)
	if loadErr != nil {
		return loadErr
	}
	if !s.HasLinkContext(sitemapContext) {
		return invalid("context", "%q is not a configured context", sitemapContext)
	}
	s.SetItem(sitemapContext, category, subcategory, itemID, item)
	return m.writeCategories(ctx, s, sitemapContext)
}

func (m *Manager) writeCategories(ctx context.Context, s *Settings, sitemapContext string) error {
	if sitemapContext == "" || sitemapContext == DefaultContext {
		return m.write(ctx, KeyCategories, s.Categories)
	}
	return m.write(ctx, KeyContextCategories, s.ContextCategories)
}

// AddCustomLink validates and saves a custom link, replacing one with the same path and context.
func (m *Manager) AddCustomLink(ctx context.Context, link CustomLink) error {
	if err := ValidateCustomLink(link); err != nil {
		return err
	}
	if link.Context == "" {
		link.Context = DefaultContext
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, loadErr := m.Load(ctx)
	if loadErr != nil {
		return loadErr
	}
	if !s.HasLinkContext(link.Context) {
		return invalid("custom_link.context", "%q is not a configured context", link.Context)
	}

	idx := slices.IndexFunc(s.CustomLinks, func(l CustomLink) bool {
		return l.Path == link.Path && l.Context == link.Context
	})
	if idx >= 0 {
		s.CustomLinks[idx] = link
	} else {
		s.CustomLinks = append(s.CustomLinks, link)
	}
	return m.write(ctx, KeyCustomLinks, s.CustomLinks)
}

// RemoveCustomLink deletes a custom link. It reports whether a link was removed.
func (m *Manager) RemoveCustomLink(ctx context.Context, path, linkContext string) (bool, error) {
	if linkContext == "" {
		linkContext = DefaultContext
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, loadErr := m.Load(ctx)
	if loadErr != nil {
		return false, loadErr
	}

	kept := slices.DeleteFunc(slices.Clone(s.CustomLinks), func(l CustomLink) bool {
		return l.Path == path && l.Context == linkContext
	})
	if len(kept) == len(s.CustomLinks) {
		return false, nil
	}
	return true, m.write(ctx, KeyCustomLinks, kept)
}
