// Package producer defines the sources of sitemap candidates and their registry.
package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// ErrRejected marks a candidate that is intentionally excluded from the sitemap.
var ErrRejected = errors.New("candidate rejected")

// Reject returns an ErrRejected error with a reason.
func Reject(reason string) error {
	return fmt.Errorf("%w: %s", ErrRejected, reason)
}

// Candidate is one unit a producer fetches and later maps to a URL record.
type Candidate interface {
	CandidateID() string
}

// Scope is what a producer needs to count, fetch and map the candidates of one operation.
type Scope struct {
	Context  string
	DataSet  domain.DataSet
	Settings *settings.Settings
}

// Producer yields URL records for a family of candidates.
type Producer interface {
	// Name identifies the producer in run state and logs.
	Name() string
	// Overrides lists categories this producer takes over from other producers.
	Overrides() []string
	// DataSets returns the data sets to process for a context, in a stable order.
	DataSets(ctx context.Context, sitemapContext string, s *settings.Settings) ([]domain.DataSet, error)
	// Count returns the number of candidates in the scope.
	Count(ctx context.Context, scope Scope) (int, error)
	// Fetch returns up to limit candidates starting at offset.
	Fetch(ctx context.Context, scope Scope, offset, limit int) ([]Candidate, error)
	// ToURLRecord maps a candidate. Exclusions return an ErrRejected error.
	ToURLRecord(ctx context.Context, scope Scope, c Candidate) (*domain.URLRecord, error)
}

// Registry holds producers in registration order and resolves category ownership.
type Registry struct {
	producers []Producer
	byName    map[string]Producer
	owners    map[string]string
}

// NewRegistry registers producers. Names must be unique and a category may be
// overridden by at most one producer.
func NewRegistry(producers ...Producer) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Producer, len(producers)),
		owners: make(map[string]string),
	}

	for _, p := range producers {
		name := p.Name()
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("producer %q registered twice", name)
		}
		for _, category := range p.Overrides() {
			if owner, claimed := r.owners[category]; claimed {
				return nil, fmt.Errorf("category %q is overridden by both %q and %q", category, owner, name)
			}
			r.owners[category] = name
		}
		r.byName[name] = p
		r.producers = append(r.producers, p)
	}

	return r, nil
}

// Producers returns the producers in registration order.
func (r *Registry) Producers() []Producer {
	return r.producers
}

// Get returns the producer with the given name.
func (r *Registry) Get(name string) (Producer, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Owner returns the producer that overrides category, if any.
func (r *Registry) Owner(category string) (string, bool) {
	owner, ok := r.owners[category]
	return owner, ok
}

// Skips reports whether producer must leave category to another producer.
func (r *Registry) Skips(producer, category string) bool {
	owner, ok := r.owners[category]
	return ok && owner != producer
}
