// Package dedup tracks normalized paths already emitted during a generation run.
package dedup

// Policy selects which duplicate checks apply.
type Policy struct {
	// Global rejects a path already emitted in any context.
	Global bool
	// PerContext rejects a path already emitted in the same context.
	PerContext bool
}

// Registry admits paths according to a Policy. The seen sets are owned by the caller
// so they can be persisted with the run state between invocations.
type Registry struct {
	policy    Policy
	global    map[string]bool
	byContext map[string]map[string]bool
}

// New creates a Registry over existing seen sets. Nil maps are allowed when the
// corresponding check is disabled.
func New(policy Policy, global map[string]bool, byContext map[string]map[string]bool) *Registry {
	return &Registry{policy: policy, global: global, byContext: byContext}
}

// Admit reports whether path may be emitted in context and records it.
// The per-context set is updated before the global check, so a path rejected globally
// still counts as seen in its context.
func (r *Registry) Admit(context, path string) bool {
	if r.policy.PerContext {
		seen := r.byContext[context]
		if seen == nil {
			seen = make(map[string]bool)
			r.byContext[context] = seen
		}
		if seen[path] {
			return false
		}
		seen[path] = true
	}

	if r.policy.Global {
		if r.global[path] {
			return false
		}
		r.global[path] = true
	}

	return true
}
