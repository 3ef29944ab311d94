package domain

import "time"

// Delta is one persisted sitemap document of a context. Deltas of an in-flight run are
// staged (Published false) and replace the context's published deltas when the run completes.
type Delta struct {
	Context    string    `db:"context"`
	RunID      string    `db:"run_id"`
	DeltaIndex int       `db:"delta_index"`
	Payload    []byte    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
	Published  bool      `db:"published"`
}

// ContextSummary describes the published sitemap of one context.
type ContextSummary struct {
	Context     string    `db:"context"`
	Deltas      int       `db:"deltas"`
	GeneratedAt time.Time `db:"generated_at"`
}
