package generator

import (
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// Progress summarizes a run for callers and operators.
type Progress struct {
	RunID      string       `json:"run_id"`
	Mode       domain.Mode  `json:"mode"`
	Phase      domain.Phase `json:"phase"`
	Finished   bool         `json:"finished"`
	Operation  int          `json:"operation"`
	Operations int          `json:"operations"`
	Processed  int          `json:"processed"`
	Total      int          `json:"total"`
	Fraction   float64      `json:"fraction"`
	Message    string       `json:"message"`
	Emitted    int          `json:"emitted"`
	Rejected   int          `json:"rejected"`
	Failed     int          `json:"failed"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// ProgressOf derives the progress of a run from its state.
func ProgressOf(state *domain.ProgressState) *Progress {
	p := &Progress{
		RunID:      state.RunID,
		Mode:       state.Mode,
		Phase:      state.Phase,
		Finished:   state.Phase == domain.PhaseDone,
		Operations: len(state.Operations),
		Emitted:    state.Emitted,
		Rejected:   state.Rejected,
		Failed:     state.Failed,
		StartedAt:  state.StartedAt,
		FinishedAt: state.FinishedAt,
	}

	for i := range state.Operations {
		p.Processed += state.Operations[i].Processed
		p.Total += state.Operations[i].Total
	}

	op := state.CurrentOperation()
	switch {
	case p.Finished:
		p.Operation = p.Operations
		p.Fraction = 1
		p.Message = "Sitemap generation finished."
	case op == nil:
		p.Operation = p.Operations
		p.Fraction = 1
		p.Message = "Writing sitemaps."
	default:
		p.Operation = state.Current + 1
		opFraction := 0.0
		if op.Total > 0 {
			opFraction = float64(op.Processed) / float64(op.Total)
		}
		p.Fraction = (float64(state.Current) + opFraction) / float64(len(state.Operations))
		p.Message = fmt.Sprintf("Processing item %d of %d (%s/%s).", op.Processed, op.Total, op.Producer, op.Context)
	}

	return p
}
