package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Mode selects how much work one generation invocation performs.
type Mode string

// Generation modes.
const (
	// ModeInteractive advances a run by one batch slice per request.
	ModeInteractive Mode = "interactive"
	// ModeScheduled advances a run by one batch slice per scheduler tick.
	ModeScheduled Mode = "scheduled"
	// ModeCommandLine loops batch slices until the run completes.
	ModeCommandLine Mode = "commandLine"
	// ModeRunToCompletion processes every operation in a single unbounded invocation.
	ModeRunToCompletion Mode = "runToCompletion"
)

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New("unknown generation mode")

// ParseMode validates a mode name. An empty name selects ModeInteractive.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeInteractive, nil
	case ModeInteractive, ModeScheduled, ModeCommandLine, ModeRunToCompletion:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidMode, s)
	}
}

// Bounded reports whether an invocation in this mode is limited to one batch slice.
func (m Mode) Bounded() bool {
	return m != ModeRunToCompletion
}

// Phase is the coordinator state machine position.
type Phase string

// Coordinator phases.
const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseRunning       Phase = "running"
	PhaseFlushPending  Phase = "flush_pending"
	PhaseDone          Phase = "done"
)

// DataSet is one producer-defined slice of candidates, such as a content subcategory.
type DataSet struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
}

// String renders the data set for log and progress output.
func (d DataSet) String() string {
	if d.Subcategory == "" {
		return d.Category
	}
	return d.Category + ":" + d.Subcategory
}

// Operation is the unit of resumable work: one producer, one context, one data set.
type Operation struct {
	Producer      string  `json:"producer"`
	Context       string  `json:"context"`
	DataSet       DataSet `json:"data_set"`
	Total         int     `json:"total"`
	Counted       bool    `json:"counted"`
	Processed     int     `json:"processed"`
	CurrentItemID string  `json:"current_item_id,omitempty"`
	Finished      bool    `json:"finished"`
}

// ContextState holds the per-context output buffer of a run.
type ContextState struct {
	Buffer     []Variant `json:"buffer"`
	DeltaCount int       `json:"delta_count"`
}

// ProgressState is the durable state of one generation run. It is saved after every
// invocation and deleted once the run reaches PhaseDone.
type ProgressState struct {
	RunID      string     `json:"run_id"`
	Mode       Mode       `json:"mode"`
	Phase      Phase      `json:"phase"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Settings is the settings snapshot taken when the run was initialized.
	Settings json.RawMessage `json:"settings"`

	Operations []Operation `json:"operations"`
	Current    int         `json:"current"`

	ContextOrder  []string                   `json:"context_order"`
	Contexts      map[string]*ContextState   `json:"contexts"`
	SeenGlobal    map[string]bool            `json:"seen_global"`
	SeenByContext map[string]map[string]bool `json:"seen_by_context"`

	Emitted  int `json:"emitted"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Done reports whether every operation has finished.
func (s *ProgressState) Done() bool {
	return s.Current >= len(s.Operations)
}

// CurrentOperation returns the operation being processed, or nil when all are finished.
func (s *ProgressState) CurrentOperation() *Operation {
	if s.Done() {
		return nil
	}
	return &s.Operations[s.Current]
}

// Context returns the state of a context, creating it when missing.
func (s *ProgressState) Context(name string) *ContextState {
	if s.Contexts == nil {
		s.Contexts = make(map[string]*ContextState)
	}
	cs, ok := s.Contexts[name]
	if !ok {
		cs = &ContextState{}
		s.Contexts[name] = cs
	}
	return cs
}

// ErrStateCorrupt is returned when persisted run state cannot be decoded.
var ErrStateCorrupt = errors.New("generation state is corrupt")
