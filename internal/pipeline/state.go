package pipeline

import (
	"errors"
	"fmt"

	"github.com/phillip-england/prodsummary/internal/enrich"
)

// State is where an archive ended up in a run.
type State int

const (
	StatePending State = iota
	StateGated
	StateExtracted
	StateEnriched
	StateWritten
	StateSkipped
	StateBlank
	StateFailed
)

var stateNames = map[State]string{
	StatePending:   "pending",
	StateGated:     "gated",
	StateExtracted: "extracted",
	StateEnriched:  "enriched",
	StateWritten:   "written",
	StateSkipped:   "skipped",
	StateBlank:     "blank",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the state ends an archive's processing.
func (s State) Terminal() bool {
	switch s {
	case StateWritten, StateSkipped, StateBlank, StateFailed:
		return true
	default:
		return false
	}
}

var ErrMissingTable = errors.New("missing table")

type MissingTableError struct {
	Archive string
	Table   string
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("missing table: %s has no %s extract", e.Archive, e.Table)
}

func (e *MissingTableError) Unwrap() error {
	return ErrMissingTable
}

// ArchiveResult records what happened to one archive.
type ArchiveResult struct {
	Name      string
	State     State
	Output    string
	Summaries int
	Err       error
}

// RunSummary collects the outcome of every archive seen by a run.
type RunSummary struct {
	RunID   string
	Results []ArchiveResult
}

func (r RunSummary) Count(state State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == state {
			n++
		}
	}
	return n
}

// HasProblems reports whether any archive failed or came back blank.
func (r RunSummary) HasProblems() bool {
	return r.Count(StateFailed) > 0 || r.Count(StateBlank) > 0
}

func (r RunSummary) String() string {
	return fmt.Sprintf("%d archives: %d written, %d skipped, %d blank, %d failed",
		len(r.Results), r.Count(StateWritten), r.Count(StateSkipped), r.Count(StateBlank), r.Count(StateFailed))
}

// BlankLogLine is the error log entry for an archive with no employee rows.
func BlankLogLine(archiveName string) string {
	return "Zip File Is Blank: " + archiveName
}

func blankError(archiveName string) error {
	return fmt.Errorf("%s: %w", archiveName, enrich.ErrEmptyResult)
}
