package sorter

import "fmt"

// Outcome is the terminal state of one fetched message.
type Outcome int

const (
	// Skipped messages are left untouched and unmarked; they are picked up
	// again by the next run.
	Skipped Outcome = iota
	Moved
	MarkedOnlyNoDestination
	MarkedOnlyMoveFailed
	// DryRun messages were classified and marked without being moved.
	DryRun
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Moved:
		return "moved"
	case MarkedOnlyNoDestination:
		return "marked_no_destination"
	case MarkedOnlyMoveFailed:
		return "marked_move_failed"
	case DryRun:
		return "dry_run"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// needsMark reports whether the message stays in its source folder and must
// carry the processed flag.
func (o Outcome) needsMark() bool {
	return o == MarkedOnlyNoDestination || o == MarkedOnlyMoveFailed || o == DryRun
}

// Result records what happened to one message.
type Result struct {
	UID         uint32
	Folder      string
	Subject     string
	Category    string
	Destination string
	Outcome     Outcome
	Reason      string
	Attempts    int
	Marked      bool
}

// Summary is the result of one run.
type Summary struct {
	RunID     string
	Processed int
	Succeeded int
	Results   []Result
}

// NeedsAttention returns the results an operator has to act on: messages
// that were classified but could not be routed.
func (s Summary) NeedsAttention() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Outcome == MarkedOnlyMoveFailed || r.Outcome == MarkedOnlyNoDestination {
			out = append(out, r)
		}
	}

	return out
}

// Count returns how many results ended in o.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}

	return n
}
