package pipeline

import (
	"fmt"
	"strings"
)

// State is a run controller state.
type State int

// Run states.
const (
	StateIdle State = iota
	StateValidating
	StateProcessing
	StateCleanup
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateValidating: "validating",
	StateProcessing: "processing",
	StateCleanup:    "cleanup",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ObjectResult is the outcome for one source object.
type ObjectResult struct {
	Source  string
	LowPoly string // empty when the duplicate was discarded
	Images  []string
	Err     error
}

// Report is the terminal outcome of a run.
type Report struct {
	// State is StateDone or StateFailed. Failed means validation rejected
	// the run and nothing was touched.
	State    State
	Objects  []ObjectResult
	Warnings []string
	// Err is the validation error for a failed run, or every per-object
	// error combined for a done run.
	Err error
}

// OK reports whether the run finished without any error.
func (r *Report) OK() bool {
	return r.State == StateDone && r.Err == nil
}

// Summary returns a one-line, user-facing description of the outcome.
func (r *Report) Summary() string {
	if r.State == StateFailed {
		return "Autolow failed: " + r.Err.Error()
	}
	failed := 0
	for _, o := range r.Objects {
		if o.Err != nil {
			failed++
		}
	}
	var b strings.Builder
	if failed == 0 {
		b.WriteString("Autolow complete")
	} else {
		fmt.Fprintf(&b, "Autolow finished with %d of %d objects failed", failed, len(r.Objects))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, " (%d warnings)", len(r.Warnings))
	}
	return b.String()
}
