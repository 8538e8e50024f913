package sync

import "github.com/schaermu/materialsync/internal/git"

// Action is what a run did with one entry
type Action string

const (
	ActionCloned     Action = "cloned"
	ActionUpdated    Action = "updated"
	ActionMismatch   Action = "skipped-mismatch"
	ActionObstructed Action = "skipped-obstructed"
	ActionFailed     Action = "failed"

	// Dry-run only
	ActionWouldClone  Action = "would-clone"
	ActionWouldUpdate Action = "would-update"
)

// Skipped reports whether the entry was left untouched on purpose
func (a Action) Skipped() bool {
	return a == ActionMismatch || a == ActionObstructed
}

// Outcome is the result of syncing one entry
type Outcome struct {
	Name    string
	Dir     string
	URL     string
	Origin  string   // origin of an existing working copy
	Action  Action
	Stashed bool     // local changes were stashed before pulling
	Kind    git.Kind // set when Action is ActionFailed
	Err     error
}

// Report collects the outcomes of a run in processing order
type Report struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes with the given action
func (r *Report) Count(a Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// Skipped returns the outcomes that were left untouched on purpose
func (r *Report) Skipped() []Outcome {
	var skipped []Outcome
	for _, o := range r.Outcomes {
		if o.Action.Skipped() {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// Failed returns the outcomes that failed
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Action == ActionFailed {
			failed = append(failed, o)
		}
	}
	return failed
}
