// Package progress tracks per-request pipeline progress for polling clients.
package progress

import (
	"context"
	"time"
)

// State is what a polling client sees for one request id.
type State struct {
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	Done      bool      `json:"done"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Pending is returned for ids that have no state yet.
func Pending() State {
	return State{Percent: 0, Message: "pending"}
}

// Patch is a partial update; nil fields keep their current value. Reset
// starts from a fresh pending state before the fields are merged.
type Patch struct {
	Reset   bool
	Percent *int
	Message *string
	Done    *bool
	Error   *string
}

// Step reports a milestone.
func Step(percent int, message string) Patch {
	return Patch{Percent: &percent, Message: &message}
}

// Started begins a new run under an id, discarding whatever an earlier run
// with the same id left behind.
func Started(message string) Patch {
	p := Step(0, message)
	p.Reset = true
	return p
}

// Finished marks a successful run.
func Finished(message string) Patch {
	p := Step(100, message)
	done := true
	p.Done = &done
	return p
}

// Failed marks a run that stopped with err. Percent is left untouched.
func Failed(err error) Patch {
	done := true
	msg := err.Error()
	return Patch{Done: &done, Error: &msg, Message: &msg}
}

// Apply merges p into s. Percent never goes backwards within a run and is
// clamped to [0,100].
func (s State) Apply(p Patch, now time.Time) State {
	if p.Reset {
		s = Pending()
	}
	if p.Percent != nil {
		pct := min(max(*p.Percent, 0), 100)
		s.Percent = max(s.Percent, pct)
	}
	if p.Message != nil {
		s.Message = *p.Message
	}
	if p.Done != nil {
		s.Done = *p.Done
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	s.UpdatedAt = now
	return s
}

// Tracker is shared by every concurrent run.
type Tracker interface {
	Update(ctx context.Context, id string, p Patch) error
	Get(ctx context.Context, id string) (State, error)
}

// Message changes only the message.
func Message(message string) Patch {
	return Patch{Message: &message}
}

// Percent raises only the percentage.
func Percent(percent int) Patch {
	return Patch{Percent: &percent}
}
