package digest

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle position of a run.
type Status string

// Run statuses. Completed and Failed are terminal.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transition records one status change of a run.
type Transition struct {
	From  Status
	To    Status
	Stage string
	At    time.Time
}

// Run flows through the pipz pipeline. It owns the state and message log of
// one submission and is discarded once the result is returned.
type Run struct {
	ID          string
	Variant     Variant
	Request     Request
	Temperature float32
	State       *State
	Session     *Session

	status      Status
	stage       string
	transitions []Transition
	err         error
	mu          sync.Mutex
}

// newRun seeds the state with the raw text and style.
func newRun(variant Variant, req Request, temperature float32) *Run {
	r := &Run{
		ID:          uuid.New().String(),
		Variant:     variant,
		Request:     req,
		Temperature: temperature,
		State:       NewState(),
		Session:     NewSession(),
		status:      StatusIdle,
	}
	// Fresh state, the writes cannot collide.
	_ = r.State.Set(FieldRawText, req.Text)
	_ = r.State.Set(FieldStyle, string(req.Style))
	return r
}

// Status returns the current status.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Stage returns the stage currently running or the last one entered.
func (r *Run) Stage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Err returns the failure that ended the run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Transitions returns a copy of the status history.
func (r *Run) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

// Enter moves the run into stage.
func (r *Run) Enter(stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Terminal() {
		return fmt.Errorf("%w: cannot enter stage %s from %s", ErrTerminal, stage, r.status)
	}
	r.record(StatusRunning, stage)
	r.stage = stage
	return nil
}

// Fail ends the run with err.
func (r *Run) Fail(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Terminal() {
		return fmt.Errorf("%w: cannot fail from %s", ErrTerminal, r.status)
	}
	r.err = err
	r.record(StatusFailed, r.stage)
	return nil
}

// Complete ends the run successfully. Only a running run can complete.
func (r *Run) Complete() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return fmt.Errorf("%w: cannot complete from %s", ErrTerminal, r.status)
	}
	r.record(StatusCompleted, r.stage)
	return nil
}

func (r *Run) record(to Status, stage string) {
	r.transitions = append(r.transitions, Transition{
		From:  r.status,
		To:    to,
		Stage: stage,
		At:    time.Now(),
	})
	r.status = to
}

// Result is what a pipeline returns for one submission.
type Result struct {
	RunID       string
	Variant     Variant
	Output      string
	Status      Status
	Err         error
	State       *State
	Session     *Session
	Transitions []Transition
}

func (r *Run) result(output string) *Result {
	return &Result{
		RunID:       r.ID,
		Variant:     r.Variant,
		Output:      output,
		Status:      r.Status(),
		Err:         r.Err(),
		State:       r.State,
		Session:     r.Session,
		Transitions: r.Transitions(),
	}
}
