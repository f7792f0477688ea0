package session

import (
	"sync"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

// Recorder is a projection of session activity into an ordered step list.
// The session calls Record directly on each qualifying action; while disarmed
// the recorder drops everything, the actions themselves still execute.
type Recorder struct {
	mu    sync.Mutex
	armed bool
	steps []schemas.TestStep
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start arms the recorder and discards any previously recorded steps.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.steps = nil
}

// Stop disarms the recorder and returns the recording window's steps.
// ErrNotRecording when no window is open.
func (r *Recorder) Stop() ([]schemas.TestStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return nil, schemas.ErrNotRecording
	}
	r.armed = false
	steps := r.steps
	r.steps = nil
	return steps, nil
}

// Record appends the step when armed; otherwise it is a no-op.
func (r *Recorder) Record(step schemas.TestStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return
	}
	r.steps = append(r.steps, step)
}

// Armed reports whether a recording window is currently open.
func (r *Recorder) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Steps returns a copy of the steps recorded so far in the open window.
func (r *Recorder) Steps() []schemas.TestStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.TestStep(nil), r.steps...)
}
