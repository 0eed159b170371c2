package rtls

import (
	"sync"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// Status is an immutable view of the engine handed to readers.
type Status struct {
	Location        LocationEstimate `json:"location"`
	State           UserState        `json:"state"`
	PollingInterval time.Duration    `json:"polling_interval"`
	History         []string         `json:"history"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Engine owns the location window and the current state/interval. One control
// loop writes; any number of readers may call Status concurrently.
type Engine struct {
	mu         sync.RWMutex
	interp     *Interpreter
	classifier *Classifier
	location   LocationEstimate
	state      UserState
	interval   time.Duration
	updatedAt  time.Time
}

// NewEngine creates an engine with the given window size and rule table
// (nil for DefaultStateRules). The initial state is IDLE.
func NewEngine(window int, rules []StateRule) *Engine {
	return &Engine{
		interp:     NewInterpreter(window),
		classifier: NewClassifier(rules),
		location:   LocationEstimate{Room: UnknownRoom},
		state:      StateIdle,
		interval:   StateIdle.PollingInterval(),
	}
}

// Process interprets one RSSI snapshot and records the determination.
func (e *Engine) Process(readings model.SignalReading) LocationEstimate {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.location = e.interp.Process(readings)
	e.updatedAt = time.Now()
	return e.location
}

// LocationConfidence scores the current location from the trailing window.
func (e *Engine) LocationConfidence() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.interp.Confidence()
}

// UpdateUserState classifies a biometric sample and updates the current state
// and polling interval.
func (e *Engine) UpdateUserState(b model.BiometricSample, motion bool) UserState {
	state := e.classifier.Classify(b, motion)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.interval = state.PollingInterval()
	e.updatedAt = time.Now()
	return state
}

// UserState returns the current state.
func (e *Engine) UserState() UserState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// PollingInterval returns the interval the control loop should wait before
// the next cycle.
func (e *Engine) PollingInterval() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.interval
}

// Status returns a copy of the engine's current view.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Location:        e.location,
		State:           e.state,
		PollingInterval: e.interval,
		History:         e.interp.History(),
		UpdatedAt:       e.updatedAt,
	}
}
