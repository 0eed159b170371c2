// Package loop runs the single-consumer control loop. Each cycle gathers a
// sensing snapshot, updates the location/state engine, rebuilds the agenda
// and publishes what changed. The next cycle is scheduled with the polling
// interval of the state the classifier just emitted.
package loop

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/bus"
	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
	"github.com/blackwell-systems/homepilot/internal/sensing"
)

// Gatherer produces the per-cycle snapshot.
type Gatherer interface {
	Gather(ctx context.Context) (sensing.Snapshot, error)
}

// CycleResult is what one cycle observed and decided.
type CycleResult struct {
	Time         time.Time
	Location     rtls.LocationEstimate
	State        rtls.UserState
	NextInterval time.Duration
	Agenda       *planner.Agenda
	Events       []Event
	Skipped      bool // no biometric sample; state and agenda left as they were
}

// cycleState is the part of a cycle compared against the next one.
type cycleState struct {
	Room      string
	State     rtls.UserState
	AgendaKey string
}

// Runner drives the engine and planner from sensing snapshots.
type Runner struct {
	gatherer Gatherer
	engine   *rtls.Engine
	planner  *planner.Planner
	pub      bus.Publisher
	sink     audit.Sink
	logger   *slog.Logger

	previous  *cycleState
	lastFrame int64
	onCycle   func(CycleResult)
	notify   func(Event) error

	// arm maps the emitted polling interval to the timer duration.
	arm func(time.Duration) time.Duration
}

// New creates a Runner.
func New(g Gatherer, engine *rtls.Engine, p *planner.Planner, pub bus.Publisher, sink audit.Sink, logger *slog.Logger) *Runner {
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		gatherer: g,
		engine:   engine,
		planner:  p,
		pub:      pub,
		sink:     sink,
		logger:   logger.With("component", "loop"),
		arm:      func(d time.Duration) time.Duration { return d },
	}
}

// OnCycle registers a callback invoked after every cycle.
func (r *Runner) OnCycle(fn func(CycleResult)) { r.onCycle = fn }

// NotifyWith sends state and agenda events to fn in addition to the bus.
func (r *Runner) NotifyWith(fn func(Event) error) { r.notify = fn }

// Run executes a cycle immediately, then re-arms a timer with the engine's
// polling interval after every cycle. Blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.runCycle(ctx)

	timer := time.NewTimer(r.arm(r.engine.PollingInterval()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			r.runCycle(ctx)
			timer.Reset(r.arm(r.engine.PollingInterval()))
		}
	}
}

func (r *Runner) runCycle(ctx context.Context) {
	res, err := r.Cycle(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("cycle failed", "error", err)
		}
		return
	}
	if r.onCycle != nil {
		r.onCycle(res)
	}
}

// Cycle performs a single pass of the pipeline.
func (r *Runner) Cycle(ctx context.Context) (CycleResult, error) {
	snap, err := r.gatherer.Gather(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{Time: snap.TakenAt}
	res.Location = r.locate(snap)

	if snap.Biometrics == nil {
		r.logger.Warn("skipping cycle: no biometric sample", "error", snap.Errors["biometrics"])
		res.State = r.engine.UserState()
		res.NextInterval = r.engine.PollingInterval()
		res.Skipped = true
		res.Events = r.advance(ctx, cycleState{Room: res.Location.Room, State: res.State}, res, nil)
		return res, nil
	}

	res.State = r.engine.UpdateUserState(*snap.Biometrics, snap.Motion)
	res.NextInterval = res.State.PollingInterval()

	agenda := r.planner.GenerateAgenda(ctx, planner.PlanInput{
		Biometrics: *snap.Biometrics,
		Now:        snap.TakenAt,
		Occupancy:  snap.Occupancy,
		Weather:    snap.Weather,
	})
	res.Agenda = &agenda

	curr := cycleState{Room: res.Location.Room, State: res.State, AgendaKey: agendaKey(agenda)}
	res.Events = r.advance(ctx, curr, res, &agenda)
	return res, nil
}

// locate feeds a new beacon frame to the engine. A frame already seen on an
// earlier cycle is not pushed again, so polling faster than beacons report
// cannot inflate confidence.
func (r *Runner) locate(snap sensing.Snapshot) rtls.LocationEstimate {
	if snap.FrameID != 0 && snap.FrameID == r.lastFrame {
		return r.engine.Status().Location
	}
	r.lastFrame = snap.FrameID
	est := r.engine.Process(snap.Readings)
	est.Confidence = r.engine.LocationConfidence()
	return est
}

// advance compares curr against the previous cycle, publishes the resulting
// events and remembers curr. A skipped cycle keeps the previous agenda key.
func (r *Runner) advance(ctx context.Context, curr cycleState, res CycleResult, agenda *planner.Agenda) []Event {
	if agenda == nil && r.previous != nil {
		curr.AgendaKey = r.previous.AgendaKey
	}
	if r.previous == nil || r.previous.Room != curr.Room {
		from := ""
		if r.previous != nil {
			from = r.previous.Room
		}
		r.sink.Log(audit.CategoryLocation, "room_changed", map[string]any{
			"from":       from,
			"to":         curr.Room,
			"confidence": res.Location.Confidence,
		})
	}
	events := Compare(r.previous, curr, res, agenda)
	r.previous = &curr

	for _, ev := range events {
		if err := r.pub.Publish(ctx, ev.Topic, ev.Payload); err != nil {
			r.logger.Warn("publish failed", "topic", ev.Topic, "error", err)
			continue
		}
		r.sink.Log(audit.CategoryAutomation, "publish", map[string]any{
			"topic":   ev.Topic,
			"trigger": ev.Title,
		})
		if r.notify != nil && ev.Topic != bus.TopicRoom {
			if err := r.notify(ev); err != nil {
				r.logger.Debug("notification failed", "error", err)
			}
		}
	}
	return events
}

// agendaKey identifies an agenda by its ordered entry ids.
func agendaKey(a planner.Agenda) string {
	ids := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		ids[i] = e.ID
	}
	return strings.Join(ids, ",")
}
