package loop

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/bus"
	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
	"github.com/blackwell-systems/homepilot/internal/sensing"
)

// scriptedGatherer returns snapshots in order, repeating the last one.
type scriptedGatherer struct {
	mu    sync.Mutex
	snaps []sensing.Snapshot
	i     int
}

func (g *scriptedGatherer) Gather(context.Context) (sensing.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.snaps) == 0 {
		return sensing.Snapshot{}, errors.New("no snapshots")
	}
	s := g.snaps[g.i]
	if g.i < len(g.snaps)-1 {
		g.i++
	}
	return s, nil
}

type staticBacklog struct{ tasks []model.Task }

func (b staticBacklog) PendingTasks(context.Context) ([]model.Task, error) { return b.tasks, nil }
func (b staticBacklog) CompletedTaskIDs(context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

var noon = time.Date(2026, 4, 6, 12, 0, 0, 0, time.UTC)

func snapshot(hr int, motion bool, readings model.SignalReading) sensing.Snapshot {
	return sensing.Snapshot{
		TakenAt:    noon,
		Biometrics: &model.BiometricSample{HeartRate: hr, ReadinessScore: 100, Timestamp: noon},
		Readings:   readings,
		Motion:     motion,
		Errors:     map[string]error{},
	}
}

func newRunner(t *testing.T, g Gatherer, pub bus.Publisher, sink audit.Sink) *Runner {
	t.Helper()
	backlog := staticBacklog{tasks: []model.Task{{
		ID: "dishes", Name: "Dishes", Priority: model.PriorityMedium, EstimatedMinutes: 15, EnergyRequired: 2,
	}}}
	p := planner.New(planner.DefaultConfig(), backlog, nil, nil, nil)
	return New(g, rtls.NewEngine(rtls.DefaultWindow, nil), p, pub, sink, nil)
}

func TestCycle_PublishesChangesOnly(t *testing.T) {
	kitchen := model.SignalReading{"kitchen_beacon_1": -45, "office_beacon_1": -80}
	g := &scriptedGatherer{snaps: []sensing.Snapshot{
		snapshot(72, true, kitchen),
		snapshot(72, true, kitchen),
		snapshot(110, true, kitchen),
	}}
	pub := &bus.Memory{}
	sink := &audit.Recorder{}
	r := newRunner(t, g, pub, sink)
	ctx := context.Background()

	res, err := r.Cycle(ctx)
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if res.State != rtls.StateActive {
		t.Errorf("expected ACTIVE, got %s", res.State)
	}
	if res.Location.Room != "kitchen" {
		t.Errorf("expected kitchen, got %s", res.Location.Room)
	}
	if len(res.Events) != 3 {
		t.Fatalf("first cycle should publish room, state and agenda; got %d events", len(res.Events))
	}
	if res.Agenda == nil || len(res.Agenda.Entries) != 1 {
		t.Fatalf("expected one agenda entry, got %+v", res.Agenda)
	}

	res, err = r.Cycle(ctx)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("unchanged cycle should publish nothing, got %d events", len(res.Events))
	}

	res, err = r.Cycle(ctx)
	if err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if res.State != rtls.StateFocused {
		t.Errorf("expected FOCUSED, got %s", res.State)
	}
	if res.NextInterval != 5*time.Second {
		t.Errorf("expected 5s interval, got %s", res.NextInterval)
	}
	if len(res.Events) != 1 || res.Events[0].Topic != bus.TopicState {
		t.Errorf("expected a single state event, got %+v", res.Events)
	}

	if got := len(pub.Messages(bus.TopicState)); got != 2 {
		t.Errorf("expected 2 state messages, got %d", got)
	}
	if got := len(pub.Messages(bus.TopicRoom)); got != 1 {
		t.Errorf("expected 1 room message, got %d", got)
	}
	if !sink.Has(audit.CategoryAutomation, "publish") {
		t.Error("expected automation publish audit entries")
	}
	moves := 0
	for _, e := range sink.Events {
		if e.Category == audit.CategoryLocation && e.Action == "room_changed" {
			moves++
			if e.Details["to"] != "kitchen" {
				t.Errorf("expected move to kitchen, got %v", e.Details["to"])
			}
		}
	}
	if moves != 1 {
		t.Errorf("expected one room_changed entry, got %d", moves)
	}
}

func TestCycle_MissingBiometricsKeepsInterval(t *testing.T) {
	sleeping := snapshot(45, false, nil)
	missing := sensing.Snapshot{
		TakenAt: noon,
		Errors:  map[string]error{"biometrics": errors.New("no sample")},
	}
	g := &scriptedGatherer{snaps: []sensing.Snapshot{sleeping, missing}}
	r := newRunner(t, g, &bus.Memory{}, nil)
	ctx := context.Background()

	if _, err := r.Cycle(ctx); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	res, err := r.Cycle(ctx)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if !res.Skipped {
		t.Error("expected skipped cycle")
	}
	if res.Agenda != nil {
		t.Error("skipped cycle should not plan")
	}
	if res.State != rtls.StateSleeping || res.NextInterval != 60*time.Second {
		t.Errorf("expected previous SLEEPING/60s, got %s/%s", res.State, res.NextInterval)
	}
	if res.Location.Room != rtls.UnknownRoom || res.Location.Confidence != 0 {
		t.Errorf("empty readings should be unknown with zero confidence, got %+v", res.Location)
	}
}

func TestCycle_RepeatedFrameCountedOnce(t *testing.T) {
	kitchen := model.SignalReading{"kitchen_beacon_1": -45}
	first := snapshot(72, false, kitchen)
	first.FrameID = 7
	next := snapshot(72, false, kitchen)
	next.FrameID = 8

	g := &scriptedGatherer{snaps: []sensing.Snapshot{first, first, first, next}}
	r := newRunner(t, g, &bus.Memory{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := r.Cycle(ctx)
		if err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}
		if res.Location.Room != "kitchen" || res.Location.Confidence != 0.5 {
			t.Errorf("cycle %d: expected kitchen at 0.5, got %+v", i+1, res.Location)
		}
	}
	if n := len(r.engine.Status().History); n != 1 {
		t.Fatalf("expected one determination for one frame, got %d", n)
	}

	res, err := r.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(r.engine.Status().History); n != 2 {
		t.Errorf("expected the new frame to be recorded, history %d", n)
	}
	if res.Location.Confidence <= 0.5 {
		t.Errorf("expected confidence to rise with a second frame, got %.2f", res.Location.Confidence)
	}
}

func TestRun_RearmsWithEmittedInterval(t *testing.T) {
	g := &scriptedGatherer{snaps: []sensing.Snapshot{
		snapshot(45, false, nil),  // SLEEPING
		snapshot(110, false, nil), // FOCUSED
		snapshot(60, false, nil),  // RESTING
	}}
	r := newRunner(t, g, &bus.Memory{}, nil)

	var (
		mu    sync.Mutex
		armed []time.Duration
	)
	r.arm = func(d time.Duration) time.Duration {
		mu.Lock()
		armed = append(armed, d)
		mu.Unlock()
		return time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cycles := 0
	r.OnCycle(func(CycleResult) {
		cycles++
		if cycles == 3 {
			cancel()
		}
	})

	err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []time.Duration{60 * time.Second, 5 * time.Second}
	if len(armed) < len(want) {
		t.Fatalf("expected at least %d re-arms, got %v", len(want), armed)
	}
	for i, d := range want {
		if armed[i] != d {
			t.Errorf("arm %d: expected %s, got %s", i, d, armed[i])
		}
	}
}

func TestRun_NotifiesStateAndAgendaOnly(t *testing.T) {
	g := &scriptedGatherer{snaps: []sensing.Snapshot{
		snapshot(72, false, model.SignalReading{"office_beacon_1": -50}),
	}}
	r := newRunner(t, g, &bus.Memory{}, nil)

	var topics []string
	r.NotifyWith(func(ev Event) error {
		topics = append(topics, ev.Topic)
		return nil
	})
	if _, err := r.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if strings.Join(topics, ",") != bus.TopicState+","+bus.TopicAgenda {
		t.Errorf("unexpected notifications: %v", topics)
	}
}

func TestNotifyText(t *testing.T) {
	var buf bytes.Buffer
	if err := notifyText(&buf, Event{Level: "info", Title: "State changed", Message: "FOCUSED"}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "[info] State changed: FOCUSED\n" {
		t.Errorf("unexpected output %q", got)
	}
}
