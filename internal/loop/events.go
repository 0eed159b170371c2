package loop

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/homepilot/internal/bus"
	"github.com/blackwell-systems/homepilot/internal/planner"
)

// Event is a notable change between two cycles, published to the bus.
type Event struct {
	Level   string // "info" or "warning"
	Topic   string
	Title   string
	Message string
	Payload any
	Time    time.Time
}

// RoomPayload is published on bus.TopicRoom.
type RoomPayload struct {
	Room       string  `json:"room"`
	Confidence float64 `json:"confidence"`
}

// StatePayload is published on bus.TopicState.
type StatePayload struct {
	State           string `json:"state"`
	PollingInterval int    `json:"polling_interval_seconds"`
}

// Compare returns the events implied by moving from prev to curr. A nil prev
// is the first cycle, where everything counts as changed.
func Compare(prev *cycleState, curr cycleState, res CycleResult, agenda *planner.Agenda) []Event {
	var events []Event
	now := res.Time
	if now.IsZero() {
		now = time.Now()
	}

	if prev == nil || prev.Room != curr.Room {
		events = append(events, Event{
			Level:   "info",
			Topic:   bus.TopicRoom,
			Title:   "Room changed",
			Message: fmt.Sprintf("Now in %s (confidence %.2f)", curr.Room, res.Location.Confidence),
			Payload: RoomPayload{Room: curr.Room, Confidence: res.Location.Confidence},
			Time:    now,
		})
	}

	if prev == nil || prev.State != curr.State {
		events = append(events, Event{
			Level:   "info",
			Topic:   bus.TopicState,
			Title:   "State changed",
			Message: fmt.Sprintf("%s, polling every %s", curr.State, curr.State.PollingInterval()),
			Payload: StatePayload{
				State:           string(curr.State),
				PollingInterval: int(curr.State.PollingInterval() / time.Second),
			},
			Time: now,
		})
	}

	if agenda != nil && (prev == nil || prev.AgendaKey != curr.AgendaKey) {
		level := "info"
		if len(agenda.Entries) == 0 && len(agenda.Skipped) > 0 {
			level = "warning"
		}
		events = append(events, Event{
			Level:   level,
			Topic:   bus.TopicAgenda,
			Title:   "Agenda updated",
			Message: fmt.Sprintf("%d task(s) planned, %d/%d energy, %d min", len(agenda.Entries), agenda.EnergyUsed, agenda.EnergyBudget, agenda.MinutesPlanned),
			Payload: *agenda,
			Time:    now,
		})
	}
	return events
}
