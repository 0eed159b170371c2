package rtls

import (
	"testing"

	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomFromBeacon(t *testing.T) {
	tests := []struct {
		id   string
		room string
		ok   bool
	}{
		{"kitchen_beacon_1", "kitchen", true},
		{"living_room_beacon_2", "living_room", true},
		{"office_beacon", "office", true},
		{"_beacon_1", "", false},
		{"thermostat", "", false},
		{"kitchen_beaconX", "", false},
		{"kitchen_beacon_", "", false},
		{"kitchen_beacon_1a", "", false},
		{"kitchen_beacons_2", "", false},
		{"kitchen_beacon_12", "kitchen", true},
	}
	for _, tc := range tests {
		room, ok := RoomFromBeacon(tc.id)
		assert.Equal(t, tc.ok, ok, tc.id)
		assert.Equal(t, tc.room, room, tc.id)
	}
}

func TestProcess_StrongestSignalWins(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	est := in.Process(model.SignalReading{
		"kitchen_beacon_1":     -45,
		"living_room_beacon_1": -72,
		"office_beacon_1":      -85,
	})
	assert.Equal(t, "kitchen", est.Room)
}

func TestProcess_AggregatesByStrongestBeaconPerRoom(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	est := in.Process(model.SignalReading{
		"kitchen_beacon_1": -80,
		"kitchen_beacon_2": -50,
		"office_beacon_1":  -60,
	})
	assert.Equal(t, "kitchen", est.Room)
}

func TestProcess_EmptyInputIsUnknown(t *testing.T) {
	in := NewInterpreter(DefaultWindow)

	est := in.Process(model.SignalReading{})
	assert.Equal(t, UnknownRoom, est.Room)
	assert.Zero(t, est.Confidence)

	est = in.Process(model.SignalReading{"thermostat": -30})
	assert.Equal(t, UnknownRoom, est.Room)
	assert.Equal(t, []string{UnknownRoom, UnknownRoom}, in.History())
}

func TestProcess_IgnoresMalformedBeaconIDs(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	est := in.Process(model.SignalReading{
		"kitchen_beaconX":  -30,
		"garage_beacon_1a": -35,
		"office_beacon_3":  -70,
	})
	assert.Equal(t, "office", est.Room)
}

func TestProcess_TieBreaksTowardPreviousRoom(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	in.Process(model.SignalReading{"office_beacon_1": -50})

	est := in.Process(model.SignalReading{
		"bedroom_beacon_1": -60,
		"office_beacon_1":  -60,
	})
	assert.Equal(t, "office", est.Room)
}

func TestProcess_TieBreaksLexicographicallyWithoutHistory(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	est := in.Process(model.SignalReading{
		"office_beacon_1":  -60,
		"bedroom_beacon_1": -60,
	})
	assert.Equal(t, "bedroom", est.Room)
}

func TestConfidence_ConfirmedAfterThreeReadings(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	for i := 0; i < 3; i++ {
		in.Process(model.SignalReading{"kitchen_beacon_1": -45})
	}
	assert.GreaterOrEqual(t, in.Confidence(), 0.9)
}

func TestConfidence_SingleReadingIsModerate(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	est := in.Process(model.SignalReading{"kitchen_beacon_1": -45})
	assert.InDelta(t, 0.5, est.Confidence, 1e-9)
}

func TestConfidence_DegradesWithDisagreement(t *testing.T) {
	steady := NewInterpreter(DefaultWindow)
	steady.Process(model.SignalReading{"kitchen_beacon_1": -45})
	steady.Process(model.SignalReading{"kitchen_beacon_1": -45})

	noisy := NewInterpreter(DefaultWindow)
	noisy.Process(model.SignalReading{"office_beacon_1": -45})
	noisy.Process(model.SignalReading{"kitchen_beacon_1": -45})

	noisier := NewInterpreter(DefaultWindow)
	noisier.Process(model.SignalReading{"office_beacon_1": -45})
	noisier.Process(model.SignalReading{"bedroom_beacon_1": -45})
	noisier.Process(model.SignalReading{"office_beacon_1": -45})
	noisier.Process(model.SignalReading{"bedroom_beacon_1": -45})
	noisier.Process(model.SignalReading{"kitchen_beacon_1": -45})

	require.Greater(t, steady.Confidence(), noisy.Confidence())
	require.Greater(t, noisy.Confidence(), noisier.Confidence())
	assert.Greater(t, noisier.Confidence(), 0.0)
	assert.LessOrEqual(t, steady.Confidence(), 1.0)
}

func TestHistory_RingBufferEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, r := range []string{"a", "b", "c", "d"} {
		h.Push(r)
	}
	assert.Equal(t, []string{"b", "c", "d"}, h.Snapshot())
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "d", h.Last())

	h.Push("d")
	assert.Equal(t, 2, h.Streak())
	assert.InDelta(t, 2.0/3.0, h.Agreement(), 1e-9)
}

func TestHistory_MinimumCapacity(t *testing.T) {
	h := NewHistory(1)
	assert.Equal(t, MinWindow, h.Cap())
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	in := NewInterpreter(DefaultWindow)
	in.Process(model.SignalReading{"kitchen_beacon_1": -45})

	snap := in.History()
	snap[0] = "tampered"
	assert.Equal(t, []string{"kitchen"}, in.History())
}
