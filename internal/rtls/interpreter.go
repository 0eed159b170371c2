// Package rtls implements the location/state engine: room inference from BLE
// beacon RSSI with a trailing confidence window, and a biometric classifier
// that drives the adaptive polling interval.
package rtls

import (
	"errors"
	"sort"
	"strings"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// UnknownRoom is reported when no beacon could be interpreted.
const UnknownRoom = "unknown"

// MinWindow is the smallest history window; DefaultWindow is used when the
// configuration does not say otherwise.
const (
	MinWindow     = 3
	DefaultWindow = 5
)

// confirmedStreak is the number of consecutive identical determinations that
// count as a confirmed location.
const confirmedStreak = 3

// ErrSignalUnavailable reports a snapshot without any usable beacon reading.
var ErrSignalUnavailable = errors.New("no beacon signal available")

// beaconMarker separates the room prefix from the beacon index in ids such as
// "living_room_beacon_1".
const beaconMarker = "_beacon"

// LocationEstimate is a single room determination.
type LocationEstimate struct {
	Room       string  `json:"room"`
	Confidence float64 `json:"confidence"`
}

// RoomFromBeacon extracts the room encoded in a beacon id of the form
// <room>_beacon_<n> or <room>_beacon. The second return value is false for
// ids that do not follow the naming convention.
func RoomFromBeacon(beaconID string) (string, bool) {
	i := strings.LastIndex(beaconID, beaconMarker)
	if i <= 0 {
		return "", false
	}
	suffix := beaconID[i+len(beaconMarker):]
	if suffix != "" && !isBeaconIndex(suffix) {
		return "", false
	}
	return beaconID[:i], true
}

// isBeaconIndex reports whether s is "_" followed by one or more digits.
func isBeaconIndex(s string) bool {
	digits, ok := strings.CutPrefix(s, "_")
	if !ok || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// roomSignal is a room's aggregated reading together with the id of the
// beacon that produced it.
type roomSignal struct {
	room   string
	rssi   float64
	beacon string
}

// aggregate reduces readings to one entry per room, keeping each room's
// strongest beacon. Ties between beacons of one room keep the
// lexicographically smaller id.
func aggregate(readings model.SignalReading) []roomSignal {
	byRoom := make(map[string]roomSignal)
	for id, rssi := range readings {
		room, ok := RoomFromBeacon(id)
		if !ok {
			continue
		}
		cur, seen := byRoom[room]
		if !seen || rssi > cur.rssi || (rssi == cur.rssi && id < cur.beacon) {
			byRoom[room] = roomSignal{room: room, rssi: rssi, beacon: id}
		}
	}
	out := make([]roomSignal, 0, len(byRoom))
	for _, rs := range byRoom {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].beacon < out[j].beacon })
	return out
}

// selectRoom picks the strongest room. On equal strength the previous room
// wins; failing that, the room whose strongest beacon id sorts first.
func selectRoom(readings model.SignalReading, previous string) (string, error) {
	rooms := aggregate(readings)
	if len(rooms) == 0 {
		return UnknownRoom, ErrSignalUnavailable
	}
	best := rooms[0]
	for _, rs := range rooms[1:] {
		switch {
		case rs.rssi > best.rssi:
			best = rs
		case rs.rssi == best.rssi && rs.room == previous:
			best = rs
		}
	}
	return best.room, nil
}

// Interpreter maps RSSI snapshots to rooms and scores confidence from the
// agreement of its trailing window. It is not safe for concurrent use; Engine
// provides the locking.
type Interpreter struct {
	history *History
}

// NewInterpreter creates an interpreter with the given window size.
func NewInterpreter(window int) *Interpreter {
	return &Interpreter{history: NewHistory(window)}
}

// Process determines the current room and records it in the window. An empty
// snapshot yields UnknownRoom with zero confidence.
func (in *Interpreter) Process(readings model.SignalReading) LocationEstimate {
	room, err := selectRoom(readings, in.previousRoom())
	in.history.Push(room)
	if err != nil {
		return LocationEstimate{Room: UnknownRoom, Confidence: 0}
	}
	return LocationEstimate{Room: room, Confidence: in.Confidence()}
}

// Confidence scores the newest determination from the window.
func (in *Interpreter) Confidence() float64 {
	h := in.history
	if h.Len() == 0 || h.Last() == UnknownRoom {
		return 0
	}
	streak := h.Streak()
	if streak >= confirmedStreak {
		return 0.9
	}
	c := 0.3 + 0.2*float64(streak-1) + 0.2*h.Agreement()
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// History returns a copy of the window, oldest first.
func (in *Interpreter) History() []string {
	return in.history.Snapshot()
}

// previousRoom is the last known (non-unknown) determination.
func (in *Interpreter) previousRoom() string {
	snap := in.history.Snapshot()
	for i := len(snap) - 1; i >= 0; i-- {
		if snap[i] != UnknownRoom {
			return snap[i]
		}
	}
	return ""
}
