package planner

import (
	"strings"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// Requirement kinds understood by CheckContextRequirements.
const (
	RequireOccupancy = "occupancy"
	RequireWeather   = "weather"
	RequireRoom      = "room"
)

// requirementCheck decides one requirement kind. A nil occupancy or weather
// means the context could not be fetched.
type requirementCheck func(value string, occ *model.Occupancy, w *model.Weather) bool

var requirementChecks = map[string]requirementCheck{
	RequireOccupancy: func(value string, occ *model.Occupancy, _ *model.Weather) bool {
		if occ == nil {
			return false
		}
		switch strings.ToLower(value) {
		case "alone":
			return occ.UserAlone
		case "company":
			return !occ.UserAlone
		}
		return false
	},
	RequireWeather: func(value string, _ *model.Occupancy, w *model.Weather) bool {
		if w == nil {
			return false
		}
		switch strings.ToLower(value) {
		case "outdoor":
			return w.SuitableForOutdoor
		case "indoor":
			return true
		}
		return false
	},
	RequireRoom: func(value string, occ *model.Occupancy, _ *model.Weather) bool {
		return occ != nil && value != "" && occ.Room == value
	},
}

// CheckContextRequirements reports whether every requirement of t holds.
// Unknown kinds or values fail closed.
func CheckContextRequirements(t model.Task, occ *model.Occupancy, w *model.Weather) bool {
	for kind, value := range t.ContextRequirements {
		check, ok := requirementChecks[strings.ToLower(strings.TrimSpace(kind))]
		if !ok || !check(strings.TrimSpace(value), occ, w) {
			return false
		}
	}
	return true
}
