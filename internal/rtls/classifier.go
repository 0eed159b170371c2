package rtls

import (
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// UserState is the discrete behavioral state inferred from biometrics.
type UserState string

const (
	StateSleeping UserState = "SLEEPING"
	StateResting  UserState = "RESTING"
	StateIdle     UserState = "IDLE"
	StateActive   UserState = "ACTIVE"
	StateFocused  UserState = "FOCUSED"
)

// pollingIntervals is the adaptive sampling policy: alert states are sampled
// often, rest states rarely.
var pollingIntervals = map[UserState]time.Duration{
	StateSleeping: 60 * time.Second,
	StateResting:  30 * time.Second,
	StateIdle:     15 * time.Second,
	StateActive:   10 * time.Second,
	StateFocused:  5 * time.Second,
}

// PollingInterval returns the sampling period for s. Unknown states fall back
// to the IDLE interval.
func (s UserState) PollingInterval() time.Duration {
	if d, ok := pollingIntervals[s]; ok {
		return d
	}
	return pollingIntervals[StateIdle]
}

// StateRule is one row of the classifier table.
type StateRule struct {
	Name  string
	Match func(b model.BiometricSample, motion bool) bool
	State UserState
}

// Heart-rate bands used by DefaultStateRules.
const (
	SleepHeartRate   = 50
	RestHeartRate    = 65
	FocusedHeartRate = 100
)

// DefaultStateRules is evaluated top to bottom; the first match wins.
var DefaultStateRules = []StateRule{
	{
		Name:  "low_heart_rate",
		Match: func(b model.BiometricSample, _ bool) bool { return b.HeartRate < SleepHeartRate },
		State: StateSleeping,
	},
	{
		Name:  "high_heart_rate",
		Match: func(b model.BiometricSample, _ bool) bool { return b.HeartRate >= FocusedHeartRate },
		State: StateFocused,
	},
	{
		Name:  "motion",
		Match: func(_ model.BiometricSample, motion bool) bool { return motion },
		State: StateActive,
	},
	{
		Name:  "calm",
		Match: func(b model.BiometricSample, _ bool) bool { return b.HeartRate < RestHeartRate },
		State: StateResting,
	},
}

// Classifier evaluates an ordered rule table.
type Classifier struct {
	rules    []StateRule
	fallback UserState
}

// NewClassifier builds a classifier over rules. A nil table selects
// DefaultStateRules.
func NewClassifier(rules []StateRule) *Classifier {
	if rules == nil {
		rules = DefaultStateRules
	}
	return &Classifier{rules: rules, fallback: StateIdle}
}

// Classify returns the state of the first matching rule, or IDLE.
func (c *Classifier) Classify(b model.BiometricSample, motion bool) UserState {
	for _, r := range c.rules {
		if r.Match(b, motion) {
			return r.State
		}
	}
	return c.fallback
}
