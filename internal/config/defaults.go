// Package config provides configuration loading and defaults for homepilot.
package config

import "time"

// DefaultConfigDir is the default location for homepilot configuration.
const DefaultConfigDir = "~/.config/homepilot"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "homepilot.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix is prepended to environment overrides, e.g. HOMEPILOT_PLANNER_BASE_ENERGY.
const EnvPrefix = "HOMEPILOT"

// DefaultLocation holds the default location engine settings.
var DefaultLocation = Location{
	Window: 5,
}

// DefaultSensing holds the default staleness bounds for sensor data.
var DefaultSensing = Sensing{
	FrameMaxAge:      2 * time.Minute,
	BiometricsMaxAge: 2 * time.Hour,
	OccupancyMaxAge:  30 * time.Minute,
}

// DefaultPlanner holds the default task planner settings.
var DefaultPlanner = Planner{
	BaseEnergy:            50,
	DecomposeThreshold:    90,
	DecomposeTimeout:      20 * time.Second,
	DayEnd:                "22:00",
	DecompositionProvider: "none",
}

// DefaultWeather holds the default weather provider settings.
var DefaultWeather = Weather{
	Provider: "none",
	City:     "Seattle",
	Units:    "imperial",
	CacheTTL: 10 * time.Minute,
}

// DefaultReasoner holds the default reasoning collaborator settings.
var DefaultReasoner = Reasoner{
	ClaudeModel: "claude-sonnet-4-20250514",
	GeminiModel: "gemini-2.0-flash",
}

// DefaultBus holds the default automation bus settings. An empty URL logs
// events instead of publishing them.
var DefaultBus = Bus{
	URL: "",
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
