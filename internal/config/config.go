package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level homepilot configuration.
type Config struct {
	DBPath   string            `mapstructure:"db_path"`
	Location Location          `mapstructure:"location"`
	Sensing  Sensing           `mapstructure:"sensing"`
	Planner  Planner           `mapstructure:"planner"`
	Weather  Weather           `mapstructure:"weather"`
	Reasoner Reasoner          `mapstructure:"reasoner"`
	Bus      Bus               `mapstructure:"bus"`
	Output   Output            `mapstructure:"output"`
	APIKeys  map[string]string `mapstructure:"api_keys"`
}

// Location configures the location/state engine.
type Location struct {
	Window int `mapstructure:"window"`
}

// Sensing bounds how old stored sensor data may be before a cycle ignores it.
type Sensing struct {
	FrameMaxAge      time.Duration `mapstructure:"frame_max_age"`
	BiometricsMaxAge time.Duration `mapstructure:"biometrics_max_age"`
	OccupancyMaxAge  time.Duration `mapstructure:"occupancy_max_age"`
}

// Planner configures the task planning engine.
type Planner struct {
	BaseEnergy            int           `mapstructure:"base_energy"`
	DecomposeThreshold    int           `mapstructure:"decompose_threshold"`
	DecomposeTimeout      time.Duration `mapstructure:"decompose_timeout"`
	DayEnd                string        `mapstructure:"day_end"` // "HH:MM", local time
	DecompositionProvider string        `mapstructure:"decomposition_provider"`
}

// Weather configures the weather provider.
type Weather struct {
	Provider string        `mapstructure:"provider"` // "openweathermap" or "none"
	City     string        `mapstructure:"city"`
	Units    string        `mapstructure:"units"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Reasoner configures the reasoning collaborator clients.
type Reasoner struct {
	ClaudeModel string `mapstructure:"claude_model"`
	GeminiModel string `mapstructure:"gemini_model"`
}

// Bus configures the automation bus.
type Bus struct {
	URL string `mapstructure:"url"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// DayEndClock parses Planner.DayEnd into hour and minute.
func (p Planner) DayEndClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", p.DayEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid day_end %q: %w", p.DayEnd, err)
	}
	return t.Hour(), t.Minute(), nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("db_path", filepath.Join(DefaultConfigDir, DefaultDBName))
	v.SetDefault("location.window", DefaultLocation.Window)
	v.SetDefault("sensing.frame_max_age", DefaultSensing.FrameMaxAge)
	v.SetDefault("sensing.biometrics_max_age", DefaultSensing.BiometricsMaxAge)
	v.SetDefault("sensing.occupancy_max_age", DefaultSensing.OccupancyMaxAge)
	v.SetDefault("planner.base_energy", DefaultPlanner.BaseEnergy)
	v.SetDefault("planner.decompose_threshold", DefaultPlanner.DecomposeThreshold)
	v.SetDefault("planner.decompose_timeout", DefaultPlanner.DecomposeTimeout)
	v.SetDefault("planner.day_end", DefaultPlanner.DayEnd)
	v.SetDefault("planner.decomposition_provider", DefaultPlanner.DecompositionProvider)
	v.SetDefault("weather.provider", DefaultWeather.Provider)
	v.SetDefault("weather.city", DefaultWeather.City)
	v.SetDefault("weather.units", DefaultWeather.Units)
	v.SetDefault("weather.cache_ttl", DefaultWeather.CacheTTL)
	v.SetDefault("reasoner.claude_model", DefaultReasoner.ClaudeModel)
	v.SetDefault("reasoner.gemini_model", DefaultReasoner.GeminiModel)
	v.SetDefault("bus.url", DefaultBus.URL)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(expandPath(DefaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Location.Window < 3 {
		return nil, fmt.Errorf("location.window must be at least 3, got %d", cfg.Location.Window)
	}
	if cfg.Planner.BaseEnergy < 0 {
		return nil, fmt.Errorf("planner.base_energy must not be negative, got %d", cfg.Planner.BaseEnergy)
	}
	if _, _, err := cfg.Planner.DayEndClock(); err != nil {
		return nil, err
	}

	cfg.DBPath = expandPath(cfg.DBPath)

	return &cfg, nil
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
