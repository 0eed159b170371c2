package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/bus"
	"github.com/blackwell-systems/homepilot/internal/config"
	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/reasoner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
	"github.com/blackwell-systems/homepilot/internal/sensing"
	"github.com/blackwell-systems/homepilot/internal/store"
	"github.com/blackwell-systems/homepilot/internal/weather"
)

// Credential names looked up through config.Credentials.
const (
	credAnthropic      = "anthropic"
	credGemini         = "gemini"
	credOpenWeatherMap = "openweathermap"
)

// services is the wired object graph shared by plan, run and mcp.
type services struct {
	cfg      *config.Config
	db       *store.DB
	sink     audit.Sink
	engine   *rtls.Engine
	gatherer *sensing.Gatherer
	planner  *planner.Planner
	pub      bus.Publisher
	closers  []func() error
}

// openDB loads the config and opens the database.
func openDB() (*config.Config, *store.DB, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, db, nil
}

// openServices wires every component. Missing credentials for a configured
// provider are fatal here, before any cycle runs.
func openServices(logger *slog.Logger) (*services, error) {
	cfg, db, err := openDB()
	if err != nil {
		return nil, err
	}
	s := &services{cfg: cfg, db: db}
	s.closers = append(s.closers, db.Close)

	s.sink = audit.Multi{audit.NewDBSink(db, logger), audit.NewLogSink(logger)}
	creds := config.NewCredentials(cfg.APIKeys)

	r, err := newReasoner(cfg, creds, s.sink)
	if err != nil {
		s.Close()
		return nil, err
	}
	wp, err := newWeather(cfg, creds, s.sink)
	if err != nil {
		s.Close()
		return nil, err
	}
	pcfg, err := plannerConfig(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.engine = rtls.NewEngine(cfg.Location.Window, nil)
	s.gatherer = sensing.NewGatherer(db, wp, s.sink, logger)
	s.gatherer.SetMaxAges(sensing.MaxAges{
		Frame:      cfg.Sensing.FrameMaxAge,
		Biometrics: cfg.Sensing.BiometricsMaxAge,
		Occupancy:  cfg.Sensing.OccupancyMaxAge,
	})
	s.planner = planner.New(pcfg, db, r, s.sink, logger)

	if cfg.Bus.URL != "" {
		ws := bus.NewWebSocket(cfg.Bus.URL, nil, logger)
		s.pub = ws
		s.closers = append(s.closers, ws.Close)
	} else {
		s.pub = bus.NewLogPublisher(logger)
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// newReasoner returns nil when decomposition is disabled.
func newReasoner(cfg *config.Config, creds *config.Credentials, sink audit.Sink) (reasoner.Reasoner, error) {
	switch strings.ToLower(cfg.Planner.DecompositionProvider) {
	case "", "none":
		return nil, nil
	case "claude", "anthropic":
		key, err := apiKey(creds, sink, credAnthropic)
		if err != nil {
			return nil, err
		}
		return reasoner.NewClaude(key, reasoner.WithModel(cfg.Reasoner.ClaudeModel))
	case "gemini":
		key, err := apiKey(creds, sink, credGemini)
		if err != nil {
			return nil, err
		}
		return reasoner.NewGemini(key, reasoner.WithModel(cfg.Reasoner.GeminiModel))
	default:
		return nil, fmt.Errorf("unknown planner.decomposition_provider %q (want claude, gemini or none)", cfg.Planner.DecompositionProvider)
	}
}

// newWeather returns a cached provider, or nil when weather is disabled.
func newWeather(cfg *config.Config, creds *config.Credentials, sink audit.Sink) (weather.Provider, error) {
	switch strings.ToLower(cfg.Weather.Provider) {
	case "", "none":
		return nil, nil
	case "openweathermap", "openweather":
		key, err := apiKey(creds, sink, credOpenWeatherMap)
		if err != nil {
			return nil, err
		}
		ow, err := weather.NewOpenWeather(key, cfg.Weather.City, cfg.Weather.Units)
		if err != nil {
			return nil, err
		}
		return weather.NewCache(ow, cfg.Weather.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown weather.provider %q (want openweathermap or none)", cfg.Weather.Provider)
	}
}

// apiKey resolves a credential and records the lookup, never the key.
func apiKey(creds *config.Credentials, sink audit.Sink, name string) (string, error) {
	key, err := creds.APIKey(name)
	action := "resolved"
	if err != nil {
		action = "missing"
	}
	sink.Log(audit.CategoryCredentials, action, map[string]any{"name": name})
	return key, err
}

func plannerConfig(cfg *config.Config) (planner.Config, error) {
	hour, minute, err := cfg.Planner.DayEndClock()
	if err != nil {
		return planner.Config{}, err
	}
	return planner.Config{
		BaseEnergy:         cfg.Planner.BaseEnergy,
		DecomposeThreshold: cfg.Planner.DecomposeThreshold,
		DecomposeTimeout:   cfg.Planner.DecomposeTimeout,
		DayEndHour:         hour,
		DayEndMinute:       minute,
	}, nil
}
