// Package planner builds the energy-budgeted daily agenda.
//
// A planning cycle computes the energy budget from biometrics, filters the
// backlog by context requirements, splits oversized tasks through the
// reasoning collaborator, orders the survivors by priority and deadline, and
// admits them greedily under the energy budget and the time left in the day.
// Every failure along the way is local: GenerateAgenda always returns an
// agenda and reports problems only to the audit sink.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/reasoner"
)

// ErrDecomposition marks a collaborator answer that could not be turned into
// subtasks. The task is then planned as a single unit.
var ErrDecomposition = errors.New("task decomposition failed")

// Defaults for Config.
const (
	DefaultBaseEnergy         = 50
	DefaultDecomposeThreshold = 90
	DefaultDecomposeTimeout   = 20 * time.Second
	DefaultDayEndHour         = 22
)

// Backlog supplies the candidate tasks for a cycle.
type Backlog interface {
	PendingTasks(ctx context.Context) ([]model.Task, error)
	CompletedTaskIDs(ctx context.Context) (map[string]bool, error)
}

// DecompositionRecorder is implemented by backlogs that persist the children
// produced by a split so later cycles plan them directly.
type DecompositionRecorder interface {
	RecordDecomposition(ctx context.Context, parent model.Task, children []model.Task) error
}

// Config holds the planner's tunables.
type Config struct {
	BaseEnergy         int
	DecomposeThreshold int
	DecomposeTimeout   time.Duration
	DayEndHour         int
	DayEndMinute       int
}

// DefaultConfig returns the stock planner configuration.
func DefaultConfig() Config {
	return Config{
		BaseEnergy:         DefaultBaseEnergy,
		DecomposeThreshold: DefaultDecomposeThreshold,
		DecomposeTimeout:   DefaultDecomposeTimeout,
		DayEndHour:         DefaultDayEndHour,
	}
}

// Planner is the task planning engine. It holds no state between cycles.
// Cycles are serialized, so two callers cannot split the same task.
type Planner struct {
	mu       sync.Mutex
	cfg      Config
	backlog  Backlog
	reasoner reasoner.Reasoner
	sink     audit.Sink
	logger   *slog.Logger
	rules    []SplitRule
	newID    func() string
}

// New creates a planner. r may be nil, in which case no task is ever split.
func New(cfg Config, backlog Backlog, r reasoner.Reasoner, sink audit.Sink, logger *slog.Logger) *Planner {
	if cfg.DecomposeThreshold <= 0 {
		cfg.DecomposeThreshold = DefaultDecomposeThreshold
	}
	if cfg.DecomposeTimeout <= 0 {
		cfg.DecomposeTimeout = DefaultDecomposeTimeout
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		cfg:      cfg,
		backlog:  backlog,
		reasoner: r,
		sink:     sink,
		logger:   logger.With("component", "planner"),
		rules:    SplitRules(cfg.DecomposeThreshold),
		newID:    func() string { return uuid.NewString()[:8] },
	}
}

// Config returns the planner configuration.
func (p *Planner) Config() Config { return p.cfg }
