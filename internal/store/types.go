// Package store provides SQLite persistence for the task backlog, sensor
// frames, and the audit log.
package store

import (
	"errors"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusDecomposed = "decomposed"
	StatusCompleted  = "completed"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDependencyCycle is returned when adding a task would make the dependency
// graph cyclic.
var ErrDependencyCycle = errors.New("dependency cycle")

// TaskRecord is a backlog row together with its bookkeeping columns.
type TaskRecord struct {
	Task        model.Task `json:"task"`
	ParentID    string     `json:"parent_id,omitempty"`
	Depth       int        `json:"depth,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RSSIFrame is one batch of beacon readings plus the motion flag reported
// alongside it.
type RSSIFrame struct {
	ID       int64               `json:"id"`
	TakenAt  time.Time           `json:"taken_at"`
	Readings model.SignalReading `json:"readings"`
	Motion   bool                `json:"motion"`
}

// OccupancyReport is a timestamped occupancy observation.
type OccupancyReport struct {
	ID        int64           `json:"id"`
	TakenAt   time.Time       `json:"taken_at"`
	Occupancy model.Occupancy `json:"occupancy"`
}

// AuditEntry is a row of the audit log.
type AuditEntry struct {
	ID       int64          `json:"id"`
	LoggedAt time.Time      `json:"logged_at"`
	Category string         `json:"category"`
	Action   string         `json:"action"`
	Context  map[string]any `json:"context,omitempty"`
}
