package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Priority orders tasks from low to urgent. It serializes as its integer value.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "priority(" + strconv.Itoa(int(p)) + ")"
}

// Valid reports whether p is one of the declared levels.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority accepts either a level name ("high") or its integer ("2").
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Priority(n).Valid() {
		return Priority(n), nil
	}
	return PriorityLow, fmt.Errorf("unknown priority %q", s)
}

// UnmarshalYAML lets backlog files spell priorities by name or number.
func (p *Priority) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParsePriority(value.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MinEnergy and MaxEnergy bound Task.EnergyRequired.
const (
	MinEnergy = 1
	MaxEnergy = 10
)

// Task is a unit of work from the backlog. Subtasks form an owned tree with no
// back-pointers: a parent owns its children.
type Task struct {
	ID                  string            `json:"id" yaml:"id"`
	Name                string            `json:"name" yaml:"name"`
	Description         string            `json:"description" yaml:"description"`
	Priority            Priority          `json:"priority" yaml:"priority"`
	EstimatedMinutes    int               `json:"estimated_minutes" yaml:"estimated_minutes"`
	EnergyRequired      int               `json:"energy_required" yaml:"energy_required"`
	Category            string            `json:"category" yaml:"category"`
	Dependencies        []string          `json:"dependencies" yaml:"dependencies"`
	Deadline            *time.Time        `json:"deadline" yaml:"deadline"`
	Subtasks            []Task            `json:"subtasks" yaml:"subtasks"`
	ContextRequirements map[string]string `json:"context_requirements" yaml:"context_requirements"`
}

// Validate checks the field-level constraints of a task.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("task %s: name is required", t.ID)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("task %s: invalid priority %d", t.ID, t.Priority)
	}
	if t.EstimatedMinutes <= 0 {
		return fmt.Errorf("task %s: estimated_minutes must be positive, got %d", t.ID, t.EstimatedMinutes)
	}
	if t.EnergyRequired < MinEnergy || t.EnergyRequired > MaxEnergy {
		return fmt.Errorf("task %s: energy_required must be in [%d,%d], got %d", t.ID, MinEnergy, MaxEnergy, t.EnergyRequired)
	}
	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return fmt.Errorf("task %s: depends on itself", t.ID)
		}
	}
	return nil
}

// HasDeadline reports whether the task carries a deadline.
func (t Task) HasDeadline() bool {
	return t.Deadline != nil && !t.Deadline.IsZero()
}
