package planner

import (
	"context"
	"sort"
	"time"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/model"
)

// Skip reasons recorded on the agenda.
const (
	SkipContext      = "context requirements not met"
	SkipDependencies = "waiting on dependencies"
	SkipEnergy       = "exceeds remaining energy budget"
	SkipTime         = "exceeds time left today"
)

// PlanInput is the joined context for one planning cycle. A nil Occupancy or
// Weather means that context could not be fetched.
type PlanInput struct {
	Biometrics model.BiometricSample
	// WorkMetrics and FinancialStatus do not affect scoring. When set they
	// are copied into the agenda_generated audit entry.
	WorkMetrics     map[string]any
	FinancialStatus map[string]any
	Now             time.Time
	Occupancy       *model.Occupancy
	Weather         *model.Weather
}

// Skipped is a task left out of the agenda.
type Skipped struct {
	Task   model.Task `json:"task"`
	Reason string     `json:"reason"`
}

// Agenda is the ordered plan for one cycle.
type Agenda struct {
	GeneratedAt    time.Time    `json:"generated_at"`
	EnergyBudget   int          `json:"energy_budget"`
	EnergyUsed     int          `json:"energy_used"`
	MinutesPlanned int          `json:"minutes_planned"`
	HorizonMinutes int          `json:"horizon_minutes"`
	Entries        []model.Task `json:"entries"`
	Skipped        []Skipped    `json:"skipped"`
}

// GenerateAgenda runs one planning cycle. It never fails: backlog errors
// produce an empty agenda and an audit entry.
func (p *Planner) GenerateAgenda(ctx context.Context, in PlanInput) Agenda {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	agenda := Agenda{
		GeneratedAt:    now,
		EnergyBudget:   p.EnergyBudget(in.Biometrics),
		HorizonMinutes: p.horizon(now),
		Entries:        []model.Task{},
	}

	pending, err := p.backlog.PendingTasks(ctx)
	if err != nil {
		p.backlogFailed("pending_tasks", err)
		return agenda
	}
	completed, err := p.backlog.CompletedTaskIDs(ctx)
	if err != nil {
		p.backlogFailed("completed_tasks", err)
		return agenda
	}

	var candidates []model.Task
	for _, t := range pending {
		if !CheckContextRequirements(t, in.Occupancy, in.Weather) {
			agenda.Skipped = append(agenda.Skipped, Skipped{Task: t, Reason: SkipContext})
			continue
		}
		for _, c := range p.expand(ctx, t) {
			if completed[c.ID] {
				continue
			}
			if !CheckContextRequirements(c, in.Occupancy, in.Weather) {
				agenda.Skipped = append(agenda.Skipped, Skipped{Task: c, Reason: SkipContext})
				continue
			}
			candidates = append(candidates, c)
		}
	}

	ready := candidates[:0]
	for _, t := range candidates {
		if !dependenciesMet(t, completed) {
			agenda.Skipped = append(agenda.Skipped, Skipped{Task: t, Reason: SkipDependencies})
			continue
		}
		ready = append(ready, t)
	}
	sortByUrgency(ready)

	for _, t := range ready {
		switch {
		case agenda.EnergyUsed+t.EnergyRequired > agenda.EnergyBudget:
			agenda.Skipped = append(agenda.Skipped, Skipped{Task: t, Reason: SkipEnergy})
		case agenda.MinutesPlanned+t.EstimatedMinutes > agenda.HorizonMinutes:
			agenda.Skipped = append(agenda.Skipped, Skipped{Task: t, Reason: SkipTime})
		default:
			agenda.Entries = append(agenda.Entries, t)
			agenda.EnergyUsed += t.EnergyRequired
			agenda.MinutesPlanned += t.EstimatedMinutes
		}
	}

	details := map[string]any{
		"entries":       len(agenda.Entries),
		"skipped":       len(agenda.Skipped),
		"energy_budget": agenda.EnergyBudget,
		"energy_used":   agenda.EnergyUsed,
		"horizon":       agenda.HorizonMinutes,
	}
	if in.WorkMetrics != nil {
		details["work_metrics"] = in.WorkMetrics
	}
	if in.FinancialStatus != nil {
		details["financial_status"] = in.FinancialStatus
	}
	p.sink.Log(audit.CategoryPlanning, "agenda_generated", details)
	return agenda
}

// expand turns a backlog task into the plannable units for this cycle.
func (p *Planner) expand(ctx context.Context, t model.Task) []model.Task {
	if len(t.Subtasks) > 0 {
		return leaves(t)
	}
	if !p.shouldSplit(t) {
		return []model.Task{t}
	}

	children := p.DecomposeTask(ctx, t)
	if len(children) == 1 && children[0].ID == t.ID {
		return children
	}
	if rec, ok := p.backlog.(DecompositionRecorder); ok {
		if err := rec.RecordDecomposition(ctx, t, children); err != nil {
			p.logger.Warn("recording decomposition failed", "task_id", t.ID, "error", err)
			p.sink.Log(audit.CategoryDecompose, "record_failed", map[string]any{
				"task_id": t.ID,
				"error":   err.Error(),
			})
		}
	}
	return children
}

// leaves flattens a task tree into its leaf tasks, depth first.
func leaves(t model.Task) []model.Task {
	if len(t.Subtasks) == 0 {
		return []model.Task{t}
	}
	var out []model.Task
	for _, s := range t.Subtasks {
		out = append(out, leaves(s)...)
	}
	return out
}

func dependenciesMet(t model.Task, completed map[string]bool) bool {
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// sortByUrgency orders by priority descending, then deadline ascending with
// undated tasks last. The sort is stable so backlog order breaks ties.
func sortByUrgency(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		switch {
		case a.HasDeadline() && b.HasDeadline():
			return a.Deadline.Before(*b.Deadline)
		case a.HasDeadline():
			return true
		default:
			return false
		}
	})
}

// horizon returns the whole minutes from now until the configured day end in
// now's location, or zero once the day end has passed.
func (p *Planner) horizon(now time.Time) int {
	end := time.Date(now.Year(), now.Month(), now.Day(), p.cfg.DayEndHour, p.cfg.DayEndMinute, 0, 0, now.Location())
	if !end.After(now) {
		return 0
	}
	return int(end.Sub(now) / time.Minute)
}

func (p *Planner) backlogFailed(step string, err error) {
	p.logger.Error("backlog unavailable", "step", step, "error", err)
	p.sink.Log(audit.CategoryPlanning, "backlog_unavailable", map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
