package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/model"
)

// SplitRule is one row of the decomposition trigger table. The first rule
// whose Match returns true decides whether a task is split.
type SplitRule struct {
	Name  string
	Match func(t model.Task) bool
	Split bool
}

// SplitRules returns the trigger table for a minutes threshold: tasks at or
// below it stay whole, longer ones are split.
func SplitRules(threshold int) []SplitRule {
	return []SplitRule{
		{
			Name:  "already_split",
			Match: func(t model.Task) bool { return len(t.Subtasks) > 0 },
			Split: false,
		},
		{
			Name:  "within_threshold",
			Match: func(t model.Task) bool { return t.EstimatedMinutes <= threshold },
			Split: false,
		},
		{
			Name:  "over_threshold",
			Match: func(model.Task) bool { return true },
			Split: true,
		},
	}
}

// shouldSplit evaluates the trigger table.
func (p *Planner) shouldSplit(t model.Task) bool {
	for _, r := range p.rules {
		if r.Match(t) {
			return r.Split
		}
	}
	return false
}

const decomposePrompt = `Split this task into smaller sequential subtasks that can each be done in one sitting.

Task: %s
Description: %s
Estimated minutes: %d
Energy required (1-10): %d

Respond with ONLY a JSON array, no prose, in this exact shape:
[{"name": "...", "description": "...", "estimated_minutes": 30, "energy_required": 4}]

Every element must have all four fields. estimated_minutes must be a positive integer
and energy_required an integer from 1 to 10. List the subtasks in the order they should be done.`

// DecomposeTask splits an oversized task into ordered child tasks through the
// reasoning collaborator. Any failure returns the task unchanged.
func (p *Planner) DecomposeTask(ctx context.Context, t model.Task) []model.Task {
	if !p.shouldSplit(t) {
		return []model.Task{t}
	}
	if p.reasoner == nil {
		p.sink.Log(audit.CategoryDecompose, "skipped", map[string]any{
			"task_id": t.ID,
			"reason":  "no reasoning collaborator configured",
		})
		return []model.Task{t}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.DecomposeTimeout)
	defer cancel()

	prompt := fmt.Sprintf(decomposePrompt, t.Name, t.Description, t.EstimatedMinutes, t.EnergyRequired)
	resp, err := p.reasoner.Complete(callCtx, prompt)
	if err != nil {
		p.fallback(t, fmt.Errorf("%w: collaborator: %w", ErrDecomposition, err))
		return []model.Task{t}
	}

	specs, err := parseSubtasks(resp)
	if err != nil {
		p.fallback(t, err)
		return []model.Task{t}
	}

	children := make([]model.Task, 0, len(specs))
	for _, s := range specs {
		children = append(children, p.child(t, s))
	}
	p.sink.Log(audit.CategoryDecompose, "split", map[string]any{
		"task_id":  t.ID,
		"subtasks": len(children),
	})
	return children
}

func (p *Planner) fallback(t model.Task, err error) {
	p.logger.Warn("decomposition failed, keeping task whole", "task_id", t.ID, "error", err)
	p.sink.Log(audit.CategoryDecompose, "fallback", map[string]any{
		"task_id": t.ID,
		"error":   err.Error(),
	})
}

// child builds a subtask that inherits the parent's scheduling attributes.
func (p *Planner) child(parent model.Task, s subtaskSpec) model.Task {
	c := model.Task{
		ID:               parent.ID + "-" + p.newID(),
		Name:             s.Name,
		Description:      s.Description,
		Priority:         parent.Priority,
		EstimatedMinutes: s.EstimatedMinutes,
		EnergyRequired:   s.EnergyRequired,
		Category:         parent.Category,
		Deadline:         parent.Deadline,
	}
	if len(parent.Dependencies) > 0 {
		c.Dependencies = append([]string(nil), parent.Dependencies...)
	}
	if len(parent.ContextRequirements) > 0 {
		c.ContextRequirements = make(map[string]string, len(parent.ContextRequirements))
		for k, v := range parent.ContextRequirements {
			c.ContextRequirements[k] = v
		}
	}
	return c
}

type subtaskSpec struct {
	Name             string
	Description      string
	EstimatedMinutes int
	EnergyRequired   int
}

// rawSubtask uses pointers so absent fields can be told apart from zero
// values.
type rawSubtask struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	EstimatedMinutes *int    `json:"estimated_minutes"`
	EnergyRequired   *int    `json:"energy_required"`
}

// stripCodeFence removes a surrounding markdown code fence.
func stripCodeFence(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "[{") {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// parseSubtasks validates a collaborator answer strictly.
func parseSubtasks(resp string) ([]subtaskSpec, error) {
	text := stripCodeFence(resp)

	var raw []rawSubtask
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w (response was: %.200s)", ErrDecomposition, err, text)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: response contained no subtasks", ErrDecomposition)
	}

	specs := make([]subtaskSpec, 0, len(raw))
	for i, r := range raw {
		switch {
		case r.Name == nil || r.Description == nil || r.EstimatedMinutes == nil || r.EnergyRequired == nil:
			return nil, fmt.Errorf("%w: subtask %d is missing a field", ErrDecomposition, i)
		case strings.TrimSpace(*r.Name) == "":
			return nil, fmt.Errorf("%w: subtask %d has an empty name", ErrDecomposition, i)
		case *r.EstimatedMinutes <= 0:
			return nil, fmt.Errorf("%w: subtask %d has non-positive minutes %d", ErrDecomposition, i, *r.EstimatedMinutes)
		case *r.EnergyRequired < model.MinEnergy || *r.EnergyRequired > model.MaxEnergy:
			return nil, fmt.Errorf("%w: subtask %d energy %d out of range", ErrDecomposition, i, *r.EnergyRequired)
		}
		specs = append(specs, subtaskSpec{
			Name:             *r.Name,
			Description:      *r.Description,
			EstimatedMinutes: *r.EstimatedMinutes,
			EnergyRequired:   *r.EnergyRequired,
		})
	}
	return specs, nil
}
