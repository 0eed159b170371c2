package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
	"github.com/blackwell-systems/homepilot/internal/store"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StateStyle colors a user state by alertness.
func StateStyle(s rtls.UserState) string {
	switch s {
	case rtls.StateSleeping, rtls.StateResting:
		return StyleRest.Render(string(s))
	case rtls.StateFocused:
		return StyleSuccess.Render(string(s))
	case rtls.StateActive:
		return StyleWarning.Render(string(s))
	default:
		return string(s)
	}
}

// PriorityStyle colors a priority.
func PriorityStyle(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return StyleError.Render(p.String())
	case model.PriorityHigh:
		return StyleWarning.Render(p.String())
	case model.PriorityLow:
		return StyleMuted.Render(p.String())
	default:
		return p.String()
	}
}

func deadline(t model.Task) string {
	if !t.HasDeadline() {
		return "-"
	}
	return t.Deadline.Local().Format("Jan 02 15:04")
}

// RenderAgenda formats an agenda with its budget summary and skipped tasks.
func RenderAgenda(a planner.Agenda) string {
	var sb strings.Builder
	sb.WriteString(Section(fmt.Sprintf("Agenda  %s", a.GeneratedAt.Local().Format("Mon Jan 02 15:04"))))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Energy"), Meter(float64(a.EnergyUsed), float64(a.EnergyBudget), 20, false))
	fmt.Fprintf(&sb, " %s %s\n\n", StyleLabel.Render("Time"), Meter(float64(a.MinutesPlanned), float64(a.HorizonMinutes), 20, false))

	if len(a.Entries) == 0 {
		sb.WriteString(StyleMuted.Render(" Nothing fits the current budget."))
		sb.WriteString("\n")
	} else {
		t := NewTable("#", "Task", "Priority", "Min", "Energy", "Deadline").AlignRight(0, 3, 4)
		for i, e := range a.Entries {
			t.AddRow(fmt.Sprint(i+1), e.Name, PriorityStyle(e.Priority),
				fmt.Sprint(e.EstimatedMinutes), fmt.Sprint(e.EnergyRequired), deadline(e))
		}
		sb.WriteString(t.Render())
	}

	if len(a.Skipped) > 0 {
		sb.WriteString(Section("Skipped"))
		sb.WriteString("\n")
		t := NewTable("Task", "Reason")
		for _, s := range a.Skipped {
			t.AddRow(s.Task.Name, StyleMuted.Render(s.Reason))
		}
		sb.WriteString(t.Render())
	}
	return sb.String()
}

// RenderStatus formats the engine status.
func RenderStatus(s rtls.Status) string {
	var sb strings.Builder
	sb.WriteString(Section("Status"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Room"), StyleBold.Render(s.Location.Room))
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Confidence"), ConfidenceBar(s.Location.Confidence, 20))
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("State"), StateStyle(s.State))
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Polling"), s.PollingInterval)
	if len(s.History) > 0 {
		fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("History"), StyleMuted.Render(strings.Join(s.History, " → ")))
	}
	return sb.String()
}

// RenderTasks formats backlog records, indenting subtasks by Depth.
func RenderTasks(recs []store.TaskRecord) string {
	t := NewTable("ID", "Name", "Priority", "Min", "Energy", "Status", "Deadline").AlignRight(3, 4)
	for _, r := range recs {
		status := r.Status
		switch status {
		case store.StatusCompleted:
			status = StyleSuccess.Render(status)
		case store.StatusDecomposed:
			status = StyleMuted.Render(status)
		}
		name := r.Task.Name
		if r.Depth > 0 {
			name = strings.Repeat("  ", r.Depth) + "↳ " + name
		}
		t.AddRow(r.Task.ID, name, PriorityStyle(r.Task.Priority),
			fmt.Sprint(r.Task.EstimatedMinutes), fmt.Sprint(r.Task.EnergyRequired), status, deadline(r.Task))
	}
	return t.Render()
}

// RenderAudit formats audit log entries.
func RenderAudit(entries []store.AuditEntry) string {
	t := NewTable("Time", "Category", "Action", "Details")
	for _, e := range entries {
		t.AddRow(e.LoggedAt.Local().Format(time.DateTime), e.Category, e.Action, formatDetails(e.Context))
	}
	return t.Render()
}

// formatDetails renders a details map as sorted key=value pairs.
func formatDetails(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return StyleMuted.Render(strings.Join(parts, " "))
}
