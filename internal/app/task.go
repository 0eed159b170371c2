package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/output"
	"github.com/blackwell-systems/homepilot/internal/store"
)

var (
	taskID         string
	taskDesc       string
	taskPriority   string
	taskMinutes    int
	taskEnergy     int
	taskCategory   string
	taskDeps       []string
	taskDeadline   string
	taskRequires   map[string]string
	taskListStatus string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add, import, list, and complete backlog tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a task to the backlog",
	Long: `Add a task to the backlog.

Examples:
  homepilot task add "Pay bills" --priority high --minutes 30 --energy 3
  homepilot task add "Mow lawn" --minutes 60 --energy 7 --require weather=outdoor
  homepilot task add "Write report" --minutes 180 --energy 8 --deadline 2026-05-01T17:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskAdd,
}

var taskImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import tasks from a YAML backlog file",
	Long: `Import a YAML list of tasks. Subtasks may be nested under a task's
subtasks key; they are stored as children of the task.

  - id: taxes
    name: File taxes
    priority: urgent
    estimated_minutes: 120
    energy_required: 8
    deadline: 2026-04-15T23:59:00Z
    context_requirements:
      occupancy: alone`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskImport,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlog tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

func init() {
	f := taskAddCmd.Flags()
	f.StringVar(&taskID, "id", "", "Task id (default: generated)")
	f.StringVar(&taskDesc, "description", "", "Task description")
	f.StringVar(&taskPriority, "priority", "medium", "Priority: low, medium, high, urgent")
	f.IntVar(&taskMinutes, "minutes", 30, "Estimated minutes")
	f.IntVar(&taskEnergy, "energy", 3, "Energy required (1-10)")
	f.StringVar(&taskCategory, "category", "", "Category")
	f.StringSliceVar(&taskDeps, "depends-on", nil, "Ids of tasks that must be completed first")
	f.StringVar(&taskDeadline, "deadline", "", "Deadline in RFC 3339")
	f.StringToStringVar(&taskRequires, "require", nil, "Context requirements, e.g. occupancy=alone,weather=outdoor,room=office")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status: pending, decomposed, completed")

	taskCmd.AddCommand(taskAddCmd, taskImportCmd, taskListCmd, taskCompleteCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	prio, err := model.ParsePriority(taskPriority)
	if err != nil {
		return err
	}
	t := model.Task{
		ID:                  taskID,
		Name:                args[0],
		Description:         taskDesc,
		Priority:            prio,
		EstimatedMinutes:    taskMinutes,
		EnergyRequired:      taskEnergy,
		Category:            taskCategory,
		Dependencies:        taskDeps,
		ContextRequirements: taskRequires,
	}
	if t.ID == "" {
		t.ID = uuid.NewString()[:8]
	}
	if taskDeadline != "" {
		d, err := time.Parse(time.RFC3339, taskDeadline)
		if err != nil {
			return fmt.Errorf("invalid deadline %q: %w", taskDeadline, err)
		}
		t.Deadline = &d
	}

	return withDB(func(db *store.DB) error {
		if err := db.AddTask(cmd.Context(), t); err != nil {
			return err
		}
		fmt.Printf("Added task %s: %s\n", t.ID, t.Name)
		return nil
	})
}

// loadBacklogFile parses a YAML task list.
func loadBacklogFile(path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tasks []model.Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i := range tasks {
		assignIDs(&tasks[i], fmt.Sprintf("task%d", i+1))
	}
	return tasks, nil
}

// assignIDs fills in missing ids, deriving subtask ids from the parent.
func assignIDs(t *model.Task, fallback string) {
	if t.ID == "" {
		t.ID = fallback
	}
	for i := range t.Subtasks {
		assignIDs(&t.Subtasks[i], fmt.Sprintf("%s-%d", t.ID, i+1))
	}
}

// importTasks stores tasks, recording nested subtasks as decompositions.
func importTasks(ctx context.Context, db *store.DB, tasks []model.Task) (int, error) {
	n := 0
	for _, t := range tasks {
		subtasks := t.Subtasks
		t.Subtasks = nil
		if err := db.AddTask(ctx, t); err != nil {
			return n, fmt.Errorf("task %s: %w", t.ID, err)
		}
		n++
		if len(subtasks) == 0 {
			continue
		}
		if err := importChildren(ctx, db, t, subtasks); err != nil {
			return n, err
		}
		n += countTasks(subtasks)
	}
	return n, nil
}

func importChildren(ctx context.Context, db *store.DB, parent model.Task, children []model.Task) error {
	flat := make([]model.Task, len(children))
	for i, c := range children {
		c.Subtasks = nil
		flat[i] = c
	}
	if err := db.RecordDecomposition(ctx, parent, flat); err != nil {
		return fmt.Errorf("subtasks of %s: %w", parent.ID, err)
	}
	for i, c := range children {
		if len(c.Subtasks) > 0 {
			if err := importChildren(ctx, db, flat[i], c.Subtasks); err != nil {
				return err
			}
		}
	}
	return nil
}

func countTasks(tasks []model.Task) int {
	n := len(tasks)
	for _, t := range tasks {
		n += countTasks(t.Subtasks)
	}
	return n
}

func runTaskImport(cmd *cobra.Command, args []string) error {
	tasks, err := loadBacklogFile(args[0])
	if err != nil {
		return err
	}
	return withDB(func(db *store.DB) error {
		n, err := importTasks(cmd.Context(), db, tasks)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d task(s) from %s\n", n, args[0])
		return nil
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withDB(func(db *store.DB) error {
		recs, err := db.TaskTree(cmd.Context(), taskListStatus)
		if err != nil {
			return err
		}
		if flagJSON {
			return output.WriteJSON(os.Stdout, recs)
		}
		if len(recs) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		fmt.Print(output.RenderTasks(recs))
		return nil
	})
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	return withDB(func(db *store.DB) error {
		if err := db.CompleteTask(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Completed %s\n", args[0])
		return nil
	})
}
