package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

const taskColumns = `id, parent_id, name, description, priority, estimated_minutes,
	energy_required, category, deadline, context_requirements, status, created_at, completed_at`

// AddTask inserts a top-level pending task.
func (db *DB) AddTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkAcyclic(ctx, tx, t.ID, t.Dependencies); err != nil {
		return err
	}
	if err := insertTask(ctx, tx, t, "", 0); err != nil {
		return err
	}
	return tx.Commit()
}

// insertTask writes one task row and its dependency edges.
func insertTask(ctx context.Context, tx *sql.Tx, t model.Task, parentID string, position int) error {
	var deadline sql.NullString
	if t.HasDeadline() {
		deadline = sql.NullString{String: t.Deadline.UTC().Format(time.RFC3339), Valid: true}
	}
	var reqs sql.NullString
	if len(t.ContextRequirements) > 0 {
		b, err := json.Marshal(t.ContextRequirements)
		if err != nil {
			return fmt.Errorf("encoding context requirements: %w", err)
		}
		reqs = sql.NullString{String: string(b), Valid: true}
	}
	var parent sql.NullString
	if parentID != "" {
		parent = sql.NullString{String: parentID, Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO tasks
		(id, parent_id, position, name, description, priority, estimated_minutes,
		 energy_required, category, deadline, context_requirements, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, parent, position, t.Name, t.Description, int(t.Priority), t.EstimatedMinutes,
		t.EnergyRequired, t.Category, deadline, reqs, StatusPending,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting task %s: %w", t.ID, err)
	}

	for _, dep := range t.Dependencies {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_dependencies (task_id, depends_on) VALUES (?, ?)",
			t.ID, dep,
		); err != nil {
			return fmt.Errorf("inserting dependency %s -> %s: %w", t.ID, dep, err)
		}
	}
	return nil
}

// checkAcyclic walks the existing dependency edges from deps and fails if any
// path leads back to id.
func checkAcyclic(ctx context.Context, tx *sql.Tx, id string, deps []string) error {
	seen := make(map[string]bool)
	stack := append([]string(nil), deps...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == id {
			return fmt.Errorf("%w: %s depends on itself transitively", ErrDependencyCycle, id)
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true

		rows, err := tx.QueryContext(ctx, "SELECT depends_on FROM task_dependencies WHERE task_id = ?", cur)
		if err != nil {
			return err
		}
		for rows.Next() {
			var next string
			if err := rows.Scan(&next); err != nil {
				_ = rows.Close()
				return err
			}
			stack = append(stack, next)
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}

// GetTask returns a task with its subtasks and status.
func (db *DB) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	rec, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := db.fillTask(ctx, &rec.Task); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTasks returns top-level tasks, optionally filtered by status. Subtasks
// are nested under their parents.
func (db *DB) ListTasks(ctx context.Context, status string) ([]TaskRecord, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE parent_id IS NULL"
	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY rowid"

	recs, err := db.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if err := db.fillTask(ctx, &recs[i].Task); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// TaskTree returns every task depth first: each top-level task is followed
// by its descendants in position order. A non-empty status filters the
// result after the tree is built, so depths stay correct.
func (db *DB) TaskTree(ctx context.Context, status string) ([]TaskRecord, error) {
	recs, err := db.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY position, rowid")
	if err != nil {
		return nil, err
	}

	children := make(map[string][]TaskRecord)
	var roots []TaskRecord
	for _, r := range recs {
		if r.ParentID == "" {
			roots = append(roots, r)
			continue
		}
		children[r.ParentID] = append(children[r.ParentID], r)
	}

	var out []TaskRecord
	var walk func(r TaskRecord, depth int)
	walk = func(r TaskRecord, depth int) {
		r.Depth = depth
		if status == "" || r.Status == status {
			out = append(out, r)
		}
		for _, c := range children[r.Task.ID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return out, nil
}

// PendingTasks returns the plannable leaves of the backlog (pending tasks
// that have not been decomposed) in insertion order, so children follow the
// order they were produced in.
func (db *DB) PendingTasks(ctx context.Context) ([]model.Task, error) {
	recs, err := db.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE status = ? ORDER BY rowid",
		StatusPending,
	)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(recs))
	for _, r := range recs {
		deps, err := db.dependencies(ctx, r.Task.ID)
		if err != nil {
			return nil, err
		}
		r.Task.Dependencies = deps
		tasks = append(tasks, r.Task)
	}
	return tasks, nil
}

// CompletedTaskIDs returns the ids of every completed task.
func (db *DB) CompletedTaskIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id FROM tasks WHERE status = ?", StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}

// CompleteTask marks a task completed. A decomposed parent is completed once
// all of its children are.
func (db *DB) CompleteTask(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		"UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND status != ?",
		StatusCompleted, now, id, StatusCompleted,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
	}

	// Roll completion up the tree.
	cur := id
	for {
		var parent sql.NullString
		if err := tx.QueryRowContext(ctx, "SELECT parent_id FROM tasks WHERE id = ?", cur).Scan(&parent); err != nil {
			return err
		}
		if !parent.Valid {
			break
		}
		var open int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tasks WHERE parent_id = ? AND status != ?",
			parent.String, StatusCompleted,
		).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			break
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?",
			StatusCompleted, now, parent.String,
		); err != nil {
			return err
		}
		cur = parent.String
	}

	return tx.Commit()
}

// RecordDecomposition stores children under parent and marks the parent
// decomposed. The parent row is kept for tracking. Children whose
// dependencies would close a cycle are rejected and nothing is stored.
func (db *DB) RecordDecomposition(ctx context.Context, parent model.Task, children []model.Task) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE tasks SET status = ? WHERE id = ? AND status = ?",
		StatusDecomposed, parent.ID, StatusPending,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pending task %s: %w", parent.ID, ErrNotFound)
	}

	for i, c := range children {
		if err := c.Validate(); err != nil {
			return err
		}
		if err := insertTask(ctx, tx, c, parent.ID, i); err != nil {
			return err
		}
	}
	// Checked after every sibling is in, so edges between siblings count.
	for _, c := range children {
		if err := checkAcyclic(ctx, tx, c.ID, c.Dependencies); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// fillTask loads dependencies and, recursively, subtasks.
func (db *DB) fillTask(ctx context.Context, t *model.Task) error {
	deps, err := db.dependencies(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Dependencies = deps

	children, err := db.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE parent_id = ? ORDER BY position, id", t.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		child := c.Task
		if err := db.fillTask(ctx, &child); err != nil {
			return err
		}
		t.Subtasks = append(t.Subtasks, child)
	}
	return nil
}

func (db *DB) dependencies(ctx context.Context, id string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT depends_on FROM task_dependencies WHERE task_id = ? ORDER BY depends_on", id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var deps []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]TaskRecord, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*TaskRecord, error) {
	var (
		rec               TaskRecord
		priority          int
		parent, deadline  sql.NullString
		reqs, completedAt sql.NullString
		createdAt         string
	)
	err := row.Scan(
		&rec.Task.ID, &parent, &rec.Task.Name, &rec.Task.Description, &priority,
		&rec.Task.EstimatedMinutes, &rec.Task.EnergyRequired, &rec.Task.Category,
		&deadline, &reqs, &rec.Status, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Task.Priority = model.Priority(priority)
	rec.ParentID = parent.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if deadline.Valid {
		if d, err := time.Parse(time.RFC3339, deadline.String); err == nil {
			rec.Task.Deadline = &d
		}
	}
	if completedAt.Valid {
		if c, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			rec.CompletedAt = &c
		}
	}
	if reqs.Valid {
		if err := json.Unmarshal([]byte(reqs.String), &rec.Task.ContextRequirements); err != nil {
			return nil, fmt.Errorf("decoding context requirements of %s: %w", rec.Task.ID, err)
		}
	}
	return &rec, nil
}
