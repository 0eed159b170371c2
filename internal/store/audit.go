package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertAuditEntry appends a row to the audit log.
func (db *DB) InsertAuditEntry(ctx context.Context, category, action string, details map[string]any) error {
	var encoded sql.NullString
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encoding audit context: %w", err)
		}
		encoded = sql.NullString{String: string(b), Valid: true}
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO audit_log (logged_at, category, action, context) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano), category, action, encoded,
	)
	return err
}

// RecentAuditEntries returns up to limit entries, newest first. An empty
// category matches all entries.
func (db *DB) RecentAuditEntries(ctx context.Context, category string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT id, logged_at, category, action, context FROM audit_log"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e      AuditEntry
			logged string
			raw    sql.NullString
		)
		if err := rows.Scan(&e.ID, &logged, &e.Category, &e.Action, &raw); err != nil {
			return nil, err
		}
		e.LoggedAt, _ = time.Parse(time.RFC3339Nano, logged)
		if raw.Valid {
			if err := json.Unmarshal([]byte(raw.String), &e.Context); err != nil {
				return nil, fmt.Errorf("decoding audit context: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
