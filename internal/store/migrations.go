package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id                   TEXT PRIMARY KEY,
			parent_id            TEXT REFERENCES tasks(id),
			position             INTEGER NOT NULL DEFAULT 0,
			name                 TEXT NOT NULL,
			description          TEXT NOT NULL DEFAULT '',
			priority             INTEGER NOT NULL,
			estimated_minutes    INTEGER NOT NULL,
			energy_required      INTEGER NOT NULL CHECK (energy_required BETWEEN 1 AND 10),
			category             TEXT NOT NULL DEFAULT '',
			deadline             TEXT,
			context_requirements TEXT,
			status               TEXT NOT NULL DEFAULT 'pending',
			created_at           TEXT NOT NULL,
			completed_at         TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS task_dependencies (
			task_id    TEXT NOT NULL REFERENCES tasks(id),
			depends_on TEXT NOT NULL,
			PRIMARY KEY (task_id, depends_on)
		)`,
		`CREATE TABLE IF NOT EXISTS biometric_samples (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at        TEXT NOT NULL,
			heart_rate      INTEGER NOT NULL,
			hrv             REAL NOT NULL,
			sleep_score     INTEGER NOT NULL,
			readiness_score INTEGER NOT NULL,
			temperature     REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rssi_frames (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at TEXT NOT NULL,
			readings TEXT NOT NULL,
			motion   BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS occupancy_reports (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at     TEXT NOT NULL,
			user_alone   BOOLEAN NOT NULL,
			people_count INTEGER NOT NULL,
			room         TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			logged_at TEXT NOT NULL,
			category  TEXT NOT NULL,
			action    TEXT NOT NULL,
			context   TEXT
		)`,
		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_biometric_taken ON biometric_samples(taken_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rssi_taken ON rssi_frames(taken_at)`,
		`CREATE INDEX IF NOT EXISTS idx_occupancy_taken ON occupancy_reports(taken_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_log(category)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	// Set schema version.
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
