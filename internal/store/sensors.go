package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// InsertBiometricSample stores a wearable sample.
func (db *DB) InsertBiometricSample(ctx context.Context, b model.BiometricSample) error {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO biometric_samples
		(taken_at, heart_rate, hrv, sleep_score, readiness_score, temperature)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.Timestamp.UTC().Format(time.RFC3339Nano), b.HeartRate, b.HRV, b.SleepScore,
		b.ReadinessScore, b.Temperature,
	)
	return err
}

// LatestBiometricSample returns the newest sample.
func (db *DB) LatestBiometricSample(ctx context.Context) (model.BiometricSample, error) {
	var (
		b       model.BiometricSample
		takenAt string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT taken_at, heart_rate, hrv, sleep_score, readiness_score, temperature
		 FROM biometric_samples ORDER BY id DESC LIMIT 1`,
	).Scan(&takenAt, &b.HeartRate, &b.HRV, &b.SleepScore, &b.ReadinessScore, &b.Temperature)
	if err == sql.ErrNoRows {
		return b, fmt.Errorf("biometric sample: %w", ErrNotFound)
	}
	if err != nil {
		return b, err
	}
	b.Timestamp, _ = time.Parse(time.RFC3339Nano, takenAt)
	return b, nil
}

// InsertRSSIFrame stores a batch of beacon readings.
func (db *DB) InsertRSSIFrame(ctx context.Context, readings model.SignalReading, motion bool) error {
	b, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("encoding readings: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO rssi_frames (taken_at, readings, motion) VALUES (?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano), string(b), motion,
	)
	return err
}

// LatestRSSIFrame returns the newest beacon frame.
func (db *DB) LatestRSSIFrame(ctx context.Context) (*RSSIFrame, error) {
	var (
		f                 RSSIFrame
		takenAt, readings string
	)
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, taken_at, readings, motion FROM rssi_frames ORDER BY id DESC LIMIT 1",
	).Scan(&f.ID, &takenAt, &readings, &f.Motion)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rssi frame: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	f.TakenAt, _ = time.Parse(time.RFC3339Nano, takenAt)
	if err := json.Unmarshal([]byte(readings), &f.Readings); err != nil {
		return nil, fmt.Errorf("decoding readings: %w", err)
	}
	return &f, nil
}

// InsertOccupancy stores an occupancy observation.
func (db *DB) InsertOccupancy(ctx context.Context, o model.Occupancy) error {
	var room sql.NullString
	if o.Room != "" {
		room = sql.NullString{String: o.Room, Valid: true}
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO occupancy_reports (taken_at, user_alone, people_count, room) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano), o.UserAlone, o.PeopleCount, room,
	)
	return err
}

// LatestOccupancy returns the newest occupancy observation.
func (db *DB) LatestOccupancy(ctx context.Context) (*OccupancyReport, error) {
	var (
		r       OccupancyReport
		takenAt string
		room    sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, taken_at, user_alone, people_count, room FROM occupancy_reports ORDER BY id DESC LIMIT 1",
	).Scan(&r.ID, &takenAt, &r.Occupancy.UserAlone, &r.Occupancy.PeopleCount, &room)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("occupancy report: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.TakenAt, _ = time.Parse(time.RFC3339Nano, takenAt)
	r.Occupancy.Room = room.String
	return &r, nil
}
