// Package model holds the data types shared by the location/state engine,
// the task planner, and the persistence layer.
package model

import "time"

// BiometricSample is one poll of the wearable. It is created once per cycle
// and never mutated afterwards.
type BiometricSample struct {
	HeartRate      int       `json:"heart_rate"`
	HRV            float64   `json:"hrv"`
	SleepScore     int       `json:"sleep_score"`
	ReadinessScore int       `json:"readiness_score"` // 0-100
	Temperature    float64   `json:"temperature"`
	Timestamp      time.Time `json:"timestamp"`
}

// SignalReading maps a beacon identifier to its RSSI. Stronger signals are
// less negative.
type SignalReading map[string]float64
