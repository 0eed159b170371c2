package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/config"
	"github.com/blackwell-systems/homepilot/internal/loop"
	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/output"
	"github.com/blackwell-systems/homepilot/internal/rtls"
	"github.com/blackwell-systems/homepilot/internal/store"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"ingest", "task", "plan", "run", "audit", "mcp"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestParseReadings(t *testing.T) {
	got, err := parseReadings([]string{"kitchen_beacon_1=-48", "office_beacon_2=-81.5"})
	require.NoError(t, err)
	assert.Equal(t, model.SignalReading{"kitchen_beacon_1": -48, "office_beacon_2": -81.5}, got)

	_, err = parseReadings([]string{"kitchen_beacon_1"})
	assert.Error(t, err)
	_, err = parseReadings([]string{"=-40"})
	assert.Error(t, err)
	_, err = parseReadings([]string{"kitchen_beacon_1=loud"})
	assert.Error(t, err)
}

func TestValidateSample(t *testing.T) {
	ok := model.BiometricSample{HeartRate: 60, SleepScore: 80, ReadinessScore: 70}
	assert.NoError(t, validateSample(ok))

	bad := ok
	bad.HeartRate = 0
	assert.Error(t, validateSample(bad))

	bad = ok
	bad.ReadinessScore = 101
	assert.Error(t, validateSample(bad))

	bad = ok
	bad.SleepScore = -1
	assert.Error(t, validateSample(bad))
}

const backlogYAML = `
- id: house
  name: Clean house
  priority: high
  estimated_minutes: 120
  energy_required: 6
  subtasks:
    - name: Kitchen
      priority: high
      estimated_minutes: 40
      energy_required: 4
      subtasks:
        - name: Dishes
          priority: medium
          estimated_minutes: 15
          energy_required: 2
    - name: Floors
      priority: medium
      estimated_minutes: 30
      energy_required: 3
- name: Call mom
  priority: urgent
  estimated_minutes: 10
  energy_required: 1
`

func TestLoadBacklogFile_AssignsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(backlogYAML), 0o644))

	tasks, err := loadBacklogFile(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "house", tasks[0].ID)
	assert.Equal(t, "house-1", tasks[0].Subtasks[0].ID)
	assert.Equal(t, "house-1-1", tasks[0].Subtasks[0].Subtasks[0].ID)
	assert.Equal(t, "house-2", tasks[0].Subtasks[1].ID)
	assert.Equal(t, "task2", tasks[1].ID)
	assert.Equal(t, model.PriorityUrgent, tasks[1].Priority)
	assert.Equal(t, 5, countTasks(tasks))
}

func TestLoadBacklogFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: [unclosed"), 0o644))
	_, err := loadBacklogFile(path)
	assert.Error(t, err)

	_, err = loadBacklogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestImportTasks_StoresTree(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "backlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(backlogYAML), 0o644))
	tasks, err := loadBacklogFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	n, err := importTasks(ctx, db, tasks)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	tree, err := db.TaskTree(ctx, "")
	require.NoError(t, err)
	var ids []string
	depths := map[string]int{}
	for _, r := range tree {
		ids = append(ids, r.Task.ID)
		depths[r.Task.ID] = r.Depth
	}
	assert.Equal(t, []string{"house", "house-1", "house-1-1", "house-2", "task2"}, ids)
	assert.Equal(t, 2, depths["house-1-1"])

	pending, err := db.PendingTasks(ctx)
	require.NoError(t, err)
	var leaves []string
	for _, p := range pending {
		leaves = append(leaves, p.ID)
	}
	assert.ElementsMatch(t, []string{"house-1-1", "house-2", "task2"}, leaves)
}

func TestImportTasks_RejectsSubtaskCycle(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	parent := model.Task{ID: "p", Name: "Parent", EstimatedMinutes: 60, EnergyRequired: 4, Subtasks: []model.Task{
		{ID: "a", Name: "A", EstimatedMinutes: 30, EnergyRequired: 2, Dependencies: []string{"b"}},
		{ID: "b", Name: "B", EstimatedMinutes: 30, EnergyRequired: 2, Dependencies: []string{"a"}},
	}}
	ctx := context.Background()
	_, err = importTasks(ctx, db, []model.Task{parent})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrDependencyCycle))

	_, err = db.GetTask(ctx, "a")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestImportTasks_DuplicateID(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	task := model.Task{ID: "a", Name: "A", EstimatedMinutes: 5, EnergyRequired: 1}
	_, err = importTasks(context.Background(), db, []model.Task{task, task})
	assert.Error(t, err)
}

func TestNewReasoner(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := &config.Config{}
	r, err := newReasoner(cfg, config.NewCredentials(nil), audit.Nop{})
	require.NoError(t, err)
	assert.Nil(t, r)

	cfg.Planner.DecompositionProvider = "claude"
	_, err = newReasoner(cfg, config.NewCredentials(nil), audit.Nop{})
	assert.True(t, errors.Is(err, config.ErrMissingCredential))

	r, err = newReasoner(cfg, config.NewCredentials(map[string]string{"anthropic": "k"}), audit.Nop{})
	require.NoError(t, err)
	assert.NotNil(t, r)

	cfg.Planner.DecompositionProvider = "Gemini"
	r, err = newReasoner(cfg, config.NewCredentials(map[string]string{"gemini": "k"}), audit.Nop{})
	require.NoError(t, err)
	assert.NotNil(t, r)

	cfg.Planner.DecompositionProvider = "oracle"
	_, err = newReasoner(cfg, config.NewCredentials(nil), audit.Nop{})
	assert.Error(t, err)
}

func TestNewWeather(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY", "")

	cfg := &config.Config{}
	p, err := newWeather(cfg, config.NewCredentials(nil), audit.Nop{})
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg.Weather = config.Weather{Provider: "openweathermap", City: "Austin", Units: "imperial", CacheTTL: time.Minute}
	_, err = newWeather(cfg, config.NewCredentials(nil), audit.Nop{})
	assert.True(t, errors.Is(err, config.ErrMissingCredential))

	p, err = newWeather(cfg, config.NewCredentials(map[string]string{"openweathermap": "k"}), audit.Nop{})
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg.Weather.City = ""
	_, err = newWeather(cfg, config.NewCredentials(map[string]string{"openweathermap": "k"}), audit.Nop{})
	assert.Error(t, err)
}

func TestAPIKey_AuditsLookupWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	sink := &audit.Recorder{}
	creds := config.NewCredentials(map[string]string{"anthropic": "sk-secret"})

	key, err := apiKey(creds, sink, credAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", key)
	_, err = apiKey(creds, sink, credGemini)
	assert.Error(t, err)

	assert.True(t, sink.Has(audit.CategoryCredentials, "resolved"))
	assert.True(t, sink.Has(audit.CategoryCredentials, "missing"))
	for _, e := range sink.Events {
		for _, v := range e.Details {
			assert.NotEqual(t, "sk-secret", v)
		}
	}
}

func TestPlannerConfig(t *testing.T) {
	cfg := &config.Config{Planner: config.Planner{BaseEnergy: 12, DecomposeThreshold: 90, DayEnd: "21:30"}}
	pc, err := plannerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 12, pc.BaseEnergy)
	assert.Equal(t, 21, pc.DayEndHour)
	assert.Equal(t, 30, pc.DayEndMinute)

	cfg.Planner.DayEnd = "late"
	_, err = plannerConfig(cfg)
	assert.Error(t, err)
}

func TestPrintCycle(t *testing.T) {
	output.SetNoColor(true)
	defer output.SetNoColor(false)

	var buf bytes.Buffer
	printCycle(&buf, loop.CycleResult{
		Time:         time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local),
		Location:     rtls.LocationEstimate{Room: "office", Confidence: 0.8},
		State:        rtls.StateFocused,
		NextInterval: 5 * time.Second,
		Events:       []loop.Event{{Level: "info", Title: "Room changed", Message: "now in office"}},
	})
	out := buf.String()
	assert.Contains(t, out, "09:00:00")
	assert.Contains(t, out, "office (0.80)")
	assert.Contains(t, out, "Room changed: now in office")

	buf.Reset()
	printCycle(&buf, loop.CycleResult{Skipped: true, NextInterval: time.Minute})
	assert.True(t, strings.Contains(buf.String(), "no biometric sample"))
}

func TestBusLabel(t *testing.T) {
	assert.Equal(t, "log", busLabel(""))
	assert.Equal(t, "ws://hub:8080/bus", busLabel("ws://hub:8080/bus"))
}
