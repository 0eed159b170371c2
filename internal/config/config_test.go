package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLocation.Window, cfg.Location.Window)
	assert.Equal(t, 50, cfg.Planner.BaseEnergy)
	assert.Equal(t, 90, cfg.Planner.DecomposeThreshold)
	assert.Equal(t, 20*time.Second, cfg.Planner.DecomposeTimeout)
	assert.Equal(t, "22:00", cfg.Planner.DayEnd)
	assert.Equal(t, 10*time.Minute, cfg.Weather.CacheTTL)
	assert.Equal(t, DefaultSensing, cfg.Sensing)
	assert.True(t, cfg.Output.Color)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db_path: /tmp/hp.db
location:
  window: 7
sensing:
  frame_max_age: 30s
planner:
  base_energy: 60
  decompose_timeout: 5s
  day_end: "21:30"
  decomposition_provider: claude
weather:
  provider: openweathermap
  city: Portland
api_keys:
  claude: sk-test
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/hp.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.Location.Window)
	assert.Equal(t, 30*time.Second, cfg.Sensing.FrameMaxAge)
	assert.Equal(t, DefaultSensing.BiometricsMaxAge, cfg.Sensing.BiometricsMaxAge)
	assert.Equal(t, 60, cfg.Planner.BaseEnergy)
	assert.Equal(t, 5*time.Second, cfg.Planner.DecomposeTimeout)
	assert.Equal(t, "claude", cfg.Planner.DecompositionProvider)
	assert.Equal(t, "Portland", cfg.Weather.City)
	assert.Equal(t, "sk-test", cfg.APIKeys["claude"])

	h, m, err := cfg.Planner.DayEndClock()
	require.NoError(t, err)
	assert.Equal(t, 21, h)
	assert.Equal(t, 30, m)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.yaml")
	require.NoError(t, os.WriteFile(small, []byte("location:\n  window: 2\n"), 0o644))
	_, err := Load(small)
	assert.Error(t, err)

	badEnd := filepath.Join(dir, "end.yaml")
	require.NoError(t, os.WriteFile(badEnd, []byte("planner:\n  day_end: late\n"), 0o644))
	_, err = Load(badEnd)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x/y"), expandPath("~/x/y"))
	assert.Equal(t, "/abs", expandPath("/abs"))
}

func TestCredentials_APIKey(t *testing.T) {
	c := NewCredentials(map[string]string{"claude": "from-config"})
	c.getenv = func(key string) string {
		if key == "WEATHER_API_KEY" {
			return "from-env"
		}
		return ""
	}

	k, err := c.APIKey("claude")
	require.NoError(t, err)
	assert.Equal(t, "from-config", k)

	k, err = c.APIKey("weather")
	require.NoError(t, err)
	assert.Equal(t, "from-env", k)

	_, err = c.APIKey("gemini")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))
}
