package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
diagonals: false
customer_speed: 1.5
max_relocation_candidates: 4
spawn_every: 2.5
`))
	require.NoError(t, err)
	assert.False(t, cfg.Diagonals)
	assert.Equal(t, 1.5, cfg.CustomerSpeed)
	assert.Equal(t, 4, cfg.MaxRelocationCandidates)
	assert.Equal(t, 2.5, cfg.SpawnEvery)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().TickSeconds, cfg.TickSeconds)
	assert.Equal(t, DefaultConfig().MaxWait, cfg.MaxWait)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "tick_seconds: [", "config: unmarshal"},
		{"zero tick", "tick_seconds: 0", "tick_seconds must be positive"},
		{"negative speed", "employee_speed: -1", "agent speeds must be positive"},
		{"wait order", "ask_to_move_after: 5\nmax_wait: 2", "max_wait (2) must not be shorter"},
		{"negative candidates", "max_relocation_candidates: -3", "max_relocation_candidates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickSeconds = 0
	cfg.DoorOpenSpeed = 0
	cfg.ReportEvery = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_seconds")
	assert.Contains(t, err.Error(), "door_open_speed")
	assert.Contains(t, err.Error(), "report settings")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serve_seconds: 1\nverbose: true\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.ServeSeconds)
	assert.True(t, cfg.Verbose)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}
