package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "database:\n  host: db.internal\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "grant-matcher", cfg.Service.Name)
	assert.Equal(t, defaultServicePort, cfg.Service.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "grants", cfg.Database.Database)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "mean", cfg.Matcher.ScorePolicy)
	assert.Equal(t, defaultTargetPerMinute, cfg.RateLimit.TargetPerMinute)
	assert.Equal(t, "grants:events", cfg.Redis.Stream)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "service:\n  port: 9000\ndatabase:\n  host: db.internal\n")

	t.Setenv("GRANT_MATCHER_PORT", "9100")
	t.Setenv("MATCHER_SCORE_POLICY", "gate")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, "gate", cfg.Matcher.ScorePolicy)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"port out of range", "service:\n  port: 99999\ndatabase:\n  host: db\n"},
		{"bad score policy", "database:\n  host: db\nmatcher:\n  score_policy: median\n"},
		{"redis enabled without addr", "database:\n  host: db\nredis:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
