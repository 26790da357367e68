package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subcrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Optimizer, cfg.Optimizer)
	assert.Equal(t, "subcrack.db", cfg.Database)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2, cfg.Restarts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/crack.db
default_language: french
languages:
  english: corpora/moby.txt
  french: corpora/miserables.txt
optimizer:
  mode: fixed
  iterations: 500
  initial_temperature: 1.5
  start: identity
seed: 17
log:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/crack.db", cfg.Database)
	assert.Equal(t, []string{"english", "french"}, cfg.LanguageNames())
	assert.Equal(t, anneal.ModeFixed, cfg.Optimizer.Mode)
	assert.Equal(t, 500, cfg.Optimizer.Iterations)
	assert.Equal(t, 1.5, cfg.Optimizer.InitialTemperature)
	assert.Equal(t, anneal.StartIdentity, cfg.Optimizer.Start)
	assert.Equal(t, uint64(17), cfg.Seed)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "debug", cfg.Log.Logging().Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost:50061", cfg.GRPCAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDB, "env.db")
	t.Setenv(EnvGRPCAddr, "0.0.0.0:6000")
	t.Setenv(EnvMetricsAddr, ":9999")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "database: file.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, "0.0.0.0:6000", cfg.GRPCAddr)
	assert.Equal(t, ":9999", cfg.MetricsAddr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidOptimizer(t *testing.T) {
	_, err := Load(writeConfig(t, `
optimizer:
  mode: annealing
  iterations: 100
  initial_temperature: 1
  floor_temperature: 5
  cooling_interval: 10
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, anneal.ErrInvalidConfig)
}

func TestLoad_UnknownDefaultLanguage(t *testing.T) {
	_, err := Load(writeConfig(t, `
default_language: klingon
languages:
  english: moby.txt
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "klingon")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "optimizer: [unclosed"))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 0
	cfg.Restarts = -1
	cfg.Log.Level = "shout"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "restarts")
	assert.Contains(t, err.Error(), "shout")
}
