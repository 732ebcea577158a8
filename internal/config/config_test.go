package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "decider.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "thompson", cfg.Bandit.Policy)
	assert.InDelta(t, 0.1, cfg.Bandit.Epsilon, 0.001)
	assert.Equal(t, 3, cfg.Bandit.MinSamples)
	assert.InDelta(t, 1.96, cfg.Bandit.WilsonZ, 0.001)
	assert.InDelta(t, 0.5, cfg.Reward.FollowerWeight, 0.001)
	assert.InDelta(t, 0.25, cfg.Reward.EngagementWeight, 0.001)
	assert.InDelta(t, 0.15, cfg.Reward.ReachWeight, 0.001)
	assert.InDelta(t, 0.10, cfg.Reward.ConversionWeight, 0.001)
	assert.InDelta(t, 0.5, cfg.Attribution.LowConfidenceWeight, 0.001)
	assert.InDelta(t, 50, cfg.Attribution.SuccessThreshold, 0.001)
	assert.InDelta(t, 10, cfg.Timing.SuccessThreshold, 0.001)
	assert.Equal(t, 3, cfg.Timing.MinSamples)
	assert.InDelta(t, 0.9, cfg.Budget.Ceiling, 0.001)
	assert.Equal(t, 500, cfg.Learn.BatchLimit)
	assert.Equal(t, 4, cfg.Learn.ApplyConcurrency)
	assert.Equal(t, time.Hour, cfg.Learn.Every)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// Tiers default cheapest-first.
	require.Len(t, cfg.Budget.Tiers, 3)
	assert.Equal(t, "haiku", cfg.Budget.Tiers[0].Name)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/decider
bandit:
  policy: ucb
  epsilon: 0.05
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "ucb", cfg.Bandit.Policy)
	assert.InDelta(t, 0.05, cfg.Bandit.Epsilon, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Bandit.MinSamples)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DECIDER_STORE_DRIVER", "postgres")
	t.Setenv("DECIDER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Bandit: BanditConfig{Policy: "thompson", Epsilon: 0.1, MinSamples: 3},
			Reward: RewardConfig{FollowerWeight: 0.5, EngagementWeight: 0.25, ReachWeight: 0.15, ConversionWeight: 0.10},
			Budget: BudgetConfig{Ceiling: 0.9},
			Learn:  LearnConfig{BatchLimit: 500, ApplyConcurrency: 4},
			Server: ServerConfig{Port: 8080},
		}
	}

	assert.NoError(t, base().Validate("cli"))
	assert.NoError(t, base().Validate("serve"))
	assert.NoError(t, base().Validate("learn"))

	cfg := base()
	cfg.Bandit.Policy = "random"
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bandit.policy")

	cfg = base()
	cfg.Bandit.Epsilon = 1.5
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bandit.epsilon")

	cfg = base()
	cfg.Budget.Ceiling = 0
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "budget.ceiling")

	cfg = base()
	cfg.Server.Port = 0
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg = base()
	cfg.Learn.BatchLimit = 0
	err = cfg.Validate("learn")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "learn.batch_limit")

	err = base().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
