package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentConfig_Defaults(t *testing.T) {
	cfg, err := LoadAgentConfig("")
	require.NoError(t, err)

	defaults := DefaultAgentAppConfig()
	assert.NotEmpty(t, cfg.Agent.ID)
	assert.Equal(t, defaults.Agent.Port, cfg.Agent.Port)
	assert.Equal(t, defaults.Dispatcher, cfg.Dispatcher)
	assert.Equal(t, defaults.Retry, cfg.Retry)
	assert.Equal(t, defaults.Probe, cfg.Probe)
	assert.Equal(t, defaults.Tracing, cfg.Tracing)
}

func TestLoadAgentConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
agent:
  port: 9100
  registry_path: /etc/agent/components.yaml
dispatcher:
  action_timeout: 2m
retry:
  max_attempts: 5
  base_delay: 250ms
  max_delay: 4s
probe:
  interval: 0s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.yaml"), []byte(content), 0o644))
	t.Setenv("RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("DISPATCHER_INSTALL_TIMEOUT", "45m")

	cfg, err := LoadAgentConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Agent.Port)
	assert.Equal(t, "/etc/agent/components.yaml", cfg.Agent.RegistryPath)
	assert.Equal(t, 2*time.Minute, cfg.Dispatcher.ActionTimeout)
	assert.Equal(t, 45*time.Minute, cfg.Dispatcher.InstallTimeout, "environment overrides defaults")
	assert.Equal(t, 7, cfg.Retry.MaxAttempts, "environment overrides file")
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Duration(0), cfg.Probe.Interval)
}

func TestLoadAgentConfig_Errors(t *testing.T) {
	t.Run("missing directory file is fine", func(t *testing.T) {
		_, err := LoadAgentConfig(t.TempDir())
		assert.NoError(t, err)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadAgentConfig(filepath.Join(t.TempDir(), "agent.yaml"))
		assert.Error(t, err)
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Setenv("RETRY_MAX_ATTEMPTS", "0")
		_, err := LoadAgentConfig("")
		assert.Error(t, err)
	})

	t.Run("unknown trace exporter", func(t *testing.T) {
		t.Setenv("TRACING_EXPORTER", "zipkin")
		_, err := LoadAgentConfig("")
		assert.Error(t, err)
	})

	t.Run("max delay below base delay", func(t *testing.T) {
		t.Setenv("RETRY_BASE_DELAY", "10s")
		t.Setenv("RETRY_MAX_DELAY", "1s")
		_, err := LoadAgentConfig("")
		assert.Error(t, err)
	})
}

func TestLoadCtlConfig(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("agentctl", pflag.ContinueOnError)
		flags.String("address", DefaultCtlConfig().Address, "")
		flags.Duration("timeout", DefaultCtlConfig().Timeout, "")
		return flags
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadCtlConfig(newFlags())
		require.NoError(t, err)
		assert.Equal(t, DefaultCtlConfig(), *cfg)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("AGENTCTL_ADDRESS", "node-7:8090")
		cfg, err := LoadCtlConfig(newFlags())
		require.NoError(t, err)
		assert.Equal(t, "node-7:8090", cfg.Address)
	})

	t.Run("flags win over environment", func(t *testing.T) {
		t.Setenv("AGENTCTL_ADDRESS", "node-7:8090")
		flags := newFlags()
		require.NoError(t, flags.Parse([]string{"--address", "node-9:8090", "--timeout", "30s"}))

		cfg, err := LoadCtlConfig(flags)
		require.NoError(t, err)
		assert.Equal(t, "node-9:8090", cfg.Address)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("invalid address", func(t *testing.T) {
		flags := newFlags()
		require.NoError(t, flags.Parse([]string{"--address", "no-port"}))
		_, err := LoadCtlConfig(flags)
		assert.Error(t, err)
	})
}
