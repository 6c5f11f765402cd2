package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/scriptflow/executor"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, executor.KindMock, cfg.Executor.Kind)
	assert.Equal(t, DriverMemory, cfg.Conversation.Driver)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
agent:
  max_iterations: 5
  exec_timeout: 10s
executor:
  kind: remote
  endpoint: http://sandbox.internal:8080
llm:
  model: gpt-4o
conversation:
  driver: redis
  redis:
    addr: localhost:6379
    ttl: 1h
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 10*time.Second, cfg.Agent.ExecTimeout)
	assert.Equal(t, executor.KindRemote, cfg.Executor.Kind)
	assert.Equal(t, "http://sandbox.internal:8080", cfg.Executor.Endpoint)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, DriverRedis, cfg.Conversation.Driver)
	assert.Equal(t, time.Hour, cfg.Conversation.Redis.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCRIPTFLOW_LLM_API_KEY", "sk-test")
	t.Setenv("SCRIPTFLOW_EXECUTOR_KIND", "local")
	t.Setenv("SCRIPTFLOW_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, executor.KindLocal, cfg.Executor.Kind)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := Default()
		cfg.Conversation.Driver = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown executor kind", func(t *testing.T) {
		cfg := Default()
		cfg.Executor.Kind = "docker"
		assert.Error(t, cfg.Validate())
	})

	t.Run("remote without endpoint", func(t *testing.T) {
		cfg := Default()
		cfg.Executor.Kind = executor.KindRemote
		assert.Error(t, cfg.Validate())
	})
}

func TestBuildLogger(t *testing.T) {
	logger, err := LogConfig{Level: "info", Format: "json"}.BuildLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LogConfig{Level: "verbose"}.BuildLogger()
	assert.Error(t, err)

	_, err = LogConfig{Level: "info", Format: "xml"}.BuildLogger()
	assert.Error(t, err)
}
