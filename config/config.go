// Package config loads the application configuration: defaults first,
// then an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/scriptflow/agent"
	"github.com/BaSui01/scriptflow/conversation"
	"github.com/BaSui01/scriptflow/executor"
	"github.com/BaSui01/scriptflow/llm"
)

// Conversation drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// ConversationConfig selects and configures the history store.
type ConversationConfig struct {
	// Driver is one of memory, redis, sqlite.
	Driver string                   `yaml:"driver"`
	Redis  conversation.RedisConfig `yaml:"redis"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// Config is the full application configuration.
type Config struct {
	Agent        agent.Config       `yaml:"agent"`
	Executor     executor.Config    `yaml:"executor"`
	LLM          llm.Config         `yaml:"llm"`
	Conversation ConversationConfig `yaml:"conversation"`
	Log          LogConfig          `yaml:"log"`
}

// Default returns the configuration used when no file and no environment
// overrides are present: mock backend, in-memory history.
func Default() Config {
	return Config{
		Agent:    agent.DefaultConfig(),
		Executor: executor.DefaultConfig(),
		LLM:      llm.DefaultConfig(),
		Conversation: ConversationConfig{
			Driver:     DriverMemory,
			SQLitePath: "scriptflow.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), and SCRIPTFLOW_* environment variables,
// in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides selected fields from the environment. Secrets and
// deployment-specific endpoints are the intended use.
func applyEnv(cfg *Config) {
	set := func(target *string, key string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	set(&cfg.LLM.APIKey, "SCRIPTFLOW_LLM_API_KEY")
	set(&cfg.LLM.BaseURL, "SCRIPTFLOW_LLM_BASE_URL")
	set(&cfg.LLM.Model, "SCRIPTFLOW_LLM_MODEL")
	set(&cfg.Executor.Endpoint, "SCRIPTFLOW_EXECUTOR_ENDPOINT")
	set(&cfg.Conversation.Redis.Addr, "SCRIPTFLOW_REDIS_ADDR")
	set(&cfg.Log.Level, "SCRIPTFLOW_LOG_LEVEL")

	if v := os.Getenv("SCRIPTFLOW_EXECUTOR_KIND"); v != "" {
		cfg.Executor.Kind = executor.Kind(v)
	}
	if v := os.Getenv("SCRIPTFLOW_CONVERSATION_DRIVER"); v != "" {
		cfg.Conversation.Driver = v
	}
}

// Validate rejects configurations the constructors downstream would also
// reject, so failures surface before any collaborator is built.
func (c Config) Validate() error {
	switch c.Conversation.Driver {
	case DriverMemory, DriverRedis, DriverSQLite:
	default:
		return fmt.Errorf("unknown conversation driver %q", c.Conversation.Driver)
	}
	switch c.Executor.Kind {
	case executor.KindMock, executor.KindLocal, executor.KindRemote:
	default:
		return fmt.Errorf("unknown executor kind %q", c.Executor.Kind)
	}
	if c.Executor.Kind == executor.KindRemote && c.Executor.Endpoint == "" {
		return fmt.Errorf("remote executor requires an endpoint")
	}
	return nil
}
