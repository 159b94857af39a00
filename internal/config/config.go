// Package config handles experiment configuration loading.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nugget/contreact/internal/llm"
)

// Config holds everything needed to execute one experimental run. It is
// loaded once, validated before the first cycle, and treated as immutable
// for the lifetime of the run.
type Config struct {
	// RunID identifies the run and scopes memory, checkpoints, and the
	// event log. Generated (UUIDv7) when omitted.
	RunID string `yaml:"run_id"`

	// Model is the model tag as known to the Ollama server.
	Model string `yaml:"model"`

	// CycleCount is the total number of operational cycles to execute.
	CycleCount int `yaml:"cycle_count"`

	Ollama     OllamaConfig     `yaml:"ollama"`
	Options    llm.Options      `yaml:"options"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Operator   OperatorConfig   `yaml:"operator"`

	// MaxToolIterations caps the tool-use sub-loop within one cycle. When
	// the cap is reached the cycle is finalized with the last assistant
	// text rather than aborting the run. Default 32.
	MaxToolIterations int `yaml:"max_tool_iterations"`

	DataDir  string `yaml:"data_dir"`  // memory + checkpoint databases
	LogDir   string `yaml:"log_dir"`   // per-run JSONL event logs
	LogLevel string `yaml:"log_level"` // trace, debug, info, warn, error
}

// OllamaConfig defines the LLM backend connection.
type OllamaConfig struct {
	URL string `yaml:"url"`
}

// EmbeddingsConfig defines embedding generation settings for the
// similarity monitor.
type EmbeddingsConfig struct {
	Model string `yaml:"model"` // e.g. nomic-embed-text
	URL   string `yaml:"url"`   // defaults to ollama.url
}

// OperatorConfig selects and tunes the operator communication channel.
type OperatorConfig struct {
	// Channel is "terminal" (default) or "mqtt".
	Channel string `yaml:"channel"`

	// TimeoutSec bounds each send-and-wait. 0 means the 5-minute default,
	// -1 means wait forever.
	TimeoutSec int `yaml:"timeout_sec"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig defines the remote operator channel's broker connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. mqtt://broker:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // default "contreact"
}

// Load reads configuration from a YAML file, expands environment
// variables, and fills defaults. Call Validate before using the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RunID == "" {
		if id, err := uuid.NewV7(); err == nil {
			c.RunID = id.String()
		}
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = "http://localhost:11434"
	}
	if c.Embeddings.URL == "" {
		c.Embeddings.URL = c.Ollama.URL
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text"
	}
	if c.Operator.Channel == "" {
		c.Operator.Channel = "terminal"
	}
	if c.Operator.TimeoutSec == 0 {
		c.Operator.TimeoutSec = 300
	}
	if c.Operator.MQTT.TopicPrefix == "" {
		c.Operator.MQTT.TopicPrefix = "contreact"
	}
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = 32
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}

// Validate checks the configuration for problems that must stop the run
// before the first cycle. Messages are written for the operator, naming
// the field and the fix.
func (c *Config) Validate() error {
	if c.RunID == "" {
		return fmt.Errorf("run_id is required (or leave it unset to have one generated)")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required (e.g. model: llama3:latest)")
	}
	if c.CycleCount <= 0 {
		return fmt.Errorf("cycle_count must be greater than 0, got %d", c.CycleCount)
	}
	switch c.Operator.Channel {
	case "terminal", "mqtt":
	default:
		return fmt.Errorf("operator.channel must be \"terminal\" or \"mqtt\", got %q", c.Operator.Channel)
	}
	if c.Operator.Channel == "mqtt" && c.Operator.MQTT.Broker == "" {
		return fmt.Errorf("operator.mqtt.broker is required when operator.channel is \"mqtt\"")
	}
	return nil
}

// OperatorTimeout converts the configured timeout to a duration. A
// negative configuration value disables the timeout entirely.
func (c *Config) OperatorTimeout() time.Duration {
	if c.Operator.TimeoutSec < 0 {
		return -1
	}
	return time.Duration(c.Operator.TimeoutSec) * time.Second
}
