package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTrials      = 100
	defaultFrameBudget = 16 * time.Millisecond
	defaultLogLevel    = "info"
	defaultMQTTTopic   = "progsim/report"
	defaultMQTTClient  = "progsim"
)

// SimConfig is the run configuration read from progsim.yaml. Command line
// flags override any value set here.
type SimConfig struct {
	Version int    `yaml:"version"`
	Graph   string `yaml:"graph"`

	Simulation struct {
		Trials      *int          `yaml:"trials"`
		Seed        *uint64       `yaml:"seed"`
		FrameBudget time.Duration `yaml:"frame_budget"`
		LogLevel    string        `yaml:"log_level"`
		Extended    bool          `yaml:"extended"`
	} `yaml:"simulation"`

	Modifiers struct {
		Add     map[string]float64 `yaml:"add"`
		Consume map[string]float64 `yaml:"consume"`
	} `yaml:"modifiers"`

	Report struct {
		JSON bool       `yaml:"json"`
		MQTT MQTTConfig `yaml:"mqtt"`
	} `yaml:"report"`
}

// MQTTConfig configures publishing report lines to a broker.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// Default returns a version 1 config with every section empty.
func Default() *SimConfig {
	return &SimConfig{Version: 1}
}

// Trials returns the configured trial count, defaulting to 100 if not set.
func (c *SimConfig) Trials() int {
	if c.Simulation.Trials == nil {
		return defaultTrials
	}
	return *c.Simulation.Trials
}

// Seed returns the configured seed and whether one was set.
func (c *SimConfig) Seed() (uint64, bool) {
	if c.Simulation.Seed == nil {
		return 0, false
	}
	return *c.Simulation.Seed, true
}

// FrameBudget returns the per-tick time budget, defaulting to 16ms.
func (c *SimConfig) FrameBudget() time.Duration {
	if c.Simulation.FrameBudget == 0 {
		return defaultFrameBudget
	}
	return c.Simulation.FrameBudget
}

// LogLevel returns the configured log level, defaulting to info.
func (c *SimConfig) LogLevel() string {
	if c.Simulation.LogLevel == "" {
		return defaultLogLevel
	}
	return c.Simulation.LogLevel
}

// TopicOrDefault returns the MQTT report topic, defaulting to progsim/report.
func (m MQTTConfig) TopicOrDefault() string {
	if m.Topic == "" {
		return defaultMQTTTopic
	}
	return m.Topic
}

// ClientIDOrDefault returns the MQTT client id, defaulting to progsim.
func (m MQTTConfig) ClientIDOrDefault() string {
	if m.ClientID == "" {
		return defaultMQTTClient
	}
	return m.ClientID
}

// Validate rejects values no run can use.
func (c *SimConfig) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported progsim.yaml version: %d", c.Version)
	}
	if c.Simulation.Trials != nil && *c.Simulation.Trials < 0 {
		return fmt.Errorf("simulation.trials must not be negative: %d", *c.Simulation.Trials)
	}
	if c.Simulation.FrameBudget < 0 {
		return fmt.Errorf("simulation.frame_budget must not be negative: %s", c.Simulation.FrameBudget)
	}
	for id, v := range c.Modifiers.Add {
		if v < 0 {
			return fmt.Errorf("modifiers.add.%s must not be negative: %v", id, v)
		}
	}
	for id, v := range c.Modifiers.Consume {
		if v < 0 {
			return fmt.Errorf("modifiers.consume.%s must not be negative: %v", id, v)
		}
	}
	if c.Report.MQTT.Enabled && c.Report.MQTT.Broker == "" {
		return fmt.Errorf("report.mqtt.broker is required when mqtt is enabled")
	}
	if c.Report.MQTT.QoS > 2 {
		return fmt.Errorf("report.mqtt.qos must be 0, 1 or 2: %d", c.Report.MQTT.QoS)
	}
	return nil
}

// LoadSimConfig reads and validates a run configuration. A nil config is
// returned with the error for unreadable or malformed files.
func LoadSimConfig(path string) (*SimConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SimConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
