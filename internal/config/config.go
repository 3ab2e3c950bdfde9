// Package config loads the CLI configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the mqttc CLI.
// All configuration is loaded from YAML and can be overridden by environment
// variables and command-line flags.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Auth    AuthConfig    `yaml:"auth"`
	Session SessionConfig `yaml:"session"`
	Topic   string        `yaml:"topic"`
	QoS     int           `yaml:"qos"`
	Retain  bool          `yaml:"retain"`

	// Provided records which settings were explicitly given by the file or
	// the environment (flags mark them too), so the CLI knows what it still
	// has to prompt for instead of silently using a default.
	Provided Provenance `yaml:"-"`
}

// Provenance tracks explicitly supplied settings.
type Provenance struct {
	Host bool
	QoS  bool
}

// BrokerConfig contains broker connection details.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Insecure bool   `yaml:"insecure"` // Skip certificate verification
	ClientID string `yaml:"client_id"`
}

// AuthConfig contains authentication credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SessionConfig contains MQTT session settings.
type SessionConfig struct {
	KeepAlive    time.Duration `yaml:"keep_alive"`
	CleanSession bool          `yaml:"clean_session"`
}

// Default returns a Config with sensible defaults: the public HiveMQ broker
// on the plain MQTT port, QoS 0, 60s keepalive, clean session.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host: "broker.hivemq.com",
			Port: 1883,
		},
		Session: SessionConfig{
			KeepAlive:    60 * time.Second,
			CleanSession: true,
		},
		QoS: 0,
	}
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables: MQTTC_HOST, MQTTC_PORT, MQTTC_USERNAME,
// MQTTC_PASSWORD.
//
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		// Re-parse with pointer fields to learn which settings the file
		// actually set, as opposed to inheriting a default.
		var probe struct {
			Broker struct {
				Host *string `yaml:"host"`
			} `yaml:"broker"`
			QoS *int `yaml:"qos"`
		}
		if err := yaml.Unmarshal(data, &probe); err == nil {
			cfg.Provided.Host = probe.Broker.Host != nil
			cfg.Provided.QoS = probe.QoS != nil
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTTC_HOST"); v != "" {
		cfg.Broker.Host = v
		cfg.Provided.Host = true
	}
	if v := os.Getenv("MQTTC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = port
		}
	}
	if v := os.Getenv("MQTTC_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("MQTTC_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.QoS < 0 || c.QoS > 2 {
		errs = append(errs, "qos must be 0, 1, or 2")
	}
	if c.Session.KeepAlive < 0 {
		errs = append(errs, "session.keep_alive must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ServerURL returns the broker address in the tcp:// or tls:// form the
// client dialer expects.
func (c *Config) ServerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker.Host, c.Broker.Port)
}
