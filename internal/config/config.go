package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the Tuya OpenAPI region endpoint used when none is configured
const DefaultEndpoint = "https://openapi.tuyaeu.com"

// Config holds the application configuration
type Config struct {
	Tuya          TuyaConfig `yaml:"tuya"`
	DataDir       string     `yaml:"data_dir,omitempty"` // Output directory (fallback: ./data)
	HomeAssistant HAConfig   `yaml:"home_assistant,omitempty"`
	MQTT          MQTTConfig `yaml:"mqtt,omitempty"`
}

// TuyaConfig holds Tuya OpenAPI credentials
type TuyaConfig struct {
	AccessID  string `yaml:"access_id"`
	AccessKey string `yaml:"access_key"`
	DeviceID  string `yaml:"device_id"`
	Endpoint  string `yaml:"endpoint,omitempty"` // e.g., "https://openapi.tuyaeu.com"
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:8123"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.smart_meter_energy_total"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: "smart_meter"
}

// Load reads the config file and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing file is fine, credentials may come from the environment
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv overrides file values with TUYA_* environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("TUYA_ACCESS_ID"); v != "" {
		c.Tuya.AccessID = v
	}
	if v := os.Getenv("TUYA_ACCESS_KEY"); v != "" {
		c.Tuya.AccessKey = v
	}
	if v := os.Getenv("TUYA_DEVICE_ID"); v != "" {
		c.Tuya.DeviceID = v
	}
	if v := os.Getenv("TUYA_API_ENDPOINT"); v != "" {
		c.Tuya.Endpoint = v
	}
}

// Validate checks that all required Tuya credentials are present
func (c *Config) Validate() error {
	var missing []string
	if c.Tuya.AccessID == "" {
		missing = append(missing, "access_id (TUYA_ACCESS_ID)")
	}
	if c.Tuya.AccessKey == "" {
		missing = append(missing, "access_key (TUYA_ACCESS_KEY)")
	}
	if c.Tuya.DeviceID == "" {
		missing = append(missing, "device_id (TUYA_DEVICE_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required Tuya credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetEndpoint returns the Tuya API endpoint with the EU region as default
func (c *Config) GetEndpoint() string {
	if c.Tuya.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Tuya.Endpoint
}

// GetDataDir returns the output directory with a default of ./data
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return "data"
	}
	return c.DataDir
}

// GetTopicPrefix returns the MQTT topic prefix with a default of "smart_meter"
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "smart_meter"
	}
	return c.MQTT.TopicPrefix
}
