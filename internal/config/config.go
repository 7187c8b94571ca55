package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 8744
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
	DefaultHistoryWindow  = 3
	DefaultMaxConcurrent  = 4
	DefaultCopilotAPIBase = "https://api.githubcopilot.com"

	// The bridge only ever binds loopback.
	LoopbackHost = "127.0.0.1"
)

// Copilot configures the backing model endpoint.
type Copilot struct {
	APIBase      string `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty"`
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	DefaultModel string `json:"default_model,omitempty" yaml:"default_model,omitempty"`
}

// Config is the bridge configuration. Host is not configurable; it is
// always the loopback address.
type Config struct {
	Host          string  `json:"host,omitempty" yaml:"host,omitempty"`
	Port          int     `json:"port,omitempty" yaml:"port,omitempty"`
	Token         string  `json:"token,omitempty" yaml:"token,omitempty"`
	HistoryWindow int     `json:"history_window,omitempty" yaml:"history_window,omitempty"`
	Verbose       bool    `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	MaxConcurrent int     `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	Copilot       Copilot `json:"copilot,omitempty" yaml:"copilot,omitempty"`
}

func (c *Config) applyDefaults() {
	c.Host = LoopbackHost

	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.HistoryWindow < 1 {
		c.HistoryWindow = DefaultHistoryWindow
	}

	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}

	if c.Copilot.APIBase == "" {
		c.Copilot.APIBase = DefaultCopilotAPIBase
	}
}

// Manager loads and holds the configuration. The current snapshot is kept
// in an atomic.Value so handlers can read it without locking.
type Manager struct {
	baseDir     string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// Load reads config.json or config.yaml from the base directory, applies
// defaults and stores the result as the current snapshot.
func (m *Manager) Load() (*Config, error) {
	path, yamlFormat := m.findConfigFile()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config

	if yamlFormat {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	m.configValue.Store(&cfg)

	return &cfg, nil
}

// Get returns the current snapshot, loading it on first use. A missing or
// broken file yields a default config with an empty token, which keeps all
// protected routes failing closed.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		fallback := &Config{}
		fallback.applyDefaults()

		return fallback
	}

	return cfg
}

// Save writes the config as JSON and makes it the current snapshot.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	cfg.applyDefaults()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.jsonPath(), data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)

	return nil
}

// GetPath returns the path of the config file that would be loaded.
func (m *Manager) GetPath() string {
	path, _ := m.findConfigFile()
	return path
}

// Exists reports whether a config file is present in either format.
func (m *Manager) Exists() bool {
	if _, err := os.Stat(m.jsonPath()); err == nil {
		return true
	}

	_, err := os.Stat(m.yamlPath())

	return err == nil
}

func (m *Manager) jsonPath() string {
	return filepath.Join(m.baseDir, DefaultConfigFilename)
}

func (m *Manager) yamlPath() string {
	return filepath.Join(m.baseDir, DefaultYAMLFilename)
}

func (m *Manager) findConfigFile() (path string, yamlFormat bool) {
	if _, err := os.Stat(m.jsonPath()); err == nil {
		return m.jsonPath(), false
	}

	if _, err := os.Stat(m.yamlPath()); err == nil {
		return m.yamlPath(), true
	}

	return m.jsonPath(), false
}
