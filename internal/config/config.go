// Package config loads and persists the daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vrdesk/ovrly/internal/logger"
)

// Config represents the daemon configuration.
type Config struct {
	// SharedRegion is the name of the shared overlay state region.
	SharedRegion string `json:"shared_region" yaml:"shared_region"`

	ServerPort     int    `json:"server_port" yaml:"server_port"`
	PreviewEnabled bool   `json:"preview_enabled" yaml:"preview_enabled"`
	LogLevel       string `json:"log_level" yaml:"log_level"`

	Interaction InteractionConfig `json:"interaction" yaml:"interaction"`
}

// InteractionConfig holds the gesture tunables.
type InteractionConfig struct {
	GripThreshold     float32 `json:"grip_threshold" yaml:"grip_threshold"`
	HitMarginPx       int     `json:"hit_margin_px" yaml:"hit_margin_px"`
	DragSensitivity   float32 `json:"drag_sensitivity" yaml:"drag_sensitivity"`
	MaxHeadDistance   float32 `json:"max_head_distance" yaml:"max_head_distance"`
	MinimizedIconSize float32 `json:"minimized_icon_size" yaml:"minimized_icon_size"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. An empty configFile uses
// ~/.config/ovrly/config.yaml.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "ovrly")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = m.getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// getDefaults returns default configuration
func (m *Manager) getDefaults() *Config {
	return &Config{
		SharedRegion:   "ovrly.OverlayState",
		ServerPort:     8080,
		PreviewEnabled: true,
		LogLevel:       "info",
		Interaction: InteractionConfig{
			GripThreshold:     0.75,
			HitMarginPx:       50,
			DragSensitivity:   0.25,
			MaxHeadDistance:   10,
			MinimizedIconSize: 0.1,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := m.getDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return m.getDefaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()
	if cfg == nil {
		cfg = m.getDefaults()
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort gets the server port
func (m *Manager) GetPort() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ServerPort
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetLogLevel gets the log level
func (m *Manager) GetLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.LogLevel
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
