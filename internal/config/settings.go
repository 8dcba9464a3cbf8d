package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither flags, env vars nor settings provide a value
const (
	DefaultAgent              = "echo"
	DefaultListenAddr         = "127.0.0.1:7777"
	DefaultOrphanGraceSeconds = 5
	DefaultUserID             = "local"
)

// Settings represents the structure of ~/.sessiond/settings.json (or settings.yaml)
type Settings struct {
	Agent               string `json:"agent,omitempty" yaml:"agent,omitempty"`
	Debug               *bool  `json:"debug,omitempty" yaml:"debug,omitempty"`
	ListenAddr          string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	LogsRoot            string `json:"logs_root,omitempty" yaml:"logs_root,omitempty"`
	MaxLogFiles         *int   `json:"max_log_files,omitempty" yaml:"max_log_files,omitempty"`
	OrphanGraceSeconds  *int   `json:"orphan_grace_seconds,omitempty" yaml:"orphan_grace_seconds,omitempty"`
	SyncIntervalSeconds *int   `json:"sync_interval_seconds,omitempty" yaml:"sync_interval_seconds,omitempty"`
	UserID              string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// LoadSettings loads settings from $SESSIOND_HOME. settings.yaml takes
// precedence over settings.json when both exist.
// Returns empty Settings if no file exists (not an error)
func LoadSettings() (*Settings, error) {
	return loadSettingsFrom(GetYAMLSettingsPath(), GetSettingsPath())
}

func loadSettingsFrom(yamlPath, jsonPath string) (*Settings, error) {
	var settings Settings

	data, err := os.ReadFile(yamlPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("invalid settings.yaml: %w", err)
		}
		return settings.expanded(), nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	data, err = os.ReadFile(jsonPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil // Not an error, use defaults
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}
	return settings.expanded(), nil
}

func (s Settings) expanded() *Settings {
	if s.LogsRoot != "" {
		s.LogsRoot = ExpandPath(s.LogsRoot)
	}
	return &s
}

// SaveSettings saves settings to $SESSIOND_HOME/settings.json
func SaveSettings(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(GetHome(), 0755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	if err := os.WriteFile(GetSettingsPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// OrphanGrace returns the orphan deletion grace window
func (s *Settings) OrphanGrace() time.Duration {
	if s != nil && s.OrphanGraceSeconds != nil && *s.OrphanGraceSeconds >= 0 {
		return time.Duration(*s.OrphanGraceSeconds) * time.Second
	}
	return DefaultOrphanGraceSeconds * time.Second
}

// SyncInterval returns the periodic sync interval; zero disables it
func (s *Settings) SyncInterval() time.Duration {
	if s != nil && s.SyncIntervalSeconds != nil && *s.SyncIntervalSeconds > 0 {
		return time.Duration(*s.SyncIntervalSeconds) * time.Second
	}
	return 0
}
