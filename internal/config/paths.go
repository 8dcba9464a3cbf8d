package config

import (
	"os"
	"path/filepath"
)

// GetHome returns SESSIOND_HOME or ~/.sessiond default
func GetHome() string {
	home := os.Getenv("SESSIOND_HOME")
	if home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".sessiond"
		}
		return filepath.Join(homeDir, ".sessiond")
	}
	return ExpandPath(home)
}

// GetDBPath returns $SESSIOND_HOME/state.db
func GetDBPath() string {
	return filepath.Join(GetHome(), "state.db")
}

// GetSettingsPath returns $SESSIOND_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetHome(), "settings.json")
}

// GetYAMLSettingsPath returns $SESSIOND_HOME/settings.yaml
func GetYAMLSettingsPath() string {
	return filepath.Join(GetHome(), "settings.yaml")
}

// DefaultLogsRoot returns the directory Claude Code writes transcripts to
func DefaultLogsRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "projects")
	}
	return filepath.Join(homeDir, ".claude", "projects")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
