package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/renato0307/sessiond/internal/config"
	"github.com/renato0307/sessiond/internal/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`
	UserID      string           `help:"Owner recorded on imported sessions" env:"SESSIOND_USER"`

	Projects ProjectsCmd `cmd:"projects" help:"Manage registered projects (add, list)"`
	Serve    ServeCmd    `cmd:"serve" help:"Serve the session channel and keep transcripts in sync"`
	Sessions SessionsCmd `cmd:"sessions" help:"Inspect sessions (list, view, archive)"`
	Stats    StatsCmd    `cmd:"stats" help:"Show session and token statistics per project"`
	Sync     SyncCmd     `cmd:"sync" help:"Reconcile transcripts into the store once"`
	Watch    WatchCmd    `cmd:"watch" help:"Follow a live session from a running server"`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// Settings returns the loaded settings, never nil
func (c *CLI) Settings() *config.Settings {
	if c.settings == nil {
		return &config.Settings{}
	}
	return c.settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings file > defaults.
	// Settings only apply while the flag is at its default and no env var is set.
	if c.settings != nil {
		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("SESSIOND_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}

		if !c.Debug {
			if _, hasEnv := os.LookupEnv("SESSIOND_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}

		if c.UserID == "" {
			c.UserID = c.settings.UserID
		}
	}
	if c.UserID == "" {
		c.UserID = config.DefaultUserID
	}

	if _, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles); err != nil {
		return err
	}

	// Create container AFTER logging is initialized so GORM's logger has a target
	container, err := NewContainer(c.Settings())
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}
