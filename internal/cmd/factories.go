package cmd

import (
	"fmt"

	adapteragent "github.com/renato0307/sessiond/internal/adapters/agent"
	adapterchannel "github.com/renato0307/sessiond/internal/adapters/channel"
	adapterclaude "github.com/renato0307/sessiond/internal/adapters/claude"
	adapterstorage "github.com/renato0307/sessiond/internal/adapters/storage"
	"github.com/renato0307/sessiond/internal/config"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
	"github.com/renato0307/sessiond/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	// Services
	ChannelService *services.ChannelService
	ProjectService *services.ProjectService
	SearchService  *services.SearchService
	StatsService   *services.StatsService
	SyncService    *services.SyncService

	// Adapters
	Hub               *adapterchannel.Hub
	SessionRepository ports.SessionRepository
	Source            *adapterclaude.Source

	// Internal
	agent string
	repo  *adapterstorage.SQLiteRepository
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	repo, err := adapterstorage.NewSQLiteRepository(config.GetDBPath())
	if err != nil {
		return nil, err
	}

	source := adapterclaude.NewSource()
	if settings.LogsRoot != "" {
		source = adapterclaude.NewSourceWithDir(settings.LogsRoot)
	}
	hub := adapterchannel.NewHub()

	logging.Logger.Debug("Container wired",
		"db_path", config.GetDBPath(),
		"logs_root", source.Root(),
		"orphan_grace", settings.OrphanGrace().String())

	return &Container{
		ProjectService:    services.NewProjectService(repo),
		SearchService:     services.NewSearchService(repo, source, source),
		StatsService:      services.NewStatsService(repo),
		SyncService:       services.NewSyncService(repo, repo, source, settings.OrphanGrace()),
		Hub:               hub,
		SessionRepository: repo,
		Source:            source,
		agent:             settings.Agent,
		repo:              repo,
	}, nil
}

// StartChannel creates the channel service for the named agent runner.
// An empty name uses the configured agent.
func (c *Container) StartChannel(agent string) (*services.ChannelService, error) {
	if agent == "" {
		agent = c.agent
	}
	runner, err := newAgentRunner(agent)
	if err != nil {
		return nil, err
	}
	c.ChannelService = services.NewChannelService(c.repo, c.Hub, runner)
	return c.ChannelService, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.ChannelService != nil {
		c.ChannelService.Close()
	}
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.repo != nil {
		return c.repo.Close()
	}
	return nil
}

// newAgentRunner resolves the configured agent runner by name
func newAgentRunner(name string) (ports.AgentRunner, error) {
	switch name {
	case "", config.DefaultAgent:
		return adapteragent.NewEchoRunner(adapteragent.DefaultEchoDelay), nil
	}
	return nil, fmt.Errorf("unknown agent runner %q", name)
}
