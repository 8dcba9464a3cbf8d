package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

const (
	// statsCacheTTL is the duration to cache session stats before refreshing
	statsCacheTTL = 60 * time.Second
)

// ProjectStats aggregates the session metadata of one project
type ProjectStats struct {
	Archived      int
	LastMessageAt *time.Time
	Messages      int
	ProjectID     string
	Sessions      int
	States        map[domain.SessionState]int
	Tokens        int
}

// StatsTotals sums ProjectStats over every project
type StatsTotals struct {
	Messages int
	Sessions int
	Tokens   int
}

// StatsService provides session statistics with caching
type StatsService struct {
	cache       *statsCache
	cacheMu     sync.RWMutex
	lastRefresh time.Time
	now         func() time.Time
	reader      ports.SessionReader
}

// statsCache holds cached statistics
type statsCache struct {
	projects []ProjectStats
	totals   StatsTotals
}

// NewStatsService creates a new StatsService
func NewStatsService(reader ports.SessionReader) *StatsService {
	return &StatsService{
		now:    time.Now,
		reader: reader,
	}
}

// ByProject returns per-project stats ordered by project id (cached)
func (s *StatsService) ByProject(ctx context.Context) ([]ProjectStats, error) {
	if err := s.ensureCacheFresh(ctx); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.projects, nil
}

// Totals returns stats summed over every project (cached)
func (s *StatsService) Totals(ctx context.Context) (StatsTotals, error) {
	if err := s.ensureCacheFresh(ctx); err != nil {
		return StatsTotals{}, err
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.totals, nil
}

// ensureCacheFresh refreshes the cache if it's stale or empty
func (s *StatsService) ensureCacheFresh(ctx context.Context) error {
	s.cacheMu.RLock()
	cacheValid := s.cache != nil && s.now().Sub(s.lastRefresh) < statsCacheTTL
	s.cacheMu.RUnlock()

	if cacheValid {
		return nil
	}

	return s.refreshCache(ctx)
}

// refreshCache fetches fresh data and updates the cache
func (s *StatsService) refreshCache(ctx context.Context) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	// Double-check after acquiring write lock
	if s.cache != nil && s.now().Sub(s.lastRefresh) < statsCacheTTL {
		return nil
	}

	logging.Logger.Debug("Refreshing session stats cache")

	sessions, err := s.reader.FindMany(ctx, ports.SessionFilter{IncludeArchived: true})
	if err != nil {
		logging.Logger.Warn("Failed to list sessions for stats", "error", err)
		return err
	}

	byProject := make(map[string]*ProjectStats)
	var totals StatsTotals

	for _, session := range sessions {
		ps, ok := byProject[session.ProjectID]
		if !ok {
			ps = &ProjectStats{ProjectID: session.ProjectID, States: make(map[domain.SessionState]int)}
			byProject[session.ProjectID] = ps
		}

		m := session.Metadata
		ps.Sessions++
		ps.Messages += m.MessageCount
		ps.Tokens += m.TotalTokens
		if session.IsArchived {
			ps.Archived++
		}
		ps.States[session.State]++
		if m.LastMessageAt != nil && (ps.LastMessageAt == nil || m.LastMessageAt.After(*ps.LastMessageAt)) {
			t := *m.LastMessageAt
			ps.LastMessageAt = &t
		}

		totals.Sessions++
		totals.Messages += m.MessageCount
		totals.Tokens += m.TotalTokens
	}

	projects := make([]ProjectStats, 0, len(byProject))
	for _, ps := range byProject {
		projects = append(projects, *ps)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ProjectID < projects[j].ProjectID })

	s.cache = &statsCache{
		projects: projects,
		totals:   totals,
	}
	s.lastRefresh = s.now()

	logging.Logger.Debug("Session stats cache refreshed",
		"projects", len(projects),
		"sessions", totals.Sessions,
		"tokens", totals.Tokens)

	return nil
}
