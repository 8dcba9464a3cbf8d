package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

const (
	// DefaultOrphanGrace is how long a row without a backing file must sit idle before deletion
	DefaultOrphanGrace = 5 * time.Second

	nameMaxRunes   = 60
	syncAllWorkers = 4
)

// SyncStats reports the outcome of one reconciliation pass.
// Synced counts files the parser accepted.
type SyncStats struct {
	Created int
	Deleted int
	Skipped int
	Synced  int
	Updated int
}

// ProjectSyncResult is the outcome of reconciling one project in SyncAll
type ProjectSyncResult struct {
	Err     error
	Project domain.Project
	Stats   SyncStats
}

// transcriptStore is the slice of the session repository the reconciler needs
type transcriptStore interface {
	ports.SessionReader
	ports.SessionWriter
}

// SyncService reconciles transcript files on disk with the session store
type SyncService struct {
	locks       keyedMutex
	now         func() time.Time
	orphanGrace time.Duration
	projects    ports.ProjectReader
	sessions    transcriptStore
	source      ports.TranscriptSource
}

// NewSyncService creates a new SyncService. A non-positive grace uses DefaultOrphanGrace.
func NewSyncService(
	projects ports.ProjectReader,
	sessions transcriptStore,
	source ports.TranscriptSource,
	orphanGrace time.Duration,
) *SyncService {
	if orphanGrace <= 0 {
		orphanGrace = DefaultOrphanGrace
	}
	return &SyncService{
		locks:       keyedMutex{locks: make(map[string]*sync.Mutex)},
		now:         time.Now,
		orphanGrace: orphanGrace,
		projects:    projects,
		sessions:    sessions,
		source:      source,
	}
}

// SyncProject synchronizes the store with the project's log directory.
// Runs for the same project are serialized.
func (s *SyncService) SyncProject(ctx context.Context, projectID, userID string) (SyncStats, error) {
	var stats SyncStats

	unlock := s.locks.lock(projectID)
	defer unlock()

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return stats, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}

	s.warnOnCollision(ctx, *project)

	files, err := s.source.List(project.Path)
	if err != nil {
		return stats, fmt.Errorf("failed to list transcripts for %s: %w", project.Path, err)
	}

	existing, err := s.sessions.FindMany(ctx, ports.SessionFilter{IncludeArchived: true, ProjectID: projectID})
	if err != nil {
		return stats, fmt.Errorf("failed to load sessions for project %s: %w", projectID, err)
	}
	rows := make(map[string]domain.Session, len(existing))
	for _, row := range existing {
		rows[row.ID] = row
	}

	logging.Logger.Debug("Reconciling project",
		"project_id", projectID,
		"dir", s.source.Dir(project.Path),
		"files", len(files),
		"rows", len(existing))

	onDisk := make(map[string]bool, len(files))
	var toCreate []domain.Session

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		// A file that fails to parse still backs its row; it is never an orphan
		onDisk[file.SessionID] = true

		summary, err := s.source.Parse(file.Path)
		if err != nil {
			logging.Logger.Warn("Skipping transcript", "file", file.Path, "error", err)
			stats.Skipped++
			continue
		}
		stats.Synced++

		if summary.CWD != "" && summary.CWD != project.Path {
			logging.Logger.Debug("Transcript cwd differs from project path",
				"file", file.Path, "cwd", summary.CWD, "project_path", project.Path)
		}

		metadata := summary.Metadata()
		createdAt := transcriptCreatedAt(summary)

		row, ok := rows[file.SessionID]
		if !ok {
			found, err := s.sessions.FindUnique(ctx, file.SessionID)
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
			case err != nil:
				return stats, fmt.Errorf("failed to look up session %s: %w", file.SessionID, err)
			default:
				logging.Logger.Warn("Transcript already imported under another project",
					"session_id", found.ID, "project_id", found.ProjectID, "file", file.Path)
				row, ok = *found, true
			}
		}

		if !ok {
			toCreate = append(toCreate, domain.Session{
				AgentType:    s.source.AgentType(),
				CLISessionID: file.SessionID,
				CreatedAt:    createdAt,
				ID:           file.SessionID,
				Metadata:     metadata,
				Name:         sessionName(summary.FirstMessagePreview, file.SessionID),
				ProjectID:    projectID,
				SessionPath:  file.Path,
				State:        domain.StateIdle,
				UserID:       userID,
			})
			continue
		}

		if row.Metadata.Equal(metadata) && row.CreatedAt.Equal(createdAt) {
			continue
		}
		if err := s.sessions.UpdateTranscript(ctx, row.ID, metadata, createdAt); err != nil {
			return stats, fmt.Errorf("failed to update session %s: %w", row.ID, err)
		}
		stats.Updated++
	}

	if len(toCreate) > 0 {
		if err := s.sessions.CreateMany(ctx, toCreate); err != nil {
			return stats, fmt.Errorf("failed to create %d sessions: %w", len(toCreate), err)
		}
		stats.Created = len(toCreate)
	}

	cutoff := s.now().Add(-s.orphanGrace)
	for _, row := range existing {
		if onDisk[row.ID] {
			continue
		}
		if row.IsArchived || row.State != domain.StateIdle {
			logging.Logger.Debug("Keeping session without transcript",
				"session_id", row.ID, "state", row.State, "archived", row.IsArchived)
			continue
		}
		deleted, err := s.sessions.DeleteIfOrphaned(ctx, row.ID, cutoff)
		if err != nil {
			return stats, fmt.Errorf("failed to delete orphaned session %s: %w", row.ID, err)
		}
		if deleted {
			stats.Deleted++
		}
	}

	logging.Logger.Info("Project reconciled",
		"project_id", projectID,
		"synced", stats.Synced,
		"created", stats.Created,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"skipped", stats.Skipped)

	return stats, nil
}

// SyncAll reconciles every registered project. A failing project is
// reported in its result and does not stop the others.
func (s *SyncService) SyncAll(ctx context.Context, userID string) ([]ProjectSyncResult, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	results := make([]ProjectSyncResult, len(projects))
	var g errgroup.Group
	g.SetLimit(syncAllWorkers)

	for i, project := range projects {
		g.Go(func() error {
			stats, err := s.SyncProject(ctx, project.ID, userID)
			if err != nil {
				logging.Logger.Error("Project sync failed", "project_id", project.ID, "error", err)
			}
			results[i] = ProjectSyncResult{Err: err, Project: project, Stats: stats}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// ProjectsByDir maps each registered project's log directory to the projects
// that encode to it
func (s *SyncService) ProjectsByDir(ctx context.Context) (map[string][]domain.Project, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	dirs := make(map[string][]domain.Project, len(projects))
	for _, p := range projects {
		dir := filepath.Clean(s.source.Dir(p.Path))
		dirs[dir] = append(dirs[dir], p)
	}
	return dirs, nil
}

// SyncDir reconciles every project whose transcripts live in dir
func (s *SyncService) SyncDir(ctx context.Context, dir, userID string) ([]ProjectSyncResult, error) {
	dirs, err := s.ProjectsByDir(ctx)
	if err != nil {
		return nil, err
	}

	projects := dirs[filepath.Clean(dir)]
	if len(projects) == 0 {
		logging.Logger.Debug("No project registered for transcript directory", "dir", dir)
		return nil, nil
	}

	results := make([]ProjectSyncResult, 0, len(projects))
	for _, project := range projects {
		stats, err := s.SyncProject(ctx, project.ID, userID)
		results = append(results, ProjectSyncResult{Err: err, Project: project, Stats: stats})
	}
	return results, nil
}

// warnOnCollision logs when another project shares this project's log directory
func (s *SyncService) warnOnCollision(ctx context.Context, project domain.Project) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		logging.Logger.Debug("Skipping log directory collision check", "error", err)
		return
	}

	dir := s.source.Dir(project.Path)
	for _, other := range projects {
		if other.ID != project.ID && s.source.Dir(other.Path) == dir {
			logging.Logger.Warn("Projects share a transcript directory",
				"dir", dir,
				"project_id", project.ID,
				"project_path", project.Path,
				"other_project_id", other.ID,
				"other_project_path", other.Path)
		}
	}
}

// transcriptCreatedAt is the first transcript timestamp, falling back to the file mtime
func transcriptCreatedAt(summary domain.TranscriptSummary) time.Time {
	if summary.CreatedAt != nil {
		return summary.CreatedAt.UTC()
	}
	return summary.ModTime.UTC()
}

// sessionName cuts the preview to a display name
func sessionName(preview, fallback string) string {
	if preview == "" {
		return fallback
	}
	if utf8.RuneCountInString(preview) <= nameMaxRunes {
		return preview
	}
	runes := []rune(preview)
	return string(runes[:nameMaxRunes])
}

// keyedMutex hands out one mutex per key
type keyedMutex struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
