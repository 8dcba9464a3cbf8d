package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

const searchWorkers = 4

// ErrEmptyQuery is returned when a search has no terms
var ErrEmptyQuery = errors.New("search query is empty")

// SearchService finds sessions by transcript content
type SearchService struct {
	projects ports.ProjectReader
	searcher ports.TranscriptSearcher
	source   ports.TranscriptSource
}

// NewSearchService creates a new SearchService
func NewSearchService(
	projects ports.ProjectReader,
	source ports.TranscriptSource,
	searcher ports.TranscriptSearcher,
) *SearchService {
	return &SearchService{
		projects: projects,
		searcher: searcher,
		source:   source,
	}
}

// Search scores the transcripts of one project, or of every project when
// projectID is empty. Hits are ordered by score then modification time,
// newest first. A non-positive limit returns every hit.
func (s *SearchService) Search(ctx context.Context, query, projectID string, limit int) ([]domain.SearchHit, error) {
	terms := domain.SearchTerms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	var projects []domain.Project
	if projectID != "" {
		project, err := s.projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
		}
		projects = []domain.Project{*project}
	} else {
		all, err := s.projects.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		projects = all
	}

	var (
		hits []domain.SearchHit
		mu   sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchWorkers)

	for _, project := range projects {
		g.Go(func() error {
			found, err := s.searchProject(gctx, project, terms)
			if err != nil {
				return err
			}
			mu.Lock()
			hits = append(hits, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].ModTime.Equal(hits[j].ModTime) {
			return hits[i].ModTime.After(hits[j].ModTime)
		}
		return hits[i].SessionID < hits[j].SessionID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	logging.Logger.Debug("Search completed", "terms", terms, "projects", len(projects), "hits", len(hits))
	return hits, nil
}

func (s *SearchService) searchProject(ctx context.Context, project domain.Project, terms []string) ([]domain.SearchHit, error) {
	files, err := s.source.List(project.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts for %s: %w", project.Path, err)
	}

	var hits []domain.SearchHit
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hit, err := s.searcher.Search(file.Path, terms)
		if err != nil {
			logging.Logger.Warn("Skipping transcript", "file", file.Path, "error", err)
			continue
		}
		if hit == nil {
			continue
		}
		hit.ProjectID = project.ID
		hits = append(hits, *hit)
	}
	return hits, nil
}
