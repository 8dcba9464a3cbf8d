package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

// ProjectService registers and lists projects
type ProjectService struct {
	repo ports.ProjectRepository
}

// NewProjectService creates a new ProjectService
func NewProjectService(repo ports.ProjectRepository) *ProjectService {
	return &ProjectService{repo: repo}
}

// Register adds the project rooted at path. The id is derived from the
// absolute path, so registering the same path twice fails with ErrProjectExists.
func (s *ProjectService) Register(ctx context.Context, path, name string) (domain.Project, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Project{}, fmt.Errorf("project path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Project{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DefaultProjectName(abs)
	}

	project := domain.Project{
		CreatedAt: time.Now().UTC(),
		ID:        domain.ProjectIDForPath(abs),
		Name:      name,
		Path:      abs,
	}
	if err := s.repo.AddProject(ctx, project); err != nil {
		return domain.Project{}, err
	}

	logging.Logger.Info("Project registered", "project_id", project.ID, "path", project.Path)
	return project, nil
}

// Get returns one project
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// List returns every project ordered by path
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}
