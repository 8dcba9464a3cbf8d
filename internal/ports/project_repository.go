package ports

import (
	"context"

	"github.com/renato0307/sessiond/internal/domain"
)

// ProjectReader looks up projects
type ProjectReader interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
}

// ProjectWriter registers projects
type ProjectWriter interface {
	AddProject(ctx context.Context, project domain.Project) error
}

// ProjectRepository is the composite interface
type ProjectRepository interface {
	ProjectReader
	ProjectWriter
}
