package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/adapters/storage"
	"github.com/renato0307/sessiond/internal/domain"
)

func newProjectService(t *testing.T) *ProjectService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewProjectService(repo)
}

func TestProjectService_Register(t *testing.T) {
	service := newProjectService(t)
	ctx := context.Background()

	project, err := service.Register(ctx, "/work/my-app/", "")
	require.NoError(t, err)
	assert.Equal(t, "/work/my-app", project.Path)
	assert.Equal(t, "my-app", project.Name)
	assert.Equal(t, domain.ProjectIDForPath("/work/my-app"), project.ID)

	_, err = service.Register(ctx, "/work/my-app", "again")
	assert.ErrorIs(t, err, domain.ErrProjectExists)

	named, err := service.Register(ctx, "/work/other", "Other")
	require.NoError(t, err)
	assert.Equal(t, "Other", named.Name)

	got, err := service.Get(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Path, got.Path)

	projects, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestProjectService_RegisterRequiresPath(t *testing.T) {
	service := newProjectService(t)
	_, err := service.Register(context.Background(), "  ", "")
	assert.Error(t, err)
}
