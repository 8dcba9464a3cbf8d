package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/adapters/claude"
	"github.com/renato0307/sessiond/internal/domain"
	portsmocks "github.com/renato0307/sessiond/internal/ports/mocks"
)

const (
	lineSearchText = `{"type":"user","message":{"content":"rotate the deploy keys"}}`
	lineSearchTool = `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"deploy --env staging"}}]}}`
)

type searchFixture struct {
	projects *portsmocks.MockProjectReader
	service  *SearchService
	source   *claude.Source
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	source := claude.NewSourceWithDir(t.TempDir())
	projects := portsmocks.NewMockProjectReader(t)
	return &searchFixture{
		projects: projects,
		service:  NewSearchService(projects, source, source),
		source:   source,
	}
}

func (f *searchFixture) write(t *testing.T, projectPath string, modTime time.Time, lines ...string) string {
	t.Helper()
	dir := f.source.Dir(projectPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	id := uuid.NewString()
	path := filepath.Join(dir, id+".jsonl")
	var content string
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return id
}

func TestSearch_RanksAcrossProjects(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	now := time.Now()
	app := domain.Project{ID: "app", Path: "/work/app"}
	api := domain.Project{ID: "api", Path: "/work/api"}

	weak := f.write(t, app.Path, now, lineSearchText)
	strong := f.write(t, api.Path, now.Add(-time.Hour), lineSearchText, lineSearchTool)
	f.write(t, app.Path, now, `{"type":"user","message":{"content":"unrelated"}}`)

	f.projects.EXPECT().ListProjects(mock.Anything).Return([]domain.Project{app, api}, nil)

	hits, err := f.service.Search(ctx, "Deploy", "", 0)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, strong, hits[0].SessionID)
	assert.Equal(t, "api", hits[0].ProjectID)
	// string 1 + tool input 1
	assert.InDelta(t, 2.0, hits[0].Score, 0.001)
	assert.Equal(t, []string{"Bash"}, hits[0].Tools)
	assert.Equal(t, weak, hits[1].SessionID)
	assert.Equal(t, "app", hits[1].ProjectID)
}

func TestSearch_EqualScoresPreferNewest(t *testing.T) {
	f := newSearchFixture(t)
	now := time.Now()
	app := domain.Project{ID: "app", Path: "/work/app"}

	older := f.write(t, app.Path, now.Add(-2*time.Hour), lineSearchText)
	newer := f.write(t, app.Path, now, lineSearchText)

	f.projects.EXPECT().GetProject(mock.Anything, "app").Return(&app, nil)

	hits, err := f.service.Search(context.Background(), "keys", "app", 0)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, newer, hits[0].SessionID)
	assert.Equal(t, older, hits[1].SessionID)
}

func TestSearch_Limit(t *testing.T) {
	f := newSearchFixture(t)
	now := time.Now()
	app := domain.Project{ID: "app", Path: "/work/app"}
	for i := range 4 {
		f.write(t, app.Path, now.Add(-time.Duration(i)*time.Minute), lineSearchText)
	}

	f.projects.EXPECT().GetProject(mock.Anything, "app").Return(&app, nil)

	hits, err := f.service.Search(context.Background(), "deploy", "app", 3)

	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newSearchFixture(t)

	_, err := f.service.Search(context.Background(), "   ", "", 5)

	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_ProjectNotFound(t *testing.T) {
	f := newSearchFixture(t)
	f.projects.EXPECT().GetProject(mock.Anything, "missing").Return(nil, domain.ErrProjectNotFound)

	_, err := f.service.Search(context.Background(), "deploy", "missing", 5)

	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestSearch_ProjectWithoutLogs(t *testing.T) {
	f := newSearchFixture(t)
	app := domain.Project{ID: "app", Path: "/work/never-used"}
	f.projects.EXPECT().GetProject(mock.Anything, "app").Return(&app, nil)

	hits, err := f.service.Search(context.Background(), "deploy", "app", 5)

	require.NoError(t, err)
	assert.Empty(t, hits)
}
