package claude

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProjectPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/Users/jane/Dev/project", "-Users-jane-Dev-project"},
		{"/tmp", "-tmp"},
		{"relative/path", "relative-path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodeProjectPath(tt.input))
		})
	}
}

func TestEncodeProjectPath_IsLossy(t *testing.T) {
	assert.Equal(t, EncodeProjectPath("/a/b-c"), EncodeProjectPath("/a-b/c"))
}

func TestIsTranscriptName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{testSessionID + ".jsonl", true},
		{"agent-1a2b3c4d.jsonl", false},
		{testSessionID + ".json", false},
		{"notes.jsonl", false},
		{testSessionID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTranscriptName(tt.name))
		})
	}
}

func TestSourceList_FiltersCandidates(t *testing.T) {
	root := t.TempDir()
	projectPath := "/work/demo"
	dir := filepath.Join(root, "-work-demo")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, testSessionID), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, testSessionID+".jsonl"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent-abc.jsonl"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0644))

	source := NewSourceWithDir(root)
	files, err := source.List(projectPath)

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, testSessionID, files[0].SessionID)
	assert.Equal(t, filepath.Join(dir, testSessionID+".jsonl"), files[0].Path)
}

func TestSourceList_MissingDirectory(t *testing.T) {
	source := NewSourceWithDir("/non/existent/path")

	files, err := source.List("/work/demo")

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestNewSource_DefaultDirectory(t *testing.T) {
	source := NewSource()

	assert.NotNil(t, source)
	assert.Equal(t, "claude", source.AgentType())
}
