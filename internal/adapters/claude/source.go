package claude

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/renato0307/sessiond/internal/config"
	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

// Source enumerates Claude transcripts below a projects root (~/.claude/projects)
type Source struct {
	parser  *Parser
	rootDir string
}

// Verify interface compliance at compile time
var (
	_ ports.TranscriptSearcher = (*Source)(nil)
	_ ports.TranscriptSource   = (*Source)(nil)
)

// NewSource creates a Source rooted at the default Claude projects directory
func NewSource() *Source {
	return NewSourceWithDir(config.DefaultLogsRoot())
}

// NewSourceWithDir creates a Source with a custom root directory
func NewSourceWithDir(dir string) *Source {
	return &Source{
		parser:  NewParser(),
		rootDir: dir,
	}
}

// EncodeProjectPath converts a project path to Claude's directory name by
// replacing every path separator with a hyphen. The mapping is lossy:
// "/a/b-c" and "/a-b/c" both encode to "-a-b-c".
func EncodeProjectPath(projectPath string) string {
	encoded := strings.ReplaceAll(projectPath, string(filepath.Separator), "-")
	return strings.ReplaceAll(encoded, "/", "-")
}

// AgentType implements ports.TranscriptSource
func (s *Source) AgentType() string { return domain.AgentClaude }

// Root returns the projects root directory
func (s *Source) Root() string { return s.rootDir }

// Dir implements ports.TranscriptSource
func (s *Source) Dir(projectPath string) string {
	return filepath.Join(s.rootDir, EncodeProjectPath(projectPath))
}

// List implements ports.TranscriptSource. A missing directory yields no files.
func (s *Source) List(projectPath string) ([]ports.TranscriptFile, error) {
	dir := s.Dir(projectPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Logger.Debug("Transcript directory does not exist", "path", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var files []ports.TranscriptFile
	for _, entry := range entries {
		if entry.IsDir() || !IsTranscriptName(entry.Name()) {
			continue
		}
		files = append(files, ports.TranscriptFile{
			Path:      filepath.Join(dir, entry.Name()),
			SessionID: SessionIDFromPath(entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].SessionID < files[j].SessionID
	})
	return files, nil
}

// Parse implements ports.TranscriptSource
func (s *Source) Parse(path string) (domain.TranscriptSummary, error) {
	return s.parser.ParseFile(path)
}

// Search implements ports.TranscriptSearcher
func (s *Source) Search(path string, terms []string) (*domain.SearchHit, error) {
	return s.parser.SearchFile(path, terms)
}

// IsTranscriptName reports whether a file name follows Claude's session file
// convention (<uuid>.jsonl). Sub-agent logs (agent-<id>.jsonl) are excluded.
func IsTranscriptName(name string) bool {
	if !strings.HasSuffix(name, ".jsonl") || strings.HasPrefix(name, "agent-") {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(name, ".jsonl"))
	return err == nil
}
