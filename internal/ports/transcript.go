package ports

import "github.com/renato0307/sessiond/internal/domain"

// TranscriptFile is a candidate log file found for a project
type TranscriptFile struct {
	Path      string
	SessionID string
}

// TranscriptSource enumerates and parses the transcripts of an agent CLI
type TranscriptSource interface {
	// AgentType names the agent CLI that writes these transcripts
	AgentType() string
	// Dir returns the log directory for a project path
	Dir(projectPath string) string
	// List returns candidate transcript files for a project path
	List(projectPath string) ([]TranscriptFile, error)
	// Parse reads one transcript file
	Parse(path string) (domain.TranscriptSummary, error)
}

// TranscriptSearcher scores transcript content against search terms
type TranscriptSearcher interface {
	// Search returns nil when the file does not match any term
	Search(path string, terms []string) (*domain.SearchHit, error)
}
