package ports

import (
	"context"
	"time"

	"github.com/renato0307/sessiond/internal/domain"
)

// SessionFilter narrows FindMany results; zero values match everything
type SessionFilter struct {
	IncludeArchived bool
	ProjectID       string
	UserID          string
}

// SessionReader reads session rows
type SessionReader interface {
	FindMany(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	FindUnique(ctx context.Context, id string) (*domain.Session, error)
}

// SessionWriter creates, updates and deletes session rows by id
type SessionWriter interface {
	Create(ctx context.Context, session domain.Session) error
	CreateMany(ctx context.Context, sessions []domain.Session) error
	Delete(ctx context.Context, id string) error
	// DeleteIfOrphaned deletes the row only if it is still idle, unarchived
	// and last updated before cutoff. Returns whether a row was removed.
	DeleteIfOrphaned(ctx context.Context, id string, cutoff time.Time) (bool, error)
	UpdateTranscript(ctx context.Context, id string, metadata domain.SessionMetadata, createdAt time.Time) error
}

// SessionStateUpdater updates live session state
type SessionStateUpdater interface {
	UpdateState(ctx context.Context, id string, state domain.SessionState, errorMessage string) (*domain.Session, error)
}

// SessionMetadataUpdater updates user-facing attributes
type SessionMetadataUpdater interface {
	Rename(ctx context.Context, id, name string) error
	ToggleArchive(ctx context.Context, id string) (*domain.Session, error)
}

// SessionMessageStore persists streamed message contents
type SessionMessageStore interface {
	ListMessages(ctx context.Context, sessionID string) ([]domain.UnifiedMessage, error)
	UpsertMessage(ctx context.Context, sessionID string, message domain.UnifiedMessage) error
}

// SessionRepository is the composite interface
type SessionRepository interface {
	SessionReader
	SessionWriter
	SessionStateUpdater
	SessionMetadataUpdater
	SessionMessageStore
	Close() error
}
