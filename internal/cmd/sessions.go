package cmd

import (
	"time"

	"github.com/renato0307/sessiond/internal/domain"
)

const timeFormat = "2006-01-02 15:04:05"

// SessionsCmd inspects sessions
type SessionsCmd struct {
	Archive SessionsArchiveCmd `cmd:"archive" help:"Archive or unarchive a session"`
	Del     SessionsDelCmd     `cmd:"del" help:"Delete a session record"`
	List    SessionsListCmd    `cmd:"list" help:"List sessions" default:"1"`
	Rename  SessionsRenameCmd  `cmd:"rename" help:"Rename a session"`
	Search  SessionsSearchCmd  `cmd:"search" help:"Search sessions by transcript content"`
	View    SessionsViewCmd    `cmd:"view" help:"View a specific session"`
}

// sessionJSON is the JSON shape printed by the sessions commands
type sessionJSON struct {
	AgentType    string                 `json:"agent_type"`
	ArchivedAt   *time.Time             `json:"archived_at,omitempty"`
	CLISessionID string                 `json:"cli_session_id"`
	CreatedAt    time.Time              `json:"created_at"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ID           string                 `json:"id"`
	IsArchived   bool                   `json:"is_archived"`
	Metadata     domain.SessionMetadata `json:"metadata"`
	Name         string                 `json:"name"`
	ProjectID    string                 `json:"project_id"`
	SessionPath  string                 `json:"session_path"`
	State        domain.SessionState    `json:"state"`
	UpdatedAt    time.Time              `json:"updated_at"`
	UserID       string                 `json:"user_id"`
}

func toSessionJSON(s domain.Session) sessionJSON {
	return sessionJSON{
		AgentType:    s.AgentType,
		ArchivedAt:   s.ArchivedAt,
		CLISessionID: s.CLISessionID,
		CreatedAt:    s.CreatedAt,
		ErrorMessage: s.ErrorMessage,
		ID:           s.ID,
		IsArchived:   s.IsArchived,
		Metadata:     s.Metadata,
		Name:         s.Name,
		ProjectID:    s.ProjectID,
		SessionPath:  s.SessionPath,
		State:        s.State,
		UpdatedAt:    s.UpdatedAt,
		UserID:       s.UserID,
	}
}
