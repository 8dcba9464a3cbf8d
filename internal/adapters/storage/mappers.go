package storage

import (
	"encoding/json"
	"fmt"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
)

// projectModelToDomain converts a ProjectModel (GORM) to domain.Project
func projectModelToDomain(m ProjectModel) domain.Project {
	return domain.Project{
		CreatedAt: m.CreatedAt,
		ID:        m.ID,
		Name:      m.Name,
		Path:      m.Path,
	}
}

// sessionModelToDomain converts a SessionModel (GORM) to domain.Session
func sessionModelToDomain(m SessionModel) domain.Session {
	var metadata domain.SessionMetadata
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			logging.Logger.Warn("Ignoring unreadable session metadata", "session_id", m.ID, "error", err)
		}
	}

	return domain.Session{
		AgentType:    m.AgentType,
		ArchivedAt:   m.ArchivedAt,
		CLISessionID: m.CLISessionID,
		CreatedAt:    m.CreatedAt,
		ErrorMessage: m.ErrorMessage,
		ID:           m.ID,
		IsArchived:   m.IsArchived,
		Metadata:     metadata,
		Name:         m.Name,
		ProjectID:    m.ProjectID,
		SessionPath:  m.SessionPath,
		State:        domain.SessionState(m.State),
		UpdatedAt:    m.UpdatedAt,
		UserID:       m.UserID,
	}
}

// domainToSessionModel converts a domain.Session to SessionModel (GORM)
func domainToSessionModel(s domain.Session) (SessionModel, error) {
	metadata, err := marshalMetadata(s.Metadata)
	if err != nil {
		return SessionModel{}, err
	}

	state := s.State
	if state == "" {
		state = domain.StateIdle
	}
	agentType := s.AgentType
	if agentType == "" {
		agentType = domain.AgentClaude
	}

	return SessionModel{
		AgentType:    agentType,
		ArchivedAt:   s.ArchivedAt,
		CLISessionID: s.CLISessionID,
		CreatedAt:    s.CreatedAt.UTC(),
		ErrorMessage: s.ErrorMessage,
		ID:           s.ID,
		IsArchived:   s.IsArchived,
		Metadata:     metadata,
		Name:         s.Name,
		ProjectID:    s.ProjectID,
		SessionPath:  s.SessionPath,
		State:        string(state),
		UpdatedAt:    s.UpdatedAt.UTC(),
		UserID:       s.UserID,
	}, nil
}

func marshalMetadata(m domain.SessionMetadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	return string(data), nil
}

// messageModelToDomain converts a SessionMessageModel (GORM) to domain.UnifiedMessage
func messageModelToDomain(m SessionMessageModel) domain.UnifiedMessage {
	msg := domain.UnifiedMessage{
		ID:          m.MessageID,
		IsError:     m.IsError,
		IsStreaming: m.IsStreaming,
		ParentID:    m.ParentID,
		Role:        m.Role,
	}
	if err := json.Unmarshal([]byte(m.Content), &msg.Content); err != nil {
		logging.Logger.Warn("Ignoring unreadable message content", "session_id", m.SessionID, "message_id", m.MessageID, "error", err)
	}
	if m.Usage != "" {
		var usage domain.TokenUsage
		if err := json.Unmarshal([]byte(m.Usage), &usage); err == nil {
			msg.Usage = &usage
		}
	}
	return msg
}

// domainToMessageModel converts a domain.UnifiedMessage to SessionMessageModel (GORM)
func domainToMessageModel(sessionID string, msg domain.UnifiedMessage) (SessionMessageModel, error) {
	content := msg.Content
	if content == nil {
		content = []domain.ContentBlock{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return SessionMessageModel{}, fmt.Errorf("failed to marshal message content: %w", err)
	}

	var usage string
	if msg.Usage != nil {
		data, err := json.Marshal(msg.Usage)
		if err != nil {
			return SessionMessageModel{}, fmt.Errorf("failed to marshal message usage: %w", err)
		}
		usage = string(data)
	}

	return SessionMessageModel{
		Content:     string(contentJSON),
		IsError:     msg.IsError,
		IsStreaming: msg.IsStreaming,
		MessageID:   msg.ID,
		ParentID:    msg.ParentID,
		Role:        msg.Role,
		SessionID:   sessionID,
		Usage:       usage,
	}, nil
}
