package cmd

import (
	"context"
	"fmt"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/theme"
)

// SessionsViewCmd views a specific session
type SessionsViewCmd struct {
	Format   string `help:"Output format: table or json" enum:"table,json" default:"table"`
	ID       string `arg:"" help:"ID of the session to view"`
	Messages bool   `help:"Also print stored live messages" short:"m"`
}

// Run executes the view command
func (s *SessionsViewCmd) Run(cli *CLI) error {
	ctx := context.Background()
	session, err := cli.Container.SessionRepository.FindUnique(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	var messages []domain.UnifiedMessage
	if s.Messages {
		messages, err = cli.Container.SessionRepository.ListMessages(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
	}

	if s.Format == "json" {
		return printJSON(struct {
			sessionJSON
			Messages []domain.UnifiedMessage `json:"messages,omitempty"`
		}{toSessionJSON(*session), messages})
	}
	s.printTable(session)
	for _, msg := range messages {
		printMessage(msg)
	}
	return nil
}

func (s *SessionsViewCmd) printTable(session *domain.Session) {
	m := session.Metadata
	fmt.Printf("Session: %s\n", session.ID)
	fmt.Printf("Name: %s\n", session.Name)
	fmt.Printf("State: %s\n", theme.RenderState(session.State))
	if session.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", session.ErrorMessage)
	}
	fmt.Printf("Project: %s\n", session.ProjectID)
	fmt.Printf("Agent: %s\n", session.AgentType)
	fmt.Printf("Transcript: %s\n", session.SessionPath)
	fmt.Printf("Archived: %t\n", session.IsArchived)
	fmt.Printf("Created: %s\n", session.CreatedAt.Local().Format(timeFormat))
	fmt.Printf("Last Updated: %s\n", session.UpdatedAt.Local().Format(timeFormat))
	if m.LastMessageAt != nil {
		fmt.Printf("Last Message: %s\n", m.LastMessageAt.Local().Format(timeFormat))
	}
	fmt.Printf("Messages: %d\n", m.MessageCount)
	fmt.Printf("Tokens: %d\n", m.TotalTokens)
	fmt.Printf("Preview: %s\n", m.FirstMessagePreview)
}
