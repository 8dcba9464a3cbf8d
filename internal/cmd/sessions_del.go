package cmd

import (
	"context"
	"fmt"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
)

// SessionsDelCmd deletes a session record and its stored messages.
// The transcript file is left alone, so the next sync recreates the row
// while the file exists.
type SessionsDelCmd struct {
	Force bool   `help:"Force deletion without confirmation" short:"f"`
	ID    string `arg:"" help:"ID of the session to delete"`
}

// Run executes the del command
func (s *SessionsDelCmd) Run(cli *CLI) error {
	ctx := context.Background()
	session, err := cli.Container.SessionRepository.FindUnique(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}
	if session.State == domain.StateWorking {
		return fmt.Errorf("session %s is working; cancel the run first", s.ID)
	}

	if !s.Force {
		fmt.Printf("WARNING: This will delete session '%s'\n", session.Name)
		fmt.Print("\nContinue? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			logging.Logger.Info("User cancelled session deletion", "session_id", s.ID)
			fmt.Println("Cancelled")
			return nil
		}
	}

	if err := cli.Container.SessionRepository.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logging.Logger.Info("Session deleted", "session_id", s.ID)
	fmt.Printf("Session '%s' deleted successfully\n", session.Name)
	return nil
}
