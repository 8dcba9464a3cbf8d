package cmd

import (
	"context"
	"fmt"
)

// SessionsArchiveCmd archives or unarchives a session
type SessionsArchiveCmd struct {
	Force bool   `help:"Skip confirmation prompt" short:"f"`
	ID    string `arg:"" help:"ID of the session to archive/unarchive"`
}

// Run executes the archive command
func (s *SessionsArchiveCmd) Run(cli *CLI) error {
	ctx := context.Background()
	session, err := cli.Container.SessionRepository.FindUnique(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}

	if !session.IsArchived && !s.Force {
		fmt.Printf("Are you sure you want to archive session '%s'? (y/N): ", session.Name)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Cancelled")
			return nil
		}
	}

	updated, err := cli.Container.SessionRepository.ToggleArchive(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to toggle archive: %w", err)
	}

	if updated.IsArchived {
		fmt.Printf("Session '%s' archived successfully\n", updated.Name)
	} else {
		fmt.Printf("Session '%s' unarchived successfully\n", updated.Name)
	}
	return nil
}
