package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SessionsRenameCmd sets the display name of a session. Sync never
// overwrites a name once the row exists.
type SessionsRenameCmd struct {
	ID   string `arg:"" help:"ID of the session to rename"`
	Name string `arg:"" help:"New display name"`
}

// Run executes the rename command
func (s *SessionsRenameCmd) Run(cli *CLI) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if err := cli.Container.SessionRepository.Rename(context.Background(), s.ID, name); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	fmt.Printf("Session '%s' renamed to '%s'\n", s.ID, name)
	return nil
}
