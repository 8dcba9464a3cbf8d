package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/renato0307/sessiond/internal/ports"
	"github.com/renato0307/sessiond/internal/theme"
)

// SessionsListCmd lists sessions
type SessionsListCmd struct {
	Archived bool   `help:"Include archived sessions" short:"a"`
	Format   string `help:"Output format: table or json" enum:"table,json" default:"table"`
	Project  string `help:"Only list sessions of this project id" short:"p"`
}

// Run executes the list command
func (s *SessionsListCmd) Run(cli *CLI) error {
	sessions, err := cli.Container.SessionRepository.FindMany(context.Background(), ports.SessionFilter{
		IncludeArchived: s.Archived,
		ProjectID:       s.Project,
	})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if s.Format == "json" {
		out := make([]sessionJSON, 0, len(sessions))
		for _, session := range sessions {
			out = append(out, toSessionJSON(session))
		}
		return printJSON(out)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tID\tNAME\tMESSAGES\tTOKENS\tCREATED")
	for _, session := range sessions {
		name := session.Name
		if session.IsArchived {
			name += " (archived)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			theme.StateStyle(session.State).Render(session.State.Symbol()),
			session.ID,
			name,
			session.Metadata.MessageCount,
			session.Metadata.TotalTokens,
			session.CreatedAt.Local().Format(timeFormat))
	}
	return w.Flush()
}
