package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/services"
	"github.com/renato0307/sessiond/internal/theme"
)

// StatsCmd shows session statistics per project
type StatsCmd struct{}

// Run executes the stats command
func (s *StatsCmd) Run(cli *CLI) error {
	ctx := context.Background()

	projects, err := cli.Container.StatsService.ByProject(ctx)
	if err != nil {
		return fmt.Errorf("failed to get session stats: %w", err)
	}
	totals, err := cli.Container.StatsService.Totals(ctx)
	if err != nil {
		return fmt.Errorf("failed to get session totals: %w", err)
	}

	names := make(map[string]string)
	if registered, err := cli.Container.ProjectService.List(ctx); err == nil {
		for _, p := range registered {
			names[p.ID] = p.Name
		}
	}

	s.renderTable(projects, totals, names)
	return nil
}

// renderTable displays the stats in table format
func (s *StatsCmd) renderTable(projects []services.ProjectStats, totals services.StatsTotals, names map[string]string) {
	if len(projects) == 0 {
		fmt.Println("No sessions yet.")
		return
	}

	// Header
	fmt.Println("Project              Sessions  Messages    Tokens       States")
	fmt.Println(strings.Repeat("─", 70))

	// Data rows
	for _, p := range projects {
		name := names[p.ProjectID]
		if name == "" {
			name = p.ProjectID
		}
		fmt.Printf("%-20s %-9d %-11s %-12s %s\n",
			truncate(name, 20),
			p.Sessions,
			formatNumber(p.Messages),
			formatNumber(p.Tokens),
			stateCounts(p.States))
	}

	// Total row
	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("%-20s %-9d %-11s %s\n",
		"Total",
		totals.Sessions,
		formatNumber(totals.Messages),
		formatNumber(totals.Tokens))
}

// stateCounts renders "●2 ○1" style counts in a stable order
func stateCounts(states map[domain.SessionState]int) string {
	var parts []string
	for _, state := range []domain.SessionState{domain.StateWorking, domain.StateIdle, domain.StateError} {
		if n := states[state]; n > 0 {
			parts = append(parts, theme.StateStyle(state).Render(state.Symbol())+fmt.Sprintf("%d", n))
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// formatNumber formats a number with comma separators
func formatNumber(n int) string {
	if n == 0 {
		return "0"
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	// Add comma separators
	var result strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}
