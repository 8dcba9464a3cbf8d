package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/theme"
)

// SessionsSearchCmd finds sessions whose transcripts mention the given terms
type SessionsSearchCmd struct {
	Format  string   `help:"Output format: table or json" enum:"table,json" default:"table"`
	Limit   int      `help:"Maximum number of results (0 for all)" default:"5"`
	Project string   `help:"Only search sessions of this project id" short:"p"`
	Terms   []string `arg:"" help:"Search terms, matched case-insensitively"`
}

// Run executes the search command
func (s *SessionsSearchCmd) Run(cli *CLI) error {
	hits, err := cli.Container.SearchService.Search(context.Background(), strings.Join(s.Terms, " "), s.Project, s.Limit)
	if err != nil {
		return fmt.Errorf("failed to search sessions: %w", err)
	}

	if s.Format == "json" {
		if hits == nil {
			hits = []domain.SearchHit{}
		}
		return printJSON(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No matching sessions found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RELEVANCE\tSCORE\tID\tPROJECT\tMODIFIED\tTOOLS")
	for _, hit := range hits {
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\t%s\n",
			relevanceLabel(hit.Relevance()),
			hit.Score,
			hit.SessionID,
			hit.ProjectID,
			hit.ModTime.Local().Format(timeFormat),
			truncate(strings.Join(hit.Tools, ","), 40))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, hit := range hits {
		fmt.Printf("\n%s\n", theme.HeaderStyle.Render(hit.SessionID))
		for _, m := range hit.Matches {
			fmt.Printf("  %s\n", truncate(strings.ReplaceAll(m, "\n", " "), 100))
		}
		if len(hit.Files) > 0 {
			fmt.Printf("  %s %s\n", theme.LabelStyle.Render("files:"), strings.Join(hit.Files, ", "))
		}
	}
	return nil
}

func relevanceLabel(r domain.Relevance) string {
	switch r {
	case domain.RelevanceHigh:
		return "High"
	case domain.RelevanceMedium:
		return "Medium"
	default:
		return "Low"
	}
}
