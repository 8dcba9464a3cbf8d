package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/renato0307/sessiond/internal/domain"
)

// ProjectsCmd manages projects
type ProjectsCmd struct {
	Add  ProjectsAddCmd  `cmd:"add" help:"Register a project directory"`
	List ProjectsListCmd `cmd:"list" help:"List registered projects" default:"1"`
}

// ProjectsAddCmd registers a project
type ProjectsAddCmd struct {
	Name string `help:"Display name (defaults to the directory name)" short:"n"`
	Path string `arg:"" help:"Project directory" type:"path"`
}

// Run executes the add command
func (p *ProjectsAddCmd) Run(cli *CLI) error {
	project, err := cli.Container.ProjectService.Register(context.Background(), p.Path, p.Name)
	if err != nil {
		return fmt.Errorf("failed to add project: %w", err)
	}

	fmt.Printf("Project '%s' registered (id: %s)\n", project.Name, project.ID)
	fmt.Printf("Transcripts: %s\n", cli.Container.Source.Dir(project.Path))
	return nil
}

// ProjectsListCmd lists projects
type ProjectsListCmd struct {
	Format string `help:"Output format: table or json" enum:"table,json" default:"table"`
}

// Run executes the list command
func (p *ProjectsListCmd) Run(cli *CLI) error {
	projects, err := cli.Container.ProjectService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if p.Format == "json" {
		return printJSON(projectsJSON(projects))
	}

	if len(projects) == 0 {
		fmt.Println("No projects registered.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPATH")
	for _, project := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\n", project.ID, project.Name, project.Path)
	}
	return w.Flush()
}

type projectJSON struct {
	CreatedAt string `json:"created_at"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
}

func projectsJSON(projects []domain.Project) []projectJSON {
	out := make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectJSON{
			CreatedAt: p.CreatedAt.Format(timeFormat),
			ID:        p.ID,
			Name:      p.Name,
			Path:      p.Path,
		})
	}
	return out
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
