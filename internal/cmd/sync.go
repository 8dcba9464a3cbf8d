package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/renato0307/sessiond/internal/services"
)

// SyncCmd runs one reconciliation pass
type SyncCmd struct {
	Project string `help:"Only reconcile this project id" short:"p"`
}

// Run executes the sync command
func (s *SyncCmd) Run(cli *CLI) error {
	ctx := context.Background()
	syncService := cli.Container.SyncService

	var results []services.ProjectSyncResult
	if s.Project != "" {
		project, err := cli.Container.ProjectService.Get(ctx, s.Project)
		if err != nil {
			return err
		}
		stats, err := syncService.SyncProject(ctx, project.ID, cli.UserID)
		results = append(results, services.ProjectSyncResult{Err: err, Project: *project, Stats: stats})
	} else {
		var err error
		results, err = syncService.SyncAll(ctx, cli.UserID)
		if err != nil {
			return err
		}
	}

	if len(results) == 0 {
		fmt.Println("No projects registered. Add one with 'sessiond projects add <path>'.")
		return nil
	}

	failed := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tSYNCED\tCREATED\tUPDATED\tDELETED\tSKIPPED\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Project.Name,
			r.Stats.Synced,
			r.Stats.Created,
			r.Stats.Updated,
			r.Stats.Deleted,
			r.Stats.Skipped,
			errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d projects failed to sync", failed, len(results))
	}
	return nil
}
