package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

// JournalList prints journaled generation attempts, newest first.
func (r *Runner) JournalList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": int(cmd.Int("limit"))}

	if status := cmd.String("status"); status != "" {
		switch models.JobStatus(status) {
		case models.JobPending, models.JobSucceeded, models.JobFailed:
			criteria["status"] = status
		default:
			return fmt.Errorf("%w: status %q", shared.ErrInvalidArgument, status)
		}
	}
	if mode := cmd.String("mode"); mode != "" {
		mt, err := models.ParseMediaType(mode)
		if err != nil {
			return err
		}
		criteria["mode"] = string(mt)
	}

	repo, closeJournal := r.openJournal()
	defer closeJournal()
	if repo == nil {
		return fmt.Errorf("%w: journal database unavailable (run 'studio setup database')", shared.ErrMissingConfig)
	}

	jobs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(jobs, true)
	}

	if len(jobs) == 0 {
		return r.writePlain("No journaled generations\n")
	}

	r.writePlainHeader(fmt.Sprintf("Generation journal (%d)", len(jobs)))
	for _, job := range jobs {
		mark := "…"
		switch job.Status {
		case models.JobSucceeded:
			mark = "✓"
		case models.JobFailed:
			mark = "✗"
		}

		r.writePlain("%s %4d  %s  %s · %s  %s\n", mark, job.Sequence, job.StartedAt.Local().Format("2006-01-02 15:04"),
			job.Mode.Label(), job.Model, job.Prompt)
		switch {
		case job.Error != "":
			r.writePlain("        %s\n", job.Error)
		case job.RecordID != nil:
			r.writePlain("        #%d %s\n", *job.RecordID, job.AssetPath)
		}
	}
	return nil
}
