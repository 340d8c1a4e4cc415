package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/services"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/desertthunder/studio/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate submits one generation request for the chosen mode and prints the record.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireService(); err != nil {
		return err
	}

	mode, err := models.ParseMediaType(cmd.String("mode"))
	if err != nil {
		return err
	}

	previewer := r.previewer
	if cmd.Bool("no-preview") {
		previewer = nil
	}

	opts := tasks.GeneratorOpts{
		Service:   r.service,
		Sink:      r.library,
		Previewer: previewer,
		Logger:    r.logger,
		Mode:      mode,
	}
	journal, closeJournal := r.openJournal()
	defer closeJournal()
	if journal != nil {
		opts.Journal = journal
	}
	gen := tasks.NewGenerator(opts)

	progress, done := r.reportProgress(1)
	rec, err := gen.Generate(ctx, progress, services.GenerateRequest{
		Prompt: strings.Join(cmd.Args().Slice(), " "),
		Model:  cmd.String("model"),
		Style:  cmd.String("style"),
		Voice:  cmd.String("voice"),
	})
	done()

	if err != nil {
		return fmt.Errorf("%s: %w", tasks.StatusFailed, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(rec, true)
	}

	r.writePlain("✓ %s\n", tasks.StatusSucceeded)
	r.writePlain("  #%d %s · %s\n", rec.ID, rec.Type.Label(), rec.Model)
	r.writePlain("  %s\n", r.service.ResolveURL(rec.Path))
	return nil
}

// progressSlack covers the updates a task sends besides its per-record ones.
const progressSlack = 4

// reportProgress logs updates from a long-running task until done is called.
//
// The buffer holds n per-record updates plus slack, so a task over n records never drops one
// even when logging falls behind.
func (r *Runner) reportProgress(n int) (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, max(n, 0)+progressSlack)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if update.Phase == tasks.GenerateFailed || strings.Contains(update.Message, "✗") {
				r.logger.Warn(update.Message, "phase", update.Phase)
				continue
			}
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	return progress, func() {
		close(progress)
		wg.Wait()
	}
}

// parseIDs converts positional record ids.
func parseIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one record id", shared.ErrMissingArgument)
	}

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: record id %q", shared.ErrInvalidArgument, arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
