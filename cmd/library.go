package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/studio/internal/formatter"
	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/services"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/desertthunder/studio/internal/tasks"
	"github.com/urfave/cli/v3"
)

// browse loads the page and filter named by the command's flags.
func (r *Runner) browse(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireService(); err != nil {
		return err
	}

	filter, err := models.ParseFilter(cmd.String("filter"))
	if err != nil {
		return err
	}
	return r.library.Browse(ctx, filter, int(cmd.Int("page")))
}

// selectOnPage loads the page and marks ids, failing on ids that are not on it.
func (r *Runner) selectOnPage(ctx context.Context, cmd *cli.Command, ids []int64) error {
	if err := r.browse(ctx, cmd); err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.library.SetSelected(id, true); err != nil {
			return fmt.Errorf("%w (use --page/--filter to locate it)", err)
		}
	}
	return nil
}

// LibraryList prints one page of records.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	if err := r.browse(ctx, cmd); err != nil {
		return err
	}

	if cmd.Bool("json") {
		state := r.library.State()
		return r.writeJSON(map[string]any{
			"records":     state.Records,
			"total":       state.Total,
			"page":        state.Page,
			"page_size":   state.PageSize,
			"total_pages": formatter.TotalPages(state.Total, state.PageSize),
			"filter":      state.Filter,
		}, cmd.Bool("pretty"))
	}

	return r.writePlain("%s", r.library.View().Text())
}

// LibraryDelete deletes one record, or a batch of records from the same page.
func (r *Runner) LibraryDelete(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	r.assumeYes = cmd.Bool("yes")

	if len(ids) == 1 {
		if err := r.requireService(); err != nil {
			return err
		}
		if err := r.library.Delete(ctx, ids[0]); err != nil {
			if errors.Is(err, shared.ErrCancelled) {
				return r.writePlain("已取消\n")
			}
			return fmt.Errorf("%s: %w", tasks.DeleteFailed, err)
		}
		return r.writePlain("✓ 已删除 #%d\n", ids[0])
	}

	if err := r.selectOnPage(ctx, cmd, ids); err != nil {
		return err
	}

	progress, done := r.reportProgress(len(ids))
	deleted, err := r.library.DeleteSelected(ctx, progress)
	done()

	switch {
	case errors.Is(err, shared.ErrCancelled):
		return r.writePlain("已取消\n")
	case err != nil:
		r.writePlain("已删除 %d / %d 条记录\n", deleted, len(ids))
		return fmt.Errorf("%s: %w", tasks.DeleteFailed, err)
	}
	return r.writePlain("✓ 已删除 %d 条记录\n", deleted)
}

// LibraryDownload saves one record, or the zip archive of several, to disk.
func (r *Runner) LibraryDownload(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if err := r.requireService(); err != nil {
		return err
	}

	if len(ids) == 1 {
		if cmd.Bool("browser") {
			return r.library.OpenDownload(ids[0])
		}
		if err := r.browse(ctx, cmd); err != nil {
			r.logger.Warn("could not load page, using the record id as file name", "error", err)
		}
		path, n, err := r.library.DownloadTo(ctx, ids[0], cmd.String("output"))
		if err != nil {
			return fmt.Errorf("%s: %w", tasks.DownloadFailed, err)
		}
		return r.writePlain("✓ %s (%d bytes)\n", path, n)
	}

	if err := r.selectOnPage(ctx, cmd, ids); err != nil {
		return err
	}

	progress, done := r.reportProgress(len(ids))
	path, n, err := r.library.DownloadSelected(ctx, progress)
	done()
	if err != nil {
		return fmt.Errorf("%s: %w", tasks.DownloadFailed, err)
	}
	return r.writePlain("✓ %s (%d records, %d bytes)\n", path, len(ids), n)
}

// LibraryPreview opens a record's asset the way a fresh generation would be shown.
func (r *Runner) LibraryPreview(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if err := r.browse(ctx, cmd); err != nil {
		return err
	}

	rec, ok := r.library.Record(ids[0])
	if !ok {
		return fmt.Errorf("%w: #%d is not on this page", shared.ErrRecordNotFound, ids[0])
	}
	if err := r.generator.PreviewRecord(rec); err != nil {
		return err
	}
	return r.writePlain("%s · %s\n", rec.Type.Label(), r.service.ResolveURL(rec.Path))
}

// LibraryImport registers an asset URL as a record.
func (r *Runner) LibraryImport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireService(); err != nil {
		return err
	}

	mt, err := models.ParseMediaType(cmd.String("type"))
	if err != nil {
		return err
	}

	rec, err := r.library.Import(ctx, services.CreateRecordRequest{
		MediaType: mt,
		Model:     cmd.String("model"),
		Prompt:    cmd.String("prompt"),
		Style:     cmd.String("style"),
		Voice:     cmd.String("voice"),
		URL:       cmd.String("url"),
	})
	if err != nil {
		return err
	}
	return r.writePlain("✓ #%d %s %s\n", rec.ID, rec.Type.Label(), rec.Path)
}

// LibraryExport writes one page of records to a file.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.browse(ctx, cmd); err != nil {
		return err
	}

	path, err := formatter.WriteExport(r.library.State(), format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("exported library page", "path", path, "format", format)
	return r.writePlain("✓ %s\n", path)
}
