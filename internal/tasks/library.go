package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/desertthunder/studio/internal/formatter"
	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/services"
	"github.com/desertthunder/studio/internal/shared"
)

const (
	ConfirmDeleteOne = "确定删除该记录？"
	DeleteFailed     = "删除失败"
	DownloadFailed   = "下载失败"
)

// ConfirmDeleteMany is the prompt shown before a batch delete of n records.
func ConfirmDeleteMany(n int) string {
	return fmt.Sprintf("确定删除选中的 %d 条记录？", n)
}

// Confirmer asks the user a yes/no question.
type Confirmer func(prompt string) bool

// LibraryOpts configures a [Library].
type LibraryOpts struct {
	Service       services.Service
	Logger        *log.Logger
	PageSize      int     // default: 10
	DownloadDir   string  // default: current directory
	ArchiveName   string  // default: media_batch.zip
	DeleteRate    float64 // batch delete requests per second (default: 5)
	DeleteWorkers int     // concurrent batch deletes (default: 4)
	Confirm       Confirmer
	Open          func(url string) error // default: [shared.OpenBrowser]
}

// Library owns the cached page of records, the filter, the page and the selection set.
//
// It is the single source of truth for the browsing view and is always re-fetched from the
// server; every mutation clears the selection.
type Library struct {
	service services.Service
	logger  *log.Logger
	opts    LibraryOpts

	mu       sync.Mutex
	records  []models.MediaRecord
	total    int
	page     int
	filter   models.Filter
	selected map[int64]bool
}

var _ RecordSink = (*Library)(nil)

// NewLibrary creates an empty library on page 1 with no filter.
func NewLibrary(opts LibraryOpts) *Library {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if opts.ArchiveName == "" {
		opts.ArchiveName = "media_batch.zip"
	}
	if opts.DeleteRate <= 0 {
		opts.DeleteRate = 5.0
	}
	if opts.DeleteWorkers <= 0 {
		opts.DeleteWorkers = 4
	}
	if opts.Confirm == nil {
		opts.Confirm = func(string) bool { return true }
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Library{
		service:  opts.Service,
		logger:   logger,
		opts:     opts,
		page:     1,
		filter:   models.FilterAll,
		selected: map[int64]bool{},
	}
}

// State returns a snapshot suitable for [formatter.RenderLibrary].
func (l *Library) State() formatter.LibraryState {
	l.mu.Lock()
	defer l.mu.Unlock()

	selected := make(map[int64]bool, len(l.selected))
	for id := range l.selected {
		selected[id] = true
	}
	return formatter.LibraryState{
		Records:  slices.Clone(l.records),
		Total:    l.total,
		Page:     l.page,
		PageSize: l.opts.PageSize,
		Filter:   l.filter,
		Selected: selected,
	}
}

// View renders the current state.
func (l *Library) View() formatter.LibraryView {
	return formatter.RenderLibrary(l.State())
}

// Load fetches page with the current filter and replaces the cache wholesale.
//
// On failure the previous view is left in place and the error is logged and returned.
func (l *Library) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}

	l.mu.Lock()
	filter := l.filter
	l.mu.Unlock()

	result, err := l.service.ListRecords(ctx, services.ListQuery{Page: page, PageSize: l.opts.PageSize, Filter: filter})
	if err != nil {
		l.logger.Warn("failed to load records", "page", page, "filter", filter, "error", err)
		return fmt.Errorf("failed to load records: %w", err)
	}

	for _, skipped := range result.Skipped {
		l.logger.Warn("skipping record", "error", skipped)
	}

	l.mu.Lock()
	l.records = result.Records
	l.total = result.Total
	l.page = page
	l.clearSelection()
	l.mu.Unlock()

	return nil
}

// Refresh reloads the current page.
func (l *Library) Refresh(ctx context.Context) error {
	l.mu.Lock()
	page := l.page
	l.mu.Unlock()
	return l.Load(ctx, page)
}

// SetFilter replaces the filter and loads page 1.
func (l *Library) SetFilter(ctx context.Context, f models.Filter) error {
	return l.Browse(ctx, f, 1)
}

// Browse replaces the filter and loads page with it.
//
// The filter and page are committed before the fetch, so a failed load leaves the stale
// records under the new filter and page.
func (l *Library) Browse(ctx context.Context, f models.Filter, page int) error {
	if f == "" {
		f = models.FilterAll
	}
	if page < 1 {
		page = 1
	}

	l.mu.Lock()
	l.filter = f
	l.page = page
	l.clearSelection()
	l.mu.Unlock()

	return l.Load(ctx, page)
}

// TotalPages returns the page count for the server total.
func (l *Library) TotalPages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return formatter.TotalPages(l.total, l.opts.PageSize)
}

// NextPage loads the following page; a no-op on the last page.
func (l *Library) NextPage(ctx context.Context) error {
	l.mu.Lock()
	page, pages := l.page, formatter.TotalPages(l.total, l.opts.PageSize)
	l.mu.Unlock()

	if page >= pages {
		return nil
	}
	return l.Load(ctx, page+1)
}

// PrevPage loads the preceding page; a no-op on page 1.
func (l *Library) PrevPage(ctx context.Context) error {
	l.mu.Lock()
	page := l.page
	l.mu.Unlock()

	if page <= 1 {
		return nil
	}
	return l.Load(ctx, page-1)
}

// Toggle flips the selection of a record on the current page and returns its new state.
func (l *Library) Toggle(id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(id) < 0 {
		return false, fmt.Errorf("%w: #%d is not on this page", shared.ErrRecordNotFound, id)
	}
	if l.selected[id] {
		delete(l.selected, id)
		return false, nil
	}
	l.selected[id] = true
	return true, nil
}

// SetSelected marks or unmarks a record on the current page.
func (l *Library) SetSelected(id int64, on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(id) < 0 {
		return fmt.Errorf("%w: #%d is not on this page", shared.ErrRecordNotFound, id)
	}
	if on {
		l.selected[id] = true
	} else {
		delete(l.selected, id)
	}
	return nil
}

// Selected returns the selected ids in page order.
func (l *Library) Selected() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedIDs()
}

// Record returns the cached record with id.
func (l *Library) Record(id int64) (models.MediaRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		return l.records[i], true
	}
	return models.MediaRecord{}, false
}

// Add puts a new record at the head of the cache.
func (l *Library) Add(rec models.MediaRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]models.MediaRecord{rec}, l.records...)
	l.total++
	l.clearSelection()
}

// Import registers an externally produced asset and adds the returned record.
func (l *Library) Import(ctx context.Context, req services.CreateRecordRequest) (models.MediaRecord, error) {
	rec, err := l.service.CreateRecord(ctx, req)
	if err != nil {
		return models.MediaRecord{}, fmt.Errorf("failed to create record: %w", err)
	}
	l.Add(rec)
	return rec, nil
}

// Delete removes one record after confirmation.
//
// A declined confirmation returns [shared.ErrCancelled]; a failed request leaves the cache untouched.
func (l *Library) Delete(ctx context.Context, id int64) error {
	if !l.opts.Confirm(ConfirmDeleteOne) {
		return shared.ErrCancelled
	}
	return l.deleteOne(ctx, id)
}

// DeleteSelected removes every selected record after a single confirmation.
//
// Deletes run concurrently and independently: one failure cancels nothing. Once all have
// finished the selection is cleared and the current page is fetched exactly once.
// It returns how many deletes succeeded and the joined per-record failures.
func (l *Library) DeleteSelected(ctx context.Context, progress chan<- ProgressUpdate) (int, error) {
	ids := l.Selected()
	if len(ids) == 0 {
		return 0, shared.ErrEmptySelection
	}
	if !l.opts.Confirm(ConfirmDeleteMany(len(ids))) {
		return 0, shared.ErrCancelled
	}

	limiter := rate.NewLimiter(rate.Limit(l.opts.DeleteRate), 1)

	var (
		g       errgroup.Group
		mu      sync.Mutex
		errs    []error
		done    int
		deleted int
	)
	g.SetLimit(l.opts.DeleteWorkers)

	for _, id := range ids {
		g.Go(func() error {
			err := limiter.Wait(ctx)
			if err == nil {
				err = l.deleteOne(ctx, id)
			}

			mu.Lock()
			done++
			step := done
			if err != nil {
				errs = append(errs, fmt.Errorf("#%d: %w", id, err))
			} else {
				deleted++
			}
			mu.Unlock()

			sendProgress(progress, deleteRecordUpdate(step, len(ids), id, err))
			return nil
		})
	}
	g.Wait()

	l.mu.Lock()
	l.clearSelection()
	page := l.page
	l.mu.Unlock()

	sendProgress(progress, reconcileUpdate(page))
	if err := l.Refresh(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		l.logger.Warn("batch delete finished with errors", "deleted", deleted, "failed", len(ids)-deleted)
	}
	return deleted, errors.Join(errs...)
}

// OpenDownload opens the per-record download endpoint in the browser.
func (l *Library) OpenDownload(id int64) error {
	return l.opts.Open(l.service.DownloadURL(id))
}

// DownloadTo streams one record into dest, defaulting to the download directory and the
// asset's file name.
func (l *Library) DownloadTo(ctx context.Context, id int64, dest string) (string, int64, error) {
	if dest == "" {
		name := strconv.FormatInt(id, 10)
		if rec, ok := l.Record(id); ok && rec.Path != "" {
			name = path.Base(rec.Path)
		}
		dest = filepath.Join(l.opts.DownloadDir, name)
	}

	n, err := writeAtomic(dest, func(w io.Writer) (int64, error) {
		return l.service.DownloadRecord(ctx, id, w)
	})
	if err != nil {
		return "", 0, err
	}
	return dest, n, nil
}

// DownloadSelected saves the batch archive of the selection into the download directory.
//
// Nothing is written when the request fails.
func (l *Library) DownloadSelected(ctx context.Context, progress chan<- ProgressUpdate) (string, int64, error) {
	ids := l.Selected()
	if len(ids) == 0 {
		return "", 0, shared.ErrEmptySelection
	}

	dest := filepath.Join(l.opts.DownloadDir, l.opts.ArchiveName)
	n, err := writeAtomic(dest, func(w io.Writer) (int64, error) {
		return l.service.DownloadBatch(ctx, ids, w)
	})
	if err != nil {
		l.logger.Error("batch download failed", "ids", len(ids), "error", err)
		return "", 0, err
	}

	sendProgress(progress, downloadUpdate(dest, n))
	return dest, n, nil
}

// deleteOne issues the delete request and drops the record from the cache on success.
func (l *Library) deleteOne(ctx context.Context, id int64) error {
	if err := l.service.DeleteRecord(ctx, id); err != nil {
		l.logger.Warn("failed to delete record", "id", id, "error", err)
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		l.records = slices.Delete(l.records, i, i+1)
	}
	l.total = max(0, l.total-1)
	l.clearSelection()
	return nil
}

// clearSelection empties the selection set; callers hold l.mu.
func (l *Library) clearSelection() {
	clear(l.selected)
}

func (l *Library) selectedIDs() []int64 {
	ids := make([]int64, 0, len(l.selected))
	for _, rec := range l.records {
		if l.selected[rec.ID] {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func (l *Library) indexOf(id int64) int {
	return slices.IndexFunc(l.records, func(r models.MediaRecord) bool { return r.ID == id })
}

// writeAtomic writes through a temp file in dest's directory and renames it into place.
func writeAtomic(dest string, write func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".studio-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := write(tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", dest, err)
	}
	return n, nil
}
