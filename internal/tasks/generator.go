package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/services"
	"github.com/desertthunder/studio/internal/shared"
)

const (
	StatusSucceeded = "生成完成"
	StatusFailed    = "生成失败"
)

// Previewer shows a generated record: images are displayed, audio and video play.
type Previewer interface {
	Preview(rec models.MediaRecord) error
}

// RecordSink receives newly generated records. [*Library] implements it.
type RecordSink interface {
	Add(rec models.MediaRecord)
}

// Journal persists generation attempts. [*repositories.GenerationJobRepository] implements it.
type Journal interface {
	Create(job *models.GenerationJob) error
	Update(job *models.GenerationJob) error
}

// GenerationState is the generator's position in idle → in-flight → idle.
type GenerationState int

const (
	Idle GenerationState = iota
	Busy
	Succeeded
	Failed
)

// Status is what the generation view displays.
type Status struct {
	State   GenerationState
	Message string
	Record  *models.MediaRecord
}

// GeneratorOpts configures a [Generator].
type GeneratorOpts struct {
	Service   services.Service
	Sink      RecordSink // optional
	Previewer Previewer  // optional
	Journal   Journal    // optional
	Logger    *log.Logger
	Mode      models.MediaType
}

// Generator drives one generation request at a time for the current mode.
type Generator struct {
	service   services.Service
	sink      RecordSink
	previewer Previewer
	journal   Journal
	logger    *log.Logger

	busy   atomic.Bool
	mu     sync.Mutex
	mode   models.MediaType
	status Status
}

// NewGenerator creates a generator in image mode unless opts.Mode says otherwise.
func NewGenerator(opts GeneratorOpts) *Generator {
	mode := opts.Mode
	if !mode.Valid() {
		mode = models.Image
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		service:   opts.Service,
		sink:      opts.Sink,
		previewer: opts.Previewer,
		journal:   opts.Journal,
		logger:    logger,
		mode:      mode,
	}
}

// Busy reports whether a generation is in flight.
func (g *Generator) Busy() bool { return g.busy.Load() }

// Mode returns the current generation mode.
func (g *Generator) Mode() models.MediaType {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Status returns the last status set by a generation.
func (g *Generator) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// SetMode switches the generation mode.
//
// Switching is allowed while a generation is in flight; that request keeps the mode it was
// issued with and its status stays until it finishes.
func (g *Generator) SetMode(mode models.MediaType) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidMediaType, mode)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode != mode {
		g.mode = mode
		if !g.Busy() {
			g.status = Status{}
		}
	}
	return nil
}

// PreviewRecord replays a library record, switching to its mode first.
//
// Refused while generating.
func (g *Generator) PreviewRecord(rec models.MediaRecord) error {
	if g.Busy() {
		return shared.ErrBusy
	}
	if err := g.SetMode(rec.Type); err != nil {
		return err
	}

	g.mu.Lock()
	g.status = Status{State: Idle, Record: &rec}
	g.mu.Unlock()

	if g.previewer == nil {
		return nil
	}
	return g.previewer.Preview(rec)
}

// Generate issues exactly one generation request for the current mode.
//
// A call while another is in flight returns [shared.ErrBusy] without a request.
// The prompt is trimmed and must not be empty; an empty model selects the mode's default.
// On success the record is handed to the sink and the previewer.
func (g *Generator) Generate(ctx context.Context, progress chan<- ProgressUpdate, req services.GenerateRequest) (models.MediaRecord, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return models.MediaRecord{}, shared.ErrBusy
	}
	defer g.busy.Store(false)

	req, err := g.prepare(req)
	if err != nil {
		return models.MediaRecord{}, err
	}

	busyMsg := BusyMessage(req.Mode, req.Model)
	g.setStatus(Status{State: Busy, Message: busyMsg})
	sendProgress(progress, generatingUpdate(req.Mode, req.Model))
	g.logger.Info("generating", "mode", req.Mode, "model", req.Model)

	journal := g.currentJournal()
	job := g.startJob(journal, req)

	rec, err := g.service.Generate(ctx, req)
	if err != nil {
		msg := services.Describe(err, StatusFailed)
		g.finishJob(journal, job, nil, err)
		g.setStatus(Status{State: Failed, Message: StatusFailed})
		sendProgress(progress, generateFailedUpdate(msg))
		g.logger.Error("generation failed", "mode", req.Mode, "model", req.Model, "error", err)
		return models.MediaRecord{}, err
	}

	if rec.Provisional {
		g.logger.Warn("record has no server id, using client timestamp", "id", rec.ID)
	}

	g.finishJob(journal, job, &rec, nil)
	g.setStatus(Status{State: Succeeded, Message: StatusSucceeded, Record: &rec})
	sendProgress(progress, generatedUpdate(rec))

	if g.sink != nil {
		g.sink.Add(rec)
	}
	if g.previewer != nil {
		if err := g.previewer.Preview(rec); err != nil {
			g.logger.Warn("preview failed", "id", rec.ID, "path", rec.Path, "error", err)
		}
	}

	return rec, nil
}

// prepare validates req against the current mode and fills defaults.
func (g *Generator) prepare(req services.GenerateRequest) (services.GenerateRequest, error) {
	req.Mode = g.Mode()

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return req, shared.ErrEmptyPrompt
	}

	if req.Model == "" {
		req.Model = req.Mode.DefaultModel()
	}
	if !req.Mode.SupportsModel(req.Model) {
		return req, fmt.Errorf("%w: %q for %s (choose from %s)", shared.ErrInvalidModel, req.Model, req.Mode,
			strings.Join(req.Mode.Models(), ", "))
	}

	if req.Mode.UsesVoice() {
		req.Style = ""
	} else {
		req.Voice = ""
	}
	return req, nil
}

func (g *Generator) setStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

// SetJournal attaches the attempt journal; nil detaches it.
func (g *Generator) SetJournal(j Journal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.journal = j
}

func (g *Generator) currentJournal() Journal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.journal
}

// startJob records a pending attempt; journal failures are logged and otherwise ignored.
func (g *Generator) startJob(journal Journal, req services.GenerateRequest) *models.GenerationJob {
	if journal == nil {
		return nil
	}
	job := models.NewGenerationJob(req.Mode, req.Model, req.Prompt, req.Style, req.Voice)
	if err := journal.Create(job); err != nil {
		g.logger.Warn("failed to journal generation", "error", err)
		return nil
	}
	return job
}

func (g *Generator) finishJob(journal Journal, job *models.GenerationJob, rec *models.MediaRecord, genErr error) {
	if job == nil {
		return
	}
	if genErr != nil {
		job.Fail(genErr)
	} else {
		job.Succeed(*rec)
	}
	if err := journal.Update(job); err != nil {
		g.logger.Warn("failed to update journal", "job", job.ID, "error", err)
	}
}
