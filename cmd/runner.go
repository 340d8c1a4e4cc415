package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/studio/internal/repositories"
	"github.com/desertthunder/studio/internal/services"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/desertthunder/studio/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	service    *services.StudioService
	library    *tasks.Library
	generator  *tasks.Generator
	previewer  tasks.Previewer
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
	assumeYes  bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    *services.StudioService
	Previewer  tasks.Previewer // default: [tasks.BrowserPreviewer]
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration.
//
// Without a Service one is built from the config; a config the client cannot use leaves
// the runner without a service and commands that need one fail with [shared.ErrServiceUnavailable].
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		previewer:  opts.Previewer,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
	}

	if r.service == nil {
		svc, err := newService(opts.Config)
		if err != nil {
			r.logger.Warn("studio service not configured", "error", err)
		} else {
			r.service = svc
		}
	}

	if r.service != nil {
		r.wire()
	}
	return r
}

// newService builds a [services.StudioService] from the server and auth config sections.
func newService(config *shared.Config) (*services.StudioService, error) {
	return services.NewStudioService(services.StudioOpts{
		BaseURL:    config.Server.BaseURL,
		Cookie:     config.Auth.Cookie,
		CSRFCookie: config.Auth.CSRFCookie,
		CSRFHeader: config.Auth.CSRFHeader,
		Timeout:    config.Server.Timeout(),
	})
}

// wire builds the library and generator over the current service and logger.
func (r *Runner) wire() {
	if r.previewer == nil {
		r.previewer = tasks.BrowserPreviewer{Resolve: r.service.ResolveURL}
	}

	r.library = tasks.NewLibrary(tasks.LibraryOpts{
		Service:       r.service,
		Logger:        r.logger,
		PageSize:      r.config.Library.PageSize,
		DownloadDir:   r.config.Library.DownloadDir,
		ArchiveName:   r.config.Library.ArchiveName,
		DeleteRate:    r.config.Library.DeleteRate,
		DeleteWorkers: r.config.Library.DeleteWorkers,
		Confirm:       r.confirm,
	})
	r.generator = tasks.NewGenerator(tasks.GeneratorOpts{
		Service:   r.service,
		Sink:      r.library,
		Previewer: r.previewer,
		Logger:    r.logger,
	})
}

// SetLogger replaces the logger and rebuilds the components that captured the old one.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	if r.service != nil {
		r.wire()
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, generateCommand, libraryCommand, journalCommand, apiCommand, sandboxCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireService() error {
	if r.service == nil {
		return fmt.Errorf("%w: check [server] and [auth] in %s", shared.ErrServiceUnavailable, r.configName())
	}
	return nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// openJournal opens the configured journal database.
//
// A nil repository means journaling is off; the returned close func is always safe to call.
func (r *Runner) openJournal() (*repositories.GenerationJobRepository, func()) {
	if r.config.Database.Path == "" {
		return nil, func() {}
	}

	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		r.logger.Warn("journal unavailable", "path", r.config.Database.Path, "error", err)
		return nil, func() {}
	}
	return repositories.NewGenerationJobRepository(db), func() { closeDB(db, r.logger) }
}

func closeDB(db *sql.DB, logger *log.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}

// confirm asks a yes/no question on the runner's input. --yes answers for the user.
func (r *Runner) confirm(prompt string) bool {
	if r.assumeYes {
		return true
	}
	if err := r.writePlain("%s [y/N]: ", prompt); err != nil {
		return false
	}

	line, err := r.input.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "是":
		return true
	default:
		return false
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
