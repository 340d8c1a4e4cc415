package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/desertthunder/studio/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive generation and library interface.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireService(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	// the TUI asks in its own confirm view
	r.assumeYes = true

	journal, closeJournal := r.openJournal()
	defer closeJournal()
	if journal != nil {
		r.generator.SetJournal(journal)
	}

	model := ui.NewModel(ctx, r.generator, r.library)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
