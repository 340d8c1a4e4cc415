package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/studio/internal/formatter"
	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/services"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/desertthunder/studio/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GenerateView ViewState = iota
	LibraryView
	ConfirmView
)

// pendingDelete is what the confirm view will delete on "y".
type pendingDelete struct {
	prompt string
	id     int64 // single delete; zero for the selection
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	generator *tasks.Generator
	library   *tasks.Library
	width     int
	height    int

	prompt   textinput.Model
	param    textinput.Model
	modelIdx int

	records  list.Model
	pending  *pendingDelete
	progress tasks.ProgressUpdate
	working  bool
	notice   string
	noticeOK bool

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model over the generator and library.
func NewModel(ctx context.Context, generator *tasks.Generator, library *tasks.Library) *Model {
	prompt := textinput.New()
	prompt.Placeholder = "输入用于生成的关键词或描述"
	prompt.CharLimit = 1000
	prompt.Focus()

	m := &Model{
		ctx:       ctx,
		view:      GenerateView,
		generator: generator,
		library:   library,
		prompt:    prompt,
		param:     textinput.New(),
		records:   newRecordList(),
		help:      help.New(),
		keys:      newKeyMap(),
	}
	m.resetParams()
	return m
}

// Init starts the cursor blink; records are fetched when the library opens.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.prompt.Width = max(msg.Width-12, 20)
		m.param.Width = max(msg.Width-12, 20)
		m.records.SetSize(msg.Width-4, max(msg.Height-12, 4))
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case GenerateView:
			return m.handleGenerateKeys(msg)
		case LibraryView:
			return m.handleLibraryKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		data := msg.data.(progressData)
		m.progress = data.update
		return m, waitForProgress(data.ch)

	case MsgGenerated:
		data := msg.data.(generatedData)
		if data.err == nil {
			m.prompt.SetValue("")
			m.setNotice(fmt.Sprintf("#%d %s", data.record.ID, data.record.Path), true)
		} else {
			m.setNotice(services.Describe(data.err, tasks.StatusFailed), false)
		}
		return m, nil

	case MsgRecordsLoaded:
		// load failures are logged by the library; the stale page stays on screen
		m.working = false
		m.syncRecords()
		return m, nil

	case MsgDeleted:
		data := msg.data.(deletedData)
		m.working = false
		switch {
		case errors.Is(data.err, shared.ErrCancelled):
		case data.err != nil:
			m.setNotice(fmt.Sprintf("%s：%s", tasks.DeleteFailed, services.Describe(data.err, tasks.DeleteFailed)), false)
		default:
			m.setNotice(fmt.Sprintf("已删除 %d 条记录", data.count), true)
		}
		m.syncRecords()
		return m, nil

	case MsgDownloaded:
		data := msg.data.(downloadedData)
		m.working = false
		if data.err != nil {
			m.setNotice(fmt.Sprintf("%s：%s", tasks.DownloadFailed, services.Describe(data.err, tasks.DownloadFailed)), false)
		} else {
			m.setNotice(fmt.Sprintf("已保存 %s (%d bytes)", data.path, data.bytes), true)
		}
		return m, nil

	case MsgOpened:
		if err, _ := msg.data.(error); err != nil {
			m.setNotice(err.Error(), false)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case GenerateView:
		return m.renderGenerate()
	case LibraryView:
		return m.renderLibrary()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) handleGenerateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.generate):
		if m.generator.Busy() {
			m.setNotice(shared.ErrBusy.Error(), false)
			return m, nil
		}
		return m, m.startGenerate()

	case key.Matches(msg, m.keys.nextMode):
		return m, m.switchMode(1)

	case key.Matches(msg, m.keys.prevMode):
		return m, m.switchMode(-1)

	case key.Matches(msg, m.keys.nextModel):
		m.modelIdx = (m.modelIdx + 1) % len(m.generator.Mode().Models())
		return m, nil

	case key.Matches(msg, m.keys.focus):
		if m.prompt.Focused() {
			m.prompt.Blur()
			return m, m.param.Focus()
		}
		m.param.Blur()
		return m, m.prompt.Focus()

	case key.Matches(msg, m.keys.library):
		m.view = LibraryView
		m.notice = ""
		return m, m.load(m.library.Refresh)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.working {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = GenerateView
		m.notice = ""
		return m, m.prompt.Focus()

	case key.Matches(msg, m.keys.toggle):
		if rec, ok := m.focused(); ok {
			if _, err := m.library.Toggle(rec.ID); err != nil {
				m.setNotice(err.Error(), false)
			}
			m.syncRecords()
		}
		return m, nil

	case key.Matches(msg, m.keys.filter):
		next := nextFilter(m.library.State().Filter)
		return m, m.load(func(ctx context.Context) error { return m.library.SetFilter(ctx, next) })

	case key.Matches(msg, m.keys.nextPage):
		return m, m.load(m.library.NextPage)

	case key.Matches(msg, m.keys.prevPage):
		return m, m.load(m.library.PrevPage)

	case key.Matches(msg, m.keys.refresh):
		return m, m.load(m.library.Refresh)

	case key.Matches(msg, m.keys.remove):
		if n := len(m.library.Selected()); n > 0 {
			m.pending = &pendingDelete{prompt: tasks.ConfirmDeleteMany(n)}
			m.view = ConfirmView
		} else if rec, ok := m.focused(); ok {
			m.pending = &pendingDelete{prompt: tasks.ConfirmDeleteOne, id: rec.ID}
			m.view = ConfirmView
		}
		return m, nil

	case key.Matches(msg, m.keys.open):
		if rec, ok := m.focused(); ok {
			id := rec.ID
			return m, func() tea.Msg { return openedMsg(m.library.OpenDownload(id)) }
		}
		return m, nil

	case key.Matches(msg, m.keys.save):
		if rec, ok := m.focused(); ok {
			id := rec.ID
			m.working = true
			return m, func() tea.Msg {
				path, n, err := m.library.DownloadTo(m.ctx, id, "")
				return downloadedMsg(path, n, err)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.archive):
		if len(m.library.Selected()) == 0 {
			return m, nil
		}
		m.working = true
		return m, m.track(func(progress chan<- tasks.ProgressUpdate) tea.Msg {
			path, n, err := m.library.DownloadSelected(m.ctx, progress)
			return downloadedMsg(path, n, err)
		})

	case key.Matches(msg, m.keys.preview):
		rec, ok := m.focused()
		if !ok {
			return m, nil
		}
		if err := m.generator.PreviewRecord(rec); err != nil {
			m.setNotice(err.Error(), false)
			return m, nil
		}
		m.resetParams()
		if i := slices.Index(rec.Type.Models(), rec.Model); i >= 0 {
			m.modelIdx = i
		}
		m.prompt.SetValue(rec.Prompt)
		m.view = GenerateView
		m.setNotice(fmt.Sprintf("#%d %s", rec.ID, rec.Path), true)
		return m, m.prompt.Focus()
	}

	var cmd tea.Cmd
	m.records, cmd = m.records.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		pending := m.pending
		m.pending = nil
		m.view = LibraryView
		m.working = true
		if pending.id != 0 {
			return m, func() tea.Msg {
				err := m.library.Delete(m.ctx, pending.id)
				if err != nil {
					return deletedMsg(0, err)
				}
				return deletedMsg(1, nil)
			}
		}
		return m, m.track(func(progress chan<- tasks.ProgressUpdate) tea.Msg {
			n, err := m.library.DeleteSelected(m.ctx, progress)
			return deletedMsg(n, err)
		})

	case key.Matches(msg, m.keys.no):
		m.pending = nil
		m.view = LibraryView
	}
	return m, nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch m.view {
	case GenerateView:
		m.prompt, cmd = m.prompt.Update(msg)
		cmds = append(cmds, cmd)
		m.param, cmd = m.param.Update(msg)
		cmds = append(cmds, cmd)
	case LibraryView:
		m.records, cmd = m.records.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// startGenerate submits the form; the generator enforces single flight and validation.
func (m *Model) startGenerate() tea.Cmd {
	mode := m.generator.Mode()
	req := services.GenerateRequest{
		Prompt: m.prompt.Value(),
		Model:  m.currentModel(),
	}
	if mode.UsesVoice() {
		req.Voice = strings.TrimSpace(m.param.Value())
	} else {
		req.Style = strings.TrimSpace(m.param.Value())
	}

	m.notice = ""
	return m.track(func(progress chan<- tasks.ProgressUpdate) tea.Msg {
		rec, err := m.generator.Generate(m.ctx, progress, req)
		return generatedMsg(rec, err)
	})
}

// switchMode moves through the modes; a pending generation keeps its own mode.
func (m *Model) switchMode(step int) tea.Cmd {
	modes := models.MediaTypes
	i := slices.Index(modes, m.generator.Mode())
	next := modes[(i+step+len(modes))%len(modes)]

	if err := m.generator.SetMode(next); err != nil {
		m.setNotice(err.Error(), false)
		return nil
	}
	m.notice = ""
	m.resetParams()
	return nil
}

// resetParams clears model choice and the style/voice field for the current mode.
func (m *Model) resetParams() {
	m.modelIdx = 0
	m.param.SetValue("")
	if m.generator.Mode().UsesVoice() {
		m.param.Placeholder = "人声 (voice)"
	} else {
		m.param.Placeholder = "风格 (style)"
	}
}

func (m *Model) currentModel() string {
	names := m.generator.Mode().Models()
	if len(names) == 0 {
		return ""
	}
	return names[m.modelIdx%len(names)]
}

// load runs a library fetch and reports it as [MsgRecordsLoaded].
func (m *Model) load(fn func(context.Context) error) tea.Cmd {
	m.working = true
	return func() tea.Msg {
		return recordsLoadedMsg(fn(m.ctx))
	}
}

// track runs work with a progress channel and relays its updates until work returns.
func (m *Model) track(work func(progress chan<- tasks.ProgressUpdate) tea.Msg) tea.Cmd {
	ch := make(chan tasks.ProgressUpdate, 50)
	run := func() tea.Msg {
		defer close(ch)
		return work(ch)
	}
	return tea.Batch(run, waitForProgress(ch))
}

func waitForProgress(ch <-chan tasks.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg(update, ch)
	}
}

// syncRecords rebuilds the list items from the library, keeping the cursor where possible.
func (m *Model) syncRecords() {
	cursor := m.records.Index()
	view := m.library.View()
	m.records.SetItems(recordItems(view.Rows))
	if n := len(view.Rows); n > 0 {
		m.records.Select(min(cursor, n-1))
	}
}

func (m *Model) focused() (models.MediaRecord, bool) {
	item, ok := m.records.SelectedItem().(recordItem)
	if !ok {
		return models.MediaRecord{}, false
	}
	return m.library.Record(item.row.ID)
}

func (m *Model) setNotice(s string, ok bool) {
	m.notice = s
	m.noticeOK = ok
}

func nextFilter(current models.Filter) models.Filter {
	i := slices.Index(models.Filters, current)
	return models.Filters[(i+1)%len(models.Filters)]
}

func (m *Model) renderTabs() string {
	current := m.generator.Mode()
	tabs := make([]string, 0, len(models.MediaTypes))
	for _, mt := range models.MediaTypes {
		switch {
		case mt == current:
			tabs = append(tabs, styles.tabOn.Render(mt.Label()))
		default:
			tabs = append(tabs, styles.tab.Render(mt.Label()))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *Model) renderGenerate() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Studio"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	mode := m.generator.Mode()
	fmt.Fprintf(&b, "模型: %s  %s\n\n", styles.ok.Render(m.currentModel()),
		styles.help.Render(strings.Join(mode.Models(), " / ")))
	fmt.Fprintf(&b, "%s\n%s\n\n", m.prompt.View(), m.param.View())

	status := m.generator.Status()
	switch status.State {
	case tasks.Busy:
		b.WriteString(styles.warn.Render(status.Message))
	case tasks.Succeeded:
		b.WriteString(styles.ok.Render(status.Message))
	case tasks.Failed:
		b.WriteString(styles.err.Render(status.Message))
	}
	b.WriteString("\n")
	b.WriteString(m.renderNotice())

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.generateHelp()))
	return b.String()
}

func (m *Model) renderLibrary() string {
	state := m.library.State()
	view := formatter.RenderLibrary(state)

	var b strings.Builder
	b.WriteString(styles.title.Render("生成记录"))
	b.WriteString("\n")

	pills := make([]string, 0, len(models.Filters))
	for _, f := range models.Filters {
		if f == state.Filter {
			pills = append(pills, styles.tabOn.Render(f.Label()))
		} else {
			pills = append(pills, styles.tab.Render(f.Label()))
		}
	}
	b.WriteString(strings.Join(pills, " "))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s  %s\n\n", view.Stats, styles.help.Render(view.Selection.Summary))

	if view.Empty != "" {
		b.WriteString(styles.help.Render(view.Empty))
		b.WriteString("\n")
	} else {
		b.WriteString(m.records.View())
		b.WriteString("\n")
	}

	if p := view.Pagination; p != nil {
		b.WriteString(p.Text())
		b.WriteString("\n")
	}

	if m.working && m.progress.Message != "" {
		b.WriteString(styles.warn.Render(m.progress.Message))
		b.WriteString("\n")
	}
	if st := m.generator.Status(); st.State == tasks.Busy {
		b.WriteString(styles.disabled.Render(st.Message))
		b.WriteString("\n")
	}
	b.WriteString(m.renderNotice())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.libraryHelp()))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(m.pending.prompt)
	return fmt.Sprintf("%s\n\n%s", title, m.help.ShortHelpView(m.keys.confirmHelp()))
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeOK {
		return styles.ok.Render(m.notice)
	}
	return styles.err.Render(m.notice)
}
