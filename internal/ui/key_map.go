package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	// generation view
	generate  key.Binding
	nextMode  key.Binding
	prevMode  key.Binding
	nextModel key.Binding
	focus     key.Binding
	library   key.Binding

	// library view
	toggle   key.Binding
	filter   key.Binding
	nextPage key.Binding
	prevPage key.Binding
	refresh  key.Binding
	remove   key.Binding
	open     key.Binding
	save     key.Binding
	archive  key.Binding
	preview  key.Binding

	yes  key.Binding
	no   key.Binding
	back key.Binding
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		generate:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "generate")),
		nextMode:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next mode")),
		prevMode:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "prev mode")),
		nextModel: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "model")),
		focus:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "prompt/params")),
		library:   key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "library")),

		toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "select")),
		filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		nextPage: key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→/n", "next page")),
		prevPage: key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←/p", "prev page")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		remove:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "download (browser)")),
		save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save file")),
		archive:  key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "zip selected")),
		preview:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "preview")),

		yes:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:   key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		back: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.generate, k.nextMode, k.prevMode, k.nextModel, k.focus, k.library},
		{k.toggle, k.filter, k.nextPage, k.prevPage, k.refresh},
		{k.remove, k.open, k.save, k.archive, k.preview},
		{k.back, k.quit},
	}
}

func (k keyMap) generateHelp() []key.Binding {
	return []key.Binding{k.generate, k.nextMode, k.nextModel, k.focus, k.library, k.quit}
}

func (k keyMap) libraryHelp() []key.Binding {
	return []key.Binding{k.toggle, k.filter, k.prevPage, k.nextPage, k.remove, k.open, k.save, k.archive, k.preview, k.back}
}

func (k keyMap) confirmHelp() []key.Binding {
	return []key.Binding{k.yes, k.no}
}
