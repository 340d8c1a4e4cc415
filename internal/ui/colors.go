package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/studio/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// badgeColors tints the type badge per media type.
var badgeColors = map[models.MediaType]string{
	models.Image: "#3B82F6",
	models.Audio: "#10B981",
	models.Video: "#F59E0B",
}

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title    lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	disabled lipgloss.Style
}

var _ Painter = (*Palette)(nil)

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:    NewBold(t).MarginBottom(1),
		ok:       NewBold(s),
		err:      NewBold(e),
		warn:     NewStyle(w),
		help:     NewEm(h),
		tab:      NewStyle(h).Padding(0, 1),
		tabOn:    NewBold("#FFFFFF").Background(lipgloss.Color(t)).Padding(0, 1),
		disabled: NewStyle(h).Faint(true),
	}
}

func (p *Palette) On(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Background(c).Render(s)
}

func (p *Palette) As(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

// Badge renders the media type label in its color.
func (p *Palette) Badge(t models.MediaType) string {
	c, ok := badgeColors[t]
	if !ok {
		c = "#626262"
	}
	return NewBold("#FFFFFF").Background(lipgloss.Color(c)).Padding(0, 1).Render(t.Label())
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
