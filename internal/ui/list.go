package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/studio/internal/formatter"
)

var _ list.Item = recordItem{}

// recordItem wraps [formatter.RowView] to implement [list.Item].
type recordItem struct {
	row formatter.RowView
}

func (i recordItem) FilterValue() string { return i.row.Prompt }
func (i recordItem) Title() string {
	check := "☐"
	if i.row.Selected {
		check = "☑"
	}
	return fmt.Sprintf("%s %s #%d %s", check, styles.Badge(i.row.Type), i.row.ID, i.row.Prompt)
}
func (i recordItem) Description() string {
	if i.row.Time == "" {
		return i.row.Meta
	}
	return fmt.Sprintf("%s • %s", i.row.Meta, i.row.Time)
}

func recordItems(rows []formatter.RowView) []list.Item {
	items := make([]list.Item, len(rows))
	for i, row := range rows {
		items[i] = recordItem{row: row}
	}
	return items
}

func newRecordList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return l
}
