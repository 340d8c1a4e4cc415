package formatter

import (
	"fmt"
	"strings"

	"github.com/desertthunder/studio/internal/models"
)

const (
	NoRecords       = "暂无记录"
	NoMatches       = "当前筛选条件下暂无生成记录。"
	PromptMissing   = "（未填写关键词）"
	PrevPageLabel   = "上一页"
	NextPageLabel   = "下一页"
	missingMetadata = "-"
)

// LibraryState is a snapshot of the library manager's browsing state.
type LibraryState struct {
	Records  []models.MediaRecord
	Total    int
	Page     int
	PageSize int
	Filter   models.Filter
	Selected map[int64]bool
}

// LibraryView is the rendered library: what a page of records looks like on screen.
type LibraryView struct {
	Stats      string
	Empty      string // set when nothing matches the filter
	Selection  SelectionView
	Rows       []RowView
	Pagination *PaginationView // nil for a single page
}

// RowView is one record row.
type RowView struct {
	ID       int64
	Type     models.MediaType
	Badge    string
	Prompt   string
	Meta     string
	Time     string
	Selected bool
}

// SelectionView summarizes the selection set.
type SelectionView struct {
	Count   int
	Summary string
}

// PaginationView describes the pager below the rows.
type PaginationView struct {
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	Label      string
}

// TotalPages returns ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// RenderLibrary builds the view for state.
func RenderLibrary(state LibraryState) LibraryView {
	filter := state.Filter
	if filter == "" {
		filter = models.FilterAll
	}

	var view LibraryView
	visible := make([]models.MediaRecord, 0, len(state.Records))
	for _, rec := range state.Records {
		if filter.Matches(rec.Type) {
			visible = append(visible, rec)
		}
	}

	view.Stats = StatsLine(len(state.Records), state.Total, len(visible))
	if len(visible) == 0 {
		view.Empty = NoMatches
		return view
	}

	for _, rec := range visible {
		row := RenderRow(rec)
		row.Selected = state.Selected[rec.ID]
		if row.Selected {
			view.Selection.Count++
		}
		view.Rows = append(view.Rows, row)
	}
	view.Selection.Summary = SelectionSummary(view.Selection.Count)

	pages := TotalPages(state.Total, state.PageSize)
	if pages > 1 {
		view.Pagination = &PaginationView{
			Page:       state.Page,
			TotalPages: pages,
			HasPrev:    state.Page > 1,
			HasNext:    state.Page < pages,
			Label:      fmt.Sprintf("第 %d / %d 页", state.Page, pages),
		}
	}

	return view
}

// StatsLine reports how many records exist and how many are shown.
//
// A zero total falls back to the cached count.
func StatsLine(cached, total, shown int) string {
	if cached == 0 {
		return NoRecords
	}
	if total == 0 {
		total = cached
	}
	return fmt.Sprintf("共 %d 条生成记录，当前显示 %d 条", total, shown)
}

// SelectionSummary is the selection counter text.
func SelectionSummary(n int) string {
	return fmt.Sprintf("已选 %d 项", n)
}

// RenderRow builds the row for one record.
func RenderRow(rec models.MediaRecord) RowView {
	prompt := rec.Prompt
	if prompt == "" {
		prompt = PromptMissing
	}
	return RowView{
		ID:     rec.ID,
		Type:   rec.Type,
		Badge:  rec.Type.Label(),
		Prompt: prompt,
		Meta:   MetaLine(rec),
		Time:   rec.Time,
	}
}

// MetaLine is "模型：m · 风格：s · 文件：p" for image and video, with 人声 instead of 风格 for audio.
func MetaLine(rec models.MediaRecord) string {
	model := orMissing(rec.Model)
	switch {
	case rec.Type.UsesVoice():
		return fmt.Sprintf("模型：%s · 人声：%s · 文件：%s", model, orMissing(rec.Voice), rec.Path)
	case rec.Type.Valid():
		return fmt.Sprintf("模型：%s · 风格：%s · 文件：%s", model, orMissing(rec.Style), rec.Path)
	default:
		return fmt.Sprintf("模型：%s · 文件：%s", model, rec.Path)
	}
}

// Text renders the view as plain lines for terminal output.
func (v LibraryView) Text() string {
	var b strings.Builder
	b.WriteString(v.Stats)
	b.WriteString("\n")

	if v.Empty != "" {
		b.WriteString(v.Empty)
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(v.Selection.Summary)
	b.WriteString("\n\n")

	for _, row := range v.Rows {
		check := "[ ]"
		if row.Selected {
			check = "[x]"
		}
		fmt.Fprintf(&b, "%s #%d [%s] %s  %s\n", check, row.ID, row.Badge, row.Prompt, row.Time)
		fmt.Fprintf(&b, "    %s\n", row.Meta)
	}

	if p := v.Pagination; p != nil {
		b.WriteString("\n")
		b.WriteString(p.Text())
		b.WriteString("\n")
	}

	return b.String()
}

// Text is the pager line; an unavailable direction is shown in parentheses.
func (p *PaginationView) Text() string {
	prev, next := PrevPageLabel, NextPageLabel
	if !p.HasPrev {
		prev = "(" + prev + ")"
	}
	if !p.HasNext {
		next = "(" + next + ")"
	}
	return prev + "  " + p.Label + "  " + next
}

func orMissing(s string) string {
	if s == "" {
		return missingMetadata
	}
	return s
}
