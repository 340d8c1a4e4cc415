// package formatter renders the record library and exports records to JSON, CSV and Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts json, csv, markdown (or md) and txt.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, s)
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	default:
		return "." + string(f)
	}
}

// ExportToJSON converts records to an indented JSON array.
func ExportToJSON(records []models.MediaRecord) ([]byte, error) {
	if records == nil {
		records = []models.MediaRecord{}
	}
	return shared.MarshalJSON(records, true)
}

// ExportToCSV converts records to CSV with columns: ID, Type, Model, Prompt, Style, Voice, Path, CreatedAt
func ExportToCSV(records []models.MediaRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Type", "Model", "Prompt", "Style", "Voice", "Path", "CreatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			string(rec.Type),
			rec.Model,
			rec.Prompt,
			rec.Style,
			rec.Voice,
			rec.Path,
			rec.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a page of the library as a Markdown document.
func ExportToMarkdown(state LibraryState) ([]byte, error) {
	var buf bytes.Buffer
	view := RenderLibrary(state)

	filter := state.Filter
	if filter == "" {
		filter = models.FilterAll
	}

	buf.WriteString("# 生成内容库\n\n")
	fmt.Fprintf(&buf, "**筛选**: %s\n", filter.Label())
	fmt.Fprintf(&buf, "**统计**: %s\n", view.Stats)
	if view.Pagination != nil {
		fmt.Fprintf(&buf, "**页码**: %s\n", view.Pagination.Label)
	}
	buf.WriteString("\n")

	if view.Empty != "" {
		buf.WriteString(view.Empty + "\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("## 记录\n\n")
	for i, row := range view.Rows {
		fmt.Fprintf(&buf, "%d. **%s** %s (#%d, %s)\n", i+1, row.Badge, row.Prompt, row.ID, row.Time)
		fmt.Fprintf(&buf, "   - %s\n", row.Meta)
	}

	return buf.Bytes(), nil
}

// Export renders state in format f.
func Export(state LibraryState, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(state.Records)
	case FormatCSV:
		return ExportToCSV(state.Records)
	case FormatMarkdown:
		return ExportToMarkdown(state)
	case FormatText:
		return []byte(RenderLibrary(state).Text()), nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, f)
}

// WriteExport writes state to path in format f.
//
// Defaults to library_page{N}{ext} in the current directory.
func WriteExport(state LibraryState, f Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("library_page%d%s", max(state.Page, 1), f.Extension())
	}

	data, err := Export(state, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}
