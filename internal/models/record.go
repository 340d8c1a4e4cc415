package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/studio/internal/shared"
)

// MediaRecord is one persisted generation result as the client sees it.
type MediaRecord struct {
	ID        int64     `json:"id"`
	Type      MediaType `json:"type"`
	Path      string    `json:"path"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	Voice     string    `json:"voice"`
	CreatedAt time.Time `json:"created_at"`
	Time      string    `json:"time"`

	// Provisional is set when the server sent no id and ID holds a client timestamp.
	Provisional bool `json:"provisional,omitempty"`
}

// serverRecord is the wire shape accepted from the service.
//
// Older endpoints send type/path instead of media_type/url.
type serverRecord struct {
	ID        json.RawMessage `json:"id"`
	MediaType string          `json:"media_type"`
	Type      string          `json:"type"`
	URL       string          `json:"url"`
	Path      string          `json:"path"`
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Style     string          `json:"style"`
	Voice     string          `json:"voice"`
	CreatedAt string          `json:"created_at"`
}

// naive timestamps come from servers running without time zone support
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"}

// ParseRecord normalizes one server record.
//
// Missing optional strings become empty, a missing created_at becomes now, and a
// missing id becomes now in unix milliseconds with Provisional set.
func ParseRecord(raw json.RawMessage, now time.Time) (MediaRecord, error) {
	if isNull(raw) {
		return MediaRecord{}, shared.ErrMissingRecord
	}

	var sr serverRecord
	if err := json.Unmarshal(raw, &sr); err != nil {
		return MediaRecord{}, fmt.Errorf("%w: malformed record: %v", shared.ErrInvalidInput, err)
	}

	mt, err := ParseMediaType(firstNonEmpty(sr.MediaType, sr.Type))
	if err != nil {
		return MediaRecord{}, err
	}

	rec := MediaRecord{
		Type:   mt,
		Path:   firstNonEmpty(sr.URL, sr.Path),
		Model:  sr.Model,
		Prompt: sr.Prompt,
		Style:  sr.Style,
		Voice:  sr.Voice,
	}

	if isNull(sr.ID) {
		rec.ID = now.UnixMilli()
		rec.Provisional = true
	} else if rec.ID, err = parseID(sr.ID); err != nil {
		return MediaRecord{}, err
	}

	rec.CreatedAt = parseCreatedAt(sr.CreatedAt, now)
	rec.Time = DisplayTime(rec.CreatedAt)

	return rec, nil
}

// ParseRecords normalizes a list payload, skipping entries that cannot be parsed.
//
// The skipped entries' errors are returned alongside the good records.
func ParseRecords(raws []json.RawMessage, now time.Time) ([]MediaRecord, []error) {
	records := make([]MediaRecord, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		rec, err := ParseRecord(raw, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// DisplayTime formats t as a 24-hour local clock time.
func DisplayTime(t time.Time) string {
	return t.Local().Format("15:04:05")
}

func parseID(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil && f == float64(int64(f)) {
			return int64(f), nil
		}
		return 0, fmt.Errorf("%w: record id %s is not an integer", shared.ErrInvalidInput, string(raw))
	}
	return id, nil
}

func parseCreatedAt(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return now
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
