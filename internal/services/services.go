package services

import (
	"context"
	"io"

	"github.com/desertthunder/studio/internal/models"
)

// Service defines the operations of the media-generation API used by the studio client.
type Service interface {
	// Generate issues one generation request for req.Mode and returns the stored record.
	Generate(ctx context.Context, req GenerateRequest) (models.MediaRecord, error)

	// CreateRecord registers an asset produced elsewhere as a record.
	CreateRecord(ctx context.Context, req CreateRecordRequest) (models.MediaRecord, error)

	// ListRecords fetches one page of records, optionally filtered by type.
	ListRecords(ctx context.Context, q ListQuery) (*RecordPage, error)

	// DeleteRecord removes a single record on the server.
	DeleteRecord(ctx context.Context, id int64) error

	// DownloadRecord streams one record's asset into w.
	DownloadRecord(ctx context.Context, id int64, w io.Writer) (int64, error)

	// DownloadBatch streams an archive of the given records into w.
	DownloadBatch(ctx context.Context, ids []int64, w io.Writer) (int64, error)

	// DownloadURL returns the absolute per-record download endpoint.
	DownloadURL(id int64) string

	// ResolveURL makes an asset location absolute against the service origin.
	ResolveURL(path string) string
}

// GenerateRequest carries the user's prompt and the mode-specific parameters.
type GenerateRequest struct {
	Mode   models.MediaType
	Prompt string
	Model  string
	Style  string // image and video
	Voice  string // audio
}

// CreateRecordRequest is the body of the record creation endpoint.
type CreateRecordRequest struct {
	MediaType models.MediaType `json:"media_type"`
	Model     string           `json:"model"`
	Prompt    string           `json:"prompt"`
	Style     string           `json:"style"`
	Voice     string           `json:"voice"`
	URL       string           `json:"url"`
}

// ListQuery selects one page of the library.
type ListQuery struct {
	Page     int
	PageSize int
	Filter   models.Filter
}

// RecordPage is one page of records plus the server-reported total.
type RecordPage struct {
	Records []models.MediaRecord
	Total   int
	Skipped []error // entries that could not be normalized
}
