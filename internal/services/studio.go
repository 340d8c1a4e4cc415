package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/shared"
)

const (
	recordsPath       = "/api/records/"
	createRecordPath  = "/api/records/create/"
	batchDownloadPath = "/api/records/download/"
)

var generatePaths = map[models.MediaType]string{
	models.Audio: "/api/audio/",
	models.Image: "/api/image/",
	models.Video: "/api/video/",
}

// StudioService talks to the media-generation service the way its own web page does:
// session cookies on every request and the CSRF cookie echoed in a header on mutations.
type StudioService struct {
	baseURL    *url.URL
	httpClient *http.Client
	csrfCookie string
	csrfHeader string
	now        func() time.Time
}

var _ Service = (*StudioService)(nil)

// StudioOpts configures a [StudioService].
type StudioOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Cookie     string // "sessionid=...; csrftoken=..." copied from a browser
	CSRFCookie string
	CSRFHeader string
	Timeout    time.Duration
}

// NewStudioService creates a client for the service at opts.BaseURL.
//
// The HTTP client gets a cookie jar seeded with opts.Cookie when it has none.
func NewStudioService(opts StudioOpts) (*StudioService, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://127.0.0.1:8000"
	}
	if opts.CSRFCookie == "" {
		opts.CSRFCookie = "csrftoken"
	}
	if opts.CSRFHeader == "" {
		opts.CSRFHeader = "X-CSRFToken"
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	client := &http.Client{Timeout: opts.Timeout}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	if opts.Cookie != "" {
		cookies, err := http.ParseCookie(opts.Cookie)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed cookie: %v", shared.ErrInvalidConfig, err)
		}
		client.Jar.SetCookies(base, cookies)
	}

	return &StudioService{
		baseURL:    base,
		httpClient: client,
		csrfCookie: opts.CSRFCookie,
		csrfHeader: opts.CSRFHeader,
		now:        time.Now,
	}, nil
}

// CSRFToken returns the current anti-forgery token from the session cookies.
func (s *StudioService) CSRFToken() string {
	for _, c := range s.httpClient.Jar.Cookies(s.baseURL) {
		if c.Name == s.csrfCookie {
			return c.Value
		}
	}
	return ""
}

// Generate posts req to the mode's endpoint and returns the normalized record.
func (s *StudioService) Generate(ctx context.Context, req GenerateRequest) (models.MediaRecord, error) {
	path, ok := generatePaths[req.Mode]
	if !ok {
		return models.MediaRecord{}, fmt.Errorf("%w: %q", shared.ErrInvalidMediaType, req.Mode)
	}

	body := map[string]string{"prompt": req.Prompt, "model": req.Model}
	switch req.Mode {
	case models.Audio:
		body["voice"] = req.Voice
	case models.Image:
		body["style"] = req.Style
	}

	return s.postRecord(ctx, path, body)
}

// CreateRecord registers an externally produced asset as a record.
func (s *StudioService) CreateRecord(ctx context.Context, req CreateRecordRequest) (models.MediaRecord, error) {
	if !req.MediaType.Valid() {
		return models.MediaRecord{}, fmt.Errorf("%w: %q", shared.ErrInvalidMediaType, req.MediaType)
	}
	return s.postRecord(ctx, createRecordPath, req)
}

// ListRecords fetches one page of the library.
//
// A zero or missing total falls back to the number of records on the page.
func (s *StudioService) ListRecords(ctx context.Context, q ListQuery) (*RecordPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if mt, ok := q.Filter.MediaType(); ok {
		params.Set("media_type", string(mt))
	}

	resp, err := s.do(ctx, http.MethodGet, recordsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Records []json.RawMessage `json:"records"`
		Total   int               `json:"total"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode records: %v", shared.ErrAPIRequest, err)
	}

	records, skipped := models.ParseRecords(payload.Records, s.now())
	page := &RecordPage{Records: records, Total: payload.Total, Skipped: skipped}
	if page.Total == 0 {
		page.Total = len(records)
	}
	return page, nil
}

// DeleteRecord removes one record.
func (s *StudioService) DeleteRecord(ctx context.Context, id int64) error {
	_, err := s.do(ctx, http.MethodPost, recordPath(id, "delete"), nil)
	return err
}

// DownloadRecord streams the record's asset into w.
func (s *StudioService) DownloadRecord(ctx context.Context, id int64, w io.Writer) (int64, error) {
	return s.stream(ctx, http.MethodGet, recordPath(id, "download"), nil, w)
}

// DownloadBatch posts ids to the batch endpoint and streams the archive into w.
func (s *StudioService) DownloadBatch(ctx context.Context, ids []int64, w io.Writer) (int64, error) {
	if len(ids) == 0 {
		return 0, shared.ErrEmptySelection
	}
	return s.stream(ctx, http.MethodPost, batchDownloadPath, map[string][]int64{"ids": ids}, w)
}

// DownloadURL returns the absolute per-record download endpoint.
func (s *StudioService) DownloadURL(id int64) string {
	return s.ResolveURL(recordPath(id, "download"))
}

// ResolveURL resolves an asset location (often "/media/...") against the base URL.
func (s *StudioService) ResolveURL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return s.baseURL.ResolveReference(ref).String()
}

func (s *StudioService) postRecord(ctx context.Context, path string, body any) (models.MediaRecord, error) {
	resp, err := s.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return models.MediaRecord{}, err
	}

	var payload struct {
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return models.MediaRecord{}, fmt.Errorf("%w: failed to decode record: %v", shared.ErrAPIRequest, err)
	}

	return models.ParseRecord(payload.Record, s.now())
}

// do sends a request and buffers the response, turning non-2xx statuses into [*APIError].
func (s *StudioService) do(ctx context.Context, method, path string, body any) (*APIResponse, error) {
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := s.send(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newAPIError(resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// stream sends a request and copies a successful body into w without buffering it.
func (s *StudioService) stream(ctx context.Context, method, path string, body any, w io.Writer) (int64, error) {
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return 0, newAPIError(resp.StatusCode, data)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read response: %w", err)
	}
	return n, nil
}

func (s *StudioService) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.ResolveURL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := s.CSRFToken(); token != "" {
			req.Header.Set(s.csrfHeader, token)
		}
	}

	return req, nil
}

func recordPath(id int64, action string) string {
	return fmt.Sprintf("%s%d/%s/", recordsPath, id, action)
}
