package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/server"
	"github.com/desertthunder/studio/internal/shared"
	tu "github.com/desertthunder/studio/internal/testing"
)

func newSandboxService(t *testing.T) (*StudioService, *server.Sandbox) {
	t.Helper()
	sb, srv := tu.NewSandboxServer(t)
	svc, err := NewStudioService(StudioOpts{BaseURL: srv.URL, Cookie: sb.Cookie()})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, sb
}

func lastCall(t *testing.T, sb *server.Sandbox) server.Call {
	t.Helper()
	calls := sb.Calls()
	if len(calls) == 0 {
		t.Fatal("expected at least one request")
	}
	return calls[len(calls)-1]
}

func TestStudioService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			svc, err := NewStudioService(StudioOpts{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if svc.baseURL.String() != "http://127.0.0.1:8000" {
				t.Errorf("expected default base URL, got %s", svc.baseURL)
			}
			if svc.csrfCookie != "csrftoken" || svc.csrfHeader != "X-CSRFToken" {
				t.Errorf("unexpected CSRF defaults %s/%s", svc.csrfCookie, svc.csrfHeader)
			}
			if svc.httpClient.Jar == nil {
				t.Error("expected cookie jar")
			}
		})

		t.Run("Invalid Base URL", func(t *testing.T) {
			_, err := NewStudioService(StudioOpts{BaseURL: "not a url"})
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("Seeds Cookie Jar", func(t *testing.T) {
			svc, err := NewStudioService(StudioOpts{BaseURL: "http://example.com", Cookie: "sessionid=s1; csrftoken=tok"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := svc.CSRFToken(); got != "tok" {
				t.Errorf("expected CSRF token 'tok', got %q", got)
			}
		})

		t.Run("Does Not Mutate Caller Client", func(t *testing.T) {
			client := &http.Client{}
			if _, err := NewStudioService(StudioOpts{HTTPClient: client}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.Jar != nil {
				t.Error("expected caller's client to be left untouched")
			}
		})
	})

	t.Run("Generate", func(t *testing.T) {
		t.Run("Audio Posts Prompt Model And Voice", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			for range 4 {
				sb.Seed(server.SandboxRecord{MediaType: "image"})
			}

			rec, err := svc.Generate(ctx, GenerateRequest{Mode: models.Audio, Prompt: "hello", Model: "cosyvoice", Voice: "v1"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.ID != 5 || rec.Type != models.Audio || rec.Path != "/media/5.mp3" || rec.Voice != "v1" {
				t.Errorf("unexpected record %+v", rec)
			}

			call := lastCall(t, sb)
			if call.Path != "/api/audio/" || call.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", call.Method, call.Path)
			}
			var body map[string]string
			if err := json.Unmarshal(call.Body, &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			want := map[string]string{"prompt": "hello", "model": "cosyvoice", "voice": "v1"}
			if len(body) != len(want) {
				t.Errorf("expected body %v, got %v", want, body)
			}
			for k, v := range want {
				if body[k] != v {
					t.Errorf("expected %s=%q, got %q", k, v, body[k])
				}
			}
			if call.CSRF != sb.CSRFToken() {
				t.Errorf("expected CSRF header %q, got %q", sb.CSRFToken(), call.CSRF)
			}
		})

		t.Run("Image Sends Style", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			if _, err := svc.Generate(ctx, GenerateRequest{Mode: models.Image, Prompt: "cat", Model: "即梦", Style: "写实"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if body := string(lastCall(t, sb).Body); !strings.Contains(body, `"style":"写实"`) || strings.Contains(body, "voice") {
				t.Errorf("unexpected image body %s", body)
			}
		})

		t.Run("Video Omits Style", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			if _, err := svc.Generate(ctx, GenerateRequest{Mode: models.Video, Prompt: "sea", Model: "可灵", Style: "ignored"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			call := lastCall(t, sb)
			if call.Path != "/api/video/" || strings.Contains(string(call.Body), "style") {
				t.Errorf("unexpected video request %s %s", call.Path, call.Body)
			}
		})

		t.Run("Invalid Mode", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			_, err := svc.Generate(ctx, GenerateRequest{Mode: "text", Prompt: "x"})
			if !errors.Is(err, shared.ErrInvalidMediaType) {
				t.Errorf("expected ErrInvalidMediaType, got %v", err)
			}
			if len(sb.Calls()) != 0 {
				t.Error("expected no request")
			}
		})

		t.Run("Error Body Becomes Message", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			sb.FailNext(http.MethodPost, "/api/image/", http.StatusInternalServerError, `{"error":"生成失败","detail":"配额不足"}`)

			_, err := svc.Generate(ctx, GenerateRequest{Mode: models.Image, Prompt: "cat", Model: "海螺"})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "生成失败：配额不足" {
				t.Errorf("unexpected APIError %+v", apiErr)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Error("expected error to match ErrAPIRequest")
			}
		})

		t.Run("Missing Record", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			sb.FailNext(http.MethodPost, "/api/image/", http.StatusOK, `{}`)

			_, err := svc.Generate(ctx, GenerateRequest{Mode: models.Image, Prompt: "cat", Model: "海螺"})
			if !errors.Is(err, shared.ErrMissingRecord) {
				t.Errorf("expected ErrMissingRecord, got %v", err)
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			svc, err := NewStudioService(StudioOpts{
				BaseURL:    "http://example.com",
				HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))},
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			_, err = svc.Generate(ctx, GenerateRequest{Mode: models.Image, Prompt: "cat"})
			if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "connection failed") {
				t.Errorf("expected wrapped transport error, got %v", err)
			}
		})
	})

	t.Run("CreateRecord", func(t *testing.T) {
		svc, sb := newSandboxService(t)
		rec, err := svc.CreateRecord(ctx, CreateRecordRequest{MediaType: models.Video, Model: "可灵", Prompt: "waves", URL: "/media/ext.mp4"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.Type != models.Video || rec.Path != "/media/ext.mp4" || lastCall(t, sb).Path != "/api/records/create/" {
			t.Errorf("unexpected record %+v", rec)
		}

		if _, err := svc.CreateRecord(ctx, CreateRecordRequest{MediaType: "gif"}); !errors.Is(err, shared.ErrInvalidMediaType) {
			t.Errorf("expected ErrInvalidMediaType, got %v", err)
		}
	})

	t.Run("ListRecords", func(t *testing.T) {
		t.Run("Sends Paging And Filter", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			for range 3 {
				sb.Seed(server.SandboxRecord{MediaType: "audio"})
			}
			sb.Seed(server.SandboxRecord{MediaType: "image"})

			page, err := svc.ListRecords(ctx, ListQuery{Page: 1, PageSize: 2, Filter: models.Filter(models.Audio)})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.Total != 3 || len(page.Records) != 2 {
				t.Errorf("expected 2 of 3 records, got %d of %d", len(page.Records), page.Total)
			}
			if q := lastCall(t, sb).Query; q != "media_type=audio&page=1&page_size=2" {
				t.Errorf("unexpected query %q", q)
			}
		})

		t.Run("All Filter Sends No Media Type", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			if _, err := svc.ListRecords(ctx, ListQuery{Page: 1, PageSize: 10, Filter: models.FilterAll}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if q := lastCall(t, sb).Query; strings.Contains(q, "media_type") {
				t.Errorf("expected no media_type, got %q", q)
			}
		})

		t.Run("Total Falls Back To Page Length", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			sb.FailNext(http.MethodGet, "/api/records/", http.StatusOK,
				`{"records":[{"id":1,"media_type":"image"},{"id":2,"media_type":"audio"}]}`)

			page, err := svc.ListRecords(ctx, ListQuery{Page: 1, PageSize: 10})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.Total != 2 {
				t.Errorf("expected fallback total 2, got %d", page.Total)
			}
		})

		t.Run("Skips Invalid Records", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			sb.FailNext(http.MethodGet, "/api/records/", http.StatusOK,
				`{"records":[{"id":1,"media_type":"image"},{"id":2,"media_type":"text"}],"total":2}`)

			page, err := svc.ListRecords(ctx, ListQuery{Page: 1, PageSize: 10})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(page.Records) != 1 || len(page.Skipped) != 1 {
				t.Errorf("expected 1 record and 1 skipped, got %d and %d", len(page.Records), len(page.Skipped))
			}
		})

		t.Run("Malformed Body", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			sb.FailNext(http.MethodGet, "/api/records/", http.StatusOK, `<html>`)

			if _, err := svc.ListRecords(ctx, ListQuery{Page: 1, PageSize: 10}); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("DeleteRecord", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			rec := sb.Seed(server.SandboxRecord{MediaType: "image"})

			if err := svc.DeleteRecord(ctx, rec.ID); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(sb.Records()) != 0 {
				t.Error("expected record to be removed")
			}
		})

		t.Run("Without CSRF Cookie", func(t *testing.T) {
			sb, srv := tu.NewSandboxServer(t)
			rec := sb.Seed(server.SandboxRecord{MediaType: "image"})
			svc, err := NewStudioService(StudioOpts{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			err = svc.DeleteRecord(ctx, rec.ID)
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
				t.Fatalf("expected 403 APIError, got %v", err)
			}
			if apiErr.Message != "CSRF verification failed." {
				t.Errorf("unexpected message %q", apiErr.Message)
			}
		})
	})

	t.Run("Downloads", func(t *testing.T) {
		t.Run("Single Record", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			rec := sb.Seed(server.SandboxRecord{MediaType: "audio", Prompt: "hello"})

			var buf bytes.Buffer
			n, err := svc.DownloadRecord(ctx, rec.ID, &buf)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if n == 0 || !strings.Contains(buf.String(), "hello") {
				t.Errorf("unexpected download %q (%d bytes)", buf.String(), n)
			}
		})

		t.Run("Single Record Not Found", func(t *testing.T) {
			svc, _ := newSandboxService(t)
			var buf bytes.Buffer
			_, err := svc.DownloadRecord(ctx, 99, &buf)

			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
				t.Errorf("expected 404 APIError, got %v", err)
			}
			if buf.Len() != 0 {
				t.Error("expected nothing written on failure")
			}
		})

		t.Run("Batch Archive", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			a := sb.Seed(server.SandboxRecord{MediaType: "image"})
			b := sb.Seed(server.SandboxRecord{MediaType: "video"})

			var buf bytes.Buffer
			if _, err := svc.DownloadBatch(ctx, []int64{a.ID, b.ID}, &buf); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			if err != nil {
				t.Fatalf("expected zip archive: %v", err)
			}
			if len(zr.File) != 2 {
				t.Errorf("expected 2 entries, got %d", len(zr.File))
			}
			if body := string(lastCall(t, sb).Body); body != `{"ids":[1,2]}` {
				t.Errorf("unexpected batch body %s", body)
			}
		})

		t.Run("Batch Empty Selection", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			if _, err := svc.DownloadBatch(ctx, nil, &bytes.Buffer{}); !errors.Is(err, shared.ErrEmptySelection) {
				t.Errorf("expected ErrEmptySelection, got %v", err)
			}
			if len(sb.Calls()) != 0 {
				t.Error("expected no request")
			}
		})

		t.Run("Read Failure", func(t *testing.T) {
			svc, err := NewStudioService(StudioOpts{
				BaseURL: "http://example.com",
				HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     make(http.Header),
				}, nil)},
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			_, err = svc.DownloadRecord(ctx, 1, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read error, got %v", err)
			}
		})
	})

	t.Run("URLs", func(t *testing.T) {
		svc, err := NewStudioService(StudioOpts{BaseURL: "http://studio.test:8000"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tests := []struct {
			name string
			got  string
			want string
		}{
			{name: "Download URL", got: svc.DownloadURL(7), want: "http://studio.test:8000/api/records/7/download/"},
			{name: "Relative Asset", got: svc.ResolveURL("/media/5.mp3"), want: "http://studio.test:8000/media/5.mp3"},
			{name: "Absolute Asset", got: svc.ResolveURL("https://cdn.test/a.png"), want: "https://cdn.test/a.png"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.want {
					t.Errorf("expected %s, got %s", tt.want, tt.got)
				}
			})
		}
	})

	t.Run("Raw Requests", func(t *testing.T) {
		t.Run("Get Returns Non-2xx Without Error", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			sb.FailNext(http.MethodGet, "/api/records/", http.StatusTeapot, "short and stout")

			resp, err := svc.Get(ctx, "/api/records/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusTeapot || resp.IsJSON || resp.OK() {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("Post JSON", func(t *testing.T) {
			svc, _ := newSandboxService(t)
			resp, err := svc.Post(ctx, "/api/records/create/", []byte(`{"media_type":"image","url":"/media/x.png"}`))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusCreated || !resp.IsJSON {
				t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Body)
			}
		})

		t.Run("Post Rejects Invalid JSON", func(t *testing.T) {
			svc, sb := newSandboxService(t)
			if _, err := svc.Post(ctx, "/api/image/", []byte(`{nope`)); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if len(sb.Calls()) != 0 {
				t.Error("expected no request")
			}
		})
	})
}
