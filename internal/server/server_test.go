package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRequest(t *testing.T, sb *Sandbox, method, target, body string) *http.Request {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: sb.CSRFToken()})
	req.Header.Set(CSRFHeader, sb.CSRFToken())
	return req
}

func serve(sb *Sandbox, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	sb.Router(nil).ServeHTTP(rec, req)
	return rec
}

func TestBasicRouter(t *testing.T) {
	t.Run("Applies Middleware In Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("expected first,second,handler, got %s", got)
		}
	})

	t.Run("Rejects Wrong Method", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestRequireCSRF(t *testing.T) {
	sb := NewSandbox()

	tests := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{name: "Matching Token", cookie: "abc", header: "abc", want: http.StatusOK},
		{name: "Missing Header", cookie: "abc", header: "", want: http.StatusForbidden},
		{name: "Mismatched Header", cookie: "abc", header: "xyz", want: http.StatusForbidden},
		{name: "Missing Cookie", cookie: "", header: "abc", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/records/create/",
				strings.NewReader(`{"media_type":"image","url":"/media/x.png"}`))
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeader, tt.header)
			}

			rec := serve(sb, req)
			if tt.want == http.StatusOK && rec.Code >= 300 {
				t.Errorf("expected success, got %d: %s", rec.Code, rec.Body.String())
			}
			if tt.want != http.StatusOK && rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	t.Run("GET Skips Check", func(t *testing.T) {
		rec := serve(sb, httptest.NewRequest(http.MethodGet, "/api/records/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestSandbox(t *testing.T) {
	t.Run("Generate Stores Record", func(t *testing.T) {
		sb := NewSandbox()
		rec := serve(sb, newRequest(t, sb, http.MethodPost, "/api/audio/", `{"prompt":"hello","model":"cosyvoice","voice":"v1"}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var payload struct {
			Record SandboxRecord `json:"record"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if payload.Record.ID != 1 || payload.Record.URL != "/media/1.mp3" || payload.Record.Voice != "v1" {
			t.Errorf("unexpected record %+v", payload.Record)
		}
		if len(sb.Records()) != 1 {
			t.Errorf("expected 1 stored record, got %d", len(sb.Records()))
		}
	})

	t.Run("Generate Rejects Empty Prompt", func(t *testing.T) {
		sb := NewSandbox()
		rec := serve(sb, newRequest(t, sb, http.MethodPost, "/api/image/", `{"prompt":"  "}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "参数错误") {
			t.Errorf("expected error message in body, got %s", rec.Body.String())
		}
	})

	t.Run("List Pages Newest First With Filter", func(t *testing.T) {
		sb := NewSandbox()
		for i := 0; i < 5; i++ {
			sb.Seed(SandboxRecord{MediaType: "image"})
		}
		sb.Seed(SandboxRecord{MediaType: "audio"})

		rec := serve(sb, httptest.NewRequest(http.MethodGet, "/api/records/?page=2&page_size=2&media_type=image", nil))

		var payload struct {
			Records []SandboxRecord `json:"records"`
			Total   int             `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if payload.Total != 5 {
			t.Errorf("expected total 5, got %d", payload.Total)
		}
		if len(payload.Records) != 2 || payload.Records[0].ID != 3 || payload.Records[1].ID != 2 {
			t.Errorf("unexpected page %+v", payload.Records)
		}
	})

	t.Run("Delete Removes Record", func(t *testing.T) {
		sb := NewSandbox()
		sb.Seed(SandboxRecord{MediaType: "video"})

		rec := serve(sb, newRequest(t, sb, http.MethodPost, "/api/records/1/delete/", ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(sb.Records()) != 0 {
			t.Error("expected record to be removed")
		}

		rec = serve(sb, newRequest(t, sb, http.MethodPost, "/api/records/1/delete/", ""))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", rec.Code)
		}
	})

	t.Run("Batch Download Returns Zip", func(t *testing.T) {
		sb := NewSandbox()
		sb.Seed(SandboxRecord{MediaType: "image", Prompt: "a"})
		sb.Seed(SandboxRecord{MediaType: "audio", Prompt: "b"})

		rec := serve(sb, newRequest(t, sb, http.MethodPost, "/api/records/download/", `{"ids":[1,2]}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		body := rec.Body.Bytes()
		zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
		if err != nil {
			t.Fatalf("expected zip archive: %v", err)
		}
		if len(zr.File) != 2 || zr.File[0].Name != "1_1.png" {
			t.Errorf("unexpected archive entries %v", zr.File)
		}
	})

	t.Run("FailNext Injects One Failure", func(t *testing.T) {
		sb := NewSandbox()
		sb.FailNext(http.MethodGet, "/api/records/", http.StatusBadGateway, "upstream down")

		rec := serve(sb, httptest.NewRequest(http.MethodGet, "/api/records/", nil))
		if rec.Code != http.StatusBadGateway || rec.Body.String() != "upstream down" {
			t.Errorf("expected injected failure, got %d %q", rec.Code, rec.Body.String())
		}

		rec = serve(sb, httptest.NewRequest(http.MethodGet, "/api/records/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected recovery, got %d", rec.Code)
		}
		if len(sb.Calls()) != 2 {
			t.Errorf("expected 2 calls recorded, got %d", len(sb.Calls()))
		}
	})
}

func TestSandboxSession(t *testing.T) {
	t.Run("Login Issues Session", func(t *testing.T) {
		sb := NewSandbox()
		sb.AddUser("alice", "secret")

		req := newRequest(t, sb, http.MethodPost, "/", "username=alice&password=secret")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := serve(sb, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		var session string
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionName {
				session = c.Value
			}
		}
		if session == "" {
			t.Error("expected session cookie")
		}
	})

	t.Run("Login Rejects Bad Password", func(t *testing.T) {
		sb := NewSandbox()
		sb.AddUser("alice", "secret")

		req := newRequest(t, sb, http.MethodPost, "/", "username=alice&password=nope")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := serve(sb, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Index Issues CSRF Cookie", func(t *testing.T) {
		sb := NewSandbox()
		rec := serve(sb, httptest.NewRequest(http.MethodGet, "/", nil))

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != CSRFCookie || cookies[0].Value != sb.CSRFToken() {
			t.Errorf("unexpected cookies %v", cookies)
		}
	})

	t.Run("RequireSession", func(t *testing.T) {
		sb := NewSandbox()
		sb.RequireSession = true

		rec := serve(sb, httptest.NewRequest(http.MethodGet, "/api/records/", nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 without session, got %d", rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/records/", nil)
		req.Header.Set("Cookie", sb.Cookie())
		rec = serve(sb, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 with session, got %d", rec.Code)
		}
	})

	t.Run("Unknown Path", func(t *testing.T) {
		sb := NewSandbox()
		rec := serve(sb, newRequest(t, sb, http.MethodPost, "/image", `{"prompt":"x"}`))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
