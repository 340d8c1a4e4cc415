package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/desertthunder/studio/internal/models"
)

const (
	CSRFCookie  = "csrftoken"
	CSRFHeader  = "X-CSRFToken"
	SessionName = "sessionid"
)

var extensions = map[models.MediaType]string{
	models.Image: ".png",
	models.Audio: ".mp3",
	models.Video: ".mp4",
}

// SandboxRecord is a record as the sandbox stores and serializes it.
type SandboxRecord struct {
	ID        int64  `json:"id"`
	MediaType string `json:"media_type"`
	URL       string `json:"url"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Style     string `json:"style"`
	Voice     string `json:"voice"`
	CreatedAt string `json:"created_at"`
}

// Call is one request observed by the sandbox.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	CSRF   string
}

type fault struct {
	status int
	body   string
}

// Sandbox is an in-memory implementation of the media-generation API.
type Sandbox struct {
	mu        sync.Mutex
	records   []SandboxRecord
	nextID    int64
	faults    map[string][]fault
	calls     []Call
	csrfToken string
	sessionID string
	users     map[string]string // username → password
	sessions  map[string]string // session id → username
	now       func() time.Time

	// RequireSession rejects API requests that carry no session issued by the sandbox.
	RequireSession bool
}

var _ Handler = (*Sandbox)(nil)

// NewSandbox creates an empty sandbox with a fresh session and CSRF token.
func NewSandbox() *Sandbox {
	sessionID := uuid.NewString()
	return &Sandbox{
		nextID:    1,
		faults:    map[string][]fault{},
		csrfToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		sessionID: sessionID,
		users:     map[string]string{},
		sessions:  map[string]string{sessionID: "sandbox"},
		now:       time.Now,
	}
}

// Router wraps the sandbox with request logging and CSRF enforcement.
func (s *Sandbox) Router(logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	if logger != nil {
		r.Use(RequestLogger(logger))
	}
	r.Use(RequireCSRF(CSRFCookie, CSRFHeader))
	r.Handler(s)
	return r
}

// Cookie returns the session cookie header a logged-in browser would send.
func (s *Sandbox) Cookie() string {
	return fmt.Sprintf("%s=%s; %s=%s", SessionName, s.sessionID, CSRFCookie, s.csrfToken)
}

// CSRFToken returns the token mutating requests must echo.
func (s *Sandbox) CSRFToken() string { return s.csrfToken }

// Routes returns the path patterns the sandbox serves.
func (s *Sandbox) Routes() []string {
	return []string{"/", "/logout/", "/api/audio/", "/api/image/", "/api/video/", "/api/records/", "/media/"}
}

// AddUser registers credentials accepted by the login form.
func (s *Sandbox) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

// Seed stores rec as if it had been generated, assigning an id and timestamp when missing.
func (s *Sandbox) Seed(rec SandboxRecord) SandboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(rec)
}

// Records returns a copy of the stored records, oldest first.
func (s *Sandbox) Records() []SandboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Calls returns every request observed so far.
func (s *Sandbox) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// FailNext makes the next request matching method and path answer with status and body.
//
// Faults queue up per route, so calling it twice fails two consecutive requests.
func (s *Sandbox) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.faults[key] = append(s.faults[key], fault{status: status, body: body})
}

func (s *Sandbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
		CSRF:   r.Header.Get(CSRFHeader),
	})
	f, failed := s.popFault(r.Method + " " + r.URL.Path)
	s.mu.Unlock()

	if failed {
		w.WriteHeader(f.status)
		io.WriteString(w, f.body)
		return
	}

	p := r.URL.Path
	if s.RequireSession && strings.HasPrefix(p, "/api/") && !s.authenticated(r) {
		writeError(w, http.StatusForbidden, "", "Authentication credentials were not provided.")
		return
	}

	switch {
	case p == "/":
		s.index(w, r)
	case p == "/logout/":
		s.requireMethod(w, r, http.MethodPost, s.logout)
	case strings.HasPrefix(p, "/media/"):
		s.serveMedia(w, r)
	case p == "/api/records/":
		s.requireMethod(w, r, http.MethodGet, s.list)
	case p == "/api/records/create/":
		s.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) { s.create(w, body) })
	case p == "/api/records/download/":
		s.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) { s.downloadBatch(w, body) })
	case strings.HasPrefix(p, "/api/records/"):
		s.recordAction(w, r)
	case !strings.HasPrefix(p, "/api/"):
		writeError(w, http.StatusNotFound, "not found", p)
	default:
		mt, err := models.ParseMediaType(strings.Trim(strings.TrimPrefix(p, "/api/"), "/"))
		if err != nil {
			writeError(w, http.StatusNotFound, "not found", p)
			return
		}
		s.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) { s.generate(w, mt, body) })
	}
}

// index mirrors the service's landing page: GET issues the CSRF cookie, POST is the login form.
func (s *Sandbox) index(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: s.csrfToken, Path: "/"})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<!DOCTYPE html><title>studio sandbox</title>\n")
	case http.MethodPost:
		username := strings.TrimSpace(r.PostFormValue("username"))
		password := r.PostFormValue("password")

		s.mu.Lock()
		want, ok := s.users[username]
		var sessionID string
		if ok && want == password {
			sessionID = uuid.NewString()
			s.sessions[sessionID] = username
		}
		s.mu.Unlock()

		if sessionID == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, "用户名或密码错误，请重试。\n")
			return
		}

		http.SetCookie(w, &http.Cookie{Name: SessionName, Value: sessionID, Path: "/", HttpOnly: true})
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (s *Sandbox) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionName); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Sandbox) authenticated(r *http.Request) bool {
	c, err := r.Cookie(SessionName)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[c.Value]
	return ok
}

func (s *Sandbox) requireMethod(w http.ResponseWriter, r *http.Request, method string, h http.HandlerFunc) {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	h(w, r)
}

func (s *Sandbox) generate(w http.ResponseWriter, mt models.MediaType, body []byte) {
	var req struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
		Style  string `json:"style"`
		Voice  string `json:"voice"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "参数错误", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "参数错误", "prompt 不能为空")
		return
	}
	if req.Model != "" && !mt.SupportsModel(req.Model) {
		writeError(w, http.StatusBadRequest, "参数错误", "不支持的模型 "+req.Model)
		return
	}

	s.mu.Lock()
	rec := s.store(SandboxRecord{
		MediaType: string(mt),
		Model:     req.Model,
		Prompt:    req.Prompt,
		Style:     req.Style,
		Voice:     req.Voice,
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

func (s *Sandbox) create(w http.ResponseWriter, body []byte) {
	var rec SandboxRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "参数错误", err.Error())
		return
	}
	if _, err := models.ParseMediaType(rec.MediaType); err != nil {
		writeError(w, http.StatusBadRequest, "参数错误", "media_type 无效")
		return
	}
	rec.ID, rec.CreatedAt = 0, ""

	s.mu.Lock()
	rec = s.store(rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"record": rec})
}

func (s *Sandbox) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	size := positiveInt(q.Get("page_size"), 10)
	mediaType := q.Get("media_type")

	s.mu.Lock()
	matched := make([]SandboxRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if mediaType == "" || s.records[i].MediaType == mediaType {
			matched = append(matched, s.records[i])
		}
	}
	s.mu.Unlock()

	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))

	writeJSON(w, http.StatusOK, map[string]any{
		"records": matched[start:end],
		"total":   len(matched),
	})
}

// recordAction serves /api/records/{id}/delete/ and /api/records/{id}/download/.
func (s *Sandbox) recordAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/records/"), "/"), "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "记录不存在", parts[0])
		return
	}

	switch parts[1] {
	case "delete":
		s.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			i := s.indexOf(id)
			if i >= 0 {
				s.records = slices.Delete(s.records, i, i+1)
			}
			s.mu.Unlock()

			if i < 0 {
				writeError(w, http.StatusNotFound, "记录不存在", "")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
		})
	case "download":
		s.requireMethod(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			i := s.indexOf(id)
			var rec SandboxRecord
			if i >= 0 {
				rec = s.records[i]
			}
			s.mu.Unlock()

			if i < 0 {
				writeError(w, http.StatusNotFound, "记录不存在", "")
				return
			}
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(rec.URL)))
			w.Header().Set("Content-Type", "application/octet-stream")
			io.WriteString(w, placeholder(rec))
		})
	default:
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
	}
}

func (s *Sandbox) downloadBatch(w http.ResponseWriter, body []byte) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "参数错误", "ids 不能为空")
		return
	}

	s.mu.Lock()
	recs := make([]SandboxRecord, 0, len(req.IDs))
	for _, id := range req.IDs {
		if i := s.indexOf(id); i >= 0 {
			recs = append(recs, s.records[i])
		}
	}
	s.mu.Unlock()

	if len(recs) == 0 {
		writeError(w, http.StatusNotFound, "记录不存在", "")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="media_batch.zip"`)

	zw := zip.NewWriter(w)
	for _, rec := range recs {
		f, err := zw.Create(fmt.Sprintf("%d_%s", rec.ID, path.Base(rec.URL)))
		if err != nil {
			return
		}
		io.WriteString(f, placeholder(rec))
	}
	zw.Close()
}

func (s *Sandbox) serveMedia(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	w.Header().Set("Content-Type", "application/octet-stream")
	io.WriteString(w, "sandbox asset "+name+"\n")
}

// store assigns id, url and timestamp; callers hold s.mu.
func (s *Sandbox) store(rec SandboxRecord) SandboxRecord {
	if rec.ID == 0 {
		rec.ID = s.nextID
	}
	if rec.ID >= s.nextID {
		s.nextID = rec.ID + 1
	}
	if rec.URL == "" {
		rec.URL = fmt.Sprintf("/media/%d%s", rec.ID, extensions[models.MediaType(rec.MediaType)])
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	s.records = append(s.records, rec)
	return rec
}

func (s *Sandbox) indexOf(id int64) int {
	return slices.IndexFunc(s.records, func(r SandboxRecord) bool { return r.ID == id })
}

func (s *Sandbox) popFault(key string) (fault, bool) {
	queue := s.faults[key]
	if len(queue) == 0 {
		return fault{}, false
	}
	s.faults[key] = queue[1:]
	return queue[0], true
}

func placeholder(rec SandboxRecord) string {
	return fmt.Sprintf("sandbox %s #%d: %s\n", rec.MediaType, rec.ID, rec.Prompt)
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	body := map[string]string{}
	if msg != "" {
		body["error"] = msg
	}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, status, body)
}
