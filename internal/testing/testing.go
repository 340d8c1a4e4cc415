// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/server"
)

// NewSandboxServer starts an httptest server backed by a fresh [server.Sandbox].
//
// The server is closed when the test finishes.
func NewSandboxServer(t *testing.T) (*server.Sandbox, *httptest.Server) {
	t.Helper()
	sb := server.NewSandbox()
	srv := httptest.NewServer(sb.Router(nil))
	t.Cleanup(srv.Close)
	return sb, srv
}

// FakePreviewer records every record it is asked to show.
type FakePreviewer struct {
	mu    sync.Mutex
	shown []models.MediaRecord
	Err   error
}

func (f *FakePreviewer) Preview(rec models.MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, rec)
	return f.Err
}

// Shown returns the previewed records in order.
func (f *FakePreviewer) Shown() []models.MediaRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MediaRecord(nil), f.shown...)
}

// Confirmer answers every prompt with answer and remembers the prompts.
type Confirmer struct {
	answer  bool
	Prompts []string
}

func NewConfirmer(answer bool) *Confirmer { return &Confirmer{answer: answer} }

func (c *Confirmer) Confirm(prompt string) bool {
	c.Prompts = append(c.Prompts, prompt)
	return c.answer
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
