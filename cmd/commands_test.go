package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/studio/internal/server"
	"github.com/desertthunder/studio/internal/shared"
	tu "github.com/desertthunder/studio/internal/testing"
	"github.com/urfave/cli/v3"
)

type testEnv struct {
	sandbox   *server.Sandbox
	config    *shared.Config
	previewer *tu.FakePreviewer
	output    *bytes.Buffer
}

// newTestRunner wires a runner to a sandbox server with downloads in a temp dir.
func newTestRunner(t *testing.T) (*Runner, *testEnv) {
	t.Helper()
	sb, srv := tu.NewSandboxServer(t)

	config := shared.DefaultConfig()
	config.Server.BaseURL = srv.URL
	config.Auth.Cookie = sb.Cookie()
	config.Library.DownloadDir = t.TempDir()
	config.Database.Path = ""

	env := &testEnv{
		sandbox:   sb,
		config:    config,
		previewer: &tu.FakePreviewer{},
		output:    &bytes.Buffer{},
	}

	r := NewRunner(RunnerOpts{
		Config:    config,
		Logger:    log.New(io.Discard),
		Output:    env.output,
		Previewer: env.previewer,
		Input:     strings.NewReader(""),
	})
	if r.service == nil {
		t.Fatal("expected runner to be wired to the sandbox")
	}
	return r, env
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "studio", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"studio"}, args...))
}

func seed(sb *server.Sandbox, mediaType string, n int) []int64 {
	ids := make([]int64, 0, n)
	for i := range n {
		rec := sb.Seed(server.SandboxRecord{
			MediaType: mediaType,
			Model:     "广科院",
			Prompt:    "prompt " + string(rune('a'+i)),
		})
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestGenerateCommand(t *testing.T) {
	t.Run("generates audio and previews it", func(t *testing.T) {
		r, env := newTestRunner(t)

		if err := run(r, "generate", "--mode", "audio", "--voice", "v1", "a", "quiet", "song"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		records := env.sandbox.Records()
		if len(records) != 1 {
			t.Fatalf("expected 1 record on the server, got %d", len(records))
		}
		if records[0].MediaType != "audio" || records[0].Prompt != "a quiet song" {
			t.Errorf("unexpected record %+v", records[0])
		}
		if got := len(env.previewer.Shown()); got != 1 {
			t.Errorf("expected 1 preview, got %d", got)
		}
		if !strings.Contains(env.output.String(), "✓") {
			t.Errorf("expected success mark, got %q", env.output.String())
		}
	})

	t.Run("no-preview skips the previewer", func(t *testing.T) {
		r, env := newTestRunner(t)

		if err := run(r, "generate", "--no-preview", "a red fox"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := len(env.previewer.Shown()); got != 0 {
			t.Errorf("expected no preview, got %d", got)
		}
	})

	t.Run("json output", func(t *testing.T) {
		r, env := newTestRunner(t)

		if err := run(r, "generate", "--json", "--no-preview", "a red fox"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var rec map[string]any
		if err := json.Unmarshal(env.output.Bytes(), &rec); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", env.output.String(), err)
		}
	})

	t.Run("empty prompt fails", func(t *testing.T) {
		r, env := newTestRunner(t)

		if err := run(r, "generate", "--no-preview"); err == nil {
			t.Error("expected error for empty prompt")
		}
		if len(env.sandbox.Records()) != 0 {
			t.Error("expected no request to create a record")
		}
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		r, _ := newTestRunner(t)

		if err := run(r, "generate", "--mode", "hologram", "x"); err == nil {
			t.Error("expected error for unknown mode")
		}
	})

	t.Run("server failure is reported", func(t *testing.T) {
		r, env := newTestRunner(t)
		env.sandbox.FailNext("POST", "/api/image/", 500, `{"error":"boom"}`)

		err := run(r, "generate", "--no-preview", "a red fox")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "生成失败") {
			t.Errorf("expected failure status in error, got %v", err)
		}
	})

	t.Run("journals attempts when a database is configured", func(t *testing.T) {
		r, env := newTestRunner(t)
		env.config.Database.Path = filepath.Join(t.TempDir(), "journal.db")

		if err := run(r, "generate", "--no-preview", "a red fox"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		env.output.Reset()
		if err := run(r, "journal", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var jobs []map[string]any
		if err := json.Unmarshal(env.output.Bytes(), &jobs); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", env.output.String(), err)
		}
		if len(jobs) != 1 {
			t.Fatalf("expected 1 journaled job, got %d", len(jobs))
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	t.Run("list json", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 3)

		if err := run(r, "library", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var page struct {
			Records []map[string]any `json:"records"`
			Total   int              `json:"total"`
			Page    int              `json:"page"`
		}
		if err := json.Unmarshal(env.output.Bytes(), &page); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", env.output.String(), err)
		}
		if page.Total != 3 || len(page.Records) != 3 || page.Page != 1 {
			t.Errorf("unexpected page %+v", page)
		}
	})

	t.Run("list plain with filter", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 2)
		seed(env.sandbox, "audio", 1)

		if err := run(r, "library", "list", "--filter", "audio"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.output.String(), "prompt a") {
			t.Errorf("expected audio record in output, got %q", env.output.String())
		}
	})

	t.Run("list rejects unknown filter", func(t *testing.T) {
		r, _ := newTestRunner(t)

		if err := run(r, "library", "list", "--filter", "text"); err == nil {
			t.Error("expected error for unknown filter")
		}
	})

	t.Run("delete one declined", func(t *testing.T) {
		r, env := newTestRunner(t)
		ids := seed(env.sandbox, "image", 1)

		if err := run(r, "library", "delete", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(env.sandbox.Records()) != 1 {
			t.Errorf("expected record #%d to remain", ids[0])
		}
		if !strings.Contains(env.output.String(), "已取消") {
			t.Errorf("expected cancel notice, got %q", env.output.String())
		}
	})

	t.Run("delete several with yes", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 3)

		if err := run(r, "library", "delete", "--yes", "1", "2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		records := env.sandbox.Records()
		if len(records) != 1 || records[0].ID != 3 {
			t.Errorf("expected only #3 to remain, got %+v", records)
		}
		if !strings.Contains(env.output.String(), "已删除 2") {
			t.Errorf("expected delete summary, got %q", env.output.String())
		}
	})

	t.Run("delete rejects ids off the page", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 2)

		err := run(r, "library", "delete", "--yes", "1", "99")
		if !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
		if len(env.sandbox.Records()) != 2 {
			t.Error("expected no record to be deleted")
		}
	})

	t.Run("download one to a path", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 1)
		dest := filepath.Join(t.TempDir(), "out", "fox.png")

		if err := run(r, "library", "download", "--output", dest, "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertDirExists(t, filepath.Dir(dest))
		tu.AssertFileExists(t, dest)
	})

	t.Run("download several as archive", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "audio", 2)

		if err := run(r, "library", "download", "1", "2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(env.config.Library.DownloadDir, env.config.Library.ArchiveName))
	})

	t.Run("preview", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "video", 1)

		if err := run(r, "library", "preview", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if shown := env.previewer.Shown(); len(shown) != 1 || shown[0].ID != 1 {
			t.Errorf("expected record #1 previewed, got %+v", shown)
		}
	})

	t.Run("import", func(t *testing.T) {
		r, env := newTestRunner(t)

		err := run(r, "library", "import", "--url", "/media/fox.png", "--type", "image", "--model", "广科院", "--prompt", "fox")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(env.sandbox.Records()) != 1 {
			t.Error("expected imported record on the server")
		}
	})

	t.Run("export csv", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 2)
		dest := filepath.Join(t.TempDir(), "page.csv")

		if err := run(r, "library", "export", "--format", "csv", "--output", dest); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		content := tu.MustReadFile(t, dest)
		if !strings.Contains(content, "prompt b") {
			t.Errorf("expected records in export, got %q", content)
		}
	})
}

func TestJournalCommand(t *testing.T) {
	t.Run("without a database", func(t *testing.T) {
		r, _ := newTestRunner(t)

		if err := run(r, "journal", "list"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		r, _ := newTestRunner(t)

		if err := run(r, "journal", "list", "--status", "lost"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("empty journal", func(t *testing.T) {
		r, env := newTestRunner(t)
		env.config.Database.Path = filepath.Join(t.TempDir(), "journal.db")

		if err := run(r, "journal", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.output.String(), "No journaled generations") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("login saves the session cookie", func(t *testing.T) {
		r, env := newTestRunner(t)
		env.sandbox.AddUser("demo", "secret")
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := shared.SaveConfig(path, env.config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		if err := run(r, "setup", "login", "--config", path, "--username", "demo", "--password", "secret"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		saved, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if !strings.Contains(saved.Auth.Cookie, server.SessionName+"=") {
			t.Errorf("expected session cookie, got %q", saved.Auth.Cookie)
		}
		if saved.Auth.Cookie == env.config.Auth.Cookie {
			t.Error("expected a new session")
		}
	})

	t.Run("login with wrong password", func(t *testing.T) {
		r, env := newTestRunner(t)
		env.sandbox.AddUser("demo", "secret")
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := shared.SaveConfig(path, env.config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		if err := run(r, "setup", "login", "--config", path, "--username", "demo", "--password", "nope"); err == nil {
			t.Error("expected login failure")
		}
	})

	t.Run("logout clears the session", func(t *testing.T) {
		r, env := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := shared.SaveConfig(path, env.config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		if err := run(r, "setup", "logout", "--config", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		saved, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if saved.Auth.Cookie != "" {
			t.Errorf("expected cookie cleared, got %q", saved.Auth.Cookie)
		}
	})

	t.Run("auth from curl", func(t *testing.T) {
		r, _ := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")
		curl := `curl 'https://studio.example.com/api/records/?page=1' -H 'Cookie: sessionid=abc; csrftoken=def'`

		if err := run(r, "setup", "auth", "--config", path, "--curl", curl); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		saved, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if saved.Auth.Cookie != "sessionid=abc; csrftoken=def" {
			t.Errorf("unexpected cookie %q", saved.Auth.Cookie)
		}
		if saved.Server.BaseURL != "https://studio.example.com" {
			t.Errorf("expected base_url from the request origin, got %q", saved.Server.BaseURL)
		}
	})

	t.Run("auth requires one source", func(t *testing.T) {
		r, _ := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(r, "setup", "auth", "--config", path); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := os.Stat(path); err == nil {
			t.Error("expected no config to be written")
		}
	})
}

func TestAPICommands(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		r, env := newTestRunner(t)
		seed(env.sandbox, "image", 1)

		if err := run(r, "api", "get", "/api/records/"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.output.String(), `"prompt a"`) {
			t.Errorf("expected record in response, got %q", env.output.String())
		}
	})

	t.Run("get non-OK", func(t *testing.T) {
		r, env := newTestRunner(t)
		env.sandbox.FailNext("GET", "/api/records/", 502, "bad gateway")

		if err := run(r, "api", "get", "/api/records/"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("post carries the CSRF token", func(t *testing.T) {
		r, env := newTestRunner(t)

		err := run(r, "api", "post", "--data", `{"prompt":"fox","model":"广科院"}`, "/api/image/")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		calls := env.sandbox.Calls()
		last := calls[len(calls)-1]
		if last.CSRF != env.sandbox.CSRFToken() {
			t.Errorf("expected CSRF header %q, got %q", env.sandbox.CSRFToken(), last.CSRF)
		}
	})

	t.Run("post requires data", func(t *testing.T) {
		r, _ := newTestRunner(t)

		if err := run(r, "api", "post", "/api/image/"); err == nil {
			t.Error("expected error without --data")
		}
	})
}
