package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.BaseURL != "http://127.0.0.1:8000" {
			t.Errorf("expected base URL http://127.0.0.1:8000, got %s", config.Server.BaseURL)
		}

		if config.Library.PageSize != 10 {
			t.Errorf("expected page size 10, got %d", config.Library.PageSize)
		}

		if config.Library.ArchiveName != "media_batch.zip" {
			t.Errorf("expected archive name media_batch.zip, got %s", config.Library.ArchiveName)
		}

		if config.Auth.CSRFCookie != "csrftoken" || config.Auth.CSRFHeader != "X-CSRFToken" {
			t.Errorf("unexpected csrf settings: %+v", config.Auth)
		}

		if config.Server.Timeout() != 0 {
			t.Errorf("expected no timeout by default, got %v", config.Server.Timeout())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
base_url = "https://studio.example.com"
timeout_seconds = 30

[auth]
cookie = "sessionid=abc; csrftoken=tok"

[library]
page_size = 25
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.BaseURL != "https://studio.example.com" {
			t.Errorf("expected overridden base URL, got %s", config.Server.BaseURL)
		}
		if config.Server.Timeout() != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", config.Server.Timeout())
		}
		if config.Library.PageSize != 25 {
			t.Errorf("expected page size 25, got %d", config.Library.PageSize)
		}
		if config.Library.ArchiveName != "media_batch.zip" {
			t.Errorf("expected archive name default to survive partial file, got %s", config.Library.ArchiveName)
		}
		if config.Auth.CSRFHeader != "X-CSRFToken" {
			t.Errorf("expected csrf header default, got %s", config.Auth.CSRFHeader)
		}
	})

	t.Run("LoadConfig Rejects Invalid Page Size", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[library]\npage_size = 0\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Auth.Cookie = "sessionid=xyz"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Auth.Cookie != "sessionid=xyz" {
			t.Errorf("expected cookie to persist, got %q", loaded.Auth.Cookie)
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "info"},
		{"debug", "debug"},
		{"WARN", "warn"},
		{"nonsense", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in).String(); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
