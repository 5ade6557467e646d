package ftcfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ftp.config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefaultHistoryDisabled(t *testing.T) {
	// a bare -g must not create a journal in the working directory
	if got := Default().Client.HistoryPath; got != "" {
		t.Fatalf("default history_path = %q, want empty", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_config = "./local/smplog.config.toml"

[server]
root = "/srv/files"
max_sessions = 4
accept_timeout_seconds = 5

[client]
overwrite = "never"
history_path = "./local/ftclient.history"
`)

	cfg, used, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != path {
		t.Fatalf("used = %q, want %q", used, path)
	}
	if cfg.Server.Root != "/srv/files" || cfg.Server.MaxSessions != 4 {
		t.Fatalf("server section not applied: %+v", cfg.Server)
	}
	if cfg.Server.AcceptTimeout() != 5*time.Second {
		t.Fatalf("AcceptTimeout = %v", cfg.Server.AcceptTimeout())
	}
	// untouched keys keep their defaults
	if cfg.Server.MaxFrameBytes != Default().Server.MaxFrameBytes {
		t.Fatalf("max_frame_bytes lost its default: %d", cfg.Server.MaxFrameBytes)
	}
	if cfg.Client.Overwrite != "never" || cfg.Client.HistoryPath != "./local/ftclient.history" {
		t.Fatalf("client section not applied: %+v", cfg.Client)
	}
	if cfg.LogConfig != "./local/smplog.config.toml" {
		t.Fatalf("log_config = %q", cfg.LogConfig)
	}

	srv := cfg.Server.NewServer()
	if srv.Root != "/srv/files" || srv.AcceptTimeout != 5*time.Second {
		t.Fatalf("NewServer = %+v", srv)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "[client]\ndownload_dir = \"./downloads\"\n")
	t.Setenv(envConfigPath, path)

	cfg, used, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if used != path || cfg.Client.DownloadDir != "./downloads" {
		t.Fatalf("env config not used: used=%q cfg=%+v", used, cfg.Client)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "[server]\nport = 30021\n"},
		{name: "bad overwrite policy", body: "[client]\noverwrite = \"sometimes\"\n"},
		{name: "zero frame limit", body: "[server]\nmax_frame_bytes = 0\n"},
		{name: "negative sessions", body: "[server]\nmax_sessions = -1\n"},
		{name: "not toml", body: "[server\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected Load to fail")
			}
		})
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}
