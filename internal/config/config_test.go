package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.General.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2", cfg.General.MaxParallel)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("Web.Host = %q, want 127.0.0.1", cfg.Web.Host)
	}
	if cfg.Git.BotName != "Exo Orchestrator" {
		t.Errorf("Git.BotName = %q, want Exo Orchestrator", cfg.Git.BotName)
	}
	if !cfg.Sweep.Enabled {
		t.Error("sweep should be enabled by default")
	}
	if cfg.Sweep.Schedule != "*/15 * * * *" {
		t.Errorf("Sweep.Schedule = %q, want */15 * * * *", cfg.Sweep.Schedule)
	}
}

func TestLoad_FromFile(t *testing.T) {
	configPath := writeTempConfig(t, `
[general]
repo_path = "/test/repo"
max_parallel = 5

[web]
port = 9000
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.RepoPath != "/test/repo" {
		t.Errorf("RepoPath = %q, want /test/repo", cfg.General.RepoPath)
	}
	if cfg.General.MaxParallel != 5 {
		t.Errorf("MaxParallel = %d, want 5", cfg.General.MaxParallel)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d, want 9000", cfg.Web.Port)
	}
	// Untouched sections keep their defaults
	if cfg.Git.BotEmail != "exo-orchestrator@localhost" {
		t.Errorf("Git.BotEmail = %q, want default", cfg.Git.BotEmail)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want default 2", cfg.General.MaxParallel)
	}
}

func TestLoad_InvalidToml(t *testing.T) {
	configPath := writeTempConfig(t, "[general\nthis is not toml")

	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_ExpandsPaths(t *testing.T) {
	home, _ := os.UserHomeDir()
	configPath := writeTempConfig(t, `
[general]
repo_path = "~/code/project"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(home, "code", "project")
	if cfg.General.RepoPath != want {
		t.Errorf("RepoPath = %q, want %q", cfg.General.RepoPath, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWebConfig_Addr(t *testing.T) {
	w := WebConfig{Host: "0.0.0.0", Port: 9000}
	if w.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:9000", w.Addr())
	}
}

func TestFindLocalConfig(t *testing.T) {
	root := t.TempDir()
	subdir := filepath.Join(root, "sub", "dir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}

	localConfig := filepath.Join(root, LocalConfigName)
	if err := os.WriteFile(localConfig, []byte("[general]\nrepo_path = \"/local\""), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	if err := os.Chdir(subdir); err != nil {
		t.Fatal(err)
	}

	// Should find config in parent
	found := FindLocalConfig()
	if resolved, err := filepath.EvalSymlinks(found); err == nil {
		found = resolved
	}
	want := localConfig
	if resolved, err := filepath.EvalSymlinks(want); err == nil {
		want = resolved
	}
	if found != want {
		t.Errorf("FindLocalConfig() = %q, want %q", found, want)
	}
}

func TestFindLocalConfig_NotFound(t *testing.T) {
	root := t.TempDir()

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	found := FindLocalConfig()
	if found != "" {
		t.Errorf("FindLocalConfig() = %q, want empty string", found)
	}
}

func TestLoadWithLocalFallback_ExplicitPath(t *testing.T) {
	explicitPath := writeTempConfig(t, `[general]
repo_path = "/explicit"
`)

	cfg, err := LoadWithLocalFallback(explicitPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.RepoPath != "/explicit" {
		t.Errorf("RepoPath = %q, want /explicit", cfg.General.RepoPath)
	}
}

func TestLoadWithLocalFallback_LocalConfig(t *testing.T) {
	root := t.TempDir()
	localConfig := filepath.Join(root, LocalConfigName)

	content := `[general]
repo_path = "/from-local"
`
	if err := os.WriteFile(localConfig, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithLocalFallback("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.RepoPath != "/from-local" {
		t.Errorf("RepoPath = %q, want /from-local", cfg.General.RepoPath)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
