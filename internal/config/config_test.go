package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.LogLevel != want.LogLevel || cfg.WebPort != want.WebPort || cfg.DefaultLLMModel != want.DefaultLLMModel {
		t.Fatalf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	content := `{"log_level": "debug", "web_port": 9000, "default_llm_provider": "OpenAI"}`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.WebPort != 9000 {
		t.Errorf("WebPort = %d, want 9000", cfg.WebPort)
	}
	if cfg.DefaultLLMProvider != "OpenAI" {
		t.Errorf("DefaultLLMProvider = %q, want %q", cfg.DefaultLLMProvider, "OpenAI")
	}
	if cfg.DefaultLLMModel != "gemini-2.5-pro" {
		t.Errorf("DefaultLLMModel = %q, want default", cfg.DefaultLLMModel)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithRepo_RepoOverridesGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"log_level": "warn", "disabled_tools": ["context_delete"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, DirName)
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"log_level": "debug", "disabled_tools": ["session_archive"]}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q (repo override)", cfg.LogLevel, "debug")
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 merged entries", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.WebBind != "127.0.0.1" {
		t.Errorf("WebBind = %q, want default", cfg.WebBind)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"bdi_update", " context_delete "}}
	overlay := &Config{DisabledTools: []string{"context_delete", "session_archive", ""}}

	result := Merge(base, overlay)

	want := []string{"bdi_update", "context_delete", "session_archive"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestResolveDataDir(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ResolveDataDir("/base"); got != "/base" {
		t.Errorf("ResolveDataDir() = %q, want %q", got, "/base")
	}
	cfg.DataDir = "/data"
	if got := cfg.ResolveDataDir("/base"); got != "/data" {
		t.Errorf("ResolveDataDir() = %q, want %q", got, "/data")
	}
}

func TestApplyEnv_FromEnvFile(t *testing.T) {
	// Registers cleanup for the variables godotenv will set.
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvWebPort, "")
	os.Unsetenv(EnvDataDir)
	os.Unsetenv(EnvLogLevel)
	os.Unsetenv(EnvWebPort)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "BDISTUDIO_DATA_DIR=/srv/studio\nBDISTUDIO_LOG_LEVEL=debug\nBDISTUDIO_WEB_PORT=9100\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, envFile); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.DataDir != "/srv/studio" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/srv/studio")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.WebPort != 9100 {
		t.Errorf("WebPort = %d, want 9100", cfg.WebPort)
	}
}

func TestApplyEnv_ProcessEnvWinsOverFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvWebPort, "")
	t.Setenv(EnvDataDir, "")

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("BDISTUDIO_LOG_LEVEL=debug\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, envFile); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want %q (process env wins)", cfg.LogLevel, "error")
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	t.Setenv(EnvWebPort, "eighty")

	if err := ApplyEnv(DefaultConfig(), ""); err == nil {
		t.Error("ApplyEnv() expected error for invalid port, got nil")
	}
}
