package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DirName is the name of both the global (~/.bdistudio) and the repo-level
// (.bdistudio) configuration directories.
const DirName = ".bdistudio"

// Environment variables applied by ApplyEnv.
const (
	EnvDataDir  = "BDISTUDIO_DATA_DIR"
	EnvLogLevel = "BDISTUDIO_LOG_LEVEL"
	EnvWebPort  = "BDISTUDIO_WEB_PORT"
)

// Config holds application configuration.
type Config struct {
	// DataDir is the root of the sessions/ and contexts/ trees.
	// Empty means the global base directory (~/.bdistudio).
	DataDir string `json:"data_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DefaultLLMProvider and DefaultLLMModel fill session config when the
	// caller does not name a provider or model.
	DefaultLLMProvider string `json:"default_llm_provider,omitempty"`
	DefaultLLMModel    string `json:"default_llm_model,omitempty"`

	// WebBind and WebPort are the listen address of `studio serve`.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:           "info",
		DefaultLLMProvider: "Gemini",
		DefaultLLMModel:    "gemini-2.5-pro",
		WebBind:            "127.0.0.1",
		WebPort:            8501,
	}
}

// ResolveDataDir returns DataDir, or baseDir when DataDir is unset.
func (c *Config) ResolveDataDir(baseDir string) string {
	if strings.TrimSpace(c.DataDir) == "" {
		return baseDir
	}
	return c.DataDir
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global directory and the
// nearest repo .bdistudio/config.json found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest
// .bdistudio/config.json. Returns "" if there is none.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv loads envFile (if it exists) into the process environment without
// overriding variables that are already set, then applies the BDISTUDIO_*
// overrides to cfg.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWebPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s must be a port number, got %q", EnvWebPort, v)
		}
		cfg.WebPort = port
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		DataDir:            firstNonEmpty(overlay.DataDir, base.DataDir),
		LogLevel:           firstNonEmpty(overlay.LogLevel, base.LogLevel),
		DefaultLLMProvider: firstNonEmpty(overlay.DefaultLLMProvider, base.DefaultLLMProvider),
		DefaultLLMModel:    firstNonEmpty(overlay.DefaultLLMModel, base.DefaultLLMModel),
		WebBind:            firstNonEmpty(overlay.WebBind, base.WebBind),
		WebPort:            firstNonZero(overlay.WebPort, base.WebPort),
		DisabledTools:      mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
