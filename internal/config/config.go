// Package config provides configuration loading and structs for the MirrorAPI server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the index directory and the ingest history database.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
}

// IngestConfig holds the default source folder and watch settings.
type IngestConfig struct {
	Folder     string   `yaml:"folder"`
	Extensions []string `yaml:"extensions"`
	Watch      bool     `yaml:"watch"`
	Recursive  *bool    `yaml:"recursive"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (i *IngestConfig) RecursiveOrDefault() bool {
	if i.Recursive != nil {
		return *i.Recursive
	}
	return true
}

// Debounce returns the watcher debounce as a duration.
func (i *IngestConfig) Debounce() time.Duration {
	return time.Duration(i.DebounceMS) * time.Millisecond
}

// ChunkingConfig holds character window settings.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// Overlap returns the configured overlap; 150 when unset.
func (c *ChunkingConfig) Overlap() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return 150
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	TopK      int    `yaml:"top_k"`
	IndexType string `yaml:"index_type"`
}

// EmbeddingConfig holds the fallback chain settings.
type EmbeddingConfig struct {
	Model              string                `yaml:"model"`
	HealthCooldownSecs int                   `yaml:"health_cooldown_secs"`
	FallbackDimensions int                   `yaml:"fallback_dimensions"`
	Local              LocalEmbeddingConfig  `yaml:"local"`
	Remote             RemoteEmbeddingConfig `yaml:"remote"`
}

// LocalEmbeddingConfig holds ONNX embedder settings. The local strategy is skipped when
// ModelPath is empty.
type LocalEmbeddingConfig struct {
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	OutputName  string `yaml:"output_name"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
}

// Remote embedding providers.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderNone        = "none"
)

// RemoteEmbeddingConfig holds the hosted embedding endpoint.
type RemoteEmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	URL         string `yaml:"url"`
	BaseURL     string `yaml:"base_url"`
	TokenEnv    string `yaml:"token_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	CacheSize   int    `yaml:"cache_size"` // query and chunk vectors kept in memory; -1 disables
}

// Token reads the credential from the configured environment variable.
func (r RemoteEmbeddingConfig) Token() string {
	return os.Getenv(r.TokenEnv)
}

// Timeout returns the request timeout.
func (r RemoteEmbeddingConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// GenerationConfig holds the chat completions backend.
type GenerationConfig struct {
	Disabled     bool    `yaml:"disabled"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	InsightModel string  `yaml:"insight_model"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	MaxNewTokens int     `yaml:"max_new_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
}

// APIKey reads the credential from the configured environment variable.
func (g GenerationConfig) APIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// Timeout returns the request timeout.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// Load reads and parses the config file at path, applies environment overrides and defaults,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with paths relative to baseDir.
func Default(baseDir string) (*Config, error) {
	var cfg Config
	if err := finish(&cfg, baseDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, baseDir string) error {
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return err
	}
	ApplyDefaults(cfg)

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, baseDir)
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.DataDir, "history.db")
	}
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, baseDir)
	cfg.Ingest.Folder = expandPath(cfg.Ingest.Folder, baseDir)
	if cfg.Embedding.Local.ModelPath != "" {
		cfg.Embedding.Local.ModelPath = expandPath(cfg.Embedding.Local.ModelPath, baseDir)
	}
	if cfg.Embedding.Local.VocabPath != "" {
		cfg.Embedding.Local.VocabPath = expandPath(cfg.Embedding.Local.VocabPath, baseDir)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables read through getenv: TOP_K,
// MAX_NEW_TOKENS, TEMPERATURE, EMBED_MODEL, NVIDIA_MODEL, NVIDIA_BASE_URL, and
// MIRRORAPI_DATA_DIR. Malformed numbers are an error.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	if v := getenv("TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOP_K: %w", err))
		} else {
			cfg.Retrieval.TopK = n
		}
	}
	if v := getenv("MAX_NEW_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_NEW_TOKENS: %w", err))
		} else {
			cfg.Generation.MaxNewTokens = n
		}
	}
	if v := getenv("TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TEMPERATURE: %w", err))
		} else {
			cfg.Generation.Temperature = f
		}
	}
	if v := getenv("EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := getenv("NVIDIA_MODEL"); v != "" {
		cfg.Generation.InsightModel = v
	}
	if v := getenv("NVIDIA_BASE_URL"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := getenv("MIRRORAPI_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file without overriding ones already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to baseDir;
// "~/" is relative to the home directory; other relative paths are relative to baseDir too.
func expandPath(path string, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	if abs, err := filepath.Abs(filepath.Join(baseDir, path)); err == nil {
		return abs
	}
	return filepath.Join(baseDir, path)
}
