package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Relational mart storage
	Storage StorageConfig `yaml:"storage"`

	// Vector store (Qdrant-compatible)
	VectorStore VectorStoreConfig `yaml:"vector_store"`

	// Forge (GitHub) configuration
	GitHub GitHubConfig `yaml:"github"`

	// LLM gateway configuration
	LLM LLMConfig `yaml:"llm"`

	// Risk banding thresholds
	Risk RiskConfig `yaml:"risk"`

	// Ingestion tuning
	Ingest IngestConfig `yaml:"ingest"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type VectorStoreConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	Dimension      int    `yaml:"dimension"`
	PRCollection   string `yaml:"pr_collection"`
	FileCollection string `yaml:"file_collection"`
	NProbe         int    `yaml:"nprobe"`
	BatchSize      int    `yaml:"batch_size"`
}

type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // Requests per second
}

type LLMConfig struct {
	OpenAIKey       string  `yaml:"openai_key"`
	AnthropicKey    string  `yaml:"anthropic_key"`
	GeminiKey       string  `yaml:"gemini_key"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	ChatModel       string  `yaml:"chat_model"`
	ScoringTemp     float64 `yaml:"scoring_temperature"`
	ProseTemp       float64 `yaml:"prose_temperature"`
	RequestTimeoutS int     `yaml:"request_timeout_seconds"`
}

type RiskConfig struct {
	LowMax    float64 `yaml:"low_max"`
	MediumMax float64 `yaml:"medium_max"`
}

type IngestConfig struct {
	FileWorkers     int           `yaml:"file_workers"`
	ForgePacing     time.Duration `yaml:"forge_pacing"`
	MaxFilesPerPR   int           `yaml:"max_files_per_pr"`
	MaxContentBytes int64         `yaml:"max_content_bytes"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".riskline", "local.db"),
		},
		VectorStore: VectorStoreConfig{
			URL:            "localhost:6334",
			Dimension:      1536,
			PRCollection:   "vs_pr",
			FileCollection: "vs_file",
			NProbe:         10,
			BatchSize:      50,
		},
		GitHub: GitHubConfig{
			RateLimit: 10, // 10 requests per second
		},
		LLM: LLMConfig{
			EmbeddingModel:  "text-embedding-ada-002",
			ChatModel:       "gpt-4o-mini",
			ScoringTemp:     0.1,
			ProseTemp:       0.3,
			RequestTimeoutS: 30,
		},
		Risk: RiskConfig{
			LowMax:    3.0,
			MediumMax: 6.9,
		},
		Ingest: IngestConfig{
			FileWorkers:     4,
			ForgePacing:     100 * time.Millisecond,
			MaxFilesPerPR:   100,
			MaxContentBytes: 1024 * 1024,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("vector_store", cfg.VectorStore)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("risk", cfg.Risk)
	v.SetDefault("ingest", cfg.Ingest)

	// Load from environment variables
	v.SetEnvPrefix("RISKLINE")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".riskline")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".riskline"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local",   // Local overrides (highest precedence)
		".env",         // Main environment file
		".env.example", // Example file as fallback
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err == nil {
				continue
			}
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".riskline", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Forge configuration
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	// LLM provider keys - env vars always win; the keys themselves select
	// which provider the gateway dispatches to (§2 "LLM Gateway")
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if model := os.Getenv("LLM_CHAT_MODEL"); model != "" {
		cfg.LLM.ChatModel = model
	}
	if model := os.Getenv("LLM_EMBEDDING_MODEL"); model != "" {
		cfg.LLM.EmbeddingModel = model
	}

	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.Storage.SQLitePath = expandPath(path)
	}

	// Vector store configuration
	if url := os.Getenv("VECTOR_STORE_URL"); url != "" {
		cfg.VectorStore.URL = url
	}
	if key := os.Getenv("VECTOR_STORE_API_KEY"); key != "" {
		cfg.VectorStore.APIKey = key
	}
	if dim := os.Getenv("VECTOR_STORE_DIMENSION"); dim != "" {
		if n, err := strconv.Atoi(dim); err == nil {
			cfg.VectorStore.Dimension = n
		}
	}

	// Ingest tuning
	if workers := os.Getenv("INGEST_FILE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Ingest.FileWorkers = n
		}
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("storage", c.Storage)
	v.Set("vector_store", c.VectorStore)
	v.Set("github", c.GitHub)
	v.Set("llm", c.LLM)
	v.Set("risk", c.Risk)
	v.Set("ingest", c.Ingest)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate enforces a fail-fast startup policy: missing required
// credentials are caught before a job begins rather than mid-run.
func (c *Config) Validate() error {
	var missing []string
	if c.GitHub.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" && c.LLM.GeminiKey == "" {
		missing = append(missing, "OPENAI_API_KEY or ANTHROPIC_API_KEY or GEMINI_API_KEY")
	}
	if c.Storage.Type == "postgres" && c.Storage.PostgresDSN == "" {
		missing = append(missing, "POSTGRES_DSN")
	}
	if c.VectorStore.URL == "" {
		missing = append(missing, "VECTOR_STORE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}
