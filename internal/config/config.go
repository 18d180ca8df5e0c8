// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigError wraps a configuration problem detected at load time so
// main() can fail fast with a clear message instead of panicking deep
// inside a subsystem.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"-"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"-"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RerankerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	TopN    int           `mapstructure:"top_n"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RetrievalConfig struct {
	TopK                      int     `mapstructure:"top_k"`
	HybridEnabled             bool    `mapstructure:"hybrid_enabled"`
	RRFK                      int     `mapstructure:"rrf_k"`
	ChunkTokens               int     `mapstructure:"chunk_tokens"`
	ChunkOverlap              int     `mapstructure:"chunk_overlap"`
	MinScore                  float64 `mapstructure:"min_score"`
	EnableContextualRetrieval bool    `mapstructure:"enable_contextual_retrieval"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"-"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type StorageConfig struct {
	Root string `mapstructure:"root"`
}

type EvalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the fully bound, validated application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Eval      EvalConfig      `mapstructure:"eval"`
	Reranker  RerankerConfig  `mapstructure:"reranker"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "local")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.base_url", "http://127.0.0.1:11434")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("embedding.provider", "mock")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "http://127.0.0.1:11434")
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("eval.enabled", false)

	v.SetDefault("reranker.enabled", false)
	v.SetDefault("reranker.top_n", 5)
	v.SetDefault("reranker.timeout", 30*time.Second)

	v.SetDefault("retrieval.top_k", 10)
	v.SetDefault("retrieval.hybrid_enabled", true)
	v.SetDefault("retrieval.rrf_k", 60)
	v.SetDefault("retrieval.chunk_tokens", 500)
	v.SetDefault("retrieval.chunk_overlap", 50)
	v.SetDefault("retrieval.min_score", 0.0)
	v.SetDefault("retrieval.enable_contextual_retrieval", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sqlite.path", "./data/ragcore.db")
	v.SetDefault("storage.root", "./data/documents")
}

// Load reads .env, then config.yaml (if present), then environment
// overrides (APP_ prefix, nested keys joined with underscores), and
// returns a validated Config. Mirrors the teacher's drone config
// loader: defaults first, file second, env last, fail fast on error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Field: "file", Msg: err.Error()}
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "unmarshal", Msg: err.Error()}
	}

	cfg.LLM.APIKey = apiKeyForProvider(cfg.LLM.Provider)
	cfg.Embedding.APIKey = apiKeyForProvider(cfg.Embedding.Provider)
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		fmt.Sscanf(db, "%d", &cfg.Redis.DB)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// apiKeyForProvider reads the top-level, non-namespaced env vars named
// in spec §6 directly, rather than through the APP_ prefix, since a
// provider key is a secret shared across deployments, not a tunable.
func apiKeyForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai", "moonshot":
		if k := os.Getenv("OPENAI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("LLM_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		return os.Getenv("GOOGLE_API_KEY")
	case "deepseek":
		return os.Getenv("DEEPSEEK_API_KEY")
	default:
		return os.Getenv("LLM_API_KEY")
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.LLM.Model) == "" {
		return &ConfigError{Field: "llm.model", Msg: "must not be empty"}
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return &ConfigError{Field: "embedding.model", Msg: "must not be empty"}
	}
	if !isLocalProvider(c.LLM.Provider) && c.LLM.APIKey == "" {
		return &ConfigError{Field: "llm.provider", Msg: fmt.Sprintf("provider %q requires an API key", c.LLM.Provider)}
	}
	if !isLocalProvider(c.Embedding.Provider) && c.Embedding.Provider != "mock" && c.Embedding.APIKey == "" {
		return &ConfigError{Field: "embedding.provider", Msg: fmt.Sprintf("provider %q requires an API key", c.Embedding.Provider)}
	}
	if c.Retrieval.TopK <= 0 {
		return &ConfigError{Field: "retrieval.top_k", Msg: "must be positive"}
	}
	if c.Retrieval.RRFK <= 0 {
		return &ConfigError{Field: "retrieval.rrf_k", Msg: "must be positive"}
	}
	return nil
}

func isLocalProvider(provider string) bool {
	p := strings.ToLower(provider)
	return p == "local" || p == "ollama" || p == "mock"
}
