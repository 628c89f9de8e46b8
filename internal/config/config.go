package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Chat        ChatConfig                `json:"chat"`
	Embedding   EmbeddingConfig           `json:"embedding"`
	Index       IndexConfig               `json:"index"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress  string `json:"server_address"`
	StaticDir      string `json:"static_dir"`
	UploadDir      string `json:"upload_dir"`
	SessionBackend string `json:"session_backend"` // "memory" (default) or "redis"
}

// ChatConfig selects the generative provider and tunes the pipeline.
type ChatConfig struct {
	Provider        string `json:"provider"`
	HistoryWindow   int    `json:"history_window"`
	GenerateTimeout int    `json:"generate_timeout_seconds"`
	RetrieveTimeout int    `json:"retrieve_timeout_seconds"`
}

type EmbeddingConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// IndexConfig points at the Pinecone control plane. Host is discovered
// from the describe-index response when left empty.
type IndexConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Name           string `json:"name"`
	Host           string `json:"host"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Index.Name == "" {
		return nil, fmt.Errorf("index name must be configured")
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = "openai"
	}
	if _, ok := cfg.Providers[cfg.Chat.Provider]; !ok {
		return nil, fmt.Errorf("chat provider %s not configured", cfg.Chat.Provider)
	}

	return &cfg, nil
}
