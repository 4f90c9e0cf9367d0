package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Archive ArchiveConfig `yaml:"archive"`
	Engine  EngineConfig  `yaml:"engine"`
	Ingest  IngestConfig  `yaml:"ingest"`

	MessagesDir string `yaml:"messages_dir"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StoreConfig selects the game store: Postgres when DatabaseURL is set,
// otherwise SQLite when SQLitePath is set, otherwise memory.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisURL    string `yaml:"redis_url"`
}

type ArchiveConfig struct {
	BaseURL           string        `yaml:"base_url"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Concurrency       int           `yaml:"concurrency"`
}

type EngineConfig struct {
	StockfishPath string        `yaml:"stockfish_path"`
	Depth         int           `yaml:"depth"`
	TopLines      int           `yaml:"top_lines"`
	Threads       int           `yaml:"threads"`
	HashMB        int           `yaml:"hash_mb"`
	MaxSessions   int           `yaml:"max_sessions"`
	Timeout       time.Duration `yaml:"timeout"`
}

type IngestConfig struct {
	LockTTL time.Duration `yaml:"lock_ttl"`
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTP: HTTPConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Archive: ArchiveConfig{
			BaseURL:           "https://api.chess.com/pub/player",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 4,
			Concurrency:       1,
		},
		Engine: EngineConfig{
			Depth:    18,
			TopLines: 3,
			Threads:  1,
			HashMB:   64,
			Timeout:  60 * time.Second,
		},
		Ingest: IngestConfig{LockTTL: 10 * time.Minute},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (when non-empty), then environment variables.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	envString("HTTP_ADDR", &cfg.HTTP.Addr)
	envList("ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins)

	envString("DATABASE_URL", &cfg.Store.DatabaseURL)
	envString("SQLITE_PATH", &cfg.Store.SQLitePath)
	envString("REDIS_URL", &cfg.Store.RedisURL)

	envString("CHESSCOM_API_URL", &cfg.Archive.BaseURL)
	envString("ARCHIVE_USER_AGENT", &cfg.Archive.UserAgent)
	envString("STOCKFISH_PATH", &cfg.Engine.StockfishPath)
	envString("MESSAGES_DIR", &cfg.MessagesDir)

	var errs []error
	errs = append(errs,
		envDuration("ARCHIVE_TIMEOUT", &cfg.Archive.Timeout),
		envFloat("ARCHIVE_RPS", &cfg.Archive.RequestsPerSecond),
		envInt("ARCHIVE_CONCURRENCY", &cfg.Archive.Concurrency),
		envInt("ENGINE_DEPTH", &cfg.Engine.Depth),
		envInt("ENGINE_TOP_LINES", &cfg.Engine.TopLines),
		envInt("ENGINE_THREADS", &cfg.Engine.Threads),
		envInt("ENGINE_HASH_MB", &cfg.Engine.HashMB),
		envInt("ENGINE_MAX_SESSIONS", &cfg.Engine.MaxSessions),
		envDuration("ENGINE_TIMEOUT", &cfg.Engine.Timeout),
		envDuration("INGEST_LOCK_TTL", &cfg.Ingest.LockTTL),
	)
	return errors.Join(errs...)
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.Archive.BaseURL) == "" {
		return errors.New("CHESSCOM_API_URL is required")
	}
	if c.Archive.Timeout <= 0 {
		return errors.New("ARCHIVE_TIMEOUT must be positive")
	}
	if c.Archive.RequestsPerSecond < 0 {
		return errors.New("ARCHIVE_RPS must not be negative")
	}
	if c.Archive.Concurrency < 1 || c.Archive.Concurrency > 12 {
		return fmt.Errorf("ARCHIVE_CONCURRENCY %d out of range 1-12", c.Archive.Concurrency)
	}
	if c.Engine.Depth < 1 || c.Engine.Depth > 60 {
		return fmt.Errorf("ENGINE_DEPTH %d out of range 1-60", c.Engine.Depth)
	}
	if c.Engine.TopLines < 1 || c.Engine.TopLines > 10 {
		return fmt.Errorf("ENGINE_TOP_LINES %d out of range 1-10", c.Engine.TopLines)
	}
	if c.Engine.HashMB <= 0 {
		return errors.New("ENGINE_HASH_MB must be positive")
	}
	if c.Engine.Timeout <= 0 {
		return errors.New("ENGINE_TIMEOUT must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func envInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// envDuration accepts Go durations ("45s") or plain seconds ("45").
func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
