// Package config loads the service configuration: built-in defaults, then
// an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deidaraiorek/lifeline/internal/geo"
	"github.com/deidaraiorek/lifeline/internal/intent"
	"github.com/deidaraiorek/lifeline/internal/livefetch"
	"github.com/deidaraiorek/lifeline/internal/predictor"
	"github.com/deidaraiorek/lifeline/internal/ranker"
	"github.com/deidaraiorek/lifeline/internal/retriever"
	"github.com/deidaraiorek/lifeline/internal/search"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Classifier intent.Config    `yaml:"classifier"`
	LiveFetch  LiveFetchConfig  `yaml:"live_fetch"`
	Geo        GeoConfig        `yaml:"geo"`
	Retriever  retriever.Config `yaml:"retriever"`
	Search     search.Config    `yaml:"search"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Predictor  predictor.Config `yaml:"predictor"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

type LLMConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type LiveFetchConfig struct {
	Enabled          bool `yaml:"enabled"`
	livefetch.Config `yaml:",inline"`
}

type GeoConfig struct {
	Enabled    bool `yaml:"enabled"`
	geo.Config `yaml:",inline"`
}

type RankingConfig struct {
	ranker.Weights  `yaml:",inline"`
	OfficialDomains []string `yaml:"official_domains"`
	RumorDomains    []string `yaml:"rumor_domains"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/lifeline.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Embedding: EmbeddingConfig{
			Enabled:   true,
			Model:     "text-embedding-3-small",
			CacheSize: 4096,
		},
		LLM: LLMConfig{
			Enabled: true,
			Model:   "gpt-4o-mini",
			Timeout: 3 * time.Second,
		},
		Classifier: intent.DefaultConfig(),
		LiveFetch:  LiveFetchConfig{Enabled: true, Config: livefetch.DefaultConfig()},
		Geo: GeoConfig{Enabled: true, Config: geo.Config{
			Default:   geo.DefaultLocation,
			Timeout:   time.Second,
			CacheSize: 1024,
		}},
		Retriever: retriever.DefaultConfig(),
		Search:    search.DefaultConfig(),
		Ranking:   RankingConfig{Weights: ranker.DefaultWeights()},
		Predictor: predictor.DefaultConfig(),
	}
}

// DefaultPath is used when no --config flag is given. A missing file at
// this path is not an error.
func DefaultPath() string {
	return filepath.Join("config", "lifeline.yaml")
}

func Load(path string) (Config, error) {
	cfg := Default()

	if err := loadFile(path, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "LIFELINE_ADDR")
	setString(&cfg.Database.Path, "LIFELINE_DB_PATH")
	setString(&cfg.Log.Level, "LIFELINE_LOG_LEVEL")
	setString(&cfg.Embedding.BaseURL, "LIFELINE_EMBED_BASE_URL")
	setString(&cfg.LLM.BaseURL, "LIFELINE_LLM_BASE_URL")

	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = key
		}
	}
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Database.Path != "", "database.path is required")
	check(validLevel(c.Log.Level), fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	check(c.Log.Format == "text" || c.Log.Format == "json", fmt.Sprintf("log.format %q is not text or json", c.Log.Format))

	check(c.Classifier.Threshold > 0, "classifier.threshold must be positive")
	check(c.Classifier.LocalConfidence >= 0 && c.Classifier.LocalConfidence <= 1, "classifier.local_confidence must be within [0,1]")

	check(c.Retriever.Limit > 0, "retriever.limit must be positive")
	check(c.Retriever.MinResults >= 0, "retriever.min_results must not be negative")
	check(c.Retriever.CoverageFloor >= 0 && c.Retriever.CoverageFloor <= 1, "retriever.coverage_floor must be within [0,1]")
	check(c.Retriever.LiveFetchTimeout > 0, "retriever.live_fetch_timeout must be positive")

	check(c.Search.DefaultLimit > 0, "search.default_limit must be positive")
	check(c.Search.MaxLimit >= c.Search.DefaultLimit, "search.max_limit must be at least search.default_limit")
	check(c.Search.CorpusSize >= 0, "search.corpus_size must not be negative")

	check(c.Predictor.MaxSuggestions > 0, "predictor.max_suggestions must be positive")
	check(c.Predictor.MinPhraseLength > 0, "predictor.min_phrase_length must be positive")

	if err := c.Ranking.Weights.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
