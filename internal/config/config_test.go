package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lifeline/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lifeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.75, cfg.Classifier.Threshold)
	assert.Equal(t, 100, cfg.Retriever.Limit)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  read_timeout: 5s
database:
  path: /tmp/ll.db
log:
  level: debug
  format: json
classifier:
  threshold: 0.8
live_fetch:
  enabled: false
  max_results: 5
  timeout: 4s
geo:
  default: "Mumbai, Maharashtra"
retriever:
  coverage_floor: 0.6
ranking:
  bounce_penalty: 0.2
  official_domains: [lifeline.example]
predictor:
  snapshot_path: data/predictor.gob
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "/tmp/ll.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 0.8, cfg.Classifier.Threshold)
	assert.Equal(t, 0.6, cfg.Classifier.SemanticWeight)
	assert.False(t, cfg.LiveFetch.Enabled)
	assert.Equal(t, 5, cfg.LiveFetch.MaxResults)
	assert.Equal(t, 4*time.Second, cfg.LiveFetch.Timeout)
	assert.Equal(t, "Mumbai, Maharashtra", cfg.Geo.Default)
	assert.Equal(t, 0.6, cfg.Retriever.CoverageFloor)
	assert.Equal(t, 0.2, cfg.Ranking.BouncePenalty)
	assert.Equal(t, 0.30, cfg.Ranking.Emergency.Authority)
	assert.Equal(t, []string{"lifeline.example"}, cfg.Ranking.OfficialDomains)
	assert.Equal(t, "data/predictor.gob", cfg.Predictor.SnapshotPath)
	assert.Equal(t, 5, cfg.Predictor.MaxSuggestions)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("LIFELINE_ADDR", ":7070")
	t.Setenv("LIFELINE_DB_PATH", "/var/lib/lifeline.db")
	t.Setenv("LIFELINE_LOG_LEVEL", "warn")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LIFELINE_EMBED_BASE_URL", "http://localhost:11434/v1")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/lifeline.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.BaseURL)
}

func TestLoadRejectsInvalidWeights(t *testing.T) {
	path := writeConfig(t, `
ranking:
  emergency:
    authority: 0.1
    freshness: 0.1
    semantic: 0.3
    relevance: 0.4
    consensus: 0.1
`)
	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "loud"
	cfg.Retriever.CoverageFloor = 2
	cfg.Search.MaxLimit = 1

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "coverage_floor")
	assert.Contains(t, err.Error(), "max_limit")
}
