package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lifeline/internal/config"
	"github.com/deidaraiorek/lifeline/internal/ingest"
	"github.com/deidaraiorek/lifeline/internal/search"
	"github.com/deidaraiorek/lifeline/internal/storage"
)

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", ""} {
		_, err := newLogger(config.LogConfig{Level: lvl, Format: "text"})
		assert.NoError(t, err, lvl)
	}
	_, err := newLogger(config.LogConfig{Level: "info", Format: "json"})
	assert.NoError(t, err)

	_, err = newLogger(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "lifeline.db")
	cfg.LiveFetch.Enabled = false
	cfg.Geo.Enabled = false
	cfg.Embedding.Enabled = false
	cfg.LLM.Enabled = false
	cfg.Predictor.SnapshotPath = filepath.Join(t.TempDir(), "predictor.gob")
	return cfg
}

func TestBuildServesOffline(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig(t)

	store, err := openStore(cfg)
	require.NoError(t, err)
	_, err = store.InsertDocuments(ctx, []storage.Document{
		{URL: "https://ready.gov/earthquakes", Title: "Earthquake safety", Content: "Drop, cover and hold on during an earthquake."},
	})
	require.NoError(t, err)
	_, err = ingest.Seed(ctx, store)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	app, err := build(ctx, cfg, slog.Default())
	require.NoError(t, err)
	defer app.Close()

	resp, err := app.engine.Search(ctx, search.Request{Query: "earthquake safety", Mode: "emergency"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://ready.gov/earthquakes", resp.Results[0].URL)
	assert.True(t, resp.EmergencyMode)
	// one local hit is below the minimum, but live fetch is off
	assert.Equal(t, "hybrid", resp.Meta.Source)

	pred := app.engine.Predict(ctx, "heart attack")
	assert.Contains(t, pred.Suggestions, "heart attack symptoms")
}
