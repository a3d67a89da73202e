package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/lifeline/internal/api"
	"github.com/deidaraiorek/lifeline/internal/config"
	"github.com/deidaraiorek/lifeline/internal/ingest"
	"github.com/deidaraiorek/lifeline/internal/mcpserver"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "lifeline",
		Usage:   "Hybrid safety search with trust-aware ranking",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   config.DefaultPath(),
				EnvVars: []string{"LIFELINE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve search, predict and feedback tools over MCP stdio",
				Action: mcpCommand,
			},
			{
				Name:   "ingest",
				Usage:  "Import documents into the local index",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "csv",
						Usage: "Headerless news CSV (class, title, description)",
					},
					&cli.StringFlag{
						Name:  "spider-db",
						Usage: "Crawler SQLite database with a pages table",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Documents per transaction",
						Value: ingest.DefaultBatchSize,
					},
				},
			},
			{
				Name:   "train",
				Usage:  "Learn completion phrases from raw text",
				Action: trainCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Plain text file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Keep the N most frequent phrases",
						Value: ingest.DefaultTrainConfig().TopN,
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Corpus category for the phrases",
						Value: ingest.DefaultTrainConfig().Category,
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load the emergency seed queries into the query corpus",
				Action: seedCommand,
			},
			{
				Name:   "rebuild-index",
				Usage:  "Re-derive document tokens and rebuild the prediction index",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Documents per transaction",
						Value: 1000,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("lifeline failed", "err", err)
		os.Exit(1)
	}
}

// setup loads the config and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.App.Metadata = map[string]any{"config": cfg}
	return nil
}

func loadedConfig(c *cli.Context) config.Config {
	if cfg, ok := c.App.Metadata["config"].(config.Config); ok {
		return cfg
	}
	return config.Default()
}

// newLogger writes to stderr; stdout carries the MCP protocol.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func serveCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	app, err := build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer app.Close()

	srv := api.NewServer(app.engine, api.WithLogger(slog.Default()), api.WithHealthCheck(app.store))
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
}

func mcpCommand(c *cli.Context) error {
	cfg := loadedConfig(c)

	ctx, stop := signalContext(c.Context)
	defer stop()

	app, err := build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer app.Close()

	slog.Info("mcp server starting on stdio")
	return mcpserver.ServeStdio(app.engine, version)
}

func ingestCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	csvPath := c.String("csv")
	spiderPath := c.String("spider-db")
	if csvPath == "" && spiderPath == "" {
		return fmt.Errorf("one of --csv or --spider-db is required")
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	imp := ingest.NewImporter(store, ingest.WithBatchSize(c.Int("batch-size")), ingest.WithLogger(slog.Default()))

	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", csvPath, err)
		}
		defer f.Close()

		stats, err := imp.ImportCSV(ctx, f)
		if err != nil {
			return err
		}
		fmt.Printf("csv: read %d, skipped %d, stored %d\n", stats.Read, stats.Skipped, stats.Stored)
	}

	if spiderPath != "" {
		src, err := ingest.OpenSpiderDB(spiderPath)
		if err != nil {
			return err
		}
		defer src.Close()

		stats, err := imp.ImportSpider(ctx, src)
		if err != nil {
			return err
		}
		fmt.Printf("spider: read %d, skipped %d, stored %d\n", stats.Read, stats.Skipped, stats.Stored)
	}
	return nil
}

func trainCommand(c *cli.Context) error {
	cfg := loadedConfig(c)

	f, err := os.Open(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.String("input"), err)
	}
	defer f.Close()

	trainCfg := ingest.DefaultTrainConfig()
	trainCfg.TopN = c.Int("top")
	trainCfg.Category = c.String("category")

	entries, err := ingest.Train(f, trainCfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := ingest.LoadPhrases(c.Context, store, entries)
	if err != nil {
		return err
	}
	fmt.Printf("trained %d phrases\n", n)
	return nil
}

func seedCommand(c *cli.Context) error {
	store, err := openStore(loadedConfig(c))
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := ingest.Seed(c.Context, store)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d phrases\n", n)
	return nil
}

func rebuildCommand(c *cli.Context) error {
	cfg := loadedConfig(c)

	ctx, stop := signalContext(c.Context)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.Reindex(ctx, c.Int("batch-size"))
	if err != nil {
		return fmt.Errorf("failed to reindex documents: %w", err)
	}

	pred, err := newPredictor(store, cfg, slog.Default())
	if err != nil {
		return err
	}
	if err := pred.Rebuild(ctx); err != nil {
		pred.Close()
		return fmt.Errorf("failed to rebuild prediction index: %w", err)
	}
	if err := pred.Close(); err != nil {
		return err
	}
	fmt.Printf("reindexed %d documents, prediction index rebuilt\n", docs)
	return nil
}
