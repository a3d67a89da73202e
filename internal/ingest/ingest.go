// Package ingest loads offline data into the stores: news corpora as
// documents, raw text as predictor phrases, and the emergency seed list.
package ingest

import (
	"context"
	"log/slog"

	"github.com/deidaraiorek/lifeline/internal/storage"
)

const DefaultBatchSize = 500

type DocumentWriter interface {
	InsertDocuments(ctx context.Context, docs []storage.Document) (int, error)
}

type PhraseSeeder interface {
	SeedPhrases(ctx context.Context, entries []storage.CorpusEntry) (int, error)
}

type Stats struct {
	Read    int
	Skipped int
	Stored  int
}

type Importer struct {
	store     DocumentWriter
	batchSize int
	logger    *slog.Logger
}

type Option func(*Importer)

func WithBatchSize(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func NewImporter(store DocumentWriter, opts ...Option) *Importer {
	i := &Importer{
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "ingest")
	return i
}

// batcher accumulates documents and flushes them in batchSize chunks.
type batcher struct {
	imp   *Importer
	batch []storage.Document
	stats *Stats
}

func (b *batcher) add(ctx context.Context, doc storage.Document) error {
	b.batch = append(b.batch, doc)
	if len(b.batch) >= b.imp.batchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	n, err := b.imp.store.InsertDocuments(ctx, b.batch)
	if err != nil {
		return err
	}
	b.stats.Stored += n
	b.batch = b.batch[:0]
	b.imp.logger.Info("batch stored", "stored", b.stats.Stored, "read", b.stats.Read)
	return nil
}
