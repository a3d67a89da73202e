package retriever

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/deidaraiorek/lifeline/internal/metrics"
	"github.com/deidaraiorek/lifeline/internal/storage"
)

// persister writes scraped documents in the background. A failed write is
// retried once before it is logged and counted.
type persister struct {
	store     DocumentStore
	pool      *ants.Pool
	retryWait time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
	once      sync.Once
}

func newPersister(store DocumentStore, workers int, retryWait time.Duration, logger *slog.Logger) (*persister, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &persister{store: store, pool: pool, retryWait: retryWait, logger: logger}, nil
}

// submit hands docs to the pool without waiting. A saturated pool gets a
// detached goroutine instead, so a slow store never holds up a search.
func (p *persister) submit(docs []storage.Document) {
	if len(docs) == 0 {
		return
	}
	batch := append([]storage.Document(nil), docs...)

	p.wg.Add(1)
	run := func() {
		defer p.wg.Done()
		p.write(batch)
	}
	if err := p.pool.Submit(run); err != nil {
		p.logger.Debug("persistence pool saturated, detaching write", "count", len(batch), "err", err)
		go run()
	}
}

func (p *persister) write(docs []storage.Document) {
	ctx := context.Background()

	n, err := p.store.InsertDocuments(ctx, docs)
	if err == nil {
		p.logger.Debug("persisted scraped documents", "count", n)
		return
	}
	p.logger.Warn("persisting scraped documents failed, retrying", "count", len(docs), "err", err)

	time.Sleep(p.retryWait)
	if _, err := p.store.InsertDocuments(ctx, docs); err != nil {
		metrics.PersistFailures.WithLabelValues("documents").Inc()
		p.logger.Error("dropping scraped documents", "count", len(docs), "err", err)
	}
}

func (p *persister) close() {
	p.once.Do(func() {
		p.wg.Wait()
		p.pool.Release()
	})
}
