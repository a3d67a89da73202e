package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/deidaraiorek/lifeline/internal/storage"
)

const CategoryWeb = "web"

// SpiderPage is a row of a crawler database's pages table.
type SpiderPage struct {
	ID          int64
	URL         string
	Title       string
	Description string
	Content     string
	StatusCode  int
}

// SpiderDB reads pages written by a web crawler.
type SpiderDB struct {
	db *sql.DB
}

func OpenSpiderDB(dbPath string) (*SpiderDB, error) {
	db, err := sql.Open(storage.DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open spider database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open spider database: %w", err)
	}
	return &SpiderDB{db: db}, nil
}

func (sdb *SpiderDB) Close() error {
	return sdb.db.Close()
}

func (sdb *SpiderDB) PagesAfterID(ctx context.Context, afterID int64, limit int) ([]SpiderPage, error) {
	rows, err := sdb.db.QueryContext(ctx,
		"SELECT id, url, title, description, content, status_code FROM pages WHERE id > ? ORDER BY id LIMIT ?",
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []SpiderPage
	for rows.Next() {
		var (
			p                           SpiderPage
			title, description, content sql.NullString
			status                      sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.URL, &title, &description, &content, &status); err != nil {
			return nil, err
		}
		p.StatusCode = int(status.Int64)
		p.Title = title.String
		p.Description = description.String
		p.Content = content.String
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (sdb *SpiderDB) CountPages(ctx context.Context) (int, error) {
	var count int
	err := sdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&count)
	return count, err
}

// ImportSpider copies successfully crawled pages into the document store.
func (i *Importer) ImportSpider(ctx context.Context, src *SpiderDB) (Stats, error) {
	stats := Stats{}
	b := &batcher{imp: i, stats: &stats}

	var lastID int64
	for {
		pages, err := src.PagesAfterID(ctx, lastID, i.batchSize)
		if err != nil {
			return stats, err
		}
		if len(pages) == 0 {
			break
		}

		for _, p := range pages {
			lastID = p.ID
			stats.Read++

			doc, ok := pageDocument(p)
			if !ok {
				stats.Skipped++
				continue
			}
			if err := b.add(ctx, doc); err != nil {
				return stats, err
			}
		}
	}

	if err := b.flush(ctx); err != nil {
		return stats, err
	}
	i.logger.Info("spider import complete", "read", stats.Read, "skipped", stats.Skipped, "stored", stats.Stored)
	return stats, nil
}

func pageDocument(p SpiderPage) (storage.Document, bool) {
	if p.StatusCode != 200 || strings.TrimSpace(p.URL) == "" {
		return storage.Document{}, false
	}
	content := strings.TrimSpace(strings.TrimSpace(p.Description) + " " + strings.TrimSpace(p.Content))
	if content == "" {
		return storage.Document{}, false
	}
	return storage.Document{
		URL:      p.URL,
		Title:    strings.TrimSpace(p.Title),
		Content:  content,
		Origin:   storage.OriginLocal,
		Category: CategoryWeb,
	}, true
}
