package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"regexp"
	"strings"

	"github.com/deidaraiorek/lifeline/internal/storage"
)

const newsHost = "https://news.global"

// AG News class indexes.
var newsCategories = map[string]string{
	"1": "world",
	"2": "sports",
	"3": "business",
	"4": "sci-tech",
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ImportCSV reads headerless class,title,description rows. Rows missing a
// title or description are skipped. URLs derive from the row content, so
// importing the same file twice updates rather than duplicates.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader) (Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	stats := Stats{}
	b := &batcher{imp: i, stats: &stats}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read csv row %d: %w", stats.Read+1, err)
		}
		stats.Read++

		doc, ok := newsDocument(record)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := b.add(ctx, doc); err != nil {
			return stats, err
		}
	}

	if err := b.flush(ctx); err != nil {
		return stats, err
	}
	i.logger.Info("csv import complete", "read", stats.Read, "skipped", stats.Skipped, "stored", stats.Stored)
	return stats, nil
}

func newsDocument(record []string) (storage.Document, bool) {
	if len(record) < 3 {
		return storage.Document{}, false
	}
	class := strings.TrimSpace(record[0])
	title := strings.TrimSpace(record[1])
	desc := strings.TrimSpace(record[2])
	if title == "" || desc == "" {
		return storage.Document{}, false
	}

	category, ok := newsCategories[class]
	if !ok {
		category = storage.CategoryGeneral
	}

	return storage.Document{
		URL:      NewsURL(category, title, desc),
		Title:    title,
		Content:  title + ". " + desc,
		Origin:   storage.OriginLocal,
		Category: category,
	}, true
}

// NewsURL builds a stable synthetic URL for an imported article.
func NewsURL(category, title, desc string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	h := fnv.New32a()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(desc))
	return fmt.Sprintf("%s/%s/%s-%08x", newsHost, category, slug, h.Sum32())
}
