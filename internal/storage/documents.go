package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deidaraiorek/lifeline/internal/textprocessor"
)

const documentColumns = "d.id, d.url, d.title, d.content, d.tokens, d.origin, d.category, d.published_at, d.created_at, d.click_count, d.last_reported_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, extra ...any) (Document, error) {
	var (
		doc                            Document
		tokens                         string
		publishedAt, createdAt, report int64
	)
	dest := []any{
		&doc.ID, &doc.URL, &doc.Title, &doc.Content, &tokens, &doc.Origin,
		&doc.Category, &publishedAt, &createdAt, &doc.ClickCount, &report,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Document{}, err
	}
	doc.Tokens = strings.Fields(tokens)
	doc.PublishedAt = fromMillis(publishedAt)
	doc.CreatedAt = fromMillis(createdAt)
	doc.LastReportedAt = fromMillis(report)
	return doc, nil
}

// FindByTokenOverlap returns documents sharing at least one term with
// tokens, most matched terms first.
func (s *Store) FindByTokenOverlap(ctx context.Context, tokens []string, limit int) ([]Document, error) {
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return []Document{}, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(DISTINCT p.term_id) AS matched
		FROM postings p
		JOIN terms t ON t.term_id = p.term_id
		JOIN documents d ON d.id = p.doc_id
		WHERE t.term IN (%s)
		GROUP BY d.id
		ORDER BY matched DESC, d.id ASC
		LIMIT ?`, documentColumns, placeholders(len(tokens)))

	args := append(stringArgs(tokens), limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query token overlap: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var matched int
		doc, err := scanDocument(rows, &matched)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.MatchedTerms = matched
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) GetDocumentByURL(ctx context.Context, url string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents d WHERE d.url = ?", url)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := s.InsertDocuments(ctx, []Document{doc})
	return err
}

// InsertDocuments upserts docs by URL in one transaction and reports how
// many rows it wrote. Tokens are always re-derived from title and content.
// A scraped document never replaces a local one with the same URL.
func (s *Store) InsertDocuments(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts, err := prepareDocumentStatements(ctx, tx)
	if err != nil {
		return 0, err
	}
	defer stmts.Close()

	now := time.Now()
	saved := 0
	for _, doc := range docs {
		if strings.TrimSpace(doc.URL) == "" {
			continue
		}
		processed := s.processor.ProcessDocument(textprocessor.DocumentFields{
			Title:   doc.Title,
			Content: doc.Content,
		})
		written, err := stmts.save(ctx, doc, processed, now)
		if err != nil {
			return 0, fmt.Errorf("failed to save document %q: %w", doc.URL, err)
		}
		if written {
			saved++
		}
	}

	if err := refreshTotalDocuments(ctx, tx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

type documentStatements struct {
	upsertDoc     *sql.Stmt
	releaseTerms  *sql.Stmt
	clearPostings *sql.Stmt
	upsertTerm    *sql.Stmt
	insertPosting *sql.Stmt
}

func prepareDocumentStatements(ctx context.Context, tx *sql.Tx) (*documentStatements, error) {
	var (
		st  documentStatements
		err error
	)
	prepare := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = tx.PrepareContext(ctx, query)
	}

	prepare(&st.upsertDoc, `
		INSERT INTO documents (url, title, content, tokens, origin, category, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			tokens = excluded.tokens,
			category = CASE WHEN excluded.category != '' THEN excluded.category ELSE documents.category END,
			published_at = CASE WHEN excluded.published_at != 0 THEN excluded.published_at ELSE documents.published_at END,
			origin = excluded.origin
		WHERE excluded.origin != 'scraped' OR documents.origin = 'scraped'
		RETURNING id`)
	prepare(&st.releaseTerms, `
		UPDATE terms SET document_frequency = document_frequency - 1
		WHERE term_id IN (SELECT term_id FROM postings WHERE doc_id = ?)`)
	prepare(&st.clearPostings, "DELETE FROM postings WHERE doc_id = ?")
	prepare(&st.upsertTerm, `
		INSERT INTO terms (term, document_frequency) VALUES (?, 1)
		ON CONFLICT(term) DO UPDATE SET document_frequency = document_frequency + 1
		RETURNING term_id`)
	prepare(&st.insertPosting, "INSERT INTO postings (term_id, doc_id, term_frequency) VALUES (?, ?, ?)")

	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to prepare document statements: %w", err)
	}
	return &st, nil
}

func (st *documentStatements) save(ctx context.Context, doc Document, processed textprocessor.ProcessedDocument, now time.Time) (bool, error) {
	origin := doc.Origin
	if origin == "" {
		origin = OriginLocal
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var docID int64
	err := st.upsertDoc.QueryRowContext(ctx,
		doc.URL, doc.Title, doc.Content, strings.Join(processed.Tokens, " "),
		origin, doc.Category, toMillis(doc.PublishedAt), toMillis(createdAt),
	).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		// scraped copy of a local document
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert document: %w", err)
	}

	if _, err := st.releaseTerms.ExecContext(ctx, docID); err != nil {
		return false, fmt.Errorf("failed to release term frequencies: %w", err)
	}
	if _, err := st.clearPostings.ExecContext(ctx, docID); err != nil {
		return false, fmt.Errorf("failed to clear postings: %w", err)
	}

	for term, freq := range processed.TermFrequencies {
		var termID int64
		if err := st.upsertTerm.QueryRowContext(ctx, term).Scan(&termID); err != nil {
			return false, fmt.Errorf("failed to upsert term %q: %w", term, err)
		}
		if _, err := st.insertPosting.ExecContext(ctx, termID, docID, freq); err != nil {
			return false, fmt.Errorf("failed to insert posting for term %q: %w", term, err)
		}
	}
	return true, nil
}

func (st *documentStatements) Close() {
	for _, stmt := range []*sql.Stmt{st.upsertDoc, st.releaseTerms, st.clearPostings, st.upsertTerm, st.insertPosting} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func refreshTotalDocuments(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE index_metadata
		SET value = (SELECT CAST(COUNT(*) AS TEXT) FROM documents), updated_at = CURRENT_TIMESTAMP
		WHERE key = 'total_documents'`)
	if err != nil {
		return fmt.Errorf("failed to update total documents: %w", err)
	}
	return nil
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	value, err := s.GetMetadata(ctx, "total_documents")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// Reindex re-derives tokens and postings for every stored document.
func (s *Store) Reindex(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	total := 0
	var afterID int64
	for {
		batch, err := s.documentsAfter(ctx, afterID, batchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}
		n, err := s.InsertDocuments(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
		afterID = batch[len(batch)-1].ID
	}
}

func (s *Store) documentsAfter(ctx context.Context, afterID int64, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents d WHERE d.id > ? ORDER BY d.id LIMIT ?",
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) IncrementClicks(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET click_count = click_count + 1 WHERE url = ?", url)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	return nil
}

func (s *Store) MarkReported(ctx context.Context, url string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET last_reported_at = ? WHERE url = ?", toMillis(at), url)
	if err != nil {
		return fmt.Errorf("failed to mark document reported: %w", err)
	}
	return nil
}
