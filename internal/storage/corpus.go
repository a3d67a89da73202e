package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UpsertPhrase adds delta to the phrase frequency, creating the entry on
// first sight. Concurrent calls sum in any order.
func (s *Store) UpsertPhrase(ctx context.Context, phrase, category string, delta int, at time.Time) (CorpusEntry, error) {
	if category == "" {
		category = CategoryGeneral
	}
	if at.IsZero() {
		at = time.Now()
	}

	var (
		entry        CorpusEntry
		lastSearched int64
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO query_corpus (phrase, category, frequency, last_searched)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phrase) DO UPDATE SET
			frequency = query_corpus.frequency + excluded.frequency,
			category = excluded.category,
			last_searched = MAX(query_corpus.last_searched, excluded.last_searched)
		RETURNING phrase, category, frequency, last_searched`,
		phrase, category, delta, toMillis(at),
	).Scan(&entry.Phrase, &entry.Category, &entry.Frequency, &lastSearched)
	if err != nil {
		return CorpusEntry{}, fmt.Errorf("failed to upsert phrase %q: %w", phrase, err)
	}
	entry.LastSearched = fromMillis(lastSearched)
	return entry, nil
}

// SeedPhrases loads entries without inflating existing counts: the stored
// frequency becomes the larger of the two.
func (s *Store) SeedPhrases(ctx context.Context, entries []CorpusEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO query_corpus (phrase, category, frequency, last_searched)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phrase) DO UPDATE SET
			frequency = MAX(query_corpus.frequency, excluded.frequency),
			category = excluded.category`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := toMillis(time.Now())
	n := 0
	for _, e := range entries {
		if e.Phrase == "" {
			continue
		}
		category := e.Category
		if category == "" {
			category = CategoryGeneral
		}
		last := toMillis(e.LastSearched)
		if last == 0 {
			last = now
		}
		if _, err := stmt.ExecContext(ctx, e.Phrase, category, e.Frequency, last); err != nil {
			return 0, fmt.Errorf("failed to seed phrase %q: %w", e.Phrase, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// FindByPrefixOrCategory returns phrases containing prefix (a prefix match
// is a special case), optionally restricted to category. Entries with zero
// frequency are skipped.
func (s *Store) FindByPrefixOrCategory(ctx context.Context, prefix, category string, limit int, byFrequency bool) ([]CorpusEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var (
		where []string
		args  []any
	)
	where = append(where, "frequency > 0")
	if prefix != "" {
		where = append(where, `phrase LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(prefix)+"%")
	}
	if category != "" {
		where = append(where, "category = ?")
		args = append(args, category)
	}

	order := "last_searched DESC, phrase ASC"
	if byFrequency {
		order = "frequency DESC, last_searched DESC, phrase ASC"
	}

	query := fmt.Sprintf(`
		SELECT phrase, category, frequency, last_searched
		FROM query_corpus
		WHERE %s
		ORDER BY %s
		LIMIT ?`, strings.Join(where, " AND "), order)
	args = append(args, limit)

	return s.queryCorpus(ctx, query, args...)
}

func (s *Store) FindAllPhrases(ctx context.Context) ([]CorpusEntry, error) {
	return s.queryCorpus(ctx, `
		SELECT phrase, category, frequency, last_searched
		FROM query_corpus
		ORDER BY phrase`)
}

func (s *Store) queryCorpus(ctx context.Context, query string, args ...any) ([]CorpusEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query corpus: %w", err)
	}
	defer rows.Close()

	entries := make([]CorpusEntry, 0)
	for rows.Next() {
		var (
			e    CorpusEntry
			last int64
		)
		if err := rows.Scan(&e.Phrase, &e.Category, &e.Frequency, &last); err != nil {
			return nil, fmt.Errorf("failed to scan corpus entry: %w", err)
		}
		e.LastSearched = fromMillis(last)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddNextWord records that word followed lead in a learned phrase.
func (s *Store) AddNextWord(ctx context.Context, lead, word string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corpus_next_words (context, word, count) VALUES (?, ?, 1)
		ON CONFLICT(context, word) DO UPDATE SET count = count + 1`,
		lead, word,
	)
	if err != nil {
		return fmt.Errorf("failed to add next word: %w", err)
	}
	return nil
}

// FindAllNextWords maps each lead to its followers, most frequent first.
func (s *Store) FindAllNextWords(ctx context.Context) (map[string][]NextWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context, word, count FROM corpus_next_words
		ORDER BY context, count DESC, word`)
	if err != nil {
		return nil, fmt.Errorf("failed to query next words: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]NextWord)
	for rows.Next() {
		var (
			lead string
			nw   NextWord
		)
		if err := rows.Scan(&lead, &nw.Word, &nw.Count); err != nil {
			return nil, fmt.Errorf("failed to scan next word: %w", err)
		}
		result[lead] = append(result[lead], nw)
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
