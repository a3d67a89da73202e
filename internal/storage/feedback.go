package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Store) FindFeedbackByURLs(ctx context.Context, urls []string) ([]FeedbackRecord, error) {
	urls = dedupe(urls)
	if len(urls) == 0 {
		return []FeedbackRecord{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, target_url, kind, impact, comment, session_id, created_at
		FROM feedback
		WHERE target_url IN (%s)
		ORDER BY created_at, id`, placeholders(len(urls)))

	rows, err := s.db.QueryContext(ctx, query, stringArgs(urls)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	records := make([]FeedbackRecord, 0)
	for rows.Next() {
		var (
			rec       FeedbackRecord
			kind      string
			sessionID sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.TargetURL, &kind, &rec.Impact, &rec.Comment, &sessionID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		rec.Kind = FeedbackKind(kind)
		rec.SessionID = sessionID.String
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateFeedback stores rec and reports whether it was accepted. A record
// repeating an existing (session, url, kind) triple is ignored. Impact is
// always derived from the kind.
func (s *Store) CreateFeedback(ctx context.Context, rec FeedbackRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Impact = rec.Kind.Impact()

	var sessionID sql.NullString
	if rec.SessionID != "" {
		sessionID = sql.NullString{String: rec.SessionID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO feedback (id, target_url, kind, impact, comment, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TargetURL, string(rec.Kind), rec.Impact, rec.Comment, sessionID, toMillis(rec.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert feedback: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}
