package storage

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) LogInteraction(ctx context.Context, in Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	emergency := 0
	if in.Emergency {
		emergency = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_log (session_id, action, target, emergency, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.SessionID, string(in.Action), in.Target, emergency, in.DurationMS, toMillis(in.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

// AggregateByTargetURLs counts clicks and bounces per URL. URLs without any
// events are absent from the result.
func (s *Store) AggregateByTargetURLs(ctx context.Context, urls []string) (map[string]BehaviorStats, error) {
	urls = dedupe(urls)
	stats := make(map[string]BehaviorStats, len(urls))
	if len(urls) == 0 {
		return stats, nil
	}

	query := fmt.Sprintf(`
		SELECT target,
			SUM(CASE WHEN action = 'click' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'bounce' THEN 1 ELSE 0 END)
		FROM interaction_log
		WHERE target IN (%s) AND action IN ('click', 'bounce')
		GROUP BY target`, placeholders(len(urls)))

	rows, err := s.db.QueryContext(ctx, query, stringArgs(urls)...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			target string
			st     BehaviorStats
		)
		if err := rows.Scan(&target, &st.Clicks, &st.Bounces); err != nil {
			return nil, fmt.Errorf("failed to scan interaction stats: %w", err)
		}
		stats[target] = st
	}
	return stats, rows.Err()
}
