package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

// Put upserts the full record.
func (s *PGStore) Put(ctx context.Context, record Record) error {
	const query = `
INSERT INTO speech_analysis (id, file_name, file_url, user_id, status, result, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, now())
ON CONFLICT (id) DO UPDATE
SET file_name = EXCLUDED.file_name,
    file_url = EXCLUDED.file_url,
    user_id = EXCLUDED.user_id,
    status = EXCLUDED.status,
    result = EXCLUDED.result,
    updated_at = now()`

	var payload any
	if record.Result != nil {
		raw, err := json.Marshal(record.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		payload = string(raw)
	}

	_, err := s.DB.ExecContext(ctx, query,
		record.ID,
		record.FileName,
		record.FileURL,
		record.UserID,
		record.Status,
		payload,
	)
	return err
}

// ListByUser returns the user's records, oldest first.
func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	const query = `
SELECT id, file_name, file_url, user_id, status, result
FROM speech_analysis
WHERE user_id = $1
ORDER BY created_at ASC, id ASC`

	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		var result sql.NullString
		if err := rows.Scan(&r.ID, &r.FileName, &r.FileURL, &r.UserID, &r.Status, &result); err != nil {
			return nil, err
		}
		if result.Valid && result.String != "" {
			if err := json.Unmarshal([]byte(result.String), &r.Result); err != nil {
				return nil, fmt.Errorf("decode result for %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Store = (*PGStore)(nil)
