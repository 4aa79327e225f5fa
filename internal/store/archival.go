package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

// AppendArchival stores a long-term record.
func (s *SQLiteStore) AppendArchival(ctx context.Context, p ArchiveParams) (*model.ArchivalRecord, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("empty archival content: %w", ErrInvalidItem)
	}
	if p.Importance < 1 || p.Importance > 10 {
		return nil, fmt.Errorf("importance %d out of range [1,10]: %w", p.Importance, ErrInvalidItem)
	}

	rec := &model.ArchivalRecord{
		ID:         s.newID(),
		UserID:     p.UserID,
		Content:    p.Content,
		Category:   p.Category,
		Importance: p.Importance,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO archival_records (id, user_id, content, category, importance, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Content, nullString(rec.Category), rec.Importance, formatTime(rec.CreatedAt))
	if err != nil {
		return nil, unavailable("append archival", err)
	}
	return rec, nil
}

// SearchArchival returns records by importance, highest first.
func (s *SQLiteStore) SearchArchival(ctx context.Context, q ArchivalQuery) ([]model.ArchivalRecord, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{q.UserID}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	args = append(args, q.Limit)

	query := `SELECT id, user_id, content, category, importance, created_at FROM archival_records
	          WHERE ` + strings.Join(where, " AND ") + `
	          ORDER BY importance DESC, created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("search archival", err)
	}
	defer rows.Close()

	records := []model.ArchivalRecord{}
	for rows.Next() {
		var r model.ArchivalRecord
		var category sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Content, &category, &r.Importance, &createdAt); err != nil {
			return nil, unavailable("search archival", err)
		}
		r.Category = category.String
		r.CreatedAt = parseTime(createdAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search archival", err)
	}
	return records, nil
}
