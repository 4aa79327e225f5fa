package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

// InsertDelegation stores an active delegation. The watch item must belong to
// the same user.
func (s *SQLiteStore) InsertDelegation(ctx context.Context, p DelegationParams) (*model.Delegation, error) {
	if !model.ValidDelegationActions[p.Action] {
		return nil, fmt.Errorf("delegation action %q: %w", p.Action, ErrInvalidItem)
	}
	if strings.TrimSpace(p.Condition) == "" {
		return nil, fmt.Errorf("empty delegation condition: %w", ErrInvalidItem)
	}

	d := &model.Delegation{
		ID:          s.newID(),
		UserID:      p.UserID,
		WatchItemID: p.WatchItemID,
		Condition:   p.Condition,
		Action:      p.Action,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.withTx(ctx, "insert delegation", func(tx *sql.Tx) error {
		item, err := getWatchItem(ctx, tx, p.WatchItemID)
		if err != nil {
			return err
		}
		if item.UserID != p.UserID {
			return notFound("watch item", p.WatchItemID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO delegations (id, user_id, watch_item_id, condition, action, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			d.ID, d.UserID, d.WatchItemID, d.Condition, string(d.Action), formatTime(d.CreatedAt))
		if err != nil {
			return unavailable("insert delegation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDelegations returns the user's delegations, newest first.
func (s *SQLiteStore) ListDelegations(ctx context.Context, userID string, activeOnly bool) ([]model.Delegation, error) {
	query := `SELECT id, user_id, watch_item_id, condition, action, is_active, created_at, executed_at
	          FROM delegations WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, unavailable("list delegations", err)
	}
	defer rows.Close()

	out := []model.Delegation{}
	for rows.Next() {
		var d model.Delegation
		var action, createdAt string
		var active int
		var executedAt sql.NullString
		if err := rows.Scan(&d.ID, &d.UserID, &d.WatchItemID, &d.Condition, &action, &active, &createdAt, &executedAt); err != nil {
			return nil, unavailable("list delegations", err)
		}
		d.Action = model.DelegationAction(action)
		d.IsActive = active == 1
		d.CreatedAt = parseTime(createdAt)
		d.ExecutedAt = parseNullTime(executedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list delegations", err)
	}
	return out, nil
}

// DeactivateDelegation turns off one of the user's delegations.
func (s *SQLiteStore) DeactivateDelegation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE delegations SET is_active = 0 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return unavailable("deactivate delegation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("delegation", id)
	}
	return nil
}
