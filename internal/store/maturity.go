package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

// GetOrCreateMaturity returns the user's maturity state, starting at tool/0.
func (s *SQLiteStore) GetOrCreateMaturity(ctx context.Context, userID string) (*model.MaturityState, error) {
	var st *model.MaturityState
	err := s.withTx(ctx, "get maturity", func(tx *sql.Tx) error {
		if err := ensureMaturity(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		st, err = getMaturity(ctx, tx, userID)
		return err
	})
	return st, err
}

// IncrementMaturity bumps the interaction counter and stores the level
// levelFor derives from the new count. lastLevelChange moves only when the
// level actually changes.
func (s *SQLiteStore) IncrementMaturity(ctx context.Context, userID string, levelFor func(int) model.MaturityLevel) (*model.MaturityState, error) {
	var st *model.MaturityState
	err := s.withTx(ctx, "increment maturity", func(tx *sql.Tx) error {
		if err := ensureMaturity(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := getMaturity(ctx, tx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		count := cur.InteractionCount + 1
		level := levelFor(count)
		changedAt := cur.LastLevelChange
		if level != cur.CurrentLevel {
			changedAt = now
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE maturity SET interaction_count = ?, current_level = ?, last_level_change = ?, updated_at = ?
			 WHERE user_id = ?`,
			count, string(level), formatTime(changedAt), formatTime(now), userID)
		if err != nil {
			return unavailable("increment maturity", err)
		}

		st = &model.MaturityState{
			UserID:           userID,
			CurrentLevel:     level,
			InteractionCount: count,
			LastLevelChange:  changedAt,
		}
		return nil
	})
	return st, err
}

func ensureMaturity(ctx context.Context, q queryer, userID string) error {
	now := formatTime(time.Now())
	_, err := q.ExecContext(ctx,
		`INSERT INTO maturity (user_id, current_level, interaction_count, last_level_change, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, string(model.LevelTool), now, now, now)
	if err != nil {
		return unavailable("create maturity", err)
	}
	return nil
}

func getMaturity(ctx context.Context, q queryer, userID string) (*model.MaturityState, error) {
	var st model.MaturityState
	var level, changed string
	err := q.QueryRowContext(ctx,
		`SELECT user_id, current_level, interaction_count, last_level_change FROM maturity WHERE user_id = ?`,
		userID).Scan(&st.UserID, &level, &st.InteractionCount, &changed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("maturity", userID)
	}
	if err != nil {
		return nil, unavailable("get maturity", err)
	}
	st.CurrentLevel = model.MaturityLevel(level)
	st.LastLevelChange = parseTime(changed)
	return &st, nil
}
