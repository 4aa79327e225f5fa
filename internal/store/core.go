package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

const coreColumns = `user_id, relationship_state, trust_score, active_goals, price_min, price_max,
	favorite_categories, idiosyncrasies, created_at, updated_at`

// Validate checks the bounds of the fields that are set.
func (u CoreUpdate) Validate() error {
	if u.RelationshipState != nil && !model.ValidRelationshipStates[*u.RelationshipState] {
		return fmt.Errorf("relationship state %q: %w", *u.RelationshipState, ErrInvalidItem)
	}
	if u.TrustScore != nil && (*u.TrustScore < 0 || *u.TrustScore > 100) {
		return fmt.Errorf("trust score %d out of range [0,100]: %w", *u.TrustScore, ErrInvalidItem)
	}
	if u.PriceRange != nil && u.PriceRange.Min > u.PriceRange.Max {
		return fmt.Errorf("price range min %.2f exceeds max %.2f: %w", u.PriceRange.Min, u.PriceRange.Max, ErrInvalidItem)
	}
	return nil
}

// GetOrCreateCore returns the user's core memory, creating defaults if absent.
func (s *SQLiteStore) GetOrCreateCore(ctx context.Context, userID string) (*model.CoreMemory, error) {
	var core *model.CoreMemory
	err := s.withTx(ctx, "get core", func(tx *sql.Tx) error {
		if err := ensureCore(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		core, err = getCore(ctx, tx, userID)
		return err
	})
	return core, err
}

// UpdateCore merges the set fields of u into the user's core memory.
func (s *SQLiteStore) UpdateCore(ctx context.Context, userID string, u CoreUpdate) (*model.CoreMemory, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	if u.RelationshipState != nil {
		sets = append(sets, "relationship_state = ?")
		args = append(args, string(*u.RelationshipState))
	}
	if u.TrustScore != nil {
		sets = append(sets, "trust_score = ?")
		args = append(args, *u.TrustScore)
	}
	if u.ActiveGoals != nil {
		sets = append(sets, "active_goals = ?")
		args = append(args, encodeStrings(u.ActiveGoals))
	}
	if u.PriceRange != nil {
		sets = append(sets, "price_min = ?", "price_max = ?")
		args = append(args, u.PriceRange.Min, u.PriceRange.Max)
	}
	if u.FavoriteCategories != nil {
		sets = append(sets, "favorite_categories = ?")
		args = append(args, encodeStrings(u.FavoriteCategories))
	}
	if u.Idiosyncrasies != nil {
		sets = append(sets, "idiosyncrasies = ?")
		args = append(args, encodeStrings(u.Idiosyncrasies))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), userID)

	var core *model.CoreMemory
	err := s.withTx(ctx, "update core", func(tx *sql.Tx) error {
		if err := ensureCore(ctx, tx, userID); err != nil {
			return err
		}
		query := `UPDATE core_memory SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ?`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return unavailable("update core", err)
		}
		var err error
		core, err = getCore(ctx, tx, userID)
		return err
	})
	return core, err
}

// AppendGoal appends goal to the active goals in one transaction.
func (s *SQLiteStore) AppendGoal(ctx context.Context, userID, goal string) (*model.CoreMemory, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("empty goal: %w", ErrInvalidItem)
	}

	var core *model.CoreMemory
	err := s.withTx(ctx, "append goal", func(tx *sql.Tx) error {
		if err := ensureCore(ctx, tx, userID); err != nil {
			return err
		}
		current, err := getCore(ctx, tx, userID)
		if err != nil {
			return err
		}
		goals := append(current.ActiveGoals, goal)
		if _, err := tx.ExecContext(ctx,
			`UPDATE core_memory SET active_goals = ?, updated_at = ? WHERE user_id = ?`,
			encodeStrings(goals), formatTime(time.Now()), userID); err != nil {
			return unavailable("append goal", err)
		}
		core, err = getCore(ctx, tx, userID)
		return err
	})
	return core, err
}

func ensureCore(ctx context.Context, q queryer, userID string) error {
	now := formatTime(time.Now())
	_, err := q.ExecContext(ctx,
		`INSERT INTO core_memory (user_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`, userID, now, now)
	if err != nil {
		return unavailable("create core", err)
	}
	return nil
}

func getCore(ctx context.Context, q queryer, userID string) (*model.CoreMemory, error) {
	row := q.QueryRowContext(ctx, `SELECT `+coreColumns+` FROM core_memory WHERE user_id = ?`, userID)
	core, err := scanCore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("core memory", userID)
	}
	if err != nil {
		return nil, unavailable("get core", err)
	}
	return core, nil
}

func scanCore(sc scanner) (*model.CoreMemory, error) {
	var c model.CoreMemory
	var state, goals, categories, quirks, createdAt, updatedAt string
	var priceMin, priceMax sql.NullFloat64

	err := sc.Scan(&c.UserID, &state, &c.TrustScore, &goals, &priceMin, &priceMax,
		&categories, &quirks, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.RelationshipState = model.RelationshipState(state)
	c.ActiveGoals = decodeStrings(goals)
	c.FavoriteCategories = decodeStrings(categories)
	c.Idiosyncrasies = decodeStrings(quirks)
	if priceMin.Valid && priceMax.Valid {
		c.PriceRange = &model.PriceRange{Min: priceMin.Float64, Max: priceMax.Float64}
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
