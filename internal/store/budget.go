package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

// Validate checks the defaults against the budget invariants.
func (d BudgetDefaults) Validate() error {
	if err := validBudget(d.MonthlyBudget); err != nil {
		return err
	}
	return validThreshold(d.AlertThreshold)
}

func validBudget(v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("monthly budget %v must be positive: %w", v, ErrInvalidItem)
	}
	return nil
}

func validThreshold(v float64) error {
	if !(v > 0 && v <= 1) {
		return fmt.Errorf("alert threshold %v must be in (0,1]: %w", v, ErrInvalidItem)
	}
	return nil
}

// GetOrCreateBudget returns the month's budget, creating it from d if absent.
func (s *SQLiteStore) GetOrCreateBudget(ctx context.Context, userID, month string, d BudgetDefaults) (*model.BudgetRecord, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var rec *model.BudgetRecord
	err := s.withTx(ctx, "get budget", func(tx *sql.Tx) error {
		if err := ensureBudget(ctx, tx, userID, month, d); err != nil {
			return err
		}
		var err error
		rec, err = getBudget(ctx, tx, userID, month)
		return err
	})
	return rec, err
}

// UpdateBudget changes the month's budget and, when given, its alert threshold.
// Other months are untouched.
func (s *SQLiteStore) UpdateBudget(ctx context.Context, userID, month string, d BudgetDefaults, monthly float64, threshold *float64) (*model.BudgetRecord, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := validBudget(monthly); err != nil {
		return nil, err
	}
	if threshold != nil {
		if err := validThreshold(*threshold); err != nil {
			return nil, err
		}
	}

	var rec *model.BudgetRecord
	err := s.withTx(ctx, "update budget", func(tx *sql.Tx) error {
		if err := ensureBudget(ctx, tx, userID, month, d); err != nil {
			return err
		}
		now := formatTime(time.Now())
		var err error
		if threshold != nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE budgets SET monthly_budget = ?, alert_threshold = ?, updated_at = ? WHERE user_id = ? AND month = ?`,
				monthly, *threshold, now, userID, month)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE budgets SET monthly_budget = ?, updated_at = ? WHERE user_id = ? AND month = ?`,
				monthly, now, userID, month)
		}
		if err != nil {
			return unavailable("update budget", err)
		}
		rec, err = getBudget(ctx, tx, userID, month)
		return err
	})
	return rec, err
}

// AddSpending adds a positive amount to the month's spending.
func (s *SQLiteStore) AddSpending(ctx context.Context, userID, month string, d BudgetDefaults, amount float64) (*model.BudgetRecord, *model.BudgetRecord, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, nil, fmt.Errorf("spending amount %v must be positive: %w", amount, ErrInvalidItem)
	}

	var before, after *model.BudgetRecord
	err := s.withTx(ctx, "add spending", func(tx *sql.Tx) error {
		if err := ensureBudget(ctx, tx, userID, month, d); err != nil {
			return err
		}
		var err error
		before, err = getBudget(ctx, tx, userID, month)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE budgets SET current_spending = current_spending + ?, updated_at = ? WHERE user_id = ? AND month = ?`,
			amount, formatTime(time.Now()), userID, month); err != nil {
			return unavailable("add spending", err)
		}
		after, err = getBudget(ctx, tx, userID, month)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func ensureBudget(ctx context.Context, q queryer, userID, month string, d BudgetDefaults) error {
	now := formatTime(time.Now())
	_, err := q.ExecContext(ctx,
		`INSERT INTO budgets (user_id, month, monthly_budget, current_spending, alert_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?) ON CONFLICT(user_id, month) DO NOTHING`,
		userID, month, d.MonthlyBudget, d.AlertThreshold, now, now)
	if err != nil {
		return unavailable("create budget", err)
	}
	return nil
}

func getBudget(ctx context.Context, q queryer, userID, month string) (*model.BudgetRecord, error) {
	var b model.BudgetRecord
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT user_id, month, monthly_budget, current_spending, alert_threshold, created_at, updated_at
		 FROM budgets WHERE user_id = ? AND month = ?`, userID, month).
		Scan(&b.UserID, &b.Month, &b.MonthlyBudget, &b.CurrentSpending, &b.AlertThreshold, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("budget", userID+"/"+month)
	}
	if err != nil {
		return nil, unavailable("get budget", err)
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}
