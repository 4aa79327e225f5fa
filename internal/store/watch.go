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

const watchColumns = `id, user_id, url, title, current_price, target_price, source, image_url,
	is_active, last_checked, created_at`

// Validate checks that the watch item can be stored.
func (p WatchParams) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("empty url: %w", ErrInvalidItem)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("empty title: %w", ErrInvalidItem)
	}
	if p.CurrentPrice <= 0 {
		return fmt.Errorf("current price %.2f must be positive: %w", p.CurrentPrice, ErrInvalidItem)
	}
	if p.TargetPrice != nil && *p.TargetPrice <= 0 {
		return fmt.Errorf("target price %.2f must be positive: %w", *p.TargetPrice, ErrInvalidItem)
	}
	return nil
}

// InsertWatchItem stores a new active watch item.
func (s *SQLiteStore) InsertWatchItem(ctx context.Context, p WatchParams) (*model.WatchItem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := &model.WatchItem{
		ID:           s.newID(),
		UserID:       p.UserID,
		URL:          p.URL,
		Title:        p.Title,
		CurrentPrice: p.CurrentPrice,
		TargetPrice:  p.TargetPrice,
		Source:       p.Source,
		ImageURL:     p.ImageURL,
		IsActive:     true,
		LastChecked:  now,
		CreatedAt:    now,
	}

	ts := formatTime(now)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watch_items (id, user_id, url, title, current_price, target_price, source, image_url,
		                          is_active, last_checked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		item.ID, item.UserID, item.URL, item.Title, item.CurrentPrice, nullFloat(item.TargetPrice),
		nullString(item.Source), nullString(item.ImageURL), ts, ts, ts)
	if err != nil {
		return nil, unavailable("insert watch item", err)
	}
	return item, nil
}

// GetWatchItem returns a watch item by id.
func (s *SQLiteStore) GetWatchItem(ctx context.Context, id string) (*model.WatchItem, error) {
	return getWatchItem(ctx, s.db, id)
}

// ListWatchItems returns the user's watch items, newest first.
func (s *SQLiteStore) ListWatchItems(ctx context.Context, userID string, activeOnly bool) ([]model.WatchItem, error) {
	query := `SELECT ` + watchColumns + ` FROM watch_items WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, unavailable("list watch items", err)
	}
	defer rows.Close()

	items := []model.WatchItem{}
	for rows.Next() {
		item, err := scanWatchItem(rows)
		if err != nil {
			return nil, unavailable("list watch items", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list watch items", err)
	}
	return items, nil
}

// DeactivateWatchItem soft-deactivates one of the user's watch items.
func (s *SQLiteStore) DeactivateWatchItem(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE watch_items SET is_active = 0, updated_at = ? WHERE id = ? AND user_id = ?`,
		formatTime(time.Now()), id, userID)
	if err != nil {
		return unavailable("deactivate watch item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("watch item", id)
	}
	return nil
}

// RecordPriceCheck updates the item's price, appends a sample and optionally
// writes an alert. evaluate sees the row read inside the transaction, so
// overlapping checks of one item never judge against a superseded price. The
// three writes commit or roll back together.
func (s *SQLiteStore) RecordPriceCheck(ctx context.Context, watchItemID string, price float64, evaluate AlertEvaluator) (*model.PriceSample, *model.Alert, error) {
	if price <= 0 {
		return nil, nil, fmt.Errorf("price %.2f must be positive: %w", price, ErrInvalidItem)
	}

	var sample *model.PriceSample
	var created *model.Alert
	err := s.withTx(ctx, "record price check", func(tx *sql.Tx) error {
		item, err := getWatchItem(ctx, tx, watchItemID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ts := formatTime(now)
		if _, err := tx.ExecContext(ctx,
			`UPDATE watch_items SET current_price = ?, last_checked = ?, updated_at = ? WHERE id = ?`,
			price, ts, ts, watchItemID); err != nil {
			return unavailable("update price", err)
		}

		sample = &model.PriceSample{ID: s.newID(), WatchItemID: watchItemID, Price: price, CreatedAt: now}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO price_samples (id, watch_item_id, price, created_at) VALUES (?, ?, ?, ?)`,
			sample.ID, sample.WatchItemID, sample.Price, ts); err != nil {
			return unavailable("append sample", err)
		}

		if evaluate == nil {
			return nil
		}
		alert := evaluate(*item, price)
		if alert == nil {
			return nil
		}
		created = &model.Alert{
			ID:               s.newID(),
			UserID:           item.UserID,
			WatchItemID:      watchItemID,
			AlertType:        alert.AlertType,
			OldPrice:         alert.OldPrice,
			NewPrice:         price,
			Reasoning:        alert.Reasoning,
			RequiresApproval: alert.RequiresApproval,
			UserResponse:     model.ResponsePending,
			CreatedAt:        now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alerts (id, user_id, watch_item_id, alert_type, old_price, new_price, reasoning,
			                     requires_approval, user_response, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			created.ID, created.UserID, created.WatchItemID, string(created.AlertType), nullFloat(created.OldPrice),
			created.NewPrice, created.Reasoning, boolInt(created.RequiresApproval), string(created.UserResponse), ts); err != nil {
			return unavailable("insert alert", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sample, created, nil
}

// PriceHistory returns up to limit samples for the item, newest first.
func (s *SQLiteStore) PriceHistory(ctx context.Context, watchItemID string, limit int) ([]model.PriceSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, watch_item_id, price, created_at FROM price_samples
		 WHERE watch_item_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, watchItemID, limit)
	if err != nil {
		return nil, unavailable("price history", err)
	}
	defer rows.Close()

	samples := []model.PriceSample{}
	for rows.Next() {
		var ps model.PriceSample
		var createdAt string
		if err := rows.Scan(&ps.ID, &ps.WatchItemID, &ps.Price, &createdAt); err != nil {
			return nil, unavailable("price history", err)
		}
		ps.CreatedAt = parseTime(createdAt)
		samples = append(samples, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("price history", err)
	}
	return samples, nil
}

func getWatchItem(ctx context.Context, q queryer, id string) (*model.WatchItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+watchColumns+` FROM watch_items WHERE id = ?`, id)
	item, err := scanWatchItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("watch item", id)
	}
	if err != nil {
		return nil, unavailable("get watch item", err)
	}
	return item, nil
}

func scanWatchItem(sc scanner) (*model.WatchItem, error) {
	var w model.WatchItem
	var target sql.NullFloat64
	var source, image sql.NullString
	var active int
	var lastChecked, createdAt string

	err := sc.Scan(&w.ID, &w.UserID, &w.URL, &w.Title, &w.CurrentPrice, &target, &source, &image,
		&active, &lastChecked, &createdAt)
	if err != nil {
		return nil, err
	}

	w.TargetPrice = floatPtr(target)
	w.Source = source.String
	w.ImageURL = image.String
	w.IsActive = active == 1
	w.LastChecked = parseTime(lastChecked)
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}
