// Package pricing tracks watched product prices, emits explainable alerts,
// and keeps per-month budgets and conditional delegations.
package pricing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

const DefaultHistoryLimit = 30

// NewWatchItem is the input for adding a watch item.
type NewWatchItem struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	CurrentPrice float64  `json:"currentPrice"`
	TargetPrice  *float64 `json:"targetPrice,omitempty"`
	Source       string   `json:"source,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
}

// Registry manages a user's watch list.
type Registry struct {
	store store.WatchStore
}

// NewRegistry creates a registry over s.
func NewRegistry(s store.WatchStore) *Registry {
	return &Registry{store: s}
}

// Add validates and stores a new active watch item.
func (r *Registry) Add(ctx context.Context, userID string, in NewWatchItem) (*model.WatchItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("empty user id: %w", store.ErrInvalidItem)
	}
	item, err := r.store.InsertWatchItem(ctx, store.WatchParams{
		UserID:       userID,
		URL:          in.URL,
		Title:        in.Title,
		CurrentPrice: in.CurrentPrice,
		TargetPrice:  in.TargetPrice,
		Source:       in.Source,
		ImageURL:     in.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("watch_item_id", item.ID).Str("url", item.URL).Msg("watch item added")
	return item, nil
}

// List returns the user's watch items, newest first.
func (r *Registry) List(ctx context.Context, userID string, activeOnly bool) ([]model.WatchItem, error) {
	return r.store.ListWatchItems(ctx, userID, activeOnly)
}

// Get returns a watch item owned by the user.
func (r *Registry) Get(ctx context.Context, userID, id string) (*model.WatchItem, error) {
	item, err := r.store.GetWatchItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, fmt.Errorf("watch item %q: %w", id, store.ErrNotFound)
	}
	return item, nil
}

// Deactivate stops tracking an item without deleting its history.
func (r *Registry) Deactivate(ctx context.Context, userID, id string) error {
	return r.store.DeactivateWatchItem(ctx, userID, id)
}

// RecordPrice sets the item's current price and appends a history sample.
func (r *Registry) RecordPrice(ctx context.Context, id string, price float64) (*model.PriceSample, error) {
	sample, _, err := r.store.RecordPriceCheck(ctx, id, price, nil)
	return sample, err
}

// History returns up to limit samples, newest first. A non-positive limit
// means 30.
func (r *Registry) History(ctx context.Context, id string, limit int) ([]model.PriceSample, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return r.store.PriceHistory(ctx, id, limit)
}

// UserHistory is History restricted to the user's own items.
func (r *Registry) UserHistory(ctx context.Context, userID, id string, limit int) ([]model.PriceSample, error) {
	if _, err := r.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return r.History(ctx, id, limit)
}
