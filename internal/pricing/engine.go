package pricing

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/shop-memory/internal/metrics"
	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

// significantDropRatio is the fraction of the current price below which a
// drop is significant.
const significantDropRatio = 0.85

// CheckResult is the outcome of one successfully checked item.
type CheckResult struct {
	WatchItemID string       `json:"watch_item_id"`
	OldPrice    float64      `json:"old_price"`
	NewPrice    float64      `json:"new_price"`
	Alert       *model.Alert `json:"alert,omitempty"`
}

// CheckFailure records an item whose price could not be fetched. Its rows
// are left untouched.
type CheckFailure struct {
	WatchItemID string `json:"watch_item_id"`
	Error       string `json:"error"`
}

// CheckReport summarizes one CheckPrices batch.
type CheckReport struct {
	UserID  string         `json:"user_id"`
	Checked int            `json:"checked"`
	Results []CheckResult  `json:"results"`
	Alerts  []model.Alert  `json:"alerts"`
	Failed  []CheckFailure `json:"failed,omitempty"`
}

// Engine checks watched prices and manages the resulting alerts.
type Engine struct {
	watches     store.WatchStore
	alerts      store.AlertStore
	source      PriceSource
	concurrency int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConcurrency bounds how many items are checked at once.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates an alert engine reading prices from src.
func NewEngine(ws store.WatchStore, as store.AlertStore, src PriceSource, opts ...EngineOption) *Engine {
	e := &Engine{watches: ws, alerts: as, source: src, concurrency: 4}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides which alert, if any, a new price triggers for item. A
// reached target wins over a significant drop; at most one alert results.
func Evaluate(item model.WatchItem, newPrice float64) *store.AlertParams {
	old := item.CurrentPrice
	if item.TargetPrice != nil && newPrice <= *item.TargetPrice {
		return &store.AlertParams{
			AlertType: model.AlertTargetReached,
			OldPrice:  &old,
			Reasoning: fmt.Sprintf("Price reached your target of %s. It is now %s.",
				formatPrice(*item.TargetPrice), formatPrice(newPrice)),
			RequiresApproval: true,
		}
	}
	if newPrice < old*significantDropRatio {
		pct := math.Round((1 - newPrice/old) * 100)
		return &store.AlertParams{
			AlertType: model.AlertSignificantDrop,
			OldPrice:  &old,
			Reasoning: fmt.Sprintf("Price dropped %.0f%% from %s to %s. This is a significant discount.",
				pct, formatPrice(old), formatPrice(newPrice)),
		}
	}
	return nil
}

// CheckPrices fetches a new price for every active watch item of the user,
// records it and writes at most one alert per item in the same transaction.
// A fetch failure skips that item; a store failure aborts the batch.
func (e *Engine) CheckPrices(ctx context.Context, userID string) (*CheckReport, error) {
	items, err := e.watches.ListWatchItems(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("check prices: %w", err)
	}

	results := make([]*CheckResult, len(items))
	var mu sync.Mutex
	var failed []CheckFailure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			price, err := e.source.Fetch(gctx, item)
			if err == nil && !(price > 0) {
				err = fmt.Errorf("non-positive price %v: %w", price, ErrPriceUnavailable)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.PriceCheckFailures.Inc()
				log.Warn().Err(err).Str("user_id", userID).Str("watch_item_id", item.ID).Msg("price fetch failed")
				mu.Lock()
				failed = append(failed, CheckFailure{WatchItemID: item.ID, Error: err.Error()})
				mu.Unlock()
				return nil
			}

			// Judge against the row as stored at write time; the listed
			// snapshot may already be stale if another check ran meanwhile.
			oldPrice := item.CurrentPrice
			_, alert, err := e.watches.RecordPriceCheck(gctx, item.ID, price, func(cur model.WatchItem, p float64) *store.AlertParams {
				oldPrice = cur.CurrentPrice
				return Evaluate(cur, p)
			})
			if err != nil {
				return fmt.Errorf("record price for %s: %w", item.ID, err)
			}
			metrics.PriceChecks.Inc()
			if alert != nil {
				metrics.PriceAlerts.WithLabelValues(string(alert.AlertType)).Inc()
				log.Info().
					Str("user_id", userID).
					Str("watch_item_id", item.ID).
					Str("alert_type", string(alert.AlertType)).
					Float64("old_price", oldPrice).
					Float64("new_price", price).
					Msg("price alert")
			}
			results[i] = &CheckResult{WatchItemID: item.ID, OldPrice: oldPrice, NewPrice: price, Alert: alert}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check prices: %w", err)
	}

	report := &CheckReport{UserID: userID, Results: []CheckResult{}, Alerts: []model.Alert{}, Failed: failed}
	for _, r := range results {
		if r == nil {
			continue
		}
		report.Results = append(report.Results, *r)
		if r.Alert != nil {
			report.Alerts = append(report.Alerts, *r.Alert)
		}
	}
	report.Checked = len(report.Results)

	log.Debug().Str("user_id", userID).Int("checked", report.Checked).Int("alerts", len(report.Alerts)).
		Int("failed", len(failed)).Msg("price check complete")
	return report, nil
}

// RespondToAlert records the user's terminal answer to a pending alert.
func (e *Engine) RespondToAlert(ctx context.Context, userID, alertID string, response model.AlertResponse) (*model.Alert, error) {
	a, err := e.alerts.RespondAlert(ctx, userID, alertID, response)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("alert_id", alertID).Str("response", string(response)).Msg("alert answered")
	return a, nil
}

// UserAlerts lists the user's alerts, newest first. Empty status means all.
func (e *Engine) UserAlerts(ctx context.Context, userID string, status model.AlertResponse) ([]model.Alert, error) {
	return e.alerts.ListAlerts(ctx, userID, status)
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}
