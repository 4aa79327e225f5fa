package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/metrics"
	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

// BudgetBreach is raised when spending first reaches the alert threshold
// within a month.
type BudgetBreach struct {
	UserID          string  `json:"user_id"`
	Month           string  `json:"month"`
	MonthlyBudget   float64 `json:"monthly_budget"`
	CurrentSpending float64 `json:"current_spending"`
	AlertThreshold  float64 `json:"alert_threshold"`
	Ratio           float64 `json:"ratio"`
}

// SpendResult is the outcome of AddSpending.
type SpendResult struct {
	Budget *model.BudgetRecord `json:"budget"`
	Breach *BudgetBreach       `json:"breach,omitempty"`
}

// BudgetTracker keeps one budget per user per calendar month (UTC).
type BudgetTracker struct {
	store    store.BudgetStore
	defaults store.BudgetDefaults
	now      func() time.Time

	mu       sync.RWMutex
	handlers []func(BudgetBreach)
}

// BudgetOption configures a BudgetTracker.
type BudgetOption func(*BudgetTracker)

// WithClock overrides the clock used to pick the current month.
func WithClock(now func() time.Time) BudgetOption {
	return func(b *BudgetTracker) { b.now = now }
}

// NewBudgetTracker creates a tracker that seeds new months with d.
func NewBudgetTracker(s store.BudgetStore, d store.BudgetDefaults, opts ...BudgetOption) *BudgetTracker {
	b := &BudgetTracker{store: s, defaults: d, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnBreach registers fn to receive breach events. Handlers run synchronously
// after the spending is committed.
func (b *BudgetTracker) OnBreach(fn func(BudgetBreach)) {
	b.mu.Lock()
	b.handlers = append(b.handlers, fn)
	b.mu.Unlock()
}

// Month returns the current month key (YYYY-MM).
func (b *BudgetTracker) Month() string {
	return b.now().UTC().Format("2006-01")
}

// GetOrCreate returns this month's budget, creating it with defaults.
func (b *BudgetTracker) GetOrCreate(ctx context.Context, userID string) (*model.BudgetRecord, error) {
	return b.store.GetOrCreateBudget(ctx, userID, b.Month(), b.defaults)
}

// Update changes this month's budget and optionally its threshold. Past
// months are not affected.
func (b *BudgetTracker) Update(ctx context.Context, userID string, monthlyBudget float64, threshold *float64) (*model.BudgetRecord, error) {
	rec, err := b.store.UpdateBudget(ctx, userID, b.Month(), b.defaults, monthlyBudget, threshold)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("month", rec.Month).Float64("monthly_budget", rec.MonthlyBudget).
		Float64("threshold", rec.AlertThreshold).Msg("budget updated")
	return rec, nil
}

// AddSpending adds amount to this month's spending. A breach is reported only
// by the call that moves the ratio from below the threshold to at or above it.
func (b *BudgetTracker) AddSpending(ctx context.Context, userID string, amount float64) (*SpendResult, error) {
	before, after, err := b.store.AddSpending(ctx, userID, b.Month(), b.defaults, amount)
	if err != nil {
		return nil, err
	}

	res := &SpendResult{Budget: after}
	if before.Ratio() < after.AlertThreshold && after.Ratio() >= after.AlertThreshold {
		breach := BudgetBreach{
			UserID:          userID,
			Month:           after.Month,
			MonthlyBudget:   after.MonthlyBudget,
			CurrentSpending: after.CurrentSpending,
			AlertThreshold:  after.AlertThreshold,
			Ratio:           after.Ratio(),
		}
		res.Breach = &breach

		metrics.BudgetBreaches.Inc()
		log.Warn().
			Str("user_id", userID).
			Str("month", after.Month).
			Float64("spending", after.CurrentSpending).
			Float64("budget", after.MonthlyBudget).
			Msg("budget threshold reached")

		b.mu.RLock()
		handlers := append([]func(BudgetBreach){}, b.handlers...)
		b.mu.RUnlock()
		for _, h := range handlers {
			h(breach)
		}
	}
	return res, nil
}
