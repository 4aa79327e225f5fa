// Package store provides the persistence interfaces and SQLite implementation
// for user memory and price tracking.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/shop-memory/internal/model"
)

var (
	// ErrStoreUnavailable means persistence could not be reached. It is fatal to
	// the requested operation and is not retried here.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidItem means the input failed validation.
	ErrInvalidItem = errors.New("invalid item")
	// ErrNotFound means the record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved means an alert already carries a terminal response.
	ErrAlreadyResolved = errors.New("alert already resolved")
)

// CoreUpdate holds a partial core memory update. Nil pointer fields are left
// untouched; non-nil slices (even empty ones) replace the stored value.
type CoreUpdate struct {
	RelationshipState  *model.RelationshipState
	TrustScore         *int
	ActiveGoals        []string
	PriceRange         *model.PriceRange
	FavoriteCategories []string
	Idiosyncrasies     []string
}

// IsZero reports whether the update carries no fields.
func (u CoreUpdate) IsZero() bool {
	return u.RelationshipState == nil && u.TrustScore == nil && u.ActiveGoals == nil &&
		u.PriceRange == nil && u.FavoriteCategories == nil && u.Idiosyncrasies == nil
}

// ArchiveParams holds parameters for appending an archival record.
type ArchiveParams struct {
	UserID     string
	Content    string
	Category   string
	Importance int
}

// ArchivalQuery holds parameters for searching archival memory.
type ArchivalQuery struct {
	UserID   string
	Category string // empty means all categories
	Limit    int
}

// WatchParams holds parameters for adding a watch item.
type WatchParams struct {
	UserID       string
	URL          string
	Title        string
	CurrentPrice float64
	TargetPrice  *float64
	Source       string
	ImageURL     string
}

// AlertParams describes an alert to write together with a price check.
type AlertParams struct {
	AlertType        model.AlertType
	OldPrice         *float64
	Reasoning        string
	RequiresApproval bool
}

// DelegationParams holds parameters for storing a delegation.
type DelegationParams struct {
	UserID      string
	WatchItemID string
	Condition   string
	Action      model.DelegationAction
}

// BudgetDefaults are applied when a month's budget record is first created.
type BudgetDefaults struct {
	MonthlyBudget  float64
	AlertThreshold float64
}

// CoreStore persists core memory.
type CoreStore interface {
	// GetOrCreateCore returns the user's core memory, creating it with defaults
	// if absent. Concurrent first calls create exactly one row.
	GetOrCreateCore(ctx context.Context, userID string) (*model.CoreMemory, error)

	// UpdateCore merges the provided fields, creating the row first if needed.
	UpdateCore(ctx context.Context, userID string, u CoreUpdate) (*model.CoreMemory, error)

	// AppendGoal appends a goal to the end of the active goals atomically.
	AppendGoal(ctx context.Context, userID, goal string) (*model.CoreMemory, error)
}

// RecallStore persists the recall event log.
type RecallStore interface {
	AppendEvent(ctx context.Context, userID string, t model.EventType, data map[string]any) (*model.RecallEvent, error)

	// RecentEvents returns the newest events first.
	RecentEvents(ctx context.Context, userID string, limit int) ([]model.RecallEvent, error)

	// CountEvents counts every event ever recorded for the user.
	CountEvents(ctx context.Context, userID string) (int, error)
}

// ArchivalStore persists archival memory.
type ArchivalStore interface {
	AppendArchival(ctx context.Context, p ArchiveParams) (*model.ArchivalRecord, error)

	// SearchArchival returns records ordered by importance descending.
	SearchArchival(ctx context.Context, q ArchivalQuery) ([]model.ArchivalRecord, error)
}

// MaturityStore persists maturity state.
type MaturityStore interface {
	GetOrCreateMaturity(ctx context.Context, userID string) (*model.MaturityState, error)

	// IncrementMaturity bumps the counter and stores levelFor(newCount) in one
	// transaction.
	IncrementMaturity(ctx context.Context, userID string, levelFor func(int) model.MaturityLevel) (*model.MaturityState, error)
}

// AlertEvaluator decides the alert for a new price given the item as stored
// before the update. Nil means no alert.
type AlertEvaluator func(item model.WatchItem, newPrice float64) *AlertParams

// WatchStore persists watch items and their price samples.
type WatchStore interface {
	InsertWatchItem(ctx context.Context, p WatchParams) (*model.WatchItem, error)
	GetWatchItem(ctx context.Context, id string) (*model.WatchItem, error)

	// ListWatchItems returns the user's items, newest first.
	ListWatchItems(ctx context.Context, userID string, activeOnly bool) ([]model.WatchItem, error)
	DeactivateWatchItem(ctx context.Context, userID, id string) error

	// RecordPriceCheck updates the item's current price, appends a sample and,
	// when evaluate returns non-nil for the stored item, inserts the alert, all
	// in one transaction.
	RecordPriceCheck(ctx context.Context, watchItemID string, price float64, evaluate AlertEvaluator) (*model.PriceSample, *model.Alert, error)

	// PriceHistory returns samples newest first.
	PriceHistory(ctx context.Context, watchItemID string, limit int) ([]model.PriceSample, error)
}

// AlertStore persists alerts.
type AlertStore interface {
	// ListAlerts returns the user's alerts newest first; empty status means all.
	ListAlerts(ctx context.Context, userID string, status model.AlertResponse) ([]model.Alert, error)

	// RespondAlert moves a pending alert to a terminal response.
	RespondAlert(ctx context.Context, userID, alertID string, response model.AlertResponse) (*model.Alert, error)
}

// DelegationStore persists conditional delegations.
type DelegationStore interface {
	InsertDelegation(ctx context.Context, p DelegationParams) (*model.Delegation, error)
	ListDelegations(ctx context.Context, userID string, activeOnly bool) ([]model.Delegation, error)
	DeactivateDelegation(ctx context.Context, userID, id string) error
}

// BudgetStore persists per-month budgets.
type BudgetStore interface {
	GetOrCreateBudget(ctx context.Context, userID, month string, d BudgetDefaults) (*model.BudgetRecord, error)
	UpdateBudget(ctx context.Context, userID, month string, d BudgetDefaults, monthly float64, threshold *float64) (*model.BudgetRecord, error)

	// AddSpending adds amount to the month's spending and returns the record
	// before and after the change.
	AddSpending(ctx context.Context, userID, month string, d BudgetDefaults, amount float64) (before, after *model.BudgetRecord, err error)
}

// UserLister enumerates users for batch jobs.
type UserLister interface {
	UsersWithEvents(ctx context.Context) ([]string, error)
	UsersWithActiveWatches(ctx context.Context) ([]string, error)
}

// Store is the full persistence surface.
type Store interface {
	CoreStore
	RecallStore
	ArchivalStore
	MaturityStore
	WatchStore
	AlertStore
	DelegationStore
	BudgetStore
	UserLister

	// Close closes the store.
	Close() error
}
