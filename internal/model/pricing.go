package model

import "time"

// AlertType classifies why a price alert fired.
type AlertType string

const (
	AlertTargetReached   AlertType = "target_reached"
	AlertSignificantDrop AlertType = "significant_drop"
	AlertLowestEver      AlertType = "lowest_ever"
	AlertTrustWarning    AlertType = "trust_warning"
	AlertBudgetConflict  AlertType = "budget_conflict"
)

// AlertResponse is the user's answer to an alert.
type AlertResponse string

const (
	ResponsePending  AlertResponse = "pending"
	ResponseAccepted AlertResponse = "accepted"
	ResponseRejected AlertResponse = "rejected"
	ResponseIgnored  AlertResponse = "ignored"
)

// ValidAlertResponses are the statuses an alert can be filtered by.
var ValidAlertResponses = map[AlertResponse]bool{
	ResponsePending:  true,
	ResponseAccepted: true,
	ResponseRejected: true,
	ResponseIgnored:  true,
}

// TerminalResponses are the answers a user may give to a pending alert.
var TerminalResponses = map[AlertResponse]bool{
	ResponseAccepted: true,
	ResponseRejected: true,
	ResponseIgnored:  true,
}

// DelegationAction is what a conditional delegation would do when it fires.
type DelegationAction string

const (
	ActionNotify  DelegationAction = "notify"
	ActionReserve DelegationAction = "reserve"
	ActionAutoBuy DelegationAction = "auto_buy"
)

// ValidDelegationActions are the allowed delegation actions.
var ValidDelegationActions = map[DelegationAction]bool{
	ActionNotify:  true,
	ActionReserve: true,
	ActionAutoBuy: true,
}

// WatchItem is a tracked product URL.
type WatchItem struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	CurrentPrice float64   `json:"current_price"`
	TargetPrice  *float64  `json:"target_price,omitempty"`
	Source       string    `json:"source,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	LastChecked  time.Time `json:"last_checked"`
	CreatedAt    time.Time `json:"created_at"`
}

// PriceSample is one observed price of a watch item.
type PriceSample struct {
	ID          string    `json:"id"`
	WatchItemID string    `json:"watch_item_id"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Alert is an explainable price notification.
type Alert struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	WatchItemID      string        `json:"watch_item_id"`
	AlertType        AlertType     `json:"alert_type"`
	OldPrice         *float64      `json:"old_price,omitempty"`
	NewPrice         float64       `json:"new_price"`
	Reasoning        string        `json:"reasoning"`
	RequiresApproval bool          `json:"requires_approval"`
	UserResponse     AlertResponse `json:"user_response"`
	CreatedAt        time.Time     `json:"created_at"`
	RespondedAt      *time.Time    `json:"responded_at,omitempty"`
}

// Delegation is a stored conditional rule. The condition is an opaque literal.
type Delegation struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	WatchItemID string           `json:"watch_item_id"`
	Condition   string           `json:"condition"`
	Action      DelegationAction `json:"action"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	ExecutedAt  *time.Time       `json:"executed_at,omitempty"`
}

// BudgetRecord is one user's budget for one calendar month (YYYY-MM).
type BudgetRecord struct {
	UserID          string    `json:"user_id"`
	Month           string    `json:"month"`
	MonthlyBudget   float64   `json:"monthly_budget"`
	CurrentSpending float64   `json:"current_spending"`
	AlertThreshold  float64   `json:"alert_threshold"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Ratio returns spending as a fraction of the monthly budget.
func (b BudgetRecord) Ratio() float64 {
	if b.MonthlyBudget <= 0 {
		return 0
	}
	return b.CurrentSpending / b.MonthlyBudget
}
