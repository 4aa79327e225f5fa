// Package api is the logical operation surface a routing layer calls. Every
// method takes the already-authenticated user id.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/llm"
	"github.com/rcliao/shop-memory/internal/memory"
	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/pricing"
	"github.com/rcliao/shop-memory/internal/store"
)

// Options tunes the services behind the API.
type Options struct {
	BudgetDefaults   store.BudgetDefaults
	CheckConcurrency int
	Clock            func() time.Time
}

// Service wires memory, pricing and assistant services over one store.
type Service struct {
	memory       *memory.Service
	tracker      *memory.Tracker
	consolidator *memory.Consolidator
	registry     *pricing.Registry
	engine       *pricing.Engine
	budget       *pricing.BudgetTracker
	delegations  *pricing.Delegations
	assistant    *llm.Assistant
}

// RecordResult is returned by RecordEvent.
type RecordResult struct {
	Event    *model.RecallEvent   `json:"event"`
	Maturity *model.MaturityState `json:"maturity"`
}

// ChatResult is returned by Chat.
type ChatResult struct {
	Response string `json:"response"`
}

// New builds the API over st, reading prices from src and generating text with gen.
func New(st store.Store, src pricing.PriceSource, gen llm.Generator, opts Options) *Service {
	mem := memory.NewService(st)
	tracker := memory.NewTracker(st)

	var budgetOpts []pricing.BudgetOption
	if opts.Clock != nil {
		budgetOpts = append(budgetOpts, pricing.WithClock(opts.Clock))
	}

	return &Service{
		memory:       mem,
		tracker:      tracker,
		consolidator: memory.NewConsolidator(mem, tracker),
		registry:     pricing.NewRegistry(st),
		engine:       pricing.NewEngine(st, st, src, pricing.WithConcurrency(opts.CheckConcurrency)),
		budget:       pricing.NewBudgetTracker(st, opts.BudgetDefaults, budgetOpts...),
		delegations:  pricing.NewDelegations(st),
		assistant:    llm.NewAssistant(gen),
	}
}

// Budget exposes the budget tracker so callers can subscribe to breaches.
func (s *Service) Budget() *pricing.BudgetTracker { return s.budget }

// memory.*

// GetContext returns core memory, recent events and top archival records.
func (s *Service) GetContext(ctx context.Context, userID string) (*model.MemoryContext, error) {
	return s.memory.FullContext(ctx, userID)
}

// GetCoreMemory returns the user's core memory, creating it on first access.
func (s *Service) GetCoreMemory(ctx context.Context, userID string) (*model.CoreMemory, error) {
	return s.memory.GetOrCreateCore(ctx, userID)
}

// AddGoal appends an active shopping goal with priority 0..10.
func (s *Service) AddGoal(ctx context.Context, userID, goal string, priority int) (*model.CoreMemory, error) {
	return s.memory.AppendGoal(ctx, userID, goal, priority)
}

// UpdatePreferences overwrites the preference fields that are set.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, p memory.Preferences) (*model.CoreMemory, error) {
	return s.memory.UpdatePreferences(ctx, userID, p)
}

// RecordEvent appends a recall event and counts it as one tracked
// interaction toward maturity.
func (s *Service) RecordEvent(ctx context.Context, userID string, t model.EventType, data map[string]any) (*RecordResult, error) {
	ev, err := s.memory.RecordEvent(ctx, userID, t, data)
	if err != nil {
		return nil, err
	}
	st, err := s.tracker.Increment(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RecordResult{Event: ev, Maturity: st}, nil
}

// GetMaturityLevel returns the interaction counter and derived level.
func (s *Service) GetMaturityLevel(ctx context.Context, userID string) (*model.MaturityState, error) {
	return s.tracker.Level(ctx, userID)
}

// Consolidate archives recent approvals and refreshes the relationship state.
func (s *Service) Consolidate(ctx context.Context, userID string) (*memory.ConsolidationReport, error) {
	return s.consolidator.Consolidate(ctx, userID)
}

// Archive stores a long-term fact; importance 0 means the default.
func (s *Service) Archive(ctx context.Context, userID, content, category string, importance int) (*model.ArchivalRecord, error) {
	return s.memory.Archive(ctx, userID, content, category, importance)
}

// SearchArchival lists archival records by importance, newest first within a tie.
func (s *Service) SearchArchival(ctx context.Context, userID, category string, limit int) ([]model.ArchivalRecord, error) {
	return s.memory.SearchArchival(ctx, userID, category, limit)
}

// RecentEvents returns the user's latest recall events, newest first.
func (s *Service) RecentEvents(ctx context.Context, userID string, limit int) ([]model.RecallEvent, error) {
	return s.memory.RecentEvents(ctx, userID, limit)
}

// priceTracking.*

// AddToWatchList starts tracking a product URL for the user.
func (s *Service) AddToWatchList(ctx context.Context, userID string, in pricing.NewWatchItem) (*model.WatchItem, error) {
	return s.registry.Add(ctx, userID, in)
}

// GetWatchList lists the user's watch items, newest first.
func (s *Service) GetWatchList(ctx context.Context, userID string, activeOnly bool) ([]model.WatchItem, error) {
	return s.registry.List(ctx, userID, activeOnly)
}

// RemoveFromWatchList deactivates one of the user's items; history is kept.
func (s *Service) RemoveFromWatchList(ctx context.Context, userID, watchItemID string) error {
	return s.registry.Deactivate(ctx, userID, watchItemID)
}

// GetPriceHistory returns samples for one of the user's own items.
func (s *Service) GetPriceHistory(ctx context.Context, userID, watchItemID string, limit int) ([]model.PriceSample, error) {
	return s.registry.UserHistory(ctx, userID, watchItemID, limit)
}

// GetUserAlerts lists the user's alerts; empty status means all.
func (s *Service) GetUserAlerts(ctx context.Context, userID string, status model.AlertResponse) ([]model.Alert, error) {
	return s.engine.UserAlerts(ctx, userID, status)
}

// RespondToAlert answers a pending alert. Answered alerts are final.
func (s *Service) RespondToAlert(ctx context.Context, userID, alertID string, response model.AlertResponse) (*model.Alert, error) {
	return s.engine.RespondToAlert(ctx, userID, alertID, response)
}

// CheckPrices fetches new prices for the user's active items and emits alerts.
func (s *Service) CheckPrices(ctx context.Context, userID string) (*pricing.CheckReport, error) {
	return s.engine.CheckPrices(ctx, userID)
}

// GetBudget returns the current month's budget, creating it with defaults.
func (s *Service) GetBudget(ctx context.Context, userID string) (*model.BudgetRecord, error) {
	return s.budget.GetOrCreate(ctx, userID)
}

// UpdateBudget sets the monthly budget and, when non-nil, the alert threshold.
func (s *Service) UpdateBudget(ctx context.Context, userID string, monthlyBudget float64, threshold *float64) (*model.BudgetRecord, error) {
	return s.budget.Update(ctx, userID, monthlyBudget, threshold)
}

// AddSpending records spending and reports a threshold breach if this call crossed it.
func (s *Service) AddSpending(ctx context.Context, userID string, amount float64) (*pricing.SpendResult, error) {
	return s.budget.AddSpending(ctx, userID, amount)
}

// CreateDelegation stores a conditional action on one of the user's items.
func (s *Service) CreateDelegation(ctx context.Context, userID, watchItemID, condition string, action model.DelegationAction) (*model.Delegation, error) {
	return s.delegations.Create(ctx, userID, watchItemID, condition, action)
}

// ListDelegations lists the user's delegations.
func (s *Service) ListDelegations(ctx context.Context, userID string, activeOnly bool) ([]model.Delegation, error) {
	return s.delegations.List(ctx, userID, activeOnly)
}

// DeactivateDelegation turns off one of the user's delegations.
func (s *Service) DeactivateDelegation(ctx context.Context, userID, id string) error {
	return s.delegations.Deactivate(ctx, userID, id)
}

// assistant.*

// CheckAvailability reports whether the text-generation backend is reachable.
func (s *Service) CheckAvailability(ctx context.Context) llm.Availability {
	return s.assistant.CheckAvailability(ctx)
}

// AnalyzeSearchQuery reads personality indicators from a query using the user's memory.
func (s *Service) AnalyzeSearchQuery(ctx context.Context, userID, query string) (*llm.QueryAnalysis, error) {
	mc, err := s.memory.FullContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := s.assistant.AnalyzeSearchQuery(ctx, query, mc)
	return &out, nil
}

// RecommendProducts scores products against the user's memory.
func (s *Service) RecommendProducts(ctx context.Context, userID string, products []llm.Product) ([]llm.Recommendation, error) {
	mc, err := s.memory.FullContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.assistant.RecommendProducts(ctx, products, mc), nil
}

// GenerateReasoning explains step by step why a product was recommended.
func (s *Service) GenerateReasoning(ctx context.Context, userID, productName string, score float64) ([]llm.ReasoningStep, error) {
	mc, err := s.memory.FullContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.assistant.GenerateReasoning(ctx, productName, score, mc), nil
}

// Chat answers with memory context and then records the exchange as a
// chat_message event. A failed generation records nothing.
func (s *Service) Chat(ctx context.Context, userID, message string, history []llm.Message) (*ChatResult, error) {
	mc, err := s.memory.FullContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	reply, err := s.assistant.Chat(ctx, message, mc, history)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	if _, err := s.RecordEvent(ctx, userID, model.EventChatMessage, map[string]any{
		"message":  message,
		"response": reply,
	}); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to record chat message")
	}
	return &ChatResult{Response: reply}, nil
}
