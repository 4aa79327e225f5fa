// Package memory implements the tiered user memory: core profile, recall log
// and archival notes, plus maturity tracking and consolidation.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

const (
	// DefaultRecentLimit is the number of events RecentEvents returns when no limit is given.
	DefaultRecentLimit = 10
	// DefaultArchivalLimit is the number of records SearchArchival returns when no limit is given.
	DefaultArchivalLimit = 20
	// DefaultImportance is used by Archive when importance is 0.
	DefaultImportance = 5

	contextArchivalLimit = 5
)

// Store is the persistence the memory service needs.
type Store interface {
	store.CoreStore
	store.RecallStore
	store.ArchivalStore
}

// Preferences replaces whole preference fields. A nil field is left as is;
// a provided slice overwrites the stored one rather than merging into it.
type Preferences struct {
	PriceRange         *model.PriceRange `json:"priceRange,omitempty"`
	FavoriteCategories []string          `json:"favoriteCategories,omitempty"`
	Idiosyncrasies     []string          `json:"idiosyncrasies,omitempty"`
}

// Service reads and writes the three memory tiers for any number of users.
type Service struct {
	store Store
}

// NewService creates a memory service over s.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// GetOrCreateCore returns the user's core memory, creating defaults on first access.
func (s *Service) GetOrCreateCore(ctx context.Context, userID string) (*model.CoreMemory, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	return s.store.GetOrCreateCore(ctx, userID)
}

// UpdateCore merges the provided fields into core memory.
func (s *Service) UpdateCore(ctx context.Context, userID string, u store.CoreUpdate) (*model.CoreMemory, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	core, err := s.store.UpdateCore(ctx, userID, u)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("user_id", userID).Msg("core memory updated")
	return core, nil
}

// AppendGoal adds a goal to the end of the user's active goals. Priority must
// be 0 (default) or 1..10; it is validated but not stored.
func (s *Service) AppendGoal(ctx context.Context, userID, goal string, priority int) (*model.CoreMemory, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if priority < 0 || priority > 10 {
		return nil, fmt.Errorf("goal priority %d out of range [1,10]: %w", priority, store.ErrInvalidItem)
	}
	return s.store.AppendGoal(ctx, userID, goal)
}

// UpdatePreferences overwrites each provided preference field wholesale.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, p Preferences) (*model.CoreMemory, error) {
	return s.UpdateCore(ctx, userID, store.CoreUpdate{
		PriceRange:         p.PriceRange,
		FavoriteCategories: p.FavoriteCategories,
		Idiosyncrasies:     p.Idiosyncrasies,
	})
}

// RecordEvent appends an event to the recall log.
func (s *Service) RecordEvent(ctx context.Context, userID string, t model.EventType, data map[string]any) (*model.RecallEvent, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	ev, err := s.store.AppendEvent(ctx, userID, t, data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("user_id", userID).Str("event_type", string(t)).Msg("recall event recorded")
	return ev, nil
}

// RecordPayload appends a typed event.
func (s *Service) RecordPayload(ctx context.Context, userID string, p model.EventPayload) (*model.RecallEvent, error) {
	t, data, err := model.EncodePayload(p)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, store.ErrInvalidItem)
	}
	return s.RecordEvent(ctx, userID, t, data)
}

// RecentEvents returns the newest events first. A non-positive limit means 10.
func (s *Service) RecentEvents(ctx context.Context, userID string, limit int) ([]model.RecallEvent, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.store.RecentEvents(ctx, userID, limit)
}

// CountEvents returns the total number of events recorded for the user.
func (s *Service) CountEvents(ctx context.Context, userID string) (int, error) {
	if err := validUser(userID); err != nil {
		return 0, err
	}
	return s.store.CountEvents(ctx, userID)
}

// Archive stores a long-term note. Importance 0 means the default of 5.
func (s *Service) Archive(ctx context.Context, userID, content, category string, importance int) (*model.ArchivalRecord, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if importance == 0 {
		importance = DefaultImportance
	}
	return s.store.AppendArchival(ctx, store.ArchiveParams{
		UserID:     userID,
		Content:    content,
		Category:   category,
		Importance: importance,
	})
}

// SearchArchival returns notes by descending importance, optionally filtered
// by category. A non-positive limit means 20.
func (s *Service) SearchArchival(ctx context.Context, userID, category string, limit int) ([]model.ArchivalRecord, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultArchivalLimit
	}
	return s.store.SearchArchival(ctx, store.ArchivalQuery{UserID: userID, Category: category, Limit: limit})
}

// FullContext assembles core memory, the 10 most recent events and the 5 most
// important archival notes. The three reads run concurrently.
func (s *Service) FullContext(ctx context.Context, userID string) (*model.MemoryContext, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}

	mc := &model.MemoryContext{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		core, err := s.store.GetOrCreateCore(gctx, userID)
		mc.Core = core
		return err
	})
	g.Go(func() error {
		recent, err := s.store.RecentEvents(gctx, userID, DefaultRecentLimit)
		mc.Recent = recent
		return err
	})
	g.Go(func() error {
		archival, err := s.store.SearchArchival(gctx, store.ArchivalQuery{UserID: userID, Limit: contextArchivalLimit})
		mc.Archival = archival
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("full context: %w", err)
	}
	return mc, nil
}

func validUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("empty user id: %w", store.ErrInvalidItem)
	}
	return nil
}
