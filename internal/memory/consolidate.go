package memory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/metrics"
	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

const (
	consolidationWindow = 50

	// CategoryProductPreference is the archival category for approved products.
	CategoryProductPreference = "product_preference"
	approvedImportance        = 7
)

// ConsolidationReport summarizes one consolidation run.
type ConsolidationReport struct {
	UserID       string                  `json:"user_id"`
	Archived     int                     `json:"archived"`
	TotalEvents  int                     `json:"total_events"`
	Relationship model.RelationshipState `json:"relationship_state"`
	Changed      bool                    `json:"relationship_changed"`
	Maturity     model.MaturityLevel     `json:"maturity_level"`
}

// Consolidator promotes recent approvals into archival memory and recomputes
// the relationship state.
type Consolidator struct {
	memory  *Service
	tracker *Tracker
}

// NewConsolidator creates a consolidator.
func NewConsolidator(m *Service, t *Tracker) *Consolidator {
	return &Consolidator{memory: m, tracker: t}
}

// Consolidate scans the 50 most recent events. Each product approval becomes
// an archival record, so running twice over the same window archives the same
// approvals twice. The relationship state is derived from the total event
// count and written only when it changes.
func (c *Consolidator) Consolidate(ctx context.Context, userID string) (*ConsolidationReport, error) {
	events, err := c.memory.RecentEvents(ctx, userID, consolidationWindow)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}

	report := &ConsolidationReport{UserID: userID}
	for _, ev := range events {
		if ev.EventType != model.EventProductApprove {
			continue
		}
		content := "User approved product: " + ev.DataJSON()
		if _, err := c.memory.Archive(ctx, userID, content, CategoryProductPreference, approvedImportance); err != nil {
			return nil, fmt.Errorf("consolidate: %w", err)
		}
		report.Archived++
	}

	total, err := c.memory.CountEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}
	report.TotalEvents = total
	report.Relationship = RelationshipForCount(total)

	core, err := c.memory.GetOrCreateCore(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}
	if core.RelationshipState != report.Relationship {
		rel := report.Relationship
		if _, err := c.memory.UpdateCore(ctx, userID, store.CoreUpdate{RelationshipState: &rel}); err != nil {
			return nil, fmt.Errorf("consolidate: %w", err)
		}
		report.Changed = true
	}

	mat, err := c.tracker.Level(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}
	report.Maturity = mat.CurrentLevel

	metrics.Consolidations.Inc()
	log.Info().
		Str("user_id", userID).
		Int("archived", report.Archived).
		Int("total_events", total).
		Str("relationship", string(report.Relationship)).
		Bool("changed", report.Changed).
		Msg("memory consolidated")

	return report, nil
}
