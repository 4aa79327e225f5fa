package memory

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

// LevelForCount maps an interaction count to a maturity level.
func LevelForCount(n int) model.MaturityLevel {
	switch {
	case n > 100:
		return model.LevelPartner
	case n > 20:
		return model.LevelCopilot
	default:
		return model.LevelTool
	}
}

// RelationshipForCount maps a total event count to a relationship state.
func RelationshipForCount(n int) model.RelationshipState {
	switch {
	case n > 50:
		return model.RelationshipPartner
	case n > 10:
		return model.RelationshipAcquaintance
	default:
		return model.RelationshipStranger
	}
}

// Tracker counts tracked interactions and derives the maturity level.
type Tracker struct {
	store store.MaturityStore
}

// NewTracker creates a maturity tracker over s.
func NewTracker(s store.MaturityStore) *Tracker {
	return &Tracker{store: s}
}

// Increment records one interaction and returns the updated state.
func (t *Tracker) Increment(ctx context.Context, userID string) (*model.MaturityState, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	before, err := t.store.GetOrCreateMaturity(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := t.store.IncrementMaturity(ctx, userID, LevelForCount)
	if err != nil {
		return nil, err
	}
	if st.CurrentLevel != before.CurrentLevel {
		log.Info().
			Str("user_id", userID).
			Str("from", string(before.CurrentLevel)).
			Str("to", string(st.CurrentLevel)).
			Int("interactions", st.InteractionCount).
			Msg("maturity level changed")
	}
	return st, nil
}

// Level returns the user's current maturity state, creating it on first access.
func (t *Tracker) Level(ctx context.Context, userID string) (*model.MaturityState, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	return t.store.GetOrCreateMaturity(ctx, userID)
}
