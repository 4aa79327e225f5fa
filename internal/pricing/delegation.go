package pricing

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/store"
)

// Delegations stores conditional rules. Conditions are kept as literals;
// nothing here evaluates them.
type Delegations struct {
	store store.DelegationStore
}

// NewDelegations creates a delegation engine over s.
func NewDelegations(s store.DelegationStore) *Delegations {
	return &Delegations{store: s}
}

// Create stores an active delegation for one of the user's watch items.
func (d *Delegations) Create(ctx context.Context, userID, watchItemID, condition string, action model.DelegationAction) (*model.Delegation, error) {
	del, err := d.store.InsertDelegation(ctx, store.DelegationParams{
		UserID:      userID,
		WatchItemID: watchItemID,
		Condition:   condition,
		Action:      action,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("watch_item_id", watchItemID).Str("action", string(action)).Msg("delegation created")
	return del, nil
}

// List returns the user's delegations, newest first.
func (d *Delegations) List(ctx context.Context, userID string, activeOnly bool) ([]model.Delegation, error) {
	return d.store.ListDelegations(ctx, userID, activeOnly)
}

// Deactivate turns a delegation off.
func (d *Delegations) Deactivate(ctx context.Context, userID, id string) error {
	return d.store.DeactivateDelegation(ctx, userID, id)
}
