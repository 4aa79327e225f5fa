package store

import (
	"context"
	"math"

	"github.com/rcliao/shop-memory/internal/model"
)

// UserExport is a full dump of one user's memory and price-tracking state.
type UserExport struct {
	UserID      string                 `json:"user_id"`
	Core        *model.CoreMemory      `json:"core"`
	Maturity    *model.MaturityState   `json:"maturity"`
	Events      []model.RecallEvent    `json:"events"`
	Archival    []model.ArchivalRecord `json:"archival"`
	WatchItems  []model.WatchItem      `json:"watch_items"`
	Alerts      []model.Alert          `json:"alerts"`
	Delegations []model.Delegation     `json:"delegations"`
}

// ExportUser returns everything stored for the user. Core memory and maturity
// are created with defaults if absent.
func (s *SQLiteStore) ExportUser(ctx context.Context, userID string) (*UserExport, error) {
	exp := &UserExport{UserID: userID}
	var err error

	if exp.Core, err = s.GetOrCreateCore(ctx, userID); err != nil {
		return nil, err
	}
	if exp.Maturity, err = s.GetOrCreateMaturity(ctx, userID); err != nil {
		return nil, err
	}
	if exp.Events, err = s.RecentEvents(ctx, userID, math.MaxInt32); err != nil {
		return nil, err
	}
	if exp.Archival, err = s.SearchArchival(ctx, ArchivalQuery{UserID: userID, Limit: math.MaxInt32}); err != nil {
		return nil, err
	}
	if exp.WatchItems, err = s.ListWatchItems(ctx, userID, false); err != nil {
		return nil, err
	}
	if exp.Alerts, err = s.ListAlerts(ctx, userID, ""); err != nil {
		return nil, err
	}
	if exp.Delegations, err = s.ListDelegations(ctx, userID, false); err != nil {
		return nil, err
	}
	return exp, nil
}
