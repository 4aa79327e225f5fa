package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rcliao/shop-memory/internal/model"
)

func addTestItem(t *testing.T, s *SQLiteStore, userID string, price float64) *model.WatchItem {
	t.Helper()
	item, err := s.InsertWatchItem(context.Background(), WatchParams{
		UserID: userID, URL: "https://shop.example/item", Title: "Desk", CurrentPrice: price,
	})
	if err != nil {
		t.Fatalf("insert watch item: %v", err)
	}
	return item
}

func TestInsertWatchItemValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	zero := 0.0
	cases := []WatchParams{
		{UserID: "u1", URL: "", Title: "t", CurrentPrice: 10},
		{UserID: "u1", URL: "u", Title: " ", CurrentPrice: 10},
		{UserID: "u1", URL: "u", Title: "t", CurrentPrice: 0},
		{UserID: "u1", URL: "u", Title: "t", CurrentPrice: -5},
		{UserID: "u1", URL: "u", Title: "t", CurrentPrice: 10, TargetPrice: &zero},
	}
	for i, p := range cases {
		if _, err := s.InsertWatchItem(ctx, p); !errors.Is(err, ErrInvalidItem) {
			t.Errorf("case %d: expected ErrInvalidItem, got %v", i, err)
		}
	}
}

func TestListWatchItemsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := addTestItem(t, s, "u1", 10)
	second := addTestItem(t, s, "u1", 20)
	addTestItem(t, s, "u2", 30)

	items, err := s.ListWatchItems(ctx, "u1", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != second.ID || items[1].ID != first.ID {
		t.Errorf("expected newest first, got %+v", items)
	}

	if err := s.DeactivateWatchItem(ctx, "u1", first.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, _ := s.ListWatchItems(ctx, "u1", true)
	all, _ := s.ListWatchItems(ctx, "u1", false)
	if len(active) != 1 || len(all) != 2 {
		t.Errorf("expected 1 active of 2, got %d of %d", len(active), len(all))
	}

	if err := s.DeactivateWatchItem(ctx, "u2", second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign item, got %v", err)
	}
}

func TestRecordPriceCheckWithAlert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := addTestItem(t, s, "u1", 1000)

	var seen float64
	sample, alert, err := s.RecordPriceCheck(ctx, item.ID, 840, func(cur model.WatchItem, p float64) *AlertParams {
		seen = cur.CurrentPrice
		old := cur.CurrentPrice
		return &AlertParams{AlertType: model.AlertSignificantDrop, OldPrice: &old, Reasoning: "dropped"}
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if seen != 1000 {
		t.Errorf("expected evaluator to see stored price 1000, got %v", seen)
	}
	if sample.Price != 840 {
		t.Errorf("expected sample 840, got %v", sample.Price)
	}
	if alert == nil || alert.UserID != "u1" || alert.UserResponse != model.ResponsePending || *alert.OldPrice != 1000 {
		t.Fatalf("unexpected alert: %+v", alert)
	}

	got, _ := s.GetWatchItem(ctx, item.ID)
	if got.CurrentPrice != 840 {
		t.Errorf("expected current price 840, got %v", got.CurrentPrice)
	}

	hist, _ := s.PriceHistory(ctx, item.ID, 30)
	if len(hist) != 1 || hist[0].Price != 840 {
		t.Errorf("expected one 840 sample, got %+v", hist)
	}

	alerts, _ := s.ListAlerts(ctx, "u1", model.ResponsePending)
	if len(alerts) != 1 || alerts[0].ID != alert.ID {
		t.Errorf("expected the new pending alert, got %+v", alerts)
	}
}

func TestRecordPriceCheckUnknownItem(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.RecordPriceCheck(context.Background(), "missing", 10, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPriceHistoryLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := addTestItem(t, s, "u1", 100)

	for _, p := range []float64{99, 98, 97, 96} {
		s.RecordPriceCheck(ctx, item.ID, p, nil)
	}
	hist, err := s.PriceHistory(ctx, item.ID, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 || hist[0].Price != 96 || hist[2].Price != 98 {
		t.Errorf("expected [96 97 98], got %+v", hist)
	}
}

func TestRespondAlertTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := addTestItem(t, s, "u1", 100)
	_, alert, _ := s.RecordPriceCheck(ctx, item.ID, 50, func(model.WatchItem, float64) *AlertParams {
		return &AlertParams{AlertType: model.AlertTargetReached, RequiresApproval: true}
	})

	got, err := s.RespondAlert(ctx, "u1", alert.ID, model.ResponseAccepted)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.UserResponse != model.ResponseAccepted || got.RespondedAt == nil {
		t.Errorf("expected accepted with timestamp, got %+v", got)
	}

	if _, err := s.RespondAlert(ctx, "u1", alert.ID, model.ResponseRejected); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := s.RespondAlert(ctx, "u2", alert.ID, model.ResponseRejected); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign user, got %v", err)
	}
	if _, err := s.RespondAlert(ctx, "u1", "missing", model.ResponseRejected); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown alert, got %v", err)
	}
	if _, err := s.RespondAlert(ctx, "u1", alert.ID, model.ResponsePending); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for pending response, got %v", err)
	}
}

func TestDelegationOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := addTestItem(t, s, "u1", 100)

	d, err := s.InsertDelegation(ctx, DelegationParams{UserID: "u1", WatchItemID: item.ID, Condition: "price < 70", Action: model.ActionReserve})
	if err != nil {
		t.Fatalf("insert delegation: %v", err)
	}
	if !d.IsActive || d.Condition != "price < 70" {
		t.Errorf("unexpected delegation: %+v", d)
	}

	if _, err := s.InsertDelegation(ctx, DelegationParams{UserID: "u2", WatchItemID: item.ID, Condition: "x", Action: model.ActionNotify}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign item, got %v", err)
	}
	if _, err := s.InsertDelegation(ctx, DelegationParams{UserID: "u1", WatchItemID: item.ID, Condition: "x", Action: "buy_now"}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for bad action, got %v", err)
	}

	if err := s.DeactivateDelegation(ctx, "u1", d.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, _ := s.ListDelegations(ctx, "u1", true)
	if len(active) != 0 {
		t.Errorf("expected no active delegations, got %d", len(active))
	}
}

func TestBudgetLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := BudgetDefaults{MonthlyBudget: 10000, AlertThreshold: 0.8}

	b, err := s.GetOrCreateBudget(ctx, "u1", "2026-10", d)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if b.MonthlyBudget != 10000 || b.CurrentSpending != 0 || b.AlertThreshold != 0.8 {
		t.Errorf("unexpected defaults: %+v", b)
	}

	before, after, err := s.AddSpending(ctx, "u1", "2026-10", d, 7000)
	if err != nil {
		t.Fatalf("add spending: %v", err)
	}
	if before.CurrentSpending != 0 || after.CurrentSpending != 7000 {
		t.Errorf("expected 0 -> 7000, got %v -> %v", before.CurrentSpending, after.CurrentSpending)
	}

	th := 0.5
	b, err = s.UpdateBudget(ctx, "u1", "2026-10", d, 20000, &th)
	if err != nil {
		t.Fatalf("update budget: %v", err)
	}
	if b.MonthlyBudget != 20000 || b.AlertThreshold != 0.5 || b.CurrentSpending != 7000 {
		t.Errorf("unexpected updated budget: %+v", b)
	}

	prev, _ := s.GetOrCreateBudget(ctx, "u1", "2026-09", d)
	if prev.MonthlyBudget != 10000 {
		t.Errorf("expected other month untouched, got %v", prev.MonthlyBudget)
	}

	if _, _, err := s.AddSpending(ctx, "u1", "2026-10", d, -1); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for negative amount, got %v", err)
	}
	bad := 1.5
	if _, err := s.UpdateBudget(ctx, "u1", "2026-10", d, 100, &bad); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for threshold 1.5, got %v", err)
	}
}
