package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rcliao/shop-memory/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := s.AppendGoal(ctx, "u1", "find a desk"); err != nil {
		t.Fatalf("append goal: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	core, err := s2.GetOrCreateCore(ctx, "u1")
	if err != nil {
		t.Fatalf("get core: %v", err)
	}
	if len(core.ActiveGoals) != 1 || core.ActiveGoals[0] != "find a desk" {
		t.Errorf("expected goal to survive reopen, got %v", core.ActiveGoals)
	}
}

func TestStoreUnavailableAfterClose(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := s.GetOrCreateCore(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from core, got %v", err)
	}
	if _, err := s.AppendEvent(ctx, "u1", model.EventSearchQuery, map[string]any{"query": "x"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from append, got %v", err)
	}
	if _, err := s.ListWatchItems(ctx, "u1", true); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from list, got %v", err)
	}
}

func TestCoreDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	core, err := s.GetOrCreateCore(ctx, "u1")
	if err != nil {
		t.Fatalf("get core: %v", err)
	}
	if core.RelationshipState != model.RelationshipStranger {
		t.Errorf("expected stranger, got %s", core.RelationshipState)
	}
	if core.TrustScore != 0 {
		t.Errorf("expected trust 0, got %d", core.TrustScore)
	}
	if len(core.ActiveGoals) != 0 || core.PriceRange != nil {
		t.Errorf("expected empty goals and no price range, got %v %v", core.ActiveGoals, core.PriceRange)
	}
}

// concurrently runs fn from 10 goroutines and fails on any error.
func concurrently(t *testing.T, fn func() error) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent get: %v", err)
	}
}

func countRows(t *testing.T, s *SQLiteStore, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCoreConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	concurrently(t, func() error {
		_, err := s.GetOrCreateCore(ctx, "u1")
		return err
	})

	if n := countRows(t, s, `SELECT COUNT(*) FROM core_memory WHERE user_id = 'u1'`); n != 1 {
		t.Errorf("expected exactly 1 core row, got %d", n)
	}
}

func TestMaturityConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	concurrently(t, func() error {
		st, err := s.GetOrCreateMaturity(ctx, "u1")
		if err == nil && (st.InteractionCount != 0 || st.CurrentLevel != model.LevelTool) {
			t.Errorf("unexpected initial maturity: %+v", st)
		}
		return err
	})

	if n := countRows(t, s, `SELECT COUNT(*) FROM maturity WHERE user_id = 'u1'`); n != 1 {
		t.Errorf("expected exactly 1 maturity row, got %d", n)
	}
}

func TestBudgetConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := BudgetDefaults{MonthlyBudget: 1000, AlertThreshold: 0.8}

	concurrently(t, func() error {
		_, err := s.GetOrCreateBudget(ctx, "u1", "2026-03", d)
		return err
	})

	if n := countRows(t, s, `SELECT COUNT(*) FROM budgets WHERE user_id = 'u1' AND month = '2026-03'`); n != 1 {
		t.Errorf("expected exactly 1 budget row, got %d", n)
	}
}

func TestUpdateCoreReplacesFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpdateCore(ctx, "u1", CoreUpdate{FavoriteCategories: []string{"a", "b"}})
	core, err := s.UpdateCore(ctx, "u1", CoreUpdate{FavoriteCategories: []string{"x"}})
	if err != nil {
		t.Fatalf("update core: %v", err)
	}
	if len(core.FavoriteCategories) != 1 || core.FavoriteCategories[0] != "x" {
		t.Errorf("expected [x], got %v", core.FavoriteCategories)
	}

	trust := 42
	core, err = s.UpdateCore(ctx, "u1", CoreUpdate{TrustScore: &trust})
	if err != nil {
		t.Fatalf("update trust: %v", err)
	}
	if core.TrustScore != 42 {
		t.Errorf("expected trust 42, got %d", core.TrustScore)
	}
	if len(core.FavoriteCategories) != 1 {
		t.Errorf("expected categories untouched, got %v", core.FavoriteCategories)
	}
}

func TestUpdateCoreValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := 101
	if _, err := s.UpdateCore(ctx, "u1", CoreUpdate{TrustScore: &bad}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for trust 101, got %v", err)
	}
	if _, err := s.UpdateCore(ctx, "u1", CoreUpdate{PriceRange: &model.PriceRange{Min: 500, Max: 100}}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for inverted range, got %v", err)
	}
}

func TestAppendGoalOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendGoal(ctx, "u1", "desk")
	core, err := s.AppendGoal(ctx, "u1", "chair")
	if err != nil {
		t.Fatalf("append goal: %v", err)
	}
	if len(core.ActiveGoals) != 2 || core.ActiveGoals[0] != "desk" || core.ActiveGoals[1] != "chair" {
		t.Errorf("expected [desk chair], got %v", core.ActiveGoals)
	}
}

func TestRecentEventsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, q := range []string{"one", "two", "three"} {
		if _, err := s.AppendEvent(ctx, "u1", model.EventSearchQuery, map[string]any{"query": q}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	s.AppendEvent(ctx, "u2", model.EventSearchQuery, map[string]any{"query": "other"})

	events, err := s.RecentEvents(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventData["query"] != "three" || events[1].EventData["query"] != "two" {
		t.Errorf("expected newest first, got %v then %v", events[0].EventData, events[1].EventData)
	}

	n, _ := s.CountEvents(ctx, "u1")
	if n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
}

func TestAppendEventRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendEvent(context.Background(), "u1", model.EventType("bogus"), nil)
	if !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem, got %v", err)
	}
}

func TestUsersWithEventsAndWatches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendEvent(ctx, "b", model.EventSearchQuery, nil)
	s.AppendEvent(ctx, "a", model.EventSearchQuery, nil)
	s.AppendEvent(ctx, "a", model.EventSearchQuery, nil)

	users, err := s.UsersWithEvents(ctx)
	if err != nil {
		t.Fatalf("users with events: %v", err)
	}
	if len(users) != 2 || users[0] != "a" || users[1] != "b" {
		t.Errorf("expected [a b], got %v", users)
	}

	item, _ := s.InsertWatchItem(ctx, WatchParams{UserID: "c", URL: "u", Title: "t", CurrentPrice: 10})
	s.InsertWatchItem(ctx, WatchParams{UserID: "d", URL: "u", Title: "t", CurrentPrice: 10})
	s.DeactivateWatchItem(ctx, "c", item.ID)

	users, _ = s.UsersWithActiveWatches(ctx)
	if len(users) != 1 || users[0] != "d" {
		t.Errorf("expected [d], got %v", users)
	}
}

func TestArchivalSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendArchival(ctx, ArchiveParams{UserID: "u1", Content: "low", Category: "note", Importance: 2})
	s.AppendArchival(ctx, ArchiveParams{UserID: "u1", Content: "high", Category: "product_preference", Importance: 9})
	s.AppendArchival(ctx, ArchiveParams{UserID: "u1", Content: "mid", Category: "note", Importance: 5})

	all, err := s.SearchArchival(ctx, ArchivalQuery{UserID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 3 || all[0].Content != "high" || all[2].Content != "low" {
		t.Errorf("expected importance order high,mid,low, got %+v", all)
	}

	notes, _ := s.SearchArchival(ctx, ArchivalQuery{UserID: "u1", Category: "note", Limit: 10})
	if len(notes) != 2 {
		t.Errorf("expected 2 notes, got %d", len(notes))
	}

	if _, err := s.AppendArchival(ctx, ArchiveParams{UserID: "u1", Content: "x", Importance: 11}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for importance 11, got %v", err)
	}
}

func TestIncrementMaturity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	levelFor := func(n int) model.MaturityLevel {
		if n > 2 {
			return model.LevelCopilot
		}
		return model.LevelTool
	}

	st, err := s.GetOrCreateMaturity(ctx, "u1")
	if err != nil {
		t.Fatalf("get maturity: %v", err)
	}
	start := st.LastLevelChange

	for i := 0; i < 2; i++ {
		st, _ = s.IncrementMaturity(ctx, "u1", levelFor)
	}
	if st.CurrentLevel != model.LevelTool || !st.LastLevelChange.Equal(start) {
		t.Errorf("expected tool with unchanged timestamp, got %s at %v", st.CurrentLevel, st.LastLevelChange)
	}

	st, err = s.IncrementMaturity(ctx, "u1", levelFor)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if st.InteractionCount != 3 || st.CurrentLevel != model.LevelCopilot {
		t.Errorf("expected copilot at 3, got %s at %d", st.CurrentLevel, st.InteractionCount)
	}
	if !st.LastLevelChange.After(start) {
		t.Error("expected last level change to move forward")
	}

	got, _ := s.GetOrCreateMaturity(ctx, "u1")
	if got.InteractionCount != 3 || got.CurrentLevel != model.LevelCopilot {
		t.Errorf("expected persisted copilot/3, got %s/%d", got.CurrentLevel, got.InteractionCount)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	s.GetOrCreateCore(ctx, "u1")
	s.AppendEvent(ctx, "u1", model.EventSearchQuery, nil)
	s.AppendEvent(ctx, "u1", model.EventProductView, nil)
	s.InsertWatchItem(ctx, WatchParams{UserID: "u1", URL: "u", Title: "t", CurrentPrice: 10})

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Users != 1 || st.RecallEvents != 2 || st.ActiveWatches != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if len(st.EventTypes) != 2 {
		t.Errorf("expected 2 event types, got %d", len(st.EventTypes))
	}
	if st.DBSizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestExportUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendGoal(ctx, "u1", "desk")
	s.AppendEvent(ctx, "u1", model.EventSearchQuery, map[string]any{"query": "desk"})
	s.AppendEvent(ctx, "u2", model.EventSearchQuery, map[string]any{"query": "other"})
	item, _ := s.InsertWatchItem(ctx, WatchParams{UserID: "u1", URL: "u", Title: "t", CurrentPrice: 10})
	s.InsertDelegation(ctx, DelegationParams{UserID: "u1", WatchItemID: item.ID, Condition: "price < 5", Action: model.ActionNotify})

	exp, err := s.ExportUser(ctx, "u1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exp.Core.ActiveGoals) != 1 || len(exp.Events) != 1 || len(exp.WatchItems) != 1 || len(exp.Delegations) != 1 {
		t.Errorf("unexpected export: %+v", exp)
	}
	if exp.Maturity == nil || exp.Maturity.CurrentLevel != model.LevelTool {
		t.Errorf("expected default maturity, got %+v", exp.Maturity)
	}
}
