package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/shop-memory/internal/llm"
	"github.com/rcliao/shop-memory/internal/model"
	"github.com/rcliao/shop-memory/internal/pricing"
	"github.com/rcliao/shop-memory/internal/store"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	g.calls++
	return g.reply, g.err
}

func (g *stubGenerator) CheckAvailability(ctx context.Context) llm.Availability {
	return llm.Availability{Available: g.err == nil, Models: []string{"llama3.2:3b"}}
}

func newTestService(t *testing.T, gen llm.Generator) (*Service, *pricing.StaticSource) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	src := pricing.NewStaticSource(nil)
	svc := New(st, src, gen, Options{
		BudgetDefaults:   store.BudgetDefaults{MonthlyBudget: 1000, AlertThreshold: 0.8},
		CheckConcurrency: 2,
		Clock:            func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) },
	})
	return svc, src
}

func TestRecordEventIncrementsMaturity(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{})
	ctx := context.Background()

	for i := 0; i < 21; i++ {
		_, err := svc.RecordEvent(ctx, "u1", model.EventProductView, map[string]any{"productId": i})
		require.NoError(t, err)
	}
	lvl, err := svc.GetMaturityLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 21, lvl.InteractionCount)
	assert.Equal(t, model.LevelCopilot, lvl.CurrentLevel)

	_, err = svc.RecordEvent(ctx, "u1", model.EventType("wishlist"), nil)
	assert.ErrorIs(t, err, store.ErrInvalidItem)
	lvl, err = svc.GetMaturityLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 21, lvl.InteractionCount)
}

func TestChatRecordsExchange(t *testing.T) {
	gen := &stubGenerator{reply: "The oak desk fits your range."}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	res, err := svc.Chat(ctx, "u1", "which desk?", nil)
	require.NoError(t, err)
	assert.Equal(t, "The oak desk fits your range.", res.Response)

	events, err := svc.RecentEvents(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventChatMessage, events[0].EventType)
	assert.Equal(t, "which desk?", events[0].EventData["message"])
	assert.Equal(t, "The oak desk fits your range.", events[0].EventData["response"])

	lvl, err := svc.GetMaturityLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, lvl.InteractionCount)
}

func TestChatBackendDownRecordsNothing(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{err: errors.New("connection refused")})
	ctx := context.Background()

	_, err := svc.Chat(ctx, "u1", "hello", nil)
	assert.ErrorIs(t, err, llm.ErrGenerationUnavailable)

	events, err := svc.RecentEvents(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAssistantDegradesWithoutBackend(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{err: llm.ErrGenerationUnavailable})
	ctx := context.Background()

	analysis, err := svc.AnalyzeSearchQuery(ctx, "u1", "oak desk")
	require.NoError(t, err)
	assert.Empty(t, analysis.Insights)

	recs, err := svc.RecommendProducts(ctx, "u1", []llm.Product{{ID: "1", Name: "Desk", Price: 300}})
	require.NoError(t, err)
	assert.Empty(t, recs)

	steps, err := svc.GenerateReasoning(ctx, "u1", "Desk", 80)
	require.NoError(t, err)
	assert.Empty(t, steps)

	assert.False(t, svc.CheckAvailability(ctx).Available)
}

func TestAssistantRejectsEmptyUser(t *testing.T) {
	gen := &stubGenerator{reply: "{}"}
	svc, _ := newTestService(t, gen)

	_, err := svc.AnalyzeSearchQuery(context.Background(), "", "oak desk")
	assert.Error(t, err)
	assert.Zero(t, gen.calls)
}

func TestPriceCheckFlow(t *testing.T) {
	svc, src := newTestService(t, &stubGenerator{})
	ctx := context.Background()
	target := 900.0

	item, err := svc.AddToWatchList(ctx, "u1", pricing.NewWatchItem{
		URL:          "https://shop.example/desk",
		Title:        "Oak desk",
		CurrentPrice: 1000,
		TargetPrice:  &target,
	})
	require.NoError(t, err)

	src.Set(item.URL, 880)
	report, err := svc.CheckPrices(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, model.AlertTargetReached, report.Alerts[0].AlertType)

	history, err := svc.GetPriceHistory(ctx, "u1", item.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 880.0, history[0].Price)

	_, err = svc.GetPriceHistory(ctx, "u2", item.ID, 10)
	assert.ErrorIs(t, err, store.ErrNotFound)

	pending, err := svc.GetUserAlerts(ctx, "u1", model.ResponsePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got, err := svc.RespondToAlert(ctx, "u1", pending[0].ID, model.ResponseAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ResponseAccepted, got.UserResponse)

	_, err = svc.RespondToAlert(ctx, "u1", pending[0].ID, model.ResponseRejected)
	assert.ErrorIs(t, err, store.ErrAlreadyResolved)

	require.NoError(t, svc.RemoveFromWatchList(ctx, "u1", item.ID))
	active, err := svc.GetWatchList(ctx, "u1", true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBudgetBreachSubscription(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{})
	ctx := context.Background()

	var breaches []pricing.BudgetBreach
	svc.Budget().OnBreach(func(b pricing.BudgetBreach) { breaches = append(breaches, b) })

	_, err := svc.AddSpending(ctx, "u1", 700)
	require.NoError(t, err)
	res, err := svc.AddSpending(ctx, "u1", 150)
	require.NoError(t, err)
	require.NotNil(t, res.Breach)
	assert.Equal(t, "2026-03", res.Breach.Month)

	_, err = svc.AddSpending(ctx, "u1", 50)
	require.NoError(t, err)
	assert.Len(t, breaches, 1)

	b, err := svc.GetBudget(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 900.0, b.CurrentSpending)
}

func TestDelegationLifecycle(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{})
	ctx := context.Background()

	item, err := svc.AddToWatchList(ctx, "u1", pricing.NewWatchItem{URL: "https://shop.example/lamp", Title: "Lamp", CurrentPrice: 50})
	require.NoError(t, err)

	d, err := svc.CreateDelegation(ctx, "u1", item.ID, "price < 40", model.ActionNotify)
	require.NoError(t, err)

	_, err = svc.CreateDelegation(ctx, "u2", item.ID, "price < 40", model.ActionNotify)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.DeactivateDelegation(ctx, "u1", d.ID))
	list, err := svc.ListDelegations(ctx, "u1", true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConsolidateThroughAPI(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{})
	ctx := context.Background()

	_, err := svc.AddGoal(ctx, "u1", "home office", 5)
	require.NoError(t, err)
	_, err = svc.RecordEvent(ctx, "u1", model.EventProductApprove, map[string]any{"productId": "p1"})
	require.NoError(t, err)

	rep, err := svc.Consolidate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Archived)

	mc, err := svc.GetContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"home office"}, mc.Core.ActiveGoals)
	assert.Len(t, mc.Archival, 1)
}
