package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/shop-memory/internal/config"
	"github.com/rcliao/shop-memory/internal/model"
)

func testLLMConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Endpoint:        endpoint,
		Model:           "llama3.2:3b",
		Temperature:     0.4,
		ContextWindow:   8192,
		TopP:            0.9,
		Timeout:         5 * time.Second,
		AvailabilityTTL: time.Minute,
	}
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "hello"}})
	}))
	defer srv.Close()

	c := NewOllamaClient(testLLMConfig(srv.URL))
	out, err := c.Generate(context.Background(), GenerateRequest{
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "llama3.2:3b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.2, got.Options.Temperature)
	assert.Equal(t, 8192, got.Options.NumCtx)
	assert.Equal(t, 0.9, got.Options.TopP)
}

func TestOllamaGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(testLLMConfig(srv.URL)).Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestOllamaAvailabilityCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"llama3.2:3b"},{"name":"qwen2.5:7b"}]}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(testLLMConfig(srv.URL))
	av := c.CheckAvailability(context.Background())
	assert.True(t, av.Available)
	assert.Equal(t, []string{"llama3.2:3b", "qwen2.5:7b"}, av.Models)

	c.CheckAvailability(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOllamaUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	av := NewOllamaClient(testLLMConfig(url)).CheckAvailability(context.Background())
	assert.False(t, av.Available)
	assert.Empty(t, av.Models)
}

func TestBuildMemoryPrompt(t *testing.T) {
	core := &model.CoreMemory{
		RelationshipState:  model.RelationshipAcquaintance,
		TrustScore:         40,
		ActiveGoals:        []string{"desk", "chair"},
		PriceRange:         &model.PriceRange{Min: 100, Max: 900},
		FavoriteCategories: []string{"furniture"},
	}
	long := strings.Repeat("x", 300)
	var recent []model.RecallEvent
	for i := 0; i < 7; i++ {
		recent = append(recent, model.RecallEvent{EventType: model.EventSearchQuery, EventData: map[string]any{"query": long}})
	}

	p := BuildMemoryPrompt(core, recent)
	assert.Contains(t, p, "Relationship: acquaintance")
	assert.Contains(t, p, "Trust score: 40/100")
	assert.Contains(t, p, "Active goals: desk, chair")
	assert.Contains(t, p, "Price range: 100.00 - 900.00")
	assert.Contains(t, p, "Favorite categories: furniture")
	assert.NotContains(t, p, "Idiosyncrasies")
	assert.Equal(t, 5, strings.Count(p, "- search_query: "))

	for _, line := range strings.Split(p, "\n") {
		if strings.HasPrefix(line, "- search_query: ") {
			assert.Len(t, strings.TrimPrefix(line, "- search_query: "), 100)
		}
	}

	assert.Equal(t, p, BuildMemoryPrompt(core, recent))
}

func TestBuildMemoryPromptEmpty(t *testing.T) {
	p := BuildMemoryPrompt(&model.CoreMemory{RelationshipState: model.RelationshipStranger}, nil)
	assert.Contains(t, p, "Active goals: none yet")
	assert.NotContains(t, p, "RECENT INTERACTIONS")
	assert.NotContains(t, p, "Price range")
}

type fakeGenerator struct {
	reply string
	err   error
	last  GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	f.last = req
	return f.reply, f.err
}

func (f *fakeGenerator) CheckAvailability(ctx context.Context) Availability {
	return Availability{Available: f.err == nil, Models: []string{}}
}

func TestAnalyzeSearchQuery(t *testing.T) {
	gen := &fakeGenerator{reply: "Sure!\n```json\n{\"insights\":\"practical\",\"personalityIndicators\":{\"openness\":70},\"suggestedPreferences\":[\"oak\"]}\n```"}
	a := NewAssistant(gen)

	out := a.AnalyzeSearchQuery(context.Background(), "oak desk", &model.MemoryContext{})
	assert.Equal(t, "practical", out.Insights)
	assert.Equal(t, 70.0, out.PersonalityIndicators["openness"])
	assert.Equal(t, []string{"oak"}, out.SuggestedPreferences)
	assert.Equal(t, analyzeTemperature, gen.last.Temperature)
	assert.Equal(t, "system", gen.last.Messages[0].Role)
}

func TestAnalyzeSearchQueryMalformed(t *testing.T) {
	a := NewAssistant(&fakeGenerator{reply: "the user likes wood"})
	out := a.AnalyzeSearchQuery(context.Background(), "oak desk", nil)
	assert.Equal(t, "the user likes wood", out.Insights)
	assert.Empty(t, out.PersonalityIndicators)
	assert.Empty(t, out.SuggestedPreferences)
}

func TestAssistantBackendDown(t *testing.T) {
	a := NewAssistant(&fakeGenerator{err: ErrGenerationUnavailable})
	ctx := context.Background()

	out := a.AnalyzeSearchQuery(ctx, "q", nil)
	assert.Empty(t, out.Insights)
	assert.NotNil(t, out.PersonalityIndicators)

	assert.Empty(t, a.RecommendProducts(ctx, []Product{{ID: "1", Name: "Desk", Price: 10}}, nil))
	assert.Empty(t, a.GenerateReasoning(ctx, "Desk", 80, nil))

	_, err := a.Chat(ctx, "hi", nil, nil)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestRecommendProductsNumericIDs(t *testing.T) {
	gen := &fakeGenerator{reply: `{"recommendations":[{"productId":42,"score":88,"reasoning":"fits budget","factors":{"budgetFit":90}}]}`}
	recs := NewAssistant(gen).RecommendProducts(context.Background(), []Product{{ID: "42", Name: "Desk", Price: 300}}, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, ID("42"), recs[0].ProductID)
	assert.Equal(t, 90.0, recs[0].Factors["budgetFit"])
	assert.Contains(t, gen.last.Messages[1].Content, "[42] Desk (300.00)")
}

func TestGenerateReasoning(t *testing.T) {
	gen := &fakeGenerator{reply: `{"reasoning":[{"step":1,"factor":"budget","evidence":"range 100-900","weight":60}]}`}
	steps := NewAssistant(gen).GenerateReasoning(context.Background(), "Desk", 82.5, nil)
	require.Len(t, steps, 1)
	assert.Equal(t, "budget", steps[0].Factor)
	assert.Equal(t, reasoningTemperature, gen.last.Temperature)
	assert.Contains(t, gen.last.Messages[1].Content, "82.5/100")
}

func TestChatIncludesHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "Try the oak one."}
	history := []Message{{Role: "user", Content: "need a desk"}, {Role: "assistant", Content: "what size?"}}

	reply, err := NewAssistant(gen).Chat(context.Background(), "small", nil, history)
	require.NoError(t, err)
	assert.Equal(t, "Try the oak one.", reply)
	require.Len(t, gen.last.Messages, 4)
	assert.Equal(t, "system", gen.last.Messages[0].Role)
	assert.Equal(t, "small", gen.last.Messages[3].Content)
	assert.Equal(t, chatTemperature, gen.last.Temperature)
}
