package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/metrics"
	"github.com/rcliao/shop-memory/internal/model"
)

// Per-task sampling temperatures.
const (
	analyzeTemperature   = 0.3
	recommendTemperature = 0.3
	reasoningTemperature = 0.2
	chatTemperature      = 0.6
)

// Product is a candidate for recommendation.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// QueryAnalysis is the personality read of a search query.
type QueryAnalysis struct {
	Insights              string             `json:"insights"`
	PersonalityIndicators map[string]float64 `json:"personalityIndicators"`
	SuggestedPreferences  []string           `json:"suggestedPreferences"`
}

// Recommendation scores one product against the user's memory.
type Recommendation struct {
	ProductID ID                 `json:"productId"`
	Score     float64            `json:"score"`
	Reasoning string             `json:"reasoning"`
	Factors   map[string]float64 `json:"factors"`
}

// ReasoningStep is one step of an explained recommendation.
type ReasoningStep struct {
	Step     int     `json:"step"`
	Factor   string  `json:"factor"`
	Evidence string  `json:"evidence"`
	Weight   float64 `json:"weight"`
}

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Assistant wraps a Generator with memory-aware prompts. Its structured
// methods never fail: an unreachable backend yields empty results and
// unparseable output yields a best-effort fallback.
type Assistant struct {
	gen Generator
}

// NewAssistant creates an assistant over gen.
func NewAssistant(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// CheckAvailability reports backend status.
func (a *Assistant) CheckAvailability(ctx context.Context) Availability {
	return a.gen.CheckAvailability(ctx)
}

// AnalyzeSearchQuery infers personality indicators and preferences from a query.
func (a *Assistant) AnalyzeSearchQuery(ctx context.Context, query string, mc *model.MemoryContext) QueryAnalysis {
	prompt := fmt.Sprintf(`The user's search query: %q

From this query:
1. Infer the user's personality (Big Five: openness, conscientiousness, extraversion, agreeableness, neuroticism)
2. Identify preference patterns
3. Reply in JSON:

{
  "insights": "overall assessment of the user",
  "personalityIndicators": {
    "openness": 0-100,
    "conscientiousness": 0-100,
    "extraversion": 0-100,
    "agreeableness": 0-100,
    "neuroticism": 0-100
  },
  "suggestedPreferences": ["preference1", "preference2"]
}`, query)

	empty := QueryAnalysis{PersonalityIndicators: map[string]float64{}, SuggestedPreferences: []string{}}

	raw, err := a.generate(ctx, "analyze", mc, prompt, analyzeTemperature)
	if err != nil {
		return empty
	}

	var out QueryAnalysis
	if err := decodeJSON(raw, &out); err != nil {
		a.malformed("analyze", err)
		empty.Insights = raw
		return empty
	}
	if out.PersonalityIndicators == nil {
		out.PersonalityIndicators = map[string]float64{}
	}
	if out.SuggestedPreferences == nil {
		out.SuggestedPreferences = []string{}
	}
	return out
}

// RecommendProducts scores products against the user's memory.
func (a *Assistant) RecommendProducts(ctx context.Context, products []Product, mc *model.MemoryContext) []Recommendation {
	var list strings.Builder
	for _, p := range products {
		fmt.Fprintf(&list, "- [%s] %s (%.2f): %s\n", p.ID, p.Name, p.Price, p.Description)
	}
	prompt := fmt.Sprintf(`Score and recommend the following products based on the user's memory:

%s
Reply in JSON:
{
  "recommendations": [
    {
      "productId": "product_id",
      "score": 0-100,
      "reasoning": "why this product fits the user's memory and personality",
      "factors": {
        "personalityMatch": 0-100,
        "budgetFit": 0-100,
        "memoryAlignment": 0-100
      }
    }
  ]
}`, list.String())

	raw, err := a.generate(ctx, "recommend", mc, prompt, recommendTemperature)
	if err != nil {
		return []Recommendation{}
	}

	var out struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		a.malformed("recommend", err)
		return []Recommendation{}
	}
	if out.Recommendations == nil {
		return []Recommendation{}
	}
	return out.Recommendations
}

// GenerateReasoning explains step by step why a product was recommended.
func (a *Assistant) GenerateReasoning(ctx context.Context, productName string, score float64, mc *model.MemoryContext) []ReasoningStep {
	prompt := fmt.Sprintf(`Product: %q (score: %s/100)

Explain step by step why this product was recommended. Reply in JSON:

{
  "reasoning": [
    {
      "step": 1,
      "factor": "factor name",
      "evidence": "evidence from the user's memory",
      "weight": 0-100
    }
  ]
}`, productName, strconv.FormatFloat(score, 'f', -1, 64))

	raw, err := a.generate(ctx, "reasoning", mc, prompt, reasoningTemperature)
	if err != nil {
		return []ReasoningStep{}
	}

	var out struct {
		Reasoning []ReasoningStep `json:"reasoning"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		a.malformed("reasoning", err)
		return []ReasoningStep{}
	}
	if out.Reasoning == nil {
		return []ReasoningStep{}
	}
	return out.Reasoning
}

// Chat answers a message with the user's memory as system context. Unlike
// the structured methods, a backend failure is returned so the caller can
// decide what to show.
func (a *Assistant) Chat(ctx context.Context, message string, mc *model.MemoryContext, history []Message) (string, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt(mc)})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: message})

	reply, err := a.gen.Generate(ctx, GenerateRequest{Messages: messages, Temperature: chatTemperature})
	if err != nil {
		metrics.GenerationFailures.WithLabelValues("unavailable").Inc()
		log.Warn().Err(err).Str("task", "chat").Msg("generation failed")
		if !errors.Is(err, ErrGenerationUnavailable) {
			err = fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
		}
		return "", err
	}
	return reply, nil
}

func (a *Assistant) generate(ctx context.Context, task string, mc *model.MemoryContext, prompt string, temperature float64) (string, error) {
	raw, err := a.gen.Generate(ctx, GenerateRequest{
		Messages: []Message{
			{Role: "system", Content: systemPrompt(mc)},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		metrics.GenerationFailures.WithLabelValues("unavailable").Inc()
		log.Warn().Err(err).Str("task", task).Msg("generation failed, returning empty result")
		return "", err
	}
	return raw, nil
}

func (a *Assistant) malformed(task string, err error) {
	metrics.GenerationFailures.WithLabelValues("malformed").Inc()
	log.Warn().Err(err).Str("task", task).Msg("generation output malformed, using fallback")
}

func systemPrompt(mc *model.MemoryContext) string {
	if mc == nil {
		return BuildMemoryPrompt(nil, nil)
	}
	return BuildMemoryPrompt(mc.Core, mc.Recent)
}

// decodeJSON parses the first JSON object in raw. Models often wrap JSON in
// prose or code fences.
func decodeJSON(raw string, v interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in output", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
