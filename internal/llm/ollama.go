// Package llm talks to the text-generation backend and turns its output into
// shopping-assistant results.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/config"
	"github.com/rcliao/shop-memory/internal/metrics"
)

var (
	// ErrGenerationUnavailable means the backend could not produce a response.
	ErrGenerationUnavailable = errors.New("text generation unavailable")
	// ErrMalformedOutput means the backend answered with unparseable output.
	ErrMalformedOutput = errors.New("malformed generation output")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// GenerateRequest is a non-streaming chat completion request. Zero-valued
// options fall back to the client defaults.
type GenerateRequest struct {
	Messages      []Message
	Temperature   float64
	ContextWindow int
	TopP          float64
}

// Availability reports whether the backend is reachable and its models.
type Availability struct {
	Available bool     `json:"available"`
	Models    []string `json:"models"`
}

// Generator produces text from chat messages.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	CheckAvailability(ctx context.Context) Availability
}

// OllamaClient uses a local Ollama instance's chat API.
type OllamaClient struct {
	baseURL       string
	model         string
	temperature   float64
	contextWindow int
	topP          float64
	client        *http.Client
	cache         *cache.Cache
}

var _ Generator = (*OllamaClient)(nil)

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
	TopP        float64 `json:"top_p"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

const availabilityKey = "availability"

// NewOllamaClient creates a client from the LLM config.
func NewOllamaClient(cfg config.LLMConfig) *OllamaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ttl := cfg.AvailabilityTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &OllamaClient{
		baseURL:       strings.TrimRight(cfg.Endpoint, "/"),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		contextWindow: cfg.ContextWindow,
		topP:          cfg.TopP,
		client:        &http.Client{Timeout: timeout},
		cache:         cache.New(ttl, 2*ttl),
	}
}

// Generate sends a non-streaming chat request and returns the reply text.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	opts := ollamaOptions{Temperature: c.temperature, NumCtx: c.contextWindow, TopP: c.topP}
	if req.Temperature > 0 {
		opts.Temperature = req.Temperature
	}
	if req.ContextWindow > 0 {
		opts.NumCtx = req.ContextWindow
	}
	if req.TopP > 0 {
		opts.TopP = req.TopP
	}

	body, _ := json.Marshal(ollamaChatRequest{Model: c.model, Messages: req.Messages, Options: opts})
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: ollama request failed: %v", ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama error %d: %s", ErrGenerationUnavailable, resp.StatusCode, string(b))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %v", ErrGenerationUnavailable, err)
	}
	return result.Message.Content, nil
}

// CheckAvailability lists installed models. Results are cached briefly.
func (c *OllamaClient) CheckAvailability(ctx context.Context) Availability {
	if v, ok := c.cache.Get(availabilityKey); ok {
		return v.(Availability)
	}

	av := c.fetchAvailability(ctx)
	c.cache.SetDefault(availabilityKey, av)
	return av
}

func (c *OllamaClient) fetchAvailability(ctx context.Context) Availability {
	down := Availability{Available: false, Models: []string{}}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return down
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", c.baseURL).Msg("ollama availability check failed")
		return down
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		log.Warn().Int("status", resp.StatusCode).Str("endpoint", c.baseURL).Msg("ollama availability check failed")
		return down
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return down
	}
	av := Availability{Available: true, Models: make([]string, 0, len(tags.Models))}
	for _, m := range tags.Models {
		av.Models = append(av.Models, m.Name)
	}
	return av
}
