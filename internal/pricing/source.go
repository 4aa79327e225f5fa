package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rcliao/shop-memory/internal/config"
	"github.com/rcliao/shop-memory/internal/model"
)

// ErrPriceUnavailable means a source could not produce a price for an item.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceSource produces the latest observed price for a watch item. A real
// fetcher (scraper or retailer API) plugs in here; the sources in this
// package are simulated or fixed.
type PriceSource interface {
	Fetch(ctx context.Context, item model.WatchItem) (float64, error)
}

// JitterSource simulates a price check by moving the current price uniformly
// within [0.9, 1.1) of itself. For demos only.
type JitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitterSource creates a jitter source. A zero seed uses the clock.
func NewJitterSource(seed int64) *JitterSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &JitterSource{rnd: rand.New(rand.NewSource(seed))}
}

// Fetch returns the jittered price.
func (j *JitterSource) Fetch(ctx context.Context, item model.WatchItem) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	j.mu.Lock()
	f := j.rnd.Float64()
	j.mu.Unlock()
	return item.CurrentPrice * (0.9 + f*0.2), nil
}

// StaticSource returns fixed prices keyed by URL.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStaticSource creates a source serving the given URL prices.
func NewStaticSource(prices map[string]float64) *StaticSource {
	m := make(map[string]float64, len(prices))
	for k, v := range prices {
		m[k] = v
	}
	return &StaticSource{prices: m}
}

// Set changes the price served for url.
func (s *StaticSource) Set(url string, price float64) {
	s.mu.Lock()
	s.prices[url] = price
	s.mu.Unlock()
}

// Fetch returns the configured price or ErrPriceUnavailable.
func (s *StaticSource) Fetch(ctx context.Context, item model.WatchItem) (float64, error) {
	s.mu.RLock()
	p, ok := s.prices[item.URL]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%s: %w", item.URL, ErrPriceUnavailable)
	}
	return p, nil
}

// noSource fails every fetch; used when no price source is configured.
type noSource struct{}

func (noSource) Fetch(ctx context.Context, item model.WatchItem) (float64, error) {
	return 0, fmt.Errorf("no price source configured: %w", ErrPriceUnavailable)
}

// RateLimitedSource throttles fetches per host before delegating.
type RateLimitedSource struct {
	next     PriceSource
	rate     rate.Limit
	burst    int
	limiters *sync.Map // map[string]*rate.Limiter
}

// NewRateLimitedSource wraps next with a per-host limiter of perSecond
// requests and the given burst.
func NewRateLimitedSource(next PriceSource, perSecond float64, burst int) *RateLimitedSource {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedSource{
		next:     next,
		rate:     rate.Limit(perSecond),
		burst:    burst,
		limiters: &sync.Map{},
	}
}

// Fetch waits for the item's host limiter, then fetches.
func (r *RateLimitedSource) Fetch(ctx context.Context, item model.WatchItem) (float64, error) {
	if err := r.limiter(hostOf(item.URL)).Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit %s: %w", item.URL, err)
	}
	return r.next.Fetch(ctx, item)
}

func (r *RateLimitedSource) limiter(host string) *rate.Limiter {
	if l, ok := r.limiters.Load(host); ok {
		return l.(*rate.Limiter)
	}
	// Use the existing limiter if another goroutine stored one first.
	actual, _ := r.limiters.LoadOrStore(host, rate.NewLimiter(r.rate, r.burst))
	return actual.(*rate.Limiter)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

// NewSource builds the configured price source, rate limited per host.
func NewSource(cfg config.PricingConfig) (PriceSource, error) {
	var src PriceSource
	switch cfg.Source {
	case "jitter":
		src = NewJitterSource(0)
	case "none", "":
		src = noSource{}
	default:
		return nil, fmt.Errorf("unknown price source %q", cfg.Source)
	}
	return NewRateLimitedSource(src, cfg.HostRate, cfg.HostBurst), nil
}
