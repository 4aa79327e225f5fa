// Package scheduler runs periodic consolidation and price checks for every
// known user.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/rcliao/shop-memory/internal/config"
	"github.com/rcliao/shop-memory/internal/memory"
	"github.com/rcliao/shop-memory/internal/pricing"
	"github.com/rcliao/shop-memory/internal/store"
)

// Jobs is the per-user work the scheduler fans out.
type Jobs interface {
	Consolidate(ctx context.Context, userID string) (*memory.ConsolidationReport, error)
	CheckPrices(ctx context.Context, userID string) (*pricing.CheckReport, error)
}

// RunSummary counts the outcome of one scheduled run.
type RunSummary struct {
	Users  int `json:"users"`
	Failed int `json:"failed"`
}

// Scheduler manages cron jobs over all users.
type Scheduler struct {
	cron      *cron.Cron
	jobs      Jobs
	users     store.UserLister
	batchSize int
	timeout   time.Duration

	mu      sync.Mutex
	cursors map[string]string // job -> last user id processed
}

// New creates a scheduler and registers the jobs whose cron spec is set.
func New(cfg config.SchedulerConfig, jobs Jobs, users store.UserLister) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		jobs:      jobs,
		users:     users,
		batchSize: cfg.BatchSize,
		timeout:   30 * time.Minute,
		cursors:   map[string]string{},
	}

	if cfg.ConsolidateCron != "" {
		if _, err := s.cron.AddFunc(cfg.ConsolidateCron, s.runJob("consolidate", s.RunConsolidation)); err != nil {
			return nil, fmt.Errorf("consolidate cron %q: %w", cfg.ConsolidateCron, err)
		}
	}
	if cfg.PriceCheckCron != "" {
		if _, err := s.cron.AddFunc(cfg.PriceCheckCron, s.runJob("price_check", s.RunPriceChecks)); err != nil {
			return nil, fmt.Errorf("price check cron %q: %w", cfg.PriceCheckCron, err)
		}
	}
	return s, nil
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runJob(name string, fn func(context.Context) (RunSummary, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		sum, err := fn(ctx)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			return
		}
		log.Info().
			Str("job", name).
			Int("users", sum.Users).
			Int("failed", sum.Failed).
			Dur("took", time.Since(start)).
			Msg("scheduled job finished")
	}
}

// RunConsolidation consolidates every user with recall events.
func (s *Scheduler) RunConsolidation(ctx context.Context) (RunSummary, error) {
	users, err := s.users.UsersWithEvents(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	return s.each(ctx, "consolidate", users, func(ctx context.Context, userID string) error {
		_, err := s.jobs.Consolidate(ctx, userID)
		return err
	})
}

// RunPriceChecks checks prices for every user with an active watch item.
func (s *Scheduler) RunPriceChecks(ctx context.Context) (RunSummary, error) {
	users, err := s.users.UsersWithActiveWatches(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	return s.each(ctx, "price_check", users, func(ctx context.Context, userID string) error {
		_, err := s.jobs.CheckPrices(ctx, userID)
		return err
	})
}

// each runs fn for up to batchSize users. A failing user is logged and
// counted; it does not stop the run.
func (s *Scheduler) each(ctx context.Context, job string, users []string, fn func(context.Context, string) error) (RunSummary, error) {
	users = s.nextBatch(job, users)

	var sum RunSummary
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Users++
		if err := fn(ctx, u); err != nil {
			sum.Failed++
			log.Warn().Err(err).Str("job", job).Str("user_id", u).Msg("job failed for user")
		}
	}
	return sum, nil
}

// nextBatch picks up to batchSize users, resuming after the last user the
// job processed and wrapping around, so every user is reached within
// ceil(len(users)/batchSize) runs.
func (s *Scheduler) nextBatch(job string, users []string) []string {
	if s.batchSize <= 0 || len(users) <= s.batchSize {
		return users
	}

	sorted := append([]string(nil), users...)
	sort.Strings(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.cursors[job]
	start := sort.Search(len(sorted), func(i int) bool { return sorted[i] > cursor })

	batch := make([]string, 0, s.batchSize)
	for i := 0; i < s.batchSize; i++ {
		batch = append(batch, sorted[(start+i)%len(sorted)])
	}
	s.cursors[job] = batch[len(batch)-1]

	log.Debug().Str("job", job).Int("users", len(users)).Int("batch_size", s.batchSize).
		Str("from", batch[0]).Msg("processing user batch")
	return batch
}
