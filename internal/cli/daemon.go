package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/shop-memory/internal/metrics"
	"github.com/rcliao/shop-memory/internal/pricing"
	"github.com/rcliao/shop-memory/internal/scheduler"
)

func init() {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled consolidation and price checks, serving /metrics",
		Args:  cobra.NoArgs,
		Run:   runDaemon,
	}

	RootCmd.AddCommand(cmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	svc, s := openService()
	defer s.Close()

	svc.Budget().OnBreach(func(b pricing.BudgetBreach) {
		log.Warn().
			Str("user_id", b.UserID).
			Str("month", b.Month).
			Float64("ratio", b.Ratio).
			Msg("monthly budget threshold reached")
	})

	sched, err := scheduler.New(cfg.Scheduler, svc, s)
	if err != nil {
		exitErr("scheduler", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics server failed")
		}
	}()

	sched.Start()
	log.Info().
		Str("db", getDBPath()).
		Str("metrics", cfg.Metrics.Addr).
		Int("jobs", sched.Entries()).
		Msg("daemon started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
