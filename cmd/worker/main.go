package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"agencydesk/internal/app"
	"agencydesk/internal/billing"
)

type sweeper interface {
	Sweep(ctx context.Context, batch int) (billing.SweepReport, error)
}

type sweepWorker struct {
	svc      sweeper
	logger   zerolog.Logger
	interval time.Duration
	batch    int
}

func main() {
	_ = godotenv.Load()

	cfg, logger, err := app.Load()
	if err != nil {
		panic(err)
	}
	logger = logger.With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to initialise runtime")
	}
	defer rt.Close()

	w := &sweepWorker{
		svc:      rt.Billing,
		logger:   logger,
		interval: cfg.SweepInterval,
		batch:    cfg.SweepBatch,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Failed sweeps are logged and retried on the next tick.
func (w *sweepWorker) Run(ctx context.Context) error {
	interval := w.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	w.logger.Info().Dur("interval", interval).Int("batch", w.batch).Msg("worker: started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *sweepWorker) tick(ctx context.Context) {
	report, err := w.svc.Sweep(ctx, w.batch)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("worker: sweep failed")
		}
		return
	}
	w.logger.Info().
		Int64("tokens_cleared", report.TokensCleared).
		Int("resynced", report.Resynced).
		Int("failed", report.Failed).
		Msg("worker: sweep done")
}
