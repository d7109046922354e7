// Package app assembles the billing runtime shared by the api, worker and
// billingctl binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"agencydesk/internal/adapter/repo"
	"agencydesk/internal/billing"
	"agencydesk/internal/infra"
	"agencydesk/internal/infra/credentials"
	"agencydesk/internal/middleware"
	"agencydesk/internal/notify"
	"agencydesk/internal/payments"
)

// Runtime holds the long-lived dependencies of a process. Close releases the
// database pool.
type Runtime struct {
	Config      *infra.Config
	Logger      zerolog.Logger
	Pool        *pgxpool.Pool
	Runner      *infra.SQLRunner
	Store       *repo.Store
	Credentials *credentials.Store
	Gateway     *payments.StripeGateway
	Registry    *prometheus.Registry
	Billing     *billing.Service
}

// Build connects to the database, resolves processor credentials and wires
// the billing service.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Runtime, error) {
	if cfg.MigrateOnStart {
		if err := infra.Migrate(cfg, logger); err != nil {
			return nil, err
		}
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runner := infra.NewSQLRunner(pool, infra.Component(logger, "sql"))
	creds := credentials.NewStore(runner)

	secretKey, err := creds.Resolve(ctx, cfg.StripeSecretKey, credentials.ProviderStripeSecret)
	if err != nil {
		pool.Close()
		return nil, err
	}
	webhookSecret, err := creds.Resolve(ctx, cfg.StripeWebhookSecret, credentials.ProviderStripeWebhook)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if secretKey == "" {
		logger.Warn().Msg("stripe secret key not configured; processor calls will fail")
	}
	if webhookSecret == "" {
		logger.Warn().Msg("stripe webhook secret not configured; every delivery will be rejected")
	}

	gateway := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		Logger:        infra.Component(logger, "stripe"),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := repo.NewStore(runner)
	sink := notify.Fanout{
		notify.InApp{Repo: store.Notifications()},
		notify.LogMailer{Logger: infra.Component(logger, "mailer")},
	}
	sessions := middleware.JWTIssuer{Secret: cfg.JWTSecret, TTL: cfg.SessionTTL}

	svc := billing.NewService(store, gateway, sessions, sink, billing.NewMetrics(reg), infra.Component(logger, "billing"), billing.Options{
		AppURL:             cfg.AppURL,
		Currency:           cfg.PaymentCurrency,
		PriceIDs:           cfg.StripePriceIDs,
		TrialDays:          cfg.TrialDays,
		LoginTokenTTL:      cfg.LoginTokenTTL,
		FinalizeWindow:     cfg.FinalizeWindow,
		SweepResyncBackoff: cfg.SweepResyncBackoff,
	})

	return &Runtime{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Runner:      runner,
		Store:       store,
		Credentials: creds,
		Gateway:     gateway,
		Registry:    reg,
		Billing:     svc,
	}, nil
}

// Close releases the pool.
func (r *Runtime) Close() {
	if r == nil || r.Pool == nil {
		return
	}
	r.Pool.Close()
}

// Load reads configuration and builds the process logger.
func Load() (*infra.Config, zerolog.Logger, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, infra.NewLogger(cfg.AppEnv, cfg.LogLevel), nil
}
