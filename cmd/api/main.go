package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"agencydesk/internal/app"
	"agencydesk/internal/http/handlers"
	httpapi "agencydesk/internal/http/httpapi"
	"agencydesk/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, logger, err := app.Load()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise runtime")
	}
	defer rt.Close()

	api := &handlers.App{
		Billing:          rt.Billing,
		DB:               rt.Pool,
		Logger:           infra.Component(logger, "http"),
		AppURL:           cfg.AppURL,
		WebhookBodyLimit: cfg.WebhookBodyLimitBytes,
	}
	router := httpapi.NewRouter(api, httpapi.Options{
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		Registry:           rt.Registry,
		Logger:             infra.Component(logger, "http"),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
