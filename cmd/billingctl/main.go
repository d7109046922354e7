package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"agencydesk/internal/app"
	"agencydesk/internal/infra"
)

func main() {
	_ = godotenv.Load()

	c := &cli{
		out: os.Stdout,
		open: func(ctx context.Context) (*env, error) {
			cfg, logger, err := app.Load()
			if err != nil {
				return nil, err
			}
			rt, err := app.Build(ctx, cfg, logger.With().Str("cmd", "billingctl").Logger())
			if err != nil {
				return nil, err
			}
			return &env{billing: rt.Billing, creds: rt.Credentials, close: rt.Close}, nil
		},
		migrate: func(context.Context) error {
			cfg, logger, err := app.Load()
			if err != nil {
				return err
			}
			return infra.Migrate(cfg, logger)
		},
	}

	if err := c.root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
