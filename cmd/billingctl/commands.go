package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agencydesk/internal/billing"
	"agencydesk/internal/domain"
)

type operator interface {
	SetPlan(ctx context.Context, userID, planName string, status domain.SubscriptionStatus) (domain.UpsertResult[domain.Subscription], error)
	SyncSubscription(ctx context.Context, userID string) (domain.UpsertResult[domain.Subscription], error)
	Sweep(ctx context.Context, batch int) (billing.SweepReport, error)
}

type credentialWriter interface {
	SetStripeSecretKey(ctx context.Context, key string) error
	SetStripeWebhookSecret(ctx context.Context, secret string) error
}

type env struct {
	billing operator
	creds   credentialWriter
	close   func()
}

type cli struct {
	out     io.Writer
	timeout time.Duration
	open    func(ctx context.Context) (*env, error)
	migrate func(ctx context.Context) error
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operator commands for the billing ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.AddCommand(c.setPlanCmd(), c.syncCmd(), c.sweepCmd(), c.setCredentialCmd(), c.migrateCmd())
	return root
}

// withEnv opens the runtime for a single command and closes it afterwards.
func (c *cli) withEnv(fn func(ctx context.Context, e *env) error) error {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	e, err := c.open(ctx)
	if err != nil {
		return err
	}
	if e.close != nil {
		defer e.close()
	}
	return fn(ctx, e)
}

func (c *cli) setPlanCmd() *cobra.Command {
	var userID, plan, status string
	cmd := &cobra.Command{
		Use:   "set-plan",
		Short: "Override a user's plan without going through the processor",
		Example: `  billingctl set-plan --user 6f1c... --plan pro
  billingctl set-plan --user 6f1c... --plan free --status canceled`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			var st domain.SubscriptionStatus
			if status != "" {
				parsed, err := domain.ParseSubscriptionStatus(status)
				if err != nil {
					return err
				}
				st = parsed
			}
			return c.withEnv(func(ctx context.Context, e *env) error {
				res, err := e.billing.SetPlan(ctx, strings.TrimSpace(userID), plan, st)
				if err != nil {
					return fmt.Errorf("set plan: %w", err)
				}
				printSubscription(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&plan, "plan", "pro", "plan to assign (free, pro, enterprise)")
	cmd.Flags().StringVar(&status, "status", "", "subscription status (defaults to active)")
	return cmd
}

func (c *cli) syncCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sync-subscription",
		Short: "Re-read a user's subscription from the processor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			return c.withEnv(func(ctx context.Context, e *env) error {
				res, err := e.billing.SyncSubscription(ctx, strings.TrimSpace(userID))
				if err != nil {
					return fmt.Errorf("sync subscription: %w", err)
				}
				printSubscription(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withEnv(func(ctx context.Context, e *env) error {
				report, err := e.billing.Sweep(ctx, batch)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tokens_cleared=%d resynced=%d failed=%d\n", report.TokensCleared, report.Resynced, report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 50, "maximum subscriptions to resync")
	return cmd
}

func (c *cli) setCredentialCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-credential (stripe-secret|stripe-webhook) VALUE",
		Short:     "Store a processor credential used when the environment does not set one",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"stripe-secret", "stripe-webhook"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, value := args[0], args[1]
			return c.withEnv(func(ctx context.Context, e *env) error {
				var err error
				switch kind {
				case "stripe-secret":
					err = e.creds.SetStripeSecretKey(ctx, value)
				case "stripe-webhook":
					err = e.creds.SetStripeWebhookSecret(ctx, value)
				default:
					return fmt.Errorf("unknown credential %q", kind)
				}
				if err != nil {
					return fmt.Errorf("store %s: %w", kind, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s stored\n", kind)
				return nil
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func printSubscription(w io.Writer, res domain.UpsertResult[domain.Subscription]) {
	sub := res.Row
	fmt.Fprintf(w, "user=%s plan=%s status=%s outcome=%s\n", sub.UserID, sub.Plan, sub.Status, res.Outcome)
	if sub.StripeSubscriptionID != "" {
		fmt.Fprintf(w, "stripe_subscription=%s\n", sub.StripeSubscriptionID)
	}
	if sub.CurrentPeriodEnd != nil {
		fmt.Fprintf(w, "current_period_end=%s\n", sub.CurrentPeriodEnd.UTC().Format(time.RFC3339))
	}
}
