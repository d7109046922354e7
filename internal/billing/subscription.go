package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencydesk/internal/domain"
	"agencydesk/internal/payments"
)

// syncSubscription reads the processor-authoritative subscription and
// upserts the ledger with it. status overrides the processor status when set;
// plan may be empty to keep the stored plan. The user's denormalized fields
// follow the ledger only when the upsert changed it.
func (s *Service) syncSubscription(ctx context.Context, userID string, plan domain.Plan, subscriptionID, customerID string, status *domain.SubscriptionStatus) (domain.UpsertResult[domain.Subscription], error) {
	var res domain.UpsertResult[domain.Subscription]
	remote, err := s.gateway.RetrieveSubscription(ctx, subscriptionID)
	if err != nil {
		return res, err
	}
	next := remote.Status
	if status != nil {
		next = *status
	}
	if customerID == "" {
		customerID = remote.CustomerID
	}
	var periodEnd *time.Time
	if !remote.CurrentPeriodEnd.IsZero() {
		end := remote.CurrentPeriodEnd.UTC()
		periodEnd = &end
	}
	return s.applySubscription(ctx, userID, domain.SubscriptionPatch{
		Plan:                 plan,
		Status:               next,
		StripeSubscriptionID: subscriptionID,
		StripeCustomerID:     customerID,
		CurrentPeriodEnd:     periodEnd,
		ClearTrial:           next == domain.SubscriptionActive,
	})
}

// applySubscription upserts the ledger, mirrors the result onto the user and
// records a history entry when a tracked field moved, all in one
// transaction.
func (s *Service) applySubscription(ctx context.Context, userID string, patch domain.SubscriptionPatch) (domain.UpsertResult[domain.Subscription], error) {
	var res domain.UpsertResult[domain.Subscription]
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		prev, err := tx.Subscriptions().GetByUser(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		res, err = tx.Subscriptions().UpsertByUser(ctx, userID, patch)
		if err != nil {
			return err
		}
		if !res.Changed() {
			return nil
		}
		if err := tx.Users().ApplyPlan(ctx, userID, planPatchFor(res.Row)); err != nil {
			return err
		}
		if !historyMoved(prev, res.Row) {
			return nil
		}
		return tx.Subscriptions().AppendHistory(ctx, res.Row.HistoryEntry(res.Outcome))
	})
	if err != nil {
		return res, err
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("status", string(res.Row.Status)).
		Str("plan", string(res.Row.Plan)).
		Str("outcome", string(res.Outcome)).
		Msg("subscription reconciled")
	return res, nil
}

// historyMoved reports whether next differs from prev in a field the
// history shows. Renewal retries that rewrite identical values are skipped.
func historyMoved(prev *domain.Subscription, next domain.Subscription) bool {
	if prev == nil {
		return true
	}
	if prev.Plan != next.Plan || prev.Status != next.Status || prev.StripeSubscriptionID != next.StripeSubscriptionID {
		return true
	}
	switch {
	case prev.CurrentPeriodEnd == nil || next.CurrentPeriodEnd == nil:
		return prev.CurrentPeriodEnd != next.CurrentPeriodEnd
	default:
		return !prev.CurrentPeriodEnd.Equal(*next.CurrentPeriodEnd)
	}
}

func planPatchFor(sub domain.Subscription) domain.PlanPatch {
	plan := sub.Plan
	if sub.Status == domain.SubscriptionCanceled {
		plan = domain.PlanFree
	}
	return domain.PlanPatch{
		Plan:                 plan,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
	}
}

// SyncSubscription re-reads the user's processor subscription and applies
// it to the ledger.
func (s *Service) SyncSubscription(ctx context.Context, userID string) (domain.UpsertResult[domain.Subscription], error) {
	sub, err := s.store.Subscriptions().GetByUser(ctx, userID)
	if err != nil {
		return domain.UpsertResult[domain.Subscription]{}, err
	}
	if sub.StripeSubscriptionID == "" {
		return domain.UpsertResult[domain.Subscription]{}, fmt.Errorf("%w: no processor subscription for user %s", domain.ErrNotFound, userID)
	}
	return s.syncSubscription(ctx, userID, "", sub.StripeSubscriptionID, sub.StripeCustomerID, nil)
}

// SetPlan overrides a user's plan through the ledger upsert. It is an
// operator action and bypasses the processor.
func (s *Service) SetPlan(ctx context.Context, userID, planName string, status domain.SubscriptionStatus) (domain.UpsertResult[domain.Subscription], error) {
	plan, err := domain.ParsePlan(planName)
	if err != nil {
		return domain.UpsertResult[domain.Subscription]{}, err
	}
	if status == "" {
		status = domain.SubscriptionActive
	}
	return s.applySubscription(ctx, userID, domain.SubscriptionPatch{
		Plan:       plan,
		Status:     status,
		ClearTrial: status == domain.SubscriptionActive,
	})
}

// SubscriptionHistory lists the ledger changes of an admin's own
// subscription, newest first. limit is clamped to [1, 200] and defaults to 50.
func (s *Service) SubscriptionHistory(ctx context.Context, caller domain.User, limit int) ([]domain.SubscriptionHistoryEntry, error) {
	if caller.Role != domain.UserRoleAdmin {
		return nil, domain.ErrForbidden
	}
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	return s.store.Subscriptions().ListHistory(ctx, caller.ID, limit)
}

// CurrentSubscription returns the user's live subscription or ErrNotFound.
func (s *Service) CurrentSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.store.Subscriptions().FindActiveOrTrial(ctx, userID)
}

// BillingPortal returns a processor-hosted portal URL for the user's
// customer record.
func (s *Service) BillingPortal(ctx context.Context, userID string) (string, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", domain.ErrNoCustomer
	}
	return s.gateway.OpenBillingPortal(ctx, user.StripeCustomerID, s.opts.AppURL+"/dashboard/billing")
}

// subscriptionFromEvent builds the ledger patch for a subscription
// lifecycle event that already carries authoritative state.
func subscriptionFromEvent(sub *payments.Subscription, plan domain.Plan) domain.SubscriptionPatch {
	patch := domain.SubscriptionPatch{
		Plan:                 plan,
		Status:               sub.Status,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.CustomerID,
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd.UTC()
		patch.CurrentPeriodEnd = &end
	}
	return patch
}
