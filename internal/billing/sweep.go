package billing

import "context"

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	TokensCleared int64
	Resynced      int
	Failed        int
}

// Sweep clears expired login tokens and re-reads active or past_due
// subscriptions whose period ended without a webhook moving them forward.
// Each row is swept at most once per SweepResyncBackoff, whatever the result,
// so a subscription stuck in past_due is not fetched on every pass.
func (s *Service) Sweep(ctx context.Context, batch int) (SweepReport, error) {
	var report SweepReport
	now := s.clock()
	cleared, err := s.store.Users().ClearExpiredLoginTokens(ctx, now)
	if err != nil {
		return report, err
	}
	report.TokensCleared = cleared

	stale, err := s.store.Subscriptions().ListStale(ctx, now, now.Add(-s.opts.SweepResyncBackoff), batch)
	if err != nil {
		return report, err
	}
	for _, sub := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		_, syncErr := s.syncSubscription(ctx, sub.UserID, "", sub.StripeSubscriptionID, sub.StripeCustomerID, nil)
		if err := s.store.Subscriptions().MarkSynced(ctx, sub.UserID, now); err != nil {
			return report, err
		}
		if syncErr != nil {
			report.Failed++
			s.metrics.resync("failed")
			s.logger.Warn().Err(syncErr).Str("user_id", sub.UserID).Msg("subscription resync failed")
			continue
		}
		report.Resynced++
		s.metrics.resync("ok")
	}
	if report.TokensCleared > 0 || len(stale) > 0 {
		s.logger.Info().
			Int64("tokens_cleared", report.TokensCleared).
			Int("resynced", report.Resynced).
			Int("failed", report.Failed).
			Msg("sweep finished")
	}
	return report, nil
}
