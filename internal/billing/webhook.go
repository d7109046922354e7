package billing

import (
	"context"
	"errors"
	"net/http"

	"agencydesk/internal/domain"
	"agencydesk/internal/payments"
)

// Webhook outcomes. Every outcome except a returned error acknowledges the
// delivery.
const (
	OutcomeProcessed = "processed"
	OutcomeNoop      = "noop"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// WebhookResult describes how a delivery was handled.
type WebhookResult struct {
	EventID string
	Type    string
	Outcome string
	Reason  string
}

// HandleEvent verifies and applies one processor webhook delivery.
//
// A returned error means the delivery must not be acknowledged:
// payments.ErrSignatureInvalid is permanent, anything else (storage or
// processor failures) is transient and the processor should redeliver.
// Recognized events that cannot be applied, and unknown event types, are
// acknowledged with OutcomeIgnored.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	evt, err := s.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		s.metrics.webhook("unverified", OutcomeRejected)
		s.logger.Warn().Err(err).Msg("webhook rejected")
		return &WebhookResult{Outcome: OutcomeRejected}, err
	}
	res := &WebhookResult{EventID: evt.ID, Type: evt.Type}
	log := s.logger.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()

	seen, err := s.store.WebhookEvents().Seen(ctx, evt.ID)
	if err != nil {
		res.Outcome = OutcomeFailed
		s.metrics.webhook(evt.Type, res.Outcome)
		return res, err
	}
	if seen {
		res.Outcome = OutcomeDuplicate
		s.metrics.webhook(evt.Type, res.Outcome)
		log.Debug().Msg("webhook already processed")
		return res, nil
	}

	var after func()
	switch evt.Type {
	case payments.EventPaymentIntentSucceeded:
		after, err = s.onPaymentSucceeded(ctx, evt, res)
	case payments.EventCheckoutSessionCompleted:
		err = s.onCheckoutCompleted(ctx, evt, res)
	case payments.EventSubscriptionCreated, payments.EventSubscriptionUpdated, payments.EventSubscriptionDeleted:
		err = s.onSubscriptionChanged(ctx, evt, res)
	default:
		res.Outcome, res.Reason = OutcomeIgnored, "unhandled event type"
	}
	if err != nil {
		res.Outcome = OutcomeFailed
		s.metrics.webhook(evt.Type, res.Outcome)
		log.Error().Err(err).Msg("webhook processing failed")
		return res, err
	}

	if err := s.store.WebhookEvents().Record(ctx, evt.ID, evt.Type, res.Outcome); err != nil {
		log.Warn().Err(err).Msg("record webhook event failed")
	}
	s.metrics.webhook(evt.Type, res.Outcome)
	ev := log.Info()
	if res.Outcome == OutcomeIgnored {
		ev = log.Warn()
	}
	ev.Str("outcome", res.Outcome).Str("reason", res.Reason).Msg("webhook handled")
	if after != nil {
		after()
	}
	return res, nil
}

func (s *Service) onPaymentSucceeded(ctx context.Context, evt *payments.Event, res *WebhookResult) (func(), error) {
	if evt.PaymentIntent == nil {
		res.Outcome, res.Reason = OutcomeIgnored, "missing payment intent"
		return nil, nil
	}
	md, err := domain.DecodePaymentMetadata(evt.PaymentIntent.Metadata)
	if err != nil {
		res.Outcome, res.Reason = OutcomeIgnored, err.Error()
		return nil, nil
	}
	st, err := s.settlePayment(ctx, md.PaymentRequestID)
	if errors.Is(err, domain.ErrNotFound) {
		res.Outcome, res.Reason = OutcomeIgnored, "payment request not found"
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !st.Settled {
		res.Outcome, res.Reason = OutcomeNoop, "already paid"
		return nil, nil
	}
	res.Outcome = OutcomeProcessed
	return func() { s.announceSettlement(ctx, st) }, nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, evt *payments.Event, res *WebhookResult) error {
	cs := evt.CheckoutSession
	if cs == nil {
		res.Outcome, res.Reason = OutcomeIgnored, "missing checkout session"
		return nil
	}
	md, err := domain.DecodeCheckoutMetadata(cs.Metadata)
	if err != nil {
		res.Outcome, res.Reason = OutcomeIgnored, err.Error()
		return nil
	}
	if cs.SubscriptionID == "" {
		res.Outcome, res.Reason = OutcomeIgnored, "no subscription on session"
		return nil
	}
	if ok, err := s.userExists(ctx, md.UserID, res); !ok {
		return err
	}
	active := domain.SubscriptionActive
	up, err := s.syncSubscription(ctx, md.UserID, md.Plan, cs.SubscriptionID, cs.CustomerID, &active)
	return s.subscriptionOutcome(up, err, res)
}

func (s *Service) onSubscriptionChanged(ctx context.Context, evt *payments.Event, res *WebhookResult) error {
	sub := evt.Subscription
	if sub == nil {
		res.Outcome, res.Reason = OutcomeIgnored, "missing subscription"
		return nil
	}
	md, err := domain.DecodeCheckoutMetadata(sub.Metadata)
	if err != nil {
		res.Outcome, res.Reason = OutcomeIgnored, err.Error()
		return nil
	}
	if ok, err := s.userExists(ctx, md.UserID, res); !ok {
		return err
	}
	if evt.Type == payments.EventSubscriptionDeleted {
		patch := subscriptionFromEvent(sub, md.Plan)
		patch.Status = domain.SubscriptionCanceled
		up, err := s.applySubscription(ctx, md.UserID, patch)
		return s.subscriptionOutcome(up, err, res)
	}
	up, err := s.syncSubscription(ctx, md.UserID, md.Plan, sub.ID, sub.CustomerID, nil)
	return s.subscriptionOutcome(up, err, res)
}

// userExists acks events naming a user that is gone rather than retrying
// them forever.
func (s *Service) userExists(ctx context.Context, userID string, res *WebhookResult) (bool, error) {
	_, err := s.store.Users().GetByID(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrUserNotFound):
		res.Outcome, res.Reason = OutcomeIgnored, "user not found"
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) subscriptionOutcome(up domain.UpsertResult[domain.Subscription], err error, res *WebhookResult) error {
	var ge *payments.GatewayError
	switch {
	case errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound:
		res.Outcome, res.Reason = OutcomeIgnored, "subscription unknown to processor"
		return nil
	case errors.Is(err, domain.ErrUserNotFound):
		res.Outcome, res.Reason = OutcomeIgnored, "user not found"
		return nil
	case err != nil:
		return err
	case up.Changed():
		res.Outcome = OutcomeProcessed
	default:
		res.Outcome, res.Reason = OutcomeNoop, "transition refused or unchanged"
	}
	return nil
}
