// Package payments adapts the card processor's session, customer,
// subscription and intent APIs to the shapes the billing core needs.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencydesk/internal/domain"
)

// ErrSignatureInvalid is returned when a webhook payload fails verification.
// It is permanent; the caller must not mutate state or ask for redelivery.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// GatewayError carries a processor failure. These are transient from the
// caller's point of view.
type GatewayError struct {
	Op         string
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments: %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("payments: %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayError reports whether err came from the processor.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// Event types the reconciliation engine understands.
const (
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// CheckoutSessionInput describes a hosted subscription checkout.
type CheckoutSessionInput struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the processor's view of a hosted checkout.
type CheckoutSession struct {
	ID             string
	URL            string
	Status         string
	PaymentStatus  string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// Complete reports whether the customer finished the checkout.
func (s CheckoutSession) Complete() bool {
	return s.Status == "complete"
}

// Expired reports whether the session can no longer be completed.
func (s CheckoutSession) Expired() bool {
	return s.Status == "expired"
}

// PaymentIntentInput describes a one-off charge.
type PaymentIntentInput struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// PaymentIntent is a created or delivered one-off charge.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

// Subscription is the processor-authoritative subscription state.
type Subscription struct {
	ID               string
	CustomerID       string
	RawStatus        string
	Status           domain.SubscriptionStatus
	CurrentPeriodEnd time.Time
	Metadata         map[string]string
}

// Event is a verified webhook notification. At most one payload field is
// set, matching Type; unknown types carry none.
type Event struct {
	ID              string
	Type            string
	PaymentIntent   *PaymentIntent
	CheckoutSession *CheckoutSession
	Subscription    *Subscription
}

// Gateway is the processor contract used by the billing core.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error)
	// RetrieveSession fails with domain.ErrSessionNotFound for unknown ids.
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	// VerifyWebhook checks the signature before decoding anything else.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
	OpenBillingPortal(ctx context.Context, customerID, returnURL string) (string, error)
}

// MapSubscriptionStatus folds processor statuses into the ledger's four.
func MapSubscriptionStatus(raw string) domain.SubscriptionStatus {
	switch raw {
	case "active":
		return domain.SubscriptionActive
	case "trialing":
		return domain.SubscriptionTrial
	case "canceled", "incomplete_expired":
		return domain.SubscriptionCanceled
	case "past_due", "unpaid", "incomplete", "paused":
		return domain.SubscriptionPastDue
	default:
		return domain.SubscriptionPastDue
	}
}
