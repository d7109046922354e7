package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"agencydesk/internal/domain"
)

// FakeGateway is an in-memory Gateway for tests and local runs without
// processor credentials. Webhooks are verified with the real Stripe
// signature scheme against WebhookSecret.
type FakeGateway struct {
	mu sync.Mutex

	WebhookSecret string
	// Now stamps created sessions; defaults to time.Now.
	Now func() time.Time

	Customers     map[string]string
	Sessions      map[string]*CheckoutSession
	Subscriptions map[string]*Subscription
	Intents       []PaymentIntentInput
	Checkouts     []CheckoutSessionInput
	Portals       []string

	// Calls counts invocations per method name.
	Calls map[string]int

	CreateCustomerErr       error
	CreateCheckoutErr       error
	CreatePaymentIntentErr  error
	RetrieveSubscriptionErr error

	seq int
}

// NewFakeGateway returns an empty fake.
func NewFakeGateway(webhookSecret string) *FakeGateway {
	return &FakeGateway{
		WebhookSecret: webhookSecret,
		Customers:     map[string]string{},
		Sessions:      map[string]*CheckoutSession{},
		Subscriptions: map[string]*Subscription{},
		Calls:         map[string]int{},
		Now:           time.Now,
	}
}

func (f *FakeGateway) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, f.seq)
}

// PutSubscription registers processor-side subscription state.
func (f *FakeGateway) PutSubscription(sub Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.Status == "" {
		sub.Status = MapSubscriptionStatus(sub.RawStatus)
	}
	f.Subscriptions[sub.ID] = &sub
}

// PutSession registers a checkout session.
func (f *FakeGateway) PutSession(s CheckoutSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sessions[s.ID] = &s
}

// CallCount returns how many times method was invoked.
func (f *FakeGateway) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *FakeGateway) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["CreateCustomer"]++
	if f.CreateCustomerErr != nil {
		return "", f.CreateCustomerErr
	}
	id := f.next("cus")
	f.Customers[id] = userID
	return id, nil
}

func (f *FakeGateway) CreateCheckoutSession(_ context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["CreateCheckoutSession"]++
	if f.CreateCheckoutErr != nil {
		return nil, f.CreateCheckoutErr
	}
	f.Checkouts = append(f.Checkouts, in)
	id := f.next("cs")
	s := &CheckoutSession{
		ID:         id,
		URL:        "https://checkout.stripe.test/" + id,
		Status:     "open",
		CustomerID: in.CustomerID,
		Metadata:   copyMetadata(in.Metadata),
		CreatedAt:  f.Now().UTC(),
	}
	f.Sessions[id] = s
	out := *s
	return &out, nil
}

func (f *FakeGateway) CreatePaymentIntent(_ context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["CreatePaymentIntent"]++
	if f.CreatePaymentIntentErr != nil {
		return nil, f.CreatePaymentIntentErr
	}
	f.Intents = append(f.Intents, in)
	id := f.next("pi")
	return &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountMinor:  in.AmountMinor,
		Currency:     in.Currency,
		Metadata:     copyMetadata(in.Metadata),
	}, nil
}

func (f *FakeGateway) RetrieveSession(_ context.Context, sessionID string) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["RetrieveSession"]++
	s, ok := f.Sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	out := *s
	return &out, nil
}

func (f *FakeGateway) RetrieveSubscription(_ context.Context, subscriptionID string) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["RetrieveSubscription"]++
	if f.RetrieveSubscriptionErr != nil {
		return nil, f.RetrieveSubscriptionErr
	}
	sub, ok := f.Subscriptions[subscriptionID]
	if !ok {
		return nil, &GatewayError{Op: "retrieve subscription", Code: "resource_missing", StatusCode: 404, Message: "No such subscription"}
	}
	out := *sub
	return &out, nil
}

func (f *FakeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	f.mu.Lock()
	f.Calls["VerifyWebhook"]++
	secret := f.WebhookSecret
	f.mu.Unlock()
	return verifyEvent(payload, signatureHeader, secret, zerolog.Nop())
}

func (f *FakeGateway) OpenBillingPortal(_ context.Context, customerID, returnURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["OpenBillingPortal"]++
	f.Portals = append(f.Portals, customerID)
	return "https://billing.stripe.test/p/" + customerID + "?return=" + returnURL, nil
}

// CompleteSession marks a session complete and attaches a subscription that
// ends its period at periodEnd.
func (f *FakeGateway) CompleteSession(sessionID, subscriptionID string, periodEnd time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[sessionID]
	if !ok {
		return
	}
	s.Status = "complete"
	s.PaymentStatus = "paid"
	s.SubscriptionID = subscriptionID
	f.Subscriptions[subscriptionID] = &Subscription{
		ID:               subscriptionID,
		CustomerID:       s.CustomerID,
		RawStatus:        "active",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: periodEnd.UTC(),
		Metadata:         copyMetadata(s.Metadata),
	}
}

var _ Gateway = (*FakeGateway)(nil)

// SignTestEvent builds a Stripe event envelope around object and signs it
// with secret, returning the body and the Stripe-Signature header value.
func SignTestEvent(secret, eventID, eventType string, object any) ([]byte, string) {
	raw, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: raw, Secret: secret})
	return signed.Payload, signed.Header
}
