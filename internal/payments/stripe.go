package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"agencydesk/internal/domain"
)

// StripeConfig configures the Stripe gateway. BaseURL and HTTPClient are
// only set when pointing the SDK at a fake API.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        zerolog.Logger
}

// StripeGateway implements Gateway on stripe-go. It owns its own client.API
// instead of the package-level stripe.Key.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        zerolog.Logger
}

// NewStripeGateway builds the gateway once at startup.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	backendCfg := &stripe.BackendConfig{
		LeveledLogger:     zerologLeveled{logger: cfg.Logger},
		MaxNetworkRetries: stripe.Int64(2),
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
		backendCfg.MaxNetworkRetries = stripe.Int64(0)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	api := client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeGateway{
		api:           api,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        cfg.Logger,
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", gatewayErr("create customer", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(in.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: copyMetadata(in.Metadata),
		},
		Metadata: copyMetadata(in.Metadata),
	}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, gatewayErr("create checkout session", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: copyMetadata(in.Metadata),
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, gatewayErr("create payment intent", err)
	}
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}, nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrSessionNotFound
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, gatewayErr("retrieve checkout session", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, gatewayErr("retrieve subscription", err)
	}
	out := &Subscription{
		ID:        sub.ID,
		RawStatus: string(sub.Status),
		Status:    MapSubscriptionStatus(string(sub.Status)),
		Metadata:  sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	return out, nil
}

func (g *StripeGateway) OpenBillingPortal(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	ps, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", gatewayErr("open billing portal", err)
	}
	return ps.URL, nil
}

// VerifyWebhook verifies the Stripe-Signature header and only then decodes
// the event object for the types the engine handles.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if g.webhookSecret == "" {
		g.logger.Error().Msg("stripe webhook secret is not configured")
	}
	return verifyEvent(payload, signatureHeader, g.webhookSecret, g.logger)
}

func verifyEvent(payload []byte, signatureHeader, secret string, logger zerolog.Logger) (*Event, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret not configured", ErrSignatureInvalid)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, fmt.Errorf("%w: missing header", ErrSignatureInvalid)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}
	if err := decodeEventObject(out, evt.Data.Raw); err != nil {
		logger.Warn().Err(err).Str("event_id", evt.ID).Str("type", out.Type).Msg("stripe event object undecodable")
	}
	return out, nil
}

type stripeEventIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type stripeEventSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	Customer      json.RawMessage   `json:"customer"`
	Subscription  json.RawMessage   `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeEventSubscription struct {
	ID       string          `json:"id"`
	Customer json.RawMessage `json:"customer"`
	Status   string          `json:"status"`
	Items    struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

func decodeEventObject(evt *Event, raw json.RawMessage) error {
	switch evt.Type {
	case EventPaymentIntentSucceeded:
		var pi stripeEventIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return fmt.Errorf("decode payment_intent: %w", err)
		}
		evt.PaymentIntent = &PaymentIntent{ID: pi.ID, AmountMinor: pi.Amount, Currency: pi.Currency, Metadata: pi.Metadata}
	case EventCheckoutSessionCompleted:
		var s stripeEventSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		evt.CheckoutSession = &CheckoutSession{
			ID:             s.ID,
			Status:         s.Status,
			PaymentStatus:  s.PaymentStatus,
			SubscriptionID: expandableID(s.Subscription),
			CustomerID:     expandableID(s.Customer),
			Metadata:       s.Metadata,
		}
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var s stripeEventSubscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		sub := &Subscription{
			ID:         s.ID,
			CustomerID: expandableID(s.Customer),
			RawStatus:  s.Status,
			Status:     MapSubscriptionStatus(s.Status),
			Metadata:   s.Metadata,
		}
		if len(s.Items.Data) > 0 && s.Items.Data[0].CurrentPeriodEnd > 0 {
			sub.CurrentPeriodEnd = time.Unix(s.Items.Data[0].CurrentPeriodEnd, 0).UTC()
		}
		evt.Subscription = sub
	}
	return nil
}

// expandableID reads a field that is either an id string or an expanded
// object carrying "id".
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func fromStripeSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.Created > 0 {
		out.CreatedAt = time.Unix(s.Created, 0).UTC()
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func copyMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func isResourceMissing(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound
}

func gatewayErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &GatewayError{Op: op, Code: string(se.Code), StatusCode: se.HTTPStatusCode, Message: se.Msg, Err: err}
	}
	return &GatewayError{Op: op, Message: err.Error(), Err: err}
}

// zerologLeveled routes SDK logs through the service logger.
type zerologLeveled struct {
	logger zerolog.Logger
}

func (l zerologLeveled) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l zerologLeveled) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l zerologLeveled) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l zerologLeveled) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }

var _ Gateway = (*StripeGateway)(nil)
