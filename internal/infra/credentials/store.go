package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

const (
	ProviderStripeSecret  = "stripe_secret_key"
	ProviderStripeWebhook = "stripe_webhook_secret"
)

// Store reads processor credentials kept in integration_tokens. Environment
// values take precedence; the table is the fallback for rotated keys.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) StripeSecretKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderStripeSecret)
}

func (s *Store) StripeWebhookSecret(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderStripeWebhook)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetStripeSecretKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "sk_") && !strings.HasPrefix(key, "rk_") {
		return errors.New("stripe secret key must start with sk_ or rk_")
	}
	return s.upsert(ctx, ProviderStripeSecret, key, map[string]any{"mode": keyMode(key)})
}

func (s *Store) SetStripeWebhookSecret(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, "whsec_") {
		return errors.New("stripe webhook secret must start with whsec_")
	}
	return s.upsert(ctx, ProviderStripeWebhook, secret, nil)
}

// Resolve returns envValue when set, otherwise the stored token for provider.
func (s *Store) Resolve(ctx context.Context, envValue, provider string) (string, error) {
	if v := strings.TrimSpace(envValue); v != "" {
		return v, nil
	}
	token, err := s.Token(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", provider, err)
	}
	return token, nil
}

func keyMode(key string) string {
	if strings.Contains(key, "_live_") {
		return "live"
	}
	return "test"
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
