package billing

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"agencydesk/internal/domain"
	"agencydesk/internal/payments"
)

// RegisterInput is a new agency owner signing up.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates an admin account and opens its trial subscription in a
// single transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email invalid", domain.ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	trialEnd := s.clock().AddDate(0, 0, s.opts.TrialDays)
	var created *domain.User
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		u, err := tx.Users().Create(ctx, &domain.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Role:         domain.UserRoleAdmin,
			IsActive:     true,
			CurrentPlan:  domain.PlanFree,
		})
		if err != nil {
			return err
		}
		trial, err := tx.Subscriptions().UpsertByUser(ctx, u.ID, domain.SubscriptionPatch{
			Plan:     domain.PlanFree,
			Status:   domain.SubscriptionTrial,
			TrialEnd: &trialEnd,
		})
		if err != nil {
			return err
		}
		created = u
		return tx.Subscriptions().AppendHistory(ctx, trial.Row.HistoryEntry(trial.Outcome))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", created.ID).Time("trial_end", trialEnd).Msg("account registered")
	return created, nil
}

// CheckoutResult is the hosted checkout the browser is sent to.
type CheckoutResult struct {
	SessionID string
	URL       string
}

// CreateCheckout opens a hosted subscription checkout for a paid plan.
func (s *Service) CreateCheckout(ctx context.Context, userID, planName string) (*CheckoutResult, error) {
	plan, err := domain.ParsePlan(planName)
	if err != nil {
		return nil, err
	}
	if !plan.Paid() {
		return nil, fmt.Errorf("%w: %s is not billed", domain.ErrInvalidPlan, plan)
	}
	priceID := s.opts.PriceIDs[string(plan)]
	if priceID == "" {
		return nil, fmt.Errorf("%w: no price configured for %s", domain.ErrInvalidPlan, plan)
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.store.Subscriptions().FindActiveOrTrial(ctx, user.ID)
	switch {
	case err == nil && sub.Status == domain.SubscriptionActive:
		return nil, domain.ErrSubscriptionActive
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		created, err := s.gateway.CreateCustomer(ctx, user.Email, user.ID)
		if err != nil {
			return nil, err
		}
		// A concurrent checkout may have stored its customer first.
		customerID, err = s.store.Users().SetStripeCustomerID(ctx, user.ID, created)
		if err != nil {
			return nil, err
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutSessionInput{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.opts.AppURL + "/stripe/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.opts.AppURL + "/auth/register",
		Metadata:   domain.NewCheckoutMetadata(user.ID, plan).Encode(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("plan", string(plan)).Str("session_id", session.ID).Msg("checkout created")
	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// FinalizeResult carries the one-time login token minted for a completed
// checkout.
type FinalizeResult struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Finalize reconciles a completed checkout from the browser redirect and
// mints a single-use login token. It races the webhook for the same session;
// both paths upsert the same processor-authoritative values. A session mints
// at most one token, and only within FinalizeWindow of its creation.
func (s *Service) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	session, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired() {
		return nil, fmt.Errorf("%w: %s expired", domain.ErrSessionNotFound, sessionID)
	}
	if !session.Complete() {
		return nil, domain.ErrSessionIncomplete
	}
	md, err := domain.DecodeCheckoutMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByID(ctx, md.UserID)
	if err != nil {
		return nil, err
	}
	if session.SubscriptionID != "" {
		active := domain.SubscriptionActive
		if _, err := s.syncSubscription(ctx, user.ID, md.Plan, session.SubscriptionID, session.CustomerID, &active); err != nil {
			return nil, err
		}
	}

	now := s.clock()
	if !session.CreatedAt.IsZero() && now.Sub(session.CreatedAt) > s.opts.FinalizeWindow {
		s.metrics.loginToken("refused")
		return nil, fmt.Errorf("%w: %s is too old to finalize", domain.ErrSessionNotFound, sessionID)
	}
	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate login token: %w", err)
	}
	expiresAt := now.Add(s.opts.LoginTokenTTL)
	err = s.store.WithinTx(ctx, func(tx domain.Store) error {
		claimed, err := tx.Checkouts().ClaimSession(ctx, session.ID, user.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: %s already finalized", domain.ErrSessionNotFound, sessionID)
		}
		return tx.Users().SetLoginToken(ctx, user.ID, HashLoginToken(token), expiresAt)
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.metrics.loginToken("refused")
		}
		return nil, err
	}
	s.metrics.loginToken("issued")
	s.logger.Info().Str("user_id", user.ID).Str("session_id", sessionID).Msg("checkout finalized")
	return &FinalizeResult{UserID: user.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// LoginResult is an authenticated session obtained from a login token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// RedeemLoginToken consumes a one-time token and issues a session. The
// token is cleared by the same write that matches it, so it can be redeemed
// at most once.
func (s *Service) RedeemLoginToken(ctx context.Context, token string) (*LoginResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}
	user, expiry, err := s.store.Users().ConsumeLoginToken(ctx, HashLoginToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			s.metrics.loginToken("rejected")
		}
		return nil, err
	}
	if expiry.IsZero() || !s.clock().Before(expiry) {
		s.metrics.loginToken("expired")
		return nil, fmt.Errorf("%w: expired", domain.ErrTokenInvalid)
	}
	if !user.IsActive {
		s.metrics.loginToken("rejected")
		return nil, fmt.Errorf("%w: account disabled", domain.ErrTokenInvalid)
	}
	session, expiresAt, err := s.sessions.Issue(*user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	s.metrics.loginToken("redeemed")
	return &LoginResult{Token: session, ExpiresAt: expiresAt, User: *user}, nil
}
