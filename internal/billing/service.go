// Package billing owns the subscription and payment lifecycle: checkout and
// finalize, one-off payment requests, invoice emission and the webhook
// reconciliation engine. All coordination happens through the ledgers in
// domain.Store; the package keeps no shared in-process state.
package billing

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	"agencydesk/internal/domain"
	"agencydesk/internal/notify"
	"agencydesk/internal/payments"
)

// SessionIssuer turns an authenticated user into a session token.
type SessionIssuer interface {
	Issue(user domain.User) (token string, expiresAt time.Time, err error)
}

// Options carries the configuration the service reads.
type Options struct {
	AppURL        string
	Currency      string
	PriceIDs      map[string]string
	TrialDays     int
	LoginTokenTTL time.Duration
	BcryptCost    int

	// FinalizeWindow bounds the age of a checkout session that may still
	// mint a login token.
	FinalizeWindow time.Duration

	// SweepResyncBackoff is the minimum gap between two sweeps of the same
	// subscription.
	SweepResyncBackoff time.Duration
}

// Service implements the billing operations on top of a Store and a Gateway.
type Service struct {
	store    domain.Store
	gateway  payments.Gateway
	sessions SessionIssuer
	notifier notify.Sink
	format   notify.Formatter
	metrics  *Metrics
	logger   zerolog.Logger
	opts     Options

	now      func() time.Time
	newToken func() (string, error)
}

// NewService wires the service. A nil notifier drops notifications and a nil
// metrics collector disables instrumentation.
func NewService(store domain.Store, gateway payments.Gateway, sessions SessionIssuer, notifier notify.Sink, metrics *Metrics, logger zerolog.Logger, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.LoginTokenTTL <= 0 {
		opts.LoginTokenTTL = 5 * time.Minute
	}
	if opts.TrialDays <= 0 {
		opts.TrialDays = 15
	}
	if opts.FinalizeWindow <= 0 {
		opts.FinalizeWindow = 24 * time.Hour
	}
	if opts.SweepResyncBackoff <= 0 {
		opts.SweepResyncBackoff = 6 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if notifier == nil {
		notifier = notify.Fanout{}
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		sessions: sessions,
		notifier: notifier,
		format:   notify.NewFormatter(opts.Currency, language.English),
		metrics:  metrics,
		logger:   logger.With().Str("component", "billing").Logger(),
		opts:     opts,
		now:      time.Now,
		newToken: randomToken,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// deliver sends msg after the state change committed. Failures are logged;
// the ledger is already consistent.
func (s *Service) deliver(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Str("user_id", msg.UserID).Str("title", msg.Title).Msg("notification failed")
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashLoginToken returns the stored form of a login token.
func HashLoginToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
