// Package memory is an in-process domain.Store with the same conditional
// write semantics as the Postgres ledgers. Transactions are serialized and
// rolled back from a snapshot.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agencydesk/internal/domain"
)

type webhookEvent struct {
	eventType string
	outcome   string
}

type state struct {
	users         map[string]domain.User
	emails        map[string]string
	subs          map[string]domain.Subscription
	payments      map[string]domain.PaymentRequest
	byProject     map[string]string
	invoices      map[string]domain.Invoice
	invoiceByPR   map[string]string
	projects      map[string]domain.Project
	notifications []domain.Notification
	events        map[string]webhookEvent
	synced        map[string]time.Time
	history       []domain.SubscriptionHistoryEntry
	finalized     map[string]string
}

func newState() *state {
	return &state{
		users:       map[string]domain.User{},
		emails:      map[string]string{},
		subs:        map[string]domain.Subscription{},
		payments:    map[string]domain.PaymentRequest{},
		byProject:   map[string]string{},
		invoices:    map[string]domain.Invoice{},
		invoiceByPR: map[string]string{},
		projects:    map[string]domain.Project{},
		events:      map[string]webhookEvent{},
		synced:      map[string]time.Time{},
		finalized:   map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.byProject {
		c.byProject[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.invoiceByPR {
		c.invoiceByPR[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	c.notifications = append([]domain.Notification(nil), s.notifications...)
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.synced {
		c.synced[k] = v
	}
	c.history = append([]domain.SubscriptionHistoryEntry(nil), s.history...)
	for k, v := range s.finalized {
		c.finalized[k] = v
	}
	return c
}

type shared struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	data     *state
	failures map[string]error
	now      func() time.Time
}

// Store implements domain.Store in memory.
type Store struct {
	sh   *shared
	inTx bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sh: &shared{data: newState(), failures: map[string]error{}, now: time.Now}}
}

// SetClock overrides the clock used for created_at/updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.now = now
}

// FailNext makes the next call of op return a StorageError wrapping err.
// Op names match the repository method, e.g. "invoices.Create".
func (s *Store) FailNext(op string, err error) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.failures[op] = err
}

// lock serializes the call against transactions and other calls. It returns
// the state and the unlock function.
func (s *Store) lock(op string) (*state, func(), error) {
	if !s.inTx {
		s.sh.txMu.Lock()
	}
	s.sh.mu.Lock()
	unlock := func() {
		s.sh.mu.Unlock()
		if !s.inTx {
			s.sh.txMu.Unlock()
		}
	}
	if err, ok := s.sh.failures[op]; ok {
		delete(s.sh.failures, op)
		unlock()
		return nil, nil, domain.Storage(op, err)
	}
	return s.sh.data, unlock, nil
}

func (s *Store) stamp() time.Time {
	return s.sh.now().UTC()
}

func (s *Store) Users() domain.UserRepository { return userRepo{s} }
func (s *Store) Subscriptions() domain.SubscriptionRepository { return subscriptionRepo{s} }
func (s *Store) PaymentRequests() domain.PaymentRequestRepository { return paymentRepo{s} }
func (s *Store) Invoices() domain.InvoiceRepository { return invoiceRepo{s} }
func (s *Store) Projects() domain.ProjectRepository { return projectRepo{s} }
func (s *Store) Notifications() domain.NotificationRepository { return notificationRepo{s} }
func (s *Store) WebhookEvents() domain.WebhookEventRepository { return eventRepo{s} }
func (s *Store) Checkouts() domain.CheckoutRepository { return checkoutRepo{s} }

// WithinTx serializes fn against every other call and restores the prior
// state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.sh.txMu.Lock()
	defer s.sh.txMu.Unlock()

	s.sh.mu.Lock()
	snapshot := s.sh.data.clone()
	s.sh.mu.Unlock()

	if err := fn(&Store{sh: s.sh, inTx: true}); err != nil {
		s.sh.mu.Lock()
		s.sh.data = snapshot
		s.sh.mu.Unlock()
		return err
	}
	return nil
}

// PutUser seeds a user and returns it with generated fields filled.
func (s *Store) PutUser(u domain.User) domain.User {
	st, unlock, _ := s.lock("")
	defer unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CurrentPlan == "" {
		u.CurrentPlan = domain.PlanFree
	}
	now := s.stamp()
	u.CreatedAt, u.UpdatedAt = now, now
	st.users[u.ID] = u
	st.emails[strings.ToLower(u.Email)] = u.ID
	return u
}

// PutProject seeds a project.
func (s *Store) PutProject(p domain.Project) domain.Project {
	st, unlock, _ := s.lock("")
	defer unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	st.projects[p.ID] = p
	return p
}

// Snapshot counts rows per table, for assertions that nothing changed.
type Snapshot struct {
	Users, Subscriptions, PaymentRequests, Invoices, Notifications, Events int
	Digest                                                                 string
}

// Snapshot returns row counts plus a digest of every mutable status field.
func (s *Store) Snapshot() Snapshot {
	st, unlock, _ := s.lock("")
	defer unlock()
	var parts []string
	for id, u := range st.users {
		parts = append(parts, id+":"+string(u.CurrentPlan)+":"+u.StripeSubscriptionID+":"+u.LoginTokenHash)
	}
	for id, sub := range st.subs {
		parts = append(parts, id+":"+string(sub.Status)+":"+sub.StripeSubscriptionID)
	}
	for id, pr := range st.payments {
		parts = append(parts, id+":"+string(pr.Status)+":"+pr.StripePaymentIntentID)
	}
	sort.Strings(parts)
	return Snapshot{
		Users:           len(st.users),
		Subscriptions:   len(st.subs),
		PaymentRequests: len(st.payments),
		Invoices:        len(st.invoices),
		Notifications:   len(st.notifications),
		Events:          len(st.events),
		Digest:          strings.Join(parts, "|"),
	}
}

var _ domain.Store = (*Store)(nil)
