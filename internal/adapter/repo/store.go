package repo

import (
	"context"

	"github.com/google/uuid"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
)

// Store implements domain.Store over an infra.SQLExecutor. When the executor
// supports transactions, WithinTx binds every repository to one pgx.Tx.
type Store struct {
	sql infra.SQLExecutor
}

// NewStore wires the Postgres repositories.
func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) Users() domain.UserRepository { return NewUserRepository(s.sql) }

func (s *Store) Subscriptions() domain.SubscriptionRepository {
	return NewSubscriptionRepository(s.sql)
}

func (s *Store) PaymentRequests() domain.PaymentRequestRepository {
	return NewPaymentRequestRepository(s.sql)
}

func (s *Store) Invoices() domain.InvoiceRepository { return NewInvoiceRepository(s.sql) }

func (s *Store) Projects() domain.ProjectRepository { return NewProjectRepository(s.sql) }

func (s *Store) Notifications() domain.NotificationRepository {
	return NewNotificationRepository(s.sql)
}

func (s *Store) WebhookEvents() domain.WebhookEventRepository {
	return NewWebhookEventRepository(s.sql)
}

func (s *Store) Checkouts() domain.CheckoutRepository { return NewCheckoutRepository(s.sql) }

// WithinTx runs fn in a transaction when the executor supports one. Errors
// from fn are returned as-is; begin or commit failures become StorageErrors.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	txr, ok := s.sql.(infra.TxExecutor)
	if !ok {
		return fn(s)
	}
	var fnErr error
	err := txr.InTx(ctx, func(tx infra.SQLExecutor) error {
		fnErr = fn(NewStore(tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return domain.Storage("tx", err)
	}
	return err
}

// validID guards uuid casts so identifiers coming from processor metadata
// resolve to not-found instead of a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ domain.Store = (*Store)(nil)
