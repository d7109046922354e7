package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// SetStripeCustomerID stores customerID unless the user already has one
	// and returns the id that ended up on the row.
	SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error)
	// ApplyPlan copies the denormalized subscription fields onto the user.
	ApplyPlan(ctx context.Context, userID string, patch PlanPatch) error
	SetLoginToken(ctx context.Context, userID, tokenHash string, expiry time.Time) error
	// ConsumeLoginToken clears the token matching tokenHash in a single
	// conditional write and returns the user together with the expiry the
	// token carried. ErrTokenInvalid when no user holds the hash.
	ConsumeLoginToken(ctx context.Context, tokenHash string) (*User, time.Time, error)
	ClearExpiredLoginTokens(ctx context.Context, now time.Time) (int64, error)
}

// SubscriptionRepository is the subscription ledger. Rows are keyed by user
// and never deleted.
type SubscriptionRepository interface {
	UpsertByUser(ctx context.Context, userID string, patch SubscriptionPatch) (UpsertResult[Subscription], error)
	FindActiveOrTrial(ctx context.Context, userID string) (*Subscription, error)
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
	// ListStale returns active or past_due processor-backed subscriptions
	// whose period ended before the cutoff and that were not swept since
	// syncedBefore.
	ListStale(ctx context.Context, before, syncedBefore time.Time, limit int) ([]Subscription, error)
	// MarkSynced stamps the row as swept at the given time.
	MarkSynced(ctx context.Context, userID string, at time.Time) error
	AppendHistory(ctx context.Context, entry SubscriptionHistoryEntry) error
	// ListHistory returns the user's ledger changes, newest first.
	ListHistory(ctx context.Context, userID string, limit int) ([]SubscriptionHistoryEntry, error)
}

// CheckoutRepository remembers which checkout sessions already minted a
// login token.
type CheckoutRepository interface {
	// ClaimSession records sessionID for userID. It reports false when the
	// session was claimed before.
	ClaimSession(ctx context.Context, sessionID, userID string, at time.Time) (bool, error)
}

// PaymentRequestRepository is the payment request ledger, one row per project.
type PaymentRequestRepository interface {
	GetOrCreateForProject(ctx context.Context, projectID, clientID string, amount Money) (UpsertResult[PaymentRequest], error)
	GetByID(ctx context.Context, id string) (*PaymentRequest, error)
	GetByProject(ctx context.Context, projectID string) (*PaymentRequest, error)
	// MarkRequested moves none->requested and records intentID when set.
	// A paid row is left untouched and returned with OutcomeUnchanged.
	MarkRequested(ctx context.Context, projectID, intentID string) (UpsertResult[PaymentRequest], error)
	// MarkPaid is the guarded terminal transition. A row already paid is
	// returned unchanged.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (UpsertResult[PaymentRequest], error)
}

// InvoiceRepository persists invoices. Create is keyed on the payment request.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) (UpsertResult[Invoice], error)
	GetByPaymentRequest(ctx context.Context, paymentRequestID string) (*Invoice, error)
	CountByPaymentRequest(ctx context.Context, paymentRequestID string) (int, error)
	ListByAdmin(ctx context.Context, adminID string) ([]Invoice, error)
	ListByClient(ctx context.Context, clientID string) ([]Invoice, error)
}

// ProjectRepository reads projects owned by the CRUD surface.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*Project, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
}

// WebhookEventRepository records processed processor events.
type WebhookEventRepository interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType, outcome string) error
}

// Store groups the repositories used by the billing core. WithinTx runs fn
// against repositories bound to a single transaction; returning an error
// rolls every write back.
type Store interface {
	Users() UserRepository
	Subscriptions() SubscriptionRepository
	PaymentRequests() PaymentRequestRepository
	Invoices() InvoiceRepository
	Projects() ProjectRepository
	Notifications() NotificationRepository
	WebhookEvents() WebhookEventRepository
	Checkouts() CheckoutRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}
