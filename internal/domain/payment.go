package domain

import "time"

// PaymentStatus enumerates the lifecycle of a one-off project payment.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentRequested PaymentStatus = "requested"
	PaymentPaid      PaymentStatus = "paid"
)

// rank orders statuses so transitions can be checked for monotonicity.
func (s PaymentStatus) rank() int {
	switch s {
	case PaymentNone:
		return 0
	case PaymentRequested:
		return 1
	case PaymentPaid:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next is a forward (or
// idempotent, for requested) step. Paid is terminal.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	if s == PaymentPaid {
		return false
	}
	return next.rank() >= s.rank() && next.rank() > 0
}

// PaymentRequest tracks a single project's one-off charge. There is at most
// one per project.
type PaymentRequest struct {
	ID                    string
	ProjectID             string
	ClientID              string
	Amount                Money
	Status                PaymentStatus
	StripePaymentIntentID string
	PaidAt                *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UpsertOutcome tags whether a conditional write created, changed or merely
// matched a row.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// UpsertResult is returned by ledger writes so callers can branch on whether
// a transition actually happened.
type UpsertResult[T any] struct {
	Outcome UpsertOutcome
	Row     T
}

// Changed reports whether the write modified state.
func (r UpsertResult[T]) Changed() bool {
	return r.Outcome == OutcomeCreated || r.Outcome == OutcomeUpdated
}
