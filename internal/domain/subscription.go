package domain

import (
	"fmt"
	"strings"
	"time"
)

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// ParsePlan normalizes a plan name and rejects unknown values.
func ParsePlan(v string) (Plan, error) {
	switch p := Plan(strings.ToLower(strings.TrimSpace(v))); p {
	case PlanFree, PlanPro, PlanEnterprise:
		return p, nil
	default:
		return "", ErrInvalidPlan
	}
}

// Paid reports whether the plan is billed through the payment processor.
func (p Plan) Paid() bool {
	return p == PlanPro || p == PlanEnterprise
}

// SubscriptionStatus enumerates subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// ParseSubscriptionStatus validates an operator supplied status.
func ParseSubscriptionStatus(v string) (SubscriptionStatus, error) {
	switch s := SubscriptionStatus(strings.ToLower(strings.TrimSpace(v))); s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown subscription status %q", ErrInvalidInput, v)
	}
}

// Live reports whether the status grants access to the product.
func (s SubscriptionStatus) Live() bool {
	return s == SubscriptionTrial || s == SubscriptionActive
}

// CanTransition reports whether the ledger may move from s to next for the
// same processor subscription. Canceled is terminal; active and past_due may
// cycle while renewals are retried.
func (s SubscriptionStatus) CanTransition(next SubscriptionStatus) bool {
	switch s {
	case "", SubscriptionTrial:
		return true
	case SubscriptionActive, SubscriptionPastDue:
		return next != SubscriptionTrial
	case SubscriptionCanceled:
		return next == SubscriptionCanceled
	default:
		return false
	}
}

// ReplaceableBy reports whether a row tracking one processor subscription
// may be taken over by a different one arriving in status next. A live row
// is never displaced, and a row for an old subscription never goes back to
// canceled because of a late event about another id.
func (s SubscriptionStatus) ReplaceableBy(next SubscriptionStatus) bool {
	switch s {
	case "", SubscriptionCanceled:
		return next != SubscriptionCanceled
	case SubscriptionTrial, SubscriptionPastDue:
		return next.Live()
	default:
		return false
	}
}

// Subscription is the ledger row for a tenant's plan. There is one row per
// admin user; lifecycle is expressed through Status, rows are never deleted.
type Subscription struct {
	ID                   string
	UserID               string
	Plan                 Plan
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               SubscriptionStatus
	TrialEnd             *time.Time
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SubscriptionHistoryEntry is one applied change to the ledger row.
type SubscriptionHistoryEntry struct {
	ID                   string
	UserID               string
	Plan                 Plan
	Status               SubscriptionStatus
	StripeSubscriptionID string
	CurrentPeriodEnd     *time.Time
	Outcome              UpsertOutcome
	CreatedAt            time.Time
}

// HistoryEntry snapshots the row after an upsert that changed it.
func (s Subscription) HistoryEntry(outcome UpsertOutcome) SubscriptionHistoryEntry {
	return SubscriptionHistoryEntry{
		UserID:               s.UserID,
		Plan:                 s.Plan,
		Status:               s.Status,
		StripeSubscriptionID: s.StripeSubscriptionID,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		Outcome:              outcome,
	}
}

// SubscriptionPatch is applied by SubscriptionRepository.UpsertByUser. Empty
// fields keep the stored value, except Status which is always written.
type SubscriptionPatch struct {
	Plan                 Plan
	Status               SubscriptionStatus
	StripeSubscriptionID string
	StripeCustomerID     string
	TrialEnd             *time.Time
	CurrentPeriodEnd     *time.Time
	// ClearTrial drops trial_end once a paid plan activates.
	ClearTrial bool
}

// Allowed reports whether the patch may be written over s. Patches for the
// stored processor subscription follow CanTransition; patches naming another
// subscription follow ReplaceableBy.
func (p SubscriptionPatch) Allowed(s Subscription) bool {
	switch {
	case s.Status == "":
		return true
	case p.StripeSubscriptionID == "" || p.StripeSubscriptionID == s.StripeSubscriptionID:
		return s.Status.CanTransition(p.Status)
	case s.StripeSubscriptionID == "":
		return s.Status.CanTransition(p.Status) || s.Status.ReplaceableBy(p.Status)
	default:
		return s.Status.ReplaceableBy(p.Status)
	}
}

// Apply merges the patch into a copy of s following the upsert rules. The
// returned bool is false when Allowed refuses the write.
func (p SubscriptionPatch) Apply(s Subscription) (Subscription, bool) {
	if !p.Allowed(s) {
		return s, false
	}
	if p.Plan != "" {
		s.Plan = p.Plan
	}
	s.Status = p.Status
	if p.StripeSubscriptionID != "" {
		s.StripeSubscriptionID = p.StripeSubscriptionID
	}
	if p.StripeCustomerID != "" {
		s.StripeCustomerID = p.StripeCustomerID
	}
	if p.TrialEnd != nil {
		s.TrialEnd = p.TrialEnd
	}
	if p.ClearTrial {
		s.TrialEnd = nil
	}
	if p.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = p.CurrentPeriodEnd
	}
	return s, true
}
