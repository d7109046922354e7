package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleClient UserRole = "client"
)

// User represents an account within the platform. Admins are tenants owning
// clients, projects and a subscription; clients belong to the admin that
// created them.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedBy    string
	IsActive     bool

	// Billing fields denormalized from the subscription ledger. Only the
	// reconciliation engine and the finalize flow write them.
	StripeCustomerID             string
	StripeSubscriptionID         string
	CurrentPlan                  Plan
	SubscriptionCurrentPeriodEnd *time.Time

	LoginTokenHash   string
	LoginTokenExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user is an agency owner.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// AdminID returns the tenant the user belongs to.
func (u User) AdminID() string {
	if u.Role == UserRoleAdmin {
		return u.ID
	}
	return u.CreatedBy
}

// PlanPatch carries the denormalized subscription fields copied onto a user.
type PlanPatch struct {
	Plan                 Plan
	StripeSubscriptionID string
	CurrentPeriodEnd     *time.Time
}
