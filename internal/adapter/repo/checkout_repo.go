package repo

import (
	"context"
	"time"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// CheckoutRepositoryPG records finalized checkout sessions.
type CheckoutRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCheckoutRepository creates a new CheckoutRepositoryPG.
func NewCheckoutRepository(sql infra.SQLExecutor) *CheckoutRepositoryPG {
	return &CheckoutRepositoryPG{sql: sql}
}

// ClaimSession inserts the session once; the conflict branch affects no
// rows, which is reported as an earlier claim.
func (r *CheckoutRepositoryPG) ClaimSession(ctx context.Context, sessionID, userID string, at time.Time) (bool, error) {
	if sessionID == "" || !validID(userID) {
		return false, domain.ErrSessionNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QClaimCheckoutSession, sessionID, userID, at)
	if err != nil {
		return false, domain.Storage("claim checkout session", err)
	}
	return tag.RowsAffected() == 1, nil
}
