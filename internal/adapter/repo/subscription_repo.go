package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// SubscriptionRepositoryPG is the Postgres subscription ledger.
type SubscriptionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSubscriptionRepository creates a new SubscriptionRepositoryPG.
func NewSubscriptionRepository(sql infra.SQLExecutor) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{sql: sql}
}

// UpsertByUser applies patch with a single insert .. on conflict (user_id).
// The conflict branch only fires for allowed transitions; a refused one
// returns the stored row with OutcomeUnchanged.
func (r *SubscriptionRepositoryPG) UpsertByUser(ctx context.Context, userID string, patch domain.SubscriptionPatch) (domain.UpsertResult[domain.Subscription], error) {
	var res domain.UpsertResult[domain.Subscription]
	if !validID(userID) {
		return res, domain.ErrUserNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertSubscription,
		userID,
		string(patch.Plan),
		string(patch.Status),
		patch.StripeSubscriptionID,
		patch.StripeCustomerID,
		patch.TrialEnd,
		patch.CurrentPeriodEnd,
		patch.ClearTrial,
	)
	var (
		sub      domain.Subscription
		inserted bool
	)
	dest := append(subscriptionDest(&sub), &inserted)
	err := row.Scan(dest...)
	switch {
	case err == nil:
		res.Row = sub
		res.Outcome = domain.OutcomeUpdated
		if inserted {
			res.Outcome = domain.OutcomeCreated
		}
		return res, nil
	case infra.IsNoRows(err):
		current, getErr := r.GetByUser(ctx, userID)
		if getErr != nil {
			return res, getErr
		}
		res.Row = *current
		res.Outcome = domain.OutcomeUnchanged
		return res, nil
	default:
		return res, domain.Storage("upsert subscription", err)
	}
}

// GetByUser returns the ledger row regardless of status.
func (r *SubscriptionRepositoryPG) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	return r.getOne(ctx, sqlinline.QSelectSubscriptionByUser, userID)
}

// FindActiveOrTrial returns the live row or domain.ErrNotFound.
func (r *SubscriptionRepositoryPG) FindActiveOrTrial(ctx context.Context, userID string) (*domain.Subscription, error) {
	return r.getOne(ctx, sqlinline.QSelectLiveSubscriptionByUser, userID)
}

// ListStale lists processor-backed rows past their period end that were not
// swept since syncedBefore.
func (r *SubscriptionRepositoryPG) ListStale(ctx context.Context, before, syncedBefore time.Time, limit int) ([]domain.Subscription, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectStaleSubscriptions, before, syncedBefore, limit)
	if err != nil {
		return nil, domain.Storage("list stale subscriptions", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(subscriptionDest(&s)...); err != nil {
			return nil, domain.Storage("scan subscription", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list stale subscriptions", err)
	}
	return out, nil
}

func (r *SubscriptionRepositoryPG) MarkSynced(ctx context.Context, userID string, at time.Time) error {
	if !validID(userID) {
		return nil
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QMarkSubscriptionSynced, userID, at); err != nil {
		return domain.Storage("mark subscription synced", err)
	}
	return nil
}

func (r *SubscriptionRepositoryPG) AppendHistory(ctx context.Context, entry domain.SubscriptionHistoryEntry) error {
	if !validID(entry.UserID) {
		return domain.ErrUserNotFound
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertSubscriptionHistory,
		entry.UserID,
		string(entry.Plan),
		string(entry.Status),
		entry.StripeSubscriptionID,
		entry.CurrentPeriodEnd,
		string(entry.Outcome),
	)
	if err != nil {
		return domain.Storage("append subscription history", err)
	}
	return nil
}

// ListHistory returns the newest ledger changes first.
func (r *SubscriptionRepositoryPG) ListHistory(ctx context.Context, userID string, limit int) ([]domain.SubscriptionHistoryEntry, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectSubscriptionHistory, userID, limit)
	if err != nil {
		return nil, domain.Storage("list subscription history", err)
	}
	defer rows.Close()

	var out []domain.SubscriptionHistoryEntry
	for rows.Next() {
		var e domain.SubscriptionHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Plan, &e.Status, &e.StripeSubscriptionID,
			&e.CurrentPeriodEnd, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, domain.Storage("scan subscription history", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list subscription history", err)
	}
	return out, nil
}

func (r *SubscriptionRepositoryPG) getOne(ctx context.Context, query, userID string) (*domain.Subscription, error) {
	if !validID(userID) {
		return nil, domain.ErrNotFound
	}
	s, err := scanSubscription(r.sql.QueryRow(ctx, query, userID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Storage("get subscription", err)
	}
	return s, nil
}

func subscriptionDest(s *domain.Subscription) []any {
	return []any{
		&s.ID, &s.UserID, &s.Plan, &s.StripeSubscriptionID, &s.StripeCustomerID, &s.Status,
		&s.TrialEnd, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	}
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := row.Scan(subscriptionDest(&s)...); err != nil {
		return nil, err
	}
	return &s, nil
}
