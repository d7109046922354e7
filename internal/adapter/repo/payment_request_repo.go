package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// PaymentRequestRepositoryPG is the Postgres payment request ledger.
type PaymentRequestRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPaymentRequestRepository creates a new PaymentRequestRepositoryPG.
func NewPaymentRequestRepository(sql infra.SQLExecutor) *PaymentRequestRepositoryPG {
	return &PaymentRequestRepositoryPG{sql: sql}
}

// GetOrCreateForProject inserts a "none" row unless the project already has
// one. An unpaid row takes the current amount; a paid row is never touched.
func (r *PaymentRequestRepositoryPG) GetOrCreateForProject(ctx context.Context, projectID, clientID string, amount domain.Money) (domain.UpsertResult[domain.PaymentRequest], error) {
	var res domain.UpsertResult[domain.PaymentRequest]
	if !validID(projectID) {
		return res, domain.ErrProjectNotFound
	}
	if !validID(clientID) {
		return res, domain.ErrUserNotFound
	}
	var inserted bool
	pr, err := scanPaymentRequest(r.sql.QueryRow(ctx, sqlinline.QUpsertPaymentRequestForProject, projectID, clientID, amount.SQL()), &inserted)
	if err == nil {
		res.Outcome = domain.OutcomeUpdated
		if inserted {
			res.Outcome = domain.OutcomeCreated
		}
		res.Row = *pr
		return res, nil
	}
	if !infra.IsNoRows(err) {
		return res, domain.Storage("upsert payment request", err)
	}
	existing, err := r.GetByProject(ctx, projectID)
	if err != nil {
		return res, err
	}
	res.Outcome = domain.OutcomeUnchanged
	res.Row = *existing
	return res, nil
}

// GetByID fetches a payment request by id.
func (r *PaymentRequestRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	return r.getOne(ctx, sqlinline.QSelectPaymentRequestByID, id)
}

// GetByProject fetches the payment request of a project.
func (r *PaymentRequestRepositoryPG) GetByProject(ctx context.Context, projectID string) (*domain.PaymentRequest, error) {
	return r.getOne(ctx, sqlinline.QSelectPaymentRequestByProject, projectID)
}

// MarkRequested advances a non-paid row to requested.
func (r *PaymentRequestRepositoryPG) MarkRequested(ctx context.Context, projectID, intentID string) (domain.UpsertResult[domain.PaymentRequest], error) {
	var res domain.UpsertResult[domain.PaymentRequest]
	if !validID(projectID) {
		return res, domain.ErrNotFound
	}
	pr, err := scanPaymentRequest(r.sql.QueryRow(ctx, sqlinline.QMarkPaymentRequestRequested, projectID, intentID))
	if err == nil {
		res.Outcome = domain.OutcomeUpdated
		res.Row = *pr
		return res, nil
	}
	if !infra.IsNoRows(err) {
		return res, domain.Storage("mark payment requested", err)
	}
	existing, err := r.GetByProject(ctx, projectID)
	if err != nil {
		return res, err
	}
	res.Outcome = domain.OutcomeUnchanged
	res.Row = *existing
	return res, nil
}

// MarkPaid performs the guarded update ... where payment_status <> 'paid'.
// Only the caller whose statement changed the row sees OutcomeUpdated.
func (r *PaymentRequestRepositoryPG) MarkPaid(ctx context.Context, id string, paidAt time.Time) (domain.UpsertResult[domain.PaymentRequest], error) {
	var res domain.UpsertResult[domain.PaymentRequest]
	if !validID(id) {
		return res, domain.ErrNotFound
	}
	pr, err := scanPaymentRequest(r.sql.QueryRow(ctx, sqlinline.QMarkPaymentRequestPaid, id, paidAt))
	if err == nil {
		res.Outcome = domain.OutcomeUpdated
		res.Row = *pr
		return res, nil
	}
	if !infra.IsNoRows(err) {
		return res, domain.Storage("mark payment paid", err)
	}
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return res, err
	}
	res.Outcome = domain.OutcomeUnchanged
	res.Row = *existing
	return res, nil
}

func (r *PaymentRequestRepositoryPG) getOne(ctx context.Context, query, id string) (*domain.PaymentRequest, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	pr, err := scanPaymentRequest(r.sql.QueryRow(ctx, query, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Storage("get payment request", err)
	}
	return pr, nil
}

// scanPaymentRequest reads the common payment request columns followed by
// any extra destinations the query returns.
func scanPaymentRequest(row pgx.Row, extra ...any) (*domain.PaymentRequest, error) {
	var (
		pr     domain.PaymentRequest
		amount string
	)
	dest := []any{&pr.ID, &pr.ProjectID, &pr.ClientID, &amount, &pr.Status,
		&pr.StripePaymentIntentID, &pr.PaidAt, &pr.CreatedAt, &pr.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	m, err := domain.ParseMoney(amount)
	if err != nil {
		return nil, err
	}
	pr.Amount = m
	return &pr, nil
}
