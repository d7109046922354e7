package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// InvoiceRepositoryPG persists invoices.
type InvoiceRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewInvoiceRepository creates a new InvoiceRepositoryPG.
func NewInvoiceRepository(sql infra.SQLExecutor) *InvoiceRepositoryPG {
	return &InvoiceRepositoryPG{sql: sql}
}

// Create inserts the invoice unless one already references the payment
// request, in which case the existing invoice is returned unchanged.
func (r *InvoiceRepositoryPG) Create(ctx context.Context, inv *domain.Invoice) (domain.UpsertResult[domain.Invoice], error) {
	var res domain.UpsertResult[domain.Invoice]
	row := r.sql.QueryRow(ctx, sqlinline.QInsertInvoice,
		inv.InvoiceNumber,
		inv.PaymentRequestID,
		inv.ProjectID,
		inv.ClientID,
		inv.AdminID,
		inv.Amount.SQL(),
		inv.PaidAt,
	)
	created, err := scanInvoice(row)
	if err == nil {
		res.Outcome = domain.OutcomeCreated
		res.Row = *created
		return res, nil
	}
	if !infra.IsNoRows(err) {
		return res, domain.Storage("insert invoice", err)
	}
	existing, err := r.GetByPaymentRequest(ctx, inv.PaymentRequestID)
	if err != nil {
		return res, err
	}
	res.Outcome = domain.OutcomeUnchanged
	res.Row = *existing
	return res, nil
}

// GetByPaymentRequest returns the invoice emitted for a payment request.
func (r *InvoiceRepositoryPG) GetByPaymentRequest(ctx context.Context, paymentRequestID string) (*domain.Invoice, error) {
	if !validID(paymentRequestID) {
		return nil, domain.ErrNotFound
	}
	inv, err := scanInvoice(r.sql.QueryRow(ctx, sqlinline.QSelectInvoiceByPaymentRequest, paymentRequestID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Storage("get invoice", err)
	}
	return inv, nil
}

// CountByPaymentRequest counts invoices referencing a payment request.
func (r *InvoiceRepositoryPG) CountByPaymentRequest(ctx context.Context, paymentRequestID string) (int, error) {
	if !validID(paymentRequestID) {
		return 0, nil
	}
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountInvoicesByPaymentRequest, paymentRequestID).Scan(&n); err != nil {
		return 0, domain.Storage("count invoices", err)
	}
	return n, nil
}

// ListByAdmin lists a tenant's invoices, newest first.
func (r *InvoiceRepositoryPG) ListByAdmin(ctx context.Context, adminID string) ([]domain.Invoice, error) {
	return r.list(ctx, sqlinline.QListInvoicesByAdmin, adminID)
}

// ListByClient lists a client's invoices, newest first.
func (r *InvoiceRepositoryPG) ListByClient(ctx context.Context, clientID string) ([]domain.Invoice, error) {
	return r.list(ctx, sqlinline.QListInvoicesByClient, clientID)
}

func (r *InvoiceRepositoryPG) list(ctx context.Context, query, ownerID string) ([]domain.Invoice, error) {
	if !validID(ownerID) {
		return []domain.Invoice{}, nil
	}
	rows, err := r.sql.Query(ctx, query, ownerID)
	if err != nil {
		return nil, domain.Storage("list invoices", err)
	}
	defer rows.Close()

	out := make([]domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, domain.Storage("scan invoice", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list invoices", err)
	}
	return out, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv    domain.Invoice
		amount string
	)
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PaymentRequestID, &inv.ProjectID, &inv.ClientID,
		&inv.AdminID, &amount, &inv.PaidAt, &inv.CreatedAt); err != nil {
		return nil, err
	}
	m, err := domain.ParseMoney(amount)
	if err != nil {
		return nil, err
	}
	inv.Amount = m
	return &inv, nil
}
