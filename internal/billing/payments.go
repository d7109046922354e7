package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agencydesk/internal/domain"
	"agencydesk/internal/payments"
)

// SendPaymentRequest opens (or re-sends) the payment request for a project
// and tells the client.
func (s *Service) SendPaymentRequest(ctx context.Context, adminID, projectID string) (*domain.PaymentRequest, error) {
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.CreatedBy != adminID {
		return nil, domain.ErrForbidden
	}
	if !project.Price.Positive() {
		return nil, domain.ErrInvalidAmount
	}
	created, err := s.store.PaymentRequests().GetOrCreateForProject(ctx, project.ID, project.ClientID, project.Price)
	if err != nil {
		return nil, err
	}
	if created.Row.Status == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}
	res, err := s.store.PaymentRequests().MarkRequested(ctx, project.ID, "")
	if err != nil {
		return nil, err
	}
	if res.Row.Status == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}

	email := ""
	if client, err := s.store.Users().GetByID(ctx, project.ClientID); err == nil {
		email = client.Email
	}
	s.deliver(ctx, s.format.PaymentRequested(project.ClientID, email, *project, res.Row.Amount))
	s.logger.Info().Str("project_id", project.ID).Str("payment_request_id", res.Row.ID).Msg("payment requested")
	return &res.Row, nil
}

// PaymentIntentResult is what the browser needs to confirm a card payment.
type PaymentIntentResult struct {
	PaymentRequestID string
	IntentID         string
	ClientSecret     string
	AmountMinor      int64
	Currency         string
}

// CreatePaymentIntent creates the processor intent for a requested project
// payment. The idempotency key pins one intent per request and amount.
func (s *Service) CreatePaymentIntent(ctx context.Context, caller domain.User, projectID string) (*PaymentIntentResult, error) {
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case domain.UserRoleClient:
		if project.ClientID != caller.ID {
			return nil, domain.ErrForbidden
		}
	case domain.UserRoleAdmin:
		if project.CreatedBy != caller.ID {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrForbidden
	}

	pr, err := s.store.PaymentRequests().GetByProject(ctx, project.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPaymentRequestMissing
		}
		return nil, err
	}
	if pr.Status == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}
	if !pr.Amount.Positive() {
		return nil, domain.ErrInvalidAmount
	}
	minor := pr.Amount.MinorUnits()

	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.PaymentIntentInput{
		AmountMinor:    minor,
		Currency:       s.opts.Currency,
		Metadata:       domain.NewPaymentMetadata(pr.ID, project.ID).Encode(),
		IdempotencyKey: fmt.Sprintf("payreq-%s-%d", pr.ID, minor),
	})
	if err != nil {
		return nil, err
	}
	res, err := s.store.PaymentRequests().MarkRequested(ctx, project.ID, intent.ID)
	if err != nil {
		return nil, err
	}
	if res.Row.Status == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}
	return &PaymentIntentResult{
		PaymentRequestID: pr.ID,
		IntentID:         intent.ID,
		ClientSecret:     intent.ClientSecret,
		AmountMinor:      minor,
		Currency:         s.opts.Currency,
	}, nil
}

// Settlement is the result of a mark-paid attempt.
type Settlement struct {
	Payment domain.PaymentRequest
	// Settled is true only for the call that moved the row to paid.
	Settled bool
	// Invoice is set when Settled and the project and client still exist.
	Invoice *domain.Invoice
}

// settlePayment is the only path that marks a payment request paid. The
// conditional update and the invoice insert share a transaction, and the
// invoice is emitted only when the update changed the row.
func (s *Service) settlePayment(ctx context.Context, paymentRequestID string) (*Settlement, error) {
	out := &Settlement{}
	paidAt := s.clock()
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		res, err := tx.PaymentRequests().MarkPaid(ctx, paymentRequestID, paidAt)
		if err != nil {
			return err
		}
		out.Payment = res.Row
		if !res.Changed() {
			return nil
		}
		out.Settled = true
		out.Invoice, err = s.emitInvoice(ctx, tx, res.Row)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Invoice != nil {
		s.metrics.invoice()
	}
	return out, nil
}

func (s *Service) emitInvoice(ctx context.Context, tx domain.Store, pr domain.PaymentRequest) (*domain.Invoice, error) {
	project, err := tx.Projects().GetByID(ctx, pr.ProjectID)
	if errors.Is(err, domain.ErrProjectNotFound) {
		s.logger.Warn().Str("payment_request_id", pr.ID).Msg("project gone, payment settled without invoice")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	client, err := tx.Users().GetByID(ctx, pr.ClientID)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Warn().Str("payment_request_id", pr.ID).Msg("client gone, payment settled without invoice")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	adminID := client.CreatedBy
	if adminID == "" {
		adminID = project.CreatedBy
	}
	paidAt := s.clock()
	if pr.PaidAt != nil {
		paidAt = *pr.PaidAt
	}
	res, err := tx.Invoices().Create(ctx, &domain.Invoice{
		InvoiceNumber:    invoiceNumber(paidAt),
		PaymentRequestID: pr.ID,
		ProjectID:        project.ID,
		ClientID:         client.ID,
		AdminID:          adminID,
		Amount:           pr.Amount,
		PaidAt:           paidAt,
	})
	if err != nil {
		return nil, err
	}
	return &res.Row, nil
}

func invoiceNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%d-%s", at.UnixMilli(), suffix)
}

// announceSettlement notifies the client and the owning admin once the
// settlement committed.
func (s *Service) announceSettlement(ctx context.Context, st *Settlement) {
	if st == nil || st.Invoice == nil {
		return
	}
	email := ""
	if client, err := s.store.Users().GetByID(ctx, st.Invoice.ClientID); err == nil {
		email = client.Email
	}
	s.deliver(ctx, s.format.PaymentReceived(st.Invoice.ClientID, email, *st.Invoice))
	if st.Invoice.AdminID != "" {
		s.deliver(ctx, s.format.InvoiceIssued(st.Invoice.AdminID, *st.Invoice))
	}
}

// ListInvoices returns the invoices visible to the user.
func (s *Service) ListInvoices(ctx context.Context, userID string) ([]domain.Invoice, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return s.store.Invoices().ListByAdmin(ctx, user.ID)
	}
	return s.store.Invoices().ListByClient(ctx, user.ID)
}
