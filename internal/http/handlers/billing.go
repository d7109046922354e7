package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"agencydesk/internal/domain"
)

type subscriptionDTO struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	TrialEnd         *time.Time `json:"trial_end,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

func (a *App) SubscriptionMe(w http.ResponseWriter, r *http.Request) {
	sub, err := a.Billing.CurrentSubscription(r.Context(), a.currentUserID(r))
	if errors.Is(err, domain.ErrNotFound) {
		a.json(w, http.StatusOK, map[string]any{"subscription": nil})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"subscription": subscriptionDTO{
		Plan:             string(sub.Plan),
		Status:           string(sub.Status),
		TrialEnd:         sub.TrialEnd,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}})
}

type historyEntryDTO struct {
	ID                   string     `json:"id"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	Outcome              string     `json:"outcome"`
	CreatedAt            time.Time  `json:"created_at"`
}

// SubscriptionHistory lists the caller's ledger changes. ?limit= caps the
// page size.
func (a *App) SubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := trimmed(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := a.Billing.SubscriptionHistory(r.Context(), a.caller(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]historyEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyEntryDTO{
			ID:                   e.ID,
			Plan:                 string(e.Plan),
			Status:               string(e.Status),
			StripeSubscriptionID: e.StripeSubscriptionID,
			CurrentPeriodEnd:     e.CurrentPeriodEnd,
			Outcome:              string(e.Outcome),
			CreatedAt:            e.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) BillingPortal(w http.ResponseWriter, r *http.Request) {
	if !requireRole(r, domain.UserRoleAdmin) {
		a.error(w, http.StatusForbidden, "forbidden", "admin only")
		return
	}
	portalURL, err := a.Billing.BillingPortal(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"portal_url": portalURL})
}

type projectRequest struct {
	ProjectID string `json:"project_id"`
}

type paymentRequestDTO struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	ClientID  string     `json:"client_id"`
	Amount    string     `json:"amount"`
	Status    string     `json:"status"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

func (a *App) SendPaymentRequest(w http.ResponseWriter, r *http.Request) {
	if !requireRole(r, domain.UserRoleAdmin) {
		a.error(w, http.StatusForbidden, "forbidden", "admin only")
		return
	}
	var req projectRequest
	if !a.decode(w, r, &req) {
		return
	}
	pr, err := a.Billing.SendPaymentRequest(r.Context(), a.currentUserID(r), trimmed(req.ProjectID))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, paymentRequestDTO{
		ID:        pr.ID,
		ProjectID: pr.ProjectID,
		ClientID:  pr.ClientID,
		Amount:    pr.Amount.StringFixed(2),
		Status:    string(pr.Status),
		PaidAt:    pr.PaidAt,
	})
}

func (a *App) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !a.decode(w, r, &req) {
		return
	}
	if trimmed(req.ProjectID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "project_id required")
		return
	}
	res, err := a.Billing.CreatePaymentIntent(r.Context(), a.caller(r), trimmed(req.ProjectID))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"client_secret":      res.ClientSecret,
		"payment_request_id": res.PaymentRequestID,
		"amount_minor":       res.AmountMinor,
		"currency":           res.Currency,
	})
}

type invoiceDTO struct {
	ID               string    `json:"id"`
	InvoiceNumber    string    `json:"invoice_number"`
	PaymentRequestID string    `json:"payment_request_id"`
	ProjectID        string    `json:"project_id"`
	ClientID         string    `json:"client_id"`
	Amount           string    `json:"amount"`
	PaidAt           time.Time `json:"paid_at"`
}

func (a *App) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := a.Billing.ListInvoices(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]invoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, invoiceDTO{
			ID:               inv.ID,
			InvoiceNumber:    inv.InvoiceNumber,
			PaymentRequestID: inv.PaymentRequestID,
			ProjectID:        inv.ProjectID,
			ClientID:         inv.ClientID,
			Amount:           inv.Amount.StringFixed(2),
			PaidAt:           inv.PaidAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
