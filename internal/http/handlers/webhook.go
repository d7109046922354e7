package handlers

import (
	"errors"
	"io"
	"net/http"

	"agencydesk/internal/payments"
)

// StripeWebhook answers 200 for applied or safely ignored events, 400 for
// signature failures and 500 when the processor should redeliver.
func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	limit := a.WebhookBodyLimit
	if limit <= 0 {
		limit = 65536
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	res, err := a.Billing.HandleEvent(r.Context(), body, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrSignatureInvalid):
		a.error(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
	case err != nil:
		a.Logger.Error().Err(err).Str("event_id", res.EventID).Str("event_type", res.Type).Msg("webhook will be redelivered")
		a.error(w, http.StatusInternalServerError, "internal", "processing failed")
	default:
		a.json(w, http.StatusOK, map[string]any{"received": true, "outcome": res.Outcome})
	}
}
