package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"agencydesk/internal/billing"
	"agencydesk/internal/domain"
	"agencydesk/internal/middleware"
	"agencydesk/internal/payments"
)

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Billing          *billing.Service
	DB               Pinger
	Logger           zerolog.Logger
	AppURL           string
	WebhookBodyLimit int64
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) caller(r *http.Request) domain.User {
	ctx := r.Context()
	role := middleware.RoleFromContext(ctx)
	u := domain.User{ID: middleware.UserIDFromContext(ctx), Role: role}
	if role == domain.UserRoleClient {
		u.CreatedBy = middleware.AdminIDFromContext(ctx)
	}
	return u
}

// fail maps service errors to responses. Unknown errors are logged and
// reported as internal.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	a.error(w, status, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, payments.ErrSignatureInvalid):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrInvalidPlan),
		errors.Is(err, domain.ErrInvalidMetadata),
		errors.Is(err, domain.ErrPaymentRequestMissing),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrSubscriptionActive):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNoCustomer):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSessionIncomplete),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "conflict"
	case payments.IsGatewayError(err):
		return http.StatusBadGateway, "payment_gateway"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func requireRole(r *http.Request, role domain.UserRole) bool {
	return middleware.RoleFromContext(r.Context()) == role
}

func trimmed(s string) string { return strings.TrimSpace(s) }
