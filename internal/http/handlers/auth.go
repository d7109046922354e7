package handlers

import (
	"net/http"
	"net/url"
	"time"

	"agencydesk/internal/billing"
	"agencydesk/internal/domain"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userDTO struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	AdminID string `json:"admin_id"`
	Plan    string `json:"plan"`
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Role:    string(u.Role),
		AdminID: u.AdminID(),
		Plan:    string(u.CurrentPlan),
	}
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.Billing.Register(r.Context(), billing.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"user": toUserDTO(*u)})
}

type checkoutRequest struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

func (a *App) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	if trimmed(req.UserID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}
	res, err := a.Billing.CreateCheckout(r.Context(), trimmed(req.UserID), req.Plan)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"checkout_url": res.URL, "session_id": res.SessionID})
}

type finalizeRequest struct {
	SessionID string `json:"session_id"`
}

type finalizeResponse struct {
	LoginToken string    `json:"login_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (a *App) Finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Billing.Finalize(r.Context(), req.SessionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, finalizeResponse{LoginToken: res.Token, ExpiresAt: res.ExpiresAt})
}

// CheckoutReturn is the processor's success redirect target. Any failure
// sends the browser back to the login page without a token.
func (a *App) CheckoutReturn(w http.ResponseWriter, r *http.Request) {
	res, err := a.Billing.Finalize(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			a.Logger.Error().Err(err).Msg("checkout return failed")
		}
		http.Redirect(w, r, a.AppURL+"/auth/login?error="+url.QueryEscape(code), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, a.AppURL+"/auth/token-login?token="+url.QueryEscape(res.Token), http.StatusSeeOther)
}

type tokenLoginRequest struct {
	Token string `json:"token"`
}

type tokenLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

func (a *App) TokenLogin(w http.ResponseWriter, r *http.Request) {
	var req tokenLoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Billing.RedeemLoginToken(r.Context(), req.Token)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, tokenLoginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: toUserDTO(res.User)})
}
