package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"agencydesk/internal/domain"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	st, unlock, err := r.s.lock("users.Create")
	if err != nil {
		return nil, err
	}
	defer unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := st.emails[email]; taken {
		return nil, domain.ErrEmailTaken
	}
	out := *u
	out.ID = uuid.NewString()
	out.Email = email
	out.IsActive = true
	out.CurrentPlan = domain.PlanFree
	now := r.s.stamp()
	out.CreatedAt, out.UpdatedAt = now, now
	st.users[out.ID] = out
	st.emails[email] = out.ID
	return &out, nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	st, unlock, err := r.s.lock("users.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()
	u, ok := st.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	st, unlock, err := r.s.lock("users.GetByEmail")
	if err != nil {
		return nil, err
	}
	defer unlock()
	id, ok := st.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := st.users[id]
	return &u, nil
}

func (r userRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	st, unlock, err := r.s.lock("users.SetStripeCustomerID")
	if err != nil {
		return "", err
	}
	defer unlock()
	u, ok := st.users[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	if u.StripeCustomerID == "" {
		u.StripeCustomerID = customerID
		u.UpdatedAt = r.s.stamp()
		st.users[userID] = u
	}
	return u.StripeCustomerID, nil
}

func (r userRepo) ApplyPlan(ctx context.Context, userID string, patch domain.PlanPatch) error {
	st, unlock, err := r.s.lock("users.ApplyPlan")
	if err != nil {
		return err
	}
	defer unlock()
	u, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if patch.Plan != "" {
		u.CurrentPlan = patch.Plan
	}
	if patch.StripeSubscriptionID != "" {
		u.StripeSubscriptionID = patch.StripeSubscriptionID
	}
	if patch.CurrentPeriodEnd != nil {
		end := *patch.CurrentPeriodEnd
		u.SubscriptionCurrentPeriodEnd = &end
	}
	u.UpdatedAt = r.s.stamp()
	st.users[userID] = u
	return nil
}

func (r userRepo) SetLoginToken(ctx context.Context, userID, tokenHash string, expiry time.Time) error {
	st, unlock, err := r.s.lock("users.SetLoginToken")
	if err != nil {
		return err
	}
	defer unlock()
	u, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LoginTokenHash = tokenHash
	u.LoginTokenExpiry = &expiry
	u.UpdatedAt = r.s.stamp()
	st.users[userID] = u
	return nil
}

func (r userRepo) ConsumeLoginToken(ctx context.Context, tokenHash string) (*domain.User, time.Time, error) {
	st, unlock, err := r.s.lock("users.ConsumeLoginToken")
	if err != nil {
		return nil, time.Time{}, err
	}
	defer unlock()
	if tokenHash == "" {
		return nil, time.Time{}, domain.ErrTokenInvalid
	}
	for id, u := range st.users {
		if u.LoginTokenHash != tokenHash {
			continue
		}
		var expiry time.Time
		if u.LoginTokenExpiry != nil {
			expiry = *u.LoginTokenExpiry
		}
		u.LoginTokenHash = ""
		u.LoginTokenExpiry = nil
		u.UpdatedAt = r.s.stamp()
		st.users[id] = u
		return &u, expiry, nil
	}
	return nil, time.Time{}, domain.ErrTokenInvalid
}

func (r userRepo) ClearExpiredLoginTokens(ctx context.Context, now time.Time) (int64, error) {
	st, unlock, err := r.s.lock("users.ClearExpiredLoginTokens")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var n int64
	for id, u := range st.users {
		if u.LoginTokenExpiry != nil && u.LoginTokenExpiry.Before(now) {
			u.LoginTokenHash = ""
			u.LoginTokenExpiry = nil
			st.users[id] = u
			n++
		}
	}
	return n, nil
}

type subscriptionRepo struct{ s *Store }

func (r subscriptionRepo) UpsertByUser(ctx context.Context, userID string, patch domain.SubscriptionPatch) (domain.UpsertResult[domain.Subscription], error) {
	var res domain.UpsertResult[domain.Subscription]
	st, unlock, err := r.s.lock("subscriptions.UpsertByUser")
	if err != nil {
		return res, err
	}
	defer unlock()
	if _, ok := st.users[userID]; !ok {
		return res, domain.ErrUserNotFound
	}
	now := r.s.stamp()
	current, exists := st.subs[userID]
	if !exists {
		current = domain.Subscription{ID: uuid.NewString(), UserID: userID, Plan: domain.PlanFree, CreatedAt: now}
	}
	next, ok := patch.Apply(current)
	if !ok {
		res.Outcome = domain.OutcomeUnchanged
		res.Row = current
		return res, nil
	}
	next.UpdatedAt = now
	st.subs[userID] = next
	res.Row = next
	res.Outcome = domain.OutcomeUpdated
	if !exists {
		res.Outcome = domain.OutcomeCreated
	}
	return res, nil
}

func (r subscriptionRepo) FindActiveOrTrial(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := r.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.Status.Live() {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (r subscriptionRepo) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	st, unlock, err := r.s.lock("subscriptions.GetByUser")
	if err != nil {
		return nil, err
	}
	defer unlock()
	sub, ok := st.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sub, nil
}

func (r subscriptionRepo) ListStale(ctx context.Context, before, syncedBefore time.Time, limit int) ([]domain.Subscription, error) {
	st, unlock, err := r.s.lock("subscriptions.ListStale")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []domain.Subscription
	for userID, sub := range st.subs {
		if sub.Status != domain.SubscriptionActive && sub.Status != domain.SubscriptionPastDue {
			continue
		}
		if sub.StripeSubscriptionID == "" || sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Before(before) {
			continue
		}
		if at, ok := st.synced[userID]; ok && !at.Before(syncedBefore) {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPeriodEnd.Before(*out[j].CurrentPeriodEnd) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r subscriptionRepo) MarkSynced(ctx context.Context, userID string, at time.Time) error {
	st, unlock, err := r.s.lock("subscriptions.MarkSynced")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.subs[userID]; ok {
		st.synced[userID] = at.UTC()
	}
	return nil
}

func (r subscriptionRepo) AppendHistory(ctx context.Context, entry domain.SubscriptionHistoryEntry) error {
	st, unlock, err := r.s.lock("subscriptions.AppendHistory")
	if err != nil {
		return err
	}
	defer unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = r.s.stamp()
	st.history = append(st.history, entry)
	return nil
}

func (r subscriptionRepo) ListHistory(ctx context.Context, userID string, limit int) ([]domain.SubscriptionHistoryEntry, error) {
	st, unlock, err := r.s.lock("subscriptions.ListHistory")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []domain.SubscriptionHistoryEntry
	for i := len(st.history) - 1; i >= 0; i-- {
		if st.history[i].UserID != userID {
			continue
		}
		out = append(out, st.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type checkoutRepo struct{ s *Store }

func (r checkoutRepo) ClaimSession(ctx context.Context, sessionID, userID string, at time.Time) (bool, error) {
	st, unlock, err := r.s.lock("checkouts.ClaimSession")
	if err != nil {
		return false, err
	}
	defer unlock()
	if _, ok := st.finalized[sessionID]; ok {
		return false, nil
	}
	st.finalized[sessionID] = userID
	return true, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) GetOrCreateForProject(ctx context.Context, projectID, clientID string, amount domain.Money) (domain.UpsertResult[domain.PaymentRequest], error) {
	var res domain.UpsertResult[domain.PaymentRequest]
	st, unlock, err := r.s.lock("paymentRequests.GetOrCreateForProject")
	if err != nil {
		return res, err
	}
	defer unlock()
	now := r.s.stamp()
	if id, ok := st.byProject[projectID]; ok {
		pr := st.payments[id]
		res.Outcome = domain.OutcomeUnchanged
		if pr.Status != domain.PaymentPaid && !pr.Amount.Equal(amount.Decimal) {
			pr.Amount = amount
			pr.UpdatedAt = now
			st.payments[id] = pr
			res.Outcome = domain.OutcomeUpdated
		}
		res.Row = pr
		return res, nil
	}
	pr := domain.PaymentRequest{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ClientID:  clientID,
		Amount:    amount,
		Status:    domain.PaymentNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.payments[pr.ID] = pr
	st.byProject[projectID] = pr.ID
	res.Outcome = domain.OutcomeCreated
	res.Row = pr
	return res, nil
}

func (r paymentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	st, unlock, err := r.s.lock("paymentRequests.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()
	pr, ok := st.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &pr, nil
}

func (r paymentRepo) GetByProject(ctx context.Context, projectID string) (*domain.PaymentRequest, error) {
	st, unlock, err := r.s.lock("paymentRequests.GetByProject")
	if err != nil {
		return nil, err
	}
	defer unlock()
	id, ok := st.byProject[projectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	pr := st.payments[id]
	return &pr, nil
}

func (r paymentRepo) MarkRequested(ctx context.Context, projectID, intentID string) (domain.UpsertResult[domain.PaymentRequest], error) {
	var res domain.UpsertResult[domain.PaymentRequest]
	st, unlock, err := r.s.lock("paymentRequests.MarkRequested")
	if err != nil {
		return res, err
	}
	defer unlock()
	id, ok := st.byProject[projectID]
	if !ok {
		return res, domain.ErrNotFound
	}
	pr := st.payments[id]
	if pr.Status == domain.PaymentPaid {
		res.Outcome = domain.OutcomeUnchanged
		res.Row = pr
		return res, nil
	}
	pr.Status = domain.PaymentRequested
	if intentID != "" {
		pr.StripePaymentIntentID = intentID
	}
	pr.UpdatedAt = r.s.stamp()
	st.payments[id] = pr
	res.Outcome = domain.OutcomeUpdated
	res.Row = pr
	return res, nil
}

func (r paymentRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (domain.UpsertResult[domain.PaymentRequest], error) {
	var res domain.UpsertResult[domain.PaymentRequest]
	st, unlock, err := r.s.lock("paymentRequests.MarkPaid")
	if err != nil {
		return res, err
	}
	defer unlock()
	pr, ok := st.payments[id]
	if !ok {
		return res, domain.ErrNotFound
	}
	if pr.Status == domain.PaymentPaid {
		res.Outcome = domain.OutcomeUnchanged
		res.Row = pr
		return res, nil
	}
	paid := paidAt.UTC()
	pr.Status = domain.PaymentPaid
	pr.PaidAt = &paid
	pr.UpdatedAt = r.s.stamp()
	st.payments[id] = pr
	res.Outcome = domain.OutcomeUpdated
	res.Row = pr
	return res, nil
}

type invoiceRepo struct{ s *Store }

func (r invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) (domain.UpsertResult[domain.Invoice], error) {
	var res domain.UpsertResult[domain.Invoice]
	st, unlock, err := r.s.lock("invoices.Create")
	if err != nil {
		return res, err
	}
	defer unlock()
	if id, ok := st.invoiceByPR[inv.PaymentRequestID]; ok {
		res.Outcome = domain.OutcomeUnchanged
		res.Row = st.invoices[id]
		return res, nil
	}
	out := *inv
	out.ID = uuid.NewString()
	out.CreatedAt = r.s.stamp()
	st.invoices[out.ID] = out
	st.invoiceByPR[out.PaymentRequestID] = out.ID
	res.Outcome = domain.OutcomeCreated
	res.Row = out
	return res, nil
}

func (r invoiceRepo) GetByPaymentRequest(ctx context.Context, paymentRequestID string) (*domain.Invoice, error) {
	st, unlock, err := r.s.lock("invoices.GetByPaymentRequest")
	if err != nil {
		return nil, err
	}
	defer unlock()
	id, ok := st.invoiceByPR[paymentRequestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	inv := st.invoices[id]
	return &inv, nil
}

func (r invoiceRepo) CountByPaymentRequest(ctx context.Context, paymentRequestID string) (int, error) {
	st, unlock, err := r.s.lock("invoices.CountByPaymentRequest")
	if err != nil {
		return 0, err
	}
	defer unlock()
	n := 0
	for _, inv := range st.invoices {
		if inv.PaymentRequestID == paymentRequestID {
			n++
		}
	}
	return n, nil
}

func (r invoiceRepo) ListByAdmin(ctx context.Context, adminID string) ([]domain.Invoice, error) {
	return r.list("invoices.ListByAdmin", func(inv domain.Invoice) bool { return inv.AdminID == adminID })
}

func (r invoiceRepo) ListByClient(ctx context.Context, clientID string) ([]domain.Invoice, error) {
	return r.list("invoices.ListByClient", func(inv domain.Invoice) bool { return inv.ClientID == clientID })
}

func (r invoiceRepo) list(op string, keep func(domain.Invoice) bool) ([]domain.Invoice, error) {
	st, unlock, err := r.s.lock(op)
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]domain.Invoice, 0)
	for _, inv := range st.invoices {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

type projectRepo struct{ s *Store }

func (r projectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	st, unlock, err := r.s.lock("projects.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()
	p, ok := st.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return &p, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	st, unlock, err := r.s.lock("notifications.Create")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.users[n.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	n.ID = uuid.NewString()
	n.CreatedAt = r.s.stamp()
	st.notifications = append(st.notifications, *n)
	return nil
}

func (r notificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	st, unlock, err := r.s.lock("notifications.ListByUser")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]domain.Notification, 0)
	for i := len(st.notifications) - 1; i >= 0; i-- {
		if st.notifications[i].UserID == userID {
			out = append(out, st.notifications[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Seen(ctx context.Context, eventID string) (bool, error) {
	st, unlock, err := r.s.lock("webhookEvents.Seen")
	if err != nil {
		return false, err
	}
	defer unlock()
	_, ok := st.events[eventID]
	return ok, nil
}

func (r eventRepo) Record(ctx context.Context, eventID, eventType, outcome string) error {
	st, unlock, err := r.s.lock("webhookEvents.Record")
	if err != nil {
		return err
	}
	defer unlock()
	if eventID == "" {
		return nil
	}
	st.events[eventID] = webhookEvent{eventType: eventType, outcome: outcome}
	return nil
}
