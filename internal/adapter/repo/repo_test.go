package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"agencydesk/internal/domain"
	"agencydesk/internal/sqlinline"
)

const (
	prID      = "6f1c1e9e-8a39-4d7e-9d59-0c1b9b4f3c10"
	projectID = "2b0f7c53-4a7b-4c1e-b0c8-7f0d5b2f1a22"
	clientID  = "9a3e4c71-5d2b-4f8e-a1c6-3e8b7d9f0b33"
	adminID   = "c47d2e18-0f6a-4b93-8e25-d1a9c3b7e044"
)

func paymentRow(status domain.PaymentStatus, paidAt *time.Time) []any {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var paid any
	if paidAt != nil {
		paid = *paidAt
	}
	return []any{prID, projectID, clientID, "500.00", string(status), "pi_123", paid, now, now}
}

func TestMarkPaidTransitionsOnce(t *testing.T) {
	exec := newStubExecutor()
	paidAt := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	exec.onRow(sqlinline.QMarkPaymentRequestPaid, paymentRow(domain.PaymentPaid, &paidAt)...)
	exec.onNoRows(sqlinline.QMarkPaymentRequestPaid)
	exec.onRow(sqlinline.QSelectPaymentRequestByID, paymentRow(domain.PaymentPaid, &paidAt)...)

	repo := NewPaymentRequestRepository(exec)
	first, err := repo.MarkPaid(context.Background(), prID, paidAt)
	if err != nil {
		t.Fatalf("MarkPaid error: %v", err)
	}
	if !first.Changed() || first.Row.Status != domain.PaymentPaid {
		t.Fatalf("first MarkPaid = %+v, want updated paid row", first)
	}
	if first.Row.Amount.String() != "500" {
		t.Fatalf("amount = %s, want 500", first.Row.Amount)
	}

	second, err := repo.MarkPaid(context.Background(), prID, paidAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("second MarkPaid error: %v", err)
	}
	if second.Changed() {
		t.Fatalf("second MarkPaid should be a no-op, got %s", second.Outcome)
	}
	if second.Row.PaidAt == nil || !second.Row.PaidAt.Equal(paidAt) {
		t.Fatalf("paid_at moved: %v", second.Row.PaidAt)
	}
}

func TestMarkPaidUnknownIDSkipsQuery(t *testing.T) {
	exec := newStubExecutor()
	repo := NewPaymentRequestRepository(exec)
	if _, err := repo.MarkPaid(context.Background(), "not-a-uuid", time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("expected no SQL calls, got %d", len(exec.calls))
	}
}

func TestMarkPaidStorageFailure(t *testing.T) {
	exec := newStubExecutor()
	exec.onRowErr(sqlinline.QMarkPaymentRequestPaid, errors.New("connection reset"))
	repo := NewPaymentRequestRepository(exec)
	_, err := repo.MarkPaid(context.Background(), prID, time.Now())
	if !domain.IsStorage(err) {
		t.Fatalf("err = %v, want StorageError", err)
	}
}

func TestGetOrCreateForProjectReturnsExisting(t *testing.T) {
	exec := newStubExecutor()
	exec.onNoRows(sqlinline.QUpsertPaymentRequestForProject)
	exec.onRow(sqlinline.QSelectPaymentRequestByProject, paymentRow(domain.PaymentRequested, nil)...)

	repo := NewPaymentRequestRepository(exec)
	res, err := repo.GetOrCreateForProject(context.Background(), projectID, clientID, domain.MoneyFromInt(700))
	if err != nil {
		t.Fatalf("GetOrCreateForProject error: %v", err)
	}
	if res.Outcome != domain.OutcomeUnchanged || res.Row.Status != domain.PaymentRequested {
		t.Fatalf("unexpected result %+v", res)
	}
	insert := exec.calls[0]
	if v, ok := insert.args[2].(string); !ok || v != "700" {
		t.Fatalf("amount argument = %v, want \"700\"", insert.args[2])
	}
}

func TestGetOrCreateForProjectRefreshesUnpaidAmount(t *testing.T) {
	exec := newStubExecutor()
	row := paymentRow(domain.PaymentRequested, nil)
	row[3] = "700.00"
	exec.onRow(sqlinline.QUpsertPaymentRequestForProject, append(row, false)...)

	res, err := NewPaymentRequestRepository(exec).GetOrCreateForProject(context.Background(), projectID, clientID, domain.MoneyFromInt(700))
	if err != nil {
		t.Fatalf("GetOrCreateForProject error: %v", err)
	}
	if res.Outcome != domain.OutcomeUpdated {
		t.Fatalf("outcome = %s, want updated", res.Outcome)
	}
	if res.Row.Amount.String() != "700" {
		t.Fatalf("amount = %s, want 700", res.Row.Amount)
	}
	if n := exec.count(sqlinline.QSelectPaymentRequestByProject); n != 0 {
		t.Fatalf("refreshed row should come from the upsert, got %d lookups", n)
	}
}

func TestMarkRequestedLeavesPaidRow(t *testing.T) {
	exec := newStubExecutor()
	paidAt := time.Now().UTC()
	exec.onNoRows(sqlinline.QMarkPaymentRequestRequested)
	exec.onRow(sqlinline.QSelectPaymentRequestByProject, paymentRow(domain.PaymentPaid, &paidAt)...)

	res, err := NewPaymentRequestRepository(exec).MarkRequested(context.Background(), projectID, "pi_new")
	if err != nil {
		t.Fatalf("MarkRequested error: %v", err)
	}
	if res.Changed() || res.Row.Status != domain.PaymentPaid {
		t.Fatalf("paid row must stay paid, got %+v", res)
	}
}

func subscriptionRow(status domain.SubscriptionStatus, subID string, inserted *bool) []any {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(30 * 24 * time.Hour)
	row := []any{"11111111-2222-4333-8444-555555555555", adminID, "pro", subID, "cus_1", string(status), nil, end, now, now}
	if inserted != nil {
		row = append(row, *inserted)
	}
	return row
}

func TestUpsertByUserOutcomes(t *testing.T) {
	exec := newStubExecutor()
	yes, no := true, false
	exec.onRow(sqlinline.QUpsertSubscription, subscriptionRow(domain.SubscriptionTrial, "", &yes)...)
	exec.onRow(sqlinline.QUpsertSubscription, subscriptionRow(domain.SubscriptionActive, "sub_1", &no)...)
	exec.onNoRows(sqlinline.QUpsertSubscription)
	exec.onRow(sqlinline.QSelectSubscriptionByUser, subscriptionRow(domain.SubscriptionCanceled, "sub_1", nil)...)

	repo := NewSubscriptionRepository(exec)
	ctx := context.Background()

	created, err := repo.UpsertByUser(ctx, adminID, domain.SubscriptionPatch{Plan: domain.PlanFree, Status: domain.SubscriptionTrial})
	if err != nil || created.Outcome != domain.OutcomeCreated {
		t.Fatalf("first upsert = %+v, %v; want created", created, err)
	}
	updated, err := repo.UpsertByUser(ctx, adminID, domain.SubscriptionPatch{Status: domain.SubscriptionActive, StripeSubscriptionID: "sub_1"})
	if err != nil || updated.Outcome != domain.OutcomeUpdated {
		t.Fatalf("second upsert = %+v, %v; want updated", updated, err)
	}
	refused, err := repo.UpsertByUser(ctx, adminID, domain.SubscriptionPatch{Status: domain.SubscriptionActive, StripeSubscriptionID: "sub_1"})
	if err != nil {
		t.Fatalf("third upsert error: %v", err)
	}
	if refused.Changed() || refused.Row.Status != domain.SubscriptionCanceled {
		t.Fatalf("refused transition should return stored row, got %+v", refused)
	}

	args := exec.calls[1].args
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
	if v, _ := args[1].(string); v != "" {
		t.Fatalf("empty plan should pass through as empty string, got %q", v)
	}
}

func TestFindActiveOrTrialNotFound(t *testing.T) {
	exec := newStubExecutor()
	_, err := NewSubscriptionRepository(exec).FindActiveOrTrial(context.Background(), adminID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListStaleSubscriptions(t *testing.T) {
	exec := newStubExecutor()
	exec.lists[sqlinline.QSelectStaleSubscriptions] = [][]any{
		subscriptionRow(domain.SubscriptionActive, "sub_1", nil),
		subscriptionRow(domain.SubscriptionPastDue, "sub_2", nil),
	}
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	subs, err := NewSubscriptionRepository(exec).ListStale(context.Background(), now, now.Add(-6*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListStale error: %v", err)
	}
	if len(subs) != 2 || subs[1].StripeSubscriptionID != "sub_2" {
		t.Fatalf("unexpected rows %+v", subs)
	}
	args := exec.calls[0].args
	if len(args) != 3 || !args[1].(time.Time).Equal(now.Add(-6*time.Hour)) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSubscriptionHistoryNewestFirst(t *testing.T) {
	exec := newStubExecutor()
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	exec.lists[sqlinline.QSelectSubscriptionHistory] = [][]any{
		{"a1", adminID, "pro", "canceled", "sub_1", nil, "updated", at},
		{"a0", adminID, "pro", "active", "sub_1", at, "created", at.Add(-time.Hour)},
	}
	repo := NewSubscriptionRepository(exec)
	entries, err := repo.ListHistory(context.Background(), adminID, 20)
	if err != nil {
		t.Fatalf("ListHistory error: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != domain.SubscriptionCanceled || entries[1].Outcome != domain.OutcomeCreated {
		t.Fatalf("unexpected history %+v", entries)
	}
	if entries[0].CurrentPeriodEnd != nil {
		t.Fatalf("null period end should stay nil")
	}

	if err := repo.AppendHistory(context.Background(), domain.SubscriptionHistoryEntry{UserID: "nope"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if got := exec.count(sqlinline.QInsertSubscriptionHistory); got != 0 {
		t.Fatalf("invalid user should not reach the database, got %d inserts", got)
	}
}

func TestClaimCheckoutSessionOnce(t *testing.T) {
	exec := newStubExecutor()
	repo := NewCheckoutRepository(exec)
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	exec.tags[sqlinline.QClaimCheckoutSession] = pgconn.NewCommandTag("INSERT 0 1")
	ok, err := repo.ClaimSession(context.Background(), "cs_1", adminID, at)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v; want true", ok, err)
	}
	exec.tags[sqlinline.QClaimCheckoutSession] = pgconn.NewCommandTag("INSERT 0 0")
	ok, err = repo.ClaimSession(context.Background(), "cs_1", adminID, at)
	if err != nil || ok {
		t.Fatalf("second claim = %v, %v; want false", ok, err)
	}
}

func invoiceRow(number string) []any {
	now := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	return []any{"7e57b5a0-1c2d-4e3f-8a9b-0c1d2e3f4a55", number, prID, projectID, clientID, adminID, "500.00", now, now}
}

func TestInvoiceCreateIsKeyedOnPaymentRequest(t *testing.T) {
	exec := newStubExecutor()
	exec.onNoRows(sqlinline.QInsertInvoice)
	exec.onRow(sqlinline.QSelectInvoiceByPaymentRequest, invoiceRow("INV-1")...)

	res, err := NewInvoiceRepository(exec).Create(context.Background(), &domain.Invoice{
		InvoiceNumber:    "INV-2",
		PaymentRequestID: prID,
		ProjectID:        projectID,
		ClientID:         clientID,
		AdminID:          adminID,
		Amount:           domain.MoneyFromInt(500),
		PaidAt:           time.Now(),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if res.Changed() || res.Row.InvoiceNumber != "INV-1" {
		t.Fatalf("expected existing invoice, got %+v", res)
	}
}

func TestConsumeLoginTokenMissing(t *testing.T) {
	exec := newStubExecutor()
	_, _, err := NewUserRepository(exec).ConsumeLoginToken(context.Background(), "abc")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestConsumeLoginTokenReturnsPreviousExpiry(t *testing.T) {
	exec := newStubExecutor()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(5 * time.Minute)
	exec.onRow(sqlinline.QConsumeUserLoginToken,
		adminID, "Ada", "ada@example.com", "hash", "admin", "", true,
		"cus_1", "sub_1", "pro", nil, "", nil, now, now, expiry)

	u, got, err := NewUserRepository(exec).ConsumeLoginToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("ConsumeLoginToken error: %v", err)
	}
	if u.Email != "ada@example.com" || u.Role != domain.UserRoleAdmin {
		t.Fatalf("unexpected user %+v", u)
	}
	if !got.Equal(expiry) {
		t.Fatalf("expiry = %v, want %v", got, expiry)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	exec := newStubExecutor()
	exec.onRowErr(sqlinline.QInsertUser, &pgconn.PgError{Code: "23505"})
	_, err := NewUserRepository(exec).Create(context.Background(), &domain.User{Email: "ada@example.com", Role: domain.UserRoleAdmin})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestApplyPlanMissingUser(t *testing.T) {
	exec := newStubExecutor()
	exec.tags[sqlinline.QApplyUserPlan] = pgconn.NewCommandTag("UPDATE 0")
	err := NewUserRepository(exec).ApplyPlan(context.Background(), adminID, domain.PlanPatch{Plan: domain.PlanPro})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestWithinTxPassesThroughDomainErrors(t *testing.T) {
	tx := &txStub{stubExecutor: newStubExecutor()}
	store := NewStore(tx)

	err := store.WithinTx(context.Background(), func(s domain.Store) error {
		return domain.ErrAlreadyPaid
	})
	if !errors.Is(err, domain.ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
	if domain.IsStorage(err) {
		t.Fatalf("fn errors must not be wrapped as storage errors")
	}
	if tx.began != 1 {
		t.Fatalf("expected one transaction, got %d", tx.began)
	}
}

func TestWebhookEventRecord(t *testing.T) {
	exec := newStubExecutor()
	repo := NewWebhookEventRepository(exec)
	if err := repo.Record(context.Background(), "evt_1", "payment_intent.succeeded", "applied"); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if exec.count(sqlinline.QInsertWebhookEvent) != 1 {
		t.Fatalf("expected insert call")
	}
	if err := repo.Record(context.Background(), "", "x", "y"); err != nil {
		t.Fatalf("Record without id error: %v", err)
	}
	if exec.count(sqlinline.QInsertWebhookEvent) != 1 {
		t.Fatalf("events without id must not be recorded")
	}
}
