package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agencydesk/internal/adapter/memory"
	"agencydesk/internal/domain"
	"agencydesk/internal/notify"
	"agencydesk/internal/payments"
)

const testSecret = "whsec_billing_test"

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type stubIssuer struct{}

func (stubIssuer) Issue(u domain.User) (string, time.Time, error) {
	return "session-" + u.ID, testNow.Add(24 * time.Hour), nil
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingSink) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSink) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Title)
	}
	return out
}

type fixture struct {
	t     *testing.T
	store *memory.Store
	gw    *payments.FakeGateway
	sink  *recordingSink
	reg   *prometheus.Registry
	svc   *Service
	now   time.Time
	nowMu sync.Mutex
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		t:     t,
		store: memory.NewStore(),
		gw:    payments.NewFakeGateway(testSecret),
		sink:  &recordingSink{},
		reg:   prometheus.NewRegistry(),
		now:   testNow,
		ctx:   context.Background(),
	}
	fx.store.SetClock(fx.clock)
	fx.gw.Now = fx.clock
	fx.svc = NewService(fx.store, fx.gw, stubIssuer{}, fx.sink, NewMetrics(fx.reg), zerolog.Nop(), Options{
		AppURL:        "https://app.test",
		Currency:      "usd",
		PriceIDs:      map[string]string{"pro": "price_pro", "enterprise": "price_ent"},
		TrialDays:     15,
		LoginTokenTTL: 5 * time.Minute,
		BcryptCost:    bcrypt.MinCost,
	})
	fx.svc.SetClock(fx.clock)
	return fx
}

func (fx *fixture) clock() time.Time {
	fx.nowMu.Lock()
	defer fx.nowMu.Unlock()
	return fx.now
}

func (fx *fixture) advance(d time.Duration) {
	fx.nowMu.Lock()
	defer fx.nowMu.Unlock()
	fx.now = fx.now.Add(d)
}

type tenant struct {
	admin   domain.User
	client  domain.User
	project domain.Project
}

// seedTenant creates an admin, one of its clients and a project priced at
// price whole currency units.
func (fx *fixture) seedTenant(price int64) tenant {
	admin := fx.store.PutUser(domain.User{Name: "Agency", Email: "owner@agency.test", Role: domain.UserRoleAdmin, IsActive: true})
	client := fx.store.PutUser(domain.User{Name: "Client", Email: "client@brand.test", Role: domain.UserRoleClient, CreatedBy: admin.ID, IsActive: true})
	project := fx.store.PutProject(domain.Project{Name: "Brand refresh", ClientID: client.ID, CreatedBy: admin.ID, Price: domain.MoneyFromInt(price)})
	return tenant{admin: admin, client: client, project: project}
}

// register signs up an admin through the service.
func (fx *fixture) register(email string) *domain.User {
	fx.t.Helper()
	u, err := fx.svc.Register(fx.ctx, RegisterInput{Name: "Owner", Email: email, Password: "correct horse"})
	require.NoError(fx.t, err)
	return u
}

// completedCheckout walks a registered user through checkout and marks the
// processor session complete.
func (fx *fixture) completedCheckout(userID string, periodEnd time.Time) (sessionID, subscriptionID string) {
	fx.t.Helper()
	res, err := fx.svc.CreateCheckout(fx.ctx, userID, "pro")
	require.NoError(fx.t, err)
	subscriptionID = "sub_" + res.SessionID
	fx.gw.CompleteSession(res.SessionID, subscriptionID, periodEnd)
	return res.SessionID, subscriptionID
}

func (fx *fixture) paymentEvent(eventID, paymentRequestID, projectID string) ([]byte, string) {
	return payments.SignTestEvent(testSecret, eventID, payments.EventPaymentIntentSucceeded, map[string]any{
		"id":       "pi_" + eventID,
		"object":   "payment_intent",
		"amount":   50000,
		"currency": "usd",
		"metadata": domain.NewPaymentMetadata(paymentRequestID, projectID).Encode(),
	})
}

func (fx *fixture) checkoutEvent(eventID, sessionID string) ([]byte, string) {
	fx.t.Helper()
	sess, err := fx.gw.RetrieveSession(fx.ctx, sessionID)
	require.NoError(fx.t, err)
	return payments.SignTestEvent(testSecret, eventID, payments.EventCheckoutSessionCompleted, map[string]any{
		"id":           sess.ID,
		"object":       "checkout.session",
		"status":       sess.Status,
		"subscription": sess.SubscriptionID,
		"customer":     sess.CustomerID,
		"metadata":     sess.Metadata,
	})
}

func (fx *fixture) subscriptionEvent(eventID, eventType, subscriptionID, customerID, status string, periodEnd time.Time, md map[string]string) ([]byte, string) {
	return payments.SignTestEvent(testSecret, eventID, eventType, map[string]any{
		"id":       subscriptionID,
		"object":   "subscription",
		"status":   status,
		"customer": customerID,
		"items": map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "si_1", "object": "subscription_item", "current_period_end": periodEnd.Unix()}},
		},
		"metadata": md,
	})
}
