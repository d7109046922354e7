package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencydesk/internal/domain"
	"agencydesk/internal/payments"
)

func TestSweepClearsTokensAndResyncsStale(t *testing.T) {
	fx := newFixture(t)
	u := fx.register("owner@agency.test")
	periodEnd := testNow.Add(24 * time.Hour).Truncate(time.Second)
	sessionID, subID := fx.completedCheckout(u.ID, periodEnd)
	fin, err := fx.svc.Finalize(fx.ctx, sessionID)
	require.NoError(t, err)

	// The renewal webhook never arrives; the processor moved the period on.
	renewed := periodEnd.AddDate(0, 1, 0)
	fx.gw.PutSubscription(payments.Subscription{ID: subID, CustomerID: "cus", RawStatus: "active", CurrentPeriodEnd: renewed})
	fx.advance(48 * time.Hour)

	report, err := fx.svc.Sweep(fx.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TokensCleared)
	assert.Equal(t, 1, report.Resynced)
	assert.Zero(t, report.Failed)

	sub, err := fx.store.Subscriptions().GetByUser(fx.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, sub.CurrentPeriodEnd.Equal(renewed))

	_, err = fx.svc.RedeemLoginToken(fx.ctx, fin.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestSweepCountsFailuresAndContinues(t *testing.T) {
	fx := newFixture(t)
	u := fx.register("owner@agency.test")
	sessionID, _ := fx.completedCheckout(u.ID, testNow.Add(time.Hour))
	_, err := fx.svc.Finalize(fx.ctx, sessionID)
	require.NoError(t, err)
	fx.advance(2 * time.Hour)

	fx.gw.RetrieveSubscriptionErr = &payments.GatewayError{Op: "retrieve subscription", StatusCode: 500, Message: "boom"}
	report, err := fx.svc.Sweep(fx.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	fx.store.FailNext("users.ClearExpiredLoginTokens", errors.New("db gone"))
	_, err = fx.svc.Sweep(fx.ctx, 10)
	assert.True(t, domain.IsStorage(err))
}

func TestSweepBacksOffStuckPastDue(t *testing.T) {
	fx := newFixture(t)
	u := fx.register("owner@agency.test")
	periodEnd := testNow.Add(time.Hour).Truncate(time.Second)
	sessionID, subID := fx.completedCheckout(u.ID, periodEnd)
	_, err := fx.svc.Finalize(fx.ctx, sessionID)
	require.NoError(t, err)

	// Renewal keeps failing; the processor never moves the period forward.
	fx.gw.PutSubscription(payments.Subscription{ID: subID, CustomerID: "cus", RawStatus: "past_due", CurrentPeriodEnd: periodEnd})
	fx.advance(2 * time.Hour)

	report, err := fx.svc.Sweep(fx.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resynced)
	sub, err := fx.store.Subscriptions().GetByUser(fx.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionPastDue, sub.Status)
	fetched := fx.gw.Calls["RetrieveSubscription"]

	for i := 0; i < 3; i++ {
		fx.advance(time.Hour)
		report, err = fx.svc.Sweep(fx.ctx, 10)
		require.NoError(t, err)
		assert.Zero(t, report.Resynced+report.Failed)
	}
	assert.Equal(t, fetched, fx.gw.Calls["RetrieveSubscription"])

	fx.advance(3*time.Hour + time.Second)
	report, err = fx.svc.Sweep(fx.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resynced)
	assert.Equal(t, fetched+1, fx.gw.Calls["RetrieveSubscription"])
}

func TestSyncSubscriptionRequiresProcessorSubscription(t *testing.T) {
	fx := newFixture(t)
	u := fx.register("owner@agency.test")
	_, err := fx.svc.SyncSubscription(fx.ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
