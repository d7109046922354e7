package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencydesk/internal/domain"
	"agencydesk/internal/payments"
)

func TestSendPaymentRequestGuards(t *testing.T) {
	fx := newFixture(t)
	tn := fx.seedTenant(500)
	stranger := fx.store.PutUser(domain.User{Email: "other@agency.test", Role: domain.UserRoleAdmin, IsActive: true})

	_, err := fx.svc.SendPaymentRequest(fx.ctx, stranger.ID, tn.project.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	free := fx.store.PutProject(domain.Project{Name: "Pro bono", ClientID: tn.client.ID, CreatedBy: tn.admin.ID, Price: domain.MoneyFromInt(0)})
	_, err = fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, free.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	first, err := fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	require.NoError(t, err)
	again, err := fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, []string{"Payment requested", "Payment requested"}, fx.sink.titles())

	_, err = fx.svc.settlePayment(fx.ctx, first.ID)
	require.NoError(t, err)
	_, err = fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestResendAfterPriceChangeUsesNewAmount(t *testing.T) {
	fx := newFixture(t)
	tn := fx.seedTenant(500)
	first, err := fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	require.NoError(t, err)

	repriced := tn.project
	repriced.Price = domain.MoneyFromInt(650)
	fx.store.PutProject(repriced)

	again, err := fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Amount.Equal(domain.MoneyFromInt(650).Decimal))

	intent, err := fx.svc.CreatePaymentIntent(fx.ctx, tn.client, tn.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(65000), intent.AmountMinor)

	_, err = fx.svc.settlePayment(fx.ctx, first.ID)
	require.NoError(t, err)
	repriced.Price = domain.MoneyFromInt(900)
	fx.store.PutProject(repriced)
	_, err = fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	paid, err := fx.store.PaymentRequests().GetByID(fx.ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, paid.Amount.Equal(domain.MoneyFromInt(650).Decimal))
}

func TestCreatePaymentIntentGuards(t *testing.T) {
	fx := newFixture(t)
	tn := fx.seedTenant(500)

	_, err := fx.svc.CreatePaymentIntent(fx.ctx, tn.client, tn.project.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentRequestMissing)

	other := fx.store.PutUser(domain.User{Email: "x@brand.test", Role: domain.UserRoleClient, CreatedBy: tn.admin.ID, IsActive: true})
	_, err = fx.svc.CreatePaymentIntent(fx.ctx, other, tn.project.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	pr, err := fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	require.NoError(t, err)
	res, err := fx.svc.CreatePaymentIntent(fx.ctx, tn.admin, tn.project.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ClientSecret)

	in := fx.gw.Intents[0]
	assert.Equal(t, "payreq-"+pr.ID+"-50000", in.IdempotencyKey)
	assert.Equal(t, "usd", in.Currency)
	md, err := domain.DecodePaymentMetadata(in.Metadata)
	require.NoError(t, err)
	assert.Equal(t, pr.ID, md.PaymentRequestID)
	assert.Equal(t, tn.project.ID, md.ProjectID)

	stored, err := fx.store.PaymentRequests().GetByID(fx.ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, res.IntentID, stored.StripePaymentIntentID)

	fx.gw.CreatePaymentIntentErr = &payments.GatewayError{Op: "create payment intent", Message: "card network down"}
	_, err = fx.svc.CreatePaymentIntent(fx.ctx, tn.client, tn.project.ID)
	assert.True(t, payments.IsGatewayError(err))
	fx.gw.CreatePaymentIntentErr = nil

	_, err = fx.svc.settlePayment(fx.ctx, pr.ID)
	require.NoError(t, err)
	_, err = fx.svc.CreatePaymentIntent(fx.ctx, tn.client, tn.project.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestSettleWithoutProjectSkipsInvoice(t *testing.T) {
	fx := newFixture(t)
	tn := fx.seedTenant(500)
	res, err := fx.store.PaymentRequests().GetOrCreateForProject(fx.ctx, "gone-project", tn.client.ID, domain.MoneyFromInt(20))
	require.NoError(t, err)

	st, err := fx.svc.settlePayment(fx.ctx, res.Row.ID)
	require.NoError(t, err)
	assert.True(t, st.Settled)
	assert.Nil(t, st.Invoice)
	assert.Equal(t, domain.PaymentPaid, st.Payment.Status)
}

func TestListInvoicesByRole(t *testing.T) {
	fx := newFixture(t)
	tn := fx.seedTenant(500)
	pr, err := fx.svc.SendPaymentRequest(fx.ctx, tn.admin.ID, tn.project.ID)
	require.NoError(t, err)
	_, err = fx.svc.settlePayment(fx.ctx, pr.ID)
	require.NoError(t, err)

	adminView, err := fx.svc.ListInvoices(fx.ctx, tn.admin.ID)
	require.NoError(t, err)
	clientView, err := fx.svc.ListInvoices(fx.ctx, tn.client.ID)
	require.NoError(t, err)
	require.Len(t, adminView, 1)
	require.Len(t, clientView, 1)
	assert.Equal(t, adminView[0].ID, clientView[0].ID)

	_, err = fx.svc.ListInvoices(fx.ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
