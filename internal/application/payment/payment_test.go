package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayStub struct {
	charge    *dompayment.Charge
	chargeErr error
	qr        *dompayment.PixQrCode
	qrErr     error

	mu      sync.Mutex
	charges []dompayment.ChargeRequest
	qrCalls int
}

func (g *gatewayStub) CreateCharge(_ context.Context, req dompayment.ChargeRequest) (*dompayment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return g.charge, nil
}

func (g *gatewayStub) GetPixQrCode(context.Context, string) (*dompayment.PixQrCode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.qrCalls++
	return g.qr, g.qrErr
}

func (g *gatewayStub) CreateCustomer(context.Context, dompayment.CustomerRequest) (*dompayment.Customer, error) {
	return nil, errors.New("not used")
}

// recorded drains the events written alongside repository changes.
func recorded(t *testing.T, box *memory.Outbox) []domoutbox.Event {
	t.Helper()
	msgs, err := box.Pending(context.Background(), 0)
	require.NoError(t, err)
	events := make([]domoutbox.Event, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, m.Event)
	}
	return events
}

// staleBills loses the status race a fixed number of times before writing through.
type staleBills struct {
	*memory.BillRepository
	losses int
	calls  int
}

func (s *staleBills) UpdateStatus(ctx context.Context, paymentID, from, to string, events ...domoutbox.Event) error {
	s.calls++
	if s.calls <= s.losses {
		return fmt.Errorf("bill %s: %w", paymentID, dompayment.ErrStaleStatus)
	}
	return s.BillRepository.UpdateStatus(ctx, paymentID, from, to, events...)
}

type fixedID string

func (f fixedID) NewID() string { return string(f) }

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func customers(t *testing.T, external string) *memory.CustomerRepository {
	t.Helper()
	repo := memory.NewCustomerRepository()
	require.NoError(t, repo.Insert(context.Background(), &domcustomer.Mapping{
		ID: "map_1", ExternalCustomerID: external, UserID: 7,
	}))
	return repo
}

func newCharge(t *testing.T, bills dompayment.Repository, cust domcustomer.Repository, gw dompayment.Gateway) *CreateChargeUseCase {
	t.Helper()
	uc := NewCreateChargeUseCase(bills, cust, gw, fixedID("bill_1"), nil)
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func TestCreateChargePix(t *testing.T) {
	bills := memory.NewBillRepository(nil)
	gw := &gatewayStub{
		charge: &dompayment.Charge{ID: "pay_1", Status: "PENDING", InvoiceURL: "https://gw/i/pay_1"},
		qr:     &dompayment.PixQrCode{EncodedImage: "iVBOR", Payload: "000201"},
	}
	uc := newCharge(t, bills, customers(t, "cus_9"), gw)

	res, err := uc.Execute(context.Background(), CreateChargeInput{
		UserID: 7, Method: "PIX", Value: decimal.RequireFromString("13.50"), Description: "Pedido do usuario 7",
	})
	require.NoError(t, err)

	assert.Equal(t, "pay_1", res.PaymentID)
	assert.Equal(t, "cus_9", res.CustomerID)
	assert.Equal(t, "data:image/png;base64,iVBOR", res.PixQrCodeImage)
	assert.Equal(t, res.PixQrCodeImage, res.InvoiceURL)
	assert.Equal(t, "000201", res.PixCopyPaste)

	require.Len(t, gw.charges, 1)
	req := gw.charges[0]
	assert.Equal(t, dompayment.BillingPix, req.BillingType)
	assert.Equal(t, "cus_9", req.CustomerID)
	assert.Equal(t, fixedNow.AddDate(0, 0, 1), req.DueDate)

	stored, err := bills.FindByPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "bill_1", stored.ID)
	assert.Equal(t, "PENDING", stored.Status)
}

func TestCreateChargeDebitCardUsesCreditRail(t *testing.T) {
	gw := &gatewayStub{charge: &dompayment.Charge{ID: "pay_2", CustomerID: "cus_gw", PaymentLink: "https://gw/l"}}
	uc := newCharge(t, memory.NewBillRepository(nil), customers(t, "cus_9"), gw)

	res, err := uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "debit_card", Value: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, dompayment.BillingCreditCard, gw.charges[0].BillingType)
	assert.Equal(t, "cus_gw", res.CustomerID)
	assert.Equal(t, "https://gw/l", res.PaymentLink)
	assert.Zero(t, gw.qrCalls)
}

func TestCreateChargeCustomerErrors(t *testing.T) {
	gw := &gatewayStub{charge: &dompayment.Charge{ID: "pay_1"}}

	uc := newCharge(t, memory.NewBillRepository(nil), memory.NewCustomerRepository(), gw)
	_, err := uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "PIX", Value: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, application.ErrNotFound)
	assert.Equal(t, "Asaas customer not found", err.Error())

	uc = newCharge(t, memory.NewBillRepository(nil), customers(t, ""), gw)
	_, err = uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "PIX", Value: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, application.ErrValidation)
	assert.Empty(t, gw.charges)
}

func TestCreateChargeGatewayFailureStoresNothing(t *testing.T) {
	bills := memory.NewBillRepository(nil)
	gw := &gatewayStub{chargeErr: dompayment.ErrGatewayRejected}
	uc := newCharge(t, bills, customers(t, "cus_9"), gw)

	_, err := uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "BOLETO", Value: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, application.ErrUpstream)
	assert.ErrorIs(t, err, dompayment.ErrGatewayRejected)

	gw = &gatewayStub{charge: &dompayment.Charge{ID: "pay_3"}, qrErr: errors.New("502")}
	uc = newCharge(t, bills, customers(t, "cus_9"), gw)
	_, err = uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "PIX", Value: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, application.ErrUpstream)

	_, err = bills.FindByPaymentID(context.Background(), "pay_3")
	assert.ErrorIs(t, err, dompayment.ErrNotFound)
}

func TestCreateChargeAlreadyApprovedRecordsApproval(t *testing.T) {
	box := memory.NewOutbox()
	gw := &gatewayStub{charge: &dompayment.Charge{ID: "pay_4", Status: "CONFIRMED"}}
	uc := newCharge(t, memory.NewBillRepository(box), customers(t, "cus_9"), gw)

	_, err := uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "CREDIT_CARD", Value: decimal.NewFromInt(5)})
	require.NoError(t, err)
	events := recorded(t, box)
	require.Len(t, events, 1)
	evt := events[0].(dompayment.PaymentApprovedEvent)
	assert.Equal(t, "pay_4", evt.PaymentID)
	assert.True(t, evt.Approved)
}

func TestCreateChargeRejectsInput(t *testing.T) {
	uc := newCharge(t, memory.NewBillRepository(nil), customers(t, "cus_9"), &gatewayStub{})

	_, err := uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "CASH", Value: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, dompayment.ErrUnsupportedMethod)

	_, err = uc.Execute(context.Background(), CreateChargeInput{UserID: 7, Method: "PIX", Value: decimal.Zero})
	assert.ErrorIs(t, err, application.ErrValidation)
}

func seedBill(t *testing.T, bills *memory.BillRepository, status string) {
	t.Helper()
	require.NoError(t, bills.Insert(context.Background(), &dompayment.Bill{
		ID: "bill_1", PaymentID: "pay_1", Status: status, Value: decimal.RequireFromString("13.50"),
	}))
}

func TestWebhookRecordsOncePerApproval(t *testing.T) {
	box := memory.NewOutbox()
	bills := memory.NewBillRepository(box)
	seedBill(t, bills, "PENDING")
	uc := NewProcessWebhookUseCase(bills, nil)

	in := WebhookInput{Event: "PAYMENT_RECEIVED", PaymentID: " pay_1 ", Status: "RECEIVED"}
	res, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Emitted)

	res, err = uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Emitted)

	res, err = uc.Execute(context.Background(), WebhookInput{PaymentID: "pay_1", Status: "CONFIRMED"})
	require.NoError(t, err)
	assert.False(t, res.Emitted)

	events := recorded(t, box)
	require.Len(t, events, 1)
	evt := events[0].(dompayment.PaymentApprovedEvent)
	assert.True(t, evt.Approved)
	assert.Equal(t, "pay_1", evt.PaymentID)
	assert.True(t, decimal.RequireFromString("13.50").Equal(evt.Amount))

	stored, err := bills.FindByPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", stored.Status)
}

func TestWebhookDecline(t *testing.T) {
	box := memory.NewOutbox()
	bills := memory.NewBillRepository(box)
	seedBill(t, bills, "PENDING")
	uc := NewProcessWebhookUseCase(bills, nil)

	res, err := uc.Execute(context.Background(), WebhookInput{PaymentID: "pay_1", Status: "OVERDUE", Value: decimal.NewFromInt(2)})
	require.NoError(t, err)
	assert.True(t, res.Emitted)
	events := recorded(t, box)
	require.Len(t, events, 1)
	evt := events[0].(dompayment.PaymentApprovedEvent)
	assert.False(t, evt.Approved)
	assert.Equal(t, "2", evt.Amount.String())
}

func TestWebhookIgnoresUnknownAndBlank(t *testing.T) {
	box := memory.NewOutbox()
	uc := NewProcessWebhookUseCase(memory.NewBillRepository(box), nil)

	res, err := uc.Execute(context.Background(), WebhookInput{PaymentID: "pay_x", Status: "RECEIVED"})
	require.NoError(t, err)
	assert.True(t, res.Ignored)

	res, err = uc.Execute(context.Background(), WebhookInput{Status: "RECEIVED"})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Empty(t, recorded(t, box))
}

func TestWebhookBlankStatusKeepsBill(t *testing.T) {
	bills := memory.NewBillRepository(nil)
	seedBill(t, bills, "PENDING")
	uc := NewProcessWebhookUseCase(bills, nil)

	res, err := uc.Execute(context.Background(), WebhookInput{PaymentID: "pay_1", Status: " "})
	require.NoError(t, err)
	assert.False(t, res.Transition.Changed())
}

func TestLinkOrder(t *testing.T) {
	bills := memory.NewBillRepository(nil)
	seedBill(t, bills, "PENDING")
	uc := NewLinkOrderUseCase(bills, nil)
	evt := domorder.PaymentRequestedEvent{OrderID: "ord_1", PaymentID: "pay_1"}

	linked, err := uc.Execute(context.Background(), evt)
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = uc.Execute(context.Background(), evt)
	require.NoError(t, err)
	assert.False(t, linked)

	linked, err = uc.Execute(context.Background(), domorder.PaymentRequestedEvent{OrderID: "ord_2", PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.False(t, linked)

	stored, err := bills.FindByPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "ord_1", stored.OrderID)

	linked, err = uc.Execute(context.Background(), domorder.PaymentRequestedEvent{OrderID: "ord_3", PaymentID: "pay_404"})
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestWebhookRetriesConcurrentStatusChange(t *testing.T) {
	box := memory.NewOutbox()
	bills := &staleBills{BillRepository: memory.NewBillRepository(box), losses: 1}
	seedBill(t, bills.BillRepository, "PENDING")
	uc := NewProcessWebhookUseCase(bills, nil)

	res, err := uc.Execute(context.Background(), WebhookInput{PaymentID: "pay_1", Status: "RECEIVED"})
	require.NoError(t, err)
	assert.True(t, res.Emitted)
	assert.Equal(t, 2, bills.calls)
	assert.Len(t, recorded(t, box), 1)
}

func TestWebhookGivesUpAfterRepeatedRaces(t *testing.T) {
	box := memory.NewOutbox()
	bills := &staleBills{BillRepository: memory.NewBillRepository(box), losses: webhookAttempts}
	seedBill(t, bills.BillRepository, "PENDING")
	uc := NewProcessWebhookUseCase(bills, nil)

	_, err := uc.Execute(context.Background(), WebhookInput{PaymentID: "pay_1", Status: "RECEIVED"})
	assert.ErrorIs(t, err, application.ErrConflict)
	assert.Equal(t, webhookAttempts, bills.calls)
	assert.Empty(t, recorded(t, box))
}

func TestLinkOrderReannouncesSettledBill(t *testing.T) {
	box := memory.NewOutbox()
	bills := memory.NewBillRepository(box)
	seedBill(t, bills, "CONFIRMED")
	uc := NewLinkOrderUseCase(bills, nil)

	linked, err := uc.Execute(context.Background(), domorder.PaymentRequestedEvent{OrderID: "ord_1", PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.True(t, linked)

	events := recorded(t, box)
	require.Len(t, events, 1)
	evt := events[0].(dompayment.PaymentApprovedEvent)
	assert.True(t, evt.Approved)
	assert.Equal(t, "ord_1", evt.OrderID)
	assert.Equal(t, "pay_1", evt.PaymentID)

	linked, err = uc.Execute(context.Background(), domorder.PaymentRequestedEvent{OrderID: "ord_1", PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.False(t, linked)
	assert.Len(t, recorded(t, box), 1)
}

func TestLinkOrderPendingBillRecordsNothing(t *testing.T) {
	box := memory.NewOutbox()
	bills := memory.NewBillRepository(box)
	seedBill(t, bills, "PENDING")

	_, err := NewLinkOrderUseCase(bills, nil).Execute(context.Background(), domorder.PaymentRequestedEvent{OrderID: "ord_1", PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.Empty(t, recorded(t, box))
}
