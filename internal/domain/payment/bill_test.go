package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovedStatuses(t *testing.T) {
	for _, s := range []string{"RECEIVED", " confirmed ", "received_in_cash"} {
		assert.True(t, IsApprovedStatus(s), s)
	}
	for _, s := range []string{"", "PENDING", "OVERDUE", "RECEIVED_PARTIALLY"} {
		assert.False(t, IsApprovedStatus(s), s)
	}
}

func TestApplyStatusTransitions(t *testing.T) {
	b := &Bill{Status: "PENDING"}

	tr := b.ApplyStatus("RECEIVED")
	assert.True(t, tr.Approved)
	assert.True(t, tr.Changed())
	assert.Equal(t, "RECEIVED", b.Status)

	tr = b.ApplyStatus("RECEIVED")
	assert.False(t, tr.Approved)
	assert.False(t, tr.Changed())

	tr = b.ApplyStatus("CONFIRMED")
	assert.False(t, tr.Approved, "approved to approved is not a new approval")
	assert.True(t, tr.Changed())
}

func TestApplyStatusBlankKeepsStatus(t *testing.T) {
	b := &Bill{Status: "PENDING"}

	tr := b.ApplyStatus("  ")
	assert.False(t, tr.Changed())
	assert.Equal(t, "PENDING", b.Status)
}

func TestApplyStatusDeclined(t *testing.T) {
	b := &Bill{Status: "PENDING"}
	assert.True(t, b.ApplyStatus("OVERDUE").Declined)
	assert.False(t, b.ApplyStatus("REFUNDED").Declined, "already declined")

	paid := &Bill{Status: "RECEIVED"}
	assert.False(t, paid.ApplyStatus("REFUNDED").Declined, "refund after receipt is not a decline")
}

func TestLinkOrder(t *testing.T) {
	b := &Bill{}

	changed, err := b.LinkOrder("ord-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = b.LinkOrder("ord-1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = b.LinkOrder("ord-2")
	assert.ErrorIs(t, err, ErrOrderAlreadyLinked)
}

func TestBillingTypeFor(t *testing.T) {
	cases := map[string]BillingType{
		"PIX":         BillingPix,
		"credit_card": BillingCreditCard,
		"DEBIT_CARD":  BillingCreditCard,
		"BOLETO":      BillingBoleto,
	}
	for in, want := range cases {
		got, err := BillingTypeFor(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := BillingTypeFor("CASH")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestDataImageURL(t *testing.T) {
	assert.Equal(t, "", DataImageURL(" "))
	assert.Equal(t, "data:image/png;base64,iVBOR", DataImageURL("iVBOR"))
	assert.Equal(t, "data:image/gif;base64,R0l", DataImageURL("data:image/gif;base64,R0l"))
}

func TestSettlementEvent(t *testing.T) {
	_, ok := (&Bill{PaymentID: "pay_1", Status: "PENDING"}).SettlementEvent()
	assert.False(t, ok)

	evt, ok := (&Bill{PaymentID: "pay_1", OrderID: "ord_1", Status: "CONFIRMED"}).SettlementEvent()
	require.True(t, ok)
	assert.True(t, evt.Approved)
	assert.Equal(t, "ord_1", evt.OrderID)

	evt, ok = (&Bill{PaymentID: "pay_1", Status: "OVERDUE"}).SettlementEvent()
	require.True(t, ok)
	assert.False(t, evt.Approved)
}
