package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// Sandbox fakes the gateway for local runs: sequential ids and a fake PIX payload. Card charges
// are captured on creation and come back CONFIRMED; every other charge stays PENDING.
type Sandbox struct {
	charges   atomic.Int64
	customers atomic.Int64
}

var _ dompayment.Gateway = (*Sandbox)(nil)

func NewSandbox() *Sandbox { return &Sandbox{} }

func (s *Sandbox) CreateCharge(_ context.Context, req dompayment.ChargeRequest) (*dompayment.Charge, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, fmt.Errorf("%w: customer is required", dompayment.ErrGatewayRejected)
	}
	id := fmt.Sprintf("pay_sandbox_%06d", s.charges.Add(1))
	status := "PENDING"
	if req.BillingType == dompayment.BillingCreditCard {
		status = "CONFIRMED"
	}
	return &dompayment.Charge{
		ID:          id,
		CustomerID:  req.CustomerID,
		Status:      status,
		DateCreated: time.Now().UTC(),
		InvoiceURL:  "https://sandbox.invalid/i/" + id,
	}, nil
}

func (s *Sandbox) GetPixQrCode(_ context.Context, paymentID string) (*dompayment.PixQrCode, error) {
	return &dompayment.PixQrCode{
		EncodedImage: base64.StdEncoding.EncodeToString([]byte("sandbox-qr:" + paymentID)),
		Payload:      "00020126580014br.gov.bcb.pix0136" + paymentID,
	}, nil
}

func (s *Sandbox) CreateCustomer(_ context.Context, req dompayment.CustomerRequest) (*dompayment.Customer, error) {
	return &dompayment.Customer{
		ID:    fmt.Sprintf("cus_sandbox_%06d", s.customers.Add(1)),
		Name:  req.Name,
		Email: req.Email,
	}, nil
}
