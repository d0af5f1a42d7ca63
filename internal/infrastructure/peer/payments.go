package peer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/httpx"

	"github.com/shopspring/decimal"
)

// LocalPayments charges through the payment service running in the same process.
type LocalPayments struct {
	charge *apppayment.CreateChargeUseCase
}

var _ apporder.Payments = (*LocalPayments)(nil)

func NewLocalPayments(charge *apppayment.CreateChargeUseCase) *LocalPayments {
	return &LocalPayments{charge: charge}
}

func (p *LocalPayments) CreateCharge(ctx context.Context, req apporder.ChargeRequest) (*apporder.Charge, error) {
	res, err := p.charge.Execute(ctx, apppayment.CreateChargeInput{
		UserID:      req.UserID,
		Method:      string(req.Method),
		Value:       req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}
	return &apporder.Charge{
		PaymentID:  res.PaymentID,
		CustomerID: res.CustomerID,
		Artifacts: domorder.PaymentArtifacts{
			PaymentLink:    res.PaymentLink,
			InvoiceURL:     res.InvoiceURL,
			PixQrCodeImage: res.PixQrCodeImage,
			PixCopyPaste:   res.PixCopyPaste,
		},
	}, nil
}

type billRequest struct {
	UserID      int64           `json:"userId"`
	BillingType string          `json:"billingType"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

type billResponse struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customerId"`
	InvoiceURL     string `json:"invoiceUrl"`
	PaymentLink    string `json:"paymentLink"`
	PixQrCodeImage string `json:"pixQrCodeImage"`
	PixCopyPaste   string `json:"pixCopyPaste"`
}

// HTTPPayments creates bills on a remote payment service.
type HTTPPayments struct {
	client *httpx.Client
}

var _ apporder.Payments = (*HTTPPayments)(nil)

func NewHTTPPayments(baseURL, apiKey string, timeout time.Duration) *HTTPPayments {
	return &HTTPPayments{client: httpx.New(httpx.Options{
		Name:    "payment",
		BaseURL: baseURL,
		Timeout: timeout,
		Header:  http.Header{"access_token": {apiKey}},
	})}
}

func (p *HTTPPayments) CreateCharge(ctx context.Context, req apporder.ChargeRequest) (*apporder.Charge, error) {
	var out billResponse
	err := p.client.Do(ctx, http.MethodPost, "/api/v1/bills", billRequest{
		UserID:      req.UserID,
		BillingType: string(req.Method),
		Value:       req.Amount,
		Description: req.Description,
	}, &out)
	if err != nil {
		return nil, peerError(fmt.Errorf("payment: create bill: %w", err))
	}
	return &apporder.Charge{
		PaymentID:  out.ID,
		CustomerID: out.CustomerID,
		Artifacts: domorder.PaymentArtifacts{
			PaymentLink:    out.PaymentLink,
			InvoiceURL:     out.InvoiceURL,
			PixQrCodeImage: out.PixQrCodeImage,
			PixCopyPaste:   out.PixCopyPaste,
		},
	}, nil
}
