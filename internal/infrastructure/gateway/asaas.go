// Package gateway implements the payment provider port against Asaas and a local sandbox.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/httpx"
)

const asaasDate = "2006-01-02"

type chargeRequest struct {
	Customer          string      `json:"customer"`
	BillingType       string      `json:"billingType"`
	Value             json.Number `json:"value"`
	DueDate           string      `json:"dueDate"`
	Description       string      `json:"description,omitempty"`
	ExternalReference string      `json:"externalReference,omitempty"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	Customer    string `json:"customer"`
	Status      string `json:"status"`
	DateCreated string `json:"dateCreated"`
	InvoiceURL  string `json:"invoiceUrl"`
	PaymentLink string `json:"paymentLink"`
}

type pixQrCodeResponse struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type customerRequest struct {
	Name              string `json:"name"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	Address           string `json:"address,omitempty"`
	PostalCode        string `json:"postalCode,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type customerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Asaas talks to the Asaas v3 REST API.
type Asaas struct {
	client *httpx.Client
	now    func() time.Time
}

var _ dompayment.Gateway = (*Asaas)(nil)

func NewAsaas(baseURL, apiKey string, timeout time.Duration) *Asaas {
	return &Asaas{
		client: httpx.New(httpx.Options{
			Name:    "asaas",
			BaseURL: baseURL,
			Timeout: timeout,
			Header:  http.Header{"access_token": {apiKey}},
		}),
		now: time.Now,
	}
}

func (a *Asaas) CreateCharge(ctx context.Context, req dompayment.ChargeRequest) (*dompayment.Charge, error) {
	body := chargeRequest{
		Customer:          req.CustomerID,
		BillingType:       string(req.BillingType),
		Value:             json.Number(req.Value.StringFixed(2)),
		DueDate:           req.DueDate.Format(asaasDate),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}
	var out chargeResponse
	if err := a.client.Do(ctx, http.MethodPost, "/v3/payments", body, &out); err != nil {
		return nil, classify("create charge", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, fmt.Errorf("%w: create charge: empty payment id", dompayment.ErrGatewayRejected)
	}
	created, err := time.Parse(asaasDate, out.DateCreated)
	if err != nil {
		created = a.now().UTC()
	}
	return &dompayment.Charge{
		ID:          out.ID,
		CustomerID:  out.Customer,
		Status:      out.Status,
		DateCreated: created,
		InvoiceURL:  out.InvoiceURL,
		PaymentLink: out.PaymentLink,
	}, nil
}

func (a *Asaas) GetPixQrCode(ctx context.Context, paymentID string) (*dompayment.PixQrCode, error) {
	var out pixQrCodeResponse
	path := "/v3/payments/" + url.PathEscape(paymentID) + "/pixQrCode"
	if err := a.client.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, classify("pix qr code", err)
	}
	return &dompayment.PixQrCode{EncodedImage: out.EncodedImage, Payload: out.Payload}, nil
}

func (a *Asaas) CreateCustomer(ctx context.Context, req dompayment.CustomerRequest) (*dompayment.Customer, error) {
	body := customerRequest{
		Name:              req.Name,
		CpfCnpj:           req.CpfCnpj,
		Email:             req.Email,
		Phone:             req.Phone,
		MobilePhone:       req.MobilePhone,
		Address:           req.Address,
		PostalCode:        req.PostalCode,
		ExternalReference: req.ExternalReference,
	}
	var out customerResponse
	if err := a.client.Do(ctx, http.MethodPost, "/v3/customers", body, &out); err != nil {
		return nil, classify("create customer", err)
	}
	return &dompayment.Customer{ID: out.ID, Name: out.Name, Email: out.Email}, nil
}

// classify marks 4xx answers as rejections; transport, 5xx and open-breaker errors pass through.
func classify(op string, err error) error {
	if httpx.IsRejected(err) {
		return fmt.Errorf("%w: %s: %w", dompayment.ErrGatewayRejected, op, err)
	}
	return fmt.Errorf("gateway: %s: %w", op, err)
}
