package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/money"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseCreateCharge = "payment.create_charge"

type CreateChargeInput struct {
	UserID      int64
	Method      string
	Value       decimal.Decimal
	Description string
}

type ChargeResult struct {
	PaymentID      string
	CustomerID     string
	Status         string
	DateCreated    time.Time
	InvoiceURL     string
	PaymentLink    string
	PixQrCodeImage string
	PixCopyPaste   string
}

// CreateChargeUseCase issues a charge with the gateway for a provisioned customer and stores its Bill.
type CreateChargeUseCase struct {
	bills       dompayment.Repository
	customers   domcustomer.Repository
	gateway     dompayment.Gateway
	idGenerator IDGenerator
	in          application.Instruments
	now         func() time.Time
}

var _ application.UseCase[CreateChargeInput, *ChargeResult] = (*CreateChargeUseCase)(nil)

func NewCreateChargeUseCase(
	bills dompayment.Repository,
	customers domcustomer.Repository,
	gateway dompayment.Gateway,
	idGen IDGenerator,
	tel observability.Observability,
) *CreateChargeUseCase {
	return &CreateChargeUseCase{
		bills:       bills,
		customers:   customers,
		gateway:     gateway,
		idGenerator: idGen,
		in:          application.NewInstruments(tel, paymentService),
		now:         time.Now,
	}
}

func (uc *CreateChargeUseCase) Execute(ctx context.Context, cmd CreateChargeInput) (_ *ChargeResult, err error) {
	logger := uc.in.Logger(ctx, useCaseCreateCharge,
		observability.F("user_id", cmd.UserID),
		observability.F("billing_method", cmd.Method),
	)

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"CreateCharge",
		attribute.String("use_case", useCaseCreateCharge),
		attribute.Int64("payment.user_id", cmd.UserID),
		attribute.String("payment.value", money.Format(cmd.Value)),
	)
	start := time.Now()
	statusText := "OK"
	var bill *dompayment.Bill

	defer func() {
		fields := []observability.Field{}
		if bill != nil {
			fields = append(fields,
				observability.F("payment_id", bill.PaymentID),
				observability.F("bill_status", bill.Status),
			)
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseCreateCharge,
			Outcome: application.Outcome(err),
			Status:  statusText,
			Start:   start,
			Err:     err,
			Fields:  fields,
		})
	}()

	if !cmd.Value.IsPositive() {
		statusText = "VALUE_INVALID"
		return nil, application.NewValidation("Bill value must be greater than zero", nil)
	}
	billingType, berr := dompayment.BillingTypeFor(cmd.Method)
	if berr != nil {
		statusText = "BILLING_TYPE_INVALID"
		return nil, application.NewValidation("Unsupported billing type "+cmd.Method, berr)
	}

	mapping, cerr := uc.customers.FindByUserID(ctx, cmd.UserID)
	if errors.Is(cerr, domcustomer.ErrNotFound) {
		statusText = "CUSTOMER_NOT_FOUND"
		return nil, application.NewNotFound("Asaas customer not found", cerr)
	}
	if cerr != nil {
		statusText = "CUSTOMER_LOOKUP_FAILED"
		return nil, wrapRepositoryError(cerr)
	}
	customerID := strings.TrimSpace(mapping.ExternalCustomerID)
	if customerID == "" {
		statusText = "CUSTOMER_ID_MISSING"
		return nil, application.NewValidation("Customer id not found for informed user", nil)
	}

	callStart := time.Now()
	charge, gerr := uc.gateway.CreateCharge(ctx, dompayment.ChargeRequest{
		CustomerID:  customerID,
		BillingType: billingType,
		Value:       money.Round(cmd.Value),
		DueDate:     uc.now().AddDate(0, 0, 1),
		Description: cmd.Description,
	})
	uc.in.External(gatewayPeer, "payments.create", application.Outcome(gerr), callStart)
	if gerr != nil {
		statusText = "GATEWAY_REJECTED"
		return nil, application.NewUpstream("Failed to create payment on Asaas", gerr)
	}
	if charge == nil || strings.TrimSpace(charge.ID) == "" {
		statusText = "GATEWAY_EMPTY_RESPONSE"
		return nil, application.NewUpstream("Failed to create payment on Asaas", dompayment.ErrGatewayRejected)
	}

	bill = &dompayment.Bill{
		ID:          uc.idGenerator.NewID(),
		PaymentID:   strings.TrimSpace(charge.ID),
		CustomerID:  customer(charge.CustomerID, customerID),
		Status:      strings.TrimSpace(charge.Status),
		Value:       money.Round(cmd.Value),
		DateCreated: charge.DateCreated,
		InvoiceURL:  charge.InvoiceURL,
		PaymentLink: charge.PaymentLink,
		UpdatedAt:   uc.now().UTC(),
	}

	if billingType == dompayment.BillingPix {
		qrStart := time.Now()
		qr, qerr := uc.gateway.GetPixQrCode(ctx, bill.PaymentID)
		uc.in.External(gatewayPeer, "payments.pix_qr_code", application.Outcome(qerr), qrStart)
		if qerr != nil || qr == nil {
			statusText = "PIX_QR_CODE_FAILED"
			if qerr == nil {
				qerr = dompayment.ErrGatewayRejected
			}
			return nil, application.NewUpstream("Failed to retrieve PIX QR Code on Asaas", qerr)
		}
		bill.PixQrCodeImage = dompayment.DataImageURL(qr.EncodedImage)
		bill.PixCopyPaste = qr.Payload
		if bill.PixQrCodeImage != "" {
			bill.InvoiceURL = bill.PixQrCodeImage
		}
	}

	// A charge settled on creation announces itself right away. The order may not exist yet,
	// so linking the bill to its order announces it again.
	var events []domoutbox.Event
	if dompayment.IsApprovedStatus(bill.Status) {
		events = append(events, dompayment.NewPaymentApprovedEvent(bill, bill.Value, true))
	}
	if ierr := uc.bills.Insert(ctx, bill, events...); ierr != nil {
		statusText = "BILL_INSERT_FAILED"
		return nil, wrapRepositoryError(ierr)
	}

	span.SetAttributes(attribute.String("payment.id", bill.PaymentID))
	return &ChargeResult{
		PaymentID:      bill.PaymentID,
		CustomerID:     bill.CustomerID,
		Status:         bill.Status,
		DateCreated:    bill.DateCreated,
		InvoiceURL:     bill.InvoiceURL,
		PaymentLink:    bill.PaymentLink,
		PixQrCodeImage: bill.PixQrCodeImage,
		PixCopyPaste:   bill.PixCopyPaste,
	}, nil
}

func customer(fromGateway, fallback string) string {
	if s := strings.TrimSpace(fromGateway); s != "" {
		return s
	}
	return fallback
}
