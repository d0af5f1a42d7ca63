package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	customerService   = "payment-service"
	useCaseProvision  = "customer.provision"
	gatewayPeer       = "asaas"
	endpointCustomers = "customers.create"
)

var (
	ErrRepository    = errors.New("customer: repository failure")
	ErrEmptyCustomer = errors.New("customer: gateway returned no customer id")
)

type IDGenerator interface {
	NewID() string
}

type ProvisionResult struct {
	Created            bool
	ExternalCustomerID string
}

// ProvisionCustomerUseCase creates the gateway customer for a new user, at most once per user id.
type ProvisionCustomerUseCase struct {
	repo        domcustomer.Repository
	gateway     dompayment.Gateway
	idGenerator IDGenerator
	in          application.Instruments
}

var _ application.UseCase[domcustomer.CustomerCreationRequestedEvent, *ProvisionResult] = (*ProvisionCustomerUseCase)(nil)

func NewProvisionCustomerUseCase(repo domcustomer.Repository, gateway dompayment.Gateway, idGen IDGenerator, tel observability.Observability) *ProvisionCustomerUseCase {
	return &ProvisionCustomerUseCase{
		repo:        repo,
		gateway:     gateway,
		idGenerator: idGen,
		in:          application.NewInstruments(tel, customerService),
	}
}

func (uc *ProvisionCustomerUseCase) Execute(ctx context.Context, e domcustomer.CustomerCreationRequestedEvent) (_ *ProvisionResult, err error) {
	logger := uc.in.Logger(ctx, useCaseProvision, observability.F("user_id", e.PartitionKey()))

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"ProvisionCustomer",
		attribute.String("use_case", useCaseProvision),
		attribute.String("customer.user_id", e.PartitionKey()),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &ProvisionResult{}

	defer func() {
		if err != nil {
			outcome = "error"
		}
		fields := []observability.Field{}
		if result.ExternalCustomerID != "" {
			fields = append(fields, observability.F("external_customer_id", result.ExternalCustomerID))
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseProvision,
			Outcome: outcome,
			Status:  statusText,
			Start:   start,
			Err:     err,
			Fields:  fields,
		})
	}()

	if e.UserID == nil {
		outcome, statusText = "ignored", "USER_ID_MISSING"
		logger.Warn("customer_event_without_user_id")
		return result, nil
	}
	userID := *e.UserID

	exists, xerr := uc.repo.ExistsByUserID(ctx, userID)
	if xerr != nil {
		statusText = "MAPPING_LOOKUP_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, xerr)
	}
	if exists {
		outcome, statusText = "ignored", "ALREADY_PROVISIONED"
		return result, nil
	}

	name := domcustomer.DisplayName(e.Name, e.LastName, e.Email)
	callStart := time.Now()
	created, gerr := uc.gateway.CreateCustomer(ctx, dompayment.CustomerRequest{
		Name:              name,
		CpfCnpj:           e.NationalID,
		Email:             e.Email,
		Phone:             e.Phone,
		MobilePhone:       e.Phone,
		Address:           e.Address,
		PostalCode:        e.Zipcode,
		ExternalReference: domcustomer.ExternalReference(userID),
	})
	uc.in.External(gatewayPeer, endpointCustomers, application.Outcome(gerr), callStart)
	if gerr != nil {
		statusText = "GATEWAY_REJECTED"
		return nil, application.NewUpstream("Failed to create customer on Asaas", gerr)
	}
	if created == nil || strings.TrimSpace(created.ID) == "" {
		statusText = "GATEWAY_EMPTY_RESPONSE"
		return nil, application.NewUpstream("Failed to create customer on Asaas", ErrEmptyCustomer)
	}
	result.ExternalCustomerID = strings.TrimSpace(created.ID)

	mapping := &domcustomer.Mapping{
		ID:                 uc.idGenerator.NewID(),
		ExternalCustomerID: result.ExternalCustomerID,
		UserID:             userID,
		Name:               domcustomer.FirstNonBlank(created.Name, name, e.Email),
		Email:              domcustomer.FirstNonBlank(created.Email, e.Email),
		CreatedAt:          time.Now().UTC(),
	}
	if ierr := uc.repo.Insert(ctx, mapping); ierr != nil {
		if errors.Is(ierr, domcustomer.ErrConflict) {
			// a concurrent delivery won the insert
			outcome, statusText = "ignored", "ALREADY_PROVISIONED"
			return result, nil
		}
		statusText = "MAPPING_INSERT_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, ierr)
	}

	result.Created = true
	span.AddEvent("customer.provisioned")
	return result, nil
}
