package payment

import (
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

const (
	paymentService = "payment-service"
	gatewayPeer    = "asaas"
)

var ErrRepository = errors.New("payment: repository failure")

type IDGenerator interface {
	NewID() string
}

func wrapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dompayment.ErrConflict):
		return &application.Error{Kind: application.ErrConflict, Msg: "Bill already exists", Err: err}
	case errors.Is(err, dompayment.ErrNotFound):
		return &application.Error{Kind: application.ErrNotFound, Err: err}
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
