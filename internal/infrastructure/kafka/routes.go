package kafka

import (
	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/eventcodec"
)

const (
	TopicPaymentRequested          = "payment-requested"
	TopicPaymentApproved           = "payment-approved"
	TopicOrderCompleted            = "order-completed"
	TopicCustomerCreationRequested = "customer-creation-requested"
)

type Route struct {
	Topic  string
	Decode eventcodec.Decoder
}

// DefaultRoutes maps every saga event name to its topic.
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		domorder.PaymentRequestedEvent{}.EventName():             {Topic: TopicPaymentRequested, Decode: eventcodec.JSON[domorder.PaymentRequestedEvent]()},
		dompayment.PaymentApprovedEvent{}.EventName():            {Topic: TopicPaymentApproved, Decode: eventcodec.JSON[dompayment.PaymentApprovedEvent]()},
		domorder.OrderCompletedEvent{}.EventName():               {Topic: TopicOrderCompleted, Decode: eventcodec.JSON[domorder.OrderCompletedEvent]()},
		domcustomer.CustomerCreationRequestedEvent{}.EventName(): {Topic: TopicCustomerCreationRequested, Decode: eventcodec.JSON[domcustomer.CustomerCreationRequestedEvent]()},
	}
}
