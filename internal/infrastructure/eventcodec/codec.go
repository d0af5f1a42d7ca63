// Package eventcodec turns stored or transported event payloads back into typed saga events.
package eventcodec

import (
	"encoding/json"
	"fmt"

	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// Decoder turns a payload back into a typed event.
type Decoder func(payload []byte) (domoutbox.Event, error)

// JSON decodes payloads into T. Unknown fields are ignored.
func JSON[T domoutbox.Event]() Decoder {
	return func(payload []byte) (domoutbox.Event, error) {
		var evt T
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("eventcodec: decode %T: %w", evt, err)
		}
		return evt, nil
	}
}

// Saga returns a decoder for every event the checkout saga exchanges, by event name.
func Saga() map[string]Decoder {
	return map[string]Decoder{
		domorder.PaymentRequestedEvent{}.EventName():             JSON[domorder.PaymentRequestedEvent](),
		dompayment.PaymentApprovedEvent{}.EventName():            JSON[dompayment.PaymentApprovedEvent](),
		domorder.OrderCompletedEvent{}.EventName():               JSON[domorder.OrderCompletedEvent](),
		domcustomer.CustomerCreationRequestedEvent{}.EventName(): JSON[domcustomer.CustomerCreationRequestedEvent](),
	}
}

// Decode looks up the decoder for name in decoders.
func Decode(decoders map[string]Decoder, name string, payload []byte) (domoutbox.Event, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("eventcodec: unknown event %q", name)
	}
	return dec(payload)
}
