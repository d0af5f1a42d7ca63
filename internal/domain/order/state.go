package order

// OrderState implements the state pattern for order lifecycle transitions.
// Transitions only move forward; re-applying the current step is a no-op.
type OrderState interface {
	Status() Status
	OnPaymentRequested() (OrderState, error)
	OnPaymentApproved() (OrderState, error)
	OnPaymentDeclined() (OrderState, error)
	OnComplete() (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPaymentRequested:
		return paymentRequestedState{}
	case StatusPaymentApproved:
		return paymentApprovedState{}
	case StatusPaymentDeclined:
		return paymentDeclinedState{}
	case StatusCompleted:
		return completedState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentRequested() (OrderState, error) {
	return paymentRequestedState{}, nil
}

func (pendingState) OnPaymentApproved() (OrderState, error) {
	return paymentApprovedState{}, nil
}

func (pendingState) OnPaymentDeclined() (OrderState, error) {
	return paymentDeclinedState{}, nil
}

func (pendingState) OnComplete() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type paymentRequestedState struct{}

func (paymentRequestedState) Status() Status { return StatusPaymentRequested }

func (paymentRequestedState) OnPaymentRequested() (OrderState, error) {
	return paymentRequestedState{}, nil
}

func (paymentRequestedState) OnPaymentApproved() (OrderState, error) {
	return paymentApprovedState{}, nil
}

func (paymentRequestedState) OnPaymentDeclined() (OrderState, error) {
	return paymentDeclinedState{}, nil
}

func (paymentRequestedState) OnComplete() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type paymentApprovedState struct{}

func (paymentApprovedState) Status() Status { return StatusPaymentApproved }

func (paymentApprovedState) OnPaymentRequested() (OrderState, error) {
	return paymentApprovedState{}, nil
}

func (paymentApprovedState) OnPaymentApproved() (OrderState, error) {
	return paymentApprovedState{}, nil
}

func (paymentApprovedState) OnPaymentDeclined() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paymentApprovedState) OnComplete() (OrderState, error) {
	return completedState{}, nil
}

type paymentDeclinedState struct{}

func (paymentDeclinedState) Status() Status { return StatusPaymentDeclined }

func (paymentDeclinedState) OnPaymentRequested() (OrderState, error) {
	return paymentDeclinedState{}, nil
}

// A late receipt after a decline still settles the order.
func (paymentDeclinedState) OnPaymentApproved() (OrderState, error) {
	return paymentApprovedState{}, nil
}

func (paymentDeclinedState) OnPaymentDeclined() (OrderState, error) {
	return paymentDeclinedState{}, nil
}

func (paymentDeclinedState) OnComplete() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnPaymentRequested() (OrderState, error) {
	return completedState{}, nil
}

func (completedState) OnPaymentApproved() (OrderState, error) {
	return completedState{}, nil
}

func (completedState) OnPaymentDeclined() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnComplete() (OrderState, error) {
	return completedState{}, nil
}
