package order

// OrderState implements the state pattern for payment status transitions.
type OrderState interface {
	Status() PaymentStatus
	OnPaymentSucceeded(o *Order) (OrderState, error)
	OnPaymentFailed(o *Order) (OrderState, error)
	OnCanceled(o *Order) (OrderState, error)
}

// State returns the state object for the order's current payment status.
func (o *Order) State() OrderState {
	switch o.PaymentStatus {
	case PaymentCompleted:
		return completedState{}
	case PaymentFailed:
		return failedState{}
	case PaymentCanceled:
		return canceledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() PaymentStatus { return PaymentPending }

func (pendingState) OnPaymentSucceeded(o *Order) (OrderState, error) {
	o.Paid = true
	return completedState{}, nil
}

func (pendingState) OnPaymentFailed(*Order) (OrderState, error) {
	return failedState{}, nil
}

func (pendingState) OnCanceled(*Order) (OrderState, error) {
	return canceledState{}, nil
}

type completedState struct{}

func (completedState) Status() PaymentStatus { return PaymentCompleted }

func (completedState) OnPaymentSucceeded(*Order) (OrderState, error) {
	return completedState{}, nil
}

// paid is sticky
func (completedState) OnPaymentFailed(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnCanceled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type failedState struct{}

func (failedState) Status() PaymentStatus { return PaymentFailed }

// A later successful attempt wins over an earlier failure.
func (failedState) OnPaymentSucceeded(o *Order) (OrderState, error) {
	o.Paid = true
	return completedState{}, nil
}

func (failedState) OnPaymentFailed(*Order) (OrderState, error) {
	return failedState{}, nil
}

func (failedState) OnCanceled(*Order) (OrderState, error) {
	return canceledState{}, nil
}

type canceledState struct{}

func (canceledState) Status() PaymentStatus { return PaymentCanceled }

func (canceledState) OnPaymentSucceeded(*Order) (OrderState, error) {
	return nil, ErrTerminal
}

func (canceledState) OnPaymentFailed(*Order) (OrderState, error) {
	return nil, ErrTerminal
}

func (canceledState) OnCanceled(*Order) (OrderState, error) {
	return canceledState{}, nil
}
