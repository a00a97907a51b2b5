package orders

import (
	"fmt"
	"time"
)

// ApplyPayment moves a CREATED order to PAID, stamping paidAt and the gateway reference.
// An order that is already paid (or delivered) is returned unchanged with changed=false:
// gateways deliver success callbacks at least once, so a repeat is not an error.
func ApplyPayment(o Order, ref PaymentReference, confirmedAt time.Time) (next Order, changed bool, err error) {
	if err := o.CheckIntegrity(); err != nil {
		return o, false, err
	}

	switch o.State {
	case StatePaid, StateDelivered:
		return o, false, nil
	case StateCreated:
		if ref.ReferenceID == "" {
			return o, false, fmt.Errorf("%w: missing reference id", ErrInvalidPayment)
		}
		paidAt := confirmedAt.UTC()
		o.State = StatePaid
		o.PaidAt = &paidAt
		o.PaymentResult = &ref
		o.UpdatedAt = paidAt
		return o, true, nil
	}
	// unreachable: CheckIntegrity rejects unknown states
	return o, false, fmt.Errorf("%w: order %s in state %q", ErrInvalidTransition, o.ID, o.State)
}

// ApplyDelivery moves a PAID order to DELIVERED. Only administrators may confirm delivery,
// and never before payment. A delivered order is returned unchanged with changed=false.
func ApplyDelivery(o Order, confirmedAt time.Time, actor Actor) (next Order, changed bool, err error) {
	if !actor.IsAdmin {
		return o, false, fmt.Errorf("%w: actor %q cannot confirm delivery", ErrUnauthorized, actor.ID)
	}
	if err := o.CheckIntegrity(); err != nil {
		return o, false, err
	}

	switch o.State {
	case StateCreated:
		return o, false, fmt.Errorf("%w: order %s", ErrPaymentRequired, o.ID)
	case StateDelivered:
		return o, false, nil
	case StatePaid:
		deliveredAt := confirmedAt.UTC()
		o.State = StateDelivered
		o.DeliveredAt = &deliveredAt
		o.DeliveredBy = actor.ID
		o.UpdatedAt = deliveredAt
		return o, true, nil
	}
	return o, false, fmt.Errorf("%w: order %s in state %q", ErrInvalidTransition, o.ID, o.State)
}
