package store

import (
	"fmt"

	"fleetrouting/pkg/apperror"
)

// shipmentTransitions enumerates the legal status moves. A shipment can be
// failed from any active state and resurrected to pending only from
// scheduled or failed.
var shipmentTransitions = map[string][]string{
	ShipmentPending:    {ShipmentScheduled, ShipmentFailed},
	ShipmentScheduled:  {ShipmentDispatched, ShipmentPending, ShipmentFailed},
	ShipmentDispatched: {ShipmentInTransit, ShipmentFailed},
	ShipmentInTransit:  {ShipmentDelivered, ShipmentFailed},
	ShipmentDelivered:  {},
	ShipmentFailed:     {ShipmentPending},
}

// CanTransition reports whether a shipment may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, next := range shipmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an invalid-transition error when the move is
// not legal.
func ValidateTransition(from, to string) error {
	if _, known := shipmentTransitions[from]; !known {
		return apperror.New(apperror.CodeInvalidTransition, fmt.Sprintf("unknown shipment status %q", from))
	}
	if _, known := shipmentTransitions[to]; !known {
		return apperror.New(apperror.CodeInvalidTransition, fmt.Sprintf("unknown shipment status %q", to))
	}
	if !CanTransition(from, to) {
		return apperror.New(apperror.CodeInvalidTransition, fmt.Sprintf("cannot move shipment from %s to %s", from, to))
	}
	return nil
}
