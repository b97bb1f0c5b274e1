package store

import (
	"testing"

	"fleetrouting/pkg/apperror"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{ShipmentPending, ShipmentScheduled, true},
		{ShipmentScheduled, ShipmentDispatched, true},
		{ShipmentDispatched, ShipmentInTransit, true},
		{ShipmentInTransit, ShipmentDelivered, true},
		{ShipmentScheduled, ShipmentPending, true},
		{ShipmentFailed, ShipmentPending, true},
		{ShipmentPending, ShipmentFailed, true},
		{ShipmentInTransit, ShipmentFailed, true},
		{ShipmentPending, ShipmentDelivered, false},
		{ShipmentDelivered, ShipmentPending, false},
		{ShipmentDelivered, ShipmentFailed, false},
		{ShipmentDispatched, ShipmentScheduled, false},
		{ShipmentInTransit, ShipmentPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValidateTransition_Illegal(t *testing.T) {
	err := ValidateTransition(ShipmentDelivered, ShipmentPending)
	if err == nil {
		t.Fatal("expected error for delivered -> pending")
	}
	if !apperror.Is(err, apperror.CodeInvalidTransition) {
		t.Errorf("error code = %v, want CodeInvalidTransition", err)
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	if err := ValidateTransition("teleported", ShipmentPending); err == nil {
		t.Error("expected error for unknown source status")
	}
	if err := ValidateTransition(ShipmentPending, "teleported"); err == nil {
		t.Error("expected error for unknown target status")
	}
}

func TestValidateTransition_Legal(t *testing.T) {
	if err := ValidateTransition(ShipmentPending, ShipmentScheduled); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
