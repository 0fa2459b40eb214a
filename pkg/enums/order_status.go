package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
//
// cdk:  pending -> completed
// gift: pending -> timing -> ready_to_send -> completed
//
// cancelled is a defined value that no transition currently produces.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusTiming      OrderStatus = "timing"
	OrderStatusReadyToSend OrderStatus = "ready_to_send"
	OrderStatusCompleted   OrderStatus = "completed"
	OrderStatusCancelled   OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusTiming,
	OrderStatusReadyToSend,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
