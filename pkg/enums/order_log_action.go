package enums

// OrderLogAction is the action tag written to order_logs.
type OrderLogAction string

const (
	OrderLogActionCreate          OrderLogAction = "CREATE_ORDER"
	OrderLogActionCompleteCDK     OrderLogAction = "COMPLETE_CDK_ORDER"
	OrderLogActionStartGiftTimer  OrderLogAction = "START_GIFT_TIMER"
	OrderLogActionCompleteGift    OrderLogAction = "COMPLETE_GIFT_ORDER"
	OrderLogActionGiftTimerExpire OrderLogAction = "GIFT_TIMER_EXPIRED"
)

// String implements fmt.Stringer.
func (a OrderLogAction) String() string {
	return string(a)
}

// OperatorSystem is the operator role recorded for sweeper-driven transitions.
const OperatorSystem = "system"
