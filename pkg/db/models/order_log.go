package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLog is an append-only audit entry for an order.
type OrderLog struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	OperatorID   *uuid.UUID `gorm:"column:operator_id;type:uuid"`
	OperatorRole string     `gorm:"column:operator_role;type:text;not null"`
	Action       string     `gorm:"column:action;type:text;not null"`
	Details      string     `gorm:"column:details;type:text;not null;default:''"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}
