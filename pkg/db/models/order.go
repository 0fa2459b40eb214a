package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk/pkg/enums"
)

// Order is a single fulfillment request raised by an agent for a game.
type Order struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber           string              `gorm:"column:order_number;type:text;not null"`
	BuyerGameID           string              `gorm:"column:buyer_game_id;type:text;not null"`
	OrderType             enums.OrderType     `gorm:"column:order_type;type:text;not null"`
	Status                enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	GameID                uuid.UUID           `gorm:"column:game_id;type:uuid;not null;index"`
	OrderContentFileID    *string             `gorm:"column:order_content_file_id"`
	BuyerIDPageFileID     *string             `gorm:"column:buyer_id_page_file_id"`
	CompletionProofFileID *string             `gorm:"column:completion_proof_file_id"`
	Remarks               string              `gorm:"column:remarks;type:text;not null;default:''"`
	CSID                  uuid.UUID           `gorm:"column:cs_id;type:uuid;not null;index"`
	SupplierID            *uuid.UUID          `gorm:"column:supplier_id;type:uuid;index"`
	CostPrice             decimal.NullDecimal `gorm:"column:cost_price;type:numeric(12,2)"`
	StartTime             *time.Time          `gorm:"column:start_time"`
	ExpireTime            *time.Time          `gorm:"column:expire_time"`
	CompleteTime          *time.Time          `gorm:"column:complete_time"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsUnassigned reports whether no fulfiller has been bound yet.
func (o Order) IsUnassigned() bool {
	return o.SupplierID == nil || *o.SupplierID == uuid.Nil
}

// AssignedTo reports whether the order is bound to the given fulfiller.
func (o Order) AssignedTo(userID uuid.UUID) bool {
	return o.SupplierID != nil && *o.SupplierID == userID
}
