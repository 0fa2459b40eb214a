package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
)

// EvidenceDTO groups the opaque screenshot references attached to an order.
type EvidenceDTO struct {
	OrderContentFileID    *string `json:"order_content_file_id"`
	BuyerIDPageFileID     *string `json:"buyer_id_page_file_id"`
	CompletionProofFileID *string `json:"completion_proof_file_id"`
}

// OrderDTO is the transport shape of an order, including derived display names.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	BuyerGameID      string              `json:"buyer_game_id"`
	OrderType        enums.OrderType     `json:"order_type"`
	Status           enums.OrderStatus   `json:"status"`
	GameID           uuid.UUID           `json:"game_id"`
	GameName         *string             `json:"game_name"`
	Evidence         EvidenceDTO         `json:"screenshots"`
	Remarks          string              `json:"remarks"`
	CSID             uuid.UUID           `json:"cs_id"`
	CSNickname       *string             `json:"cs_nickname"`
	SupplierID       *uuid.UUID          `json:"supplier_id"`
	SupplierNickname *string             `json:"supplier_nickname"`
	CostPrice        decimal.NullDecimal `json:"cost_price"`
	StartTime        *time.Time          `json:"start_time"`
	ExpireTime       *time.Time          `json:"expire_time"`
	CompleteTime     *time.Time          `json:"complete_time"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// FromModel maps a bare order. Display names stay nil.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	return &OrderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		BuyerGameID: o.BuyerGameID,
		OrderType:   o.OrderType,
		Status:      o.Status,
		GameID:      o.GameID,
		Evidence: EvidenceDTO{
			OrderContentFileID:    o.OrderContentFileID,
			BuyerIDPageFileID:     o.BuyerIDPageFileID,
			CompletionProofFileID: o.CompletionProofFileID,
		},
		Remarks:      o.Remarks,
		CSID:         o.CSID,
		SupplierID:   o.SupplierID,
		CostPrice:    o.CostPrice,
		StartTime:    o.StartTime,
		ExpireTime:   o.ExpireTime,
		CompleteTime: o.CompleteTime,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// FromRow maps a decorated order.
func FromRow(row OrderRow) OrderDTO {
	dto := FromModel(&row.Order)
	dto.CSNickname = row.CSNickname
	dto.SupplierNickname = row.SupplierNickname
	dto.GameName = row.GameName
	return *dto
}

// CreateOrderInput is a new order request. GameID is honoured for admins only.
type CreateOrderInput struct {
	OrderNumber        string
	BuyerGameID        string
	OrderType          enums.OrderType
	GameID             *uuid.UUID
	OrderContentFileID string
	BuyerIDPageFileID  string
	Remarks            string
	AssignedSupplierID *uuid.UUID
}

// CompleteInput finishes an order with its completion proof and optional cost.
type CompleteInput struct {
	OrderID               uuid.UUID
	CompletionProofFileID string
	CostPrice             decimal.NullDecimal
}

// ListOrdersInput narrows ViewOrders. GameID is honoured for admins only.
type ListOrdersInput struct {
	Status   enums.OrderStatus
	Type     enums.OrderType
	GameID   *uuid.UUID
	Page     int
	PageSize int
}
