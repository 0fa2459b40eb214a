package actions

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk/internal/orders"
	pkgauth "github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/enums"
)

// Order action tags.
const (
	ActionCreateOrder         = "createOrder"
	ActionViewOrders          = "viewOrders"
	ActionViewOrderDetails    = "viewOrderDetails"
	ActionProcessCdkOrder     = "processCdkOrder"
	ActionStartGiftOrderTimer = "startGiftOrderTimer"
	ActionCompleteGiftOrder   = "completeGiftOrder"
	ActionGetDailyOrderStats  = "getDailyOrderStats"
)

type orderHandlers struct {
	svc orders.Service
}

// NewOrderRegistry registers the order lifecycle and reporting actions.
func NewOrderRegistry(svc orders.Service) (*Registry, error) {
	h := orderHandlers{svc: svc}
	return NewRegistry(
		Command{Name: ActionCreateOrder, Handler: h.createOrder},
		Command{Name: ActionViewOrders, Handler: h.viewOrders},
		Command{Name: ActionViewOrderDetails, Handler: h.viewOrderDetails},
		Command{Name: ActionProcessCdkOrder, Handler: h.processCdkOrder},
		Command{Name: ActionStartGiftOrderTimer, Handler: h.startGiftOrderTimer},
		Command{Name: ActionCompleteGiftOrder, Handler: h.completeGiftOrder},
		Command{Name: ActionGetDailyOrderStats, Handler: h.getDailyOrderStats},
	)
}

type screenshots struct {
	OrderContentFileID    string `json:"orderContentFileId" validate:"max=512"`
	BuyerIDPageFileID     string `json:"buyerIdPageFileId" validate:"max=512"`
	CompletionProofFileID string `json:"completionProofFileId" validate:"max=512"`
}

type orderInput struct {
	OrderNumber        string      `json:"orderNumber" validate:"max=64"`
	BuyerGameID        string      `json:"buyerGameId" validate:"max=128"`
	OrderType          string      `json:"orderType"`
	GameID             *string     `json:"game_id"`
	Screenshots        screenshots `json:"screenshots"`
	Remarks            string      `json:"remarks" validate:"max=1000"`
	AssignedSupplierID *string     `json:"assignedSupplierId"`
}

type createOrderPayload struct {
	OrderInput orderInput `json:"orderInput"`
}

func (h orderHandlers) createOrder(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in createOrderPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	gameID, err := parseOptionalID("orderInput.game_id", in.OrderInput.GameID)
	if err != nil {
		return nil, err
	}
	supplierID, err := parseOptionalID("orderInput.assignedSupplierId", in.OrderInput.AssignedSupplierID)
	if err != nil {
		return nil, err
	}
	order, err := h.svc.Create(ctx, p, orders.CreateOrderInput{
		OrderNumber:        in.OrderInput.OrderNumber,
		BuyerGameID:        in.OrderInput.BuyerGameID,
		OrderType:          enums.OrderType(in.OrderInput.OrderType),
		GameID:             gameID,
		OrderContentFileID: in.OrderInput.Screenshots.OrderContentFileID,
		BuyerIDPageFileID:  in.OrderInput.Screenshots.BuyerIDPageFileID,
		Remarks:            in.OrderInput.Remarks,
		AssignedSupplierID: supplierID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Message: "order created", Data: order}, nil
}

type viewOrdersPayload struct {
	StatusFilter string  `json:"statusFilter"`
	TypeFilter   string  `json:"typeFilter"`
	GameID       *string `json:"game_id"`
	Page         int     `json:"page" validate:"gte=0"`
	PageSize     int     `json:"pageSize" validate:"gte=0,lte=100"`
}

func (h orderHandlers) viewOrders(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in viewOrdersPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	gameID, err := parseOptionalID("game_id", in.GameID)
	if err != nil {
		return nil, err
	}
	page, err := h.svc.ViewOrders(ctx, p, orders.ListOrdersInput{
		Status:   enums.OrderStatus(in.StatusFilter),
		Type:     enums.OrderType(in.TypeFilter),
		GameID:   gameID,
		Page:     in.Page,
		PageSize: in.PageSize,
	})
	if err != nil {
		return nil, err
	}
	total := page.Total
	return &Result{Data: page.Items, Total: &total}, nil
}

type orderIDPayload struct {
	OrderID string `json:"orderId"`
}

func (h orderHandlers) viewOrderDetails(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in orderIDPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := parseID("orderId", in.OrderID)
	if err != nil {
		return nil, err
	}
	order, err := h.svc.ViewOrderDetails(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &Result{Data: order}, nil
}

type completePayload struct {
	OrderID     string              `json:"orderId"`
	Screenshots screenshots         `json:"screenshots"`
	CostPrice   decimal.NullDecimal `json:"costPrice"`
}

func (in completePayload) input() (orders.CompleteInput, error) {
	id, err := parseID("orderId", in.OrderID)
	if err != nil {
		return orders.CompleteInput{}, err
	}
	return orders.CompleteInput{
		OrderID:               id,
		CompletionProofFileID: in.Screenshots.CompletionProofFileID,
		CostPrice:             in.CostPrice,
	}, nil
}

func (h orderHandlers) processCdkOrder(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in completePayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	input, err := in.input()
	if err != nil {
		return nil, err
	}
	order, err := h.svc.FulfillCDK(ctx, p, input)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "order completed", Data: order}, nil
}

func (h orderHandlers) startGiftOrderTimer(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in orderIDPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := parseID("orderId", in.OrderID)
	if err != nil {
		return nil, err
	}
	order, err := h.svc.StartGiftTimer(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "gift timer started", Data: order}, nil
}

func (h orderHandlers) completeGiftOrder(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in completePayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	input, err := in.input()
	if err != nil {
		return nil, err
	}
	order, err := h.svc.CompleteGift(ctx, p, input)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "order completed", Data: order}, nil
}

type dailyStatsPayload struct {
	DateString string `json:"dateString"`
}

func (h orderHandlers) getDailyOrderStats(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in dailyStatsPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	report, err := h.svc.DailyStats(ctx, p, in.DateString)
	if err != nil {
		return nil, err
	}
	return &Result{Data: report.Orders, Stats: report.Stats}, nil
}
