package actions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk/internal/orders"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

func newOrderFields(number string, orderType enums.OrderType, supplierID *uuid.UUID) map[string]any {
	input := map[string]any{
		"orderNumber": number,
		"buyerGameId": "buyer-" + number,
		"orderType":   orderType,
		"screenshots": map[string]any{"orderContentFileId": "content-" + number, "buyerIdPageFileId": "page-" + number},
		"remarks":     "rush",
	}
	if supplierID != nil {
		input["assignedSupplierId"] = supplierID.String()
	}
	return map[string]any{"orderInput": input}
}

func TestGiftOrderFlowThroughActions(t *testing.T) {
	w := newWorld(t)
	gameID := w.addGame(t, "Aurora")
	w.addUser(t, "agent", enums.RoleCS, &gameID)
	supplierID := w.addUser(t, "supplier", enums.RoleSupplier, &gameID)
	agentTok := w.login(t, "agent", "secret1")
	supplierTok := w.login(t, "supplier", "secret1")

	created := w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("G-1", enums.OrderTypeGift, nil)).Data.(*orders.OrderDTO)
	assert.Equal(t, enums.OrderStatusPending, created.Status)
	assert.Equal(t, gameID, created.GameID)

	started := w.mustCall(t, w.orders, ActionStartGiftOrderTimer, supplierTok, map[string]any{"orderId": created.ID.String()}).Data.(*orders.OrderDTO)
	assert.Equal(t, enums.OrderStatusTiming, started.Status)
	require.NotNil(t, started.SupplierID)
	assert.Equal(t, supplierID, *started.SupplierID)

	_, err := w.call(t, w.orders, ActionStartGiftOrderTimer, supplierTok, map[string]any{"orderId": created.ID.String()})
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))

	_, err = w.call(t, w.orders, ActionCompleteGiftOrder, w.adminTok, map[string]any{
		"orderId": created.ID.String(), "screenshots": map[string]any{"completionProofFileId": "proof"},
	})
	assert.Equal(t, pkgerrors.CodeForbidden, codeOf(err), "only the fulfiller completes a gift order")

	done := w.mustCall(t, w.orders, ActionCompleteGiftOrder, supplierTok, map[string]any{
		"orderId":     created.ID.String(),
		"screenshots": map[string]any{"completionProofFileId": "proof"},
		"costPrice":   "12.50",
	}).Data.(*orders.OrderDTO)
	assert.Equal(t, enums.OrderStatusCompleted, done.Status)
	require.True(t, done.CostPrice.Valid)
	assert.True(t, decimal.RequireFromString("12.5").Equal(done.CostPrice.Decimal))

	res := w.mustCall(t, w.orders, ActionViewOrderDetails, agentTok, map[string]any{"orderId": created.ID.String()})
	detail := res.Data.(*orders.OrderDTO)
	require.NotNil(t, detail.SupplierNickname)
	assert.Equal(t, "supplier", *detail.SupplierNickname)
}

func TestCDKOrderAndListingThroughActions(t *testing.T) {
	w := newWorld(t)
	gameID := w.addGame(t, "Aurora")
	otherGame := w.addGame(t, "Borealis")
	w.addUser(t, "agent", enums.RoleCS, &gameID)
	w.addUser(t, "outsider", enums.RoleSupplier, &otherGame)
	supplierID := w.addUser(t, "supplier", enums.RoleSupplier, &gameID)
	agentTok := w.login(t, "agent", "secret1")
	supplierTok := w.login(t, "supplier", "secret1")
	outsiderTok := w.login(t, "outsider", "secret1")

	assigned := w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("C-1", enums.OrderTypeCDK, &supplierID)).Data.(*orders.OrderDTO)
	w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("C-2", enums.OrderTypeCDK, nil))
	w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("G-3", enums.OrderTypeGift, nil))

	res := w.mustCall(t, w.orders, ActionViewOrders, agentTok, map[string]any{"typeFilter": "cdk"})
	assert.Equal(t, int64(2), *res.Total)
	assert.Len(t, res.Data.([]orders.OrderDTO), 2)

	res = w.mustCall(t, w.orders, ActionViewOrders, outsiderTok, nil)
	assert.Equal(t, int64(0), *res.Total)

	_, err := w.call(t, w.orders, ActionProcessCdkOrder, outsiderTok, map[string]any{
		"orderId": assigned.ID.String(), "screenshots": map[string]any{"completionProofFileId": "proof"},
	})
	assert.Equal(t, pkgerrors.CodeForbidden, codeOf(err))

	_, err = w.call(t, w.orders, ActionProcessCdkOrder, supplierTok, map[string]any{
		"orderId": assigned.ID.String(), "screenshots": map[string]any{"completionProofFileId": "proof"}, "costPrice": -1,
	})
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	done := w.mustCall(t, w.orders, ActionProcessCdkOrder, supplierTok, map[string]any{
		"orderId": assigned.ID.String(), "screenshots": map[string]any{"completionProofFileId": "proof"}, "costPrice": 8,
	}).Data.(*orders.OrderDTO)
	assert.Equal(t, enums.OrderStatusCompleted, done.Status)

	res = w.mustCall(t, w.orders, ActionViewOrders, w.adminTok, map[string]any{"statusFilter": "completed"})
	assert.Equal(t, int64(1), *res.Total)
}

func TestDailyStatsThroughActions(t *testing.T) {
	w := newWorld(t)
	gameID := w.addGame(t, "Aurora")
	w.addUser(t, "agent", enums.RoleCS, &gameID)
	agentTok := w.login(t, "agent", "secret1")

	w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("C-1", enums.OrderTypeCDK, nil))
	w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("G-1", enums.OrderTypeGift, nil))
	w.now = w.now.Add(24 * time.Hour)
	w.mustCall(t, w.orders, ActionCreateOrder, agentTok, newOrderFields("C-2", enums.OrderTypeCDK, nil))

	res := w.mustCall(t, w.orders, ActionGetDailyOrderStats, w.adminTok, map[string]any{"dateString": worldNow.Format("2006-01-02")})
	stats := res.Stats.(orders.DailyStats)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.CDKCount)
	assert.Equal(t, 1, stats.GiftCount)
	assert.Len(t, res.Data.([]orders.OrderDTO), 2)

	_, err := w.call(t, w.orders, ActionGetDailyOrderStats, agentTok, map[string]any{"dateString": "2026-03-02"})
	assert.Equal(t, pkgerrors.CodeForbidden, codeOf(err))

	_, err = w.call(t, w.orders, ActionGetDailyOrderStats, w.adminTok, map[string]any{"dateString": "03/02/2026"})
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))
}

func TestOrderActionsRejectMalformedInput(t *testing.T) {
	w := newWorld(t)

	_, err := w.call(t, w.orders, ActionViewOrderDetails, w.adminTok, map[string]any{"orderId": "order-1"})
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	_, err = w.call(t, w.orders, ActionViewOrderDetails, w.adminTok, map[string]any{"orderId": uuid.NewString()})
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))

	_, err = w.call(t, w.orders, ActionCreateOrder, w.adminTok, map[string]any{"orderInput": "nope"})
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	_, err = w.call(t, w.orders, "cancelOrder", w.adminTok, nil)
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))

	_, err = w.call(t, w.orders, ActionViewOrders, "", nil)
	assert.Equal(t, pkgerrors.CodeUnauthorized, codeOf(err))
}
