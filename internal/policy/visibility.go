package policy

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/visibility"
)

// Order columns referenced by visibility filters. Qualified so they stay unambiguous
// when list queries join users and games.
const (
	ColumnOrderGameID     = "orders.game_id"
	ColumnOrderCSID       = "orders.cs_id"
	ColumnOrderSupplierID = "orders.supplier_id"
	ColumnOrderStatus     = "orders.status"
)

// OrderVisibility returns the rows of orders p may read.
//
//	admin:    everything, or one game when requestedGame is set
//	cs:       game_id = T AND cs_id = self
//	supplier: game_id = T AND (supplier_id = self OR (status = pending AND supplier_id IS NULL))
//
// Non-admins without a game see nothing.
func OrderVisibility(p auth.Principal, requestedGame *uuid.UUID) visibility.Filter {
	switch p.Role {
	case enums.RoleAdmin:
		if requestedGame != nil && *requestedGame != uuid.Nil {
			return visibility.Eq(ColumnOrderGameID, *requestedGame)
		}
		return visibility.All()
	case enums.RoleCS:
		if !p.HasGame() {
			return visibility.None()
		}
		return visibility.And(
			visibility.Eq(ColumnOrderGameID, *p.GameID),
			visibility.Eq(ColumnOrderCSID, p.UserID),
		)
	case enums.RoleSupplier:
		if !p.HasGame() {
			return visibility.None()
		}
		return visibility.And(
			visibility.Eq(ColumnOrderGameID, *p.GameID),
			visibility.Or(
				visibility.Eq(ColumnOrderSupplierID, p.UserID),
				visibility.And(
					visibility.Eq(ColumnOrderStatus, enums.OrderStatusPending),
					visibility.IsNull(ColumnOrderSupplierID),
				),
			),
		)
	}
	return visibility.None()
}

// OrderRow exposes a loaded order to in-memory filter evaluation.
func OrderRow(o *models.Order) visibility.Row {
	return func(field string) (string, bool) {
		switch field {
		case ColumnOrderGameID:
			return o.GameID.String(), true
		case ColumnOrderCSID:
			return o.CSID.String(), true
		case ColumnOrderSupplierID:
			if o.IsUnassigned() {
				return "", false
			}
			return o.SupplierID.String(), true
		case ColumnOrderStatus:
			return string(o.Status), true
		}
		return "", false
	}
}
