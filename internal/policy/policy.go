// Package policy decides who may do what to which rows. It performs no I/O: callers load
// the target first and pass it in, and list queries receive a visibility filter to apply.
package policy

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/visibility"
)

// Action names a guarded capability.
type Action string

const (
	ActionCheckAuth      Action = "checkAuth"
	ActionLogout         Action = "logout"
	ActionChangePassword Action = "changePassword"
	ActionManageGames    Action = "manageGames"
	ActionManageUsers    Action = "manageUsers"
	ActionUpdateUser     Action = "updateUser"
	ActionDeleteUser     Action = "deleteUser"
	ActionListSuppliers  Action = "listActiveSuppliers"
	ActionCreateOrder    Action = "createOrder"
	ActionListOrders     Action = "listOrders"
	ActionViewOrder      Action = "viewOrder"
	ActionMutateOrder    Action = "mutateOrder"
	ActionViewDailyStats Action = "viewDailyStats"
)

// Reason is a stable deny code surfaced to clients.
type Reason string

const (
	ReasonRoleNotAllowed  Reason = "ROLE_NOT_ALLOWED"
	ReasonTenantRequired  Reason = "TENANT_REQUIRED"
	ReasonTenantMismatch  Reason = "TENANT_MISMATCH"
	ReasonNotOwner        Reason = "NOT_OWNER"
	ReasonOrderNotVisible Reason = "ORDER_NOT_VISIBLE"
	ReasonOrderNotMutable Reason = "ORDER_NOT_MUTABLE"
	ReasonSelfProtection  Reason = "SELF_PROTECTION"
	ReasonAccountDisabled Reason = "ACCOUNT_DISABLED"
)

// Target describes what an action touches. Only the fields relevant to the action are read.
type Target struct {
	// GameID is a tenant named explicitly by the caller.
	GameID *uuid.UUID
	Order  *models.Order
	// UserID is the account being managed.
	UserID    uuid.UUID
	NewRole   *enums.Role
	NewStatus *enums.UserStatus
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
	// Filter scopes list reads. Deny decisions carry visibility.None().
	Filter visibility.Filter
	// GameID is the tenant resolved for tenant-bound writes and listings.
	GameID *uuid.UUID

	code    pkgerrors.Code
	message string
}

// Err converts a deny into the typed error returned to callers; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	code := d.code
	if code == "" {
		code = pkgerrors.CodeForbidden
	}
	return pkgerrors.New(code, d.message).WithReason(string(d.Reason))
}

func allow(filter visibility.Filter, gameID *uuid.UUID) Decision {
	return Decision{Allowed: true, Filter: filter, GameID: gameID}
}

func deny(reason Reason, code pkgerrors.Code, message string) Decision {
	return Decision{Reason: reason, Filter: visibility.None(), code: code, message: message}
}

func forbidden(reason Reason, message string) Decision {
	return deny(reason, pkgerrors.CodeForbidden, message)
}

// Authorize decides whether p may perform action on target.
func Authorize(p auth.Principal, action Action, target Target) Decision {
	if p.IsDisabled() && action != ActionCheckAuth && action != ActionLogout {
		return forbidden(ReasonAccountDisabled, "account is disabled")
	}

	switch action {
	case ActionCheckAuth, ActionLogout, ActionChangePassword:
		return allow(visibility.All(), nil)

	case ActionManageGames, ActionManageUsers, ActionViewDailyStats:
		if !p.IsAdmin() {
			return forbidden(ReasonRoleNotAllowed, "admin role required")
		}
		return allow(visibility.All(), nil)

	case ActionUpdateUser, ActionDeleteUser:
		return authorizeUserChange(p, action, target)

	case ActionListSuppliers:
		return authorizeSupplierListing(p)

	case ActionCreateOrder:
		return authorizeCreateOrder(p, target)

	case ActionListOrders:
		return allow(OrderVisibility(p, target.GameID), nil)

	case ActionViewOrder:
		if target.Order == nil || !OrderVisibility(p, nil).Matches(OrderRow(target.Order)) {
			return forbidden(ReasonOrderNotVisible, "order is not visible to you")
		}
		return allow(visibility.All(), &target.Order.GameID)

	case ActionMutateOrder:
		return authorizeMutateOrder(p, target.Order)
	}

	return forbidden(ReasonRoleNotAllowed, "action not permitted")
}

func authorizeUserChange(p auth.Principal, action Action, target Target) Decision {
	if !p.IsAdmin() {
		return forbidden(ReasonRoleNotAllowed, "admin role required")
	}
	if target.UserID != p.UserID {
		return allow(visibility.All(), nil)
	}
	if action == ActionDeleteUser {
		return forbidden(ReasonSelfProtection, "you cannot delete your own account")
	}
	if target.NewRole != nil && *target.NewRole != enums.RoleAdmin {
		return forbidden(ReasonSelfProtection, "you cannot change your own role")
	}
	if target.NewStatus != nil && *target.NewStatus == enums.UserStatusDisabled {
		return forbidden(ReasonSelfProtection, "you cannot disable your own account")
	}
	return allow(visibility.All(), nil)
}

func authorizeSupplierListing(p auth.Principal) Decision {
	switch p.Role {
	case enums.RoleAdmin:
		return allow(visibility.All(), nil)
	case enums.RoleCS:
		if !p.HasGame() {
			return deny(ReasonTenantRequired, pkgerrors.CodeValidation, "your account is not assigned to a game")
		}
		return allow(visibility.Eq("game_id", *p.GameID), p.GameID)
	}
	return forbidden(ReasonRoleNotAllowed, "admin or cs role required")
}

func authorizeCreateOrder(p auth.Principal, target Target) Decision {
	switch p.Role {
	case enums.RoleAdmin:
		if target.GameID == nil || *target.GameID == uuid.Nil {
			return deny(ReasonTenantRequired, pkgerrors.CodeValidation, "game_id is required")
		}
		return allow(visibility.All(), target.GameID)
	case enums.RoleCS:
		if !p.HasGame() {
			return forbidden(ReasonTenantRequired, "your account is not assigned to a game")
		}
		return allow(visibility.All(), p.GameID)
	}
	return forbidden(ReasonRoleNotAllowed, "admin or cs role required")
}

// A nil order checks the role and tenant alone, ahead of loading the row.
func authorizeMutateOrder(p auth.Principal, order *models.Order) Decision {
	switch p.Role {
	case enums.RoleAdmin:
		if order == nil {
			return allow(visibility.All(), nil)
		}
		return allow(visibility.All(), &order.GameID)
	case enums.RoleSupplier:
		if !p.HasGame() {
			return forbidden(ReasonTenantRequired, "your account is not assigned to a game")
		}
		if order == nil {
			return allow(visibility.All(), p.GameID)
		}
		if !p.InGame(order.GameID) {
			return forbidden(ReasonTenantMismatch, "order belongs to another game")
		}
		if order.IsUnassigned() {
			if order.Status != enums.OrderStatusPending {
				return forbidden(ReasonOrderNotMutable, "order can no longer be claimed")
			}
			return allow(visibility.All(), &order.GameID)
		}
		if !order.AssignedTo(p.UserID) {
			return forbidden(ReasonNotOwner, "order is assigned to another supplier")
		}
		return allow(visibility.All(), &order.GameID)
	}
	return forbidden(ReasonRoleNotAllowed, "admin or supplier role required")
}
