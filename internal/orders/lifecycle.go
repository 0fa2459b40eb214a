package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/audit"
	"github.com/angelmondragon/orderdesk/internal/policy"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/metrics"
)

// Transition events, as labelled in metrics.
const (
	EventCreate         = "create"
	EventFulfillCDK     = "fulfill_cdk"
	EventStartGiftTimer = "start_gift_timer"
	EventCompleteGift   = "complete_gift"
	EventExpireTimer    = "expire_gift_timer"
)

func (s *service) Create(ctx context.Context, actor auth.Principal, in CreateOrderInput) (*OrderDTO, error) {
	decision := policy.Authorize(actor, policy.ActionCreateOrder, policy.Target{GameID: in.GameID})
	if err := decision.Err(); err != nil {
		return nil, err
	}
	gameID := *decision.GameID

	orderNumber := strings.TrimSpace(in.OrderNumber)
	buyerGameID := strings.TrimSpace(in.BuyerGameID)
	contentFile := strings.TrimSpace(in.OrderContentFileID)
	buyerPageFile := strings.TrimSpace(in.BuyerIDPageFileID)
	if orderNumber == "" || buyerGameID == "" || in.OrderType == "" || contentFile == "" || buyerPageFile == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number, buyer game id, order type and both screenshots are required")
	}
	if !in.OrderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}

	if actor.IsAdmin() {
		exists, err := s.games.Exists(ctx, gameID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load game")
		}
		if !exists {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "game not found")
		}
	}

	var supplierID *uuid.UUID
	if in.AssignedSupplierID != nil && *in.AssignedSupplierID != uuid.Nil {
		if err := s.ensureAssignableSupplier(ctx, *in.AssignedSupplierID, gameID); err != nil {
			return nil, err
		}
		id := *in.AssignedSupplierID
		supplierID = &id
	}

	now := s.now()
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        orderNumber,
		BuyerGameID:        buyerGameID,
		OrderType:          in.OrderType,
		Status:             enums.OrderStatusPending,
		GameID:             gameID,
		OrderContentFileID: &contentFile,
		BuyerIDPageFileID:  &buyerPageFile,
		Remarks:            strings.TrimSpace(in.Remarks),
		CSID:               actor.UserID,
		SupplierID:         supplierID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		s.observe(EventCreate, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	s.observe(EventCreate, metrics.OutcomeSuccess)
	s.record(ctx, actor, order, enums.OrderLogActionCreate,
		fmt.Sprintf("%s %s created order #%s", actor.Role, actor.DisplayName(), order.OrderNumber))

	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "game_id": gameID.String()})
	s.logg.Info(logCtx, "order created")
	return FromModel(order), nil
}

func (s *service) ensureAssignableSupplier(ctx context.Context, supplierID, gameID uuid.UUID) error {
	invalid := pkgerrors.New(pkgerrors.CodeValidation, "assigned supplier is invalid or does not belong to this game")
	supplier, err := s.users.FindByID(ctx, supplierID)
	if err != nil {
		if IsNotFound(err) {
			return invalid
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier")
	}
	if supplier.Role != enums.RoleSupplier || supplier.Status != enums.UserStatusEnabled {
		return invalid
	}
	if supplier.GameID == nil || *supplier.GameID != gameID {
		return invalid
	}
	return nil
}

func (s *service) FulfillCDK(ctx context.Context, actor auth.Principal, in CompleteInput) (*OrderDTO, error) {
	order, ownership, err := s.loadForMutation(ctx, actor, in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := validateCompletion(in); err != nil {
		return nil, err
	}
	if order.OrderType != enums.OrderTypeCDK || order.Status != enums.OrderStatusPending {
		s.observe(EventFulfillCDK, metrics.OutcomeConflict)
		return nil, stateConflict(order, "only pending cdk orders can be fulfilled")
	}
	if ownership != nil {
		return nil, ownership
	}

	now := s.now()
	changes := completionChanges(in, now)
	changes["supplier_id"] = gorm.Expr("COALESCE(supplier_id, ?)", actor.UserID)

	t := Transition{
		ID:      order.ID,
		Type:    enums.OrderTypeCDK,
		From:    []enums.OrderStatus{enums.OrderStatusPending},
		Changes: changes,
	}
	if actor.IsSupplier() {
		t.ClaimableBy = &actor.UserID
	}
	updated, err := s.transition(ctx, EventFulfillCDK, t)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, updated, enums.OrderLogActionCompleteCDK,
		fmt.Sprintf("%s %s completed cdk order #%s", actor.Role, actor.DisplayName(), updated.OrderNumber))
	return FromModel(updated), nil
}

func (s *service) StartGiftTimer(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*OrderDTO, error) {
	order, ownership, err := s.loadForMutation(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderType != enums.OrderTypeGift || order.Status != enums.OrderStatusPending {
		s.observe(EventStartGiftTimer, metrics.OutcomeConflict)
		return nil, stateConflict(order, "only pending gift orders can start the timer")
	}
	if ownership != nil {
		return nil, ownership
	}

	now := s.now()
	t := Transition{
		ID:   order.ID,
		Type: enums.OrderTypeGift,
		From: []enums.OrderStatus{enums.OrderStatusPending},
		Changes: map[string]any{
			"status":      enums.OrderStatusTiming,
			"supplier_id": gorm.Expr("COALESCE(supplier_id, ?)", actor.UserID),
			"start_time":  now,
			"expire_time": now.Add(s.giftTimer),
			"updated_at":  now,
		},
	}
	if actor.IsSupplier() {
		t.ClaimableBy = &actor.UserID
	}
	updated, err := s.transition(ctx, EventStartGiftTimer, t)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, updated, enums.OrderLogActionStartGiftTimer,
		fmt.Sprintf("%s %s claimed order #%s and started the gift timer", actor.Role, actor.DisplayName(), updated.OrderNumber))
	return FromModel(updated), nil
}

// CompleteGift requires the actor to be the order's fulfiller, admins included.
func (s *service) CompleteGift(ctx context.Context, actor auth.Principal, in CompleteInput) (*OrderDTO, error) {
	order, ownership, err := s.loadForMutation(ctx, actor, in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := validateCompletion(in); err != nil {
		return nil, err
	}
	if order.OrderType != enums.OrderTypeGift ||
		(order.Status != enums.OrderStatusTiming && order.Status != enums.OrderStatusReadyToSend) {
		s.observe(EventCompleteGift, metrics.OutcomeConflict)
		return nil, stateConflict(order, "only timing or ready_to_send gift orders can be completed")
	}
	if ownership != nil {
		return nil, ownership
	}
	if !order.AssignedTo(actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned supplier can complete this order").
			WithReason(string(policy.ReasonNotOwner))
	}

	updated, err := s.transition(ctx, EventCompleteGift, Transition{
		ID:      order.ID,
		Type:    enums.OrderTypeGift,
		From:    []enums.OrderStatus{enums.OrderStatusTiming, enums.OrderStatusReadyToSend},
		OwnedBy: &actor.UserID,
		Changes: completionChanges(in, s.now()),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, updated, enums.OrderLogActionCompleteGift,
		fmt.Sprintf("%s %s completed gift order #%s", actor.Role, actor.DisplayName(), updated.OrderNumber))
	return FromModel(updated), nil
}

func (s *service) ListDueGiftTimers(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	orders, err := s.repo.FindDueGiftTimers(ctx, now.UTC(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due gift timers")
	}
	return orders, nil
}

// ExpireGiftTimer moves a timing gift order past its deadline to ready_to_send. It reports
// false without error when the order no longer qualifies.
func (s *service) ExpireGiftTimer(ctx context.Context, order models.Order, now time.Time) (bool, error) {
	now = now.UTC()
	ok, err := s.repo.Apply(ctx, Transition{
		ID:    order.ID,
		Type:  enums.OrderTypeGift,
		From:  []enums.OrderStatus{enums.OrderStatusTiming},
		DueBy: &now,
		Changes: map[string]any{
			"status":     enums.OrderStatusReadyToSend,
			"updated_at": now,
		},
	})
	if err != nil {
		s.observe(EventExpireTimer, metrics.OutcomeError)
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire gift timer")
	}
	if !ok {
		s.observe(EventExpireTimer, metrics.OutcomeConflict)
		return false, nil
	}
	s.observe(EventExpireTimer, metrics.OutcomeSuccess)
	s.audit.Record(ctx, audit.Entry{
		OrderID:      order.ID,
		OperatorRole: enums.OperatorSystem,
		Action:       enums.OrderLogActionGiftTimerExpire,
		Details:      fmt.Sprintf("gift timer for order #%s expired, ready to send", order.OrderNumber),
		At:           now,
	})
	return true, nil
}

// loadForMutation checks the actor's role, loads the order and checks the actor against it.
// Role and tenant denials fail immediately. Ownership denials come back separately so a
// stale status is reported as a conflict ahead of them.
func (s *service) loadForMutation(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (order *models.Order, ownership error, err error) {
	if err := policy.Authorize(actor, policy.ActionMutateOrder, policy.Target{}).Err(); err != nil {
		return nil, nil, err
	}
	if orderID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	order, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	decision := policy.Authorize(actor, policy.ActionMutateOrder, policy.Target{Order: order})
	switch {
	case decision.Allowed:
		return order, nil, nil
	case decision.Reason == policy.ReasonNotOwner || decision.Reason == policy.ReasonOrderNotMutable:
		return order, decision.Err(), nil
	}
	return nil, nil, decision.Err()
}

// transition applies t and returns the fresh row. A miss re-reads the order to tell a
// deleted row from a lost race.
func (s *service) transition(ctx context.Context, event string, t Transition) (*models.Order, error) {
	ok, err := s.repo.Apply(ctx, t)
	if err != nil {
		s.observe(event, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	current, err := s.repo.FindByID(ctx, t.ID)
	if err != nil {
		if IsNotFound(err) {
			s.observe(event, metrics.OutcomeConflict)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		s.observe(event, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if !ok {
		s.observe(event, metrics.OutcomeConflict)
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": t.ID.String(), "event": event, "status": string(current.Status)})
		s.logg.Warn(logCtx, "order transition lost race")
		return nil, stateConflict(current, "order was changed by someone else, reload and retry")
	}
	s.observe(event, metrics.OutcomeSuccess)
	return current, nil
}

func validateCompletion(in CompleteInput) error {
	if strings.TrimSpace(in.CompletionProofFileID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "completion proof screenshot is required")
	}
	if in.CostPrice.Valid && in.CostPrice.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "costPrice cannot be negative")
	}
	return nil
}

func completionChanges(in CompleteInput, now time.Time) map[string]any {
	changes := map[string]any{
		"status":                   enums.OrderStatusCompleted,
		"completion_proof_file_id": strings.TrimSpace(in.CompletionProofFileID),
		"complete_time":            now,
		"updated_at":               now,
	}
	if in.CostPrice.Valid {
		changes["cost_price"] = in.CostPrice.Decimal.Round(2)
	}
	return changes
}

func stateConflict(order *models.Order, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).WithDetails(map[string]any{
		"status":     order.Status,
		"order_type": order.OrderType,
	})
}
