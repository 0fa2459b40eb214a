package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/internal/audit"
	"github.com/angelmondragon/orderdesk/internal/policy"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/pagination"
	"github.com/angelmondragon/orderdesk/pkg/types"
)

const (
	defaultGiftTimer = 24 * time.Hour
	defaultPageSize  = 10
)

// Service exposes the order lifecycle and the scoped reads around it.
type Service interface {
	Create(ctx context.Context, actor auth.Principal, in CreateOrderInput) (*OrderDTO, error)
	FulfillCDK(ctx context.Context, actor auth.Principal, in CompleteInput) (*OrderDTO, error)
	StartGiftTimer(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*OrderDTO, error)
	CompleteGift(ctx context.Context, actor auth.Principal, in CompleteInput) (*OrderDTO, error)

	ListDueGiftTimers(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ExpireGiftTimer(ctx context.Context, order models.Order, now time.Time) (bool, error)

	ViewOrders(ctx context.Context, actor auth.Principal, in ListOrdersInput) (*types.Page[OrderDTO], error)
	ViewOrderDetails(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*OrderDTO, error)
	DailyStats(ctx context.Context, actor auth.Principal, date string) (*DailyReport, error)
}

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*OrderRow, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]OrderRow, int64, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]OrderRow, error)
	Apply(ctx context.Context, t Transition) (bool, error)
	FindDueGiftTimers(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type gameLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type transitionObserver interface {
	ObserveTransition(event, outcome string)
}

// ServiceParams bundles the dependencies required to build an orders service.
type ServiceParams struct {
	Repo    orderStore
	Users   userLookup
	Games   gameLookup
	Audit   auditRecorder
	Metrics transitionObserver
	Logger  *logger.Logger
	Now     func() time.Time
	// GiftTimer is how long a gift order stays in timing. Defaults to 24h.
	GiftTimer       time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

type service struct {
	repo      orderStore
	users     userLookup
	games     gameLookup
	audit     auditRecorder
	metrics   transitionObserver
	logg      *logger.Logger
	now       func() time.Time
	giftTimer time.Duration
	pageSize  int
	maxPage   int
}

// NewService constructs an orders service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup is required")
	}
	if params.Games == nil {
		return nil, fmt.Errorf("game lookup is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	now := params.Now
	if now == nil {
		now = db.UTCNow
	}
	giftTimer := params.GiftTimer
	if giftTimer <= 0 {
		giftTimer = defaultGiftTimer
	}
	pageSize := params.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPage := params.MaxPageSize
	if maxPage <= 0 {
		maxPage = pagination.MaxPageSize
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		users:     params.Users,
		games:     params.Games,
		audit:     params.Audit,
		metrics:   params.Metrics,
		logg:      logg,
		now:       now,
		giftTimer: giftTimer,
		pageSize:  pageSize,
		maxPage:   maxPage,
	}, nil
}

func (s *service) ViewOrders(ctx context.Context, actor auth.Principal, in ListOrdersInput) (*types.Page[OrderDTO], error) {
	if in.Status != "" && !in.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if in.Type != "" && !in.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid type filter")
	}
	decision := policy.Authorize(actor, policy.ActionListOrders, policy.Target{GameID: in.GameID})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	rows, total, err := s.repo.List(ctx, ListFilter{
		Scope:  decision.Filter,
		Status: in.Status,
		Type:   in.Type,
	}, s.page(in.Page, in.PageSize))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	items := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromRow(row))
	}
	return &types.Page[OrderDTO]{Items: items, Total: total}, nil
}

func (s *service) ViewOrderDetails(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	row, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := policy.Authorize(actor, policy.ActionViewOrder, policy.Target{Order: &row.Order}).Err(); err != nil {
		return nil, err
	}
	dto := FromRow(*row)
	return &dto, nil
}

func (s *service) page(page, size int) pagination.Params {
	if size <= 0 {
		size = s.pageSize
	}
	if size > s.maxPage {
		size = s.maxPage
	}
	return pagination.Params{Page: pagination.NormalizePage(page), PageSize: size}
}

func (s *service) observe(event, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(event, outcome)
	}
}

func (s *service) record(ctx context.Context, actor auth.Principal, order *models.Order, action enums.OrderLogAction, details string) {
	operator := actor.UserID
	s.audit.Record(ctx, audit.Entry{
		OrderID:      order.ID,
		OperatorID:   &operator,
		OperatorRole: string(actor.Role),
		Action:       action,
		Details:      details,
		At:           s.now(),
	})
}
