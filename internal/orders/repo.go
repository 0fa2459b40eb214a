package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/pagination"
	"github.com/angelmondragon/orderdesk/pkg/visibility"
)

// Repository is the only component that reads or writes orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new order.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads a bare order row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderRow is an order decorated with display names resolved through joins.
type OrderRow struct {
	models.Order
	CSNickname       *string `gorm:"column:cs_nickname"`
	SupplierNickname *string `gorm:"column:supplier_nickname"`
	GameName         *string `gorm:"column:game_name"`
}

func (r *Repository) decorated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("orders").
		Select("orders.*, cs.nickname AS cs_nickname, sup.nickname AS supplier_nickname, games.name AS game_name").
		Joins("LEFT JOIN users AS cs ON cs.id = orders.cs_id").
		Joins("LEFT JOIN users AS sup ON sup.id = orders.supplier_id").
		Joins("LEFT JOIN games ON games.id = orders.game_id")
}

// FindDetail loads one decorated order.
func (r *Repository) FindDetail(ctx context.Context, id uuid.UUID) (*OrderRow, error) {
	var rows []OrderRow
	if err := r.decorated(ctx).Where("orders.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// ListFilter narrows List results beyond the visibility scope. Zero values are ignored.
type ListFilter struct {
	Scope  visibility.Filter
	Status enums.OrderStatus
	Type   enums.OrderType
}

func (f ListFilter) apply(db *gorm.DB) *gorm.DB {
	db = f.Scope.Apply(db)
	if f.Status != "" {
		db = db.Where("orders.status = ?", f.Status)
	}
	if f.Type != "" {
		db = db.Where("orders.order_type = ?", f.Type)
	}
	return db
}

// List returns one page of decorated orders, most recently updated first, plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]OrderRow, int64, error) {
	if filter.Scope.IsNone() {
		return []OrderRow{}, 0, nil
	}

	var total int64
	countQuery := filter.apply(r.db.WithContext(ctx).Model(&models.Order{}))
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []OrderRow{}, 0, nil
	}

	var rows []OrderRow
	err := filter.apply(r.decorated(ctx)).
		Order("orders.updated_at DESC").
		Order("orders.id").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListCreatedBetween returns decorated orders created in [from, to), oldest first.
func (r *Repository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]OrderRow, error) {
	var rows []OrderRow
	err := r.decorated(ctx).
		Where("orders.created_at >= ? AND orders.created_at < ?", from, to).
		Order("orders.created_at ASC").
		Order("orders.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition is a conditional write: Changes land only when every guard still holds.
type Transition struct {
	ID   uuid.UUID
	Type enums.OrderType
	From []enums.OrderStatus
	// ClaimableBy admits rows that are unassigned or already assigned to this user.
	ClaimableBy *uuid.UUID
	// OwnedBy admits rows assigned to this user only.
	OwnedBy *uuid.UUID
	// DueBy admits rows whose deadline is at or before this instant.
	DueBy   *time.Time
	Changes map[string]any
}

// Apply runs t as a single UPDATE and reports whether the row matched.
func (r *Repository) Apply(ctx context.Context, t Transition) (bool, error) {
	if len(t.From) == 0 {
		return false, errors.New("transition requires an expected status")
	}
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", t.ID).
		Where("status IN ?", t.From)
	if t.Type != "" {
		query = query.Where("order_type = ?", t.Type)
	}
	if t.ClaimableBy != nil {
		query = query.Where("(supplier_id IS NULL OR supplier_id = ?)", *t.ClaimableBy)
	}
	if t.OwnedBy != nil {
		query = query.Where("supplier_id = ?", *t.OwnedBy)
	}
	if t.DueBy != nil {
		query = query.Where("expire_time IS NOT NULL AND expire_time <= ?", *t.DueBy)
	}

	res := query.UpdateColumns(t.Changes)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindDueGiftTimers returns gift orders still timing whose deadline has passed, earliest first.
func (r *Repository) FindDueGiftTimers(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("order_type = ? AND status = ?", enums.OrderTypeGift, enums.OrderStatusTiming).
		Where("expire_time IS NOT NULL AND expire_time <= ?", now).
		Order("expire_time ASC").
		Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
