package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
)

// Repository appends to and reads from order_logs.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one audit row.
func (r *Repository) Insert(ctx context.Context, log *models.OrderLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByOrder returns an order's audit trail, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderLog, error) {
	var logs []models.OrderLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
