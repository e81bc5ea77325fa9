package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ordercast/wadispatch/internal/domain"
)

// OrderSource is the read-only port onto the shop's order store.
type OrderSource interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

type GormOrderSource struct {
	db *gorm.DB
}

func NewGormOrderSource(db *gorm.DB) *GormOrderSource {
	return &GormOrderSource{db: db}
}

func (r *GormOrderSource) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return orderModelToDomain(&model), nil
}
