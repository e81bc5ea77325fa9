package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ordercast/wadispatch/internal/domain"
)

type DispatchMappingRepository interface {
	// FindByEvent returns the enabled mapping for an event key. Event key
	// uniqueness is maintained at the application level only, so duplicates
	// are possible; the most recently created mapping wins.
	FindByEvent(ctx context.Context, eventKey string) (*domain.DispatchMapping, error)
	GetByID(ctx context.Context, id int64) (*domain.DispatchMapping, error)
	Upsert(ctx context.Context, m *domain.DispatchMapping) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.DispatchMapping, error)
}

type GormDispatchMappingRepo struct {
	db *gorm.DB
}

func NewGormDispatchMappingRepo(db *gorm.DB) *GormDispatchMappingRepo {
	return &GormDispatchMappingRepo{db: db}
}

func (r *GormDispatchMappingRepo) FindByEvent(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
	var model DispatchMappingModel
	err := r.db.WithContext(ctx).
		Where("event_key = ? AND enabled = ?", eventKey, true).
		Order("id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mappingModelToDomain(&model), nil
}

func (r *GormDispatchMappingRepo) GetByID(ctx context.Context, id int64) (*domain.DispatchMapping, error) {
	var model DispatchMappingModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mappingModelToDomain(&model), nil
}

func (r *GormDispatchMappingRepo) Upsert(ctx context.Context, m *domain.DispatchMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}

	model, err := mappingModelFromDomain(m)
	if err != nil {
		return fmt.Errorf("failed to encode resolver keys: %w", err)
	}

	if model.ID == 0 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		*m = *mappingModelToDomain(model)
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&DispatchMappingModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"event_key":     model.EventKey,
			"template_name": model.TemplateName,
			"language":      model.Language,
			"resolver_keys": model.ResolverKeys,
			"enabled":       model.Enabled,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDispatchMappingRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&DispatchMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDispatchMappingRepo) List(ctx context.Context) ([]domain.DispatchMapping, error) {
	var models []DispatchMappingModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	mappings := make([]domain.DispatchMapping, 0, len(models))
	for i := range models {
		mappings = append(mappings, *mappingModelToDomain(&models[i]))
	}
	return mappings, nil
}
