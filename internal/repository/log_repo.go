package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ordercast/wadispatch/internal/domain"
)

// LogListParams filters and paginates the dispatch log listing.
type LogListParams struct {
	Status *domain.Status
	// Search matches template name, phone, or order id as free text.
	Search   string
	Page     int
	PageSize int
}

type DispatchLogRepository interface {
	Create(ctx context.Context, l *domain.DispatchLog) error
	Update(ctx context.Context, id int64, update domain.DispatchLogUpdate) error
	GetByID(ctx context.Context, id int64) (*domain.DispatchLog, error)
	FindByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.DispatchLog, error)
	// UpdateByProviderMessageID is a single atomic conditional update used
	// by webhook reconciliation; it must not read-modify-write.
	UpdateByProviderMessageID(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error
	List(ctx context.Context, params LogListParams) ([]domain.DispatchLog, int64, error)
	StatusCounts(ctx context.Context, since time.Time) (map[domain.Status]int64, error)
}

type GormDispatchLogRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormDispatchLogRepo(db *gorm.DB) *GormDispatchLogRepo {
	return &GormDispatchLogRepo{db: db, now: time.Now}
}

func (r *GormDispatchLogRepo) Create(ctx context.Context, l *domain.DispatchLog) error {
	model := logModelFromDomain(l)
	if model == nil {
		return fmt.Errorf("%w: log record is required", domain.ErrValidation)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*l = *logModelToDomain(model)
	return nil
}

func (r *GormDispatchLogRepo) Update(ctx context.Context, id int64, update domain.DispatchLogUpdate) error {
	fields := r.updateFields(update)

	result := r.db.WithContext(ctx).
		Model(&DispatchLogModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDispatchLogRepo) GetByID(ctx context.Context, id int64) (*domain.DispatchLog, error) {
	var model DispatchLogModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return logModelToDomain(&model), nil
}

func (r *GormDispatchLogRepo) FindByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.DispatchLog, error) {
	var model DispatchLogModel
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMsgID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return logModelToDomain(&model), nil
}

func (r *GormDispatchLogRepo) UpdateByProviderMessageID(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error {
	if strings.TrimSpace(providerMsgID) == "" {
		return fmt.Errorf("%w: provider message id is required", domain.ErrValidation)
	}

	fields := r.updateFields(update)

	result := r.db.WithContext(ctx).
		Model(&DispatchLogModel{}).
		Where("provider_message_id = ?", providerMsgID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDispatchLogRepo) List(ctx context.Context, params LogListParams) ([]domain.DispatchLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&DispatchLogModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"template_name ILIKE ? OR phone_e164 LIKE ? OR CAST(order_id AS TEXT) LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []DispatchLogModel
	err := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	logs := make([]domain.DispatchLog, 0, len(models))
	for i := range models {
		logs = append(logs, *logModelToDomain(&models[i]))
	}

	return logs, total, nil
}

func (r *GormDispatchLogRepo) StatusCounts(ctx context.Context, since time.Time) (map[domain.Status]int64, error) {
	type row struct {
		Status domain.Status `gorm:"column:status"`
		Count  int64         `gorm:"column:count"`
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&DispatchLogModel{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (r *GormDispatchLogRepo) updateFields(update domain.DispatchLogUpdate) map[string]any {
	fields := map[string]any{
		"updated_at": r.now().UTC(),
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if len(update.Payload) > 0 {
		fields["payload"] = jsonColumn(update.Payload)
	}
	if len(update.Response) > 0 {
		fields["response"] = jsonColumn(update.Response)
	}
	if update.ProviderMessageID != nil {
		fields["provider_message_id"] = *update.ProviderMessageID
	}
	if update.ErrorCode != nil {
		fields["error_code"] = *update.ErrorCode
	}
	if update.ErrorMessage != nil {
		fields["error_message"] = *update.ErrorMessage
	}
	return fields
}
