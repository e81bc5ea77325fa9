package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ordercast/wadispatch/internal/domain"
)

// ConsentStats summarizes the opt-in ledger.
type ConsentStats struct {
	TotalRecords int64
	OptedIn      int64
}

type ConsentRepository interface {
	// Record appends one ledger row; existing rows are never mutated.
	Record(ctx context.Context, c *domain.ConsentRecord) error
	FindLatestByPhone(ctx context.Context, phoneE164 string) (*domain.ConsentRecord, error)
	// HasConsent reports the consent flag of the most recent record for the
	// phone; a phone with no records has no consent.
	HasConsent(ctx context.Context, phoneE164 string) (bool, error)
	Statistics(ctx context.Context) (ConsentStats, error)
}

type GormConsentRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormConsentRepo(db *gorm.DB) *GormConsentRepo {
	return &GormConsentRepo{db: db, now: time.Now}
}

func (r *GormConsentRepo) Record(ctx context.Context, c *domain.ConsentRecord) error {
	if err := c.Validate(); err != nil {
		return err
	}

	model := consentModelFromDomain(c)
	if model.ConsentAt.IsZero() {
		model.ConsentAt = r.now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*c = *consentModelToDomain(model)
	return nil
}

func (r *GormConsentRepo) FindLatestByPhone(ctx context.Context, phoneE164 string) (*domain.ConsentRecord, error) {
	var model ConsentRecordModel
	err := r.db.WithContext(ctx).
		Where("phone_e164 = ?", phoneE164).
		Order("id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return consentModelToDomain(&model), nil
}

func (r *GormConsentRepo) HasConsent(ctx context.Context, phoneE164 string) (bool, error) {
	latest, err := r.FindLatestByPhone(ctx, phoneE164)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return latest.Consent, nil
}

func (r *GormConsentRepo) Statistics(ctx context.Context) (ConsentStats, error) {
	var stats ConsentStats

	if err := r.db.WithContext(ctx).
		Model(&ConsentRecordModel{}).
		Count(&stats.TotalRecords).Error; err != nil {
		return ConsentStats{}, err
	}

	// Opted-in means the latest record per phone carries consent.
	err := r.db.WithContext(ctx).
		Model(&ConsentRecordModel{}).
		Where("consent = ? AND id IN (?)",
			true,
			r.db.Model(&ConsentRecordModel{}).
				Select("MAX(id)").
				Group("phone_e164"),
		).
		Count(&stats.OptedIn).Error
	if err != nil {
		return ConsentStats{}, err
	}

	return stats, nil
}
