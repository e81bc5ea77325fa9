package repository

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/ordercast/wadispatch/internal/domain"
)

// DispatchLogModel is the persistence model for dispatch_logs.
type DispatchLogModel struct {
	ID                int64          `gorm:"primaryKey;autoIncrement"`
	OrderID           *int64         `gorm:"index"`
	PhoneE164         string         `gorm:"type:varchar(32);not null"`
	TemplateName      string         `gorm:"type:varchar(191);not null"`
	Payload           datatypes.JSON `gorm:"not null"`
	Response          datatypes.JSON `gorm:"not null"`
	Status            domain.Status  `gorm:"type:varchar(20);not null;index"`
	ProviderMessageID *string        `gorm:"type:varchar(191)"`
	ErrorCode         *string        `gorm:"type:varchar(191)"`
	ErrorMessage      *string        `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (DispatchLogModel) TableName() string {
	return "dispatch_logs"
}

// DispatchMappingModel is the persistence model for dispatch_mappings.
// Resolver keys are stored as a JSON array to keep their order.
type DispatchMappingModel struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	EventKey     string         `gorm:"type:varchar(191);not null;index"`
	TemplateName string         `gorm:"type:varchar(191);not null"`
	Language     string         `gorm:"type:varchar(20);not null;default:en_US"`
	ResolverKeys datatypes.JSON `gorm:"not null"`
	Enabled      bool           `gorm:"not null;default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DispatchMappingModel) TableName() string {
	return "dispatch_mappings"
}

// ConsentRecordModel is the persistence model for the append-only
// consent_records ledger.
type ConsentRecordModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    *int64 `gorm:"index"`
	OrderID   *int64
	PhoneE164 string `gorm:"type:varchar(32);not null;index"`
	Consent   bool   `gorm:"not null;default:false;index"`
	Source    string `gorm:"type:varchar(20);not null"`
	ConsentAt time.Time
}

func (ConsentRecordModel) TableName() string {
	return "consent_records"
}

// OrderModel reads the shop's orders table. The table is owned by the order
// management system; this side never writes it.
type OrderModel struct {
	ID                int64  `gorm:"primaryKey"`
	Number            string `gorm:"column:order_number"`
	Total             string
	Currency          string
	Status            string
	BillingFirstName  string
	BillingLastName   string
	BillingPhone      string
	BillingEmail      string
	ShippingFirstName string
	ShippingLastName  string
}

func (OrderModel) TableName() string {
	return "orders"
}

func logModelFromDomain(l *domain.DispatchLog) *DispatchLogModel {
	if l == nil {
		return nil
	}

	return &DispatchLogModel{
		ID:                l.ID,
		OrderID:           l.OrderID,
		PhoneE164:         l.PhoneE164,
		TemplateName:      l.TemplateName,
		Payload:           jsonColumn(l.Payload),
		Response:          jsonColumn(l.Response),
		Status:            l.Status,
		ProviderMessageID: l.ProviderMessageID,
		ErrorCode:         l.ErrorCode,
		ErrorMessage:      l.ErrorMessage,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func logModelToDomain(m *DispatchLogModel) *domain.DispatchLog {
	if m == nil {
		return nil
	}

	return &domain.DispatchLog{
		ID:                m.ID,
		OrderID:           m.OrderID,
		PhoneE164:         m.PhoneE164,
		TemplateName:      m.TemplateName,
		Payload:           json.RawMessage(m.Payload),
		Response:          json.RawMessage(m.Response),
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func mappingModelFromDomain(m *domain.DispatchMapping) (*DispatchMappingModel, error) {
	if m == nil {
		return nil, nil
	}

	keys := m.ResolverKeys
	if keys == nil {
		keys = []string{}
	}
	encoded, err := json.Marshal(keys)
	if err != nil {
		return nil, err
	}

	return &DispatchMappingModel{
		ID:           m.ID,
		EventKey:     m.EventKey,
		TemplateName: m.TemplateName,
		Language:     m.Language,
		ResolverKeys: datatypes.JSON(encoded),
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func mappingModelToDomain(m *DispatchMappingModel) *domain.DispatchMapping {
	if m == nil {
		return nil
	}

	var keys []string
	// A corrupt column falls back to no resolver keys rather than an error;
	// the send path treats that as a template without variables.
	_ = json.Unmarshal(m.ResolverKeys, &keys)

	return &domain.DispatchMapping{
		ID:           m.ID,
		EventKey:     m.EventKey,
		TemplateName: m.TemplateName,
		Language:     m.Language,
		ResolverKeys: keys,
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func consentModelFromDomain(c *domain.ConsentRecord) *ConsentRecordModel {
	if c == nil {
		return nil
	}

	return &ConsentRecordModel{
		ID:        c.ID,
		UserID:    c.UserID,
		OrderID:   c.OrderID,
		PhoneE164: c.PhoneE164,
		Consent:   c.Consent,
		Source:    c.Source,
		ConsentAt: c.ConsentAt,
	}
}

func consentModelToDomain(m *ConsentRecordModel) *domain.ConsentRecord {
	if m == nil {
		return nil
	}

	return &domain.ConsentRecord{
		ID:        m.ID,
		UserID:    m.UserID,
		OrderID:   m.OrderID,
		PhoneE164: m.PhoneE164,
		Consent:   m.Consent,
		Source:    m.Source,
		ConsentAt: m.ConsentAt,
	}
}

func orderModelToDomain(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}

	return &domain.Order{
		ID:                m.ID,
		Number:            m.Number,
		Total:             m.Total,
		Currency:          m.Currency,
		Status:            m.Status,
		BillingFirstName:  m.BillingFirstName,
		BillingLastName:   m.BillingLastName,
		BillingPhone:      m.BillingPhone,
		BillingEmail:      m.BillingEmail,
		ShippingFirstName: m.ShippingFirstName,
		ShippingLastName:  m.ShippingLastName,
	}
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}
