package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/ordercast/wadispatch/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_dispatch_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DispatchLogModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_dispatch_logs_status_created ON dispatch_logs (status, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_dispatch_logs_order_id ON dispatch_logs (order_id) WHERE order_id IS NOT NULL`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_dispatch_logs_provider_message_id ON dispatch_logs (provider_message_id) WHERE provider_message_id IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_dispatch_logs_phone ON dispatch_logs (phone_e164)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DispatchLogModel{})
			},
		},
		{
			ID: "000002_create_dispatch_mappings",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DispatchMappingModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_dispatch_mappings_event_enabled ON dispatch_mappings (event_key, enabled)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DispatchMappingModel{})
			},
		},
		{
			ID: "000003_create_consent_records",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ConsentRecordModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_consent_records_phone ON consent_records (phone_e164, id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ConsentRecordModel{})
			},
		},
	})

	return m.Migrate()
}
