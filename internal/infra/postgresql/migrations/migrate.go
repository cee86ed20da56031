package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/viesti/telia-gateway/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createDeliveriesTable(),
	})

	return m.Migrate()
}

func createDeliveriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_deliveries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Correlation secrets are collision-checked in the application
				// before insert; the unique index is the backstop.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_callback_data ON deliveries (callback_data)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_status_created ON deliveries (status, created_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryModel{})
		},
	}
}
