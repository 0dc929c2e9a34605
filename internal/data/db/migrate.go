package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/stackmemory-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureRouteIndexes adds the partial indexes gorm tags cannot express.
func EnsureRouteIndexes(db *gorm.DB) error {
	// At most one current route per user.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_routes_user_current
		ON routes(user_id)
		WHERE is_current;
	`).Error; err != nil {
		return fmt.Errorf("create idx_routes_user_current: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_routes_user_updated_at ON routes(user_id, updated_at DESC);`).Error; err != nil {
		return fmt.Errorf("create idx_routes_user_updated_at: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_route_tasks_route_week_day ON route_tasks(route_id, week, day);`).Error; err != nil {
		return fmt.Errorf("create idx_route_tasks_route_week_day: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureRouteIndexes(s.db); err != nil {
		s.log.Error("Route index migration failed", "error", err)
		return err
	}
	return nil
}
