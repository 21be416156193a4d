package migration

import (
	"github.com/smallbiznis/bsma/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			log.Info("schema migrations skipped", zap.Bool("migrate_on_start", false))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		dialect := conn.Dialector.Name()
		if err := RunMigrations(sqlDB, dialect); err != nil {
			return err
		}
		log.Info("schema migrations applied", zap.String("dialect", dialect))
		return nil
	}),
)
