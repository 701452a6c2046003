package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"sealoop/essctl/internal/config"
)

// PostgreSQL is the durable store for alarm rising/falling-edge records.
type PostgreSQL struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewPostgreSQL opens a connection, configures the pool, and migrates
// the alarm_records schema.
func NewPostgreSQL(cfg config.PostgreSQLConfig, log *zap.Logger) (*PostgreSQL, error) {
	dbLogger := log.With(
		zap.String("database", "postgresql"),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	dbLogger.Info("initializing postgresql connection")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Error),
	})
	if err != nil {
		dbLogger.Error("failed to connect to postgresql", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to postgresql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		dbLogger.Error("failed to get underlying sql.DB", zap.Error(err))
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		dbLogger.Error("failed to ping postgresql", zap.Error(err))
		return nil, fmt.Errorf("failed to ping postgresql: %w", err)
	}

	p := &PostgreSQL{db: db, log: dbLogger}

	if err := p.migrate(); err != nil {
		dbLogger.Error("failed to migrate database", zap.Error(err))
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	dbLogger.Info("postgresql connection established",
		zap.Int("max_idle", cfg.MaxIdle),
		zap.Int("max_open", cfg.MaxOpen))
	return p, nil
}

func (p *PostgreSQL) migrate() error {
	return p.db.AutoMigrate(&AlarmRecord{})
}

// Close closes the underlying connection pool.
func (p *PostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveAlarm inserts a new alarm edge record.
func (p *PostgreSQL) SaveAlarm(rec AlarmRecord) error {
	if err := p.db.Create(&rec).Error; err != nil {
		p.log.Error("failed to save alarm",
			zap.Error(err),
			zap.String("pack_id", rec.PackID),
			zap.String("source", rec.Source),
			zap.String("kind", rec.Kind))
		return err
	}
	return nil
}

// GetActiveAlarms returns every currently-active alarm, newest first.
func (p *PostgreSQL) GetActiveAlarms() ([]AlarmRecord, error) {
	var alarms []AlarmRecord
	err := p.db.Where("active = ?", true).Order("timestamp desc").Find(&alarms).Error
	if err != nil {
		p.log.Error("failed to get active alarms", zap.Error(err))
		return nil, err
	}
	return alarms, nil
}

// GetAlarmHistory returns alarm records with pagination, newest first.
func (p *PostgreSQL) GetAlarmHistory(limit, offset int) ([]AlarmRecord, error) {
	var alarms []AlarmRecord
	err := p.db.Order("timestamp desc").Limit(limit).Offset(offset).Find(&alarms).Error
	if err != nil {
		p.log.Error("failed to get alarm history", zap.Error(err),
			zap.Int("limit", limit), zap.Int("offset", offset))
		return nil, err
	}
	return alarms, nil
}

// GetAlarmsByPack returns alarms for a single pack, optionally restricted
// to currently-active ones.
func (p *PostgreSQL) GetAlarmsByPack(packID string, activeOnly bool) ([]AlarmRecord, error) {
	query := p.db.Where("pack_id = ?", packID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var alarms []AlarmRecord
	err := query.Order("timestamp desc").Find(&alarms).Error
	if err != nil {
		p.log.Error("failed to get alarms by pack", zap.Error(err), zap.String("pack_id", packID))
		return nil, err
	}
	return alarms, nil
}

// DeactivateAllAlarms marks every active alarm inactive in a single query,
// used by the alarm manager on start to clear rows left active by a
// previous run.
func (p *PostgreSQL) DeactivateAllAlarms() (int64, error) {
	result := p.db.Model(&AlarmRecord{}).Where("active = ?", true).Update("active", false)
	if result.Error != nil {
		p.log.Error("failed to deactivate all alarms", zap.Error(result.Error))
		return 0, result.Error
	}
	p.log.Info("deactivated all active alarms", zap.Int64("count", result.RowsAffected))
	return result.RowsAffected, nil
}

// DeactivateAlarm clears the active flag on every active rising-edge
// record matching a pack/source/kind/fault tuple.
func (p *PostgreSQL) DeactivateAlarm(packID, source, kind string, fault bool) error {
	result := p.db.Model(&AlarmRecord{}).
		Where("pack_id = ? AND source = ? AND kind = ? AND fault = ? AND active = ?", packID, source, kind, fault, true).
		Update("active", false)
	if result.Error != nil {
		p.log.Error("failed to deactivate alarm", zap.Error(result.Error),
			zap.String("pack_id", packID), zap.String("source", source), zap.String("kind", kind))
		return result.Error
	}
	return nil
}

// DeleteOldAlarms removes inactive alarm records older than olderThan.
func (p *PostgreSQL) DeleteOldAlarms(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	result := p.db.Where("timestamp < ? AND active = ?", cutoff, false).Delete(&AlarmRecord{})
	if result.Error != nil {
		p.log.Error("failed to delete old alarms", zap.Error(result.Error), zap.Duration("older_than", olderThan))
		return result.Error
	}
	p.log.Info("old alarms deleted", zap.Int64("deleted_count", result.RowsAffected))
	return nil
}

// HealthCheck reports whether PostgreSQL is reachable.
func (p *PostgreSQL) HealthCheck() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
