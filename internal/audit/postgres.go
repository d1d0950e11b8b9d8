package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresStore backs the audit trail with PostgreSQL for deployments where
// several engine instances share one trail.
type PostgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects with a small pool and migrates the audit schema.
func OpenPostgres(dsn string, slogger *slog.Logger) (*PostgresStore, error) {
	if slogger == nil {
		slogger = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		NowFunc:     func() time.Time { return time.Now().UTC() },
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating audit schema: %w", err)
	}

	slogger.Info("audit store ready", slog.String("driver", "postgres"))
	return &PostgresStore{db: db, logger: slogger}, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", olderThan).
		Delete(&Record{})
	return res.RowsAffected, res.Error
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
