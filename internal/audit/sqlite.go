package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore is the default zero-config audit backend: a single database
// file under the workspace state directory, WAL mode for concurrent reads.
type SQLiteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating parent directories as needed) and migrates the
// audit database at path.
func OpenSQLite(path string, slogger *slog.Logger) (*SQLiteStore, error) {
	if slogger == nil {
		slogger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating audit db directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating audit schema: %w", err)
	}

	slogger.Info("audit store ready", slog.String("driver", "sqlite"), slog.String("path", path))
	return &SQLiteStore{db: db, logger: slogger}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *SQLiteStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", olderThan).
		Delete(&Record{})
	return res.RowsAffected, res.Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
