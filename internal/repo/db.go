// This file contains database bootstrapping helpers for SQLite (pure Go
// driver) and the gorm-backed document store.
package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/claimbot/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=FULL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool. One writer is enough for two documents.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the documents table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Document{})
}

// SQLiteStore stores each document as one row of the documents table.
type SQLiteStore struct {
	DB *gorm.DB
}

// NewSQLiteStore opens the database at path, migrates it and returns a store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{DB: db}, nil
}

// Load returns the body stored under key, or ErrDocumentNotFound.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc domain.Document
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return []byte(doc.Body), nil
}

// Save upserts the document under key.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	doc := domain.Document{
		Key:       key,
		Body:      string(data),
		UpdatedAt: time.Now().UTC(),
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).
		Create(&doc).Error
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
