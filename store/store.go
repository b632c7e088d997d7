// Package store provides sqlite-backed persistence for the platform. A
// generic DataStore wraps gorm CRUD for one record type; Stores bundles
// the typed stores plus the domain-level query helpers the API handlers
// use.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	surface "github.com/surfacehq/surface"
)

// DataStore is a generic gorm repository for a single record type. The
// record's primary key is its string ID column.
type DataStore[T any] struct {
	db *gorm.DB
}

// NewDataStore creates a repository over an open database handle.
func NewDataStore[T any](db *gorm.DB) *DataStore[T] {
	return &DataStore[T]{db: db}
}

// Create inserts the record.
func (s *DataStore[T]) Create(ctx context.Context, rec *T) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return surface.NewInternalError("store.Create", err)
	}
	return nil
}

// Get returns the record by ID.
func (s *DataStore[T]) Get(ctx context.Context, id string) (*T, error) {
	var rec T
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, surface.NewNotFoundError("store.Get",
			fmt.Errorf("record %s not found", id))
	}
	if err != nil {
		return nil, surface.NewInternalError("store.Get", err)
	}
	return &rec, nil
}

// Save writes the full record back, creating it if missing.
func (s *DataStore[T]) Save(ctx context.Context, rec *T) error {
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return surface.NewInternalError("store.Save", err)
	}
	return nil
}

// Delete removes the record by ID.
func (s *DataStore[T]) Delete(ctx context.Context, id string) error {
	var rec T
	res := s.db.WithContext(ctx).Delete(&rec, "id = ?", id)
	if res.Error != nil {
		return surface.NewInternalError("store.Delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return surface.NewNotFoundError("store.Delete",
			fmt.Errorf("record %s not found", id))
	}
	return nil
}

// List returns records matching the scopes.
func (s *DataStore[T]) List(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]T, error) {
	var recs []T
	if err := s.db.WithContext(ctx).Scopes(scopes...).Find(&recs).Error; err != nil {
		return nil, surface.NewInternalError("store.List", err)
	}
	return recs, nil
}

// Count returns the number of records matching the scopes, ignoring
// pagination.
func (s *DataStore[T]) Count(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (int64, error) {
	var rec T
	var n int64
	if err := s.db.WithContext(ctx).Model(&rec).Scopes(scopes...).Count(&n).Error; err != nil {
		return 0, surface.NewInternalError("store.Count", err)
	}
	return n, nil
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema. Use ":memory:" for tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, surface.NewConfigurationError("store.Open", err)
	}

	if err := db.AutoMigrate(
		&FindingRecord{},
		&AssetRecord{},
		&AssetGroupRecord{},
		&AuditRecord{},
		&TenantRecord{},
	); err != nil {
		return nil, surface.NewInternalError("store.Open", err)
	}
	return db, nil
}
