// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// BaseRepository provides common single-statement CRUD shared by every table repository.
// No method opens a transaction: each call is one round-trip and one atomic row write.
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{
		DB: db,
	}
}

// getDB returns the connection bound to ctx
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx)
}

// ByID retrieves an entity by its ID
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	db := r.getDB(ctx)

	var entity T
	err := db.Last(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find entity by ID %d: %w", id, err)
	}

	return &entity, nil
}

// Save inserts a new entity. A unique-constraint violation is returned wrapped in ErrConflict.
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	if err := r.getDB(ctx).Create(entity).Error; err != nil {
		return translateWriteError("failed to save entity", err)
	}
	return nil
}

// SaveBatch inserts multiple entities in batches of 100
func (r *BaseRepository[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}

	if err := r.getDB(ctx).CreateInBatches(entities, 100).Error; err != nil {
		return translateWriteError("failed to save batch entities", err)
	}

	return nil
}

// paginate applies order, limit and offset the same way for every ByFilter
func paginate(query *gorm.DB, orderBy string, limit, offset int) *gorm.DB {
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// groupedCount is the scan target for "SELECT key, COUNT(*) ... GROUP BY key" queries
type groupedCount struct {
	Key   uint
	Total int64
}

func toCountMap(rows []groupedCount) map[uint]int64 {
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Total
	}
	return out
}
