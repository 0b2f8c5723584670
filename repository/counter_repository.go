package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/utils"
	"gorm.io/gorm"
)

// CounterRepositoryImpl implements CounterRepository over tags.usage_count and the video counters
type CounterRepositoryImpl struct {
	DB *gorm.DB
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &CounterRepositoryImpl{DB: db}
}

func (r *CounterRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx)
}

func (r *CounterRepositoryImpl) readColumn(ctx context.Context, model any, id uint, column string) (int64, error) {
	var values []int64
	err := r.getDB(ctx).Model(model).Where("id = ?", id).Limit(1).Pluck(column, &values).Error
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, ErrNotFound
	}
	return values[0], nil
}

func (r *CounterRepositoryImpl) writeColumn(ctx context.Context, model any, id uint, column string, value int64) error {
	if value < 0 {
		value = 0
	}
	res := r.getDB(ctx).Model(model).Where("id = ?", id).Updates(map[string]any{
		column:       value,
		"updated_at": utils.UTCNow(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TagUsage reads tags.usage_count
func (r *CounterRepositoryImpl) TagUsage(ctx context.Context, tagID uint) (int64, error) {
	v, err := r.readColumn(ctx, &models.Tag{}, tagID, "usage_count")
	if err != nil {
		return 0, fmt.Errorf("failed to read usage_count of tag %d: %w", tagID, err)
	}
	return v, nil
}

// SetTagUsage overwrites tags.usage_count; negative values are stored as zero
func (r *CounterRepositoryImpl) SetTagUsage(ctx context.Context, tagID uint, value int64) error {
	if err := r.writeColumn(ctx, &models.Tag{}, tagID, "usage_count", value); err != nil {
		return fmt.Errorf("failed to set usage_count of tag %d: %w", tagID, err)
	}
	return nil
}

// AdjustTagUsage adds delta to tags.usage_count, never going below zero
func (r *CounterRepositoryImpl) AdjustTagUsage(ctx context.Context, tagID uint, delta int64) (CounterChange, error) {
	current, err := r.TagUsage(ctx, tagID)
	if err != nil {
		return CounterChange{}, err
	}
	next := ClampCounter(current, delta)
	if err := r.SetTagUsage(ctx, tagID, next); err != nil {
		return CounterChange{Before: current, After: current}, err
	}
	return CounterChange{Before: current, After: next}, nil
}

// VideoCounter reads one counter column of a video
func (r *CounterRepositoryImpl) VideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter) (int64, error) {
	if !counter.Valid() {
		return 0, fmt.Errorf("unknown video counter %q", counter)
	}
	v, err := r.readColumn(ctx, &models.Video{}, videoID, string(counter))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s of video %d: %w", counter, videoID, err)
	}
	return v, nil
}

// SetVideoCounter overwrites one counter column of a video
func (r *CounterRepositoryImpl) SetVideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter, value int64) error {
	if !counter.Valid() {
		return fmt.Errorf("unknown video counter %q", counter)
	}
	if err := r.writeColumn(ctx, &models.Video{}, videoID, string(counter), value); err != nil {
		return fmt.Errorf("failed to set %s of video %d: %w", counter, videoID, err)
	}
	return nil
}

// AdjustVideoCounter adds delta to one counter column of a video, never going below zero
func (r *CounterRepositoryImpl) AdjustVideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter, delta int64) (CounterChange, error) {
	current, err := r.VideoCounter(ctx, videoID, counter)
	if err != nil {
		return CounterChange{}, err
	}
	next := ClampCounter(current, delta)
	if err := r.SetVideoCounter(ctx, videoID, counter, next); err != nil {
		return CounterChange{Before: current, After: current}, err
	}
	return CounterChange{Before: current, After: next}, nil
}
