package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Geovid/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VideoRepositoryImpl implements VideoRepository
type VideoRepositoryImpl struct {
	*BaseRepository[models.Video, models.VideoFilter]
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &VideoRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Video, models.VideoFilter](db),
	}
}

// ByUUID retrieves a video by its public UUID
func (r *VideoRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	rows, err := r.ByFilter(ctx, models.VideoFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListIDsByUser returns the ids of every video owned by userID
func (r *VideoRepositoryImpl) ListIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.Video{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos of user %d: %w", userID, err)
	}
	return ids, nil
}

// ListIDsAfter pages through video ids in ascending order
func (r *VideoRepositoryImpl) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	query := r.getDB(ctx).Model(&models.Video{}).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to page video ids: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes video rows only; links and facts are cleaned up by the caller first
func (r *VideoRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Where("id IN ?", ids).Delete(&models.Video{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete videos: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *VideoRepositoryImpl) applyFilter(query *gorm.DB, filter models.VideoFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves videos based on filter criteria
func (r *VideoRepositoryImpl) ByFilter(ctx context.Context, filter models.VideoFilter, orderBy string, limit, offset int) ([]*models.Video, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Video{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.Video
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of videos matching the filter
func (r *VideoRepositoryImpl) Count(ctx context.Context, filter models.VideoFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Video{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any video matching the filter exists
func (r *VideoRepositoryImpl) Exists(ctx context.Context, filter models.VideoFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
