package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/utils"
	"gorm.io/gorm"
)

// TagRepositoryImpl implements TagRepository
type TagRepositoryImpl struct {
	*BaseRepository[models.Tag, models.TagFilter]
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &TagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Tag, models.TagFilter](db),
	}
}

// ByName looks a tag up by name; the name is normalized before matching
func (r *TagRepositoryImpl) ByName(ctx context.Context, name string) (*models.Tag, error) {
	normalized := models.NormalizeTagName(name)
	rows, err := r.ByFilter(ctx, models.TagFilter{Name: &normalized}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListByIDs returns the tags with the given ids, ordered by id
func (r *TagRepositoryImpl) ListByIDs(ctx context.Context, ids []uint) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.ByFilter(ctx, models.TagFilter{IDs: ids}, "id ASC", 0, 0)
}

// ListIDsAfter pages through tag ids in ascending order
func (r *TagRepositoryImpl) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	query := r.getDB(ctx).Model(&models.Tag{}).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to page tag ids: %w", err)
	}
	return ids, nil
}

// DeleteByID removes a tag row; its links must already be gone
func (r *TagRepositoryImpl) DeleteByID(ctx context.Context, id uint) (int64, error) {
	res := r.getDB(ctx).Where("id = ?", id).Delete(&models.Tag{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete tag %d: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// ClearCreator nulls created_by on every tag the user created
func (r *TagRepositoryImpl) ClearCreator(ctx context.Context, userID uint) (int64, error) {
	res := r.getDB(ctx).Model(&models.Tag{}).
		Where("created_by = ?", userID).
		Updates(map[string]any{"created_by": nil, "updated_at": utils.UTCNow()})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear tag creator %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *TagRepositoryImpl) applyFilter(query *gorm.DB, filter models.TagFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves tags based on filter criteria
func (r *TagRepositoryImpl) ByFilter(ctx context.Context, filter models.TagFilter, orderBy string, limit, offset int) ([]*models.Tag, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Tag{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.Tag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of tags matching the filter
func (r *TagRepositoryImpl) Count(ctx context.Context, filter models.TagFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Tag{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any tag matching the filter exists
func (r *TagRepositoryImpl) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
