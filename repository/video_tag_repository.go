package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/utils"
	"gorm.io/gorm"
)

// VideoTagRepositoryImpl implements VideoTagRepository
type VideoTagRepositoryImpl struct {
	DB *gorm.DB
}

// NewVideoTagRepository creates a new link store
func NewVideoTagRepository(db *gorm.DB) VideoTagRepository {
	return &VideoTagRepositoryImpl{DB: db}
}

func (r *VideoTagRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx)
}

// Create inserts a link. A duplicate (video_id, tag_id) yields ErrConflict.
func (r *VideoTagRepositoryImpl) Create(ctx context.Context, link *models.VideoTag) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = utils.UTCNow()
	}
	if err := r.getDB(ctx).Create(link).Error; err != nil {
		return translateWriteError("failed to create video tag link", err)
	}
	return nil
}

// Exists reports whether the link is present
func (r *VideoTagRepositoryImpl) Exists(ctx context.Context, videoID, tagID uint) (bool, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.VideoTag{}).
		Where("video_id = ? AND tag_id = ?", videoID, tagID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check video tag link: %w", err)
	}
	return count > 0, nil
}

// ListTagIDsByVideo returns the ids of tags linked to a video
func (r *VideoTagRepositoryImpl) ListTagIDsByVideo(ctx context.Context, videoID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.VideoTag{}).
		Where("video_id = ?", videoID).
		Order("tag_id ASC").
		Pluck("tag_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tags of video %d: %w", videoID, err)
	}
	return ids, nil
}

// DeleteByVideoIDs removes every link of the given videos
func (r *VideoTagRepositoryImpl) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	if len(videoIDs) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Where("video_id IN ?", videoIDs).Delete(&models.VideoTag{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete video tag links: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByTagID removes every link of a tag
func (r *VideoTagRepositoryImpl) DeleteByTagID(ctx context.Context, tagID uint) (int64, error) {
	res := r.getDB(ctx).Where("tag_id = ?", tagID).Delete(&models.VideoTag{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete links of tag %d: %w", tagID, res.Error)
	}
	return res.RowsAffected, nil
}

// CountByTagID returns the number of links referencing a tag
func (r *VideoTagRepositoryImpl) CountByTagID(ctx context.Context, tagID uint) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.VideoTag{}).Where("tag_id = ?", tagID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count links of tag %d: %w", tagID, err)
	}
	return count, nil
}

// CountByTagIDs returns link counts per tag
func (r *VideoTagRepositoryImpl) CountByTagIDs(ctx context.Context, tagIDs []uint) (map[uint]int64, error) {
	if len(tagIDs) == 0 {
		return map[uint]int64{}, nil
	}
	var rows []groupedCount
	err := r.getDB(ctx).Model(&models.VideoTag{}).
		Select("tag_id AS key, COUNT(*) AS total").
		Where("tag_id IN ?", tagIDs).
		Group("tag_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count links per tag: %w", err)
	}
	return toCountMap(rows), nil
}

// CountByTagForVideos returns, per tag, how many of the given videos link to it
func (r *VideoTagRepositoryImpl) CountByTagForVideos(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	if len(videoIDs) == 0 {
		return map[uint]int64{}, nil
	}
	var rows []groupedCount
	err := r.getDB(ctx).Model(&models.VideoTag{}).
		Select("tag_id AS key, COUNT(*) AS total").
		Where("video_id IN ?", videoIDs).
		Group("tag_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count links of videos per tag: %w", err)
	}
	return toCountMap(rows), nil
}
