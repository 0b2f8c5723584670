package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/utils"
	"gorm.io/gorm"
)

// countPerVideo groups rows of model by video_id, restricted by where
func countPerVideo(db *gorm.DB, model any, where string, args ...any) (map[uint]int64, error) {
	var rows []groupedCount
	err := db.Model(model).
		Select("video_id AS key, COUNT(*) AS total").
		Where(where, args...).
		Group("video_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}

// LikeRepositoryImpl implements LikeRepository
type LikeRepositoryImpl struct {
	DB *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &LikeRepositoryImpl{DB: db}
}

// Save inserts a like. A second like by the same user yields ErrConflict.
func (r *LikeRepositoryImpl) Save(ctx context.Context, like *models.Like) error {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = utils.UTCNow()
	}
	if err := r.DB.WithContext(ctx).Create(like).Error; err != nil {
		return translateWriteError("failed to save like", err)
	}
	return nil
}

// Delete removes one user's like on a video
func (r *LikeRepositoryImpl) Delete(ctx context.Context, videoID, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("video_id = ? AND user_id = ?", videoID, userID).Delete(&models.Like{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete like: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountByVideoIDs returns like counts per video
func (r *LikeRepositoryImpl) CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	if len(videoIDs) == 0 {
		return map[uint]int64{}, nil
	}
	out, err := countPerVideo(r.DB.WithContext(ctx), &models.Like{}, "video_id IN ?", videoIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	return out, nil
}

// CountByVideoForUser returns, per video, how many likes the user left
func (r *LikeRepositoryImpl) CountByVideoForUser(ctx context.Context, userID uint) (map[uint]int64, error) {
	out, err := countPerVideo(r.DB.WithContext(ctx), &models.Like{}, "user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes of user %d: %w", userID, err)
	}
	return out, nil
}

// DeleteByVideoIDs removes every like on the given videos
func (r *LikeRepositoryImpl) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	if len(videoIDs) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Where("video_id IN ?", videoIDs).Delete(&models.Like{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete likes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByUserID removes every like a user left
func (r *LikeRepositoryImpl) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Like{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete likes of user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

// CommentRepositoryImpl implements CommentRepository
type CommentRepositoryImpl struct {
	*BaseRepository[models.Comment, struct{}]
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &CommentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Comment, struct{}](db),
	}
}

// DeleteByID removes a single comment
func (r *CommentRepositoryImpl) DeleteByID(ctx context.Context, id uint) (int64, error) {
	res := r.getDB(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete comment %d: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// CountByVideoIDs returns comment counts per video
func (r *CommentRepositoryImpl) CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	if len(videoIDs) == 0 {
		return map[uint]int64{}, nil
	}
	out, err := countPerVideo(r.getDB(ctx), &models.Comment{}, "video_id IN ?", videoIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	return out, nil
}

// CountByVideoForUser returns, per video, how many comments the user wrote
func (r *CommentRepositoryImpl) CountByVideoForUser(ctx context.Context, userID uint) (map[uint]int64, error) {
	out, err := countPerVideo(r.getDB(ctx), &models.Comment{}, "user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments of user %d: %w", userID, err)
	}
	return out, nil
}

// DeleteByVideoIDs removes every comment on the given videos
func (r *CommentRepositoryImpl) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	if len(videoIDs) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Where("video_id IN ?", videoIDs).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete comments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByUserID removes every comment a user wrote
func (r *CommentRepositoryImpl) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.getDB(ctx).Where("user_id = ?", userID).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete comments of user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

// VideoViewRepositoryImpl implements VideoViewRepository
type VideoViewRepositoryImpl struct {
	DB *gorm.DB
}

// NewVideoViewRepository creates a new view repository
func NewVideoViewRepository(db *gorm.DB) VideoViewRepository {
	return &VideoViewRepositoryImpl{DB: db}
}

func (r *VideoViewRepositoryImpl) Save(ctx context.Context, view *models.VideoView) error {
	if view.CreatedAt.IsZero() {
		view.CreatedAt = utils.UTCNow()
	}
	if err := r.DB.WithContext(ctx).Create(view).Error; err != nil {
		return translateWriteError("failed to save view", err)
	}
	return nil
}

// CountByVideoIDs returns view counts per video
func (r *VideoViewRepositoryImpl) CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	if len(videoIDs) == 0 {
		return map[uint]int64{}, nil
	}
	out, err := countPerVideo(r.DB.WithContext(ctx), &models.VideoView{}, "video_id IN ?", videoIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}
	return out, nil
}

// DeleteByVideoIDs removes every view of the given videos
func (r *VideoViewRepositoryImpl) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	if len(videoIDs) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Where("video_id IN ?", videoIDs).Delete(&models.VideoView{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete views: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AnonymizeByUserID nulls user_id on a user's views
func (r *VideoViewRepositoryImpl) AnonymizeByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.VideoView{}).
		Where("user_id = ?", userID).
		Update("user_id", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to anonymize views of user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}
