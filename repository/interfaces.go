// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/Geovid/models"
	"github.com/google/uuid"
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// Update writes the profile columns and last_login_at of an existing row
	Update(ctx context.Context, user *models.User) error
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
}

// AtomicUserUpserter is implemented by stores that can create-or-update a user by
// external id in a single statement. It is an optimization tried before the retry loop.
type AtomicUserUpserter interface {
	UpsertByExternalID(ctx context.Context, user *models.User) (*models.User, error)
}

// VideoRepository defines operations for videos
type VideoRepository interface {
	Repository[models.Video, models.VideoFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	// ListIDsAfter pages through video ids in ascending order starting after afterID
	ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
}

// TagRepository defines operations for tags
type TagRepository interface {
	Repository[models.Tag, models.TagFilter]
	// ByName looks a tag up by its normalized name
	ByName(ctx context.Context, name string) (*models.Tag, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.Tag, error)
	// ListIDsAfter pages through tag ids in ascending order starting after afterID
	ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error)
	DeleteByID(ctx context.Context, id uint) (int64, error)
	ClearCreator(ctx context.Context, userID uint) (int64, error)
}

// VideoTagRepository is the link store over the video_tags junction table
type VideoTagRepository interface {
	Create(ctx context.Context, link *models.VideoTag) error
	Exists(ctx context.Context, videoID, tagID uint) (bool, error)
	ListTagIDsByVideo(ctx context.Context, videoID uint) ([]uint, error)
	DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error)
	DeleteByTagID(ctx context.Context, tagID uint) (int64, error)
	CountByTagID(ctx context.Context, tagID uint) (int64, error)
	// CountByTagIDs returns link counts per tag; tags without links are absent from the map
	CountByTagIDs(ctx context.Context, tagIDs []uint) (map[uint]int64, error)
	// CountByTagForVideos returns, per tag, how many of videoIDs link to it
	CountByTagForVideos(ctx context.Context, videoIDs []uint) (map[uint]int64, error)
}

// CounterRepository reads and writes the denormalized counters on tags and videos.
// Adjust methods read the current value and write the clamped result in a second
// statement; they are not atomic against concurrent adjustments of the same row.
type CounterRepository interface {
	TagUsage(ctx context.Context, tagID uint) (int64, error)
	SetTagUsage(ctx context.Context, tagID uint, value int64) error
	AdjustTagUsage(ctx context.Context, tagID uint, delta int64) (CounterChange, error)
	VideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter) (int64, error)
	SetVideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter, value int64) error
	AdjustVideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter, delta int64) (CounterChange, error)
}

// LikeRepository defines operations for likes
type LikeRepository interface {
	Save(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, videoID, userID uint) (int64, error)
	CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error)
	CountByVideoForUser(ctx context.Context, userID uint) (map[uint]int64, error)
	DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error)
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
}

// CommentRepository defines operations for comments
type CommentRepository interface {
	Save(ctx context.Context, comment *models.Comment) error
	ByID(ctx context.Context, id uint) (*models.Comment, error)
	DeleteByID(ctx context.Context, id uint) (int64, error)
	CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error)
	CountByVideoForUser(ctx context.Context, userID uint) (map[uint]int64, error)
	DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error)
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
}

// VideoViewRepository defines operations for video views
type VideoViewRepository interface {
	Save(ctx context.Context, view *models.VideoView) error
	CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error)
	DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error)
	// AnonymizeByUserID detaches a user's views; the rows still count toward views_count
	AnonymizeByUserID(ctx context.Context, userID uint) (int64, error)
}

// CounterChange is the before/after of one read-then-write counter update
type CounterChange struct {
	Before int64 `json:"before"`
	After  int64 `json:"after"`
}

// ClampCounter applies delta to current and floors the result at zero
func ClampCounter(current, delta int64) int64 {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}
