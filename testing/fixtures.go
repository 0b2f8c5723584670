package testing

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
	"github.com/google/uuid"
)

var fixtureSeq atomic.Uint64

// TestFixtures creates rows through the repository interfaces, so the same helpers
// seed either the memory store or a container database.
type TestFixtures struct {
	Users    repository.UserRepository
	Videos   repository.VideoRepository
	Tags     repository.TagRepository
	Links    repository.VideoTagRepository
	Counters repository.CounterRepository
	Likes    repository.LikeRepository
	Comments repository.CommentRepository
	Views    repository.VideoViewRepository
}

// NewMemoryFixtures seeds a MemoryStore
func NewMemoryFixtures(s *MemoryStore) *TestFixtures {
	return &TestFixtures{
		Users:    s.Users(),
		Videos:   s.Videos(),
		Tags:     s.Tags(),
		Links:    s.Links(),
		Counters: s.Counters(),
		Likes:    s.Likes(),
		Comments: s.Comments(),
		Views:    s.Views(),
	}
}

// NewTestFixtures seeds a container database through the gorm repositories
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{
		Users:    repository.NewUserRepository(db.DB),
		Videos:   repository.NewVideoRepository(db.DB),
		Tags:     repository.NewTagRepository(db.DB),
		Links:    repository.NewVideoTagRepository(db.DB),
		Counters: repository.NewCounterRepository(db.DB),
		Likes:    repository.NewLikeRepository(db.DB),
		Comments: repository.NewCommentRepository(db.DB),
		Views:    repository.NewVideoViewRepository(db.DB),
	}
}

func nextSeq() uint64 {
	return fixtureSeq.Add(1)
}

// CreateTestUser creates a user with a unique external id
func (tf *TestFixtures) CreateTestUser(ctx context.Context) (*models.User, error) {
	n := nextSeq()
	user := &models.User{
		ExternalID:  fmt.Sprintf("ext-fixture-%d", n),
		Provider:    "google",
		Email:       utils.ToPtr(fmt.Sprintf("user.%d@example.com", n)),
		DisplayName: utils.ToPtr(fmt.Sprintf("User %d", n)),
		IsAdmin:     utils.ToPtr(false),
	}
	if err := tf.Users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestVideo creates a video owned by userID
func (tf *TestFixtures) CreateTestVideo(ctx context.Context, userID uint) (*models.Video, error) {
	lat, lng := 35.6892, 51.3890
	video := &models.Video{
		UUID:         uuid.New(),
		UserID:       userID,
		Title:        fmt.Sprintf("Clip %d", nextSeq()),
		MediaURL:     "https://cdn.example.com/clip.mp4",
		Latitude:     &lat,
		Longitude:    &lng,
		LocationName: utils.ToPtr("Tehran"),
	}
	if err := tf.Videos.Save(ctx, video); err != nil {
		return nil, fmt.Errorf("failed to create test video: %w", err)
	}
	return video, nil
}

// CreateTestTag creates a tag whose stored usage_count is usage, regardless of its links
func (tf *TestFixtures) CreateTestTag(ctx context.Context, name string, usage int64) (*models.Tag, error) {
	tag := &models.Tag{Name: models.NormalizeTagName(name)}
	if err := tf.Tags.Save(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create test tag: %w", err)
	}
	if usage != 0 {
		if err := tf.Counters.SetTagUsage(ctx, tag.ID, usage); err != nil {
			return nil, fmt.Errorf("failed to set usage_count: %w", err)
		}
		tag.UsageCount = usage
	}
	return tag, nil
}

// LinkTag inserts a link row without touching usage_count
func (tf *TestFixtures) LinkTag(ctx context.Context, videoID, tagID uint) error {
	return tf.Links.Create(ctx, &models.VideoTag{VideoID: videoID, TagID: tagID})
}

// CreateTaggedVideo creates a video linked to every tag and increments each tag's usage_count
func (tf *TestFixtures) CreateTaggedVideo(ctx context.Context, userID uint, tags ...*models.Tag) (*models.Video, error) {
	video, err := tf.CreateTestVideo(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if err := tf.LinkTag(ctx, video.ID, tag.ID); err != nil {
			return nil, err
		}
		if _, err := tf.Counters.AdjustTagUsage(ctx, tag.ID, 1); err != nil {
			return nil, err
		}
	}
	return video, nil
}

// AddLike inserts a like fact without touching likes_count
func (tf *TestFixtures) AddLike(ctx context.Context, videoID, userID uint) error {
	return tf.Likes.Save(ctx, &models.Like{VideoID: videoID, UserID: userID})
}

// AddComment inserts a comment fact without touching comments_count
func (tf *TestFixtures) AddComment(ctx context.Context, videoID, userID uint, body string) (*models.Comment, error) {
	c := &models.Comment{VideoID: videoID, UserID: userID, Body: body}
	if err := tf.Comments.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddView inserts a view fact without touching views_count
func (tf *TestFixtures) AddView(ctx context.Context, videoID uint, userID *uint) error {
	return tf.Views.Save(ctx, &models.VideoView{VideoID: videoID, UserID: userID})
}
