package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	testingutil "github.com/amirphl/Geovid/testing"
	"github.com/amirphl/Geovid/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDB(t *testing.T, fn func(db *testingutil.TestDB)) {
	t.Helper()
	err := testingutil.TestWithDB(func(db *testingutil.TestDB) error {
		fn(db)
		return nil
	})
	if errors.Is(err, testingutil.ErrIntegrationDisabled) {
		t.Skip(err.Error())
	}
	require.NoError(t, err)
}

func TestTagRepository(t *testing.T) {
	withDB(t, func(db *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(db)
		repo := repository.NewTagRepository(db.DB)

		t.Run("ByNameNormalizes", func(t *testing.T) {
			tag, err := fx.CreateTestTag(ctx, "Beach", 0)
			require.NoError(t, err)

			found, err := repo.ByName(ctx, "  BEACH ")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, tag.ID, found.ID)

			missing, err := repo.ByName(ctx, "mountain")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("DuplicateNameConflicts", func(t *testing.T) {
			err := repo.Save(ctx, &models.Tag{Name: "beach"})
			require.Error(t, err)
			assert.True(t, repository.IsConflict(err))
		})

		t.Run("ListIDsAfterPages", func(t *testing.T) {
			require.NoError(t, db.ClearAllTables())
			var ids []uint
			for _, name := range []string{"a", "b", "c"} {
				tag, err := fx.CreateTestTag(ctx, name, 0)
				require.NoError(t, err)
				ids = append(ids, tag.ID)
			}

			first, err := repo.ListIDsAfter(ctx, 0, 2)
			require.NoError(t, err)
			assert.Equal(t, ids[:2], first)

			rest, err := repo.ListIDsAfter(ctx, first[1], 2)
			require.NoError(t, err)
			assert.Equal(t, ids[2:], rest)
		})

		t.Run("ClearCreator", func(t *testing.T) {
			user, err := fx.CreateTestUser(ctx)
			require.NoError(t, err)
			tag := &models.Tag{Name: "owned", CreatedBy: utils.ToPtr(user.ID)}
			require.NoError(t, repo.Save(ctx, tag))

			n, err := repo.ClearCreator(ctx, user.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			reloaded, err := repo.ByID(ctx, tag.ID)
			require.NoError(t, err)
			assert.Nil(t, reloaded.CreatedBy)
		})
	})
}

func TestVideoTagRepository(t *testing.T) {
	withDB(t, func(db *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(db)
		links := repository.NewVideoTagRepository(db.DB)

		user, err := fx.CreateTestUser(ctx)
		require.NoError(t, err)
		beach, err := fx.CreateTestTag(ctx, "beach", 0)
		require.NoError(t, err)
		sunset, err := fx.CreateTestTag(ctx, "sunset", 0)
		require.NoError(t, err)
		v1, err := fx.CreateTaggedVideo(ctx, user.ID, beach, sunset)
		require.NoError(t, err)
		v2, err := fx.CreateTaggedVideo(ctx, user.ID, beach)
		require.NoError(t, err)

		t.Run("DuplicateLinkConflicts", func(t *testing.T) {
			err := links.Create(ctx, &models.VideoTag{VideoID: v1.ID, TagID: beach.ID})
			require.Error(t, err)
			assert.True(t, repository.IsConflict(err))

			exists, err := links.Exists(ctx, v2.ID, sunset.ID)
			require.NoError(t, err)
			assert.False(t, exists)
		})

		t.Run("Counts", func(t *testing.T) {
			counts, err := links.CountByTagIDs(ctx, []uint{beach.ID, sunset.ID})
			require.NoError(t, err)
			assert.Equal(t, map[uint]int64{beach.ID: 2, sunset.ID: 1}, counts)

			perVideo, err := links.CountByTagForVideos(ctx, []uint{v2.ID})
			require.NoError(t, err)
			assert.Equal(t, map[uint]int64{beach.ID: 1}, perVideo)
		})

		t.Run("DeleteByVideoIDs", func(t *testing.T) {
			n, err := links.DeleteByVideoIDs(ctx, []uint{v1.ID})
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)

			count, err := links.CountByTagID(ctx, beach.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 1, count)
		})
	})
}

func TestCounterRepository(t *testing.T) {
	withDB(t, func(db *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(db)
		counters := repository.NewCounterRepository(db.DB)

		tag, err := fx.CreateTestTag(ctx, "clamped", 1)
		require.NoError(t, err)

		change, err := counters.AdjustTagUsage(ctx, tag.ID, -3)
		require.NoError(t, err)
		assert.Equal(t, repository.CounterChange{Before: 1, After: 0}, change)

		user, err := fx.CreateTestUser(ctx)
		require.NoError(t, err)
		video, err := fx.CreateTestVideo(ctx, user.ID)
		require.NoError(t, err)

		change, err = counters.AdjustVideoCounter(ctx, video.ID, models.VideoCounterLikes, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 2, change.After)

		_, err = counters.TagUsage(ctx, 999999)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestUserRepositoryUpsert(t *testing.T) {
	withDB(t, func(db *testingutil.TestDB) {
		ctx := context.Background()
		repo := repository.NewUserRepository(db.DB)

		first, err := repo.UpsertByExternalID(ctx, &models.User{
			ExternalID: "ext-upsert",
			Provider:   "google",
			Email:      utils.ToPtr("first@example.com"),
		})
		require.NoError(t, err)

		second, err := repo.UpsertByExternalID(ctx, &models.User{
			ExternalID:  "ext-upsert",
			Provider:    "google",
			DisplayName: utils.ToPtr("Second"),
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		require.NotNil(t, second.Email)
		assert.Equal(t, "first@example.com", *second.Email)
		require.NotNil(t, second.DisplayName)
		assert.Equal(t, "Second", *second.DisplayName)

		count, err := repo.Count(ctx, models.UserFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func TestEngagementRepositories(t *testing.T) {
	withDB(t, func(db *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(db)
		likes := repository.NewLikeRepository(db.DB)
		views := repository.NewVideoViewRepository(db.DB)

		owner, err := fx.CreateTestUser(ctx)
		require.NoError(t, err)
		viewer, err := fx.CreateTestUser(ctx)
		require.NoError(t, err)
		video, err := fx.CreateTestVideo(ctx, owner.ID)
		require.NoError(t, err)

		require.NoError(t, fx.AddLike(ctx, video.ID, viewer.ID))
		err = likes.Save(ctx, &models.Like{VideoID: video.ID, UserID: viewer.ID})
		assert.True(t, repository.IsConflict(err))

		perVideo, err := likes.CountByVideoForUser(ctx, viewer.ID)
		require.NoError(t, err)
		assert.Equal(t, map[uint]int64{video.ID: 1}, perVideo)

		require.NoError(t, fx.AddView(ctx, video.ID, &viewer.ID))
		require.NoError(t, fx.AddView(ctx, video.ID, nil))

		n, err := views.AnonymizeByUserID(ctx, viewer.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		counts, err := views.CountByVideoIDs(ctx, []uint{video.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 2, counts[video.ID])
	})
}
