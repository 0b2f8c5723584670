package businessflow

import (
	"testing"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVideo(t *testing.T) {
	t.Run("WithTags", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)

		res, err := h.videos.CreateVideo(h.ctx, &dto.CreateVideoRequest{
			UserID:       owner.ID,
			Title:        " Sunset at Darband ",
			MediaURL:     "https://cdn.example.com/v.mp4",
			Latitude:     utils.ToPtr(35.82),
			Longitude:    utils.ToPtr(51.42),
			LocationName: utils.ToPtr("Darband"),
			Tags:         []string{"Beach", "beach", "Sunset"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Sunset at Darband", res.Video.Title)
		assert.NotEmpty(t, res.Video.UUID)
		require.NotNil(t, res.Tags)
		assert.Equal(t, 2, res.Tags.Assigned)
		assert.Equal(t, 1, res.Tags.Skipped)
		assert.Equal(t, 2, res.Tags.Created)
		h.requireConsistent(t)
	})

	t.Run("WithoutTags", func(t *testing.T) {
		h := newHarness(t)
		res, err := h.videos.CreateVideo(h.ctx, &dto.CreateVideoRequest{
			UserID:   h.user(t).ID,
			Title:    "clip",
			MediaURL: "https://cdn.example.com/v.mp4",
		})
		require.NoError(t, err)
		assert.Nil(t, res.Tags)
		assert.Zero(t, h.store.Calls("links.Exists"))
	})

	t.Run("Validation", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)

		_, err := h.videos.CreateVideo(h.ctx, &dto.CreateVideoRequest{UserID: owner.ID, Title: "  ", MediaURL: "https://x/v.mp4"})
		assert.ErrorIs(t, err, ErrInvalidVideo)

		_, err = h.videos.CreateVideo(h.ctx, &dto.CreateVideoRequest{UserID: owner.ID, Title: "t", MediaURL: "https://x/v.mp4", Latitude: utils.ToPtr(1.0)})
		assert.ErrorIs(t, err, ErrInvalidVideo)
		assert.Zero(t, h.store.RowCount("videos"))
	})

	t.Run("TagBatchFailureKeepsVideo", func(t *testing.T) {
		h := newHarness(t)
		h.store.FailOn("links.Create", errBoom, 0)
		defer h.store.ClearFaults()

		res, err := h.videos.CreateVideo(h.ctx, &dto.CreateVideoRequest{
			UserID:   h.user(t).ID,
			Title:    "clip",
			MediaURL: "https://cdn.example.com/v.mp4",
			Tags:     []string{"a"},
		})
		require.NoError(t, err)
		require.NotNil(t, res.Tags)
		assert.Len(t, res.Tags.Errors, 1)
		assert.Equal(t, 1, h.store.RowCount("videos"))
	})
}

func TestDeleteVideo(t *testing.T) {
	h := newHarness(t)
	owner, stranger := h.user(t), h.user(t)
	a := h.video(t, owner.ID)
	b := h.video(t, owner.ID)

	_, err := h.videos.DeleteVideo(h.ctx, a.ID, stranger.ID, false)
	assert.True(t, IsForbidden(err))

	res, err := h.videos.DeleteVideo(h.ctx, a.ID, owner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)

	res, err = h.videos.DeleteVideo(h.ctx, b.ID, stranger.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)

	_, err = h.videos.DeleteVideo(h.ctx, a.ID, owner.ID, false)
	assert.True(t, IsVideoNotFound(err))
}

func TestVideoFlowAssignTags(t *testing.T) {
	h := newHarness(t)
	owner, stranger := h.user(t), h.user(t)
	video := h.video(t, owner.ID)

	_, err := h.videos.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"x"}, UserID: &stranger.ID}, false)
	assert.True(t, IsForbidden(err))
	assert.Zero(t, h.store.RowCount("tags"))

	res, err := h.videos.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"x"}, UserID: &owner.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)

	res, err = h.videos.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"x", "y"}, UserID: &stranger.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)
	assert.Equal(t, 1, res.Skipped)
	h.requireConsistent(t)
}
