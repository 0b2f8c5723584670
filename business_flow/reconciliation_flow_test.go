package businessflow

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReconcileTagCounters(t *testing.T) {
	t.Run("ConvergesAfterRandomMutationsAndDrift", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)
		rng := rand.New(rand.NewSource(7))
		names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}

		var videoIDs []uint
		for i := 0; i < 12; i++ {
			v := h.video(t, owner.ID)
			videoIDs = append(videoIDs, v.ID)
			picked := []string{names[rng.Intn(len(names))], names[rng.Intn(len(names))]}
			_, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: v.ID, TagNames: picked})
			require.NoError(t, err)
		}
		_, err := h.cascade.DeleteVideos(h.ctx, videoIDs[:4])
		require.NoError(t, err)

		// lost updates and out-of-band edits
		tags, err := h.store.Tags().ByFilter(h.ctx, models.TagFilter{}, "id ASC", 0, 0)
		require.NoError(t, err)
		for _, tag := range tags {
			require.NoError(t, h.store.Counters().SetTagUsage(h.ctx, tag.ID, int64(rng.Intn(40))))
		}
		orphan := h.tag(t, "orphan", 9)

		res, err := h.reconcile.ReconcileTagCounters(h.ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, len(tags)+1, res.UpdatedCount)
		assert.Len(t, res.Results, res.UpdatedCount)
		assert.Empty(t, res.Errors)
		h.requireConsistent(t)
		assert.Zero(t, h.usage(t, orphan.ID))

		again, err := h.reconcile.ReconcileTagCounters(h.ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, res.UpdatedCount, again.UpdatedCount)
		assert.Zero(t, again.ChangedCount)
	})

	t.Run("ReportsBeforeAndAfter", func(t *testing.T) {
		h := newHarness(t)
		tag := h.tag(t, "x", 0)
		_, err := h.fx.CreateTaggedVideo(h.ctx, h.user(t).ID, tag)
		require.NoError(t, err)
		require.NoError(t, h.store.Counters().SetTagUsage(h.ctx, tag.ID, 6))

		res, err := h.reconcile.ReconcileTagCounters(h.ctx, []uint{tag.ID})
		require.NoError(t, err)
		require.Len(t, res.Results, 1)
		assert.Equal(t, dto.CounterReconcileResult{ID: tag.ID, Counter: "usage_count", Before: 6, After: 1}, res.Results[0])
		assert.Equal(t, 1, res.ChangedCount)
	})

	t.Run("UnknownIDsAreItemErrors", func(t *testing.T) {
		h := newHarness(t)
		tag := h.tag(t, "x", 3)

		res, err := h.reconcile.ReconcileTagCounters(h.ctx, []uint{tag.ID, 404})
		require.NoError(t, err)
		assert.Equal(t, 1, res.UpdatedCount)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, uint(404), res.Errors[0].ID)

		_, err = h.reconcile.ReconcileTagCounters(h.ctx, []uint{404})
		assert.True(t, IsBatchFailed(err))
	})

	t.Run("ListFailureIsFatal", func(t *testing.T) {
		h := newHarness(t)
		h.tag(t, "x", 3)
		h.store.FailOn("tags.ListIDsAfter", errBoom, 1)

		res, err := h.reconcile.ReconcileTagCounters(h.ctx, nil)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestReconcileVideoCounters(t *testing.T) {
	t.Run("DefaultsToViews", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)
		video := h.video(t, owner.ID)
		for i := 0; i < 3; i++ {
			require.NoError(t, h.fx.AddView(h.ctx, video.ID, nil))
		}
		require.NoError(t, h.fx.AddLike(h.ctx, video.ID, owner.ID))

		res, err := h.reconcile.ReconcileVideoCounters(h.ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.UpdatedCount)

		fresh := h.reload(t, video.ID)
		assert.Equal(t, int64(3), fresh.ViewsCount)
		assert.Zero(t, fresh.LikesCount)
	})

	t.Run("AllFamilies", func(t *testing.T) {
		h := newHarness(t)
		owner, fan := h.user(t), h.user(t)
		v1, v2, v3 := h.video(t, owner.ID), h.video(t, owner.ID), h.video(t, owner.ID)
		require.NoError(t, h.fx.AddLike(h.ctx, v1.ID, fan.ID))
		require.NoError(t, h.fx.AddLike(h.ctx, v1.ID, owner.ID))
		_, err := h.fx.AddComment(h.ctx, v2.ID, fan.ID, "first")
		require.NoError(t, err)
		require.NoError(t, h.store.Counters().SetVideoCounter(h.ctx, v3.ID, models.VideoCounterComments, 12))

		res, err := h.reconcile.ReconcileVideoCounters(h.ctx, nil, models.AllVideoCounters)
		require.NoError(t, err)
		assert.Equal(t, 9, res.UpdatedCount)
		assert.Equal(t, 3, res.ChangedCount)

		assert.Equal(t, int64(2), h.reload(t, v1.ID).LikesCount)
		assert.Equal(t, int64(1), h.reload(t, v2.ID).CommentsCount)
		assert.Zero(t, h.reload(t, v3.ID).CommentsCount)
	})

	t.Run("InvalidCounter", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.reconcile.ReconcileVideoCounters(h.ctx, nil, []models.VideoCounter{"shares_count"})
		assert.ErrorIs(t, err, ErrInvalidCounter)
	})

	t.Run("MissingVideo", func(t *testing.T) {
		h := newHarness(t)
		video := h.video(t, h.user(t).ID)

		res, err := h.reconcile.ReconcileVideoCounters(h.ctx, []uint{video.ID, 77}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.UpdatedCount)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, uint(77), res.Errors[0].ID)
	})
}

func TestReconcileAll(t *testing.T) {
	h := newHarness(t)
	tag := h.tag(t, "x", 5)
	video := h.video(t, h.user(t).ID)
	require.NoError(t, h.fx.AddView(h.ctx, video.ID, nil))

	res, err := h.reconcile.ReconcileAll(h.ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Tags)
	require.NotNil(t, res.Videos)
	assert.Equal(t, 1, res.Tags.UpdatedCount)
	assert.Equal(t, 3, res.Videos.UpdatedCount)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Zero(t, h.usage(t, tag.ID))
	assert.Equal(t, int64(1), h.reload(t, video.ID).ViewsCount)
}

func TestTagDriftReport(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t)
	clean := h.tag(t, "clean", 0)
	drifted := h.tag(t, "drifted", 4)
	_, err := h.fx.CreateTaggedVideo(h.ctx, owner.ID, clean, drifted)
	require.NoError(t, err)

	report, err := h.reconcile.TagDriftReport(h.ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TagsScanned)
	assert.Equal(t, 1, report.DriftedCount)
	assert.Len(t, report.Items, 2)

	report, err = h.reconcile.TagDriftReport(h.ctx, true)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, dto.TagDriftItem{TagID: drifted.ID, Name: "drifted", Stored: 5, Actual: 1, Drift: 4}, report.Items[0])

	// read-only
	assert.Equal(t, int64(5), h.usage(t, drifted.ID))

	t.Run("Excel", func(t *testing.T) {
		filename, data, err := h.reconcile.DownloadTagDriftExcel(h.ctx, true)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filename, "tag_drift_"))
		assert.True(t, strings.HasSuffix(filename, ".xlsx"))

		xl, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer xl.Close()

		rows, err := xl.GetRows("tag_drift")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"tag_id", "name", "stored_usage_count", "actual_links", "drift"}, rows[0])
		assert.Equal(t, "drifted", rows[1][1])
		assert.Equal(t, "4", rows[1][4])
	})
}
