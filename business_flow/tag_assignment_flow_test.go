package businessflow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignTags(t *testing.T) {
	t.Run("ReassignmentIsIdempotent", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)
		video := h.video(t, owner.ID)

		res, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"Travel"}, UserID: &owner.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, 1, res.Assigned)
		assert.Equal(t, 0, res.Skipped)
		require.Len(t, res.Items, 1)
		tagID := res.Items[0].TagID
		assert.Equal(t, int64(1), h.usage(t, tagID))

		res, err = h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"travel"}})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Created)
		assert.Equal(t, 0, res.Assigned)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, dto.TagOutcomeSkipped, res.Items[0].Outcome)
		assert.Equal(t, int64(1), h.usage(t, tagID))
		assert.Equal(t, int64(1), h.links(t, tagID))
	})

	t.Run("NamesAreIndependent", func(t *testing.T) {
		h := newHarness(t)
		video := h.video(t, h.user(t).ID)

		res, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{
			VideoID:  video.ID,
			TagNames: []string{"sea", "SEA ", "  ", "sunset"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Assigned)
		assert.Equal(t, 1, res.Skipped)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "  ", res.Errors[0].Name)

		outcomes := make([]dto.TagOutcome, 0, len(res.Items))
		for _, item := range res.Items {
			outcomes = append(outcomes, item.Outcome)
		}
		assert.Equal(t, []dto.TagOutcome{dto.TagOutcomeAssigned, dto.TagOutcomeSkipped, dto.TagOutcomeFailed, dto.TagOutcomeAssigned}, outcomes)
		h.requireConsistent(t)
	})

	t.Run("Validation", func(t *testing.T) {
		h := newHarness(t)
		video := h.video(t, h.user(t).ID)

		_, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID})
		assert.ErrorIs(t, err, ErrEmptyTagList)

		names := make([]string, 51)
		for i := range names {
			names[i] = fmt.Sprintf("t%d", i)
		}
		_, err = h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: names})
		assert.ErrorIs(t, err, ErrTooManyTags)

		_, err = h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: 999, TagNames: []string{"x"}})
		assert.True(t, IsVideoNotFound(err))

		assert.Equal(t, 0, h.store.RowCount("tags"))
	})

	t.Run("LinkFailureIsCollected", func(t *testing.T) {
		h := newHarness(t)
		video := h.video(t, h.user(t).ID)
		h.store.FailOn("links.Create", errBoom, 1)

		res, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"x", "y"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Assigned)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "x", res.Errors[0].Name)
		assert.Contains(t, res.Errors[0].Message, "boom")

		// the tag row exists but nothing counts it
		assert.Equal(t, int64(0), h.usage(t, res.Items[0].TagID))

		// retrying the same request finishes the failed name only
		res, err = h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"x", "y"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Assigned)
		assert.Equal(t, 1, res.Skipped)
		h.requireConsistent(t)
	})

	t.Run("EveryNameFailing", func(t *testing.T) {
		h := newHarness(t)
		video := h.video(t, h.user(t).ID)
		h.store.FailOn("links.Create", errBoom, 0)
		defer h.store.ClearFaults()

		res, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"a", "b"}})
		require.Error(t, err)
		assert.True(t, IsBatchFailed(err))
		require.NotNil(t, res)
		assert.Len(t, res.Errors, 2)
		assert.Zero(t, res.Assigned)
	})

	t.Run("IncrementFailureKeepsLink", func(t *testing.T) {
		h := newHarness(t)
		video := h.video(t, h.user(t).ID)
		h.store.FailOn("counters.SetTagUsage", errBoom, 1)

		res, err := h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: video.ID, TagNames: []string{"x"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Assigned)
		assert.Len(t, res.Errors, 1)
		assert.Equal(t, dto.TagOutcomeAssigned, res.Items[0].Outcome)

		tagID := res.Items[0].TagID
		assert.Equal(t, int64(1), h.links(t, tagID))
		assert.Equal(t, int64(0), h.usage(t, tagID))

		_, err = h.reconcile.ReconcileTagCounters(h.ctx, []uint{tagID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), h.usage(t, tagID))
	})

	t.Run("ConcurrentAssignmentsConvergeAfterReconcile", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)
		const n = 20
		videoIDs := make([]uint, n)
		for i := range videoIDs {
			videoIDs[i] = h.video(t, owner.ID).ID
		}

		var wg sync.WaitGroup
		results := make([]*dto.AssignTagsResponse, n)
		errs := make([]error, n)
		for i, id := range videoIDs {
			wg.Add(1)
			go func(i int, id uint) {
				defer wg.Done()
				results[i], errs[i] = h.assign.AssignTags(h.ctx, &dto.AssignTagsRequest{VideoID: id, TagNames: []string{"Popular"}})
			}(i, id)
		}
		wg.Wait()

		created := 0
		for i := range results {
			require.NoError(t, errs[i])
			assert.Empty(t, results[i].Errors)
			assert.Equal(t, 1, results[i].Assigned)
			created += results[i].Created
		}
		assert.Equal(t, 1, created)
		assert.Equal(t, 1, h.store.RowCount("tags"))
		assert.Equal(t, n, h.store.RowCount("video_tags"))

		// lost updates may leave usage_count short; it never exceeds the link count
		tagID := results[0].Items[0].TagID
		assert.LessOrEqual(t, h.usage(t, tagID), int64(n))

		_, err := h.reconcile.ReconcileTagCounters(h.ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(n), h.usage(t, tagID))
	})
}
