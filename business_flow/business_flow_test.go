package businessflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	testingutil "github.com/amirphl/Geovid/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// harness wires every flow to one memory store
type harness struct {
	ctx        context.Context
	store      *testingutil.MemoryStore
	fx         *testingutil.TestFixtures
	logger     *slog.Logger
	resolver   TagResolver
	assign     TagAssignmentFlow
	cascade    CascadeDeleteFlow
	reconcile  ReconciliationFlow
	engagement EngagementFlow
	videos     VideoFlow
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := testingutil.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	resolver := NewTagResolver(store.Tags(), logger)
	assign := NewTagAssignmentFlow(store.Videos(), store.Links(), store.Counters(), resolver, logger)
	cascade := NewCascadeDeleteFlow(
		store.Users(), store.Videos(), store.Tags(), store.Links(), store.Counters(),
		store.Likes(), store.Comments(), store.Views(), logger,
	)
	reconcile := NewReconciliationFlow(
		store.Videos(), store.Tags(), store.Links(), store.Counters(),
		store.Likes(), store.Comments(), store.Views(), 2, logger,
	)
	engagement := NewEngagementFlow(store.Videos(), store.Counters(), store.Likes(), store.Comments(), store.Views(), logger)

	return &harness{
		ctx:        context.Background(),
		store:      store,
		fx:         testingutil.NewMemoryFixtures(store),
		logger:     logger,
		resolver:   resolver,
		assign:     assign,
		cascade:    cascade,
		reconcile:  reconcile,
		engagement: engagement,
		videos:     NewVideoFlow(store.Videos(), assign, cascade, logger),
	}
}

func (h *harness) user(t *testing.T) *models.User {
	t.Helper()
	u, err := h.fx.CreateTestUser(h.ctx)
	require.NoError(t, err)
	return u
}

func (h *harness) video(t *testing.T, userID uint) *models.Video {
	t.Helper()
	v, err := h.fx.CreateTestVideo(h.ctx, userID)
	require.NoError(t, err)
	return v
}

func (h *harness) tag(t *testing.T, name string, usage int64) *models.Tag {
	t.Helper()
	tag, err := h.fx.CreateTestTag(h.ctx, name, usage)
	require.NoError(t, err)
	return tag
}

func (h *harness) usage(t *testing.T, tagID uint) int64 {
	t.Helper()
	n, err := h.store.Counters().TagUsage(h.ctx, tagID)
	require.NoError(t, err)
	return n
}

func (h *harness) links(t *testing.T, tagID uint) int64 {
	t.Helper()
	n, err := h.store.Links().CountByTagID(h.ctx, tagID)
	require.NoError(t, err)
	return n
}

func (h *harness) reload(t *testing.T, videoID uint) *models.Video {
	t.Helper()
	v, err := h.store.Videos().ByID(h.ctx, videoID)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

// requireConsistent asserts every tag's usage_count equals its link count
func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	tags, err := h.store.Tags().ByFilter(h.ctx, models.TagFilter{}, "id ASC", 0, 0)
	require.NoError(t, err)
	for _, tag := range tags {
		assert.Equal(t, h.links(t, tag.ID), tag.UsageCount, "tag %q", tag.Name)
	}
}

func TestBatchOutcome(t *testing.T) {
	one := []dto.ItemError{{ID: 1, Message: "x"}}

	assert.NoError(t, batchOutcome("op", 0, nil))
	assert.NoError(t, batchOutcome("op", 3, nil))
	assert.NoError(t, batchOutcome("op", 1, one))

	err := batchOutcome("op", 0, one)
	require.Error(t, err)
	assert.True(t, IsBatchFailed(err))
	assert.Equal(t, "BATCH_FAILED", ErrorCode(err))
}

func TestNormalizeIDs(t *testing.T) {
	ids, err := normalizeIDs([]uint{3, 1, 3, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1, 2}, ids)

	_, err = normalizeIDs([]uint{0, 0})
	assert.ErrorIs(t, err, ErrEmptyIDList)
	assert.True(t, IsValidationError(err))

	tooMany := make([]uint, 1001)
	for i := range tooMany {
		tooMany[i] = uint(i + 1)
	}
	_, err = normalizeIDs(tooMany)
	assert.ErrorIs(t, err, ErrTooManyIDs)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 2))
	assert.Equal(t, [][]uint{{1, 2}, {3, 4}, {5}}, chunk([]uint{1, 2, 3, 4, 5}, 2))
}
