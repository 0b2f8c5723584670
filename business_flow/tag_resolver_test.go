package businessflow

import (
	"context"
	"strings"
	"testing"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleTags hides existing rows from the first misses lookups, as a reader
// that ran before a concurrent insert committed would see them
type staleTags struct {
	repository.TagRepository
	misses int
}

func (s *staleTags) ByName(ctx context.Context, name string) (*models.Tag, error) {
	if s.misses > 0 {
		s.misses--
		return nil, nil
	}
	return s.TagRepository.ByName(ctx, name)
}

func TestTagResolver(t *testing.T) {
	t.Run("NormalizesCaseAndWhitespace", func(t *testing.T) {
		h := newHarness(t)

		first, created, err := h.resolver.Resolve(h.ctx, "Travel", nil)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "travel", first.Name)
		assert.Zero(t, first.UsageCount)

		second, created, err := h.resolver.Resolve(h.ctx, "  travel ", nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, h.store.RowCount("tags"))
	})

	t.Run("HitIgnoresCreator", func(t *testing.T) {
		h := newHarness(t)
		owner := h.user(t)
		other := h.user(t)

		tag, _, err := h.resolver.Resolve(h.ctx, "food", &owner.ID)
		require.NoError(t, err)
		require.NotNil(t, tag.CreatedBy)

		again, created, err := h.resolver.Resolve(h.ctx, "FOOD", &other.ID)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, owner.ID, *again.CreatedBy)
	})

	t.Run("InvalidNames", func(t *testing.T) {
		h := newHarness(t)

		_, _, err := h.resolver.Resolve(h.ctx, "   ", nil)
		assert.ErrorIs(t, err, ErrInvalidTagName)

		_, _, err = h.resolver.Resolve(h.ctx, strings.Repeat("x", 101), nil)
		assert.ErrorIs(t, err, ErrInvalidTagName)

		_, _, err = h.resolver.Resolve(h.ctx, strings.Repeat("é", 100), nil)
		assert.NoError(t, err)
		assert.Equal(t, 1, h.store.Calls("tags.Save"))
	})

	t.Run("LostInsertRaceReturnsWinner", func(t *testing.T) {
		h := newHarness(t)
		winner := h.tag(t, "travel", 4)

		resolver := NewTagResolver(&staleTags{TagRepository: h.store.Tags(), misses: 1}, h.logger)
		tag, created, err := resolver.Resolve(h.ctx, "Travel", nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, winner.ID, tag.ID)
		assert.Equal(t, int64(4), tag.UsageCount)
		assert.Equal(t, 1, h.store.RowCount("tags"))
	})

	t.Run("ConflictWithoutReadableRow", func(t *testing.T) {
		h := newHarness(t)
		h.tag(t, "travel", 0)

		resolver := NewTagResolver(&staleTags{TagRepository: h.store.Tags(), misses: 2}, h.logger)
		_, _, err := resolver.Resolve(h.ctx, "travel", nil)
		assert.ErrorIs(t, err, ErrTagNotFound)
	})

	t.Run("StoreErrorIsNotAConflict", func(t *testing.T) {
		h := newHarness(t)
		h.store.FailOn("tags.Save", errBoom, 1)

		_, _, err := h.resolver.Resolve(h.ctx, "travel", nil)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, h.store.Calls("tags.ByName"))
	})
}
