package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepRecorder replaces the backoff wait
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

// barrierUsers makes the first `parties` lookups wait for each other after reading,
// so every party misses the row before any of them inserts it
type barrierUsers struct {
	repository.UserRepository
	parties int32
	calls   atomic.Int32
	arrived sync.WaitGroup
}

func newBarrierUsers(inner repository.UserRepository, parties int) *barrierUsers {
	b := &barrierUsers{UserRepository: inner, parties: int32(parties)}
	b.arrived.Add(parties)
	return b
}

func (b *barrierUsers) ByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := b.UserRepository.ByExternalID(ctx, externalID)
	if b.calls.Add(1) <= b.parties {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return user, err
}

// blindUsers never finds anyone
type blindUsers struct {
	repository.UserRepository
}

func (blindUsers) ByExternalID(context.Context, string) (*models.User, error) {
	return nil, nil
}

func newIdentity(t *testing.T, users repository.UserRepository, upserter repository.AtomicUserUpserter, opts IdentityOptions) (*IdentityFlowImpl, *sleepRecorder) {
	t.Helper()
	flow, ok := NewIdentityFlow(users, upserter, opts, nil).(*IdentityFlowImpl)
	require.True(t, ok)
	rec := &sleepRecorder{}
	flow.sleep = rec.sleep
	return flow, rec
}

func TestEnsureUser(t *testing.T) {
	opts := IdentityOptions{Provider: "google", MaxRetries: 2, Backoff: 100 * time.Millisecond}

	t.Run("CreatesThenMergesNonDestructively", func(t *testing.T) {
		h := newHarness(t)
		flow, rec := newIdentity(t, h.store.Users(), nil, opts)

		first, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-1", DisplayName: "Ada", AvatarURL: "https://img/a.png"})
		require.NoError(t, err)
		assert.NotZero(t, first.ID)
		assert.Equal(t, "google", first.Provider)
		assert.Nil(t, first.Email)
		require.NotNil(t, first.LastLoginAt)

		second, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-1", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		require.NotNil(t, second.Email)
		assert.Equal(t, "ada@example.com", *second.Email)
		require.NotNil(t, second.DisplayName)
		assert.Equal(t, "Ada", *second.DisplayName)
		require.NotNil(t, second.AvatarURL)

		assert.Equal(t, 1, h.store.RowCount("users"))
		assert.Empty(t, rec.recorded())
	})

	t.Run("ExternalIDRequired", func(t *testing.T) {
		h := newHarness(t)
		flow, _ := newIdentity(t, h.store.Users(), nil, opts)

		_, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "  "})
		assert.ErrorIs(t, err, ErrExternalIDRequired)
		assert.Zero(t, h.store.Calls("users.ByExternalID"))
	})

	t.Run("ConcurrentFirstLogins", func(t *testing.T) {
		h := newHarness(t)
		flow, rec := newIdentity(t, newBarrierUsers(h.store.Users(), 2), nil, opts)

		var wg sync.WaitGroup
		users := make([]*models.User, 2)
		errs := make([]error, 2)
		for i := range users {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				users[i], errs[i] = flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-42"})
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Equal(t, users[0].ID, users[1].ID)
		assert.Equal(t, 1, h.store.RowCount("users"))
		assert.Equal(t, 2, h.store.Calls("users.Save"))
		assert.Equal(t, []time.Duration{100 * time.Millisecond}, rec.recorded())
	})

	t.Run("RetriesAreBoundedWithLinearBackoff", func(t *testing.T) {
		h := newHarness(t)
		flow, rec := newIdentity(t, blindUsers{h.store.Users()}, nil, opts)
		h.store.FailOn("users.Save", fmt.Errorf("duplicate key: %w", repository.ErrConflict), 0)

		_, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-7"})
		require.Error(t, err)
		assert.True(t, IsUpsertRetriesExhausted(err))
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.Equal(t, 3, h.store.Calls("users.Save"))
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.recorded())
	})

	t.Run("RetryBudgetIsCapped", func(t *testing.T) {
		h := newHarness(t)
		flow, rec := newIdentity(t, blindUsers{h.store.Users()}, nil, IdentityOptions{MaxRetries: 5, Backoff: time.Millisecond})
		h.store.FailOn("users.Save", repository.ErrConflict, 0)

		_, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-7"})
		assert.True(t, IsUpsertRetriesExhausted(err))
		assert.Equal(t, 3, h.store.Calls("users.Save"))
		assert.Len(t, rec.recorded(), 2)
	})

	t.Run("OtherErrorsAreFatal", func(t *testing.T) {
		h := newHarness(t)
		flow, rec := newIdentity(t, h.store.Users(), nil, opts)
		h.store.FailOn("users.Save", errBoom, 1)

		_, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-8"})
		require.Error(t, err)
		assert.ErrorIs(t, err, errBoom)
		assert.False(t, IsUpsertRetriesExhausted(err))
		assert.Equal(t, 1, h.store.Calls("users.Save"))
		assert.Empty(t, rec.recorded())
	})

	t.Run("CancelledDuringBackoff", func(t *testing.T) {
		h := newHarness(t)
		flow, _ := newIdentity(t, blindUsers{h.store.Users()}, nil, opts)
		flow.sleep = sleepContext
		h.store.FailOn("users.Save", repository.ErrConflict, 0)

		ctx, cancel := context.WithCancel(h.ctx)
		cancel()
		_, err := flow.EnsureUser(ctx, models.ExternalProfile{ExternalID: "ext-9"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, h.store.Calls("users.Save"))
	})

	t.Run("AtomicUpsertFirst", func(t *testing.T) {
		h := newHarness(t)
		atomicOpts := opts
		atomicOpts.UseAtomicUpsert = true
		flow, _ := newIdentity(t, h.store.Users(), h.store.Users(), atomicOpts)

		first, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-10", DisplayName: "Bo"})
		require.NoError(t, err)
		second, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-10", Email: "bo@example.com"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		require.NotNil(t, second.DisplayName)
		assert.Equal(t, "Bo", *second.DisplayName)
		assert.Equal(t, 2, h.store.Calls("users.UpsertByExternalID"))
		assert.Zero(t, h.store.Calls("users.Save"))
	})

	t.Run("AtomicUpsertFallsBack", func(t *testing.T) {
		h := newHarness(t)
		atomicOpts := opts
		atomicOpts.UseAtomicUpsert = true
		flow, _ := newIdentity(t, h.store.Users(), h.store.Users(), atomicOpts)
		h.store.FailOn("users.UpsertByExternalID", errBoom, 1)

		user, err := flow.EnsureUser(h.ctx, models.ExternalProfile{ExternalID: "ext-11"})
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, 1, h.store.Calls("users.Save"))
	})
}
