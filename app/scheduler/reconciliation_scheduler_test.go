package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	businessflow "github.com/amirphl/Geovid/business_flow"
	testingutil "github.com/amirphl/Geovid/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLease is an in-process Lease and ReportStore
type memLease struct {
	mu     sync.Mutex
	held   map[string]bool
	values map[string][]byte
}

func newMemLease() *memLease {
	return &memLease{held: map[string]bool{}, values: map[string][]byte{}}
}

func (l *memLease) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

func (l *memLease) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[key] = value
	return nil
}

func (l *memLease) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values[key], nil
}

func setup(t *testing.T) (*testingutil.MemoryStore, *testingutil.TestFixtures, businessflow.ReconciliationFlow) {
	t.Helper()
	store := testingutil.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flow := businessflow.NewReconciliationFlow(
		store.Videos(), store.Tags(), store.Links(), store.Counters(),
		store.Likes(), store.Comments(), store.Views(), 100, logger,
	)
	return store, testingutil.NewMemoryFixtures(store), flow
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	store, fx, flow := setup(t)
	tag, err := fx.CreateTestTag(ctx, "drifted", 7)
	require.NoError(t, err)

	lease := newMemLease()
	sched := NewReconciliationScheduler(flow, lease, lease, time.Minute, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Tags.ChangedCount)

	usage, err := store.Counters().TagUsage(ctx, tag.ID)
	require.NoError(t, err)
	assert.Zero(t, usage)

	last, err := sched.LastReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, report.Tags.UpdatedCount, last.Tags.UpdatedCount)
	assert.False(t, lease.held[reconcileLeaseKey])
}

func TestRunOnceSkipsWhenLeaseHeld(t *testing.T) {
	ctx := context.Background()
	store, fx, flow := setup(t)
	tag, err := fx.CreateTestTag(ctx, "drifted", 7)
	require.NoError(t, err)

	lease := newMemLease()
	release, ok, err := lease.Acquire(ctx, reconcileLeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	sched := NewReconciliationScheduler(flow, lease, lease, time.Minute, time.Minute, nil)
	report, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)

	usage, err := store.Counters().TagUsage(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), usage)
}

func TestStartStops(t *testing.T) {
	_, fx, flow := setup(t)
	_, err := fx.CreateTestTag(context.Background(), "x", 1)
	require.NoError(t, err)

	lease := newMemLease()
	sched := NewReconciliationScheduler(flow, lease, lease, 10*time.Millisecond, time.Second, nil)
	stop := sched.Start(context.Background())

	require.Eventually(t, func() bool {
		report, err := sched.LastReport(context.Background())
		return err == nil && report != nil
	}, 2*time.Second, 10*time.Millisecond)
	stop()
}
