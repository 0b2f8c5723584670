// Package scheduler runs background maintenance jobs
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/Geovid/app/dto"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	reconcileLeaseKey  = "reconcile:lease"
	reconcileReportKey = "reconcile:last_report"
)

// Lease grants one holder the right to run a job for a bounded time
type Lease interface {
	// Acquire returns false without error when another holder owns the lease
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ReportStore keeps the outcome of the latest run
type ReportStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// releaseScript deletes the lease only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease implements Lease and ReportStore on one redis client
type RedisLease struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLease(client redis.UniversalClient, prefix string) *RedisLease {
	return &RedisLease{client: client, prefix: prefix}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}
	return release, true, nil
}

func (l *RedisLease) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return l.client.Set(ctx, l.prefix+key, value, ttl).Err()
}

func (l *RedisLease) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := l.client.Get(ctx, l.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// ReconciliationScheduler periodically recomputes every denormalized counter.
// Only the lease holder sweeps; counters are never locked while it runs.
type ReconciliationScheduler struct {
	flow     businessflow.ReconciliationFlow
	lease    Lease
	reports  ReportStore
	interval time.Duration
	leaseTTL time.Duration
	logger   *slog.Logger
}

// NewReconciliationScheduler builds the scheduler; lease and reports may be nil for a single process
func NewReconciliationScheduler(
	flow businessflow.ReconciliationFlow,
	lease Lease,
	reports ReportStore,
	interval time.Duration,
	leaseTTL time.Duration,
	logger *slog.Logger,
) *ReconciliationScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if leaseTTL <= 0 {
		leaseTTL = interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationScheduler{
		flow:     flow,
		lease:    lease,
		reports:  reports,
		interval: interval,
		leaseTTL: leaseTTL,
		logger:   logger.With("component", "reconciliation_scheduler"),
	}
}

// Start launches the loop in a background goroutine and returns a stop function
func (s *ReconciliationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error("reconciliation run failed", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs one sweep if the lease is free. It returns a nil report when another process holds it.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) (*dto.ReconcileAllResponse, error) {
	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx, reconcileLeaseKey, s.leaseTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Debug("reconciliation lease held elsewhere, skipping run")
			return nil, nil
		}
		defer release()
	}

	report, err := s.flow.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	attrs := []any{"duration", report.FinishedAt.Sub(report.StartedAt)}
	if report.Tags != nil {
		attrs = append(attrs, "tags_updated", report.Tags.UpdatedCount, "tags_drifted", report.Tags.ChangedCount, "tag_errors", len(report.Tags.Errors))
	}
	if report.Videos != nil {
		attrs = append(attrs, "video_counters_updated", report.Videos.UpdatedCount, "video_counters_drifted", report.Videos.ChangedCount, "video_errors", len(report.Videos.Errors))
	}
	s.logger.Info("reconciliation run finished", attrs...)

	if s.reports != nil {
		data, err := json.Marshal(report)
		if err != nil {
			return report, fmt.Errorf("failed to encode reconciliation report: %w", err)
		}
		if err := s.reports.Put(ctx, reconcileReportKey, data, 7*24*time.Hour); err != nil {
			s.logger.Warn("failed to store reconciliation report", "error", err)
		}
	}
	return report, nil
}

// LastReport returns the report stored by the most recent run on any process, or nil
func (s *ReconciliationScheduler) LastReport(ctx context.Context) (*dto.ReconcileAllResponse, error) {
	if s.reports == nil {
		return nil, nil
	}
	data, err := s.reports.Get(ctx, reconcileReportKey)
	if err != nil || data == nil {
		return nil, err
	}
	var report dto.ReconcileAllResponse
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode reconciliation report: %w", err)
	}
	return &report, nil
}
