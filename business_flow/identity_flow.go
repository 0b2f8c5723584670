package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
)

// maxUpsertRetries bounds the lookup-or-insert loop regardless of configuration
const maxUpsertRetries = 2

// IdentityFlow materializes external identities as local users
type IdentityFlow interface {
	// EnsureUser returns the single local user for profile.ExternalID, creating it on
	// first login and merging newly shared profile fields on later logins.
	EnsureUser(ctx context.Context, profile models.ExternalProfile) (*models.User, error)
}

// IdentityOptions configures EnsureUser
type IdentityOptions struct {
	// Provider is stored on new users when the profile does not name one
	Provider        string
	MaxRetries      int
	Backoff         time.Duration
	UseAtomicUpsert bool
}

// IdentityFlowImpl implements IdentityFlow
type IdentityFlowImpl struct {
	userRepo repository.UserRepository
	upserter repository.AtomicUserUpserter
	opts     IdentityOptions
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

// NewIdentityFlow creates an identity flow. upserter may be nil when the store has no
// single-statement upsert.
func NewIdentityFlow(
	userRepo repository.UserRepository,
	upserter repository.AtomicUserUpserter,
	opts IdentityOptions,
	logger *slog.Logger,
) IdentityFlow {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > maxUpsertRetries {
		opts.MaxRetries = maxUpsertRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	return &IdentityFlowImpl{
		userRepo: userRepo,
		upserter: upserter,
		opts:     opts,
		sleep:    sleepContext,
		logger:   loggerOrDefault(logger),
	}
}

func (f *IdentityFlowImpl) EnsureUser(ctx context.Context, profile models.ExternalProfile) (*models.User, error) {
	profile.ExternalID = strings.TrimSpace(profile.ExternalID)
	if profile.ExternalID == "" {
		return nil, NewBusinessError("EXTERNAL_ID_REQUIRED", "external identity is required", ErrExternalIDRequired)
	}
	if strings.TrimSpace(profile.Provider) == "" {
		profile.Provider = f.opts.Provider
	}

	if f.opts.UseAtomicUpsert && f.upserter != nil {
		user, err := f.upserter.UpsertByExternalID(ctx, f.newUser(profile))
		if err == nil {
			return user, nil
		}
		if ctx.Err() != nil {
			return nil, NewBusinessError("USER_UPSERT_FAILED", "failed to upsert user", err)
		}
		f.logger.Warn("atomic user upsert failed, falling back to lookup-or-insert",
			"request_id", requestID(ctx),
			"external_id", profile.ExternalID,
			"error", err,
		)
	}

	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			identityUpsertRetriesTotal.Inc()
			wait := time.Duration(attempt) * f.opts.Backoff
			f.logger.Info("retrying user upsert after conflict",
				"request_id", requestID(ctx),
				"external_id", profile.ExternalID,
				"attempt", attempt,
				"backoff", wait,
			)
			if err := f.sleep(ctx, wait); err != nil {
				return nil, NewBusinessError("USER_UPSERT_FAILED", "user upsert interrupted", err)
			}
		}

		user, err := f.lookupOrInsert(ctx, profile)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, NewBusinessError("USER_UPSERT_FAILED", "failed to upsert user", err)
		}
		storeConflictsTotal.WithLabelValues("ensure_user").Inc()
		lastErr = err
	}

	f.logger.Error("user upsert retries exhausted",
		"request_id", requestID(ctx),
		"external_id", profile.ExternalID,
		"attempts", f.opts.MaxRetries+1,
		"error", lastErr,
	)
	return nil, NewBusinessErrorf(
		"UPSERT_RETRIES_EXHAUSTED",
		"user %q could not be upserted after %d attempts",
		fmt.Errorf("%w: %w", ErrUpsertRetriesExhausted, lastErr),
		profile.ExternalID, f.opts.MaxRetries+1,
	)
}

// lookupOrInsert is one attempt; a concurrent first login surfaces as repository.ErrConflict
func (f *IdentityFlowImpl) lookupOrInsert(ctx context.Context, profile models.ExternalProfile) (*models.User, error) {
	existing, err := f.userRepo.ByExternalID(ctx, profile.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		mergeProfile(existing, profile)
		existing.LastLoginAt = utils.UTCNowPtr()
		if err := f.userRepo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return existing, nil
	}

	user := f.newUser(profile)
	if err := f.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	f.logger.Info("user created",
		"request_id", requestID(ctx),
		"user_id", user.ID,
		"external_id", user.ExternalID,
		"provider", user.Provider,
	)
	return user, nil
}

func (f *IdentityFlowImpl) newUser(profile models.ExternalProfile) *models.User {
	return &models.User{
		ExternalID:  profile.ExternalID,
		Provider:    profile.Provider,
		Email:       utils.NonEmptyPtr(profile.Email),
		DisplayName: utils.NonEmptyPtr(profile.DisplayName),
		AvatarURL:   utils.NonEmptyPtr(profile.AvatarURL),
		LastLoginAt: utils.UTCNowPtr(),
	}
}

// mergeProfile copies the fields the provider shared; absent remote values never clear local ones
func mergeProfile(user *models.User, profile models.ExternalProfile) {
	if v := utils.NonEmptyPtr(profile.Email); v != nil {
		user.Email = v
	}
	if v := utils.NonEmptyPtr(profile.DisplayName); v != nil {
		user.DisplayName = v
	}
	if v := utils.NonEmptyPtr(profile.AvatarURL); v != nil {
		user.AvatarURL = v
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
