package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepositoryImpl implements UserRepository and AtomicUserUpserter
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByExternalID retrieves a user by the provider subject
func (r *UserRepositoryImpl) ByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	rows, err := r.ByFilter(ctx, models.UserFilter{ExternalID: &externalID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update writes the mutable profile columns of an existing user
func (r *UserRepositoryImpl) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = utils.UTCNow()
	res := r.getDB(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"email":         user.Email,
		"display_name":  user.DisplayName,
		"avatar_url":    user.AvatarURL,
		"last_login_at": user.LastLoginAt,
		"updated_at":    user.UpdatedAt,
	})
	if res.Error != nil {
		return translateWriteError("failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}

// UpsertByExternalID inserts the user or, when external_id already exists, merges
// the non-null profile fields into the existing row in the same statement.
func (r *UserRepositoryImpl) UpsertByExternalID(ctx context.Context, user *models.User) (*models.User, error) {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"email":         gorm.Expr("COALESCE(EXCLUDED.email, users.email)"),
			"display_name":  gorm.Expr("COALESCE(EXCLUDED.display_name, users.display_name)"),
			"avatar_url":    gorm.Expr("COALESCE(EXCLUDED.avatar_url, users.avatar_url)"),
			"last_login_at": gorm.Expr("COALESCE(EXCLUDED.last_login_at, users.last_login_at)"),
			"updated_at":    gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(user).Error
	if err != nil {
		return nil, translateWriteError("failed to upsert user", err)
	}

	row, err := r.ByExternalID(ctx, user.ExternalID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("upserted user %q not readable: %w", user.ExternalID, ErrNotFound)
	}
	return row, nil
}

// DeleteByIDs removes user rows
func (r *UserRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Where("id IN ?", ids).Delete(&models.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete users: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ExternalID != nil {
		query = query.Where("external_id = ?", *filter.ExternalID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.IsAdmin != nil {
		query = query.Where("is_admin = ?", *filter.IsAdmin)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves users based on filter criteria
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter)
	query = paginate(query, orderBy, limit, offset)

	var rows []*models.User
	if err := query.Find(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

// Count returns the number of users matching the filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any user matching the filter exists
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
