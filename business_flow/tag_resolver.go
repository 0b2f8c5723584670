package businessflow

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
)

// TagResolver is a case-insensitive get-or-create over tag names
type TagResolver interface {
	// Resolve returns the tag for name, creating it with usage_count 0 when missing.
	// created reports whether this call inserted the row.
	Resolve(ctx context.Context, name string, creatorID *uint) (tag *models.Tag, created bool, err error)
}

// TagResolverImpl implements TagResolver
type TagResolverImpl struct {
	tagRepo repository.TagRepository
	logger  *slog.Logger
}

func NewTagResolver(tagRepo repository.TagRepository, logger *slog.Logger) TagResolver {
	return &TagResolverImpl{tagRepo: tagRepo, logger: loggerOrDefault(logger)}
}

// ValidateTagName normalizes name and checks it is usable as a tag key
func ValidateTagName(name string) (string, error) {
	key := models.NormalizeTagName(name)
	if key == "" {
		return "", NewBusinessError("INVALID_TAG_NAME", "tag name must not be blank", ErrInvalidTagName)
	}
	if utf8.RuneCountInString(key) > utils.MaxTagNameLength {
		return "", NewBusinessErrorf("INVALID_TAG_NAME", "tag name must be at most %d characters", ErrInvalidTagName, utils.MaxTagNameLength)
	}
	return key, nil
}

func (r *TagResolverImpl) Resolve(ctx context.Context, name string, creatorID *uint) (*models.Tag, bool, error) {
	key, err := ValidateTagName(name)
	if err != nil {
		return nil, false, err
	}

	tag, err := r.tagRepo.ByName(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up tag %q: %w", key, err)
	}
	if tag != nil {
		return tag, false, nil
	}

	tag = &models.Tag{Name: key, UsageCount: 0, CreatedBy: creatorID}
	err = r.tagRepo.Save(ctx, tag)
	if err == nil {
		return tag, true, nil
	}
	if !repository.IsConflict(err) {
		return nil, false, fmt.Errorf("failed to create tag %q: %w", key, err)
	}

	// Lost the insert race: the winner's row is the tag.
	storeConflictsTotal.WithLabelValues("tag_create").Inc()
	r.logger.Debug("tag create conflict, re-resolving", "name", key)

	tag, err = r.tagRepo.ByName(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-resolve tag %q: %w", key, err)
	}
	if tag == nil {
		return nil, false, fmt.Errorf("tag %q conflicted on insert but is not readable: %w", key, ErrTagNotFound)
	}
	return tag, false, nil
}
