// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"log/slog"
	"sort"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/utils"
)

// batchOutcome decides whether a batch as a whole failed.
// A batch fails only when it had per-item errors and no item succeeded.
func batchOutcome(operation string, succeeded int, errs []dto.ItemError) error {
	if len(errs) == 0 || succeeded > 0 {
		return nil
	}
	return NewBusinessErrorf("BATCH_FAILED", "%s failed for all %d items", ErrBatchFailed, operation, len(errs))
}

// normalizeIDs dedupes ids and enforces the batch size bounds
func normalizeIDs(ids []uint) ([]uint, error) {
	ids = utils.DedupeUints(ids)
	if len(ids) == 0 {
		return nil, NewBusinessError("EMPTY_ID_LIST", "at least one id is required", ErrEmptyIDList)
	}
	if len(ids) > utils.MaxIDsPerBatch {
		return nil, NewBusinessErrorf("TOO_MANY_IDS", "at most %d ids are accepted", ErrTooManyIDs, utils.MaxIDsPerBatch)
	}
	return ids, nil
}

func itemError(logger *slog.Logger, operation string, id uint, name string, err error) dto.ItemError {
	batchItemFailuresTotal.WithLabelValues(operation).Inc()
	logger.Warn("batch item failed", "operation", operation, "id", id, "name", name, "error", err)
	return dto.ItemError{ID: id, Name: name, Message: err.Error()}
}

func sortedKeys(m map[uint]int64) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func chunk(ids []uint, size int) [][]uint {
	if size <= 0 {
		size = utils.MaxIDsPerBatch
	}
	var out [][]uint
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

func parseCounters(names []string) ([]models.VideoCounter, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]models.VideoCounter, 0, len(names))
	for _, n := range names {
		c := models.VideoCounter(n)
		if !c.Valid() {
			return nil, NewBusinessErrorf("INVALID_COUNTER", "unknown counter %q", ErrInvalidCounter, n)
		}
		out = append(out, c)
	}
	return out, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func requestID(ctx context.Context) string {
	if v, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// ToVideoDTO converts a video row to its public shape
func ToVideoDTO(v *models.Video) dto.VideoDTO {
	return dto.VideoDTO{
		ID:            v.ID,
		UUID:          v.UUID.String(),
		UserID:        v.UserID,
		Title:         v.Title,
		Description:   v.Description,
		MediaURL:      v.MediaURL,
		ThumbnailURL:  v.ThumbnailURL,
		Latitude:      v.Latitude,
		Longitude:     v.Longitude,
		LocationName:  v.LocationName,
		LikesCount:    v.LikesCount,
		CommentsCount: v.CommentsCount,
		ViewsCount:    v.ViewsCount,
		CreatedAt:     v.CreatedAt,
	}
}

// ToUserDTO converts a user row to its public shape
func ToUserDTO(u *models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:          u.ID,
		ExternalID:  u.ExternalID,
		Provider:    u.Provider,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsAdmin:     utils.IsTrue(u.IsAdmin),
		LastLoginAt: u.LastLoginAt,
	}
}
