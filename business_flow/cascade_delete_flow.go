package businessflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
)

// CascadeDeleteFlow removes videos, tags and users together with every dependent row,
// keeping the counters of surviving rows in step.
type CascadeDeleteFlow interface {
	DeleteVideos(ctx context.Context, ids []uint) (*dto.DeleteVideosResponse, error)
	DeleteTags(ctx context.Context, ids []uint) (*dto.DeleteTagsResponse, error)
	DeleteUsers(ctx context.Context, ids []uint) (*dto.DeleteUsersResponse, error)
	PurgeVideoFacts(ctx context.Context, ids []uint) (*dto.FactPurgeResult, error)
}

// CascadeDeleteFlowImpl implements CascadeDeleteFlow.
// Steps run in an order where a crash at any point leaves non-negative counters
// and rows that a later run or reconciliation can finish; nothing is rolled back.
type CascadeDeleteFlowImpl struct {
	userRepo    repository.UserRepository
	videoRepo   repository.VideoRepository
	tagRepo     repository.TagRepository
	linkRepo    repository.VideoTagRepository
	counterRepo repository.CounterRepository
	likeRepo    repository.LikeRepository
	commentRepo repository.CommentRepository
	viewRepo    repository.VideoViewRepository
	logger      *slog.Logger
}

func NewCascadeDeleteFlow(
	userRepo repository.UserRepository,
	videoRepo repository.VideoRepository,
	tagRepo repository.TagRepository,
	linkRepo repository.VideoTagRepository,
	counterRepo repository.CounterRepository,
	likeRepo repository.LikeRepository,
	commentRepo repository.CommentRepository,
	viewRepo repository.VideoViewRepository,
	logger *slog.Logger,
) CascadeDeleteFlow {
	return &CascadeDeleteFlowImpl{
		userRepo:    userRepo,
		videoRepo:   videoRepo,
		tagRepo:     tagRepo,
		linkRepo:    linkRepo,
		counterRepo: counterRepo,
		likeRepo:    likeRepo,
		commentRepo: commentRepo,
		viewRepo:    viewRepo,
		logger:      loggerOrDefault(logger),
	}
}

// DeleteVideos retires the videos' tag links and their counter effects, purges the
// videos' likes, comments and views, then deletes the video rows.
// Per-tag counter failures are reported in Errors and do not stop the deletion.
func (f *CascadeDeleteFlowImpl) DeleteVideos(ctx context.Context, ids []uint) (*dto.DeleteVideosResponse, error) {
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}
	res, err := f.deleteVideos(ctx, ids)
	if err != nil {
		return nil, err
	}
	f.logger.Info("videos deleted",
		"request_id", requestID(ctx),
		"requested", len(ids),
		"deleted", res.DeletedCount,
		"links_removed", res.LinksRemoved,
		"tags_updated", len(res.UpdatedTags),
		"failed", len(res.Errors),
	)
	return res, nil
}

func (f *CascadeDeleteFlowImpl) deleteVideos(ctx context.Context, ids []uint) (*dto.DeleteVideosResponse, error) {
	res := &dto.DeleteVideosResponse{UpdatedTags: []dto.TagCounterUpdate{}, Errors: []dto.ItemError{}}

	deltas, err := f.linkRepo.CountByTagForVideos(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("LINK_COUNT_FAILED", "failed to count tag links of videos", err)
	}

	removed, err := f.linkRepo.DeleteByVideoIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("LINK_DELETE_FAILED", "failed to delete tag links of videos", err)
	}
	res.LinksRemoved = removed

	for _, tagID := range sortedKeys(deltas) {
		delta := deltas[tagID]
		change, err := f.counterRepo.AdjustTagUsage(ctx, tagID, -delta)
		if err != nil {
			res.Errors = append(res.Errors, itemError(f.logger, "delete_videos", tagID, "",
				fmt.Errorf("failed to decrement usage_count by %d: %w", delta, err)))
			continue
		}
		observeAdjustment("tag", "usage_count", -delta, change.Before)
		res.UpdatedTags = append(res.UpdatedTags, dto.TagCounterUpdate{
			TagID:  tagID,
			Delta:  -delta,
			Before: change.Before,
			After:  change.After,
		})
	}

	facts, err := f.PurgeVideoFacts(ctx, ids)
	if err != nil {
		return nil, err
	}
	res.Facts = *facts

	deleted, err := f.videoRepo.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("VIDEO_DELETE_FAILED", "failed to delete videos", err)
	}
	res.DeletedCount = deleted
	return res, nil
}

// PurgeVideoFacts deletes the likes, comments and views of the given videos.
// The video counters are not touched; the videos are expected to be deleted next.
func (f *CascadeDeleteFlowImpl) PurgeVideoFacts(ctx context.Context, ids []uint) (*dto.FactPurgeResult, error) {
	if len(ids) == 0 {
		return &dto.FactPurgeResult{}, nil
	}
	likes, err := f.likeRepo.DeleteByVideoIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("FACT_PURGE_FAILED", "failed to delete likes of videos", err)
	}
	comments, err := f.commentRepo.DeleteByVideoIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("FACT_PURGE_FAILED", "failed to delete comments of videos", err)
	}
	views, err := f.viewRepo.DeleteByVideoIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("FACT_PURGE_FAILED", "failed to delete views of videos", err)
	}
	return &dto.FactPurgeResult{Likes: likes, Comments: comments, Views: views}, nil
}

// DeleteTags removes each tag and all of its links, one tag at a time.
// No other counter changes because the tag itself disappears.
func (f *CascadeDeleteFlowImpl) DeleteTags(ctx context.Context, ids []uint) (*dto.DeleteTagsResponse, error) {
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	res := &dto.DeleteTagsResponse{Errors: []dto.ItemError{}}
	for _, id := range ids {
		connections, err := f.deleteTag(ctx, id)
		if err != nil {
			res.Errors = append(res.Errors, itemError(f.logger, "delete_tags", id, "", err))
			continue
		}
		res.DeletedCount++
		res.DeletedConnections += connections
	}

	f.logger.Info("tags deleted",
		"request_id", requestID(ctx),
		"requested", len(ids),
		"deleted", res.DeletedCount,
		"connections", res.DeletedConnections,
		"failed", len(res.Errors),
	)
	return res, batchOutcome("tag deletion", int(res.DeletedCount), res.Errors)
}

func (f *CascadeDeleteFlowImpl) deleteTag(ctx context.Context, id uint) (int64, error) {
	tag, err := f.tagRepo.ByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to load tag: %w", err)
	}
	if tag == nil {
		return 0, ErrTagNotFound
	}

	counted, err := f.linkRepo.CountByTagID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	removed, err := f.linkRepo.DeleteByTagID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete links: %w", err)
	}
	if removed != counted {
		f.logger.Debug("tag links changed while deleting", "tag_id", id, "counted", counted, "removed", removed)
	}

	if _, err := f.tagRepo.DeleteByID(ctx, id); err != nil {
		return removed, fmt.Errorf("links removed but tag row not deleted: %w", err)
	}
	return removed, nil
}

// DeleteUsers removes each user with their videos, their likes and comments on other
// videos (decrementing those videos' counters), detaches their views and tag
// attributions, and finally deletes the user row.
func (f *CascadeDeleteFlowImpl) DeleteUsers(ctx context.Context, ids []uint) (*dto.DeleteUsersResponse, error) {
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	res := &dto.DeleteUsersResponse{
		UpdatedTags:   []dto.TagCounterUpdate{},
		UpdatedVideos: []dto.VideoCounterUpdate{},
		Errors:        []dto.ItemError{},
	}
	for _, id := range ids {
		if err := f.deleteUser(ctx, id, res); err != nil {
			res.Errors = append(res.Errors, itemError(f.logger, "delete_users", id, "", err))
			continue
		}
		res.DeletedCount++
	}

	f.logger.Info("users deleted",
		"request_id", requestID(ctx),
		"requested", len(ids),
		"deleted", res.DeletedCount,
		"videos_deleted", res.VideosDeleted,
		"failed", len(res.Errors),
	)
	return res, batchOutcome("user deletion", int(res.DeletedCount), res.Errors)
}

func (f *CascadeDeleteFlowImpl) deleteUser(ctx context.Context, userID uint, res *dto.DeleteUsersResponse) error {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	videoIDs, err := f.videoRepo.ListIDsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}
	for _, batch := range chunk(videoIDs, 0) {
		vres, err := f.deleteVideos(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to delete videos: %w", err)
		}
		res.VideosDeleted += vres.DeletedCount
		res.UpdatedTags = append(res.UpdatedTags, vres.UpdatedTags...)
		res.Errors = append(res.Errors, vres.Errors...)
	}

	likes, err := f.likeRepo.CountByVideoForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count likes: %w", err)
	}
	n, err := f.likeRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete likes: %w", err)
	}
	res.LikesRemoved += n
	f.decrementVideos(ctx, models.VideoCounterLikes, likes, res)

	comments, err := f.commentRepo.CountByVideoForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count comments: %w", err)
	}
	n, err = f.commentRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	res.CommentsRemoved += n
	f.decrementVideos(ctx, models.VideoCounterComments, comments, res)

	// Views stay counted; only the viewer is forgotten.
	n, err = f.viewRepo.AnonymizeByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to detach views: %w", err)
	}
	res.ViewsDetached += n

	if _, err := f.tagRepo.ClearCreator(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear tag creator: %w", err)
	}

	if _, err := f.userRepo.DeleteByIDs(ctx, []uint{userID}); err != nil {
		return fmt.Errorf("failed to delete user row: %w", err)
	}
	return nil
}

func (f *CascadeDeleteFlowImpl) decrementVideos(ctx context.Context, counter models.VideoCounter, deltas map[uint]int64, res *dto.DeleteUsersResponse) {
	for _, videoID := range sortedKeys(deltas) {
		delta := deltas[videoID]
		change, err := f.counterRepo.AdjustVideoCounter(ctx, videoID, counter, -delta)
		if err != nil {
			res.Errors = append(res.Errors, itemError(f.logger, "delete_users", videoID, string(counter),
				fmt.Errorf("failed to decrement %s by %d: %w", counter, delta, err)))
			continue
		}
		observeAdjustment("video", string(counter), -delta, change.Before)
		res.UpdatedVideos = append(res.UpdatedVideos, dto.VideoCounterUpdate{
			VideoID: videoID,
			Counter: string(counter),
			Delta:   -delta,
			Before:  change.Before,
			After:   change.After,
		})
	}
}
