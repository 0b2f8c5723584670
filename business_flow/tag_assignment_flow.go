package businessflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
)

// TagAssignmentFlow attaches tag names to videos
type TagAssignmentFlow interface {
	AssignTags(ctx context.Context, req *dto.AssignTagsRequest) (*dto.AssignTagsResponse, error)
}

// TagAssignmentFlowImpl implements TagAssignmentFlow.
// Each name is an independent lookup, conditional link insert and counter increment;
// nothing spans names, and re-running the same request is a no-op for names already linked.
type TagAssignmentFlowImpl struct {
	videoRepo   repository.VideoRepository
	linkRepo    repository.VideoTagRepository
	counterRepo repository.CounterRepository
	resolver    TagResolver
	logger      *slog.Logger
}

func NewTagAssignmentFlow(
	videoRepo repository.VideoRepository,
	linkRepo repository.VideoTagRepository,
	counterRepo repository.CounterRepository,
	resolver TagResolver,
	logger *slog.Logger,
) TagAssignmentFlow {
	return &TagAssignmentFlowImpl{
		videoRepo:   videoRepo,
		linkRepo:    linkRepo,
		counterRepo: counterRepo,
		resolver:    resolver,
		logger:      loggerOrDefault(logger),
	}
}

// AssignTags returns the per-name report even when the batch as a whole failed;
// in that case the error wraps ErrBatchFailed.
func (f *TagAssignmentFlowImpl) AssignTags(ctx context.Context, req *dto.AssignTagsRequest) (*dto.AssignTagsResponse, error) {
	if req.VideoID == 0 {
		return nil, NewBusinessError("INVALID_VIDEO", "video id is required", ErrInvalidVideo)
	}
	if len(req.TagNames) == 0 {
		return nil, NewBusinessError("EMPTY_TAG_LIST", "at least one tag is required", ErrEmptyTagList)
	}
	if len(req.TagNames) > utils.MaxTagsPerAssignment {
		return nil, NewBusinessErrorf("TOO_MANY_TAGS", "at most %d tags are accepted", ErrTooManyTags, utils.MaxTagsPerAssignment)
	}

	video, err := f.videoRepo.ByID(ctx, req.VideoID)
	if err != nil {
		return nil, NewBusinessError("VIDEO_LOOKUP_FAILED", "failed to load video", err)
	}
	if video == nil {
		return nil, NewBusinessErrorf("VIDEO_NOT_FOUND", "video %d not found", ErrVideoNotFound, req.VideoID)
	}

	res := &dto.AssignTagsResponse{
		VideoID: video.ID,
		Errors:  []dto.ItemError{},
		Items:   make([]dto.TagAssignmentItem, 0, len(req.TagNames)),
	}
	for _, name := range req.TagNames {
		item := f.assignOne(ctx, video.ID, name, req.UserID, res)
		res.Items = append(res.Items, item)
	}

	f.logger.Info("tags assigned",
		"request_id", requestID(ctx),
		"video_id", video.ID,
		"created", res.Created,
		"assigned", res.Assigned,
		"skipped", res.Skipped,
		"failed", len(res.Errors),
	)
	return res, batchOutcome("tag assignment", res.Assigned+res.Skipped, res.Errors)
}

func (f *TagAssignmentFlowImpl) assignOne(ctx context.Context, videoID uint, name string, userID *uint, res *dto.AssignTagsResponse) dto.TagAssignmentItem {
	item := dto.TagAssignmentItem{Name: name, Outcome: dto.TagOutcomeFailed}
	fail := func(tagID uint, err error) dto.TagAssignmentItem {
		res.Errors = append(res.Errors, itemError(f.logger, "tag_assignment", tagID, name, err))
		return item
	}

	tag, created, err := f.resolver.Resolve(ctx, name, userID)
	if err != nil {
		return fail(0, err)
	}
	item.TagID = tag.ID
	item.Created = created
	if created {
		res.Created++
	}

	exists, err := f.linkRepo.Exists(ctx, videoID, tag.ID)
	if err != nil {
		return fail(tag.ID, fmt.Errorf("failed to check link: %w", err))
	}
	if exists {
		res.Skipped++
		item.Outcome = dto.TagOutcomeSkipped
		return item
	}

	err = f.linkRepo.Create(ctx, &models.VideoTag{VideoID: videoID, TagID: tag.ID, AssignedBy: userID})
	if err != nil {
		if repository.IsConflict(err) {
			// A concurrent assignment inserted the same link and owns its increment.
			storeConflictsTotal.WithLabelValues("link_create").Inc()
			res.Skipped++
			item.Outcome = dto.TagOutcomeSkipped
			return item
		}
		return fail(tag.ID, fmt.Errorf("failed to create link: %w", err))
	}

	// The link is the fact; a failed increment leaves drift for reconciliation.
	res.Assigned++
	item.Outcome = dto.TagOutcomeAssigned
	change, err := f.counterRepo.AdjustTagUsage(ctx, tag.ID, 1)
	if err != nil {
		res.Errors = append(res.Errors, itemError(f.logger, "tag_assignment", tag.ID, name,
			fmt.Errorf("link created but usage_count not incremented: %w", err)))
		return item
	}
	observeAdjustment("tag", "usage_count", 1, change.Before)
	return item
}
