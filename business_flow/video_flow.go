package businessflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/google/uuid"
)

// VideoFlow handles the owner-facing video lifecycle
type VideoFlow interface {
	// CreateVideo stores the video and then runs tag assignment for req.Tags
	CreateVideo(ctx context.Context, req *dto.CreateVideoRequest) (*dto.CreateVideoResponse, error)
	// AssignTags runs tag assignment on a video its caller owns, or any video for admins
	AssignTags(ctx context.Context, req *dto.AssignTagsRequest, isAdmin bool) (*dto.AssignTagsResponse, error)
	// DeleteVideo cascades a single video deletion for its owner or an admin
	DeleteVideo(ctx context.Context, videoID, userID uint, isAdmin bool) (*dto.DeleteVideosResponse, error)
}

// VideoFlowImpl implements VideoFlow
type VideoFlowImpl struct {
	videoRepo repository.VideoRepository
	tagging   TagAssignmentFlow
	cascade   CascadeDeleteFlow
	logger    *slog.Logger
}

func NewVideoFlow(
	videoRepo repository.VideoRepository,
	tagging TagAssignmentFlow,
	cascade CascadeDeleteFlow,
	logger *slog.Logger,
) VideoFlow {
	return &VideoFlowImpl{
		videoRepo: videoRepo,
		tagging:   tagging,
		cascade:   cascade,
		logger:    loggerOrDefault(logger),
	}
}

func (f *VideoFlowImpl) CreateVideo(ctx context.Context, req *dto.CreateVideoRequest) (*dto.CreateVideoResponse, error) {
	title := strings.TrimSpace(req.Title)
	if req.UserID == 0 || title == "" || strings.TrimSpace(req.MediaURL) == "" {
		return nil, NewBusinessError("INVALID_VIDEO", "owner, title and media url are required", ErrInvalidVideo)
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, NewBusinessError("INVALID_VIDEO", "latitude and longitude must be given together", ErrInvalidVideo)
	}

	video := &models.Video{
		UUID:         uuid.New(),
		UserID:       req.UserID,
		Title:        title,
		Description:  req.Description,
		MediaURL:     strings.TrimSpace(req.MediaURL),
		ThumbnailURL: req.ThumbnailURL,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: req.LocationName,
	}
	if err := f.videoRepo.Save(ctx, video); err != nil {
		return nil, NewBusinessError("VIDEO_CREATE_FAILED", "failed to create video", err)
	}
	f.logger.Info("video created",
		"request_id", requestID(ctx),
		"video_id", video.ID,
		"user_id", video.UserID,
		"tags", len(req.Tags),
	)

	res := &dto.CreateVideoResponse{}
	if len(req.Tags) > 0 {
		userID := req.UserID
		tags, err := f.tagging.AssignTags(ctx, &dto.AssignTagsRequest{
			VideoID:  video.ID,
			TagNames: req.Tags,
			UserID:   &userID,
		})
		// the video exists either way; a failed tag batch is reported, not rolled back
		if err != nil && !errors.Is(err, ErrBatchFailed) {
			f.logger.Warn("initial tag assignment failed", "video_id", video.ID, "error", err)
		}
		res.Tags = tags
		if tags != nil {
			// reread so the response reflects counters written by the assignment
			if fresh, rerr := f.videoRepo.ByID(ctx, video.ID); rerr == nil && fresh != nil {
				video = fresh
			}
		}
	}
	res.Video = ToVideoDTO(video)
	return res, nil
}

func (f *VideoFlowImpl) AssignTags(ctx context.Context, req *dto.AssignTagsRequest, isAdmin bool) (*dto.AssignTagsResponse, error) {
	if _, err := f.ownedVideo(ctx, req.VideoID, req.UserID, isAdmin); err != nil {
		return nil, err
	}
	return f.tagging.AssignTags(ctx, req)
}

// ownedVideo loads a video and checks that userID may modify it
func (f *VideoFlowImpl) ownedVideo(ctx context.Context, videoID uint, userID *uint, isAdmin bool) (*models.Video, error) {
	video, err := f.videoRepo.ByID(ctx, videoID)
	if err != nil {
		return nil, NewBusinessError("VIDEO_LOOKUP_FAILED", "failed to load video", err)
	}
	if video == nil {
		return nil, NewBusinessErrorf("VIDEO_NOT_FOUND", "video %d not found", ErrVideoNotFound, videoID)
	}
	if !isAdmin && (userID == nil || video.UserID != *userID) {
		return nil, NewBusinessError("FORBIDDEN", "only the owner can modify this video", ErrForbidden)
	}
	return video, nil
}

func (f *VideoFlowImpl) DeleteVideo(ctx context.Context, videoID, userID uint, isAdmin bool) (*dto.DeleteVideosResponse, error) {
	video, err := f.ownedVideo(ctx, videoID, &userID, isAdmin)
	if err != nil {
		return nil, err
	}
	return f.cascade.DeleteVideos(ctx, []uint{video.ID})
}
