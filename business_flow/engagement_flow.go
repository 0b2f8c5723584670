package businessflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
)

// EngagementFlow writes likes, comments and views and keeps the matching video counters in step
type EngagementFlow interface {
	Like(ctx context.Context, videoID, userID uint) (*dto.LikeResponse, error)
	Unlike(ctx context.Context, videoID, userID uint) (*dto.LikeResponse, error)
	AddComment(ctx context.Context, req *dto.AddCommentRequest) (*dto.AddCommentResponse, error)
	DeleteComment(ctx context.Context, req *dto.DeleteCommentRequest) (*dto.DeleteCommentResponse, error)
	RecordView(ctx context.Context, req *dto.RecordViewRequest) (*dto.RecordViewResponse, error)
}

// EngagementFlowImpl implements EngagementFlow.
// The fact row is written first and the counter adjusted after it; a failed adjustment
// is logged and left for reconciliation rather than failing a write that already happened.
type EngagementFlowImpl struct {
	videoRepo   repository.VideoRepository
	counterRepo repository.CounterRepository
	likeRepo    repository.LikeRepository
	commentRepo repository.CommentRepository
	viewRepo    repository.VideoViewRepository
	logger      *slog.Logger
}

func NewEngagementFlow(
	videoRepo repository.VideoRepository,
	counterRepo repository.CounterRepository,
	likeRepo repository.LikeRepository,
	commentRepo repository.CommentRepository,
	viewRepo repository.VideoViewRepository,
	logger *slog.Logger,
) EngagementFlow {
	return &EngagementFlowImpl{
		videoRepo:   videoRepo,
		counterRepo: counterRepo,
		likeRepo:    likeRepo,
		commentRepo: commentRepo,
		viewRepo:    viewRepo,
		logger:      loggerOrDefault(logger),
	}
}

func (f *EngagementFlowImpl) loadVideo(ctx context.Context, id uint) (*models.Video, error) {
	if id == 0 {
		return nil, NewBusinessError("INVALID_VIDEO", "video id is required", ErrInvalidVideo)
	}
	video, err := f.videoRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("VIDEO_LOOKUP_FAILED", "failed to load video", err)
	}
	if video == nil {
		return nil, NewBusinessErrorf("VIDEO_NOT_FOUND", "video %d not found", ErrVideoNotFound, id)
	}
	return video, nil
}

// adjust applies delta to a video counter and returns the new value, or fallback when the write failed
func (f *EngagementFlowImpl) adjust(ctx context.Context, videoID uint, counter models.VideoCounter, delta, fallback int64) int64 {
	change, err := f.counterRepo.AdjustVideoCounter(ctx, videoID, counter, delta)
	if err != nil {
		f.logger.Warn("video counter adjustment failed",
			"request_id", requestID(ctx),
			"video_id", videoID,
			"counter", counter,
			"delta", delta,
			"error", err,
		)
		return fallback
	}
	observeAdjustment("video", string(counter), delta, change.Before)
	return change.After
}

// Like is idempotent: liking twice leaves one row and counts once
func (f *EngagementFlowImpl) Like(ctx context.Context, videoID, userID uint) (*dto.LikeResponse, error) {
	video, err := f.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	res := &dto.LikeResponse{VideoID: video.ID, Liked: true, LikesCount: video.LikesCount}
	err = f.likeRepo.Save(ctx, &models.Like{VideoID: video.ID, UserID: userID})
	switch {
	case errors.Is(err, repository.ErrConflict):
		storeConflictsTotal.WithLabelValues("like").Inc()
		return res, nil
	case err != nil:
		return nil, NewBusinessError("LIKE_FAILED", "failed to like video", err)
	}

	res.Changed = true
	res.LikesCount = f.adjust(ctx, video.ID, models.VideoCounterLikes, 1, video.LikesCount+1)
	return res, nil
}

// Unlike decrements likes_count only when a like row was actually removed
func (f *EngagementFlowImpl) Unlike(ctx context.Context, videoID, userID uint) (*dto.LikeResponse, error) {
	video, err := f.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	removed, err := f.likeRepo.Delete(ctx, video.ID, userID)
	if err != nil {
		return nil, NewBusinessError("UNLIKE_FAILED", "failed to unlike video", err)
	}
	res := &dto.LikeResponse{VideoID: video.ID, LikesCount: video.LikesCount}
	if removed > 0 {
		res.Changed = true
		res.LikesCount = f.adjust(ctx, video.ID, models.VideoCounterLikes, -removed, repository.ClampCounter(video.LikesCount, -removed))
	}
	return res, nil
}

func (f *EngagementFlowImpl) AddComment(ctx context.Context, req *dto.AddCommentRequest) (*dto.AddCommentResponse, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" || utf8.RuneCountInString(body) > utils.MaxCommentLength {
		return nil, NewBusinessErrorf("INVALID_COMMENT", "comment must be 1 to %d characters", ErrInvalidComment, utils.MaxCommentLength)
	}
	video, err := f.loadVideo(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{VideoID: video.ID, UserID: req.UserID, Body: body}
	if err := f.commentRepo.Save(ctx, comment); err != nil {
		return nil, NewBusinessError("COMMENT_FAILED", "failed to save comment", err)
	}

	count := f.adjust(ctx, video.ID, models.VideoCounterComments, 1, video.CommentsCount+1)
	return &dto.AddCommentResponse{
		Comment: dto.CommentDTO{
			ID:        comment.ID,
			VideoID:   comment.VideoID,
			UserID:    comment.UserID,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt.UTC().Format(time.RFC3339),
		},
		CommentsCount: count,
	}, nil
}

// DeleteComment is allowed for the comment author, the video owner and admins
func (f *EngagementFlowImpl) DeleteComment(ctx context.Context, req *dto.DeleteCommentRequest) (*dto.DeleteCommentResponse, error) {
	comment, err := f.commentRepo.ByID(ctx, req.CommentID)
	if err != nil {
		return nil, NewBusinessError("COMMENT_LOOKUP_FAILED", "failed to load comment", err)
	}
	if comment == nil {
		return nil, NewBusinessErrorf("COMMENT_NOT_FOUND", "comment %d not found", ErrCommentNotFound, req.CommentID)
	}

	video, err := f.videoRepo.ByID(ctx, comment.VideoID)
	if err != nil {
		return nil, NewBusinessError("VIDEO_LOOKUP_FAILED", "failed to load video", err)
	}
	allowed := req.IsAdmin || comment.UserID == req.UserID || (video != nil && video.UserID == req.UserID)
	if !allowed {
		return nil, NewBusinessError("FORBIDDEN", "not allowed to delete this comment", ErrForbidden)
	}

	removed, err := f.commentRepo.DeleteByID(ctx, comment.ID)
	if err != nil {
		return nil, NewBusinessError("COMMENT_DELETE_FAILED", "failed to delete comment", err)
	}
	res := &dto.DeleteCommentResponse{VideoID: comment.VideoID}
	if video == nil {
		return res, nil
	}
	res.CommentsCount = video.CommentsCount
	if removed > 0 {
		res.CommentsCount = f.adjust(ctx, video.ID, models.VideoCounterComments, -removed, repository.ClampCounter(video.CommentsCount, -removed))
	}
	return res, nil
}

func (f *EngagementFlowImpl) RecordView(ctx context.Context, req *dto.RecordViewRequest) (*dto.RecordViewResponse, error) {
	video, err := f.loadVideo(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}
	view := &models.VideoView{VideoID: video.ID, UserID: req.UserID, IPAddress: req.IPAddress}
	if err := f.viewRepo.Save(ctx, view); err != nil {
		return nil, NewBusinessError("VIEW_FAILED", "failed to record view", err)
	}
	return &dto.RecordViewResponse{
		VideoID:    video.ID,
		ViewsCount: f.adjust(ctx, video.ID, models.VideoCounterViews, 1, video.ViewsCount+1),
	}, nil
}
