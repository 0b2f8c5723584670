package handlers

import (
	"log/slog"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/middleware"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/gofiber/fiber/v3"
)

// EngagementHandlerInterface defines the contract for like, comment and view handlers
type EngagementHandlerInterface interface {
	Like(c fiber.Ctx) error
	Unlike(c fiber.Ctx) error
	AddComment(c fiber.Ctx) error
	DeleteComment(c fiber.Ctx) error
	RecordView(c fiber.Ctx) error
}

// EngagementHandler serves like, comment and view endpoints
type EngagementHandler struct {
	baseHandler
	engagementFlow businessflow.EngagementFlow
}

func NewEngagementHandler(engagementFlow businessflow.EngagementFlow, logger *slog.Logger) *EngagementHandler {
	return &EngagementHandler{
		baseHandler:    newBaseHandler(logger),
		engagementFlow: engagementFlow,
	}
}

// Like
// @Summary Like Video
// @Tags Engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Success 200 {object} dto.APIResponse{data=dto.LikeResponse}
// @Failure 404 {object} dto.APIResponse "Video not found"
// @Router /api/v1/videos/{id}/like [post]
func (h *EngagementHandler) Like(c fiber.Ctx) error {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	videoID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos/:id/like")
	defer cancel()

	result, err := h.engagementFlow.Like(ctx, videoID, userID)
	if err != nil {
		return h.flowError(c, err, "Failed to like video", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Video liked", result)
}

// Unlike
// @Summary Unlike Video
// @Tags Engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Success 200 {object} dto.APIResponse{data=dto.LikeResponse}
// @Failure 404 {object} dto.APIResponse "Video not found"
// @Router /api/v1/videos/{id}/like [delete]
func (h *EngagementHandler) Unlike(c fiber.Ctx) error {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	videoID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos/:id/like")
	defer cancel()

	result, err := h.engagementFlow.Unlike(ctx, videoID, userID)
	if err != nil {
		return h.flowError(c, err, "Failed to unlike video", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Video unliked", result)
}

// AddComment
// @Summary Comment on Video
// @Tags Engagement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Param request body dto.AddCommentRequest true "Comment"
// @Success 201 {object} dto.APIResponse{data=dto.AddCommentResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Video not found"
// @Router /api/v1/videos/{id}/comments [post]
func (h *EngagementHandler) AddComment(c fiber.Ctx) error {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	videoID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID", nil)
	}

	var req dto.AddCommentRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}
	req.VideoID = videoID
	req.UserID = userID

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos/:id/comments")
	defer cancel()

	result, err := h.engagementFlow.AddComment(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to add comment", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Comment added", result)
}

// DeleteComment
// @Summary Delete Comment
// @Description The comment author, the video owner and admins may delete a comment
// @Tags Engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteCommentResponse}
// @Failure 403 {object} dto.APIResponse "Not allowed"
// @Failure 404 {object} dto.APIResponse "Comment not found"
// @Router /api/v1/comments/{id} [delete]
func (h *EngagementHandler) DeleteComment(c fiber.Ctx) error {
	userID, isAdmin, ok := middleware.CurrentUser(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	commentID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_COMMENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/comments/:id")
	defer cancel()

	result, err := h.engagementFlow.DeleteComment(ctx, &dto.DeleteCommentRequest{
		CommentID: commentID,
		UserID:    userID,
		IsAdmin:   isAdmin,
	})
	if err != nil {
		return h.flowError(c, err, "Failed to delete comment", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Comment deleted", result)
}

// RecordView registers a playback; anonymous viewers are recorded by ip only
// @Summary Record View
// @Tags Engagement
// @Produce json
// @Param id path int true "Video ID"
// @Success 200 {object} dto.APIResponse{data=dto.RecordViewResponse}
// @Failure 404 {object} dto.APIResponse "Video not found"
// @Router /api/v1/videos/{id}/views [post]
func (h *EngagementHandler) RecordView(c fiber.Ctx) error {
	videoID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID", nil)
	}

	req := dto.RecordViewRequest{VideoID: videoID}
	if userID, _, ok := middleware.CurrentUser(c); ok {
		req.UserID = &userID
	}
	if ip := c.IP(); ip != "" {
		req.IPAddress = &ip
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos/:id/views")
	defer cancel()

	result, err := h.engagementFlow.RecordView(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to record view", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "View recorded", result)
}
