package handlers

import (
	"log/slog"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/middleware"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/gofiber/fiber/v3"
)

// VideoHandlerInterface defines the contract for video handlers
type VideoHandlerInterface interface {
	CreateVideo(c fiber.Ctx) error
	AssignTags(c fiber.Ctx) error
	DeleteVideo(c fiber.Ctx) error
}

// VideoHandler serves owner-facing video endpoints
type VideoHandler struct {
	baseHandler
	videoFlow businessflow.VideoFlow
}

func NewVideoHandler(videoFlow businessflow.VideoFlow, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		baseHandler: newBaseHandler(logger),
		videoFlow:   videoFlow,
	}
}

func (h *VideoHandler) unauthenticated(c fiber.Ctx) error {
	return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
}

// CreateVideo registers a video and assigns its initial tags
// @Summary Create Video
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateVideoRequest true "Video data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateVideoResponse} "Video created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/videos [post]
func (h *VideoHandler) CreateVideo(c fiber.Ctx) error {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.CreateVideoRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}
	req.UserID = userID

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos")
	defer cancel()

	result, err := h.videoFlow.CreateVideo(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to create video", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Video created", result)
}

// AssignTags attaches tag names to a video
// @Summary Assign Tags
// @Description Resolve each name to a tag, link it to the video and bump its usage count. Re-sending names already linked is a no-op.
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Param request body dto.AssignTagsRequest true "Tag names"
// @Success 200 {object} dto.APIResponse{data=dto.AssignTagsResponse} "Tags processed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Not the owner"
// @Failure 404 {object} dto.APIResponse "Video not found"
// @Failure 500 {object} dto.APIResponse "Every tag failed"
// @Router /api/v1/videos/{id}/tags [post]
func (h *VideoHandler) AssignTags(c fiber.Ctx) error {
	userID, isAdmin, ok := middleware.CurrentUser(c)
	if !ok {
		return h.unauthenticated(c)
	}
	videoID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID", nil)
	}

	var req dto.AssignTagsRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}
	req.VideoID = videoID
	req.UserID = &userID

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos/:id/tags")
	defer cancel()

	result, err := h.videoFlow.AssignTags(ctx, &req, isAdmin)
	if err != nil {
		return h.flowError(c, err, "Failed to assign tags", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tags processed", result)
}

// DeleteVideo removes a video with its links, counters and engagement rows
// @Summary Delete Video
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteVideosResponse} "Video deleted"
// @Failure 403 {object} dto.APIResponse "Not the owner"
// @Failure 404 {object} dto.APIResponse "Video not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/videos/{id} [delete]
func (h *VideoHandler) DeleteVideo(c fiber.Ctx) error {
	userID, isAdmin, ok := middleware.CurrentUser(c)
	if !ok {
		return h.unauthenticated(c)
	}
	videoID, err := pathID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_VIDEO_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/videos/:id")
	defer cancel()

	result, err := h.videoFlow.DeleteVideo(ctx, videoID, userID, isAdmin)
	if err != nil {
		return h.flowError(c, err, "Failed to delete video", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Video deleted", result)
}
