package handlers

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/amirphl/Geovid/app/dto"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/amirphl/Geovid/models"
	"github.com/gofiber/fiber/v3"
)

// AdminHandlerInterface defines the contract for admin cascade and maintenance handlers
type AdminHandlerInterface interface {
	DeleteVideos(c fiber.Ctx) error
	DeleteTags(c fiber.Ctx) error
	DeleteUsers(c fiber.Ctx) error
	ReconcileTags(c fiber.Ctx) error
	ReconcileVideos(c fiber.Ctx) error
	ReconcileAll(c fiber.Ctx) error
	TagDriftReport(c fiber.Ctx) error
	DownloadTagDriftExcel(c fiber.Ctx) error
	LastReconcileReport(c fiber.Ctx) error
}

// ReconcileReportSource returns the outcome of the most recent scheduled sweep
type ReconcileReportSource interface {
	LastReport(ctx context.Context) (*dto.ReconcileAllResponse, error)
}

// AdminHandler serves admin-only cascade deletion and counter maintenance
type AdminHandler struct {
	baseHandler
	cascadeFlow   businessflow.CascadeDeleteFlow
	reconcileFlow businessflow.ReconciliationFlow
	reports       ReconcileReportSource
}

// NewAdminHandler builds the handler; reports may be nil when no scheduler runs
func NewAdminHandler(
	cascadeFlow businessflow.CascadeDeleteFlow,
	reconcileFlow businessflow.ReconciliationFlow,
	reports ReconcileReportSource,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		baseHandler:   newBaseHandler(logger),
		cascadeFlow:   cascadeFlow,
		reconcileFlow: reconcileFlow,
		reports:       reports,
	}
}

// DeleteVideos
// @Summary Admin Delete Videos
// @Description Delete videos with their tag links, engagement rows and the matching tag usage decrements
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeleteVideosRequest true "Video IDs"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteVideosResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Cascade failed"
// @Router /api/v1/admin/videos/delete [post]
func (h *AdminHandler) DeleteVideos(c fiber.Ctx) error {
	var req dto.DeleteVideosRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/videos/delete")
	defer cancel()

	result, err := h.cascadeFlow.DeleteVideos(ctx, req.IDs)
	if err != nil {
		return h.flowError(c, err, "Failed to delete videos", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Videos deleted", result)
}

// DeleteTags
// @Summary Admin Delete Tags
// @Description Delete tags and every video link pointing at them
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeleteTagsRequest true "Tag IDs"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteTagsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Every tag failed"
// @Router /api/v1/admin/tags/delete [post]
func (h *AdminHandler) DeleteTags(c fiber.Ctx) error {
	var req dto.DeleteTagsRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/tags/delete")
	defer cancel()

	result, err := h.cascadeFlow.DeleteTags(ctx, req.IDs)
	if err != nil {
		return h.flowError(c, err, "Failed to delete tags", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tags deleted", result)
}

// DeleteUsers
// @Summary Admin Delete Users
// @Description Delete users with their videos and engagement, decrementing the counters of videos they engaged with
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeleteUsersRequest true "User IDs"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteUsersResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Every user failed"
// @Router /api/v1/admin/users/delete [post]
func (h *AdminHandler) DeleteUsers(c fiber.Ctx) error {
	var req dto.DeleteUsersRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users/delete")
	defer cancel()

	result, err := h.cascadeFlow.DeleteUsers(ctx, req.IDs)
	if err != nil {
		return h.flowError(c, err, "Failed to delete users", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users deleted", result)
}

// ReconcileTags
// @Summary Reconcile Tag Usage Counts
// @Description Overwrite usage_count with the live link count; an empty list means every tag
// @Tags Admin Maintenance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ReconcileTagsRequest false "Tag IDs"
// @Success 200 {object} dto.APIResponse{data=dto.ReconcileResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Reconciliation failed"
// @Router /api/v1/admin/maintenance/reconcile-tags [post]
func (h *AdminHandler) ReconcileTags(c fiber.Ctx) error {
	var req dto.ReconcileTagsRequest
	if len(c.Body()) > 0 {
		if handled, err := h.bindAndValidate(c, &req); handled {
			return err
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/maintenance/reconcile-tags")
	defer cancel()

	result, err := h.reconcileFlow.ReconcileTagCounters(ctx, req.TagIDs)
	if err != nil {
		return h.flowError(c, err, "Failed to reconcile tag counters", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tag counters reconciled", result)
}

// ReconcileVideos
// @Summary Reconcile Video Counters
// @Description Overwrite video counters with fact-table counts; defaults to every video and views_count
// @Tags Admin Maintenance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ReconcileVideosRequest false "Video IDs and counters"
// @Success 200 {object} dto.APIResponse{data=dto.ReconcileResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Reconciliation failed"
// @Router /api/v1/admin/maintenance/reconcile-videos [post]
func (h *AdminHandler) ReconcileVideos(c fiber.Ctx) error {
	var req dto.ReconcileVideosRequest
	if len(c.Body()) > 0 {
		if handled, err := h.bindAndValidate(c, &req); handled {
			return err
		}
	}

	var counters []models.VideoCounter
	for _, name := range req.Counters {
		counters = append(counters, models.VideoCounter(name))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/maintenance/reconcile-videos")
	defer cancel()

	result, err := h.reconcileFlow.ReconcileVideoCounters(ctx, req.VideoIDs, counters)
	if err != nil {
		return h.flowError(c, err, "Failed to reconcile video counters", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Video counters reconciled", result)
}

// ReconcileAll
// @Summary Reconcile Every Counter
// @Tags Admin Maintenance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ReconcileAllResponse}
// @Failure 500 {object} dto.APIResponse "Reconciliation failed"
// @Router /api/v1/admin/maintenance/reconcile-all [post]
func (h *AdminHandler) ReconcileAll(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/maintenance/reconcile-all")
	defer cancel()

	result, err := h.reconcileFlow.ReconcileAll(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to reconcile counters", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Counters reconciled", result)
}

// TagDriftReport
// @Summary Tag Usage Drift
// @Description Read-only comparison of stored usage_count against the link count
// @Tags Admin Maintenance
// @Produce json
// @Security BearerAuth
// @Param only_drifted query bool false "Only list drifted tags"
// @Success 200 {object} dto.APIResponse{data=dto.TagDriftReport}
// @Router /api/v1/admin/maintenance/tag-drift [get]
func (h *AdminHandler) TagDriftReport(c fiber.Ctx) error {
	onlyDrifted, _ := strconv.ParseBool(c.Query("only_drifted", "false"))

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/maintenance/tag-drift")
	defer cancel()

	report, err := h.reconcileFlow.TagDriftReport(ctx, onlyDrifted)
	if err != nil {
		return h.flowError(c, err, "Failed to build drift report", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Drift report generated", report)
}

// DownloadTagDriftExcel
// @Summary Download Tag Usage Drift
// @Tags Admin Maintenance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param only_drifted query bool false "Only list drifted tags"
// @Success 200 {file} file "XLSX file"
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/maintenance/tag-drift.xlsx [get]
func (h *AdminHandler) DownloadTagDriftExcel(c fiber.Ctx) error {
	onlyDrifted, _ := strconv.ParseBool(c.Query("only_drifted", "true"))

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/maintenance/tag-drift.xlsx")
	defer cancel()

	filename, data, err := h.reconcileFlow.DownloadTagDriftExcel(ctx, onlyDrifted)
	if err != nil {
		return h.flowError(c, err, "Failed to generate drift spreadsheet", nil)
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// LastReconcileReport
// @Summary Last Scheduled Reconciliation
// @Tags Admin Maintenance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ReconcileAllResponse}
// @Failure 404 {object} dto.APIResponse "No run recorded"
// @Router /api/v1/admin/maintenance/last-report [get]
func (h *AdminHandler) LastReconcileReport(c fiber.Ctx) error {
	if h.reports == nil {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Scheduled reconciliation is disabled", "NO_REPORT", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/maintenance/last-report")
	defer cancel()

	report, err := h.reports.LastReport(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to load last report", nil)
	}
	if report == nil {
		return h.ErrorResponse(c, fiber.StatusNotFound, "No reconciliation run recorded yet", "NO_REPORT", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Last reconciliation report", report)
}
