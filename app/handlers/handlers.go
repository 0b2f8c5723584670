// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/middleware"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/amirphl/Geovid/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries the response envelope, validation and error mapping shared by every handler
type baseHandler struct {
	validator *validator.Validate
	logger    *slog.Logger
}

func newBaseHandler(logger *slog.Logger) baseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return baseHandler{validator: validator.New(), logger: logger}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// bindAndValidate decodes the JSON body into req and runs struct validation.
// handled is true when an error response has already been written.
func (h *baseHandler) bindAndValidate(c fiber.Ctx, req any) (handled bool, err error) {
	if err := c.Bind().JSON(req); err != nil {
		return true, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	return h.validate(c, req)
}

func (h *baseHandler) validate(c fiber.Ctx, req any) (handled bool, err error) {
	verr := h.validator.Struct(req)
	if verr == nil {
		return false, nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(verr, &fieldErrors) {
		return true, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", verr.Error())
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return true, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// createRequestContext builds a bounded context carrying request-scoped values for the flows
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, defaultRequestTimeout)
	if userID, _, ok := middleware.CurrentUser(c); ok {
		ctx = context.WithValue(ctx, utils.UserIDKey, userID)
	}

	return ctx, cancel
}

// pathID parses a positive numeric path parameter
func pathID(c fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(id), nil
}

// flowError maps a business flow error onto the HTTP envelope.
// data, when non-nil, is the partial batch result returned alongside the error.
func (h *baseHandler) flowError(c fiber.Ctx, err error, message string, data any) error {
	code := businessflow.ErrorCode(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	var be *businessflow.BusinessError
	detailMsg := message
	if errors.As(err, &be) {
		detailMsg = be.Message
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return h.ErrorResponse(c, fiber.StatusGatewayTimeout, "Request timed out", "TIMEOUT", nil)
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, detailMsg, code, nil)
	case businessflow.IsNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, detailMsg, code, nil)
	case businessflow.IsForbidden(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, detailMsg, code, nil)
	case errors.Is(err, businessflow.ErrLoginRejected):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, detailMsg, code, nil)
	case businessflow.IsBatchFailed(err):
		h.logger.Error(message, "path", c.Path(), "error", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, detailMsg, code, data)
	}

	h.logger.Error(message, "path", c.Path(), "code", code, "error", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		if err.Kind().String() == "slice" {
			return err.Field() + " must contain at least " + err.Param() + " items"
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		if err.Kind().String() == "slice" {
			return err.Field() + " must contain at most " + err.Param() + " items"
		}
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "url":
		return err.Field() + " must be a valid URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
