package handlers

import (
	"errors"
	"log/slog"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/services"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	authFlow     businessflow.AuthFlow
	tokenService services.TokenService
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow, tokenService services.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler:  newBaseHandler(logger),
		authFlow:     authFlow,
		tokenService: tokenService,
	}
}

// Login exchanges an identity provider access token for local tokens
// @Summary OAuth Login
// @Description Verify a provider access token, create or refresh the local user and issue a JWT pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.OAuthLoginRequest true "Provider access token"
// @Success 200 {object} dto.APIResponse{data=dto.OAuthLoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Provider rejected the token"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/oauth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.OAuthLoginRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/oauth/login")
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Login failed", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// Refresh rotates a refresh token into a new token pair
// @Summary Refresh Tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenPairDTO} "Tokens refreshed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid or expired refresh token"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if handled, err := h.bindAndValidate(c, &req); handled {
		return err
	}

	access, refresh, err := h.tokenService.RefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, services.ErrTokenExpired) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Refresh token has expired", "TOKEN_EXPIRED", nil)
		}
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", "TOKEN_INVALID", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed", dto.TokenPairDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.tokenService.AccessTokenTTL().Seconds()),
	})
}
