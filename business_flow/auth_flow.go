package businessflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/services"
	"github.com/amirphl/Geovid/utils"
)

// ErrLoginRejected is returned when the provider does not accept the access token
var ErrLoginRejected = errors.New("login rejected by identity provider")

// AuthFlow logs users in with an external provider token
type AuthFlow interface {
	Login(ctx context.Context, req *dto.OAuthLoginRequest) (*dto.OAuthLoginResponse, error)
}

// AuthFlowImpl implements AuthFlow
type AuthFlowImpl struct {
	userInfo     services.UserInfoClient
	identity     IdentityFlow
	tokenService services.TokenService
	logger       *slog.Logger
}

func NewAuthFlow(
	userInfo services.UserInfoClient,
	identity IdentityFlow,
	tokenService services.TokenService,
	logger *slog.Logger,
) AuthFlow {
	return &AuthFlowImpl{
		userInfo:     userInfo,
		identity:     identity,
		tokenService: tokenService,
		logger:       loggerOrDefault(logger),
	}
}

func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.OAuthLoginRequest) (*dto.OAuthLoginResponse, error) {
	profile, err := f.userInfo.FetchProfile(ctx, req.AccessToken)
	if err != nil {
		if errors.Is(err, services.ErrProviderRejected) {
			return nil, NewBusinessError("LOGIN_REJECTED", "identity provider rejected the token", ErrLoginRejected)
		}
		return nil, NewBusinessError("PROVIDER_UNAVAILABLE", "identity provider lookup failed", err)
	}

	user, err := f.identity.EnsureUser(ctx, *profile)
	if err != nil {
		return nil, err
	}

	access, refresh, err := f.tokenService.GenerateTokens(user.ID, utils.IsTrue(user.IsAdmin))
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "failed to issue tokens", err)
	}

	f.logger.Info("user logged in",
		"request_id", requestID(ctx),
		"user_id", user.ID,
		"provider", f.userInfo.Name(),
	)
	return &dto.OAuthLoginResponse{
		User: ToUserDTO(user),
		Tokens: dto.TokenPairDTO{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int(f.tokenService.AccessTokenTTL().Seconds()),
		},
	}, nil
}
