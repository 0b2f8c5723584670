package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/services"
	"github.com/amirphl/Geovid/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserInfo struct {
	profiles map[string]models.ExternalProfile
}

func (f *fakeUserInfo) Name() string { return "fake" }

func (f *fakeUserInfo) FetchProfile(_ context.Context, token string) (*models.ExternalProfile, error) {
	p, ok := f.profiles[token]
	if !ok {
		return nil, services.ErrProviderRejected
	}
	return &p, nil
}

func TestAuthFlowLogin(t *testing.T) {
	h := newHarness(t)
	tokens, err := services.NewTokenService(time.Hour, 24*time.Hour, "test-issuer", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	userInfo := &fakeUserInfo{profiles: map[string]models.ExternalProfile{
		"token-a": {ExternalID: "ext-a", Provider: "google", Email: "a@example.com"},
	}}
	identity := NewIdentityFlow(h.store.Users(), h.store.Users(), IdentityOptions{Provider: "google", UseAtomicUpsert: true}, h.logger)
	flow := NewAuthFlow(userInfo, identity, tokens, h.logger)

	res, err := flow.Login(h.ctx, &dto.OAuthLoginRequest{AccessToken: "token-a"})
	require.NoError(t, err)
	assert.Equal(t, "ext-a", res.User.ExternalID)
	assert.Equal(t, "Bearer", res.Tokens.TokenType)
	assert.Equal(t, 3600, res.Tokens.ExpiresIn)

	claims, err := tokens.ValidateToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.False(t, claims.IsAdmin)

	again, err := flow.Login(h.ctx, &dto.OAuthLoginRequest{AccessToken: "token-a"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
	assert.Equal(t, 1, h.store.RowCount("users"))

	_, err = flow.Login(h.ctx, &dto.OAuthLoginRequest{AccessToken: "nope"})
	assert.ErrorIs(t, err, ErrLoginRejected)
	assert.Equal(t, "LOGIN_REJECTED", ErrorCode(err))
}
