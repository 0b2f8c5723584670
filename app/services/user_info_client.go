package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/Geovid/models"
)

// ErrProviderRejected is returned when the identity provider refuses the access token
var ErrProviderRejected = errors.New("identity provider rejected the access token")

// UserInfoClient exchanges a provider access token for the caller's external profile
type UserInfoClient interface {
	Name() string
	FetchProfile(ctx context.Context, accessToken string) (*models.ExternalProfile, error)
}

// OIDCUserInfoClient calls an OpenID Connect userinfo endpoint
type OIDCUserInfoClient struct {
	Provider    string
	UserInfoURL string
	HTTPClient  *http.Client
}

func NewOIDCUserInfoClient(provider, userInfoURL string, timeout time.Duration) *OIDCUserInfoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OIDCUserInfoClient{
		Provider:    provider,
		UserInfoURL: strings.TrimSpace(userInfoURL),
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

func (c *OIDCUserInfoClient) Name() string { return c.Provider }

type userInfoResp struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (c *OIDCUserInfoClient) FetchProfile(ctx context.Context, accessToken string) (*models.ExternalProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo request failed: %w", c.Provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrProviderRejected
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s userinfo returned %d: %s", c.Provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out userInfoResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s userinfo: %w", c.Provider, err)
	}
	subject := out.Sub
	if subject == "" {
		subject = out.ID
	}
	if subject == "" {
		return nil, fmt.Errorf("%s userinfo has no subject: %w", c.Provider, ErrProviderRejected)
	}
	return &models.ExternalProfile{
		ExternalID:  subject,
		Provider:    c.Provider,
		Email:       out.Email,
		DisplayName: out.Name,
		AvatarURL:   out.Picture,
	}, nil
}
