package dto

import "time"

// OAuthLoginRequest exchanges a provider access token for local tokens
type OAuthLoginRequest struct {
	AccessToken string `json:"access_token" validate:"required,min=10"`
}

// UserDTO is the public shape of a user
type UserDTO struct {
	ID          uint       `json:"id"`
	ExternalID  string     `json:"external_id"`
	Provider    string     `json:"provider"`
	Email       *string    `json:"email,omitempty"`
	DisplayName *string    `json:"display_name,omitempty"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	IsAdmin     bool       `json:"is_admin"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TokenPairDTO carries issued JWTs
type TokenPairDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// OAuthLoginResponse is returned by a successful login
type OAuthLoginResponse struct {
	User   UserDTO      `json:"user"`
	Tokens TokenPairDTO `json:"tokens"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
