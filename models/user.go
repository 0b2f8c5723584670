// Package models contains the relational row types persisted by the application
package models

import "time"

// User is the local account materialized from an external OAuth identity.
// ExternalID is the provider's subject and is unique across the table.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ExternalID  string     `gorm:"size:255;not null;uniqueIndex:uk_users_external_id" json:"external_id"`
	Provider    string     `gorm:"size:50;not null;default:'google'" json:"provider"`
	Email       *string    `gorm:"size:255;index:idx_users_email" json:"email,omitempty"`
	DisplayName *string    `gorm:"size:255" json:"display_name,omitempty"`
	AvatarURL   *string    `gorm:"type:text" json:"avatar_url,omitempty"`
	IsAdmin     *bool      `gorm:"default:false" json:"is_admin"`
	LastLoginAt *time.Time `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint
	ExternalID    *string
	Email         *string
	IsAdmin       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ExternalProfile is the identity returned by the OAuth provider after token exchange.
// Empty fields mean the provider did not share them.
type ExternalProfile struct {
	ExternalID  string `json:"sub"`
	Provider    string `json:"provider"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"picture"`
}
