package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is an uploaded clip with optional geolocation.
// LikesCount, CommentsCount and ViewsCount are caches of the likes, comments
// and video_views tables; the fact tables are authoritative.
type Video struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_videos_uuid" json:"uuid"`
	UserID        uint      `gorm:"not null;index:idx_videos_user_id" json:"user_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   *string   `gorm:"type:text" json:"description,omitempty"`
	MediaURL      string    `gorm:"type:text;not null" json:"media_url"`
	ThumbnailURL  *string   `gorm:"type:text" json:"thumbnail_url,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	LocationName  *string   `gorm:"size:255" json:"location_name,omitempty"`
	LikesCount    int64     `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int64     `gorm:"not null;default:0" json:"comments_count"`
	ViewsCount    int64     `gorm:"not null;default:0" json:"views_count"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_videos_created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Video) TableName() string { return "videos" }

// VideoFilter represents filter criteria for video queries
type VideoFilter struct {
	ID            *uint
	IDs           []uint
	UUID          *uuid.UUID
	UserID        *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// VideoCounter names one of the denormalized counter columns on videos.
type VideoCounter string

const (
	VideoCounterLikes    VideoCounter = "likes_count"
	VideoCounterComments VideoCounter = "comments_count"
	VideoCounterViews    VideoCounter = "views_count"
)

// AllVideoCounters lists every counter family on videos.
var AllVideoCounters = []VideoCounter{VideoCounterLikes, VideoCounterComments, VideoCounterViews}

// Valid reports whether c is a known counter column
func (c VideoCounter) Valid() bool {
	switch c {
	case VideoCounterLikes, VideoCounterComments, VideoCounterViews:
		return true
	}
	return false
}

// Counter returns the cached value of the counter on v
func (v *Video) Counter(c VideoCounter) int64 {
	switch c {
	case VideoCounterLikes:
		return v.LikesCount
	case VideoCounterComments:
		return v.CommentsCount
	case VideoCounterViews:
		return v.ViewsCount
	}
	return 0
}

// SetCounter overwrites the cached value of the counter on v
func (v *Video) SetCounter(c VideoCounter, value int64) {
	switch c {
	case VideoCounterLikes:
		v.LikesCount = value
	case VideoCounterComments:
		v.CommentsCount = value
	case VideoCounterViews:
		v.ViewsCount = value
	}
}
