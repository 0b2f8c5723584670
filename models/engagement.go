package models

import "time"

// Like is one user's like on a video. (video_id, user_id) is unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VideoID   uint      `gorm:"not null;uniqueIndex:uk_likes_video_user,priority:1;index:idx_likes_video_id" json:"video_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uk_likes_video_user,priority:2;index:idx_likes_user_id" json:"user_id"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Like) TableName() string { return "likes" }

// Comment is a text comment on a video
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VideoID   uint      `gorm:"not null;index:idx_comments_video_id" json:"video_id"`
	UserID    uint      `gorm:"not null;index:idx_comments_user_id" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_comments_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }

// VideoView records a single playback. Anonymous views have no UserID.
type VideoView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VideoID   uint      `gorm:"not null;index:idx_video_views_video_id" json:"video_id"`
	UserID    *uint     `gorm:"index:idx_video_views_user_id" json:"user_id,omitempty"`
	IPAddress *string   `gorm:"size:64" json:"ip_address,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_video_views_created_at" json:"created_at"`
}

func (VideoView) TableName() string { return "video_views" }
