package models

import "time"

// VideoTag links a video to a tag. The table is the ground truth for tag usage.
// (video_id, tag_id) is unique.
type VideoTag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	VideoID    uint      `gorm:"not null;uniqueIndex:uk_video_tags_video_tag,priority:1;index:idx_video_tags_video_id" json:"video_id"`
	TagID      uint      `gorm:"not null;uniqueIndex:uk_video_tags_video_tag,priority:2;index:idx_video_tags_tag_id" json:"tag_id"`
	AssignedBy *uint     `gorm:"index:idx_video_tags_assigned_by" json:"assigned_by,omitempty"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (VideoTag) TableName() string { return "video_tags" }
