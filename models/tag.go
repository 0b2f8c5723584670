package models

import (
	"strings"
	"time"
)

// Tag represents a label attached to videos
// Table: tags
// Name is stored normalized (trimmed, lower-cased) and is unique
// UsageCount caches count(video_tags where tag_id = id)
type Tag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex:uk_tags_name" json:"name"`
	UsageCount int64     `gorm:"not null;default:0;index:idx_tags_usage_count" json:"usage_count"`
	CreatedBy  *uint     `gorm:"index:idx_tags_created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tags_created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }

// TagFilter represents filter criteria for tag queries
type TagFilter struct {
	ID            *uint
	IDs           []uint
	Name          *string
	CreatedBy     *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// NormalizeTagName returns the lookup key for a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
