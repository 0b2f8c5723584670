package dto

import "time"

// CreateVideoRequest registers an uploaded video and its initial tags
type CreateVideoRequest struct {
	UserID       uint     `json:"-"`
	Title        string   `json:"title" validate:"required,min=1,max=255"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	MediaURL     string   `json:"media_url" validate:"required,url"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	LocationName *string  `json:"location_name,omitempty" validate:"omitempty,max=255"`
	Tags         []string `json:"tags,omitempty" validate:"omitempty,max=50,dive,required,max=100"`
}

// VideoDTO is the public shape of a video
type VideoDTO struct {
	ID            uint      `json:"id"`
	UUID          string    `json:"uuid"`
	UserID        uint      `json:"user_id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description,omitempty"`
	MediaURL      string    `json:"media_url"`
	ThumbnailURL  *string   `json:"thumbnail_url,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	LocationName  *string   `json:"location_name,omitempty"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	ViewsCount    int64     `json:"views_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateVideoResponse carries the new video and the result of its tag assignment
type CreateVideoResponse struct {
	Video VideoDTO            `json:"video"`
	Tags  *AssignTagsResponse `json:"tags,omitempty"`
}

// DeleteVideosRequest removes videos with every dependent row
type DeleteVideosRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

// TagCounterUpdate is one tag usage_count decrement done by a video deletion
type TagCounterUpdate struct {
	TagID  uint  `json:"tag_id"`
	Delta  int64 `json:"delta"`
	Before int64 `json:"before"`
	After  int64 `json:"after"`
}

// FactPurgeResult counts the fact rows removed for a set of videos
type FactPurgeResult struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Views    int64 `json:"views"`
}

// DeleteVideosResponse reports a video deletion batch
type DeleteVideosResponse struct {
	DeletedCount int64              `json:"deleted_count"`
	LinksRemoved int64              `json:"links_removed"`
	UpdatedTags  []TagCounterUpdate `json:"updated_tags"`
	Facts        FactPurgeResult    `json:"facts"`
	Errors       []ItemError        `json:"errors"`
}

// VideoCounterUpdate is one video counter decrement done by a user deletion
type VideoCounterUpdate struct {
	VideoID uint   `json:"video_id"`
	Counter string `json:"counter"`
	Delta   int64  `json:"delta"`
	Before  int64  `json:"before"`
	After   int64  `json:"after"`
}

// DeleteUsersRequest removes users and everything they own
type DeleteUsersRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

// DeleteUsersResponse reports a user deletion batch
type DeleteUsersResponse struct {
	DeletedCount    int64                `json:"deleted_count"`
	VideosDeleted   int64                `json:"videos_deleted"`
	LikesRemoved    int64                `json:"likes_removed"`
	CommentsRemoved int64                `json:"comments_removed"`
	ViewsDetached   int64                `json:"views_detached"`
	UpdatedTags     []TagCounterUpdate   `json:"updated_tags"`
	UpdatedVideos   []VideoCounterUpdate `json:"updated_videos"`
	Errors          []ItemError          `json:"errors"`
}
