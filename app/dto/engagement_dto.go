package dto

// LikeResponse reports the like state of a video after a like or unlike
type LikeResponse struct {
	VideoID    uint  `json:"video_id"`
	Liked      bool  `json:"liked"`
	Changed    bool  `json:"changed"`
	LikesCount int64 `json:"likes_count"`
}

// AddCommentRequest posts a comment on a video
type AddCommentRequest struct {
	VideoID uint   `json:"-"`
	UserID  uint   `json:"-"`
	Body    string `json:"body" validate:"required,min=1,max=2000"`
}

// CommentDTO is the public shape of a comment
type CommentDTO struct {
	ID        uint   `json:"id"`
	VideoID   uint   `json:"video_id"`
	UserID    uint   `json:"user_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// AddCommentResponse returns the new comment and the video's comment count
type AddCommentResponse struct {
	Comment       CommentDTO `json:"comment"`
	CommentsCount int64      `json:"comments_count"`
}

// DeleteCommentRequest removes a comment; authors, video owners and admins may do so
type DeleteCommentRequest struct {
	CommentID uint
	UserID    uint
	IsAdmin   bool
}

// DeleteCommentResponse returns the video's comment count after deletion
type DeleteCommentResponse struct {
	VideoID       uint  `json:"video_id"`
	CommentsCount int64 `json:"comments_count"`
}

// RecordViewRequest registers one playback
type RecordViewRequest struct {
	VideoID   uint
	UserID    *uint
	IPAddress *string
}

// RecordViewResponse returns the video's view count after the view
type RecordViewResponse struct {
	VideoID    uint  `json:"video_id"`
	ViewsCount int64 `json:"views_count"`
}
