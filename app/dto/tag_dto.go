package dto

// TagOutcome is what happened to one requested tag name
type TagOutcome string

const (
	TagOutcomeAssigned TagOutcome = "assigned"
	TagOutcomeSkipped  TagOutcome = "skipped"
	TagOutcomeFailed   TagOutcome = "failed"
)

// AssignTagsRequest attaches tag names to a video
type AssignTagsRequest struct {
	VideoID  uint     `json:"-"`
	TagNames []string `json:"tags" validate:"required,min=1,max=50,dive,required,max=100"`
	// UserID is the authenticated caller; it becomes the tag creator and link attribution
	UserID *uint `json:"-"`
}

// TagAssignmentItem reports what happened to one requested name
type TagAssignmentItem struct {
	Name    string     `json:"name"`
	TagID   uint       `json:"tag_id,omitempty"`
	Created bool       `json:"created"`
	Outcome TagOutcome `json:"outcome"`
}

// ItemError is a per-item failure inside a batch
type ItemError struct {
	ID      uint   `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// AssignTagsResponse is the outcome of a tag assignment batch
type AssignTagsResponse struct {
	VideoID  uint                `json:"video_id"`
	Created  int                 `json:"created"`
	Assigned int                 `json:"assigned"`
	Skipped  int                 `json:"skipped"`
	Errors   []ItemError         `json:"errors"`
	Items    []TagAssignmentItem `json:"items"`
}

// DeleteTagsRequest removes tags together with all their links
type DeleteTagsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

// DeleteTagsResponse reports a tag deletion batch
type DeleteTagsResponse struct {
	DeletedCount       int64       `json:"deleted_count"`
	DeletedConnections int64       `json:"deleted_connections"`
	Errors             []ItemError `json:"errors"`
}
