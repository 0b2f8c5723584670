package dto

import "time"

// ReconcileTagsRequest recomputes tags.usage_count; an empty list means every tag
type ReconcileTagsRequest struct {
	TagIDs []uint `json:"tag_ids,omitempty" validate:"omitempty,max=1000,dive,gt=0"`
}

// ReconcileVideosRequest recomputes video counters; empty lists mean every video and views_count
type ReconcileVideosRequest struct {
	VideoIDs []uint   `json:"video_ids,omitempty" validate:"omitempty,max=1000,dive,gt=0"`
	Counters []string `json:"counters,omitempty" validate:"omitempty,dive,oneof=likes_count comments_count views_count"`
}

// CounterReconcileResult is the before/after of one overwritten counter
type CounterReconcileResult struct {
	ID      uint   `json:"id"`
	Counter string `json:"counter"`
	Before  int64  `json:"before"`
	After   int64  `json:"after"`
}

// ReconcileResponse reports one reconciliation pass
type ReconcileResponse struct {
	UpdatedCount int                      `json:"updated_count"`
	ChangedCount int                      `json:"changed_count"`
	Results      []CounterReconcileResult `json:"results"`
	Errors       []ItemError              `json:"errors"`
}

// ReconcileAllResponse reports a full sweep over every counter family
type ReconcileAllResponse struct {
	Tags       *ReconcileResponse `json:"tags"`
	Videos     *ReconcileResponse `json:"videos"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// TagDriftItem compares a stored usage_count with the link count
type TagDriftItem struct {
	TagID  uint   `json:"tag_id"`
	Name   string `json:"name"`
	Stored int64  `json:"stored"`
	Actual int64  `json:"actual"`
	Drift  int64  `json:"drift"`
}

// TagDriftReport is a read-only comparison of every tag counter
type TagDriftReport struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	TagsScanned  int            `json:"tags_scanned"`
	DriftedCount int            `json:"drifted_count"`
	Items        []TagDriftItem `json:"items"`
}
