package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Engine limits
const (
	// MaxTagsPerAssignment bounds the tag names accepted in one assignment call
	MaxTagsPerAssignment = 50

	// MaxIDsPerBatch bounds the ids accepted by one cascade delete or reconcile call
	MaxIDsPerBatch = 1000

	// MaxTagNameLength is the longest normalized tag name accepted
	MaxTagNameLength = 100

	// MaxCommentLength is the longest comment body accepted, in runes
	MaxCommentLength = 2000
)
