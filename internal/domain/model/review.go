package model

import "time"

// Review is a batch of comments pending publication, or a published batch.
// A local draft review reuses the pull request number as its ID; at most one
// exists per pull request.
type Review struct {
	ID          int64
	Origin      Origin
	State       ReviewState
	Author      string
	CommitID    string     // SHA of the commit the review was opened against.
	SubmittedAt *time.Time // Nil until submitted.
	Body        *string
	IsMine      bool
}

// IsPending reports whether the review is in the PENDING state.
func (r Review) IsPending() bool {
	return r.State == ReviewStatePending
}
