package model

// Origin identifies which backend owns a comment or review.
type Origin string

const (
	OriginRemote Origin = "remote" // Published to, or owned by, the remote host.
	OriginLocal  Origin = "local"  // Held in the local draft store.
)

// Side is the diff side a line comment is anchored to.
type Side string

const (
	SideRight Side = "RIGHT"
	SideLeft  Side = "LEFT"
)

// ReviewState represents the state of a review as reported by either backend.
// The empty value means the backend reported no state.
type ReviewState string

const (
	ReviewStatePending   ReviewState = "PENDING"
	ReviewStateSubmitted ReviewState = "SUBMITTED"
)

// ReviewEvent is the verdict attached when a pending review is submitted.
type ReviewEvent string

const (
	ReviewEventComment        ReviewEvent = "COMMENT"
	ReviewEventApprove        ReviewEvent = "APPROVE"
	ReviewEventRequestChanges ReviewEvent = "REQUEST_CHANGES"
)

// Valid reports whether e is one of the events accepted by the remote host.
func (e ReviewEvent) Valid() bool {
	switch e {
	case ReviewEventComment, ReviewEventApprove, ReviewEventRequestChanges:
		return true
	default:
		return false
	}
}

// CommentMode selects between publishing a file comment immediately and
// staging it under the pending review.
type CommentMode string

const (
	CommentModeSingle CommentMode = "single"
	CommentModeReview CommentMode = "review"
)

// SubjectType is the anchor granularity of a file comment.
type SubjectType string

const (
	SubjectTypeLine SubjectType = "line"
	SubjectTypeFile SubjectType = "file"
)

// FileStatus is the change status of a file within a pull request.
type FileStatus string

const (
	FileStatusAdded    FileStatus = "added"
	FileStatusRemoved  FileStatus = "removed"
	FileStatusModified FileStatus = "modified"
	FileStatusRenamed  FileStatus = "renamed"
)
