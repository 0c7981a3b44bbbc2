// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// DraftLineComment represents a single inline comment published as part of a
// review flushed from the local draft store.
type DraftLineComment struct {
	Path string     // File path relative to repository root.
	Line int        // Source file line number (used with Side); 0 for file-level.
	Side model.Side // RIGHT for new content, LEFT for old content.
	Body string     // Comment body text.
}

// ReviewRequest is the input to RemoteHost.PublishReview.
type ReviewRequest struct {
	CommitID string            // HEAD SHA to attach the review to.
	Event    model.ReviewEvent // COMMENT, APPROVE or REQUEST_CHANGES.
	Body     string            // Top-level review body.
	Comments []DraftLineComment
}

// FileCommentRequest is the input to RemoteHost.SubmitFileComment.
type FileCommentRequest struct {
	PR              model.PRRef
	Path            string
	Body            string
	CommitID        string
	Line            int // 0 for a file-level comment.
	Side            model.Side
	SubjectType     model.SubjectType
	Mode            model.CommentMode
	PendingReviewID int64  // Non-zero to attach to an existing pending review.
	InReplyTo       *int64 // Root comment of the thread being replied to.
}

// FileContentsRequest is the input to RemoteHost.GetFileContents.
type FileContentsRequest struct {
	Owner            string
	Repo             string
	Path             string
	BaseSHA          string
	HeadSHA          string
	Status           model.FileStatus
	PreviousFilename string // Base-side path for renamed files.
}

// RemoteHost defines the driven port for the authoritative code-review host.
// Implementations classify failures with ClassifyError at the call boundary so
// callers can rely on *NetworkError and *HostError.
type RemoteHost interface {
	// Read methods

	CheckAuthStatus(ctx context.Context) (model.AuthStatus, error)
	// FetchPRDetail returns the pull request with its published comments, its
	// reviews, and the comments of the acting user's pending review.
	FetchPRDetail(ctx context.Context, pr model.PRRef) (model.PRDetail, error)
	// GetFileContents returns the head and base content of a changed file.
	GetFileContents(ctx context.Context, req FileContentsRequest) (model.FileContents, error)
	// GetTextFile returns the content of a single file at ref.
	GetTextFile(ctx context.Context, owner, repo, path, ref string) (string, error)

	// Write methods

	SubmitPRComment(ctx context.Context, pr model.PRRef, body string) error
	SubmitFileComment(ctx context.Context, req FileCommentRequest) error
	// SubmitPendingReview submits the acting user's existing pending review.
	SubmitPendingReview(ctx context.Context, pr model.PRRef, reviewID int64, event model.ReviewEvent, body string) error
	DeletePendingReview(ctx context.Context, pr model.PRRef, reviewID int64) error
	// PublishReview creates and submits a review in one call, carrying the
	// comments flushed from the local draft store.
	PublishReview(ctx context.Context, pr model.PRRef, req ReviewRequest) error
	UpdateComment(ctx context.Context, pr model.PRRef, commentID int64, body string) error
	DeleteComment(ctx context.Context, pr model.PRRef, commentID int64) error
}
