package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// DraftStore defines the driven port for the on-device local draft store.
// At most one local review exists per pull request; StartReview is idempotent
// and reports created=false when a pending review already exists.
type DraftStore interface {
	AddComment(ctx context.Context, comment model.DraftComment) (model.DraftComment, error)
	// ListComments returns the pull request's local comments ordered by creation.
	ListComments(ctx context.Context, pr model.PRRef) ([]model.DraftComment, error)
	// GetComment returns ErrNotFound if no comment has the given id.
	GetComment(ctx context.Context, id int64) (*model.DraftComment, error)
	UpdateComment(ctx context.Context, id int64, body string) error
	DeleteComment(ctx context.Context, id int64) error
	// MarkPublished flags the given comments published as they land on the
	// remote host, so a retried submission never sends them twice.
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error

	StartReview(ctx context.Context, pr model.PRRef, author, commitID string) (created bool, err error)
	// GetReview returns (nil, nil) when no local review exists.
	GetReview(ctx context.Context, pr model.PRRef) (*model.Review, error)
	// SubmitReview marks the pending review submitted and its comments published.
	SubmitReview(ctx context.Context, pr model.PRRef, body string, at time.Time) error
	// ClearReview discards the local review and every unpublished comment.
	ClearReview(ctx context.Context, pr model.PRRef) error

	// ListDraftPRs returns pull requests holding unpublished comments.
	ListDraftPRs(ctx context.Context) ([]model.PRRef, error)
}
