package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// CommentInput describes a new comment. An empty Path targets the selected
// file unless PRLevel is set.
type CommentInput struct {
	Body            string
	PRLevel         bool
	Path            string
	Line            int // 0 for a file-level comment.
	Side            model.Side
	SubjectType     model.SubjectType
	Mode            model.CommentMode
	PendingReviewID int64
	InReplyTo       *int64
}

// SubmitComment creates a comment. PR-level comments always go to the remote
// host. File comments go to the local store in local-directory mode, in
// review mode, or when a pending review id is supplied; single-mode comments
// are published to the remote host immediately.
func (d *Dispatcher) SubmitComment(ctx context.Context, in CommentInput) error {
	return d.run(MutationSubmitComment, func(sel Selection) error {
		if sel.PR.IsZero() {
			return errNoPullRequest()
		}
		if strings.TrimSpace(in.Body) == "" {
			return &driven.ValidationError{Field: "body", Message: "Comment body is empty."}
		}

		if in.PRLevel {
			err := d.remote.SubmitPRComment(ctx, sel.PR, in.Body)
			d.observeRemote(err)
			if err != nil {
				return fmt.Errorf("submitting comment on %s: %w", sel.PR, err)
			}
			d.afterSuccess(ctx, sel, false)
			return nil
		}

		path := in.Path
		if path == "" {
			path = sel.Path
		}
		if path == "" {
			return &driven.ValidationError{Field: "file", Message: "No file selected."}
		}

		if sel.LocalMode() || in.Mode == model.CommentModeReview || in.PendingReviewID != 0 {
			_, err := d.drafts.AddComment(ctx, model.DraftComment{
				Owner:       sel.PR.Owner,
				Repo:        sel.PR.Repo,
				PRNumber:    sel.PR.Number,
				Path:        path,
				Line:        in.Line,
				Side:        sideOrDefault(in.Side),
				Body:        in.Body,
				CommitID:    sel.HeadSHA,
				InReplyToID: in.InReplyTo,
				LocalFolder: sel.LocalFolder,
			})
			if err != nil {
				return fmt.Errorf("saving local comment on %s: %w", sel.PR, err)
			}
			d.afterSuccess(ctx, sel, false)
			return nil
		}

		subject := in.SubjectType
		if subject == "" {
			subject = model.SubjectTypeLine
			if in.Line <= 0 {
				subject = model.SubjectTypeFile
			}
		}

		err := d.remote.SubmitFileComment(ctx, driven.FileCommentRequest{
			PR:          sel.PR,
			Path:        path,
			Body:        in.Body,
			CommitID:    sel.HeadSHA,
			Line:        in.Line,
			Side:        sideOrDefault(in.Side),
			SubjectType: subject,
			Mode:        model.CommentModeSingle,
			InReplyTo:   in.InReplyTo,
		})
		d.observeRemote(err)
		if err != nil {
			return fmt.Errorf("submitting comment on %s:%s: %w", sel.PR, path, err)
		}
		d.afterSuccess(ctx, sel, false)
		return nil
	})
}

// StartReview opens a local draft review. It is a no-op when a review is
// already pending in either backend; both are re-read first.
func (d *Dispatcher) StartReview(ctx context.Context) error {
	return d.run(MutationStartReview, func(sel Selection) error {
		if sel.PR.IsZero() {
			return errNoPullRequest()
		}

		if err := d.syncLifecycle(ctx, sel); err != nil {
			return fmt.Errorf("starting review on %s: %w", sel.PR, err)
		}

		if _, created := d.Lifecycle().Start(sel.PR, d.Viewer(), sel.HeadSHA); !created {
			return nil
		}

		if _, err := d.drafts.StartReview(ctx, sel.PR, d.Viewer(), sel.HeadSHA); err != nil {
			return fmt.Errorf("starting review on %s: %w", sel.PR, err)
		}
		d.afterSuccess(ctx, sel, false)
		return nil
	})
}

// SubmitReview submits the pending review. When the current pending review is
// the acting user's pending review on the remote host, the remote host is
// authoritative and the review is submitted there. Otherwise the local drafts
// are flushed through the local submission path. On failure the local drafts
// are reloaded so the view reflects the persisted state.
func (d *Dispatcher) SubmitReview(ctx context.Context, event model.ReviewEvent, body string) error {
	return d.run(MutationSubmitReview, func(sel Selection) error {
		if sel.PR.IsZero() {
			return errNoPullRequest()
		}
		if event == "" {
			event = model.ReviewEventComment
		}
		if !event.Valid() {
			return &driven.ValidationError{Field: "event", Message: fmt.Sprintf("Unknown review event %q.", event)}
		}

		if err := d.syncLifecycle(ctx, sel); err != nil {
			return fmt.Errorf("submitting review on %s: %w", sel.PR, err)
		}

		d.mu.Lock()
		lifecycle := d.lifecycleLocked()
		remoteReviews := d.remoteReviewsLocked()
		d.mu.Unlock()

		if !lifecycle.HasPending() {
			return &driven.ValidationError{Field: "review", Message: "No pending review to submit."}
		}

		var err error
		if remote, ok := model.RemotePendingFor(lifecycle.Review, remoteReviews); ok {
			err = d.submitRemoteReview(ctx, sel, remote.ID, event, body)
		} else {
			err = d.submitLocalReview(ctx, sel, event, body)
		}
		if err != nil {
			d.afterFailure(ctx, sel)
			return fmt.Errorf("submitting review on %s: %w", sel.PR, err)
		}

		d.afterSuccess(ctx, sel, true)
		return nil
	})
}

// submitRemoteReview moves unpublished local drafts into the remote pending
// review, then submits it. Each draft is marked published as soon as the host
// accepts it, so a retry after a partial failure only sends what is left.
func (d *Dispatcher) submitRemoteReview(ctx context.Context, sel Selection, reviewID int64, event model.ReviewEvent, body string) error {
	drafts, err := d.unpublished(ctx, sel.PR)
	if err != nil {
		return err
	}

	for _, draft := range drafts {
		err := d.remote.SubmitFileComment(ctx, driven.FileCommentRequest{
			PR:              sel.PR,
			Path:            draft.Path,
			Body:            draft.Body,
			CommitID:        draft.CommitID,
			Line:            draft.Line,
			Side:            draft.Side,
			SubjectType:     subjectFor(draft.Line),
			Mode:            model.CommentModeReview,
			PendingReviewID: reviewID,
			InReplyTo:       draft.InReplyToID,
		})
		d.observeRemote(err)
		if err != nil {
			return fmt.Errorf("moving local comment %d into review %d: %w", draft.ID, reviewID, err)
		}
		if err := d.markPublished(ctx, draft.ID); err != nil {
			return err
		}
	}

	d.mu.Lock()
	localPending := d.localReview != nil && d.localReview.IsPending()
	d.mu.Unlock()

	if len(drafts) > 0 || localPending {
		if err := d.drafts.SubmitReview(ctx, sel.PR, body, d.now()); err != nil {
			return fmt.Errorf("closing local review: %w", err)
		}
	}

	err = d.remote.SubmitPendingReview(ctx, sel.PR, reviewID, event, body)
	d.observeRemote(err)
	return err
}

// submitLocalReview publishes the local drafts and marks them published. In
// local-directory mode nothing is sent to the remote host. Replies go first,
// one by one, then the review carrying every other draft. Progress is
// persisted after each accepted write, so a retry never publishes twice.
func (d *Dispatcher) submitLocalReview(ctx context.Context, sel Selection, event model.ReviewEvent, body string) error {
	if sel.LocalMode() {
		return d.drafts.SubmitReview(ctx, sel.PR, body, d.now())
	}

	drafts, err := d.unpublished(ctx, sel.PR)
	if err != nil {
		return err
	}

	commitID := sel.HeadSHA
	d.mu.Lock()
	if d.localReview != nil && d.localReview.CommitID != "" {
		commitID = d.localReview.CommitID
	}
	d.mu.Unlock()

	req := driven.ReviewRequest{CommitID: commitID, Event: event, Body: body}
	var reviewIDs []int64
	for _, draft := range drafts {
		if draft.InReplyToID != nil {
			err := d.remote.SubmitFileComment(ctx, driven.FileCommentRequest{
				PR:        sel.PR,
				Path:      draft.Path,
				Body:      draft.Body,
				Mode:      model.CommentModeSingle,
				InReplyTo: draft.InReplyToID,
			})
			d.observeRemote(err)
			if err != nil {
				return fmt.Errorf("publishing reply %d: %w", draft.ID, err)
			}
			if err := d.markPublished(ctx, draft.ID); err != nil {
				return err
			}
			continue
		}

		reviewIDs = append(reviewIDs, draft.ID)
		req.Comments = append(req.Comments, driven.DraftLineComment{
			Path: draft.Path,
			Line: draft.Line,
			Side: draft.Side,
			Body: draft.Body,
		})
	}

	err = d.remote.PublishReview(ctx, sel.PR, req)
	d.observeRemote(err)
	if err != nil {
		return err
	}

	if err := d.markPublished(ctx, reviewIDs...); err != nil {
		return err
	}
	return d.drafts.SubmitReview(ctx, sel.PR, body, d.now())
}

func (d *Dispatcher) markPublished(ctx context.Context, ids ...int64) error {
	if err := d.drafts.MarkPublished(ctx, ids, d.now()); err != nil {
		return fmt.Errorf("marking local comments %v published: %w", ids, err)
	}
	return nil
}

// DeleteReview discards a pending review and its comments. isLocal selects the
// backend; the caller knows which backend produced the review.
func (d *Dispatcher) DeleteReview(ctx context.Context, reviewID int64, isLocal bool) error {
	return d.run(MutationDeleteReview, func(sel Selection) error {
		if sel.PR.IsZero() {
			return errNoPullRequest()
		}

		if isLocal {
			if err := d.drafts.ClearReview(ctx, sel.PR); err != nil {
				return fmt.Errorf("deleting local review on %s: %w", sel.PR, err)
			}
		} else {
			if reviewID == 0 {
				return &driven.ValidationError{Field: "review", Message: "No review selected."}
			}
			err := d.remote.DeletePendingReview(ctx, sel.PR, reviewID)
			d.observeRemote(err)
			if err != nil {
				return fmt.Errorf("deleting review %d on %s: %w", reviewID, sel.PR, err)
			}
		}

		d.afterSuccess(ctx, sel, true)
		return nil
	})
}

// UpdateComment replaces the body of a comment in the current view. The
// backend is chosen by the locality of that comment.
func (d *Dispatcher) UpdateComment(ctx context.Context, id int64, body string) error {
	return d.run(MutationUpdateComment, func(sel Selection) error {
		if sel.PR.IsZero() {
			return errNoPullRequest()
		}
		if strings.TrimSpace(body) == "" {
			return &driven.ValidationError{Field: "body", Message: "Comment body is empty."}
		}

		comment, err := d.findComment(id)
		if err != nil {
			return err
		}

		switch model.ClassifyLocality(comment) {
		case model.OriginLocal:
			if err := d.drafts.UpdateComment(ctx, id, body); err != nil {
				return fmt.Errorf("updating local comment %d: %w", id, err)
			}
		default:
			err := d.remote.UpdateComment(ctx, sel.PR, id, body)
			d.observeRemote(err)
			if err != nil {
				return fmt.Errorf("updating comment %d on %s: %w", id, sel.PR, err)
			}
		}

		d.afterSuccess(ctx, sel, false)
		return nil
	})
}

// DeleteComment removes a comment in the current view. The backend is chosen
// by the locality of that comment.
func (d *Dispatcher) DeleteComment(ctx context.Context, id int64) error {
	return d.run(MutationDeleteComment, func(sel Selection) error {
		if sel.PR.IsZero() {
			return errNoPullRequest()
		}

		comment, err := d.findComment(id)
		if err != nil {
			return err
		}

		switch model.ClassifyLocality(comment) {
		case model.OriginLocal:
			if err := d.drafts.DeleteComment(ctx, id); err != nil {
				return fmt.Errorf("deleting local comment %d: %w", id, err)
			}
		default:
			err := d.remote.DeleteComment(ctx, sel.PR, id)
			d.observeRemote(err)
			if err != nil {
				return fmt.Errorf("deleting comment %d on %s: %w", id, sel.PR, err)
			}
		}

		d.afterSuccess(ctx, sel, false)
		return nil
	})
}

// findComment returns the comment with id from the current view. A local and
// a remote comment sharing an id cannot be told apart and are rejected.
func (d *Dispatcher) findComment(id int64) (model.Comment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var matches []model.Comment
	for _, c := range d.localComments {
		if c.ID == id {
			matches = append(matches, c)
		}
	}
	if d.remoteDetail != nil {
		for _, c := range d.remoteDetail.Comments {
			if c.ID == id {
				matches = append(matches, c)
			}
		}
	}

	switch len(matches) {
	case 0:
		return model.Comment{}, &driven.ValidationError{Field: "comment", Message: fmt.Sprintf("Comment %d is not in the current view.", id)}
	case 1:
		return matches[0], nil
	default:
		return model.Comment{}, &driven.ValidationError{Field: "comment", Message: fmt.Sprintf("Comment %d is ambiguous between backends.", id)}
	}
}

func (d *Dispatcher) unpublished(ctx context.Context, pr model.PRRef) ([]model.DraftComment, error) {
	all, err := d.drafts.ListComments(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("loading local comments for %s: %w", pr, err)
	}

	drafts := make([]model.DraftComment, 0, len(all))
	for _, draft := range all {
		if !draft.Published {
			drafts = append(drafts, draft)
		}
	}
	return drafts, nil
}

func sideOrDefault(s model.Side) model.Side {
	if s == model.SideLeft {
		return model.SideLeft
	}
	return model.SideRight
}

func subjectFor(line int) model.SubjectType {
	if line > 0 {
		return model.SubjectTypeLine
	}
	return model.SubjectTypeFile
}
