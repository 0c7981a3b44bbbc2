package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// SubmitPRComment creates a top-level (non-diff) comment on a pull request.
func (c *Client) SubmitPRComment(ctx context.Context, pr model.PRRef, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return classify(fmt.Sprintf("creating comment on %s", pr), err)
	}

	return nil
}

// SubmitFileComment publishes a line or file comment. Replies are attached to
// their thread. In review mode the comment joins the acting user's pending
// review, opening one when PendingReviewID is zero; in single mode it is
// published immediately.
func (c *Client) SubmitFileComment(ctx context.Context, req driven.FileCommentRequest) error {
	pr := req.PR

	if req.InReplyTo != nil {
		// When in_reply_to is set, GitHub ignores all fields except body.
		_, _, err := c.gh.PullRequests.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, &gh.PullRequestComment{
			Body:      gh.Ptr(req.Body),
			InReplyTo: gh.Ptr(*req.InReplyTo),
		})
		if err != nil {
			return classify(fmt.Sprintf("creating reply on %s", pr), err)
		}
		return nil
	}

	if req.Mode == model.CommentModeReview {
		if req.PendingReviewID != 0 {
			return c.addPendingReviewThread(ctx, req)
		}
		return c.openPendingReview(ctx, req)
	}

	comment := &gh.PullRequestComment{
		Body:     gh.Ptr(req.Body),
		CommitID: gh.Ptr(req.CommitID),
		Path:     gh.Ptr(req.Path),
	}
	if req.SubjectType == model.SubjectTypeFile || req.Line <= 0 {
		comment.SubjectType = gh.Ptr(string(model.SubjectTypeFile))
	} else {
		comment.Line = gh.Ptr(req.Line)
		comment.Side = gh.Ptr(string(sideOrRight(req.Side)))
	}

	_, _, err := c.gh.PullRequests.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, comment)
	if err != nil {
		return classify(fmt.Sprintf("creating comment on %s:%s", pr, req.Path), err)
	}

	return nil
}

// openPendingReview creates a review without an event, which GitHub keeps as
// the acting user's pending review holding the single comment.
func (c *Client) openPendingReview(ctx context.Context, req driven.FileCommentRequest) error {
	pr := req.PR

	draft := &gh.DraftReviewComment{
		Path: gh.Ptr(req.Path),
		Body: gh.Ptr(req.Body),
	}
	if req.Line > 0 {
		draft.Line = gh.Ptr(req.Line)
		draft.Side = gh.Ptr(string(sideOrRight(req.Side)))
	}

	reviewReq := &gh.PullRequestReviewRequest{
		Comments: []*gh.DraftReviewComment{draft},
	}
	if req.CommitID != "" {
		reviewReq.CommitID = gh.Ptr(req.CommitID)
	}

	_, _, err := c.gh.PullRequests.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, reviewReq)
	if err != nil {
		return classify(fmt.Sprintf("opening pending review on %s", pr), err)
	}

	return nil
}

// SubmitPendingReview submits the acting user's existing pending review.
func (c *Client) SubmitPendingReview(ctx context.Context, pr model.PRRef, reviewID int64, event model.ReviewEvent, body string) error {
	reviewReq := &gh.PullRequestReviewRequest{
		Event: gh.Ptr(string(event)),
	}
	if body != "" || event != model.ReviewEventApprove {
		reviewReq.Body = gh.Ptr(body)
	}

	_, _, err := c.gh.PullRequests.SubmitReview(ctx, pr.Owner, pr.Repo, pr.Number, reviewID, reviewReq)
	if err != nil {
		return classify(fmt.Sprintf("submitting review %d on %s", reviewID, pr), err)
	}

	return nil
}

// DeletePendingReview discards the acting user's pending review.
func (c *Client) DeletePendingReview(ctx context.Context, pr model.PRRef, reviewID int64) error {
	_, _, err := c.gh.PullRequests.DeletePendingReview(ctx, pr.Owner, pr.Repo, pr.Number, reviewID)
	if err != nil {
		return classify(fmt.Sprintf("deleting review %d on %s", reviewID, pr), err)
	}

	return nil
}

// PublishReview creates and submits a pull request review with inline comments.
// If the CommitID in req is empty, the current PR head SHA is fetched first
// to avoid submitting against a stale commit.
func (c *Client) PublishReview(ctx context.Context, pr model.PRRef, req driven.ReviewRequest) error {
	// Re-fetch the head SHA if not provided to avoid 422 "commit not found" errors.
	commitID := req.CommitID
	if commitID == "" {
		ghPR, _, err := c.gh.PullRequests.Get(ctx, pr.Owner, pr.Repo, pr.Number)
		if err != nil {
			return classify("fetching PR head SHA before review submit", err)
		}
		commitID = ghPR.GetHead().GetSHA()
	}

	// Map DraftLineComments to GitHub API types.
	draftComments := make([]*gh.DraftReviewComment, 0, len(req.Comments))
	for _, dlc := range req.Comments {
		dc := &gh.DraftReviewComment{
			Path: gh.Ptr(dlc.Path),
			Body: gh.Ptr(dlc.Body),
		}
		if dlc.Line > 0 {
			dc.Line = gh.Ptr(dlc.Line)
			dc.Side = gh.Ptr(string(sideOrRight(dlc.Side)))
		}
		draftComments = append(draftComments, dc)
	}

	event := req.Event
	if event == "" {
		event = model.ReviewEventComment
	}

	reviewReq := &gh.PullRequestReviewRequest{
		CommitID: gh.Ptr(commitID),
		Event:    gh.Ptr(string(event)),
		Comments: draftComments,
	}

	// Only set Body if non-empty or event requires it (not APPROVE with empty body).
	if req.Body != "" || event != model.ReviewEventApprove {
		reviewReq.Body = gh.Ptr(req.Body)
	}

	_, _, err := c.gh.PullRequests.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, reviewReq)
	if err != nil {
		return classify(fmt.Sprintf("publishing review on %s", pr), err)
	}

	return nil
}

// UpdateComment replaces the body of a published review comment.
func (c *Client) UpdateComment(ctx context.Context, pr model.PRRef, commentID int64, body string) error {
	_, _, err := c.gh.PullRequests.EditComment(ctx, pr.Owner, pr.Repo, commentID, &gh.PullRequestComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return classify(fmt.Sprintf("updating comment %d on %s", commentID, pr), err)
	}

	return nil
}

// DeleteComment removes a review comment.
func (c *Client) DeleteComment(ctx context.Context, pr model.PRRef, commentID int64) error {
	_, err := c.gh.PullRequests.DeleteComment(ctx, pr.Owner, pr.Repo, commentID)
	if err != nil {
		return classify(fmt.Sprintf("deleting comment %d on %s", commentID, pr), err)
	}

	return nil
}

func sideOrRight(s model.Side) model.Side {
	if s == model.SideLeft {
		return model.SideLeft
	}
	return model.SideRight
}
