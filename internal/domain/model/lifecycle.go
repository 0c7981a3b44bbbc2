package model

import (
	"errors"
	"time"
)

// LifecycleState is the review-in-progress state of a single pull request.
type LifecycleState string

const (
	LifecycleNone          LifecycleState = "NONE"
	LifecycleLocalPending  LifecycleState = "LOCAL_PENDING"
	LifecycleRemotePending LifecycleState = "REMOTE_PENDING"
	LifecycleSubmitted     LifecycleState = "SUBMITTED"
)

// ErrNoPendingReview is returned when a transition requires a pending review
// and none exists.
var ErrNoPendingReview = errors.New("no pending review")

// Lifecycle is the resolved review state of one pull request together with
// the review that state refers to.
type Lifecycle struct {
	State  LifecycleState
	Review *Review
}

// NewLocalReview creates the draft review opened by "start review". Its ID is
// the pull request number.
func NewLocalReview(pr PRRef, author, commitID string) Review {
	return Review{
		ID:       int64(pr.Number),
		Origin:   OriginLocal,
		State:    ReviewStatePending,
		Author:   author,
		CommitID: commitID,
		IsMine:   true,
	}
}

// ResolveLifecycle derives the lifecycle from the local draft review (nil when
// none exists) and the remote host's reviews. A pending remote review owned
// by the acting user is recognised as REMOTE_PENDING and takes precedence.
func ResolveLifecycle(local *Review, remote []Review) Lifecycle {
	for _, r := range remote {
		if r.IsPending() && r.IsMine {
			found := r
			return Lifecycle{State: LifecycleRemotePending, Review: &found}
		}
	}
	if local != nil && local.IsPending() {
		found := *local
		return Lifecycle{State: LifecycleLocalPending, Review: &found}
	}
	return Lifecycle{State: LifecycleNone}
}

// HasPending reports whether a review is pending in either backend.
func (l Lifecycle) HasPending() bool {
	return l.State == LifecycleLocalPending || l.State == LifecycleRemotePending
}

// Start applies "start review". When a review is already pending the
// lifecycle is returned unchanged with created=false, so starting twice never
// produces a second pending review.
func (l Lifecycle) Start(pr PRRef, author, commitID string) (next Lifecycle, created bool) {
	if l.HasPending() {
		return l, false
	}
	review := NewLocalReview(pr, author, commitID)
	return Lifecycle{State: LifecycleLocalPending, Review: &review}, true
}

// Submit applies "submit review" and returns the SUBMITTED lifecycle.
func (l Lifecycle) Submit(at time.Time) (Lifecycle, error) {
	if !l.HasPending() || l.Review == nil {
		return l, ErrNoPendingReview
	}
	submitted := *l.Review
	submitted.State = ReviewStateSubmitted
	submitted.SubmittedAt = &at
	return Lifecycle{State: LifecycleSubmitted, Review: &submitted}, nil
}

// Delete applies "delete review" and resets to NONE.
func (l Lifecycle) Delete() (Lifecycle, error) {
	if !l.HasPending() {
		return l, ErrNoPendingReview
	}
	return Lifecycle{State: LifecycleNone}, nil
}

// RemotePendingFor reports whether current is present in the remote host's
// pending review set with matching id, state and ownership. When it is, the
// remote host is authoritative for submitting it.
func RemotePendingFor(current *Review, remote []Review) (Review, bool) {
	if current == nil || !current.IsPending() {
		return Review{}, false
	}
	for _, r := range remote {
		if r.ID == current.ID && r.IsPending() && r.IsMine == current.IsMine && r.IsMine {
			return r, true
		}
	}
	return Review{}, false
}
