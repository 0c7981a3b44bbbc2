package model

import "time"

// LocalRef is the reserved reference carried by comments that the remote host
// has not assigned an identifier to yet.
const LocalRef = "local"

// Comment is the unified representation of a review remark, independent of
// the backend that holds it. Origin is the backend discriminant; every
// mutation routing decision for an existing comment is derived from it.
type Comment struct {
	ID          int64
	Origin      Origin
	NodeID      string // Host-assigned reference; empty for local comments.
	Body        string
	Author      string
	CreatedAt   time.Time
	Path        string // Empty for PR-level comments.
	Line        *int   // Nil for file-level and PR-level comments.
	Side        Side
	InReplyToID *int64
	ReviewID    int64
	IsMine      bool
	IsDraft     bool
	Outdated    bool
}

// Ref returns the canonical reference of the comment. Local comments always
// report LocalRef, so Ref() == LocalRef exactly when the comment is local.
func (c Comment) Ref() string {
	if c.Origin == OriginLocal {
		return LocalRef
	}
	return c.NodeID
}

// IsFileLevel reports whether the comment is attached to a file but no line.
func (c Comment) IsFileLevel() bool {
	return c.Path != "" && c.Line == nil
}

// OriginForRef maps a backend reference to an Origin at ingestion time. A
// reference that is missing or equal to LocalRef denotes a local comment.
func OriginForRef(ref string) Origin {
	if ref == "" || ref == LocalRef {
		return OriginLocal
	}
	return OriginRemote
}

// ClassifyLocality returns the backend that owns c.
func ClassifyLocality(c Comment) Origin {
	if c.Origin == OriginLocal {
		return OriginLocal
	}
	return OriginRemote
}

// NormalizeLine converts a raw line number into the unified representation.
// Line 0 means "no line" (a file-level comment), not line zero.
func NormalizeLine(line int) *int {
	if line <= 0 {
		return nil
	}
	l := line
	return &l
}

// RemoteCommentInput carries the host fields needed to build a remote Comment.
type RemoteCommentInput struct {
	ID          int64
	NodeID      string
	Body        string
	Author      string
	CreatedAt   time.Time
	Path        string
	Line        int
	Side        string
	InReplyToID *int64
	ReviewID    int64
	Viewer      string // Login of the acting user, used to derive IsMine.
	Pending     bool   // Comment belongs to an unsubmitted review.
	Outdated    bool
}

// NewRemoteComment builds a Comment from host data. The origin is derived from
// the node reference so that a host record lacking one is still treated as
// local, matching the ingestion rule in OriginForRef.
func NewRemoteComment(in RemoteCommentInput) Comment {
	return Comment{
		ID:          in.ID,
		Origin:      OriginForRef(in.NodeID),
		NodeID:      in.NodeID,
		Body:        in.Body,
		Author:      in.Author,
		CreatedAt:   in.CreatedAt,
		Path:        in.Path,
		Line:        NormalizeLine(in.Line),
		Side:        normalizeSide(in.Side),
		InReplyToID: in.InReplyToID,
		ReviewID:    in.ReviewID,
		IsMine:      in.Viewer != "" && in.Author == in.Viewer,
		IsDraft:     in.Pending,
		Outdated:    in.Outdated,
	}
}

// DraftComment is a raw record from the local draft store.
type DraftComment struct {
	ID          int64
	Owner       string
	Repo        string
	PRNumber    int
	Path        string
	Line        int
	Side        Side
	Body        string
	CommitID    string
	InReplyToID *int64
	LocalFolder string
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuthorContext describes the acting user and the active local review when a
// draft record is converted to a Comment.
type AuthorContext struct {
	Login    string
	ReviewID int64
}

// FromDraft converts a local draft record into the unified Comment shape.
func FromDraft(d DraftComment, a AuthorContext) Comment {
	return Comment{
		ID:          d.ID,
		Origin:      OriginLocal,
		Body:        d.Body,
		Author:      a.Login,
		CreatedAt:   d.CreatedAt,
		Path:        d.Path,
		Line:        NormalizeLine(d.Line),
		Side:        normalizeSide(string(d.Side)),
		InReplyToID: d.InReplyToID,
		ReviewID:    a.ReviewID,
		IsMine:      true,
		IsDraft:     !d.Published,
	}
}

func normalizeSide(s string) Side {
	if Side(s) == SideLeft {
		return SideLeft
	}
	return SideRight
}
