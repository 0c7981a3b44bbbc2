package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body. Field is set for
// validation failures.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SelectionResponse is the JSON representation of the current selection.
type SelectionResponse struct {
	PR          string `json:"pr"`
	HeadSHA     string `json:"head_sha"`
	BaseSHA     string `json:"base_sha"`
	Path        string `json:"path"`
	LocalFolder string `json:"local_folder"`
	LocalMode   bool   `json:"local_mode"`
	Generation  uint64 `json:"generation"`
}

// MutationStatusResponse is the observable state of one mutation.
type MutationStatusResponse struct {
	Kind      string `json:"kind"`
	Pending   bool   `json:"pending"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// StatusResponse is the JSON representation of the status endpoint.
type StatusResponse struct {
	Online    bool                     `json:"online"`
	Viewer    string                   `json:"viewer"`
	Selection SelectionResponse        `json:"selection"`
	Mutations []MutationStatusResponse `json:"mutations"`
}

// CommentResponse is the JSON representation of a unified comment.
type CommentResponse struct {
	ID          int64  `json:"id"`
	Origin      string `json:"origin"`
	Ref         string `json:"ref"`
	Body        string `json:"body"`
	BodyHTML    string `json:"body_html"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
	Path        string `json:"path,omitempty"`
	Line        *int   `json:"line"`
	Side        string `json:"side,omitempty"`
	InReplyToID *int64 `json:"in_reply_to_id,omitempty"`
	ReviewID    int64  `json:"review_id,omitempty"`
	IsMine      bool   `json:"is_mine"`
	IsDraft     bool   `json:"is_draft"`
	Outdated    bool   `json:"outdated"`
}

// ReviewResponse is the JSON representation of a review.
type ReviewResponse struct {
	ID          int64  `json:"id"`
	Origin      string `json:"origin"`
	State       string `json:"state"`
	Author      string `json:"author"`
	CommitID    string `json:"commit_id"`
	Body        string `json:"body,omitempty"`
	SubmittedAt string `json:"submitted_at,omitempty"`
	IsMine      bool   `json:"is_mine"`
}

// LifecycleResponse reports the pending review of the selection, if any.
type LifecycleResponse struct {
	State  string          `json:"state"`
	Review *ReviewResponse `json:"review,omitempty"`
}

// PRViewResponse is the merged view of the selected pull request.
type PRViewResponse struct {
	Selection SelectionResponse `json:"selection"`
	Title     string            `json:"title,omitempty"`
	Author    string            `json:"author,omitempty"`
	Locked    bool              `json:"locked"`
	FromCache bool              `json:"from_cache"`
	StoredAt  string            `json:"stored_at,omitempty"`
	// Offline is set when only local drafts could be loaded.
	Offline   bool              `json:"offline"`
	Comments  []CommentResponse `json:"comments"`
	Reviews   []ReviewResponse  `json:"reviews"`
	Lifecycle LifecycleResponse `json:"lifecycle"`
}

// FileContentsResponse carries both sides of a changed file.
type FileContentsResponse struct {
	Head      string `json:"head"`
	Base      string `json:"base"`
	FromCache bool   `json:"from_cache"`
}

// TOCResponse carries a repository text file such as a table of contents.
type TOCResponse struct {
	Content   string `json:"content"`
	FromCache bool   `json:"from_cache"`
}

// AuthResponse is the JSON representation of the remote authentication state.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Offline       bool   `json:"offline"`
}

// SelectRequest is the JSON body for the select endpoint.
type SelectRequest struct {
	PR      string `json:"pr"`
	HeadSHA string `json:"head_sha"`
	BaseSHA string `json:"base_sha"`
}

// PathRequest is the JSON body for the file and local folder endpoints.
type PathRequest struct {
	Path string `json:"path"`
}

// ConnectivityRequest is the JSON body for the connectivity override endpoint.
type ConnectivityRequest struct {
	Online bool `json:"online"`
}

// CommentRequest is the JSON body for the create comment endpoint.
type CommentRequest struct {
	Body            string `json:"body"`
	PRLevel         bool   `json:"pr_level"`
	Path            string `json:"path"`
	Line            int    `json:"line"`
	Side            string `json:"side"`
	SubjectType     string `json:"subject_type"`
	Mode            string `json:"mode"`
	PendingReviewID int64  `json:"pending_review_id"`
	InReplyTo       *int64 `json:"in_reply_to"`
}

// UpdateCommentRequest is the JSON body for the edit comment endpoint.
type UpdateCommentRequest struct {
	Body string `json:"body"`
}

// SubmitReviewRequest is the JSON body for the submit review endpoint.
type SubmitReviewRequest struct {
	Event string `json:"event"`
	Body  string `json:"body"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toSelectionResponse(sel application.Selection) SelectionResponse {
	pr := ""
	if !sel.PR.IsZero() {
		pr = sel.PR.String()
	}

	return SelectionResponse{
		PR:          pr,
		HeadSHA:     sel.HeadSHA,
		BaseSHA:     sel.BaseSHA,
		Path:        sel.Path,
		LocalFolder: sel.LocalFolder,
		LocalMode:   sel.LocalMode(),
		Generation:  sel.Generation,
	}
}

func toMutationStatusResponse(s application.MutationStatus) MutationStatusResponse {
	return MutationStatusResponse{
		Kind:      string(s.Kind),
		Pending:   s.Pending,
		Succeeded: s.Succeeded,
		Error:     driven.UserMessage(s.Err),
		RunID:     s.RunID,
		UpdatedAt: formatTime(s.UpdatedAt),
	}
}

// toCommentResponse converts a unified comment, rendering its body to HTML.
func toCommentResponse(c model.Comment) CommentResponse {
	return CommentResponse{
		ID:          c.ID,
		Origin:      string(c.Origin),
		Ref:         c.Ref(),
		Body:        c.Body,
		BodyHTML:    RenderMarkdown(c.Body),
		Author:      c.Author,
		CreatedAt:   formatTime(c.CreatedAt),
		Path:        c.Path,
		Line:        c.Line,
		Side:        string(c.Side),
		InReplyToID: c.InReplyToID,
		ReviewID:    c.ReviewID,
		IsMine:      c.IsMine,
		IsDraft:     c.IsDraft,
		Outdated:    c.Outdated,
	}
}

func toReviewResponse(r model.Review) ReviewResponse {
	resp := ReviewResponse{
		ID:       r.ID,
		Origin:   string(r.Origin),
		State:    string(r.State),
		Author:   r.Author,
		CommitID: r.CommitID,
		IsMine:   r.IsMine,
	}
	if r.Body != nil {
		resp.Body = *r.Body
	}
	if r.SubmittedAt != nil {
		resp.SubmittedAt = formatTime(*r.SubmittedAt)
	}
	return resp
}

func toLifecycleResponse(l model.Lifecycle) LifecycleResponse {
	state := l.State
	if state == "" {
		state = model.LifecycleNone
	}

	resp := LifecycleResponse{State: string(state)}
	if l.Review != nil {
		review := toReviewResponse(*l.Review)
		resp.Review = &review
	}
	return resp
}

func toPRViewResponse(v application.MergedView) PRViewResponse {
	resp := PRViewResponse{
		Selection: toSelectionResponse(v.Selection),
		FromCache: v.FromCache,
		StoredAt:  formatTime(v.StoredAt),
		Offline:   v.DetailUnavailable,
		Comments:  make([]CommentResponse, 0, len(v.Comments)),
		Reviews:   []ReviewResponse{},
		Lifecycle: toLifecycleResponse(v.Lifecycle),
	}

	if v.Detail != nil {
		resp.Title = v.Detail.Title
		resp.Author = v.Detail.Author
		resp.Locked = v.Detail.Locked
		for _, r := range v.Detail.Reviews {
			resp.Reviews = append(resp.Reviews, toReviewResponse(r))
		}
	}

	for _, c := range v.Comments {
		resp.Comments = append(resp.Comments, toCommentResponse(c))
	}

	return resp
}
