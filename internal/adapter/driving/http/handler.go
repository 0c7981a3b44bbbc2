// Package httphandler serves the local JSON API used by the review UI.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/application"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Refresher re-reads the selected pull request from the remote host.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the local API.
type Handler struct {
	dispatcher *application.Dispatcher
	reads      *application.ReadService
	monitor    *application.ConnectivityMonitor
	refresher  Refresher
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. A nil
// refresher falls back to refreshing through the dispatcher directly.
func NewHandler(
	dispatcher *application.Dispatcher,
	reads *application.ReadService,
	refresher Refresher,
	logger *slog.Logger,
) *Handler {
	if refresher == nil {
		refresher = dispatcher
	}
	return &Handler{
		dispatcher: dispatcher,
		reads:      reads,
		monitor:    reads.Monitor(),
		refresher:  refresher,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/auth", h.Auth)
	mux.HandleFunc("POST /api/v1/connectivity", h.SetConnectivity)

	mux.HandleFunc("POST /api/v1/selection", h.Select)
	mux.HandleFunc("POST /api/v1/selection/file", h.SelectFile)
	mux.HandleFunc("POST /api/v1/selection/local-folder", h.SetLocalFolder)

	mux.HandleFunc("GET /api/v1/pr", h.GetPR)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/contents", h.GetFileContents)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/toc", h.GetTOC)

	mux.HandleFunc("POST /api/v1/comments", h.CreateComment)
	mux.HandleFunc("PATCH /api/v1/comments/{id}", h.UpdateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", h.DeleteComment)

	mux.HandleFunc("POST /api/v1/review", h.StartReview)
	mux.HandleFunc("POST /api/v1/review/submit", h.SubmitReview)
	mux.HandleFunc("DELETE /api/v1/review", h.DeleteReview)
	mux.HandleFunc("GET /api/v1/mutations", h.ListMutations)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports connectivity, the acting user, the selection and the state
// of every mutation.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	statuses := h.dispatcher.Statuses()
	mutations := make([]MutationStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		mutations = append(mutations, toMutationStatusResponse(s))
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Online:    h.monitor.Online(),
		Viewer:    h.dispatcher.Viewer(),
		Selection: toSelectionResponse(h.dispatcher.Selection()),
		Mutations: mutations,
	})
}

// Auth returns the remote authentication state, served from cache when the
// host is unreachable.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	res, err := h.reads.AuthStatus(r.Context())
	if err != nil {
		h.writeAppError(w, "auth status", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Authenticated: res.Value.Authenticated,
		Login:         res.Value.Login,
		AvatarURL:     res.Value.AvatarURL,
		Offline:       res.Value.Offline,
	})
}

// SetConnectivity overrides the connectivity state. Only a real transition
// is broadcast to subscribers.
func (h *Handler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Online {
		h.monitor.MarkOnline()
	} else {
		h.monitor.MarkOffline()
	}

	writeJSON(w, http.StatusOK, map[string]bool{"online": h.monitor.Online()})
}

// Select switches the working pull request.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pr, err := model.ParsePRRef(req.PR)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "pr"})
		return
	}

	sel := h.dispatcher.Select(pr, req.HeadSHA, req.BaseSHA)
	writeJSON(w, http.StatusOK, toSelectionResponse(sel))
}

// SelectFile sets the file that new file comments target.
func (h *Handler) SelectFile(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, toSelectionResponse(h.dispatcher.SelectFile(req.Path)))
}

// SetLocalFolder enters local-directory mode; an empty path leaves it.
func (h *Handler) SetLocalFolder(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, toSelectionResponse(h.dispatcher.SetLocalFolder(req.Path)))
}

// GetPR returns the merged view of the selected pull request.
func (h *Handler) GetPR(w http.ResponseWriter, r *http.Request) {
	view, err := h.dispatcher.View(r.Context())
	if err != nil {
		h.writeAppError(w, "pull request view", err)
		return
	}

	writeJSON(w, http.StatusOK, toPRViewResponse(view))
}

// Refresh evicts and refetches the selected pull request, then returns the
// fresh merged view.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.Refresh(r.Context()); err != nil {
		h.writeAppError(w, "refresh", err)
		return
	}

	h.GetPR(w, r)
}

// GetFileContents returns both sides of a changed file. The commit pair
// defaults to the selection's.
func (h *Handler) GetFileContents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path is required", Field: "path"})
		return
	}

	sel := h.dispatcher.Selection()
	req := driven.FileContentsRequest{
		Owner:            r.PathValue("owner"),
		Repo:             r.PathValue("repo"),
		Path:             path,
		BaseSHA:          valueOr(q.Get("base"), sel.BaseSHA),
		HeadSHA:          valueOr(q.Get("head"), sel.HeadSHA),
		Status:           model.FileStatus(valueOr(q.Get("status"), string(model.FileStatusModified))),
		PreviousFilename: q.Get("previous"),
	}

	res, err := h.reads.FileContents(r.Context(), req)
	if err != nil {
		h.writeAppError(w, "file contents", err)
		return
	}

	writeJSON(w, http.StatusOK, FileContentsResponse{
		Head:      res.Value.Head,
		Base:      res.Value.Base,
		FromCache: res.FromCache,
	})
}

// GetTOC returns a text file from the repository at a ref, which defaults
// to the selection's head commit.
func (h *Handler) GetTOC(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := valueOr(q.Get("ref"), h.dispatcher.Selection().HeadSHA)

	res, err := h.reads.TOC(r.Context(), r.PathValue("owner"), r.PathValue("repo"), valueOr(q.Get("path"), "TOC.md"), ref)
	if err != nil {
		h.writeAppError(w, "toc", err)
		return
	}

	writeJSON(w, http.StatusOK, TOCResponse{Content: res.Value, FromCache: res.FromCache})
}

// CreateComment creates a PR-level, file-level or line comment.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.dispatcher.SubmitComment(r.Context(), application.CommentInput{
		Body:            req.Body,
		PRLevel:         req.PRLevel,
		Path:            req.Path,
		Line:            req.Line,
		Side:            model.Side(req.Side),
		SubjectType:     model.SubjectType(req.SubjectType),
		Mode:            model.CommentMode(req.Mode),
		PendingReviewID: req.PendingReviewID,
		InReplyTo:       req.InReplyTo,
	})
	if err != nil {
		h.writeAppError(w, "create comment", err)
		return
	}

	h.writeMutation(w, application.MutationSubmitComment, http.StatusCreated)
}

// UpdateComment edits the body of a comment in the backend that owns it.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.dispatcher.UpdateComment(r.Context(), id, req.Body); err != nil {
		h.writeAppError(w, "update comment", err)
		return
	}

	h.writeMutation(w, application.MutationUpdateComment, http.StatusOK)
}

// DeleteComment removes a comment from the backend that owns it.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := commentID(w, r)
	if !ok {
		return
	}

	if err := h.dispatcher.DeleteComment(r.Context(), id); err != nil {
		h.writeAppError(w, "delete comment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartReview opens a local draft review for the selection.
func (h *Handler) StartReview(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.StartReview(r.Context()); err != nil {
		h.writeAppError(w, "start review", err)
		return
	}

	writeJSON(w, http.StatusOK, toLifecycleResponse(h.dispatcher.Lifecycle()))
}

// SubmitReview submits the pending review with the given verdict.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.dispatcher.SubmitReview(r.Context(), model.ReviewEvent(req.Event), req.Body); err != nil {
		h.writeAppError(w, "submit review", err)
		return
	}

	h.writeMutation(w, application.MutationSubmitReview, http.StatusOK)
}

// DeleteReview discards the pending review. The review_id and local query
// parameters default to the selection's current lifecycle.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lc := h.dispatcher.Lifecycle()
	var reviewID int64
	isLocal := true
	if lc.Review != nil {
		reviewID = lc.Review.ID
		isLocal = lc.Review.Origin == model.OriginLocal
	}

	if v := q.Get("review_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid review id", Field: "review_id"})
			return
		}
		reviewID = parsed
	}
	if v := q.Get("local"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid local flag", Field: "local"})
			return
		}
		isLocal = parsed
	}

	if err := h.dispatcher.DeleteReview(r.Context(), reviewID, isLocal); err != nil {
		h.writeAppError(w, "delete review", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMutations returns the state of every mutation.
func (h *Handler) ListMutations(w http.ResponseWriter, _ *http.Request) {
	statuses := h.dispatcher.Statuses()
	resp := make([]MutationStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		resp = append(resp, toMutationStatusResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeMutation(w http.ResponseWriter, kind application.MutationKind, status int) {
	writeJSON(w, status, toMutationStatusResponse(h.dispatcher.Status(kind)))
}

// writeAppError maps an application error to a status code and writes the
// reviewer-facing message.
func (h *Handler) writeAppError(w http.ResponseWriter, op string, err error) {
	var (
		validErr *driven.ValidationError
		hostErr  *driven.HostError
	)

	switch {
	case errors.As(err, &validErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validErr.Message, Field: validErr.Field})
	case driven.IsConversationLocked(err):
		writeError(w, http.StatusLocked, driven.UserMessage(err))
	case errors.Is(err, driven.ErrNoCachedData), driven.IsNetworkError(err):
		writeError(w, http.StatusServiceUnavailable, driven.UserMessage(err))
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, driven.UserMessage(err))
	case errors.As(err, &hostErr):
		status := http.StatusBadGateway
		if hostErr.StatusCode >= 400 && hostErr.StatusCode < 500 {
			status = hostErr.StatusCode
		}
		writeError(w, status, driven.UserMessage(err))
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, driven.UserMessage(err))
	}
}

func commentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid comment id", Field: "id"})
		return 0, false
	}
	return id, true
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
