package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// MutationKind names one of the dispatcher's write operations.
type MutationKind string

const (
	MutationSubmitComment MutationKind = "submit_comment"
	MutationStartReview   MutationKind = "start_review"
	MutationSubmitReview  MutationKind = "submit_review"
	MutationDeleteReview  MutationKind = "delete_review"
	MutationUpdateComment MutationKind = "update_comment"
	MutationDeleteComment MutationKind = "delete_comment"
)

// MutationKinds lists every mutation in a stable order.
var MutationKinds = []MutationKind{
	MutationSubmitComment,
	MutationStartReview,
	MutationSubmitReview,
	MutationDeleteReview,
	MutationUpdateComment,
	MutationDeleteComment,
}

// MutationStatus is the observable state of the latest run of one mutation.
type MutationStatus struct {
	Kind      MutationKind
	Pending   bool
	Succeeded bool
	Err       error
	RunID     string
	UpdatedAt time.Time
}

// Selection is the pull request, file and mode the reviewer is working in.
// Generation increases whenever the pull request or local folder changes.
type Selection struct {
	PR          model.PRRef
	HeadSHA     string
	BaseSHA     string
	Path        string
	LocalFolder string // Non-empty in local-directory mode.
	Generation  uint64
}

// LocalMode reports whether the selection is in local-directory mode.
func (s Selection) LocalMode() bool {
	return s.LocalFolder != ""
}

// MergedView is the remote snapshot of the selected pull request merged with
// the local drafts.
type MergedView struct {
	Selection Selection
	Detail    *model.PRDetail // Nil in local-directory mode or when unavailable.
	FromCache bool
	StoredAt  time.Time
	Comments  []model.Comment
	Lifecycle model.Lifecycle

	// DetailUnavailable is set when the remote snapshot could not be fetched
	// and nothing was cached; Comments then holds the local drafts only.
	DetailUnavailable bool
}

// Dispatcher routes every write to the backend that owns it and keeps the
// merged comment view of the current selection. It is safe for concurrent
// use, but overlapping invocations of the same mutation are not prevented:
// callers disable the triggering control while its status is pending.
type Dispatcher struct {
	remote  driven.RemoteHost
	drafts  driven.DraftStore
	reads   *ReadService
	monitor *ConnectivityMonitor
	now     func() time.Time

	mu            sync.Mutex
	viewer        string
	sel           Selection
	localComments []model.Comment
	localReview   *model.Review
	remoteDetail  *model.PRDetail
	statuses      map[MutationKind]MutationStatus
}

// NewDispatcher creates a Dispatcher acting as viewer.
func NewDispatcher(remote driven.RemoteHost, drafts driven.DraftStore, reads *ReadService, viewer string) *Dispatcher {
	statuses := make(map[MutationKind]MutationStatus, len(MutationKinds))
	for _, kind := range MutationKinds {
		statuses[kind] = MutationStatus{Kind: kind}
	}

	return &Dispatcher{
		remote:   remote,
		drafts:   drafts,
		reads:    reads,
		monitor:  reads.Monitor(),
		now:      time.Now,
		viewer:   viewer,
		statuses: statuses,
	}
}

// SetViewer changes the acting user, typically after an auth status read.
func (d *Dispatcher) SetViewer(login string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewer = login
}

// Viewer returns the acting user's login.
func (d *Dispatcher) Viewer() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewer
}

// Select switches to a pull request. Local state of the previous selection is
// dropped and in-flight mutations for it will not touch the new view.
func (d *Dispatcher) Select(pr model.PRRef, headSHA, baseSHA string) Selection {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sel = Selection{
		PR:          pr,
		HeadSHA:     headSHA,
		BaseSHA:     baseSHA,
		LocalFolder: d.sel.LocalFolder,
		Generation:  d.sel.Generation + 1,
	}
	d.resetLocked()
	return d.sel
}

// SelectFile sets the file that file comments target by default.
func (d *Dispatcher) SelectFile(path string) Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel.Path = path
	return d.sel
}

// SetLocalFolder enters local-directory mode for dir, or leaves it when dir
// is empty.
func (d *Dispatcher) SetLocalFolder(dir string) Selection {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sel.LocalFolder == dir {
		return d.sel
	}
	d.sel.LocalFolder = dir
	d.sel.Generation++
	d.resetLocked()
	return d.sel
}

// Selection returns the current selection.
func (d *Dispatcher) Selection() Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel
}

func (d *Dispatcher) resetLocked() {
	d.localComments = nil
	d.localReview = nil
	d.remoteDetail = nil
}

// current reports whether gen is still the active selection generation.
func (d *Dispatcher) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel.Generation == gen
}

// Status returns the latest status of a mutation.
func (d *Dispatcher) Status(kind MutationKind) MutationStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statuses[kind]
}

// Statuses returns the status of every mutation in MutationKinds order.
func (d *Dispatcher) Statuses() []MutationStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]MutationStatus, 0, len(MutationKinds))
	for _, kind := range MutationKinds {
		out = append(out, d.statuses[kind])
	}
	return out
}

// LocalComments returns the in-memory local comments of the selection.
func (d *Dispatcher) LocalComments() []model.Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Comment(nil), d.localComments...)
}

// ReloadLocalComments re-reads the selection's drafts from the local store.
func (d *Dispatcher) ReloadLocalComments(ctx context.Context) error {
	return d.reloadLocal(ctx, d.Selection())
}

func (d *Dispatcher) reloadLocal(ctx context.Context, sel Selection) error {
	if sel.PR.IsZero() {
		return nil
	}

	drafts, err := d.drafts.ListComments(ctx, sel.PR)
	if err != nil {
		return fmt.Errorf("loading local comments for %s: %w", sel.PR, err)
	}
	review, err := d.drafts.GetReview(ctx, sel.PR)
	if err != nil {
		return fmt.Errorf("loading local review for %s: %w", sel.PR, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sel.Generation != sel.Generation {
		slog.Debug("selection changed, dropping local reload", "pr", sel.PR.String())
		return nil
	}

	author := model.AuthorContext{Login: d.viewer}
	if review != nil && review.IsPending() {
		author.ReviewID = review.ID
	}

	comments := make([]model.Comment, 0, len(drafts))
	for _, draft := range drafts {
		if !sel.LocalMode() && draft.Published {
			continue
		}
		comments = append(comments, model.FromDraft(draft, author))
	}

	d.localComments = comments
	d.localReview = review
	return nil
}

// View returns the merged view of the selected pull request: a fetched remote
// snapshot plus freshly reloaded local drafts. Offline with nothing cached, the
// view still carries the local drafts and is flagged DetailUnavailable.
func (d *Dispatcher) View(ctx context.Context) (MergedView, error) {
	sel := d.Selection()
	if sel.PR.IsZero() {
		return MergedView{}, errNoPullRequest()
	}

	if err := d.reloadLocal(ctx, sel); err != nil {
		return MergedView{}, err
	}

	view := MergedView{Selection: sel}

	if !sel.LocalMode() {
		res, err := d.reads.PRDetail(ctx, sel.PR)
		switch {
		case errors.Is(err, driven.ErrNoCachedData):
			slog.Warn("pull request detail unavailable, serving local drafts only", "pr", sel.PR.String())
			view.DetailUnavailable = true
		case err != nil:
			return MergedView{}, err
		default:
			detail := res.Value
			view.Detail = &detail
			view.FromCache = res.FromCache
			view.StoredAt = res.StoredAt
			d.storeRemote(sel, detail)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if view.Detail != nil {
		view.Comments = append(view.Comments, view.Detail.Comments...)
	}
	if d.sel.Generation == sel.Generation {
		view.Comments = append(view.Comments, d.localComments...)
		view.Lifecycle = d.lifecycleLocked()
	}

	return view, nil
}

// Refresh evicts the selection's cached snapshot, reloads local drafts and
// refetches the snapshot.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	sel := d.Selection()
	if sel.PR.IsZero() {
		return nil
	}
	if err := d.reads.EvictPRDetail(ctx, sel.PR); err != nil {
		return err
	}
	_, err := d.View(ctx)
	return err
}

// Lifecycle returns the review lifecycle of the selection as last observed.
func (d *Dispatcher) Lifecycle() model.Lifecycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lifecycleLocked()
}

func (d *Dispatcher) lifecycleLocked() model.Lifecycle {
	return model.ResolveLifecycle(d.localReview, d.remoteReviewsLocked())
}

func (d *Dispatcher) remoteReviewsLocked() []model.Review {
	if d.remoteDetail == nil || d.sel.LocalMode() {
		return nil
	}
	return d.remoteDetail.Reviews
}

// run executes one mutation with status tracking.
func (d *Dispatcher) run(kind MutationKind, fn func(sel Selection) error) error {
	runID := uuid.NewString()

	d.mu.Lock()
	sel := d.sel
	d.statuses[kind] = MutationStatus{Kind: kind, Pending: true, RunID: runID, UpdatedAt: d.now()}
	d.mu.Unlock()

	err := fn(sel)

	d.mu.Lock()
	if d.statuses[kind].RunID == runID {
		d.statuses[kind] = MutationStatus{
			Kind:      kind,
			Succeeded: err == nil,
			Err:       err,
			RunID:     runID,
			UpdatedAt: d.now(),
		}
	}
	d.mu.Unlock()

	if err != nil {
		slog.Error("mutation failed", "mutation", kind, "run_id", runID, "pr", sel.PR.String(), "error", err)
	} else {
		slog.Info("mutation succeeded", "mutation", kind, "run_id", runID, "pr", sel.PR.String())
	}
	return err
}

// observeRemote feeds the outcome of a remote write into the monitor.
func (d *Dispatcher) observeRemote(err error) {
	switch {
	case err == nil:
		d.monitor.MarkOnline()
	case driven.IsNetworkError(err):
		d.monitor.MarkOffline()
	}
}

// afterSuccess evicts the selection's cached snapshot, then reloads local
// drafts and refetches unless the selection has moved on.
func (d *Dispatcher) afterSuccess(ctx context.Context, sel Selection, clearLocal bool) {
	if err := d.reads.EvictPRDetail(ctx, sel.PR); err != nil {
		slog.Warn("evicting pull request snapshot", "pr", sel.PR.String(), "error", err)
	}

	if !d.current(sel.Generation) {
		slog.Debug("selection changed, dropping mutation result", "pr", sel.PR.String())
		return
	}

	if clearLocal {
		d.mu.Lock()
		d.localComments = nil
		d.mu.Unlock()
	}

	if err := d.reloadLocal(ctx, sel); err != nil {
		slog.Warn("reloading local comments", "pr", sel.PR.String(), "error", err)
	}

	if sel.LocalMode() {
		return
	}

	if err := d.refetchRemote(ctx, sel); err != nil {
		slog.Warn("refetching pull request", "pr", sel.PR.String(), "error", err)
	}
}

// syncLifecycle reloads both backends' reviews for sel so lifecycle decisions
// never rest on a snapshot that predates the selection. An unreachable remote
// host leaves the last known remote reviews in place.
func (d *Dispatcher) syncLifecycle(ctx context.Context, sel Selection) error {
	if err := d.reloadLocal(ctx, sel); err != nil {
		return err
	}
	if sel.LocalMode() {
		return nil
	}
	if err := d.refetchRemote(ctx, sel); err != nil {
		slog.Warn("pull request detail unavailable, using last known reviews", "pr", sel.PR.String(), "error", err)
	}
	return nil
}

func (d *Dispatcher) refetchRemote(ctx context.Context, sel Selection) error {
	res, err := d.reads.PRDetail(ctx, sel.PR)
	if err != nil {
		return err
	}
	d.storeRemote(sel, res.Value)
	return nil
}

// storeRemote keeps detail as the selection's remote snapshot unless the
// selection has moved on.
func (d *Dispatcher) storeRemote(sel Selection, detail model.PRDetail) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sel.Generation == sel.Generation {
		d.remoteDetail = &detail
	}
}

// afterFailure reloads local drafts so the view reflects what was persisted.
func (d *Dispatcher) afterFailure(ctx context.Context, sel Selection) {
	if err := d.reloadLocal(ctx, sel); err != nil {
		slog.Warn("reloading local comments after failure", "pr", sel.PR.String(), "error", err)
	}
}

func errNoPullRequest() error {
	return &driven.ValidationError{Field: "pull_request", Message: "No pull request selected."}
}
