package application_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// --- RemoteHost mock ---

type mockRemote struct {
	mu    sync.Mutex
	calls []string

	authStatus          func(ctx context.Context) (model.AuthStatus, error)
	prDetail            func(ctx context.Context, pr model.PRRef) (model.PRDetail, error)
	fileContents        func(ctx context.Context, req driven.FileContentsRequest) (model.FileContents, error)
	submitPRComment     func(ctx context.Context, pr model.PRRef, body string) error
	submitFileComment   func(ctx context.Context, req driven.FileCommentRequest) error
	submitPendingReview func(ctx context.Context, reviewID int64) error
	publishReview       func(ctx context.Context, req driven.ReviewRequest) error

	fileRequests     []driven.FileCommentRequest
	published        []driven.ReviewRequest
	submittedReviews []int64
	deletedReviews   []int64
	updatedComments  []int64
	deletedComments  []int64
}

func (m *mockRemote) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockRemote) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockRemote) CheckAuthStatus(ctx context.Context) (model.AuthStatus, error) {
	m.record("CheckAuthStatus")
	if m.authStatus == nil {
		return model.AuthStatus{Authenticated: true, Login: "me"}, nil
	}
	return m.authStatus(ctx)
}

func (m *mockRemote) FetchPRDetail(ctx context.Context, pr model.PRRef) (model.PRDetail, error) {
	m.record("FetchPRDetail")
	if m.prDetail == nil {
		return model.PRDetail{Ref: pr, HeadSHA: "head", BaseSHA: "base"}, nil
	}
	return m.prDetail(ctx, pr)
}

func (m *mockRemote) GetFileContents(ctx context.Context, req driven.FileContentsRequest) (model.FileContents, error) {
	m.record("GetFileContents")
	if m.fileContents == nil {
		return model.FileContents{}, nil
	}
	return m.fileContents(ctx, req)
}

func (m *mockRemote) GetTextFile(_ context.Context, _, _, path, ref string) (string, error) {
	m.record("GetTextFile")
	return path + "@" + ref, nil
}

func (m *mockRemote) SubmitPRComment(ctx context.Context, pr model.PRRef, body string) error {
	m.record("SubmitPRComment")
	if m.submitPRComment == nil {
		return nil
	}
	return m.submitPRComment(ctx, pr, body)
}

func (m *mockRemote) SubmitFileComment(ctx context.Context, req driven.FileCommentRequest) error {
	m.record("SubmitFileComment")
	m.mu.Lock()
	m.fileRequests = append(m.fileRequests, req)
	m.mu.Unlock()
	if m.submitFileComment == nil {
		return nil
	}
	return m.submitFileComment(ctx, req)
}

func (m *mockRemote) SubmitPendingReview(ctx context.Context, _ model.PRRef, reviewID int64, _ model.ReviewEvent, _ string) error {
	m.record("SubmitPendingReview")
	m.mu.Lock()
	m.submittedReviews = append(m.submittedReviews, reviewID)
	m.mu.Unlock()
	if m.submitPendingReview == nil {
		return nil
	}
	return m.submitPendingReview(ctx, reviewID)
}

func (m *mockRemote) DeletePendingReview(_ context.Context, _ model.PRRef, reviewID int64) error {
	m.record("DeletePendingReview")
	m.mu.Lock()
	m.deletedReviews = append(m.deletedReviews, reviewID)
	m.mu.Unlock()
	return nil
}

func (m *mockRemote) PublishReview(ctx context.Context, _ model.PRRef, req driven.ReviewRequest) error {
	m.record("PublishReview")
	m.mu.Lock()
	m.published = append(m.published, req)
	m.mu.Unlock()
	if m.publishReview == nil {
		return nil
	}
	return m.publishReview(ctx, req)
}

func (m *mockRemote) UpdateComment(_ context.Context, _ model.PRRef, commentID int64, _ string) error {
	m.record("UpdateComment")
	m.mu.Lock()
	m.updatedComments = append(m.updatedComments, commentID)
	m.mu.Unlock()
	return nil
}

func (m *mockRemote) DeleteComment(_ context.Context, _ model.PRRef, commentID int64) error {
	m.record("DeleteComment")
	m.mu.Lock()
	m.deletedComments = append(m.deletedComments, commentID)
	m.mu.Unlock()
	return nil
}

// --- CacheStore mock ---

type memCache struct {
	mu      sync.Mutex
	entries map[string]model.CacheEntry
	puts    int
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]model.CacheEntry)}
}

func (c *memCache) Get(_ context.Context, key model.CacheKey) (*model.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	entry, ok := c.entries[key.String()]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *memCache) Put(_ context.Context, entry model.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if entry.Key.Immutable() {
		prefix := model.CachePrefix(entry.Key.Kind, entry.Key.Resource)
		for k := range c.entries {
			if strings.HasPrefix(k, prefix) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[entry.Key.String()] = entry
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) Purge(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.entries))
	c.entries = make(map[string]model.CacheEntry)
	return n, nil
}

func (c *memCache) Stats(_ context.Context) (model.CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := model.CacheStats{ByKind: map[model.CacheKind]int{}}
	for _, e := range c.entries {
		stats.Entries++
		stats.TotalBytes += int64(len(e.Payload))
		stats.ByKind[e.Key.Kind]++
	}
	return stats, nil
}

func (c *memCache) has(key model.CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key.String()]
	return ok
}

func (c *memCache) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// --- DraftStore mock ---

type memDrafts struct {
	mu       sync.Mutex
	nextID   int64
	comments []model.DraftComment
	reviews  map[model.PRRef]*model.Review
	starts   int
}

func newMemDrafts() *memDrafts {
	return &memDrafts{nextID: 1, reviews: make(map[model.PRRef]*model.Review)}
}

func (s *memDrafts) AddComment(_ context.Context, c model.DraftComment) (model.DraftComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID
	s.nextID++
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.comments = append(s.comments, c)
	return c, nil
}

func (s *memDrafts) ListComments(_ context.Context, pr model.PRRef) ([]model.DraftComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.DraftComment{}
	for _, c := range s.comments {
		if c.Owner == pr.Owner && c.Repo == pr.Repo && c.PRNumber == pr.Number {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memDrafts) GetComment(_ context.Context, id int64) (*model.DraftComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.comments {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, driven.ErrNotFound
}

func (s *memDrafts) UpdateComment(_ context.Context, id int64, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments[i].Body = body
			return nil
		}
	}
	return driven.ErrNotFound
}

func (s *memDrafts) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			return nil
		}
	}
	return driven.ErrNotFound
}

func (s *memDrafts) MarkPublished(_ context.Context, ids []int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for i := range s.comments {
			if s.comments[i].ID == id {
				s.comments[i].Published = true
			}
		}
	}
	return nil
}

func (s *memDrafts) StartReview(_ context.Context, pr model.PRRef, author, commitID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if r, ok := s.reviews[pr]; ok && r.IsPending() {
		return false, nil
	}
	review := model.NewLocalReview(pr, author, commitID)
	s.reviews[pr] = &review
	return true, nil
}

func (s *memDrafts) GetReview(_ context.Context, pr model.PRRef) (*model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[pr]
	if !ok {
		return nil, nil
	}
	found := *r
	return &found, nil
}

func (s *memDrafts) SubmitReview(_ context.Context, pr model.PRRef, body string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[pr]
	if !ok {
		review := model.NewLocalReview(pr, "", "")
		r = &review
		s.reviews[pr] = r
	}
	r.State = model.ReviewStateSubmitted
	r.SubmittedAt = &at
	r.Body = &body
	for i := range s.comments {
		c := &s.comments[i]
		if c.Owner == pr.Owner && c.Repo == pr.Repo && c.PRNumber == pr.Number {
			c.Published = true
		}
	}
	return nil
}

func (s *memDrafts) ClearReview(_ context.Context, pr model.PRRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.comments[:0]
	for _, c := range s.comments {
		if c.Owner == pr.Owner && c.Repo == pr.Repo && c.PRNumber == pr.Number && !c.Published {
			continue
		}
		kept = append(kept, c)
	}
	s.comments = kept
	delete(s.reviews, pr)
	return nil
}

func (s *memDrafts) ListDraftPRs(_ context.Context) ([]model.PRRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[model.PRRef]bool{}
	var out []model.PRRef
	for _, c := range s.comments {
		pr := model.PRRef{Owner: c.Owner, Repo: c.Repo, Number: c.PRNumber}
		if !c.Published && !seen[pr] {
			seen[pr] = true
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *memDrafts) pendingReviews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reviews {
		if r.IsPending() {
			n++
		}
	}
	return n
}

func (s *memDrafts) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}
