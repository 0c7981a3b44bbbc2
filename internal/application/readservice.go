package application

import (
	"context"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// authResource is the cache resource for the acting user's auth status.
const authResource = "viewer"

// ReadService exposes every remote read path. All of them run through
// GetOrFetch, so each read also drives the connectivity monitor.
type ReadService struct {
	remote  driven.RemoteHost
	fetcher *Fetcher
}

// NewReadService creates a ReadService.
func NewReadService(remote driven.RemoteHost, fetcher *Fetcher) *ReadService {
	return &ReadService{remote: remote, fetcher: fetcher}
}

// FileContents returns both sides of a changed file, versioned by the
// base..head commit pair.
func (s *ReadService) FileContents(ctx context.Context, req driven.FileContentsRequest) (Result[model.FileContents], error) {
	key := model.CacheKey{
		Kind:     model.CacheKindFileContents,
		Resource: model.FileResource(req.Owner, req.Repo, req.Path),
		Version:  model.CommitPair(req.BaseSHA, req.HeadSHA),
	}

	return GetOrFetch(ctx, s.fetcher, key, func(ctx context.Context) (model.FileContents, error) {
		return s.remote.GetFileContents(ctx, req)
	})
}

// TOC returns the text of a table-of-contents file at ref. Its ordering
// semantics belong to the caller.
func (s *ReadService) TOC(ctx context.Context, owner, repo, path, ref string) (Result[string], error) {
	key := model.CacheKey{
		Kind:     model.CacheKindTOC,
		Resource: model.FileResource(owner, repo, path),
		Version:  ref,
	}

	return GetOrFetch(ctx, s.fetcher, key, func(ctx context.Context) (string, error) {
		return s.remote.GetTextFile(ctx, owner, repo, path, ref)
	})
}

// AuthStatus returns the acting user's authentication state. A status served
// from cache is flagged Offline.
func (s *ReadService) AuthStatus(ctx context.Context) (Result[model.AuthStatus], error) {
	key := model.CacheKey{Kind: model.CacheKindAuthStatus, Resource: authResource}

	res, err := GetOrFetch(ctx, s.fetcher, key, s.remote.CheckAuthStatus)
	if err != nil {
		return res, err
	}
	res.Value.Offline = res.FromCache
	return res, nil
}

// PRDetail returns the remote snapshot of a pull request. The entry is
// mutable; mutations evict it so the next read is fresh.
func (s *ReadService) PRDetail(ctx context.Context, pr model.PRRef) (Result[model.PRDetail], error) {
	key := model.CacheKey{Kind: model.CacheKindPRDetail, Resource: pr.String()}

	return GetOrFetch(ctx, s.fetcher, key, func(ctx context.Context) (model.PRDetail, error) {
		return s.remote.FetchPRDetail(ctx, pr)
	})
}

// EvictPRDetail removes the cached snapshot of pr.
func (s *ReadService) EvictPRDetail(ctx context.Context, pr model.PRRef) error {
	return s.fetcher.Evict(ctx, model.CacheKindPRDetail, pr.String())
}

// Monitor returns the connectivity monitor driven by the read paths.
func (s *ReadService) Monitor() *ConnectivityMonitor {
	return s.fetcher.Monitor()
}
