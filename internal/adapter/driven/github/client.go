// Package github implements the RemoteHost port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RemoteHost = (*Client)(nil)

// Client implements the driven.RemoteHost port using the go-github library.
type Client struct {
	gh         *gh.Client
	username   string
	token      string // Stored for GraphQL Authorization header.
	graphqlURL string // "https://api.github.com/graphql" in production; derived from baseURL in tests.
	httpClient *http.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth when a token is set)
func NewClient(token, username string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{
		gh:         client,
		username:   username,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		username:   username,
		token:      token,
		graphqlURL: graphqlU.String(),
		httpClient: httpClient,
	}, nil
}

// Username returns the login the client acts as.
func (c *Client) Username() string {
	return c.username
}

// CheckAuthStatus reports whether the configured token authenticates.
// A 401 is a normal unauthenticated answer, not an error.
func (c *Client) CheckAuthStatus(ctx context.Context) (model.AuthStatus, error) {
	if c.token == "" {
		return model.AuthStatus{}, nil
	}

	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return model.AuthStatus{}, nil
		}
		return model.AuthStatus{}, classify("checking auth status", err)
	}

	logRateLimit(resp, "user", 0, 1)

	return model.AuthStatus{
		Authenticated: true,
		Login:         user.GetLogin(),
		AvatarURL:     user.GetAvatarURL(),
	}, nil
}

// FetchPRDetail retrieves the pull request, its published review comments, its
// reviews, and the comments of the acting user's pending review. Pending
// review comments are not returned by the list endpoint and are fetched
// separately.
func (c *Client) FetchPRDetail(ctx context.Context, pr model.PRRef) (model.PRDetail, error) {
	ghPR, resp, err := c.gh.PullRequests.Get(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		return model.PRDetail{}, classify(fmt.Sprintf("fetching %s", pr), err)
	}
	logRateLimit(resp, pr.FullName()+"/pull", 0, 1)

	reviews, err := c.fetchReviews(ctx, pr)
	if err != nil {
		return model.PRDetail{}, err
	}

	comments, err := c.fetchReviewComments(ctx, pr)
	if err != nil {
		return model.PRDetail{}, err
	}

	for _, r := range reviews {
		if !r.IsPending() || !r.IsMine {
			continue
		}
		pending, err := c.fetchPendingReviewComments(ctx, pr, r.ID)
		if err != nil {
			return model.PRDetail{}, err
		}
		comments = append(comments, pending...)
	}

	return model.PRDetail{
		Ref:      pr,
		Title:    ghPR.GetTitle(),
		Author:   ghPR.GetUser().GetLogin(),
		HeadSHA:  ghPR.GetHead().GetSHA(),
		BaseSHA:  ghPR.GetBase().GetSHA(),
		Locked:   ghPR.GetLocked(),
		Comments: comments,
		Reviews:  reviews,
	}, nil
}

// fetchReviews retrieves all reviews for a pull request.
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) fetchReviews(ctx context.Context, pr model.PRRef) ([]model.Review, error) {
	opts := &gh.ListOptions{PerPage: 100}
	allReviews := []model.Review{}

	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, pr.Owner, pr.Repo, pr.Number, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("listing reviews for %s (page %d)", pr, opts.Page), err)
		}

		for _, r := range reviews {
			allReviews = append(allReviews, c.mapReview(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allReviews, nil
}

// fetchReviewComments retrieves all published review comments for a pull request.
func (c *Client) fetchReviewComments(ctx context.Context, pr model.PRRef) ([]model.Comment, error) {
	opts := &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	allComments := []model.Comment{}

	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, pr.Owner, pr.Repo, pr.Number, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("listing review comments for %s (page %d)", pr, opts.Page), err)
		}

		logRateLimit(resp, pr.FullName()+"/comments", opts.Page, len(comments))

		for _, comment := range comments {
			allComments = append(allComments, c.mapComment(comment, false))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// fetchPendingReviewComments retrieves the comments held by a pending review.
func (c *Client) fetchPendingReviewComments(ctx context.Context, pr model.PRRef, reviewID int64) ([]model.Comment, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var allComments []model.Comment

	for {
		comments, resp, err := c.gh.PullRequests.ListReviewComments(ctx, pr.Owner, pr.Repo, pr.Number, reviewID, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("listing pending review %d comments for %s", reviewID, pr), err)
		}

		for _, comment := range comments {
			mapped := c.mapComment(comment, true)
			mapped.ReviewID = reviewID
			allComments = append(allComments, mapped)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// GetFileContents returns both sides of a changed file. Added files have no
// base side and removed files have no head side; renamed files read the base
// side from their previous path.
func (c *Client) GetFileContents(ctx context.Context, req driven.FileContentsRequest) (model.FileContents, error) {
	var contents model.FileContents

	if req.Status != model.FileStatusRemoved {
		head, err := c.GetTextFile(ctx, req.Owner, req.Repo, req.Path, req.HeadSHA)
		if err != nil {
			return model.FileContents{}, err
		}
		contents.Head = head
	}

	if req.Status != model.FileStatusAdded {
		basePath := req.Path
		if req.Status == model.FileStatusRenamed && req.PreviousFilename != "" {
			basePath = req.PreviousFilename
		}
		base, err := c.GetTextFile(ctx, req.Owner, req.Repo, basePath, req.BaseSHA)
		if err != nil {
			return model.FileContents{}, err
		}
		contents.Base = base
	}

	return contents, nil
}

// GetTextFile returns the decoded content of a file at ref.
func (c *Client) GetTextFile(ctx context.Context, owner, repo, path, ref string) (string, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: ref}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", classify(fmt.Sprintf("fetching %s/%s/%s@%s", owner, repo, path, shortSHA(ref)), err)
	}

	logRateLimit(resp, owner+"/"+repo+"/contents", 0, 1)

	if file == nil {
		return "", fmt.Errorf("fetching %s/%s/%s@%s: path is a directory", owner, repo, path, shortSHA(ref))
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s/%s/%s@%s: %w", owner, repo, path, shortSHA(ref), err)
	}

	return content, nil
}

// mapReview converts a go-github PullRequestReview to a domain model Review.
func (c *Client) mapReview(r *gh.PullRequestReview) model.Review {
	state := model.ReviewStateSubmitted
	if strings.EqualFold(r.GetState(), string(model.ReviewStatePending)) {
		state = model.ReviewStatePending
	}

	review := model.Review{
		ID:       r.GetID(),
		Origin:   model.OriginRemote,
		State:    state,
		Author:   r.GetUser().GetLogin(),
		CommitID: r.GetCommitID(),
		IsMine:   c.username != "" && strings.EqualFold(r.GetUser().GetLogin(), c.username),
	}

	if r.SubmittedAt != nil {
		submitted := r.GetSubmittedAt().Time
		review.SubmittedAt = &submitted
	}
	if r.Body != nil {
		body := r.GetBody()
		review.Body = &body
	}

	return review
}

// mapComment converts a go-github PullRequestComment to a domain model Comment.
// A comment whose line no longer maps onto the diff is outdated.
func (c *Client) mapComment(pc *gh.PullRequestComment, pending bool) model.Comment {
	var inReplyTo *int64
	if pc.InReplyTo != nil {
		val := pc.GetInReplyTo()
		inReplyTo = &val
	}

	author := pc.GetUser().GetLogin()
	viewer := c.username
	if viewer != "" && strings.EqualFold(author, viewer) {
		viewer = author
	}

	return model.NewRemoteComment(model.RemoteCommentInput{
		ID:          pc.GetID(),
		NodeID:      pc.GetNodeID(),
		Body:        pc.GetBody(),
		Author:      author,
		CreatedAt:   pc.GetCreatedAt().Time,
		Path:        pc.GetPath(),
		Line:        pc.GetLine(),
		Side:        pc.GetSide(),
		InReplyToID: inReplyTo,
		ReviewID:    pc.GetPullRequestReviewID(),
		Viewer:      viewer,
		Pending:     pending,
		Outdated:    pc.Line == nil && pc.OriginalLine != nil,
	})
}

// classify converts a go-github failure into the driven error taxonomy. Host
// responses become *driven.HostError; transport failures become
// *driven.NetworkError.
func classify(op string, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return driven.NewHostError(op, statusOf(rateErr.Response), rateErr.Message, err)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return driven.NewHostError(op, statusOf(abuseErr.Response), abuseErr.Message, err)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		message := ghErr.Message
		for _, detail := range ghErr.Errors {
			if detail.Message != "" {
				message += "; " + detail.Message
			}
		}
		return driven.NewHostError(op, statusOf(ghErr.Response), message, err)
	}

	return driven.ClassifyError(op, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
