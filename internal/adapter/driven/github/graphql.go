package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// The REST API cannot add a comment to an existing pending review, so that
// case goes through GraphQL.
const addReviewThreadMutation = `mutation($review: ID!, $path: String!, $body: String!, $line: Int, $side: DiffSide, $subject: PullRequestReviewThreadSubjectType) {
	addPullRequestReviewThread(input: {pullRequestReviewId: $review, path: $path, body: $body, line: $line, side: $side, subjectType: $subject}) {
		thread { id }
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlMutationResponse represents the minimal response shape for GraphQL mutations.
// We only check for errors; the actual mutation payload is not inspected.
type graphqlMutationResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// addPendingReviewThread attaches a comment to the pending review identified
// by req.PendingReviewID. The review's GraphQL node ID is fetched via REST.
func (c *Client) addPendingReviewThread(ctx context.Context, req driven.FileCommentRequest) error {
	pr := req.PR

	review, _, err := c.gh.PullRequests.GetReview(ctx, pr.Owner, pr.Repo, pr.Number, req.PendingReviewID)
	if err != nil {
		return classify(fmt.Sprintf("fetching review %d node ID", req.PendingReviewID), err)
	}
	nodeID := review.GetNodeID()
	if nodeID == "" {
		return fmt.Errorf("review %d node ID is empty: cannot execute GraphQL mutation", req.PendingReviewID)
	}

	vars := map[string]any{
		"review":  nodeID,
		"path":    req.Path,
		"body":    req.Body,
		"subject": "FILE",
	}
	if req.Line > 0 && req.SubjectType != model.SubjectTypeFile {
		vars["line"] = req.Line
		vars["side"] = string(sideOrRight(req.Side))
		vars["subject"] = "LINE"
	}

	return c.executeMutation(ctx, addReviewThreadMutation, vars, pr.String())
}

// executeMutation posts a GraphQL mutation and reports transport, status and
// GraphQL-level errors.
func (c *Client) executeMutation(ctx context.Context, mutation string, vars map[string]any, target string) error {
	if c.token == "" {
		return fmt.Errorf("graphql mutation requires a GitHub token")
	}

	bodyBytes, err := json.Marshal(graphqlRequest{Query: mutation, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshaling mutation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating mutation request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return driven.ClassifyError(fmt.Sprintf("graphql mutation for %s", target), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return driven.NewHostError(fmt.Sprintf("graphql mutation for %s", target), resp.StatusCode,
			http.StatusText(resp.StatusCode), nil)
	}

	var gqlResp graphqlMutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("decoding mutation response for %s: %w", target, err)
	}

	if len(gqlResp.Errors) > 0 {
		return driven.NewHostError(fmt.Sprintf("graphql mutation for %s", target), http.StatusOK,
			gqlResp.Errors[0].Message, nil)
	}

	return nil
}
