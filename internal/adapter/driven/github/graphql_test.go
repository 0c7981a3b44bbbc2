package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

func pendingReviewMux(t *testing.T, graphql http.HandlerFunc) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/owner/repo/pulls/7/reviews/55", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, reviewJSON{ID: 55, NodeID: "PRR_55", State: "PENDING", User: userJSON{Login: "testuser"}})
	})
	mux.HandleFunc("POST /graphql", graphql)
	return mux
}

func TestSubmitFileComment_AddsThreadToPendingReview(t *testing.T) {
	var captured map[string]any

	mux := pendingReviewMux(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bearer test-token", r.Header.Get("Authorization"))

		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "addPullRequestReviewThread")
		captured = body.Variables

		_, _ = w.Write([]byte(`{"data":{"addPullRequestReviewThread":{"thread":{"id":"T_1"}}}}`))
	})

	client, _ := newTestClient(t, mux)

	err := client.SubmitFileComment(context.Background(), driven.FileCommentRequest{
		PR:              prRef(),
		Path:            "main.go",
		Body:            "consider renaming",
		Line:            9,
		Side:            model.SideRight,
		SubjectType:     model.SubjectTypeLine,
		Mode:            model.CommentModeReview,
		PendingReviewID: 55,
	})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "PRR_55", captured["review"])
	assert.Equal(t, "main.go", captured["path"])
	assert.Equal(t, "LINE", captured["subject"])
	assert.Equal(t, "RIGHT", captured["side"])
	assert.InDelta(t, 9, captured["line"], 0)
}

func TestSubmitFileComment_FileLevelPendingThread(t *testing.T) {
	var captured map[string]any

	mux := pendingReviewMux(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		captured = body.Variables
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	client, _ := newTestClient(t, mux)

	err := client.SubmitFileComment(context.Background(), driven.FileCommentRequest{
		PR:              prRef(),
		Path:            "README.md",
		Body:            "whole file",
		SubjectType:     model.SubjectTypeFile,
		Mode:            model.CommentModeReview,
		PendingReviewID: 55,
	})
	require.NoError(t, err)

	assert.Equal(t, "FILE", captured["subject"])
	assert.NotContains(t, captured, "line")
}

func TestSubmitFileComment_GraphQLErrors(t *testing.T) {
	mux := pendingReviewMux(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Pull request is locked"}]}`))
	})

	client, _ := newTestClient(t, mux)

	err := client.SubmitFileComment(context.Background(), driven.FileCommentRequest{
		PR:              prRef(),
		Path:            "main.go",
		Body:            "x",
		Line:            1,
		Mode:            model.CommentModeReview,
		PendingReviewID: 55,
	})
	require.Error(t, err)
	assert.True(t, driven.IsConversationLocked(err))
	assert.False(t, driven.IsNetworkError(err))
}

func TestSubmitFileComment_GraphQLHTTPError(t *testing.T) {
	mux := pendingReviewMux(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client, _ := newTestClient(t, mux)

	err := client.SubmitFileComment(context.Background(), driven.FileCommentRequest{
		PR:              prRef(),
		Path:            "main.go",
		Body:            "x",
		Line:            1,
		Mode:            model.CommentModeReview,
		PendingReviewID: 55,
	})

	var hostErr *driven.HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, http.StatusBadGateway, hostErr.StatusCode)
}
