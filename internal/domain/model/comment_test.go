package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func TestLocalityMatchesReference(t *testing.T) {
	comments := []model.Comment{
		model.NewRemoteComment(model.RemoteCommentInput{ID: 1, NodeID: "PRRC_1", Author: "bob"}),
		model.NewRemoteComment(model.RemoteCommentInput{ID: 2, NodeID: "", Author: "bob"}),
		model.NewRemoteComment(model.RemoteCommentInput{ID: 3, NodeID: model.LocalRef}),
		model.FromDraft(model.DraftComment{ID: 4, Body: "draft"}, model.AuthorContext{Login: "me"}),
		{ID: 5, Origin: model.OriginLocal, NodeID: "PRRC_stale"},
		{ID: 6, Origin: model.OriginRemote, NodeID: "PRRC_6"},
	}

	for _, c := range comments {
		isLocal := model.ClassifyLocality(c) == model.OriginLocal
		assert.Equal(t, isLocal, c.Ref() == model.LocalRef, "comment %d", c.ID)
	}

	assert.Equal(t, model.OriginRemote, model.ClassifyLocality(comments[0]))
	assert.Equal(t, model.OriginLocal, model.ClassifyLocality(comments[1]), "a host record without a reference is local")
	assert.Equal(t, model.OriginLocal, model.ClassifyLocality(comments[4]))
}

func TestOriginForRef(t *testing.T) {
	assert.Equal(t, model.OriginLocal, model.OriginForRef(""))
	assert.Equal(t, model.OriginLocal, model.OriginForRef(model.LocalRef))
	assert.Equal(t, model.OriginRemote, model.OriginForRef("PRRC_kwDO"))
}

func TestNormalizeLine(t *testing.T) {
	assert.Nil(t, model.NormalizeLine(0), "line 0 means no line")
	assert.Nil(t, model.NormalizeLine(-1))

	line := model.NormalizeLine(12)
	require.NotNil(t, line)
	assert.Equal(t, 12, *line)
}

func TestFromDraft(t *testing.T) {
	parent := int64(99)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	draft := model.DraftComment{
		ID:          3,
		Path:        "main.go",
		Line:        0,
		Side:        model.SideLeft,
		Body:        "file note",
		InReplyToID: &parent,
		CreatedAt:   created,
	}

	c := model.FromDraft(draft, model.AuthorContext{Login: "me", ReviewID: 7})

	assert.Equal(t, model.OriginLocal, c.Origin)
	assert.Equal(t, model.LocalRef, c.Ref())
	assert.Equal(t, "me", c.Author)
	assert.Equal(t, int64(7), c.ReviewID)
	assert.True(t, c.IsMine)
	assert.True(t, c.IsDraft)
	assert.Nil(t, c.Line)
	assert.True(t, c.IsFileLevel())
	assert.Equal(t, model.SideLeft, c.Side)
	assert.Equal(t, &parent, c.InReplyToID)
	assert.Equal(t, created, c.CreatedAt)

	draft.Published = true
	assert.False(t, model.FromDraft(draft, model.AuthorContext{}).IsDraft)
}

func TestNewRemoteComment(t *testing.T) {
	c := model.NewRemoteComment(model.RemoteCommentInput{
		ID:      10,
		NodeID:  "PRRC_10",
		Author:  "me",
		Line:    4,
		Side:    "sideways",
		Viewer:  "me",
		Pending: true,
	})

	assert.True(t, c.IsMine)
	assert.True(t, c.IsDraft)
	assert.Equal(t, model.SideRight, c.Side, "unknown sides default to RIGHT")
	require.NotNil(t, c.Line)
	assert.Equal(t, 4, *c.Line)

	other := model.NewRemoteComment(model.RemoteCommentInput{ID: 11, NodeID: "PRRC_11", Author: "bob", Viewer: "me"})
	assert.False(t, other.IsMine)
	assert.False(t, other.IsDraft)
}

func TestParsePRRef(t *testing.T) {
	pr, err := model.ParsePRRef("owner/repo#42")
	require.NoError(t, err)
	assert.Equal(t, model.PRRef{Owner: "owner", Repo: "repo", Number: 42}, pr)
	assert.Equal(t, "owner/repo#42", pr.String())

	for _, bad := range []string{"owner/repo", "repo#1", "owner/repo#0", "owner/repo#x", "/repo#1"} {
		_, err := model.ParsePRRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestCacheKey(t *testing.T) {
	immutable := model.CacheKey{Kind: model.CacheKindFileContents, Resource: "o/r/a.go", Version: model.CommitPair("b", "h")}
	assert.True(t, immutable.Immutable())
	assert.Equal(t, "file_contents|o/r/a.go|b..h", immutable.String())

	mutable := model.CacheKey{Kind: model.CacheKindAuthStatus, Resource: "viewer"}
	assert.False(t, mutable.Immutable())
	assert.Equal(t, "", model.CommitPair("", ""))
	assert.Contains(t, immutable.String(), model.CachePrefix(model.CacheKindFileContents, "o/r/a.go"))
}
