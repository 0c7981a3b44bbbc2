package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

var lifecyclePR = model.PRRef{Owner: "owner", Repo: "repo", Number: 42}

func TestResolveLifecycle(t *testing.T) {
	local := model.NewLocalReview(lifecyclePR, "me", "head")
	remoteMine := model.Review{ID: 42, State: model.ReviewStatePending, IsMine: true, Origin: model.OriginRemote}
	remoteTheirs := model.Review{ID: 43, State: model.ReviewStatePending, IsMine: false, Origin: model.OriginRemote}
	submitted := local
	submitted.State = model.ReviewStateSubmitted

	tests := []struct {
		name   string
		local  *model.Review
		remote []model.Review
		want   model.LifecycleState
		wantID int64
	}{
		{name: "nothing pending", want: model.LifecycleNone},
		{name: "local draft", local: &local, want: model.LifecycleLocalPending, wantID: 42},
		{name: "submitted local is not pending", local: &submitted, want: model.LifecycleNone},
		{name: "remote pending owned by me", remote: []model.Review{remoteTheirs, remoteMine}, want: model.LifecycleRemotePending, wantID: 42},
		{name: "remote pending owned by someone else", remote: []model.Review{remoteTheirs}, want: model.LifecycleNone},
		{name: "remote wins over local", local: &local, remote: []model.Review{remoteMine}, want: model.LifecycleRemotePending, wantID: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.ResolveLifecycle(tt.local, tt.remote)
			assert.Equal(t, tt.want, got.State)
			if tt.wantID != 0 {
				require.NotNil(t, got.Review)
				assert.Equal(t, tt.wantID, got.Review.ID)
			}
		})
	}
}

func TestLifecycle_StartIsIdempotent(t *testing.T) {
	none := model.Lifecycle{State: model.LifecycleNone}

	started, created := none.Start(lifecyclePR, "me", "head")
	require.True(t, created)
	assert.Equal(t, model.LifecycleLocalPending, started.State)
	require.NotNil(t, started.Review)
	assert.Equal(t, int64(42), started.Review.ID)
	assert.Equal(t, model.ReviewStatePending, started.Review.State)
	assert.Equal(t, "me", started.Review.Author)
	assert.Equal(t, "head", started.Review.CommitID)

	again, created := started.Start(lifecyclePR, "me", "other")
	assert.False(t, created)
	assert.Equal(t, started, again)
}

func TestLifecycle_SubmitAndDelete(t *testing.T) {
	none := model.Lifecycle{State: model.LifecycleNone}

	_, err := none.Submit(time.Now())
	require.ErrorIs(t, err, model.ErrNoPendingReview)
	_, err = none.Delete()
	require.ErrorIs(t, err, model.ErrNoPendingReview)

	started, _ := none.Start(lifecyclePR, "me", "head")
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	submitted, err := started.Submit(at)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleSubmitted, submitted.State)
	require.NotNil(t, submitted.Review.SubmittedAt)
	assert.Equal(t, at, *submitted.Review.SubmittedAt)
	assert.False(t, submitted.HasPending())
	assert.Equal(t, model.ReviewStatePending, started.Review.State, "submit does not mutate the receiver")

	next, created := submitted.Start(lifecyclePR, "me", "head2")
	assert.True(t, created, "a new cycle may begin after submit")
	assert.True(t, next.HasPending())

	deleted, err := next.Delete()
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleNone, deleted.State)
}

func TestLifecycle_AtMostOnePending(t *testing.T) {
	lc := model.Lifecycle{State: model.LifecycleNone}
	pending := 0

	ops := []func(model.Lifecycle) model.Lifecycle{
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Start(lifecyclePR, "me", "h"); return n },
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Start(lifecyclePR, "me", "h"); return n },
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Submit(time.Now()); return n },
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Delete(); return n },
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Start(lifecyclePR, "me", "h"); return n },
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Delete(); return n },
		func(l model.Lifecycle) model.Lifecycle { n, _ := l.Delete(); return n },
	}

	for _, op := range ops {
		lc = op(lc)
		pending = 0
		if lc.HasPending() {
			pending = 1
		}
		assert.LessOrEqual(t, pending, 1)
	}
	assert.Equal(t, model.LifecycleNone, lc.State)
}

func TestRemotePendingFor(t *testing.T) {
	current := model.Review{ID: 42, State: model.ReviewStatePending, IsMine: true}
	remote := []model.Review{
		{ID: 41, State: model.ReviewStatePending, IsMine: true},
		{ID: 42, State: model.ReviewStatePending, IsMine: true},
	}

	got, ok := model.RemotePendingFor(&current, remote)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.ID)

	_, ok = model.RemotePendingFor(&current, []model.Review{{ID: 42, State: model.ReviewStateSubmitted, IsMine: true}})
	assert.False(t, ok, "state must match")

	_, ok = model.RemotePendingFor(&current, []model.Review{{ID: 42, State: model.ReviewStatePending, IsMine: false}})
	assert.False(t, ok, "ownership must match")

	local := model.NewLocalReview(model.PRRef{Owner: "o", Repo: "r", Number: 7}, "me", "h")
	_, ok = model.RemotePendingFor(&local, remote)
	assert.False(t, ok, "a local draft is not in the remote set")

	_, ok = model.RemotePendingFor(nil, remote)
	assert.False(t, ok)
}
