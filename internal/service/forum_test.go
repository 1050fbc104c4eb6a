package service_test

import (
	"errors"
	"testing"

	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForumCreateAndTree(t *testing.T) {
	env := testutil.New(t)
	admin := env.User(t, "admin", model.SiteAdministrator)
	mod := env.User(t, "mod", model.SiteEditor)

	_, err := env.Forums.Create(env.Ctx, mod, &model.ForumRequest{Title: "Nope"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	cat, err := env.Forums.Create(env.Ctx, admin, &model.ForumRequest{Title: "Lounge", Type: model.ForumTypeCategory})
	require.NoError(t, err)
	child, err := env.Forums.Create(env.Ctx, admin, &model.ForumRequest{Title: "Chat", ParentID: cat.ID})
	require.NoError(t, err)
	assert.Equal(t, model.ForumOpen, child.Status)
	assert.Equal(t, model.VisibilityPublic, child.Visibility)

	_, err = env.Forums.Create(env.Ctx, admin, &model.ForumRequest{Title: "Lost", ParentID: 404})
	assert.True(t, errors.Is(err, apperr.ErrForumNotFound))

	tree, err := env.Forums.GetTree(env.Ctx, nil)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, cat.ID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, child.ID, tree[0].Children[0].ID)

	got, err := env.Forums.Get(env.Ctx, nil, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SubforumCount)
}

func TestForumVisibilityIsInherited(t *testing.T) {
	env := testutil.New(t)
	private := env.Forum(t, "Members", testutil.WithVisibility(model.VisibilityPrivate))
	hidden := env.Forum(t, "Staff", testutil.WithVisibility(model.VisibilityHidden))
	inner := env.Forum(t, "Staff Room", testutil.Under(hidden.ID))
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	tests := []struct {
		name  string
		user  *model.User
		forum int64
		ok    bool
	}{
		{"guest private", nil, private.ID, false},
		{"participant private", alice, private.ID, true},
		{"participant hidden", alice, hidden.ID, false},
		{"participant under hidden", alice, inner.ID, false},
		{"moderator under hidden", mod, inner.ID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Forums.Get(env.Ctx, tt.user, tt.forum)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, apperr.ErrForumNotFound))
			}
		})
	}

	list, err := env.Forums.List(env.Ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestForumUpdateRules(t *testing.T) {
	env := testutil.New(t)
	admin := env.User(t, "admin", model.SiteAdministrator)
	alice := env.User(t, "alice", model.SiteAuthor)
	parent := env.Forum(t, "Parent")
	child := env.Forum(t, "Child", testutil.Under(parent.ID))
	env.Topic(t, alice, parent.ID, "Hello", "body")

	_, err := env.Forums.Get(env.Ctx, nil, parent.ID)
	require.NoError(t, err)

	_, err = env.Forums.Update(env.Ctx, admin, parent.ID, &model.ForumRequest{Title: "Parent", ParentID: child.ID})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = env.Forums.Update(env.Ctx, admin, parent.ID, &model.ForumRequest{Title: "Parent", Type: model.ForumTypeCategory})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = env.Forums.Update(env.Ctx, admin, parent.ID, &model.ForumRequest{Title: "Renamed"})
	require.NoError(t, err)
	got, err := env.Forums.Get(env.Ctx, nil, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 1, got.TopicCount)
}

func TestForumDelete(t *testing.T) {
	env := testutil.New(t)
	admin := env.User(t, "admin", model.SiteAdministrator)
	alice := env.User(t, "alice", model.SiteAuthor)
	parent := env.Forum(t, "Parent")
	busy := env.Forum(t, "Busy", testutil.Under(parent.ID))
	empty := env.Forum(t, "Empty", testutil.Under(parent.ID))
	env.Topic(t, alice, busy.ID, "Hello", "body")

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(env.Forums.Delete(env.Ctx, admin, busy.ID)))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(env.Forums.Delete(env.Ctx, admin, parent.ID)))

	require.NoError(t, env.Forums.Delete(env.Ctx, admin, empty.ID))
	_, err := env.Forums.Get(env.Ctx, admin, empty.ID)
	assert.True(t, errors.Is(err, apperr.ErrForumNotFound))
	assert.Equal(t, 1, env.ForumRow(t, parent.ID).SubforumCount)
}
