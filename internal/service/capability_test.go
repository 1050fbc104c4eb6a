package service

import (
	"context"
	"testing"
	"time"

	"barebones/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRole(t *testing.T) {
	caps := NewCapabilities("participant")

	tests := []struct {
		name string
		user *model.User
		want Role
	}{
		{"guest", nil, RoleNone},
		{"administrator", &model.User{SiteRole: model.SiteAdministrator}, RoleKeymaster},
		{"administrator ignores explicit role", &model.User{SiteRole: model.SiteAdministrator, ForumRole: "blocked"}, RoleKeymaster},
		{"explicit wins over site role", &model.User{SiteRole: model.SiteEditor, ForumRole: "spectator"}, RoleSpectator},
		{"editor", &model.User{SiteRole: model.SiteEditor}, RoleModerator},
		{"author", &model.User{SiteRole: model.SiteAuthor}, RoleParticipant},
		{"contributor", &model.User{SiteRole: model.SiteContributor}, RoleParticipant},
		{"subscriber takes default", &model.User{SiteRole: model.SiteSubscriber}, RoleParticipant},
		{"unknown site role", &model.User{SiteRole: "robot"}, RoleSpectator},
		{"invalid explicit role ignored", &model.User{SiteRole: model.SiteAuthor, ForumRole: "wizard"}, RoleParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, caps.ResolveRole(tt.user))
		})
	}
}

func TestDefaultRoleNeverKeymaster(t *testing.T) {
	caps := NewCapabilities("keymaster")
	assert.Equal(t, RoleParticipant, caps.ResolveRole(&model.User{SiteRole: model.SiteSubscriber}))

	caps = NewCapabilities("spectator")
	assert.Equal(t, RoleSpectator, caps.ResolveRole(&model.User{SiteRole: model.SiteSubscriber}))
}

func TestRoleCapabilities(t *testing.T) {
	caps := NewCapabilities("participant")
	as := func(r Role) *model.User { return &model.User{SiteRole: model.SiteSubscriber, ForumRole: string(r)} }

	assert.True(t, caps.Can(as(RoleKeymaster), CapKeepGate))
	assert.True(t, caps.Can(as(RoleModerator), CapModerate))
	assert.False(t, caps.Can(as(RoleModerator), CapKeepGate))
	assert.True(t, caps.Can(as(RoleParticipant), CapPublishTopics))
	assert.False(t, caps.Can(as(RoleParticipant), CapModerate))
	assert.False(t, caps.Can(as(RoleParticipant), CapReadHiddenForums))
	assert.True(t, caps.Can(as(RoleSpectator), CapSpectate))
	assert.False(t, caps.Can(as(RoleSpectator), CapPublishReplies))
	assert.False(t, caps.Can(as(RoleBlocked), CapSpectate))
	assert.False(t, caps.Can(nil, CapSpectate))
}

func TestInactiveUserKeepsOnlySpectate(t *testing.T) {
	caps := NewCapabilities("participant")
	for _, st := range []model.UserStatus{model.UserSpam, model.UserDeleted} {
		u := &model.User{SiteRole: model.SiteAdministrator, Status: st}
		assert.True(t, caps.Can(u, CapSpectate), st)
		assert.False(t, caps.Can(u, CapPublishTopics), st)
		assert.False(t, caps.Can(u, CapKeepGate), st)
	}
}

type forumMap map[int64]*model.Forum

func (m forumMap) GetByID(_ context.Context, id int64) (*model.Forum, error) {
	return m[id], nil
}

func TestCanViewForumWithAncestors(t *testing.T) {
	forums := forumMap{
		1: {ID: 1, Visibility: model.VisibilityHidden},
		2: {ID: 2, ParentID: 1, Visibility: model.VisibilityPublic},
		3: {ID: 3, Visibility: model.VisibilityPrivate},
		4: {ID: 4, ParentID: 3, Visibility: model.VisibilityPublic},
	}
	caps := NewCapabilities("participant")
	ctx := context.Background()
	participant := &model.User{SiteRole: model.SiteAuthor}
	moderator := &model.User{SiteRole: model.SiteEditor}

	view := func(u *model.User, id int64, ancestors bool) bool {
		ok, err := caps.CanViewForum(ctx, forums, u, forums[id], ancestors)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, view(nil, 2, false))
	assert.False(t, view(nil, 2, true))
	assert.False(t, view(participant, 2, true))
	assert.True(t, view(moderator, 2, true))

	assert.False(t, view(nil, 4, true))
	assert.True(t, view(participant, 4, true))

	assert.False(t, view(nil, 99, true))
}

func TestIsForumClosedWithAncestors(t *testing.T) {
	forums := forumMap{
		1: {ID: 1, Status: model.ForumClosed},
		2: {ID: 2, ParentID: 1, Status: model.ForumOpen},
	}
	ctx := context.Background()

	closed, err := IsForumClosed(ctx, forums, forums[2], false)
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = IsForumClosed(ctx, forums, forums[2], true)
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestAncestorsDetectsCycle(t *testing.T) {
	forums := forumMap{
		1: {ID: 1, ParentID: 2},
		2: {ID: 2, ParentID: 1},
	}
	_, err := Ancestors(context.Background(), forums, &model.Forum{ID: 3, ParentID: 1})
	assert.Error(t, err)
}

func TestCanReadPost(t *testing.T) {
	caps := NewCapabilities("participant")
	author := &model.User{ID: 7, SiteRole: model.SiteAuthor}
	other := &model.User{ID: 8, SiteRole: model.SiteAuthor}
	mod := &model.User{ID: 9, SiteRole: model.SiteEditor}

	assert.True(t, caps.CanReadPost(nil, model.StatusPublish, 7))
	assert.True(t, caps.CanReadPost(nil, model.StatusClosed, 7))
	assert.True(t, caps.CanReadPost(author, model.StatusPending, 7))
	assert.False(t, caps.CanReadPost(other, model.StatusPending, 7))
	assert.False(t, caps.CanReadPost(nil, model.StatusPending, 0))
	assert.True(t, caps.CanReadPost(mod, model.StatusSpam, 7))
	assert.True(t, caps.CanReadPost(mod, model.StatusTrash, 7))
	assert.False(t, caps.CanReadPost(author, model.StatusTrash, 7))
}

func TestCanEditPostLock(t *testing.T) {
	caps := NewCapabilities("participant")
	author := &model.User{ID: 7, SiteRole: model.SiteAuthor}
	mod := &model.User{ID: 9, SiteRole: model.SiteEditor}
	own := model.Author{AuthorID: 7}
	created := time.Now().Add(-10 * time.Minute).Unix()
	now := time.Now()

	assert.False(t, caps.CanEditPost(author, model.PostTopic, own, created, 5, now))
	assert.True(t, caps.CanEditPost(author, model.PostTopic, own, created, 15, now))
	assert.True(t, caps.CanEditPost(author, model.PostReply, own, created, 0, now))
	assert.False(t, caps.CanEditPost(author, model.PostReply, model.Author{AuthorID: 8}, created, 0, now))
	assert.True(t, caps.CanEditPost(mod, model.PostReply, own, created, 5, now))
	assert.False(t, caps.CanEditPost(nil, model.PostTopic, model.Author{}, created, 0, now))
}

func TestVisibleStatuses(t *testing.T) {
	caps := NewCapabilities("participant")
	assert.Equal(t, []model.Status{model.StatusPublish, model.StatusClosed}, caps.VisibleStatuses(nil, model.PostTopic))
	assert.Equal(t, []model.Status{model.StatusPublish}, caps.VisibleStatuses(nil, model.PostReply))
	assert.ElementsMatch(t,
		[]model.Status{model.StatusPublish, model.StatusPending, model.StatusSpam, model.StatusTrash},
		caps.VisibleStatuses(&model.User{SiteRole: model.SiteEditor}, model.PostReply))
}
