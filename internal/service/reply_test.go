package service_test

import (
	"errors"
	"testing"

	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/service"
	"barebones/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyPositionsAndThreading(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")
	other := env.Topic(t, bob, forum.ID, "Other", "other body")

	first := env.Reply(t, bob, topic.ID, "one")
	second := env.Reply(t, alice, topic.ID, "two")
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)

	threaded, err := env.Replies.Create(env.Ctx, bob, "127.0.0.1", &model.ReplyRequest{
		TopicID: topic.ID,
		ReplyTo: first.ID,
		Content: "answering one",
		Nonce:   env.Nonce(t, service.ActionReplyNew, bob, "127.0.0.1"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, threaded.ReplyTo)

	_, err = env.Replies.Create(env.Ctx, bob, "127.0.0.1", &model.ReplyRequest{
		TopicID: other.ID,
		ReplyTo: first.ID,
		Content: "wrong thread",
		Nonce:   env.Nonce(t, service.ActionReplyNew, bob, "127.0.0.1"),
	})
	assert.Equal(t, []string{service.CodeBadReplyTo}, codes(fieldErrors(t, err)))

	row := env.TopicRow(t, topic.ID)
	assert.Equal(t, 3, row.ReplyCount)
	assert.Equal(t, 2, row.VoiceCount)
	assert.Equal(t, threaded.ID, row.LastReplyID)
	assert.Equal(t, threaded.ID, row.LastActiveID)
}

func TestReplyVisibility(t *testing.T) {
	env := testutil.New(t, holdKeys)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")

	env.Reply(t, bob, topic.ID, "visible")
	held := env.Reply(t, bob, topic.ID, "hold this")
	require.Equal(t, model.StatusPending, held.Status)

	count := func(u *model.User) int {
		list, err := env.Replies.ListByTopic(env.Ctx, u, topic.ID, 0, 20)
		require.NoError(t, err)
		return len(list)
	}
	assert.Equal(t, 1, count(nil))
	assert.Equal(t, 1, count(alice))
	assert.Equal(t, 2, count(mod))

	_, err := env.Replies.Get(env.Ctx, alice, held.ID)
	assert.True(t, errors.Is(err, apperr.ErrReplyNotFound))
	_, err = env.Replies.Get(env.Ctx, bob, held.ID)
	require.NoError(t, err)
}

func TestMoveReplyDoesNotDoubleCount(t *testing.T) {
	env := testutil.New(t)
	a := env.Forum(t, "A")
	b := env.Forum(t, "B")
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	src := env.Topic(t, alice, a.ID, "Source", "body")
	dst := env.Topic(t, alice, b.ID, "Dest", "body two")
	env.Reply(t, alice, dst.ID, "already here")
	moving := env.Reply(t, bob, src.ID, "wandering")

	_, err := env.Replies.Move(env.Ctx, bob, moving.ID, dst.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	moved, err := env.Replies.Move(env.Ctx, mod, moving.ID, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, dst.ID, moved.TopicID)
	assert.Equal(t, b.ID, moved.ForumID)
	assert.Equal(t, 2, moved.Position)

	srcRow := env.TopicRow(t, src.ID)
	assert.Zero(t, srcRow.ReplyCount)
	assert.Equal(t, 1, srcRow.VoiceCount)
	dstRow := env.TopicRow(t, dst.ID)
	assert.Equal(t, 2, dstRow.ReplyCount)
	assert.Equal(t, 2, dstRow.VoiceCount)
	assert.Equal(t, moving.ID, dstRow.LastReplyID)

	assert.Zero(t, env.ForumRow(t, a.ID).ReplyCount)
	assert.Equal(t, 2, env.ForumRow(t, b.ID).ReplyCount)

	// moving it again onto the same topic is a no-op
	again, err := env.Replies.Move(env.Ctx, mod, moving.ID, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Position)
	assert.Equal(t, 2, env.TopicRow(t, dst.ID).ReplyCount)
}

func TestMoveReplyDetachesThread(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	src := env.Topic(t, alice, forum.ID, "Source", "body")
	dst := env.Topic(t, alice, forum.ID, "Dest", "body two")
	root := env.Reply(t, alice, src.ID, "root")
	parent := env.Answer(t, bob, src.ID, root.ID, "parent")
	child := env.Answer(t, alice, src.ID, parent.ID, "child")
	sibling := env.Answer(t, bob, src.ID, root.ID, "sibling")

	moved, err := env.Replies.Move(env.Ctx, mod, parent.ID, dst.ID)
	require.NoError(t, err)
	assert.Zero(t, moved.ReplyTo)

	assert.Zero(t, env.ReplyRow(t, child.ID).ReplyTo)
	assert.Equal(t, src.ID, env.ReplyRow(t, child.ID).TopicID)
	assert.Equal(t, root.ID, env.ReplyRow(t, sibling.ID).ReplyTo)
}

func TestReplyEditRevisionAndHold(t *testing.T) {
	env := testutil.New(t, holdKeys)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")
	rep := env.Reply(t, alice, topic.ID, "fine words")

	edited, err := env.Replies.Edit(env.Ctx, alice, "127.0.0.1", rep.ID, &model.EditRequest{
		Content: "now hold these words",
		Nonce:   env.Nonce(t, service.ActionReplyEdit, alice, "127.0.0.1"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, edited.Status)

	row := env.TopicRow(t, topic.ID)
	assert.Zero(t, row.ReplyCount)
	assert.Equal(t, 1, row.ReplyCountHidden)

	revs, err := env.Replies.Revisions(env.Ctx, alice, rep.ID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "fine words", revs[0].Content)
}
