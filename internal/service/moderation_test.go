package service_test

import (
	"context"
	"errors"
	"testing"

	"barebones/internal/core/config"
	"barebones/internal/event"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/service"
	"barebones/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holdKeys(c *config.Config) { c.Forum.ModerationKeys = []string{"hold"} }

func replyStatus(t *testing.T, env *testutil.Env, id int64) model.Status {
	t.Helper()
	r, err := env.Repos().Replies.GetByID(env.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r.Status
}

func TestSpamUnspamRestoresPriorStatus(t *testing.T) {
	env := testutil.New(t, holdKeys)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")

	published := env.Reply(t, alice, topic.ID, "fine")
	pending := env.Reply(t, alice, topic.ID, "please hold")
	require.Equal(t, model.StatusPending, pending.Status)

	for _, tc := range []struct {
		id   int64
		want model.Status
	}{{published.ID, model.StatusPublish}, {pending.ID, model.StatusPending}} {
		_, err := env.Moderation.ReplyTransition(env.Ctx, mod, tc.id, service.ActionSpam)
		require.NoError(t, err)
		assert.Equal(t, model.StatusSpam, replyStatus(t, env, tc.id))

		_, err = env.Moderation.ReplyTransition(env.Ctx, mod, tc.id, service.ActionUnspam)
		require.NoError(t, err)
		assert.Equal(t, tc.want, replyStatus(t, env, tc.id))
	}
}

func TestTrashTopicRestoresExactReplySet(t *testing.T) {
	env := testutil.New(t, holdKeys)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")

	live := env.Reply(t, alice, topic.ID, "live")
	held := env.Reply(t, alice, topic.ID, "hold me")
	spammed := env.Reply(t, alice, topic.ID, "buy now")
	trashed := env.Reply(t, alice, topic.ID, "oops")
	_, err := env.Moderation.ReplyTransition(env.Ctx, mod, spammed.ID, service.ActionSpam)
	require.NoError(t, err)
	_, err = env.Moderation.ReplyTransition(env.Ctx, mod, trashed.ID, service.ActionTrash)
	require.NoError(t, err)

	tp, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionTrash)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrash, tp.Status)
	assert.ElementsMatch(t, model.IDList{spammed.ID, trashed.ID}, env.TopicRow(t, topic.ID).PreTrashedReplies)
	assert.Equal(t, model.StatusTrash, replyStatus(t, env, live.ID))
	assert.Equal(t, model.StatusTrash, replyStatus(t, env, held.ID))
	assert.Equal(t, model.StatusSpam, replyStatus(t, env, spammed.ID))
	assert.Zero(t, env.ForumRow(t, forum.ID).TopicCount)
	assert.Equal(t, 1, env.ForumRow(t, forum.ID).TopicCountHidden)

	tp, err = env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionUntrash)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublish, tp.Status)
	assert.Equal(t, model.StatusPublish, replyStatus(t, env, live.ID))
	assert.Equal(t, model.StatusPending, replyStatus(t, env, held.ID))
	assert.Equal(t, model.StatusSpam, replyStatus(t, env, spammed.ID))
	assert.Equal(t, model.StatusTrash, replyStatus(t, env, trashed.ID))
	assert.Empty(t, env.TopicRow(t, topic.ID).PreTrashedReplies)

	row := env.TopicRow(t, topic.ID)
	assert.Equal(t, 1, row.ReplyCount)
	assert.Equal(t, 3, row.ReplyCountHidden)
	assert.Equal(t, 1, env.ForumRow(t, forum.ID).TopicCount)
}

func TestSpamTopicRemembersClosedStatus(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")

	_, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionClose)
	require.NoError(t, err)
	_, err = env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionSpam)
	require.NoError(t, err)
	tp, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionUnspam)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, tp.Status)
}

func TestTransitionRules(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")
	reply := env.Reply(t, alice, topic.ID, "reply")

	_, err := env.Moderation.TopicTransition(env.Ctx, alice, topic.ID, service.ActionClose)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	for _, a := range []service.Action{service.ActionApprove, service.ActionUnspam, service.ActionUntrash, service.ActionDelete, service.ActionOpen} {
		_, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, a)
		assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), a)
	}
	for _, a := range []service.Action{service.ActionClose, service.ActionOpen, service.ActionDelete} {
		_, err := env.Moderation.ReplyTransition(env.Ctx, mod, reply.ID, a)
		assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), a)
	}

	// repeated trash is a no-op
	_, err = env.Moderation.ReplyTransition(env.Ctx, mod, reply.ID, service.ActionTrash)
	require.NoError(t, err)
	out, err := env.Moderation.ReplyTransition(env.Ctx, mod, reply.ID, service.ActionTrash)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrash, out.Status)

	// spam from trash is refused
	_, err = env.Moderation.ReplyTransition(env.Ctx, mod, reply.ID, service.ActionSpam)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestDeleteTopicRemovesEverything(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	dto, err := env.Topics.Create(env.Ctx, alice, "127.0.0.1", &model.TopicRequest{
		ForumID: forum.ID,
		Title:   "Doomed",
		Content: "body",
		Tags:    "go, forum",
		Nonce:   env.Nonce(t, service.ActionTopicNew, alice, "127.0.0.1"),
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"go", "forum"}, dto.Tags)
	reply := env.Reply(t, alice, dto.ID, "reply")

	_, err = env.Moderation.TopicTransition(env.Ctx, mod, dto.ID, service.ActionTrash)
	require.NoError(t, err)
	out, err := env.Moderation.TopicTransition(env.Ctx, mod, dto.ID, service.ActionDelete)
	require.NoError(t, err)
	assert.Nil(t, out)

	tp, err := env.Repos().Topics.GetByID(env.Ctx, dto.ID)
	require.NoError(t, err)
	assert.Nil(t, tp)
	r, err := env.Repos().Replies.GetByID(env.Ctx, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, r)
	tag, err := env.Repos().Tags.GetByName(env.Ctx, "go")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Zero(t, tag.TopicCount)

	f := env.ForumRow(t, forum.ID)
	assert.Zero(t, f.TopicCount)
	assert.Zero(t, f.TopicCountHidden)
	assert.Zero(t, f.ReplyCount)
}

func TestTransitionPublishesEvent(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")

	var got []event.Event
	env.Bus.Subscribe("test", func(_ context.Context, e event.Event) { got = append(got, e) })

	_, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionClose)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, event.TopicStatusChanged, got[0].Type)
	assert.Equal(t, "close", got[0].Action)
	assert.Equal(t, "closed", got[0].Status)
	assert.True(t, got[0].Public)
}

func TestTrashOverSpamKeepsHeldReplyHeld(t *testing.T) {
	env := testutil.New(t, holdKeys)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")
	held := env.Reply(t, alice, topic.ID, "please hold")
	require.Equal(t, model.StatusPending, held.Status)

	steps := []struct {
		action service.Action
		want   model.Status
	}{
		{service.ActionSpam, model.StatusSpam},
		{service.ActionTrash, model.StatusTrash},
		{service.ActionUntrash, model.StatusSpam},
		{service.ActionUnspam, model.StatusPending},
	}
	for _, step := range steps {
		out, err := env.Moderation.ReplyTransition(env.Ctx, mod, held.ID, step.action)
		require.NoError(t, err, step.action)
		assert.Equal(t, step.want, out.Status, step.action)
	}
	row := env.ReplyRow(t, held.ID)
	assert.Empty(t, row.PriorStatus)
	assert.Empty(t, row.TrashPriorStatus)
	assert.Equal(t, 1, env.TopicRow(t, topic.ID).ReplyCountHidden)
}

func TestTrashOverSpamKeepsHeldTopicHeld(t *testing.T) {
	env := testutil.New(t, holdKeys)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "please hold")
	require.Equal(t, model.StatusPending, topic.Status)
	answer := env.Reply(t, mod, topic.ID, "looking into it")
	require.Equal(t, model.StatusPublish, answer.Status)

	steps := []struct {
		action service.Action
		want   model.Status
		reply  model.Status
	}{
		{service.ActionSpam, model.StatusSpam, model.StatusSpam},
		{service.ActionTrash, model.StatusTrash, model.StatusSpam},
		{service.ActionUntrash, model.StatusSpam, model.StatusSpam},
		{service.ActionUnspam, model.StatusPending, model.StatusPublish},
	}
	for _, step := range steps {
		out, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, step.action)
		require.NoError(t, err, step.action)
		assert.Equal(t, step.want, out.Status, step.action)
		assert.Equal(t, step.reply, replyStatus(t, env, answer.ID), step.action)
	}
	row := env.TopicRow(t, topic.ID)
	assert.Empty(t, row.PriorStatus)
	assert.Empty(t, row.TrashPriorStatus)
	assert.Zero(t, env.ForumRow(t, forum.ID).TopicCount)
	assert.Equal(t, 1, env.ForumRow(t, forum.ID).TopicCountHidden)
}
