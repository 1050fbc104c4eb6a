package service_test

import (
	"errors"
	"testing"

	"barebones/internal/core/config"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/service"
	"barebones/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyCountersMatchRecount(t *testing.T) {
	env := testutil.New(t)
	cat := env.Forum(t, "Lounge", testutil.Category())
	forum := env.Forum(t, "General", testutil.Under(cat.ID))
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	topic := env.Topic(t, alice, forum.ID, "Hello", "first post")
	env.Reply(t, bob, topic.ID, "reply one")
	last := env.Reply(t, alice, topic.ID, "reply two")
	spam := env.Reply(t, bob, topic.ID, "reply three")
	_, err := env.Moderation.ReplyTransition(env.Ctx, mod, spam.ID, service.ActionSpam)
	require.NoError(t, err)

	tp := env.TopicRow(t, topic.ID)
	assert.Equal(t, 2, tp.ReplyCount)
	assert.Equal(t, 1, tp.ReplyCountHidden)
	assert.Equal(t, 2, tp.VoiceCount)
	assert.Equal(t, last.ID, tp.LastReplyID)

	snaps, err := env.Repos().Replies.Snapshots(env.Ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, service.ComputeTopicCounters(tp, snaps), tp.TopicCounters)

	f := env.ForumRow(t, forum.ID)
	assert.Equal(t, 1, f.TopicCount)
	assert.Equal(t, 2, f.ReplyCount)
	assert.Equal(t, 2, f.TotalReplyCount)
	assert.Equal(t, last.ID, f.LastReplyID)

	c := env.ForumRow(t, cat.ID)
	assert.Zero(t, c.TopicCount)
	assert.Zero(t, c.ReplyCount)
	assert.Equal(t, 1, c.SubforumCount)
	assert.Equal(t, 1, c.TotalTopicCount)
	assert.Equal(t, 2, c.TotalReplyCount)
}

func TestRepairMatchesPropagatedCounters(t *testing.T) {
	env := testutil.New(t)
	parent := env.Forum(t, "Parent")
	child := env.Forum(t, "Child", testutil.Under(parent.ID))
	alice := env.User(t, "alice", model.SiteAuthor)

	t1 := env.Topic(t, alice, parent.ID, "In parent", "body one")
	t2 := env.Topic(t, alice, child.ID, "In child", "body two")
	env.Reply(t, alice, t1.ID, "r1")
	env.Reply(t, alice, t2.ID, "r2")
	env.Reply(t, alice, t2.ID, "r3")

	before := map[int64]model.ForumCounters{
		parent.ID: env.ForumRow(t, parent.ID).ForumCounters,
		child.ID:  env.ForumRow(t, child.ID).ForumCounters,
	}

	// wreck the stored counters, then rebuild
	_, err := env.DB.Exec("UPDATE bb_forums SET topic_count = 99, total_reply_count = 99")
	require.NoError(t, err)
	_, err = env.DB.Exec("UPDATE bb_topics SET reply_count = 42")
	require.NoError(t, err)

	topics, forums, err := env.Walker.Repair(env.Ctx, env.Store)
	require.NoError(t, err)
	assert.Equal(t, 2, topics)
	assert.Equal(t, 2, forums)

	for id, want := range before {
		got := env.ForumRow(t, id).ForumCounters
		assert.Equal(t, want.TopicCount, got.TopicCount)
		assert.Equal(t, want.ReplyCount, got.ReplyCount)
		assert.Equal(t, want.TotalTopicCount, got.TotalTopicCount)
		assert.Equal(t, want.TotalReplyCount, got.TotalReplyCount)
		assert.Equal(t, want.SubforumCount, got.SubforumCount)
	}
	assert.Equal(t, 2, env.ForumRow(t, parent.ID).TotalTopicCount)
	assert.Equal(t, 3, env.ForumRow(t, parent.ID).TotalReplyCount)
	assert.Equal(t, 2, env.TopicRow(t, t2.ID).ReplyCount)
}

func TestOrphanPolicySkip(t *testing.T) {
	env := testutil.New(t)
	stray := env.Forum(t, "Stray", testutil.Under(424242))
	alice := env.User(t, "alice", model.SiteAuthor)

	topic := env.Topic(t, alice, stray.ID, "Lost", "still counted")
	env.Reply(t, alice, topic.ID, "reply")

	f := env.ForumRow(t, stray.ID)
	assert.Equal(t, 1, f.TopicCount)
	assert.Equal(t, 1, f.ReplyCount)
}

func TestOrphanPolicyFail(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.OrphanPolicy = config.OrphanFail })
	stray := env.Forum(t, "Stray", testutil.Under(424242))
	alice := env.User(t, "alice", model.SiteAuthor)

	_, err := env.Topics.Create(env.Ctx, alice, "127.0.0.1", &model.TopicRequest{
		ForumID: stray.ID,
		Title:   "Lost",
		Content: "rolled back",
		Nonce:   env.Nonce(t, service.ActionTopicNew, alice, "127.0.0.1"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrOrphan))

	n, err := env.Repos().Topics.CountByForum(env.Ctx, stray.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, env.ForumRow(t, stray.ID).TopicCount)
}

func TestPendingReplyDoesNotAdvanceFreshness(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.ModerationKeys = []string{"hold"} })
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)

	topic := env.Topic(t, alice, forum.ID, "Hello", "body")
	ok := env.Reply(t, alice, topic.ID, "visible")
	held := env.Reply(t, alice, topic.ID, "please hold")
	require.Equal(t, model.StatusPending, held.Status)

	tp := env.TopicRow(t, topic.ID)
	assert.Equal(t, ok.ID, tp.LastReplyID)
	assert.Equal(t, ok.ID, tp.LastActiveID)
	assert.Equal(t, 1, tp.ReplyCountHidden)
	assert.Equal(t, ok.ID, env.ForumRow(t, forum.ID).LastActiveID)
}

func TestReplyInHeldTopicDoesNotAdvanceForum(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.ModerationKeys = []string{"hold"} })
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	open := env.Topic(t, alice, forum.ID, "Visible", "body")
	held := env.Topic(t, alice, forum.ID, "Held", "please hold")
	require.Equal(t, model.StatusPending, held.Status)
	before := env.ForumRow(t, forum.ID).ForumCounters
	require.Equal(t, open.ID, before.LastActiveID)

	answer := env.Reply(t, mod, held.ID, "moderator note")
	require.Equal(t, model.StatusPublish, answer.Status)
	assert.Equal(t, answer.ID, env.TopicRow(t, held.ID).LastActiveID)

	after := env.ForumRow(t, forum.ID).ForumCounters
	assert.Equal(t, before.LastActiveID, after.LastActiveID)
	assert.Equal(t, before.LastReplyID, after.LastReplyID)

	_, _, err := env.Walker.Repair(env.Ctx, env.Store)
	require.NoError(t, err)
	repaired := env.ForumRow(t, forum.ID).ForumCounters
	assert.Equal(t, after.LastActiveID, repaired.LastActiveID)
	assert.Equal(t, after.LastReplyID, repaired.LastReplyID)
}
