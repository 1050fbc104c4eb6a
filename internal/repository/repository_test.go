package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"barebones/internal/model"
	"barebones/internal/repository"
	"barebones/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*repository.Store, context.Context) {
	t.Helper()
	return repository.NewStore(testutil.NewDB(t)), context.Background()
}

func topic(id, forumID int64, status model.Status, author model.Author, content string) *model.Topic {
	now := time.Now().Unix()
	return &model.Topic{ID: id, ForumID: forumID, Title: "t", Content: content, Author: author,
		Status: status, CreatedAt: now, UpdatedAt: now}
}

func TestGetByIDMissing(t *testing.T) {
	store, ctx := newStore(t)
	r := store.Repos()

	f, err := r.Forums.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, f)
	tp, err := r.Topics.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, tp)
	u, err := r.Users.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestWithTxRollsBack(t *testing.T) {
	store, ctx := newStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(r *repository.Repos) error {
		require.NoError(t, r.Forums.Create(ctx, &model.Forum{ID: 7, Title: "F", Slug: "f",
			Type: model.ForumTypeForum, Status: model.ForumOpen, Visibility: model.VisibilityPublic}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	f, err := store.Repos().Forums.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestTopicIDListsPersist(t *testing.T) {
	store, ctx := newStore(t)
	r := store.Repos()

	tp := topic(1, 10, model.StatusTrash, model.Author{AuthorID: 5}, "body")
	tp.PriorStatus = model.StatusClosed
	tp.TrashPriorStatus = model.StatusSpam
	tp.PreTrashedReplies = model.IDList{3, 4}
	require.NoError(t, r.Topics.Create(ctx, tp))

	got, err := r.Topics.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.IDList{3, 4}, got.PreTrashedReplies)
	assert.Empty(t, got.PreSpammedReplies)
	assert.Equal(t, model.StatusClosed, got.PriorStatus)
	assert.Equal(t, model.StatusSpam, got.TrashPriorStatus)

	require.NoError(t, r.Topics.UpdateCounters(ctx, 1, model.TopicCounters{ReplyCount: 2, VoiceCount: 1, LastActiveID: 4}))
	got, err = r.Topics.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReplyCount)
	assert.Equal(t, int64(4), got.LastActiveID)
}

func TestFindDuplicate(t *testing.T) {
	store, ctx := newStore(t)
	r := store.Repos()

	alice := model.Author{AuthorID: 5}
	guest := model.Author{AnonymousName: "g", AnonymousEmail: "g@example.com", AuthorIP: "10.0.0.1"}
	require.NoError(t, r.Topics.Create(ctx, topic(1, 10, model.StatusPublish, alice, "same words")))
	require.NoError(t, r.Topics.Create(ctx, topic(2, 10, model.StatusPublish, guest, "guest words")))

	tests := []struct {
		name    string
		forum   int64
		author  model.Author
		content string
		want    bool
	}{
		{"same author and text", 10, alice, "same words", true},
		{"other forum", 11, alice, "same words", false},
		{"other author", 10, model.Author{AuthorID: 6}, "same words", false},
		{"guest by email", 10, model.Author{AnonymousEmail: "g@example.com"}, "guest words", true},
		{"different text", 10, alice, "new words", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup, err := r.Topics.FindDuplicate(ctx, tt.forum, tt.author, tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dup)
		})
	}
}

func TestListPublished(t *testing.T) {
	store, ctx := newStore(t)
	r := store.Repos()
	a := model.Author{AuthorID: 1}

	require.NoError(t, r.Topics.Create(ctx, topic(1, 10, model.StatusPublish, a, "1")))
	require.NoError(t, r.Topics.Create(ctx, topic(2, 10, model.StatusClosed, a, "2")))
	require.NoError(t, r.Topics.Create(ctx, topic(3, 10, model.StatusPending, a, "3")))
	require.NoError(t, r.Topics.Create(ctx, topic(4, 11, model.StatusPublish, a, "4")))

	list, err := r.Topics.ListPublished(ctx, []int64{10}, 0, 10)
	require.NoError(t, err)
	var ids []int64
	for _, tp := range list {
		ids = append(ids, tp.ID)
	}
	assert.Equal(t, []int64{2, 1}, ids)

	none, err := r.Topics.ListPublished(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReplyPositions(t *testing.T) {
	store, ctx := newStore(t)
	r := store.Repos()

	pos, err := r.Replies.MaxPosition(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, pos)

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Replies.Create(ctx, &model.Reply{ID: int64(100 + i), TopicID: 1, ForumID: 10,
			Content: "r", Author: model.Author{AuthorID: 1}, Status: model.StatusPublish, MenuOrder: i}))
	}
	pos, err = r.Replies.MaxPosition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	require.NoError(t, r.Replies.SetForumByTopic(ctx, 1, 20))
	all, err := r.Replies.AllByTopic(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, rep := range all {
		assert.Equal(t, int64(20), rep.ForumID)
	}

	require.NoError(t, r.Replies.DeleteByTopic(ctx, 1))
	all, err = r.Replies.AllByTopic(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, all)
}
