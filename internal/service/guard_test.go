package service_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/service"
	"barebones/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) *apperr.Errors {
	t.Helper()
	var list *apperr.Errors
	require.True(t, errors.As(err, &list), "want *apperr.Errors, got %v", err)
	return list
}

func codes(list *apperr.Errors) []string {
	out := make([]string, 0, len(list.List))
	for _, fe := range list.List {
		out = append(out, fe.Code)
	}
	return out
}

func anonTopic(t *testing.T, env *testutil.Env, ip string, forumID int64, title, content string) (*model.TopicDTO, error) {
	t.Helper()
	return env.Topics.Create(env.Ctx, nil, ip, &model.TopicRequest{
		ForumID:         forumID,
		Title:           title,
		Content:         content,
		Nonce:           env.Nonce(t, service.ActionTopicNew, nil, ip),
		AnonymousFields: model.AnonymousFields{Name: "Guest", Email: "guest@example.com"},
	})
}

func TestFloodGuardAnonymousIP(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) {
		c.Forum.AllowAnonymous = true
		c.Forum.ThrottleSeconds = 10
	})
	forum := env.Forum(t, "General")

	_, err := anonTopic(t, env, "10.0.0.1", forum.ID, "First", "first body")
	require.NoError(t, err)

	_, err = anonTopic(t, env, "10.0.0.1", forum.ID, "Second", "second body")
	require.Error(t, err)
	assert.True(t, fieldErrors(t, err).Has(service.CodeFlood))

	// another address is unaffected
	_, err = anonTopic(t, env, "10.0.0.2", forum.ID, "Other", "other body")
	require.NoError(t, err)

	env.Mini.FastForward(11 * time.Second)
	_, err = anonTopic(t, env, "10.0.0.1", forum.ID, "Third", "third body")
	require.NoError(t, err)
}

func TestFloodGuardConcurrentPosts(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) {
		c.Forum.AllowAnonymous = true
		c.Forum.ThrottleSeconds = 10
	})
	forum := env.Forum(t, "General")

	const ip = "10.0.0.7"
	reqs := make([]*model.TopicRequest, 2)
	for i := range reqs {
		reqs[i] = &model.TopicRequest{
			ForumID:         forum.ID,
			Title:           "Race " + itoa(int64(i)),
			Content:         "racing body " + itoa(int64(i)),
			Nonce:           env.Nonce(t, service.ActionTopicNew, nil, ip),
			AnonymousFields: model.AnonymousFields{Name: "Guest", Email: "guest@example.com"},
		}
	}

	errs := make([]error, len(reqs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *model.TopicRequest) {
			defer wg.Done()
			<-start
			_, errs[i] = env.Topics.Create(env.Ctx, nil, ip, req)
		}(i, req)
	}
	close(start)
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	require.Len(t, failed, 1)
	assert.True(t, fieldErrors(t, failed[0]).Has(service.CodeFlood))
	assert.Equal(t, 1, env.ForumRow(t, forum.ID).TopicCount)
}

func TestFloodGuardSkipsModerators(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.ThrottleSeconds = 10 })
	forum := env.Forum(t, "General")
	mod := env.User(t, "mod", model.SiteEditor)
	alice := env.User(t, "alice", model.SiteAuthor)

	topic := env.Topic(t, mod, forum.ID, "One", "one")
	env.Topic(t, mod, forum.ID, "Two", "two")

	env.Reply(t, alice, topic.ID, "first")
	_, err := env.Replies.Create(env.Ctx, alice, "127.0.0.1", &model.ReplyRequest{
		TopicID: topic.ID,
		Content: "second",
		Nonce:   env.Nonce(t, service.ActionReplyNew, alice, "127.0.0.1"),
	})
	assert.True(t, fieldErrors(t, err).Has(service.CodeFlood))
}

func TestFailedInsertReleasesFloodWindow(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) {
		c.Forum.ThrottleSeconds = 10
		c.Forum.OrphanPolicy = config.OrphanFail
	})
	stray := env.Forum(t, "Stray", testutil.Under(777))
	alice := env.User(t, "alice", model.SiteAuthor)

	_, err := env.Topics.Create(env.Ctx, alice, "127.0.0.1", &model.TopicRequest{
		ForumID: stray.ID,
		Title:   "Lost",
		Content: "body",
		Nonce:   env.Nonce(t, service.ActionTopicNew, alice, "127.0.0.1"),
	})
	require.True(t, errors.Is(err, apperr.ErrOrphan))
	assert.False(t, env.Mini.Exists("flood:u:"+itoa(alice.ID)))
}

func TestDuplicateGuard(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")

	env.Reply(t, alice, topic.ID, "me too")
	_, err := env.Replies.Create(env.Ctx, alice, "127.0.0.1", &model.ReplyRequest{
		TopicID: topic.ID,
		Content: "me too",
		Nonce:   env.Nonce(t, service.ActionReplyNew, alice, "127.0.0.1"),
	})
	require.Error(t, err)
	assert.Equal(t, []string{service.CodeDuplicate}, codes(fieldErrors(t, err)))

	// same words from someone else are fine
	env.Reply(t, bob, topic.ID, "me too")

	_, err = env.Topics.Create(env.Ctx, alice, "127.0.0.1", &model.TopicRequest{
		ForumID: forum.ID,
		Title:   "Hello again",
		Content: "body",
		Nonce:   env.Nonce(t, service.ActionTopicNew, alice, "127.0.0.1"),
	})
	assert.True(t, fieldErrors(t, err).Has(service.CodeDuplicate))
}

func TestGuardAccumulatesInOrder(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.BlacklistKeys = []string{"casino"} })
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)

	_, err := env.Topics.Create(env.Ctx, alice, "127.0.0.1", &model.TopicRequest{
		ForumID: forum.ID,
		Title:   "",
		Content: "best casino",
		Nonce:   "forged",
	})
	require.Error(t, err)
	list := fieldErrors(t, err)
	assert.Equal(t, []string{service.CodeBadNonce, service.CodeEmptyTitle, service.CodeBlacklist}, codes(list))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	n, err := env.Repos().Topics.CountByForum(env.Ctx, forum.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGuardPermissionAborts(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	watcher := env.User(t, "watcher", model.SiteSubscriber)
	watcher.ForumRole = string(service.RoleSpectator)

	_, err := env.Topics.Create(env.Ctx, watcher, "127.0.0.1", &model.TopicRequest{
		ForumID: forum.ID,
		Title:   "Hi",
		Content: "body",
		Nonce:   env.Nonce(t, service.ActionTopicNew, watcher, "127.0.0.1"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	// guests are refused unless anonymous posting is on
	_, err = anonTopic(t, env, "10.0.0.9", forum.ID, "Hi", "body")
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
}

func TestGuardForumRules(t *testing.T) {
	env := testutil.New(t)
	cat := env.Forum(t, "Lounge", testutil.Category())
	closed := env.Forum(t, "Archive", testutil.Closed())
	under := env.Forum(t, "Archive Child", testutil.Under(closed.ID))
	hidden := env.Forum(t, "Staff", testutil.WithVisibility(model.VisibilityHidden))
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	post := func(u *model.User, forumID int64) error {
		_, err := env.Topics.Create(env.Ctx, u, "127.0.0.1", &model.TopicRequest{
			ForumID: forumID,
			Title:   "Hi",
			Content: "body " + itoa(forumID),
			Nonce:   env.Nonce(t, service.ActionTopicNew, u, "127.0.0.1"),
		})
		return err
	}

	assert.Equal(t, []string{service.CodeForumCategory}, codes(fieldErrors(t, post(alice, cat.ID))))
	assert.Equal(t, []string{service.CodeForumClosed}, codes(fieldErrors(t, post(alice, closed.ID))))
	assert.Equal(t, []string{service.CodeForumClosed}, codes(fieldErrors(t, post(alice, under.ID))))
	assert.Equal(t, []string{service.CodeMissingForum}, codes(fieldErrors(t, post(alice, hidden.ID))))
	assert.Equal(t, []string{service.CodeMissingForum}, codes(fieldErrors(t, post(alice, 31337))))

	// moderators may post into closed and hidden forums
	require.NoError(t, post(mod, closed.ID))
	require.NoError(t, post(mod, hidden.ID))
}

func TestGuardClosedTopic(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)
	topic := env.Topic(t, alice, forum.ID, "Hello", "body")
	_, err := env.Moderation.TopicTransition(env.Ctx, mod, topic.ID, service.ActionClose)
	require.NoError(t, err)

	_, err = env.Replies.Create(env.Ctx, alice, "127.0.0.1", &model.ReplyRequest{
		TopicID: topic.ID,
		Content: "late",
		Nonce:   env.Nonce(t, service.ActionReplyNew, alice, "127.0.0.1"),
	})
	assert.Equal(t, []string{service.CodeTopicClosed}, codes(fieldErrors(t, err)))

	env.Reply(t, mod, topic.ID, "moderators still can")
}

func TestGuardAnonymousFields(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.AllowAnonymous = true })
	forum := env.Forum(t, "General")

	_, err := env.Topics.Create(env.Ctx, nil, "10.0.0.1", &model.TopicRequest{
		ForumID:         forum.ID,
		Title:           "Hi",
		Content:         "body",
		Nonce:           env.Nonce(t, service.ActionTopicNew, nil, "10.0.0.1"),
		AnonymousFields: model.AnonymousFields{Email: "not-an-email"},
	})
	assert.Equal(t, []string{service.CodeAnonymousName, service.CodeAnonymousEmail}, codes(fieldErrors(t, err)))
}

func TestNonceBoundToActionAndActor(t *testing.T) {
	env := testutil.New(t)
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	bob := env.User(t, "bob", model.SiteAuthor)

	for _, tok := range []string{
		env.Nonce(t, service.ActionReplyNew, alice, "127.0.0.1"),
		env.Nonce(t, service.ActionTopicNew, bob, "127.0.0.1"),
	} {
		_, err := env.Topics.Create(env.Ctx, alice, "127.0.0.1", &model.TopicRequest{
			ForumID: forum.ID, Title: "Hi", Content: "body", Nonce: tok,
		})
		assert.Equal(t, []string{service.CodeBadNonce}, codes(fieldErrors(t, err)))
	}
}

func TestModerationHoldsPosts(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) {
		c.Forum.MaxLinks = 1
		c.Forum.ModerationKeys = []string{"crypto"}
		c.Forum.AllowAnonymous = true
		c.Forum.ModerateGuests = true
	})
	forum := env.Forum(t, "General")
	alice := env.User(t, "alice", model.SiteAuthor)
	mod := env.User(t, "mod", model.SiteEditor)

	links := env.Topic(t, alice, forum.ID, "Links", "see https://a.example and https://b.example")
	assert.Equal(t, model.StatusPending, links.Status)

	keyed := env.Topic(t, alice, forum.ID, "Crypto news", "body")
	assert.Equal(t, model.StatusPending, keyed.Status)

	guest, err := anonTopic(t, env, "10.0.0.1", forum.ID, "Guest", "plain")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, guest.Status)

	modPost := env.Topic(t, mod, forum.ID, "Crypto rules", "https://a.example https://b.example")
	assert.Equal(t, model.StatusPublish, modPost.Status)

	f := env.ForumRow(t, forum.ID)
	assert.Equal(t, 1, f.TopicCount)
	assert.Equal(t, 3, f.TopicCountHidden)
}

func TestBlacklistSkipsKeymaster(t *testing.T) {
	env := testutil.New(t, func(c *config.Config) { c.Forum.BlacklistKeys = []string{"casino"} })
	forum := env.Forum(t, "General")
	admin := env.User(t, "admin", model.SiteAdministrator)

	dto := env.Topic(t, admin, forum.ID, "Casino night", "staff party")
	assert.Equal(t, model.StatusPublish, dto.Status)
}
