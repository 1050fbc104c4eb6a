package service

import (
	"context"
	"net/mail"
	"strings"
	"unicode/utf8"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/markup"
	"barebones/internal/pkg/metrics"
	"barebones/internal/pkg/nonce"
	"barebones/internal/repository"
)

// Nonce actions
const (
	ActionTopicNew  = "topic-new"
	ActionReplyNew  = "reply-new"
	ActionTopicEdit = "topic-edit"
	ActionReplyEdit = "reply-edit"
)

// Guard error codes
const (
	CodeBadNonce       = "bad_nonce"
	CodeEmptyTitle     = "empty_title"
	CodeTitleTooLong   = "title_too_long"
	CodeEmptyContent   = "empty_content"
	CodeMissingForum   = "missing_forum"
	CodeForumCategory  = "forum_is_category"
	CodeForumClosed    = "forum_closed"
	CodeMissingTopic   = "missing_topic"
	CodeTopicClosed    = "topic_closed"
	CodeAnonymousName  = "anonymous_name"
	CodeAnonymousEmail = "anonymous_email"
	CodeBadReplyTo     = "bad_reply_to"
	CodeFlood          = "flood"
	CodeDuplicate      = "duplicate"
	CodeBlacklist      = "blacklist"
)

// Submission is a new topic or reply as it arrives, before any write.
type Submission struct {
	Type    model.PostType
	Nonce   string
	User    *model.User // nil for anonymous
	Author  model.Author
	ForumID int64 // topics
	TopicID int64 // replies
	ReplyTo int64
	Title   string
	Content string
}

// Verdict is what the guard resolved while checking a submission.
type Verdict struct {
	Status model.Status
	Forum  *model.Forum
	Topic  *model.Topic
	// actor holds the flood reservation, empty when exempt
	actor string
}

// Guard runs the pre-insert checks in their fixed order.
type Guard struct {
	cfg    config.ForumConfig
	caps   *Capabilities
	nonces *nonce.Issuer
	flood  *FloodGate
}

// NewGuard 创建发帖守卫
func NewGuard(cfg config.ForumConfig, caps *Capabilities, nonces *nonce.Issuer, flood *FloodGate) *Guard {
	return &Guard{cfg: cfg, caps: caps, nonces: nonces, flood: flood}
}

// Check validates sub. Validation and policy problems accumulate into one
// *apperr.Errors; permission and storage failures return at once. On success
// the flood window has been reserved and must be released with Release if
// the insert fails.
func (g *Guard) Check(ctx context.Context, r *repository.Repos, sub *Submission) (*Verdict, error) {
	var errs apperr.Errors
	v := &Verdict{Status: model.StatusPublish}

	// 1. nonce
	action := ActionTopicNew
	if sub.Type == model.PostReply {
		action = ActionReplyNew
	}
	if err := g.nonces.Verify(sub.Nonce, action, sub.Author.ActorKey()); err != nil {
		errs.Validation(CodeBadNonce, "Are you sure you wanted to do that?")
	}

	// 2. capability
	if err := g.checkCapability(sub); err != nil {
		g.reject(sub, apperr.KindPermission, "capability")
		return nil, err
	}

	// 3. fields and parents
	if err := g.checkFields(ctx, r, sub, v, &errs); err != nil {
		return nil, err
	}

	// 4. flood
	exempt := g.caps.Can(sub.User, CapThrottle)
	if !exempt {
		recent, err := g.flood.Recent(ctx, sub.Author.ActorKey())
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if recent {
			errs.Policy(CodeFlood, "Slow down; you move too fast.")
		}
	}

	// 5. duplicate
	if !g.caps.IsKeymaster(sub.User) && sub.Content != "" {
		dup, err := g.isDuplicate(ctx, r, sub)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if dup {
			errs.Policy(CodeDuplicate, "Duplicate post detected; it looks as though you've already said that.")
		}
	}

	// 6. blacklist and 7. moderation
	v.Status = g.checkContent(sub, &errs)

	if !errs.Empty() {
		for _, fe := range errs.List {
			g.reject(sub, fe.Kind, fe.Code)
		}
		return nil, &errs
	}

	if !exempt {
		ok, err := g.flood.Reserve(ctx, sub.Author.ActorKey())
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if !ok {
			errs.Policy(CodeFlood, "Slow down; you move too fast.")
			g.reject(sub, apperr.KindPolicy, CodeFlood)
			return nil, &errs
		}
		v.actor = sub.Author.ActorKey()
	}
	return v, nil
}

// Release returns a flood reservation after a failed insert
func (g *Guard) Release(ctx context.Context, v *Verdict) {
	if v == nil || v.actor == "" {
		return
	}
	if err := g.flood.Release(ctx, v.actor); err != nil {
		logger.Warn("flood release failed", logger.String("actor", v.actor), logger.ErrorField(err))
	}
}

// CheckEdit re-runs nonce, field, blacklist and moderation checks on an edit.
// It returns the status the edited post should hold.
func (g *Guard) CheckEdit(sub *Submission, current model.Status) (model.Status, error) {
	var errs apperr.Errors
	action := ActionTopicEdit
	if sub.Type == model.PostReply {
		action = ActionReplyEdit
	}
	if err := g.nonces.Verify(sub.Nonce, action, sub.Author.ActorKey()); err != nil {
		errs.Validation(CodeBadNonce, "Are you sure you wanted to do that?")
	}
	if sub.Type == model.PostTopic {
		g.checkTitle(sub.Title, &errs)
	}
	if strings.TrimSpace(sub.Content) == "" {
		errs.Validation(CodeEmptyContent, "Your post cannot be empty.")
	}
	status := g.checkContent(sub, &errs)
	if !errs.Empty() {
		for _, fe := range errs.List {
			g.reject(sub, fe.Kind, fe.Code)
		}
		return current, &errs
	}
	if status == model.StatusPending && current.IsPublic() {
		return model.StatusPending, nil
	}
	return current, nil
}

func (g *Guard) reject(sub *Submission, kind apperr.Kind, code string) {
	metrics.GuardRejections.WithLabelValues(string(kind), code).Inc()
	logger.Info("post rejected",
		logger.String("type", string(sub.Type)),
		logger.String("kind", string(kind)),
		logger.String("code", code),
		logger.String("actor", sub.Author.ActorKey()))
}

func (g *Guard) checkCapability(sub *Submission) error {
	if sub.User == nil {
		if !g.cfg.AllowAnonymous {
			return apperr.Forbidden("You must be logged in to post.")
		}
		return nil
	}
	need := CapPublishTopics
	if sub.Type == model.PostReply {
		need = CapPublishReplies
	}
	if !g.caps.Can(sub.User, need) {
		return apperr.Forbidden("You do not have permission to post here.")
	}
	return nil
}

func (g *Guard) checkTitle(title string, errs *apperr.Errors) {
	title = strings.TrimSpace(title)
	if title == "" {
		errs.Validation(CodeEmptyTitle, "Your topic needs a title.")
	} else if g.cfg.MaxTitleLength > 0 && utf8.RuneCountInString(title) > g.cfg.MaxTitleLength {
		errs.Validation(CodeTitleTooLong, "Your title is too long.")
	}
}

func (g *Guard) checkFields(ctx context.Context, r *repository.Repos, sub *Submission, v *Verdict, errs *apperr.Errors) error {
	if sub.Type == model.PostTopic {
		g.checkTitle(sub.Title, errs)
	}
	if strings.TrimSpace(sub.Content) == "" {
		errs.Validation(CodeEmptyContent, "Your post cannot be empty.")
	}
	if sub.User == nil {
		if strings.TrimSpace(sub.Author.AnonymousName) == "" {
			errs.Validation(CodeAnonymousName, "Please enter your name.")
		}
		if _, err := mail.ParseAddress(sub.Author.AnonymousEmail); err != nil {
			errs.Validation(CodeAnonymousEmail, "Please enter a valid email address.")
		}
	}

	moderator := g.caps.Can(sub.User, CapModerate)
	forumID := sub.ForumID

	if sub.Type == model.PostReply {
		topic, err := r.Topics.GetByID(ctx, sub.TopicID)
		if err != nil {
			return apperr.Storage(err)
		}
		switch {
		case topic == nil, topic.Status == model.StatusTrash, topic.Status == model.StatusSpam:
			errs.Validation(CodeMissingTopic, "Topic does not exist.")
			return nil
		case topic.Status == model.StatusClosed && !moderator:
			errs.Validation(CodeTopicClosed, "This topic is closed to new replies.")
		case topic.Status == model.StatusPending && !moderator:
			errs.Validation(CodeMissingTopic, "Topic does not exist.")
			return nil
		}
		v.Topic = topic
		forumID = topic.ForumID

		if sub.ReplyTo != 0 {
			parent, err := r.Replies.GetByID(ctx, sub.ReplyTo)
			if err != nil {
				return apperr.Storage(err)
			}
			if parent == nil || parent.TopicID != topic.ID {
				errs.Validation(CodeBadReplyTo, "The reply you are answering is not in this topic.")
			}
		}
	}

	forum, err := r.Forums.GetByID(ctx, forumID)
	if err != nil {
		return apperr.Storage(err)
	}
	if forum == nil {
		errs.Validation(CodeMissingForum, "Forum does not exist.")
		return nil
	}
	visible, err := g.caps.CanViewForum(ctx, r.Forums, sub.User, forum, true)
	if err != nil {
		return apperr.Storage(err)
	}
	if !visible {
		errs.Validation(CodeMissingForum, "Forum does not exist.")
		return nil
	}
	v.Forum = forum

	if sub.Type == model.PostTopic && forum.IsCategory() {
		errs.Validation(CodeForumCategory, "This forum is a category. No topics can be created in it.")
	}
	if !moderator {
		closed, err := IsForumClosed(ctx, r.Forums, forum, true)
		if err != nil {
			return apperr.Storage(err)
		}
		if closed {
			errs.Validation(CodeForumClosed, "This forum has been closed to new posts.")
		}
	}
	return nil
}

func (g *Guard) isDuplicate(ctx context.Context, r *repository.Repos, sub *Submission) (bool, error) {
	if sub.Type == model.PostReply {
		if sub.TopicID == 0 {
			return false, nil
		}
		return r.Replies.FindDuplicate(ctx, sub.TopicID, sub.Author, sub.Content)
	}
	if sub.ForumID == 0 {
		return false, nil
	}
	return r.Topics.FindDuplicate(ctx, sub.ForumID, sub.Author, sub.Content)
}

// checkContent runs the blacklist then the moderation check and returns the
// status a passing post should take.
func (g *Guard) checkContent(sub *Submission, errs *apperr.Errors) model.Status {
	fields := []string{sub.Title, sub.Content, sub.Author.AnonymousName, sub.Author.AnonymousEmail,
		sub.Author.AnonymousWebsite, sub.Author.AuthorIP}
	if sub.User != nil {
		fields = append(fields, sub.User.Username, sub.User.Email)
	}

	if !g.caps.IsKeymaster(sub.User) {
		if key, hit := matchKeys(g.cfg.BlacklistKeys, fields...); hit {
			logger.Debug("blacklist match", logger.String("key", key))
			errs.Policy(CodeBlacklist, "Your post cannot be created at this time.")
		}
	}

	if g.caps.Can(sub.User, CapModerate) {
		return model.StatusPublish
	}
	if sub.User == nil && g.cfg.ModerateGuests {
		return model.StatusPending
	}
	if _, hit := matchKeys(g.cfg.ModerationKeys, fields...); hit {
		return model.StatusPending
	}
	if g.cfg.MaxLinks > 0 && markup.CountLinks(sub.Title+" "+sub.Content) > g.cfg.MaxLinks {
		return model.StatusPending
	}
	return model.StatusPublish
}

// matchKeys does a case-insensitive substring match of every non-empty key
// against every field.
func matchKeys(keys []string, fields ...string) (string, bool) {
	for _, key := range keys {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		for _, f := range fields {
			if f != "" && strings.Contains(strings.ToLower(f), k) {
				return key, true
			}
		}
	}
	return "", false
}
