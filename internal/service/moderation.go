package service

import (
	"context"
	"time"

	"barebones/internal/core/logger"
	"barebones/internal/event"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/metrics"
	"barebones/internal/repository"
)

// Action is a moderation transition
type Action string

const (
	ActionApprove   Action = "approve"
	ActionUnapprove Action = "unapprove"
	ActionClose     Action = "close" // topics only
	ActionOpen      Action = "open"  // topics only
	ActionSpam      Action = "spam"
	ActionUnspam    Action = "unspam"
	ActionTrash     Action = "trash"
	ActionUntrash   Action = "untrash"
	ActionDelete    Action = "delete"
)

// ParseAction 解析动作, false for unknown names
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionApprove, ActionUnapprove, ActionClose, ActionOpen, ActionSpam,
		ActionUnspam, ActionTrash, ActionUntrash, ActionDelete:
		return a, true
	}
	return "", false
}

// ModerationService applies status transitions to topics and replies. Each
// transition and the counter walk it triggers commit together.
type ModerationService struct {
	store  *repository.Store
	walker *Walker
	caps   *Capabilities
	bus    *event.Bus
}

// NewModerationService 创建审核服务
func NewModerationService(store *repository.Store, walker *Walker, caps *Capabilities, bus *event.Bus) *ModerationService {
	return &ModerationService{store: store, walker: walker, caps: caps, bus: bus}
}

// restoreStatus is the status a post returns to from spam or trash.
func restoreStatus(prior model.Status) model.Status {
	switch prior {
	case model.StatusPublish, model.StatusClosed, model.StatusPending, model.StatusSpam:
		return prior
	}
	return model.StatusPublish
}

// TopicTransition applies action to a topic. The returned topic is nil after
// a delete.
func (s *ModerationService) TopicTransition(ctx context.Context, user *model.User, topicID int64, action Action) (*model.Topic, error) {
	if !s.caps.Can(user, CapModerate) {
		return nil, apperr.ErrForbidden
	}

	var (
		out     *model.Topic
		forumID int64
		changed bool
		public  bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		t, err := r.Topics.GetByID(ctx, topicID)
		if err != nil {
			return err
		}
		if t == nil {
			return apperr.ErrTopicNotFound
		}
		out, forumID = t, t.ForumID

		changed, err = s.applyTopic(ctx, r, t, action)
		if err != nil || !changed {
			return err
		}

		if action == ActionDelete {
			out = nil
			return s.walker.RefreshForum(ctx, r, t.ForumID)
		}
		t.UpdatedAt = time.Now().Unix()
		if err := r.Topics.Update(ctx, t); err != nil {
			return err
		}
		if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: t.ID, ForumID: t.ForumID, Refresh: true}); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, t.ForumID, t.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return out, nil
	}

	metrics.Transitions.WithLabelValues(string(model.PostTopic), string(action)).Inc()
	var preSpammed, preTrashed model.IDList
	if out != nil {
		preSpammed, preTrashed = out.PreSpammedReplies, out.PreTrashedReplies
	}
	logger.Info("topic status changed",
		logger.Int64("topic_id", topicID),
		logger.String("action", string(action)),
		logger.Int64("moderator", user.ID),
		logger.Int64s("pre_spammed", preSpammed),
		logger.Int64s("pre_trashed", preTrashed))

	e := event.Event{Type: event.TopicStatusChanged, ForumID: forumID, TopicID: topicID, Action: string(action), Public: public}
	if out != nil {
		e.Status = string(out.Status)
	}
	s.bus.Publish(ctx, e)
	return out, nil
}

// applyTopic mutates t (and its replies) in memory and in r. It reports
// false for idempotent no-ops.
func (s *ModerationService) applyTopic(ctx context.Context, r *repository.Repos, t *model.Topic, action Action) (bool, error) {
	switch action {
	case ActionApprove:
		if t.Status != model.StatusPending {
			return false, apperr.ErrInvalidTransition
		}
		t.Status = model.StatusPublish

	case ActionUnapprove:
		if !t.Status.IsPublic() {
			return false, apperr.ErrInvalidTransition
		}
		t.Status = model.StatusPending

	case ActionClose:
		if t.Status != model.StatusPublish {
			return false, apperr.ErrInvalidTransition
		}
		t.Status = model.StatusClosed

	case ActionOpen:
		if t.Status != model.StatusClosed {
			return false, apperr.ErrInvalidTransition
		}
		t.Status = model.StatusPublish

	case ActionSpam:
		if t.Status == model.StatusSpam {
			return false, nil
		}
		if t.Status == model.StatusTrash {
			return false, apperr.ErrInvalidTransition
		}
		pre, err := sweepReplies(ctx, r, t.ID, model.StatusSpam)
		if err != nil {
			return false, err
		}
		t.PreSpammedReplies = pre
		t.PriorStatus = t.Status
		t.Status = model.StatusSpam

	case ActionUnspam:
		if t.Status != model.StatusSpam {
			return false, apperr.ErrInvalidTransition
		}
		if err := restoreReplies(ctx, r, t.ID, model.StatusSpam, t.PreSpammedReplies); err != nil {
			return false, err
		}
		t.PreSpammedReplies = nil
		t.Status = restoreStatus(t.PriorStatus)
		t.PriorStatus = ""

	case ActionTrash:
		if t.Status == model.StatusTrash {
			return false, nil
		}
		pre, err := sweepReplies(ctx, r, t.ID, model.StatusTrash)
		if err != nil {
			return false, err
		}
		t.PreTrashedReplies = pre
		t.TrashPriorStatus = t.Status
		t.Status = model.StatusTrash

	case ActionUntrash:
		if t.Status != model.StatusTrash {
			return false, apperr.ErrInvalidTransition
		}
		if err := restoreReplies(ctx, r, t.ID, model.StatusTrash, t.PreTrashedReplies); err != nil {
			return false, err
		}
		t.PreTrashedReplies = nil
		t.Status = restoreStatus(t.TrashPriorStatus)
		t.TrashPriorStatus = ""

	case ActionDelete:
		if t.Status != model.StatusTrash {
			return false, apperr.ErrInvalidTransition
		}
		return true, deleteTopic(ctx, r, t.ID)

	default:
		return false, apperr.ErrInvalidTransition
	}
	return true, nil
}

// sweepReplies moves every reply of the topic that is not already spam or
// trash into to, and returns the ids that already were.
func sweepReplies(ctx context.Context, r *repository.Repos, topicID int64, to model.Status) (model.IDList, error) {
	replies, err := r.Replies.AllByTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	var pre model.IDList
	now := time.Now().Unix()
	for _, rep := range replies {
		if rep.Status == model.StatusSpam || rep.Status == model.StatusTrash {
			pre = append(pre, rep.ID)
			continue
		}
		*replyPrior(rep, to) = rep.Status
		rep.Status = to
		rep.UpdatedAt = now
		if err := r.Replies.Update(ctx, rep); err != nil {
			return nil, err
		}
	}
	return pre, nil
}

// restoreReplies undoes sweepReplies, leaving the replies in pre untouched.
func restoreReplies(ctx context.Context, r *repository.Repos, topicID int64, from model.Status, pre model.IDList) error {
	replies, err := r.Replies.AllByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, rep := range replies {
		if rep.Status != from || pre.Contains(rep.ID) {
			continue
		}
		prior := replyPrior(rep, from)
		rep.Status = restoreStatus(*prior)
		*prior = ""
		rep.UpdatedAt = now
		if err := r.Replies.Update(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}

// replyPrior is the field holding a reply's status from before it entered
// spam or trash. The two are kept apart so a spam post can be trashed and
// restored without losing where it came from.
func replyPrior(rep *model.Reply, to model.Status) *model.Status {
	if to == model.StatusTrash {
		return &rep.TrashPriorStatus
	}
	return &rep.PriorStatus
}

// deleteTopic removes a topic with its replies, revisions and tag links.
func deleteTopic(ctx context.Context, r *repository.Repos, topicID int64) error {
	replies, err := r.Replies.AllByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	for _, rep := range replies {
		if err := r.Revisions.DeleteByPost(ctx, model.PostReply, rep.ID); err != nil {
			return err
		}
	}
	if err := r.Replies.DeleteByTopic(ctx, topicID); err != nil {
		return err
	}
	if err := r.Revisions.DeleteByPost(ctx, model.PostTopic, topicID); err != nil {
		return err
	}
	tagIDs, err := r.TopicTags.GetByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	for _, id := range tagIDs {
		if err := r.Tags.AddTopics(ctx, id, -1); err != nil {
			return err
		}
	}
	if err := r.TopicTags.DeleteByTopic(ctx, topicID); err != nil {
		return err
	}
	return r.Topics.Delete(ctx, topicID)
}

// ReplyTransition applies action to a reply. The returned reply is nil after
// a delete.
func (s *ModerationService) ReplyTransition(ctx context.Context, user *model.User, replyID int64, action Action) (*model.Reply, error) {
	if !s.caps.Can(user, CapModerate) {
		return nil, apperr.ErrForbidden
	}

	var (
		out              *model.Reply
		topicID, forumID int64
		changed          bool
		public           bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		rep, err := r.Replies.GetByID(ctx, replyID)
		if err != nil {
			return err
		}
		if rep == nil {
			return apperr.ErrReplyNotFound
		}
		out, topicID, forumID = rep, rep.TopicID, rep.ForumID

		changed, err = applyReply(rep, action)
		if err != nil || !changed {
			return err
		}

		if action == ActionDelete {
			out = nil
			if err := r.Revisions.DeleteByPost(ctx, model.PostReply, rep.ID); err != nil {
				return err
			}
			if err := r.Replies.Delete(ctx, rep.ID); err != nil {
				return err
			}
		} else {
			rep.UpdatedAt = time.Now().Unix()
			if err := r.Replies.Update(ctx, rep); err != nil {
				return err
			}
		}
		if err := s.walker.UpdateReplyWalk(ctx, r, WalkInput{TopicID: rep.TopicID, ForumID: rep.ForumID, Refresh: true}); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, rep.ForumID, rep.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return out, nil
	}

	metrics.Transitions.WithLabelValues(string(model.PostReply), string(action)).Inc()
	logger.Info("reply status changed",
		logger.Int64("reply_id", replyID),
		logger.String("action", string(action)),
		logger.Int64("moderator", user.ID))

	e := event.Event{Type: event.ReplyStatusChanged, ForumID: forumID, TopicID: topicID, ReplyID: replyID,
		Action: string(action), Public: public && out != nil}
	if out != nil {
		e.Status = string(out.Status)
	}
	s.bus.Publish(ctx, e)
	return out, nil
}

func applyReply(rep *model.Reply, action Action) (bool, error) {
	switch action {
	case ActionApprove:
		if rep.Status != model.StatusPending {
			return false, apperr.ErrInvalidTransition
		}
		rep.Status = model.StatusPublish
	case ActionUnapprove:
		if rep.Status != model.StatusPublish {
			return false, apperr.ErrInvalidTransition
		}
		rep.Status = model.StatusPending
	case ActionSpam:
		if rep.Status == model.StatusSpam {
			return false, nil
		}
		if rep.Status == model.StatusTrash {
			return false, apperr.ErrInvalidTransition
		}
		rep.PriorStatus = rep.Status
		rep.Status = model.StatusSpam
	case ActionUnspam:
		if rep.Status != model.StatusSpam {
			return false, apperr.ErrInvalidTransition
		}
		rep.Status = restoreStatus(rep.PriorStatus)
		rep.PriorStatus = ""
	case ActionTrash:
		if rep.Status == model.StatusTrash {
			return false, nil
		}
		rep.TrashPriorStatus = rep.Status
		rep.Status = model.StatusTrash
	case ActionUntrash:
		if rep.Status != model.StatusTrash {
			return false, apperr.ErrInvalidTransition
		}
		rep.Status = restoreStatus(rep.TrashPriorStatus)
		rep.TrashPriorStatus = ""
	case ActionDelete:
		if rep.Status != model.StatusTrash {
			return false, apperr.ErrInvalidTransition
		}
	default:
		return false, apperr.ErrInvalidTransition
	}
	return true, nil
}

// isPublicPost reports whether a post in status under forumID is visible to
// guests.
func isPublicPost(ctx context.Context, r *repository.Repos, forumID int64, status model.Status) (bool, error) {
	if !status.IsPublic() {
		return false, nil
	}
	forum, err := r.Forums.GetByID(ctx, forumID)
	if err != nil || forum == nil {
		return false, err
	}
	chain, err := Ancestors(ctx, r.Forums, forum)
	if err != nil {
		return false, err
	}
	return EffectiveVisibility(forum, chain) == model.VisibilityPublic, nil
}
