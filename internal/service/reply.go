package service

import (
	"context"
	"strings"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
	"barebones/internal/core/snowflake"
	"barebones/internal/event"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/markup"
	"barebones/internal/pkg/metrics"
	"barebones/internal/repository"
)

// ReplyService 回复业务服务
type ReplyService struct {
	cfg    config.ForumConfig
	store  *repository.Store
	guard  *Guard
	walker *Walker
	caps   *Capabilities
	forums ForumGetter
	bus    *event.Bus
}

// NewReplyService 创建ReplyService实例
func NewReplyService(cfg config.ForumConfig, store *repository.Store, guard *Guard, walker *Walker, caps *Capabilities, forums ForumGetter, bus *event.Bus) *ReplyService {
	return &ReplyService{cfg: cfg, store: store, guard: guard, walker: walker, caps: caps, forums: forums, bus: bus}
}

// Create 发布回复. The reply takes the next position in its topic.
func (s *ReplyService) Create(ctx context.Context, user *model.User, ip string, req *model.ReplyRequest) (*model.ReplyDTO, error) {
	sub := &Submission{
		Type:    model.PostReply,
		Nonce:   req.Nonce,
		User:    user,
		Author:  authorFor(user, ip, req.AnonymousFields),
		TopicID: req.TopicID,
		ReplyTo: req.ReplyTo,
		Content: strings.TrimSpace(req.Content),
	}

	var (
		reply   *model.Reply
		verdict *Verdict
		public  bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		verdict, err = s.guard.Check(ctx, r, sub)
		if err != nil {
			return err
		}

		pos, err := r.Replies.MaxPosition(ctx, verdict.Topic.ID)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		reply = &model.Reply{
			ID:        snowflake.Generate(),
			TopicID:   verdict.Topic.ID,
			ForumID:   verdict.Topic.ForumID,
			ReplyTo:   sub.ReplyTo,
			Content:   sub.Content,
			Author:    sub.Author,
			Status:    verdict.Status,
			MenuOrder: pos + 1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.Replies.Create(ctx, reply); err != nil {
			return err
		}
		if err := s.walker.UpdateReplyWalk(ctx, r, WalkInput{ReplyID: reply.ID, TopicID: reply.TopicID,
			ForumID: reply.ForumID, LastActiveTime: now}); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, reply.ForumID, reply.Status)
		return err
	})
	if err != nil {
		s.guard.Release(ctx, verdict)
		return nil, err
	}

	metrics.PostsCreated.WithLabelValues(string(model.PostReply), string(reply.Status)).Inc()
	logger.Info("reply created",
		logger.Int64("reply_id", reply.ID),
		logger.Int64("topic_id", reply.TopicID),
		logger.String("status", string(reply.Status)))
	s.bus.Publish(ctx, event.Event{Type: event.ReplyCreated, ForumID: reply.ForumID, TopicID: reply.TopicID,
		ReplyID: reply.ID, UserID: reply.AuthorID, Status: string(reply.Status), Public: public})

	dto := reply.ToDTO()
	dto.Rendered = markup.Render(reply.Content)
	return dto, nil
}

// Get 获取单条回复
func (s *ReplyService) Get(ctx context.Context, user *model.User, id int64) (*model.ReplyDTO, error) {
	reply, err := s.store.Repos().Replies.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if reply == nil {
		return nil, apperr.ErrReplyNotFound
	}
	if err := s.checkReadable(ctx, user, reply); err != nil {
		return nil, err
	}
	dto := reply.ToDTO()
	dto.Rendered = markup.Render(reply.Content)
	return dto, nil
}

func (s *ReplyService) checkReadable(ctx context.Context, user *model.User, reply *model.Reply) error {
	topic, err := s.store.Repos().Topics.GetByID(ctx, reply.TopicID)
	if err != nil {
		return apperr.Storage(err)
	}
	if topic == nil || !s.caps.CanReadPost(user, topic.Status, topic.AuthorID) {
		return apperr.ErrReplyNotFound
	}
	forum, err := s.forums.GetByID(ctx, reply.ForumID)
	if err != nil {
		return apperr.Storage(err)
	}
	ok, err := s.caps.CanViewForum(ctx, s.forums, user, forum, true)
	if err != nil {
		return apperr.Storage(err)
	}
	if !ok || !s.caps.CanReadPost(user, reply.Status, reply.AuthorID) {
		return apperr.ErrReplyNotFound
	}
	return nil
}

// ListByTopic 主题回复列表, in position order
func (s *ReplyService) ListByTopic(ctx context.Context, user *model.User, topicID int64, offset, limit int) ([]*model.ReplyDTO, error) {
	r := s.store.Repos()
	topic, err := r.Topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if topic == nil {
		return nil, apperr.ErrTopicNotFound
	}
	forum, err := s.forums.GetByID(ctx, topic.ForumID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	ok, err := s.caps.CanViewForum(ctx, s.forums, user, forum, true)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !ok || !s.caps.CanReadPost(user, topic.Status, topic.AuthorID) {
		return nil, apperr.ErrTopicNotFound
	}

	replies, err := r.Replies.GetByTopic(ctx, topicID, s.caps.VisibleStatuses(user, model.PostReply), offset, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	list := make([]*model.ReplyDTO, 0, len(replies))
	for _, rep := range replies {
		dto := rep.ToDTO()
		dto.Rendered = markup.Render(rep.Content)
		list = append(list, dto)
	}
	return list, nil
}

// Edit 编辑回复
func (s *ReplyService) Edit(ctx context.Context, user *model.User, ip string, id int64, req *model.EditRequest) (*model.ReplyDTO, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	var (
		reply  *model.Reply
		public bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		reply, err = r.Replies.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if reply == nil {
			return apperr.ErrReplyNotFound
		}
		if !s.caps.CanEditPost(user, model.PostReply, reply.Author, reply.CreatedAt, s.cfg.EditLockMinutes, time.Now()) {
			return apperr.ErrForbidden
		}

		sub := &Submission{
			Type:    model.PostReply,
			Nonce:   req.Nonce,
			User:    user,
			Author:  model.Author{AuthorID: user.ID, AuthorIP: ip},
			TopicID: reply.TopicID,
			Content: strings.TrimSpace(req.Content),
		}
		status, err := s.guard.CheckEdit(sub, reply.Status)
		if err != nil {
			return err
		}

		if s.cfg.AllowRevisions && sub.Content != reply.Content {
			if err := r.Revisions.Create(ctx, &model.Revision{
				ID:        snowflake.Generate(),
				PostID:    reply.ID,
				PostType:  model.PostReply,
				AuthorID:  user.ID,
				Reason:    strings.TrimSpace(req.Reason),
				Content:   reply.Content,
				CreatedAt: time.Now().Unix(),
			}); err != nil {
				return err
			}
		}

		statusChanged := status != reply.Status
		reply.Content = sub.Content
		reply.Status = status
		reply.UpdatedAt = time.Now().Unix()
		if err := r.Replies.Update(ctx, reply); err != nil {
			return err
		}
		if statusChanged {
			if err := s.walker.UpdateReplyWalk(ctx, r, WalkInput{TopicID: reply.TopicID, ForumID: reply.ForumID, Refresh: true}); err != nil {
				return err
			}
		}
		public, err = isPublicPost(ctx, r, reply.ForumID, reply.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.Event{Type: event.PostEdited, ForumID: reply.ForumID, TopicID: reply.TopicID,
		ReplyID: reply.ID, UserID: user.ID, Status: string(reply.Status), Public: public})
	dto := reply.ToDTO()
	dto.Rendered = markup.Render(reply.Content)
	return dto, nil
}

// Revisions 回复编辑记录
func (s *ReplyService) Revisions(ctx context.Context, user *model.User, id int64) ([]*model.Revision, error) {
	r := s.store.Repos()
	reply, err := r.Replies.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if reply == nil {
		return nil, apperr.ErrReplyNotFound
	}
	if err := s.checkReadable(ctx, user, reply); err != nil {
		return nil, err
	}
	revs, err := r.Revisions.ListByPost(ctx, model.PostReply, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return revs, nil
}

// Move moves a reply to the end of another topic. Both topic chains are
// recounted.
func (s *ReplyService) Move(ctx context.Context, user *model.User, id, toTopicID int64) (*model.ReplyDTO, error) {
	if !s.caps.Can(user, CapModerate) {
		return nil, apperr.ErrForbidden
	}

	var (
		reply                    *model.Reply
		fromTopicID, fromForumID int64
		public                   bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		reply, err = r.Replies.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if reply == nil {
			return apperr.ErrReplyNotFound
		}
		dest, err := r.Topics.GetByID(ctx, toTopicID)
		if err != nil {
			return err
		}
		if dest == nil {
			return apperr.ErrTopicNotFound
		}
		fromTopicID, fromForumID = reply.TopicID, reply.ForumID
		if fromTopicID == toTopicID {
			return nil
		}

		pos, err := r.Replies.MaxPosition(ctx, dest.ID)
		if err != nil {
			return err
		}
		reply.TopicID = dest.ID
		reply.ForumID = dest.ForumID
		reply.ReplyTo = 0
		reply.MenuOrder = pos + 1
		reply.UpdatedAt = time.Now().Unix()
		if err := r.Replies.Update(ctx, reply); err != nil {
			return err
		}
		if err := detachChildren(ctx, r, fromTopicID, reply.ID); err != nil {
			return err
		}
		if err := s.walker.UpdateReplyWalk(ctx, r, WalkInput{TopicID: fromTopicID, ForumID: fromForumID, Refresh: true}); err != nil {
			return err
		}
		if err := s.walker.UpdateReplyWalk(ctx, r, WalkInput{TopicID: dest.ID, ForumID: dest.ForumID, Refresh: true}); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, dest.ForumID, reply.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	if fromTopicID != toTopicID {
		s.bus.Publish(ctx, event.Event{Type: event.ReplyMoved, ForumID: reply.ForumID, FromForumID: fromForumID,
			TopicID: reply.TopicID, FromTopicID: fromTopicID, ReplyID: reply.ID, UserID: user.ID, Public: public})
	}
	dto := reply.ToDTO()
	dto.Rendered = markup.Render(reply.Content)
	return dto, nil
}

// detachChildren clears reply_to on replies in topicID that answer parentID.
func detachChildren(ctx context.Context, r *repository.Repos, topicID, parentID int64) error {
	replies, err := r.Replies.AllByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	for _, rep := range replies {
		if rep.ReplyTo != parentID {
			continue
		}
		rep.ReplyTo = 0
		if err := r.Replies.Update(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}
