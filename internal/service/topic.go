package service

import (
	"context"
	"sort"
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
	"barebones/internal/pkg/util"
	"barebones/internal/repository"
)

// TopicService Topic 业务服务
type TopicService struct {
	cfg    config.ForumConfig
	store  *repository.Store
	guard  *Guard
	walker *Walker
	caps   *Capabilities
	forums ForumGetter
	bus    *event.Bus
}

// NewTopicService 创建TopicService实例
func NewTopicService(cfg config.ForumConfig, store *repository.Store, guard *Guard, walker *Walker, caps *Capabilities, forums ForumGetter, bus *event.Bus) *TopicService {
	return &TopicService{cfg: cfg, store: store, guard: guard, walker: walker, caps: caps, forums: forums, bus: bus}
}

// Create 发布主题: guard, insert, tags and counter walk in one transaction.
func (s *TopicService) Create(ctx context.Context, user *model.User, ip string, req *model.TopicRequest) (*model.TopicDTO, error) {
	sub := &Submission{
		Type:    model.PostTopic,
		Nonce:   req.Nonce,
		User:    user,
		Author:  authorFor(user, ip, req.AnonymousFields),
		ForumID: req.ForumID,
		Title:   markup.PlainText(req.Title),
		Content: strings.TrimSpace(req.Content),
	}

	var (
		topic   *model.Topic
		verdict *Verdict
		public  bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		verdict, err = s.guard.Check(ctx, r, sub)
		if err != nil {
			return err
		}

		now := time.Now().Unix()
		topic = &model.Topic{
			ID:        snowflake.Generate(),
			ForumID:   verdict.Forum.ID,
			Title:     sub.Title,
			Content:   sub.Content,
			Author:    sub.Author,
			Status:    verdict.Status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.Topics.Create(ctx, topic); err != nil {
			return err
		}
		if s.cfg.AllowTopicTags && req.Tags != "" && s.canTag(user) {
			if err := attachTags(ctx, r, topic.ID, util.SplitTags(req.Tags)); err != nil {
				return err
			}
		}
		if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: topic.ID, ForumID: topic.ForumID, LastActiveTime: now}); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, topic.ForumID, topic.Status)
		return err
	})
	if err != nil {
		s.guard.Release(ctx, verdict)
		return nil, err
	}

	metrics.PostsCreated.WithLabelValues(string(model.PostTopic), string(topic.Status)).Inc()
	logger.Info("topic created",
		logger.Int64("topic_id", topic.ID),
		logger.Int64("forum_id", topic.ForumID),
		logger.String("status", string(topic.Status)))
	s.bus.Publish(ctx, event.Event{Type: event.TopicCreated, ForumID: topic.ForumID, TopicID: topic.ID,
		UserID: topic.AuthorID, Status: string(topic.Status), Public: public})

	// the poster may not be able to read a held post, so skip the read check
	created, err := s.store.Repos().Topics.GetByID(ctx, topic.ID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if created == nil {
		return nil, apperr.ErrTopicNotFound
	}
	return s.view(ctx, created)
}

// canTag guests may not tag
func (s *TopicService) canTag(user *model.User) bool {
	return user != nil && s.caps.Can(user, CapAssignTopicTags)
}

// Get 获取单个主题 with rendered content and tags
func (s *TopicService) Get(ctx context.Context, user *model.User, id int64) (*model.TopicDTO, error) {
	r := s.store.Repos()
	topic, err := r.Topics.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if topic == nil {
		return nil, apperr.ErrTopicNotFound
	}
	if err := s.checkReadable(ctx, user, topic); err != nil {
		return nil, err
	}
	return s.view(ctx, topic)
}

func (s *TopicService) view(ctx context.Context, topic *model.Topic) (*model.TopicDTO, error) {
	tags, err := s.store.Repos().Tags.GetByTopic(ctx, topic.ID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	dto := topic.ToDTO()
	dto.Rendered = markup.Render(topic.Content)
	dto.Tags = tagNames(tags)
	return dto, nil
}

func (s *TopicService) checkReadable(ctx context.Context, user *model.User, topic *model.Topic) error {
	forum, err := s.forums.GetByID(ctx, topic.ForumID)
	if err != nil {
		return apperr.Storage(err)
	}
	ok, err := s.caps.CanViewForum(ctx, s.forums, user, forum, true)
	if err != nil {
		return apperr.Storage(err)
	}
	if !ok || !s.caps.CanReadPost(user, topic.Status, topic.AuthorID) {
		return apperr.ErrTopicNotFound
	}
	return nil
}

// ListByForum 版块主题列表, filtered to what user may see
func (s *TopicService) ListByForum(ctx context.Context, user *model.User, forumID int64, offset, limit int) ([]*model.TopicListItem, error) {
	forum, err := s.forums.GetByID(ctx, forumID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	ok, err := s.caps.CanViewForum(ctx, s.forums, user, forum, true)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !ok {
		return nil, apperr.ErrForumNotFound
	}

	topics, err := s.store.Repos().Topics.GetByForum(ctx, forumID, s.caps.VisibleStatuses(user, model.PostTopic), offset, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	list := make([]*model.TopicListItem, 0, len(topics))
	for _, t := range topics {
		list = append(list, &model.TopicListItem{
			ID:            t.ID,
			ForumID:       t.ForumID,
			Title:         t.Title,
			Author:        t.Author,
			Status:        t.Status,
			TopicCounters: t.TopicCounters,
			CreatedAt:     t.CreatedAt,
		})
	}
	return list, nil
}

// Edit 编辑主题. A revision holding the previous text is logged when
// revisions are enabled and the text changed.
func (s *TopicService) Edit(ctx context.Context, user *model.User, ip string, id int64, req *model.EditRequest) (*model.TopicDTO, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	var (
		topic  *model.Topic
		public bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		topic, err = r.Topics.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if topic == nil {
			return apperr.ErrTopicNotFound
		}
		if !s.caps.CanEditPost(user, model.PostTopic, topic.Author, topic.CreatedAt, s.cfg.EditLockMinutes, time.Now()) {
			return apperr.ErrForbidden
		}

		sub := &Submission{
			Type:    model.PostTopic,
			Nonce:   req.Nonce,
			User:    user,
			Author:  model.Author{AuthorID: user.ID, AuthorIP: ip},
			ForumID: topic.ForumID,
			Title:   markup.PlainText(req.Title),
			Content: strings.TrimSpace(req.Content),
		}
		status, err := s.guard.CheckEdit(sub, topic.Status)
		if err != nil {
			return err
		}

		if s.cfg.AllowRevisions && (sub.Content != topic.Content || sub.Title != topic.Title) {
			if err := r.Revisions.Create(ctx, &model.Revision{
				ID:        snowflake.Generate(),
				PostID:    topic.ID,
				PostType:  model.PostTopic,
				AuthorID:  user.ID,
				Reason:    strings.TrimSpace(req.Reason),
				Content:   topic.Content,
				CreatedAt: time.Now().Unix(),
			}); err != nil {
				return err
			}
		}

		statusChanged := status != topic.Status
		topic.Title = sub.Title
		topic.Content = sub.Content
		topic.Status = status
		topic.UpdatedAt = time.Now().Unix()
		if err := r.Topics.Update(ctx, topic); err != nil {
			return err
		}
		if req.Tags != nil && s.cfg.AllowTopicTags && s.canTag(user) {
			if err := replaceTags(ctx, r, topic.ID, util.SplitTags(*req.Tags)); err != nil {
				return err
			}
		}
		if statusChanged {
			if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: topic.ID, ForumID: topic.ForumID, Refresh: true}); err != nil {
				return err
			}
		}
		public, err = isPublicPost(ctx, r, topic.ForumID, topic.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.Event{Type: event.PostEdited, ForumID: topic.ForumID, TopicID: topic.ID,
		UserID: user.ID, Status: string(topic.Status), Public: public})
	return s.Get(ctx, user, id)
}

// Revisions 主题编辑记录
func (s *TopicService) Revisions(ctx context.Context, user *model.User, id int64) ([]*model.Revision, error) {
	r := s.store.Repos()
	topic, err := r.Topics.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if topic == nil {
		return nil, apperr.ErrTopicNotFound
	}
	if err := s.checkReadable(ctx, user, topic); err != nil {
		return nil, err
	}
	revs, err := r.Revisions.ListByPost(ctx, model.PostTopic, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return revs, nil
}

// Move moves a topic and all of its replies to another forum. Both forum
// chains are recounted in the same transaction.
func (s *TopicService) Move(ctx context.Context, user *model.User, id, toForumID int64) (*model.TopicDTO, error) {
	if !s.caps.Can(user, CapModerate) {
		return nil, apperr.ErrForbidden
	}

	var fromForumID int64
	var public bool
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		topic, err := r.Topics.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if topic == nil {
			return apperr.ErrTopicNotFound
		}
		dest, err := r.Forums.GetByID(ctx, toForumID)
		if err != nil {
			return err
		}
		if dest == nil {
			return apperr.ErrForumNotFound
		}
		if dest.IsCategory() {
			return apperr.NewAppError(apperr.CodeBadRequest, apperr.KindValidation, "topics cannot be moved into a category")
		}
		fromForumID = topic.ForumID
		if fromForumID == toForumID {
			return nil
		}

		topic.ForumID = toForumID
		topic.UpdatedAt = time.Now().Unix()
		if err := r.Topics.Update(ctx, topic); err != nil {
			return err
		}
		if err := r.Replies.SetForumByTopic(ctx, topic.ID, toForumID); err != nil {
			return err
		}
		if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: topic.ID, ForumID: toForumID, Refresh: true}); err != nil {
			return err
		}
		if err := s.walker.RefreshForum(ctx, r, fromForumID); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, toForumID, topic.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	if fromForumID != toForumID {
		s.bus.Publish(ctx, event.Event{Type: event.TopicMoved, ForumID: toForumID, FromForumID: fromForumID,
			TopicID: id, UserID: user.ID, Public: public})
	}
	return s.Get(ctx, user, id)
}

// Split turns the reply at replyID into the first post of a new topic in the
// same forum; every later reply follows it and positions are renumbered.
func (s *TopicService) Split(ctx context.Context, user *model.User, id int64, req *model.SplitRequest) (*model.TopicDTO, error) {
	if !s.caps.Can(user, CapModerate) {
		return nil, apperr.ErrForbidden
	}

	var (
		newTopic *model.Topic
		public   bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		source, err := r.Topics.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if source == nil {
			return apperr.ErrTopicNotFound
		}
		replies, err := r.Replies.AllByTopic(ctx, id)
		if err != nil {
			return err
		}
		at := -1
		for i, rep := range replies {
			if rep.ID == req.ReplyID {
				at = i
				break
			}
		}
		if at < 0 {
			return apperr.ErrReplyNotFound
		}

		head := replies[at]
		title := markup.PlainText(req.Title)
		if title == "" {
			title = source.Title
		}
		newTopic = &model.Topic{
			ID:        snowflake.Generate(),
			ForumID:   source.ForumID,
			Title:     title,
			Content:   head.Content,
			Author:    head.Author,
			Status:    topicStatusFor(head.Status),
			CreatedAt: head.CreatedAt,
			UpdatedAt: time.Now().Unix(),
		}
		if newTopic.Status == model.StatusSpam || head.PriorStatus != "" {
			newTopic.PriorStatus = topicStatusFor(head.PriorStatus)
		}
		if newTopic.Status == model.StatusTrash {
			newTopic.TrashPriorStatus = topicStatusFor(head.TrashPriorStatus)
		}
		if err := r.Topics.Create(ctx, newTopic); err != nil {
			return err
		}
		if err := r.Revisions.DeleteByPost(ctx, model.PostReply, head.ID); err != nil {
			return err
		}
		if err := r.Replies.Delete(ctx, head.ID); err != nil {
			return err
		}

		moved := replies[at+1:]
		movedIDs := make(map[int64]bool, len(moved))
		for _, rep := range moved {
			movedIDs[rep.ID] = true
		}
		for i, rep := range moved {
			rep.TopicID = newTopic.ID
			rep.MenuOrder = i + 1
			if rep.ReplyTo != 0 && !movedIDs[rep.ReplyTo] {
				rep.ReplyTo = 0
			}
			if err := r.Replies.Update(ctx, rep); err != nil {
				return err
			}
		}
		// threads may not cross topics
		for _, rep := range replies[:at] {
			if rep.ReplyTo != head.ID && !movedIDs[rep.ReplyTo] {
				continue
			}
			rep.ReplyTo = 0
			if err := r.Replies.Update(ctx, rep); err != nil {
				return err
			}
		}

		if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: source.ID, ForumID: source.ForumID, Refresh: true}); err != nil {
			return err
		}
		if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: newTopic.ID, ForumID: newTopic.ForumID, Refresh: true}); err != nil {
			return err
		}
		public, err = isPublicPost(ctx, r, newTopic.ForumID, newTopic.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.Event{Type: event.TopicSplit, ForumID: newTopic.ForumID, TopicID: newTopic.ID,
		FromTopicID: id, UserID: user.ID, Status: string(newTopic.Status), Public: public})
	return s.Get(ctx, user, newTopic.ID)
}

// topicStatusFor maps a reply status onto the status its topic should take
func topicStatusFor(st model.Status) model.Status {
	if st.Valid() {
		return st
	}
	return model.StatusPublish
}

// Merge folds the source topic into targetID: the source's opening post
// becomes a reply, its replies follow, and positions in the target are
// renumbered by date. The source topic is removed.
func (s *TopicService) Merge(ctx context.Context, user *model.User, id int64, req *model.MergeRequest) (*model.TopicDTO, error) {
	if !s.caps.Can(user, CapModerate) {
		return nil, apperr.ErrForbidden
	}
	if id == req.TargetID {
		return nil, apperr.NewAppError(apperr.CodeBadRequest, apperr.KindValidation, "a topic cannot be merged into itself")
	}

	var (
		sourceForumID, targetForumID int64
		public                       bool
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		source, err := r.Topics.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if source == nil {
			return apperr.ErrTopicNotFound
		}
		target, err := r.Topics.GetByID(ctx, req.TargetID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.ErrTopicNotFound
		}
		sourceForumID, targetForumID = source.ForumID, target.ForumID

		opening := &model.Reply{
			ID:        snowflake.Generate(),
			TopicID:   target.ID,
			ForumID:   target.ForumID,
			Content:   source.Content,
			Author:    source.Author,
			Status:    replyStatusFor(source.Status),
			CreatedAt: source.CreatedAt,
			UpdatedAt: time.Now().Unix(),
		}
		if err := r.Replies.Create(ctx, opening); err != nil {
			return err
		}

		sourceReplies, err := r.Replies.AllByTopic(ctx, source.ID)
		if err != nil {
			return err
		}
		for _, rep := range sourceReplies {
			rep.TopicID = target.ID
			rep.ForumID = target.ForumID
			if err := r.Replies.Update(ctx, rep); err != nil {
				return err
			}
		}

		all, err := r.Replies.AllByTopic(ctx, target.ID)
		if err != nil {
			return err
		}
		sort.SliceStable(all, func(i, j int) bool {
			return newer(all[j].CreatedAt, all[j].ID, all[i].CreatedAt, all[i].ID)
		})
		for i, rep := range all {
			if rep.MenuOrder == i+1 {
				continue
			}
			rep.MenuOrder = i + 1
			if err := r.Replies.Update(ctx, rep); err != nil {
				return err
			}
		}

		tags, err := r.Tags.GetByTopic(ctx, source.ID)
		if err != nil {
			return err
		}
		if err := attachTags(ctx, r, target.ID, tagNames(tags)); err != nil {
			return err
		}
		if err := deleteTopic(ctx, r, source.ID); err != nil {
			return err
		}

		if err := s.walker.UpdateTopicWalk(ctx, r, WalkInput{TopicID: target.ID, ForumID: target.ForumID, Refresh: true}); err != nil {
			return err
		}
		if sourceForumID != targetForumID {
			if err := s.walker.RefreshForum(ctx, r, sourceForumID); err != nil {
				return err
			}
		}
		public, err = isPublicPost(ctx, r, target.ForumID, target.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.Event{Type: event.TopicMerged, ForumID: targetForumID, FromForumID: sourceForumID,
		TopicID: req.TargetID, FromTopicID: id, UserID: user.ID, Public: public})
	return s.Get(ctx, user, req.TargetID)
}

// replyStatusFor maps a topic status onto a reply status; replies are
// never closed.
func replyStatusFor(st model.Status) model.Status {
	if st == model.StatusClosed {
		return model.StatusPublish
	}
	return st
}
