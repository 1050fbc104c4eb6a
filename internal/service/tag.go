package service

import (
	"context"
	"strings"
	"time"

	"barebones/internal/core/snowflake"
	"barebones/internal/event"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/markup"
	"barebones/internal/repository"
)

const maxTagLength = 64

// TagService Tag 业务服务
type TagService struct {
	store *repository.Store
	caps  *Capabilities
	bus   *event.Bus
}

// NewTagService 创建 TagService 实例
func NewTagService(store *repository.Store, caps *Capabilities, bus *event.Bus) *TagService {
	return &TagService{store: store, caps: caps, bus: bus}
}

// List 按主题数排序的标签
func (s *TagService) List(ctx context.Context, offset, limit int) ([]*model.Tag, error) {
	tags, err := s.store.Repos().Tags.GetAll(ctx, offset, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return tags, nil
}

// ListByTopic 主题的标签
func (s *TagService) ListByTopic(ctx context.Context, topicID int64) ([]*model.Tag, error) {
	tags, err := s.store.Repos().Tags.GetByTopic(ctx, topicID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return tags, nil
}

// Add 为主题添加标签
func (s *TagService) Add(ctx context.Context, user *model.User, topicID int64, names []string) ([]*model.Tag, error) {
	return s.change(ctx, user, topicID, func(r *repository.Repos) error {
		return attachTags(ctx, r, topicID, names)
	})
}

// Remove 移除主题标签
func (s *TagService) Remove(ctx context.Context, user *model.User, topicID int64, names []string) ([]*model.Tag, error) {
	return s.change(ctx, user, topicID, func(r *repository.Repos) error {
		return detachTags(ctx, r, topicID, names)
	})
}

func (s *TagService) change(ctx context.Context, user *model.User, topicID int64, fn func(r *repository.Repos) error) ([]*model.Tag, error) {
	if !s.caps.Can(user, CapAssignTopicTags) {
		return nil, apperr.ErrForbidden
	}
	var tags []*model.Tag
	var forumID int64
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		topic, err := r.Topics.GetByID(ctx, topicID)
		if err != nil {
			return err
		}
		if topic == nil {
			return apperr.ErrTopicNotFound
		}
		if topic.AuthorID != user.ID && !s.caps.Can(user, CapModerate) {
			return apperr.ErrForbidden
		}
		forumID = topic.ForumID
		if err := fn(r); err != nil {
			return err
		}
		tags, err = r.Tags.GetByTopic(ctx, topicID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, event.Event{Type: event.PostEdited, ForumID: forumID, TopicID: topicID, UserID: user.ID, Action: "tags"})
	return tags, nil
}

// normalizeTag strips markup and clamps length; empty means skip
func normalizeTag(name string) string {
	name = markup.PlainText(name)
	if r := []rune(name); len(r) > maxTagLength {
		name = string(r[:maxTagLength])
	}
	return strings.TrimSpace(name)
}

// attachTags links names to the topic, creating tags as needed.
func attachTags(ctx context.Context, r *repository.Repos, topicID int64, names []string) error {
	existing, err := r.TopicTags.GetByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	linked := make(map[int64]bool, len(existing))
	for _, id := range existing {
		linked[id] = true
	}

	for _, raw := range names {
		name := normalizeTag(raw)
		if name == "" {
			continue
		}
		tag, err := r.Tags.GetByName(ctx, name)
		if err != nil {
			return err
		}
		if tag == nil {
			tag = &model.Tag{ID: snowflake.Generate(), Name: name, CreatedAt: time.Now().Unix()}
			if err := r.Tags.Create(ctx, tag); err != nil {
				return err
			}
		}
		if linked[tag.ID] {
			continue
		}
		if err := r.TopicTags.Create(ctx, &model.TopicTag{TopicID: topicID, TagID: tag.ID}); err != nil {
			return err
		}
		if err := r.Tags.AddTopics(ctx, tag.ID, 1); err != nil {
			return err
		}
		linked[tag.ID] = true
	}
	return nil
}

// detachTags unlinks names from the topic
func detachTags(ctx context.Context, r *repository.Repos, topicID int64, names []string) error {
	for _, raw := range names {
		tag, err := r.Tags.GetByName(ctx, normalizeTag(raw))
		if err != nil {
			return err
		}
		if tag == nil {
			continue
		}
		ids, err := r.TopicTags.GetByTopic(ctx, topicID)
		if err != nil {
			return err
		}
		if !model.IDList(ids).Contains(tag.ID) {
			continue
		}
		if err := r.TopicTags.Delete(ctx, topicID, tag.ID); err != nil {
			return err
		}
		if err := r.Tags.AddTopics(ctx, tag.ID, -1); err != nil {
			return err
		}
	}
	return nil
}

// replaceTags makes the topic's tag set exactly names
func replaceTags(ctx context.Context, r *repository.Repos, topicID int64, names []string) error {
	current, err := r.Tags.GetByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[normalizeTag(n)] = true
	}
	var drop []string
	for _, t := range current {
		if !want[t.Name] {
			drop = append(drop, t.Name)
		}
	}
	if err := detachTags(ctx, r, topicID, drop); err != nil {
		return err
	}
	return attachTags(ctx, r, topicID, names)
}

func tagNames(tags []*model.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}
