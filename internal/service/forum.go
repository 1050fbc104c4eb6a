package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"barebones/internal/core/logger"
	"barebones/internal/core/snowflake"
	"barebones/internal/event"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/markup"
	"barebones/internal/pkg/pool"
	"barebones/internal/repository"
)

const forumListKey = "forum:all"

func forumKey(id int64) string {
	return fmt.Sprintf("forum:%d", id)
}

// ForumService Forum 业务服务
type ForumService struct {
	store  *repository.Store
	cache  *pool.Layered
	forums ForumGetter // in-memory structure for access checks
	caps   *Capabilities
	walker *Walker
	bus    *event.Bus
}

// NewForumService 创建 ForumService 实例
func NewForumService(store *repository.Store, cache *pool.Layered, forums ForumGetter, caps *Capabilities, walker *Walker, bus *event.Bus) *ForumService {
	return &ForumService{store: store, cache: cache, forums: forums, caps: caps, walker: walker, bus: bus}
}

// Get 获取单个 Forum. Forums the user may not see are reported as missing.
func (s *ForumService) Get(ctx context.Context, user *model.User, id int64) (*model.ForumDTO, error) {
	if err := s.checkVisible(ctx, user, id); err != nil {
		return nil, err
	}

	var dto model.ForumDTO
	found, err := s.cache.GetOrLoad(ctx, forumKey(id), &dto, func(ctx context.Context) (any, error) {
		f, err := s.store.Repos().Forums.GetByID(ctx, id)
		if err != nil || f == nil {
			return nil, err
		}
		return f.ToDTO(), nil
	})
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !found {
		return nil, apperr.ErrForumNotFound
	}
	return &dto, nil
}

// checkVisible resolves id through the structure cache and applies the
// ancestor-aware visibility rules.
func (s *ForumService) checkVisible(ctx context.Context, user *model.User, id int64) error {
	f, err := s.forums.GetByID(ctx, id)
	if err != nil {
		return apperr.Storage(err)
	}
	ok, err := s.caps.CanViewForum(ctx, s.forums, user, f, true)
	if err != nil {
		return apperr.Storage(err)
	}
	if !ok {
		return apperr.ErrForumNotFound
	}
	return nil
}

// List 获取 user 可见的全部 Forum
func (s *ForumService) List(ctx context.Context, user *model.User) ([]*model.ForumDTO, error) {
	var all []*model.ForumDTO
	_, err := s.cache.GetOrLoad(ctx, forumListKey, &all, func(ctx context.Context) (any, error) {
		forums, err := s.store.Repos().Forums.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		list := make([]*model.ForumDTO, 0, len(forums))
		for _, f := range forums {
			list = append(list, f.ToDTO())
		}
		return list, nil
	})
	if err != nil {
		return nil, apperr.Storage(err)
	}

	visible := make([]*model.ForumDTO, 0, len(all))
	for _, dto := range all {
		f, err := s.forums.GetByID(ctx, dto.ID)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if f == nil {
			continue
		}
		ok, err := s.caps.CanViewForum(ctx, s.forums, user, f, true)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		if ok {
			visible = append(visible, dto)
		}
	}
	return visible, nil
}

// GetTree 获取论坛树. A forum whose parent is hidden from user is dropped
// together with the parent, since visibility is inherited.
func (s *ForumService) GetTree(ctx context.Context, user *model.User) ([]*model.ForumTreeNode, error) {
	list, err := s.List(ctx, user)
	if err != nil {
		return nil, err
	}

	nodeMap := make(map[int64]*model.ForumTreeNode, len(list))
	nodes := make([]*model.ForumTreeNode, 0, len(list))
	for _, dto := range list {
		node := &model.ForumTreeNode{ForumDTO: *dto}
		nodeMap[dto.ID] = node
		nodes = append(nodes, node)
	}

	var roots []*model.ForumTreeNode
	for _, node := range nodes {
		if node.ParentID == 0 {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodeMap[node.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots, nil
}

// Create 创建 Forum
func (s *ForumService) Create(ctx context.Context, user *model.User, req *model.ForumRequest) (*model.ForumDTO, error) {
	if !s.caps.IsKeymaster(user) {
		return nil, apperr.ErrForbidden
	}
	title := markup.PlainText(req.Title)
	if title == "" {
		return nil, apperr.ErrInvalidParams
	}

	now := time.Now().Unix()
	forum := &model.Forum{
		ID:          snowflake.Generate(),
		Title:       title,
		Slug:        repository.GenerateSlug(title),
		Description: strings.TrimSpace(req.Description),
		ParentID:    req.ParentID,
		Type:        defaultType(req.Type),
		Status:      defaultStatus(req.Status),
		Visibility:  defaultVisibility(req.Visibility),
		MenuOrder:   req.MenuOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		if forum.ParentID != 0 {
			parent, err := r.Forums.GetByID(ctx, forum.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return apperr.ErrForumNotFound
			}
		}
		if err := r.Forums.Create(ctx, forum); err != nil {
			return err
		}
		return s.walker.RefreshForum(ctx, r, forum.ID)
	})
	if err != nil {
		logger.Error("create forum failed", logger.ErrorField(err))
		return nil, err
	}

	s.bus.Publish(ctx, event.Event{Type: event.ForumSaved, ForumID: forum.ID, UserID: user.ID})
	return forum.ToDTO(), nil
}

// Update 更新 Forum
func (s *ForumService) Update(ctx context.Context, user *model.User, id int64, req *model.ForumRequest) (*model.ForumDTO, error) {
	if !s.caps.IsKeymaster(user) {
		return nil, apperr.ErrForbidden
	}
	title := markup.PlainText(req.Title)
	if title == "" {
		return nil, apperr.ErrInvalidParams
	}

	var out *model.Forum
	var oldParent int64
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		forum, err := r.Forums.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if forum == nil {
			return apperr.ErrForumNotFound
		}
		oldParent = forum.ParentID

		if req.ParentID != forum.ParentID && req.ParentID != 0 {
			if err := checkReparent(ctx, r, forum.ID, req.ParentID); err != nil {
				return err
			}
		}
		newType := defaultType(req.Type)
		if newType == model.ForumTypeCategory && !forum.IsCategory() {
			n, err := r.Topics.CountByForum(ctx, forum.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.NewAppError(apperr.CodeConflict, apperr.KindConflict, "a forum holding topics cannot become a category")
			}
		}

		forum.Title = title
		forum.Slug = repository.GenerateSlug(title)
		forum.Description = strings.TrimSpace(req.Description)
		forum.ParentID = req.ParentID
		forum.Type = newType
		forum.Status = defaultStatus(req.Status)
		forum.Visibility = defaultVisibility(req.Visibility)
		forum.MenuOrder = req.MenuOrder
		forum.UpdatedAt = time.Now().Unix()
		if err := r.Forums.Update(ctx, forum); err != nil {
			return err
		}
		if err := s.walker.RefreshForum(ctx, r, forum.ID); err != nil {
			return err
		}
		if oldParent != 0 && oldParent != forum.ParentID {
			if err := s.walker.RefreshForum(ctx, r, oldParent); err != nil {
				return err
			}
		}
		out, err = r.Forums.GetByID(ctx, forum.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.Event{Type: event.ForumSaved, ForumID: id, FromForumID: oldParent, UserID: user.ID})
	return out.ToDTO(), nil
}

// checkReparent refuses a parent that is missing, the forum itself, or one
// of its descendants.
func checkReparent(ctx context.Context, r *repository.Repos, id, parentID int64) error {
	parent, err := r.Forums.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return apperr.ErrForumNotFound
	}
	if parentID == id {
		return apperr.NewAppError(apperr.CodeConflict, apperr.KindConflict, "a forum cannot be its own parent")
	}
	chain, err := Ancestors(ctx, r.Forums, parent)
	if err != nil {
		return err
	}
	for _, a := range chain {
		if a.ID == id {
			return apperr.NewAppError(apperr.CodeConflict, apperr.KindConflict, "a forum cannot move under its own descendant")
		}
	}
	return nil
}

// Delete 删除 Forum, only once it holds no topics and no subforums
func (s *ForumService) Delete(ctx context.Context, user *model.User, id int64) error {
	if !s.caps.IsKeymaster(user) {
		return apperr.ErrForbidden
	}

	var parentID int64
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		forum, err := r.Forums.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if forum == nil {
			return apperr.ErrForumNotFound
		}
		parentID = forum.ParentID

		n, err := r.Topics.CountByForum(ctx, id)
		if err != nil {
			return err
		}
		subs, err := r.Forums.GetByParent(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 || len(subs) > 0 {
			return apperr.NewAppError(apperr.CodeConflict, apperr.KindConflict, "forum is not empty")
		}
		if err := r.Forums.Delete(ctx, id); err != nil {
			return err
		}
		if parentID != 0 {
			return s.walker.RefreshForum(ctx, r, parentID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, event.Event{Type: event.ForumDeleted, ForumID: id, FromForumID: parentID, UserID: user.ID})
	return nil
}

// Invalidate drops cached forum rows touched by e. Counter changes reach
// every ancestor, so the whole chain goes.
func (s *ForumService) Invalidate(ctx context.Context, chain []int64) {
	keys := []string{forumListKey}
	for _, id := range chain {
		keys = append(keys, forumKey(id))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		logger.Warn("forum cache invalidate failed", logger.ErrorField(err))
	}
}

// FlushCache 刷新缓存
func (s *ForumService) FlushCache() error {
	return s.cache.Flush()
}

func defaultType(t model.ForumType) model.ForumType {
	if t == "" {
		return model.ForumTypeForum
	}
	return t
}

func defaultStatus(st model.ForumStatus) model.ForumStatus {
	if st == "" {
		return model.ForumOpen
	}
	return st
}

func defaultVisibility(v model.Visibility) model.Visibility {
	if v == "" {
		return model.VisibilityPublic
	}
	return v
}
