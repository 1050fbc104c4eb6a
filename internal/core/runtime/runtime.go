package runtime

import (
	"context"
	"sync"
	"time"

	"barebones/internal/core/logger"
	"barebones/internal/model"
	"barebones/internal/repository"
)

// Runtime keeps the forum structure in memory for access checks on the read
// path. Only structural fields (parent, type, status, visibility) are relied
// on; counters may lag until the next Reload.
type Runtime struct {
	repo     repository.ForumRepository
	mu       sync.RWMutex
	forums   map[int64]*model.Forum
	ordered  []*model.Forum
	loadedAt time.Time
}

// New 创建 Runtime, empty until Reload
func New(repo repository.ForumRepository) *Runtime {
	return &Runtime{repo: repo, forums: make(map[int64]*model.Forum)}
}

// Reload 重新加载版块结构
func (r *Runtime) Reload(ctx context.Context) error {
	start := time.Now()
	list, err := r.repo.GetAll(ctx)
	if err != nil {
		logger.Error("runtime reload failed", logger.ErrorField(err))
		return err
	}

	forums := make(map[int64]*model.Forum, len(list))
	for _, f := range list {
		forums[f.ID] = f
	}

	r.mu.Lock()
	r.forums = forums
	r.ordered = list
	r.loadedAt = time.Now()
	r.mu.Unlock()

	logger.Info("runtime reloaded",
		logger.Int("forum_count", len(list)),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// GetByID returns a copy of the cached forum, nil when unknown
func (r *Runtime) GetByID(_ context.Context, id int64) (*model.Forum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forums[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

// Forums 全部版块, in menu order
func (r *Runtime) Forums() []*model.Forum {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Forum, 0, len(r.ordered))
	for _, f := range r.ordered {
		cp := *f
		out = append(out, &cp)
	}
	return out
}

// Chain returns id followed by its ancestors, stopping at a missing parent
// or a cycle.
func (r *Runtime) Chain(id int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var chain []int64
	seen := make(map[int64]bool)
	for id != 0 && !seen[id] {
		seen[id] = true
		chain = append(chain, id)
		f, ok := r.forums[id]
		if !ok {
			break
		}
		id = f.ParentID
	}
	return chain
}

// Status 返回运行时状态
func (r *Runtime) Status() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"forum_count": len(r.ordered),
		"loaded_at":   r.loadedAt.Format("2006-01-02 15:04:05"),
	}
}
