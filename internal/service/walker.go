package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/metrics"
	"barebones/internal/repository"
)

// WalkInput names the post that triggered a walk. ReplyID is zero for
// topic-level events.
type WalkInput struct {
	ReplyID int64
	TopicID int64
	ForumID int64
	// LastActiveTime is the event time. Zero falls back to the stored date
	// of the triggering post.
	LastActiveTime int64
	// Refresh ignores the ids and time above and recounts everything on the
	// chain from stored rows.
	Refresh bool
}

// Walker keeps topic and forum counters in step with their children by
// walking reply -> topic -> forum -> ancestor forums. Every call runs on the
// repositories it is given, normally bound to the caller's transaction.
type Walker struct {
	policy config.OrphanPolicy
}

// NewWalker 创建计数遍历器
func NewWalker(policy config.OrphanPolicy) *Walker {
	if policy == "" {
		policy = config.OrphanSkip
	}
	return &Walker{policy: policy}
}

// orphan applies the configured policy to a dangling parent at level.
func (w *Walker) orphan(level string, id, parent int64) error {
	if w.policy == config.OrphanFail {
		return fmt.Errorf("%w: %s %d has missing parent %d", apperr.ErrOrphan, level, id, parent)
	}
	metrics.WalkerOrphans.WithLabelValues(level).Inc()
	logger.Warn("counter walk skipped dangling parent",
		logger.String("level", level),
		logger.Int64("id", id),
		logger.Int64("parent", parent))
	return nil
}

// UpdateReplyWalk propagates a reply-level event up its chain.
func (w *Walker) UpdateReplyWalk(ctx context.Context, r *repository.Repos, in WalkInput) error {
	var trigger *model.Reply
	if in.ReplyID != 0 {
		reply, err := r.Replies.GetByID(ctx, in.ReplyID)
		if err != nil {
			return err
		}
		if reply != nil {
			trigger = reply
			if in.TopicID == 0 {
				in.TopicID = reply.TopicID
			}
			if in.ForumID == 0 {
				in.ForumID = reply.ForumID
			}
		}
	}
	return w.walk(ctx, r, in, trigger)
}

// UpdateTopicWalk propagates a topic-level event up its chain.
func (w *Walker) UpdateTopicWalk(ctx context.Context, r *repository.Repos, in WalkInput) error {
	in.ReplyID = 0
	return w.walk(ctx, r, in, nil)
}

// RefreshForum recounts a forum and its ancestors, used after forum edits.
func (w *Walker) RefreshForum(ctx context.Context, r *repository.Repos, forumID int64) error {
	return w.walkForums(ctx, r, forumID, WalkInput{Refresh: true}, 0, 0)
}

func (w *Walker) walk(ctx context.Context, r *repository.Repos, in WalkInput, trigger *model.Reply) error {
	var topic *model.Topic
	if in.TopicID != 0 {
		var err error
		topic, err = r.Topics.GetByID(ctx, in.TopicID)
		if err != nil {
			return err
		}
	}

	// freshness pushed to the forums in incremental mode
	var activeID, activeTime int64

	switch {
	case topic == nil && in.TopicID != 0:
		var id int64
		if trigger != nil {
			id = trigger.ID
		}
		if err := w.orphan("topic", id, in.TopicID); err != nil {
			return err
		}
	case topic != nil:
		if in.ForumID == 0 {
			in.ForumID = topic.ForumID
		}
		snaps, err := r.Replies.Snapshots(ctx, topic.ID)
		if err != nil {
			return err
		}
		c := ComputeTopicCounters(topic, snaps)

		if !in.Refresh {
			// freshness only moves forward for visible content
			c.LastReplyID = topic.LastReplyID
			c.LastActiveID = topic.LastActiveID
			c.LastActiveTime = topic.LastActiveTime
			switch {
			case trigger != nil && trigger.Status == model.StatusPublish:
				at := fallbackTime(in.LastActiveTime, trigger.CreatedAt)
				c.LastReplyID = trigger.ID
				c.LastActiveID, c.LastActiveTime = trigger.ID, at
				// forums only see replies in public topics
				if topic.Status.IsPublic() {
					activeID, activeTime = trigger.ID, at
				}
			case trigger == nil && topic.Status.IsPublic():
				activeID = topic.ID
				activeTime = fallbackTime(in.LastActiveTime, topic.CreatedAt)
				if c.LastActiveID == 0 {
					c.LastActiveID, c.LastActiveTime = activeID, activeTime
				}
			}
		}
		if err := r.Topics.UpdateCounters(ctx, topic.ID, c); err != nil {
			return err
		}
	}

	if in.ForumID == 0 {
		if topic != nil {
			return w.orphan("forum", topic.ID, 0)
		}
		return nil
	}
	return w.walkForums(ctx, r, in.ForumID, in, activeID, activeTime)
}

func fallbackTime(event, stored int64) int64 {
	if event != 0 {
		return event
	}
	return stored
}

// walkForums recounts forumID and every ancestor, bottom-up. Each parent
// reads the counters its child just wrote in the same transaction.
func (w *Walker) walkForums(ctx context.Context, r *repository.Repos, forumID int64, in WalkInput, activeID, activeTime int64) error {
	seen := make(map[int64]bool)
	child := int64(0)
	for fid := forumID; fid != 0; {
		if seen[fid] {
			return fmt.Errorf("forum %d: parent cycle", fid)
		}
		seen[fid] = true

		forum, err := r.Forums.GetByID(ctx, fid)
		if err != nil {
			return err
		}
		if forum == nil {
			return w.orphan("forum", child, fid)
		}

		c, err := w.recountForum(ctx, r, forum)
		if err != nil {
			return err
		}
		if !in.Refresh {
			c.LastTopicID = forum.LastTopicID
			c.LastReplyID = forum.LastReplyID
			c.LastActiveID = forum.LastActiveID
			c.LastActiveTime = forum.LastActiveTime
			if activeID != 0 {
				if in.ReplyID != 0 {
					c.LastReplyID = activeID
				} else {
					c.LastTopicID = activeID
				}
				c.LastActiveID, c.LastActiveTime = activeID, activeTime
			}
		}
		if err := r.Forums.UpdateCounters(ctx, forum.ID, c); err != nil {
			return err
		}
		child = fid
		fid = forum.ParentID
	}
	return nil
}

func (w *Walker) recountForum(ctx context.Context, r *repository.Repos, forum *model.Forum) (model.ForumCounters, error) {
	var topics []model.TopicSnapshot
	if !forum.IsCategory() {
		var err error
		topics, err = r.Topics.Snapshots(ctx, forum.ID)
		if err != nil {
			return model.ForumCounters{}, err
		}
	}
	subs, err := r.Forums.GetByParent(ctx, forum.ID)
	if err != nil {
		return model.ForumCounters{}, err
	}
	children := make([]model.ForumCounters, 0, len(subs))
	for _, s := range subs {
		children = append(children, s.ForumCounters)
	}
	return ComputeForumCounters(forum, topics, children), nil
}

// RecountAll rebuilds every counter from stored rows: all topics first, then
// forums deepest-first so parents see fresh children.
func (w *Walker) RecountAll(ctx context.Context, r *repository.Repos) (topics int, forums int, err error) {
	ids, err := r.Topics.AllIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		topic, err := r.Topics.GetByID(ctx, id)
		if err != nil {
			return topics, 0, err
		}
		if topic == nil {
			continue
		}
		snaps, err := r.Replies.Snapshots(ctx, id)
		if err != nil {
			return topics, 0, err
		}
		if err := r.Topics.UpdateCounters(ctx, id, ComputeTopicCounters(topic, snaps)); err != nil {
			return topics, 0, err
		}
		topics++
	}

	all, err := r.Forums.GetAll(ctx)
	if err != nil {
		return topics, 0, err
	}
	depth := forumDepths(all)
	sort.SliceStable(all, func(i, j int) bool { return depth[all[i].ID] > depth[all[j].ID] })
	for _, f := range all {
		if f.ParentID != 0 {
			if _, ok := depth[f.ParentID]; !ok {
				if err := w.orphan("forum", f.ID, f.ParentID); err != nil {
					return topics, forums, err
				}
			}
		}
		c, err := w.recountForum(ctx, r, f)
		if err != nil {
			return topics, forums, err
		}
		if err := r.Forums.UpdateCounters(ctx, f.ID, c); err != nil {
			return topics, forums, err
		}
		forums++
	}
	return topics, forums, nil
}

// forumDepths maps forum id to its distance from the root. Forums on a
// cycle or under a missing parent get the depth reached before the break.
func forumDepths(all []*model.Forum) map[int64]int {
	parent := make(map[int64]int64, len(all))
	for _, f := range all {
		parent[f.ID] = f.ParentID
	}
	depth := make(map[int64]int, len(all))
	for _, f := range all {
		d := 0
		seen := map[int64]bool{f.ID: true}
		for p := f.ParentID; p != 0 && !seen[p]; p = parent[p] {
			if _, ok := parent[p]; !ok {
				break
			}
			seen[p] = true
			d++
		}
		depth[f.ID] = d
	}
	return depth
}

// Repair runs RecountAll in its own transaction.
func (w *Walker) Repair(ctx context.Context, store *repository.Store) (topics int, forums int, err error) {
	start := time.Now()
	err = store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		topics, forums, err = w.RecountAll(ctx, r)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	logger.Info("counters rebuilt",
		logger.Int("topics", topics),
		logger.Int("forums", forums),
		logger.Duration("duration", time.Since(start)))
	return topics, forums, nil
}
