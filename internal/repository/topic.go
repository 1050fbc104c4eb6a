package repository

import (
	"context"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// TopicRepository Topic 数据访问接口
type TopicRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Topic, error)
	GetByForum(ctx context.Context, forumID int64, statuses []model.Status, offset, limit int) ([]*model.Topic, error)
	CountByForum(ctx context.Context, forumID int64) (int, error)
	Snapshots(ctx context.Context, forumID int64) ([]model.TopicSnapshot, error)
	Create(ctx context.Context, topic *model.Topic) error
	Update(ctx context.Context, topic *model.Topic) error
	UpdateCounters(ctx context.Context, id int64, c model.TopicCounters) error
	Delete(ctx context.Context, id int64) error
	FindDuplicate(ctx context.Context, forumID int64, author model.Author, content string) (bool, error)
	AllIDs(ctx context.Context) ([]int64, error)
	// Sitemap 专用方法
	ListPublished(ctx context.Context, forumIDs []int64, offset, limit int) ([]*model.Topic, error)
}

const topicColumns = `id, forum_id, title, content, author_id, anonymous_name, anonymous_email, anonymous_website,
	author_ip, status, prior_status, trash_prior_status, menu_order, reply_count, reply_count_hidden, voice_count, last_reply_id,
	last_active_id, last_active_time, pre_trashed_replies, pre_spammed_replies, created_at, updated_at`

// topicRepository Topic 数据访问实现
type topicRepository struct {
	db sqlx.ExtContext
}

// NewTopicRepository 创建 TopicRepository 实例
func NewTopicRepository(db sqlx.ExtContext) TopicRepository {
	return &topicRepository{db: db}
}

// GetByID 根据ID获取Topic, nil when absent
func (r *topicRepository) GetByID(ctx context.Context, id int64) (*model.Topic, error) {
	var topic model.Topic
	err := sqlx.GetContext(ctx, r.db, &topic, "SELECT "+topicColumns+" FROM bb_topics WHERE id = ?", id)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &topic, nil
}

// GetByForum lists a forum's topics in the given statuses, freshest first
func (r *topicRepository) GetByForum(ctx context.Context, forumID int64, statuses []model.Status, offset, limit int) ([]*model.Topic, error) {
	query, args, err := in(r.db,
		"SELECT "+topicColumns+" FROM bb_topics WHERE forum_id = ? AND status IN (?) ORDER BY menu_order DESC, last_active_time DESC, id DESC LIMIT ? OFFSET ?",
		forumID, statuses, limit, offset)
	if err != nil {
		return nil, err
	}
	var topics []*model.Topic
	if err := sqlx.SelectContext(ctx, r.db, &topics, query, args...); err != nil {
		return nil, err
	}
	return topics, nil
}

// CountByForum counts topics of every status
func (r *topicRepository) CountByForum(ctx context.Context, forumID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, "SELECT COUNT(*) FROM bb_topics WHERE forum_id = ?", forumID)
	return n, err
}

// Snapshots 版块计数所需的主题快照
func (r *topicRepository) Snapshots(ctx context.Context, forumID int64) ([]model.TopicSnapshot, error) {
	var snaps []model.TopicSnapshot
	err := sqlx.SelectContext(ctx, r.db, &snaps,
		`SELECT id, status, reply_count, last_reply_id, last_active_id, last_active_time, created_at
		FROM bb_topics WHERE forum_id = ? ORDER BY id ASC`, forumID)
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// Create 创建Topic
func (r *topicRepository) Create(ctx context.Context, t *model.Topic) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO bb_topics ("+topicColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.ForumID, t.Title, t.Content, t.AuthorID, t.AnonymousName, t.AnonymousEmail, t.AnonymousWebsite,
		t.AuthorIP, t.Status, t.PriorStatus, t.TrashPriorStatus, t.MenuOrder, t.ReplyCount, t.ReplyCountHidden, t.VoiceCount, t.LastReplyID,
		t.LastActiveID, t.LastActiveTime, t.PreTrashedReplies, t.PreSpammedReplies, t.CreatedAt, t.UpdatedAt)
	return err
}

// Update writes everything except the counters
func (r *topicRepository) Update(ctx context.Context, t *model.Topic) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bb_topics SET forum_id = ?, title = ?, content = ?, status = ?, prior_status = ?, trash_prior_status = ?,
			menu_order = ?, pre_trashed_replies = ?, pre_spammed_replies = ?, updated_at = ? WHERE id = ?`,
		t.ForumID, t.Title, t.Content, t.Status, t.PriorStatus, t.TrashPriorStatus, t.MenuOrder,
		t.PreTrashedReplies, t.PreSpammedReplies, t.UpdatedAt, t.ID)
	return err
}

// UpdateCounters 写入聚合计数
func (r *topicRepository) UpdateCounters(ctx context.Context, id int64, c model.TopicCounters) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bb_topics SET reply_count = ?, reply_count_hidden = ?, voice_count = ?, last_reply_id = ?,
			last_active_id = ?, last_active_time = ? WHERE id = ?`,
		c.ReplyCount, c.ReplyCountHidden, c.VoiceCount, c.LastReplyID, c.LastActiveID, c.LastActiveTime, id)
	return err
}

// Delete 删除Topic
func (r *topicRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_topics WHERE id = ?", id)
	return err
}

// FindDuplicate reports a non-trashed topic in the forum with the same author and content
func (r *topicRepository) FindDuplicate(ctx context.Context, forumID int64, a model.Author, content string) (bool, error) {
	var n int
	var err error
	if a.AuthorID > 0 {
		err = sqlx.GetContext(ctx, r.db, &n,
			"SELECT COUNT(*) FROM bb_topics WHERE forum_id = ? AND author_id = ? AND content = ? AND status <> ?",
			forumID, a.AuthorID, content, model.StatusTrash)
	} else {
		err = sqlx.GetContext(ctx, r.db, &n,
			"SELECT COUNT(*) FROM bb_topics WHERE forum_id = ? AND author_id = 0 AND anonymous_email = ? AND content = ? AND status <> ?",
			forumID, a.AnonymousEmail, content, model.StatusTrash)
	}
	return n > 0, err
}

// AllIDs 全部主题 id, used by repairs
func (r *topicRepository) AllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.db, &ids, "SELECT id FROM bb_topics ORDER BY id ASC"); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListPublished 获取sitemap列表（只取 id, forum_id, title, last_active_time）
func (r *topicRepository) ListPublished(ctx context.Context, forumIDs []int64, offset, limit int) ([]*model.Topic, error) {
	if len(forumIDs) == 0 {
		return nil, nil
	}
	query, args, err := in(r.db,
		`SELECT id, forum_id, title, last_active_time, created_at FROM bb_topics
		WHERE forum_id IN (?) AND status IN (?) ORDER BY id DESC LIMIT ? OFFSET ?`,
		forumIDs, []model.Status{model.StatusPublish, model.StatusClosed}, limit, offset)
	if err != nil {
		return nil, err
	}
	var topics []*model.Topic
	if err := sqlx.SelectContext(ctx, r.db, &topics, query, args...); err != nil {
		return nil, err
	}
	return topics, nil
}
