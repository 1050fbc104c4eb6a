package repository

import (
	"context"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// ForumRepository Forum 数据访问接口
type ForumRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Forum, error)
	GetAll(ctx context.Context) ([]*model.Forum, error)
	GetByParent(ctx context.Context, parent int64) ([]*model.Forum, error)
	Create(ctx context.Context, forum *model.Forum) error
	Update(ctx context.Context, forum *model.Forum) error
	UpdateCounters(ctx context.Context, id int64, c model.ForumCounters) error
	Delete(ctx context.Context, id int64) error
}

const forumColumns = `id, title, slug, description, parent_id, forum_type, status, visibility, menu_order,
	subforum_count, topic_count, topic_count_hidden, reply_count, total_topic_count, total_reply_count,
	last_topic_id, last_reply_id, last_active_id, last_active_time, created_at, updated_at`

// forumRepository Forum 数据访问实现
type forumRepository struct {
	db sqlx.ExtContext
}

// NewForumRepository 创建 ForumRepository 实例
func NewForumRepository(db sqlx.ExtContext) ForumRepository {
	return &forumRepository{db: db}
}

// GetByID 根据 ID 获取 Forum, nil when absent
func (r *forumRepository) GetByID(ctx context.Context, id int64) (*model.Forum, error) {
	var forum model.Forum
	err := sqlx.GetContext(ctx, r.db, &forum, "SELECT "+forumColumns+" FROM bb_forums WHERE id = ?", id)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &forum, nil
}

// GetAll 获取所有 Forum
func (r *forumRepository) GetAll(ctx context.Context) ([]*model.Forum, error) {
	var forums []*model.Forum
	err := sqlx.SelectContext(ctx, r.db, &forums, "SELECT "+forumColumns+" FROM bb_forums ORDER BY menu_order ASC, id ASC")
	if err != nil {
		return nil, err
	}
	return forums, nil
}

// GetByParent 获取子版块
func (r *forumRepository) GetByParent(ctx context.Context, parent int64) ([]*model.Forum, error) {
	var forums []*model.Forum
	err := sqlx.SelectContext(ctx, r.db, &forums,
		"SELECT "+forumColumns+" FROM bb_forums WHERE parent_id = ? ORDER BY menu_order ASC, id ASC", parent)
	if err != nil {
		return nil, err
	}
	return forums, nil
}

// Create 创建 Forum
func (r *forumRepository) Create(ctx context.Context, f *model.Forum) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO bb_forums ("+forumColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.Title, f.Slug, f.Description, f.ParentID, f.Type, f.Status, f.Visibility, f.MenuOrder,
		f.SubforumCount, f.TopicCount, f.TopicCountHidden, f.ReplyCount, f.TotalTopicCount, f.TotalReplyCount,
		f.LastTopicID, f.LastReplyID, f.LastActiveID, f.LastActiveTime, f.CreatedAt, f.UpdatedAt)
	return err
}

// Update writes the editable fields; counters are left to UpdateCounters.
func (r *forumRepository) Update(ctx context.Context, f *model.Forum) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bb_forums SET title = ?, slug = ?, description = ?, parent_id = ?, forum_type = ?,
			status = ?, visibility = ?, menu_order = ?, updated_at = ? WHERE id = ?`,
		f.Title, f.Slug, f.Description, f.ParentID, f.Type, f.Status, f.Visibility, f.MenuOrder, f.UpdatedAt, f.ID)
	return err
}

// UpdateCounters 写入聚合计数
func (r *forumRepository) UpdateCounters(ctx context.Context, id int64, c model.ForumCounters) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bb_forums SET subforum_count = ?, topic_count = ?, topic_count_hidden = ?, reply_count = ?,
			total_topic_count = ?, total_reply_count = ?, last_topic_id = ?, last_reply_id = ?,
			last_active_id = ?, last_active_time = ? WHERE id = ?`,
		c.SubforumCount, c.TopicCount, c.TopicCountHidden, c.ReplyCount, c.TotalTopicCount, c.TotalReplyCount,
		c.LastTopicID, c.LastReplyID, c.LastActiveID, c.LastActiveTime, id)
	return err
}

// Delete 删除 Forum
func (r *forumRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_forums WHERE id = ?", id)
	return err
}
