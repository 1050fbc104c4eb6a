package repository

import (
	"context"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// ReplyRepository Reply 数据访问接口
type ReplyRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Reply, error)
	GetByTopic(ctx context.Context, topicID int64, statuses []model.Status, offset, limit int) ([]*model.Reply, error)
	AllByTopic(ctx context.Context, topicID int64) ([]*model.Reply, error)
	Snapshots(ctx context.Context, topicID int64) ([]model.ReplySnapshot, error)
	MaxPosition(ctx context.Context, topicID int64) (int, error)
	Create(ctx context.Context, reply *model.Reply) error
	Update(ctx context.Context, reply *model.Reply) error
	SetForumByTopic(ctx context.Context, topicID, forumID int64) error
	Delete(ctx context.Context, id int64) error
	DeleteByTopic(ctx context.Context, topicID int64) error
	FindDuplicate(ctx context.Context, topicID int64, author model.Author, content string) (bool, error)
}

const replyColumns = `id, topic_id, forum_id, reply_to, content, author_id, anonymous_name, anonymous_email,
	anonymous_website, author_ip, status, prior_status, trash_prior_status, menu_order, created_at, updated_at`

// replyRepository Reply 数据访问实现
type replyRepository struct {
	db sqlx.ExtContext
}

// NewReplyRepository 创建 ReplyRepository 实例
func NewReplyRepository(db sqlx.ExtContext) ReplyRepository {
	return &replyRepository{db: db}
}

// GetByID 根据ID获取Reply, nil when absent
func (r *replyRepository) GetByID(ctx context.Context, id int64) (*model.Reply, error) {
	var reply model.Reply
	err := sqlx.GetContext(ctx, r.db, &reply, "SELECT "+replyColumns+" FROM bb_replies WHERE id = ?", id)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &reply, nil
}

// GetByTopic 按位置顺序分页
func (r *replyRepository) GetByTopic(ctx context.Context, topicID int64, statuses []model.Status, offset, limit int) ([]*model.Reply, error) {
	query, args, err := in(r.db,
		"SELECT "+replyColumns+" FROM bb_replies WHERE topic_id = ? AND status IN (?) ORDER BY menu_order ASC, id ASC LIMIT ? OFFSET ?",
		topicID, statuses, limit, offset)
	if err != nil {
		return nil, err
	}
	var replies []*model.Reply
	if err := sqlx.SelectContext(ctx, r.db, &replies, query, args...); err != nil {
		return nil, err
	}
	return replies, nil
}

// AllByTopic every reply of the topic regardless of status, in position order
func (r *replyRepository) AllByTopic(ctx context.Context, topicID int64) ([]*model.Reply, error) {
	var replies []*model.Reply
	err := sqlx.SelectContext(ctx, r.db, &replies,
		"SELECT "+replyColumns+" FROM bb_replies WHERE topic_id = ? ORDER BY menu_order ASC, id ASC", topicID)
	if err != nil {
		return nil, err
	}
	return replies, nil
}

// Snapshots 主题计数所需的回复快照
func (r *replyRepository) Snapshots(ctx context.Context, topicID int64) ([]model.ReplySnapshot, error) {
	var snaps []model.ReplySnapshot
	err := sqlx.SelectContext(ctx, r.db, &snaps,
		`SELECT id, status, author_id, anonymous_name, anonymous_email, created_at
		FROM bb_replies WHERE topic_id = ? ORDER BY id ASC`, topicID)
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// MaxPosition 最大楼层, 0 for an empty topic
func (r *replyRepository) MaxPosition(ctx context.Context, topicID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, "SELECT COALESCE(MAX(menu_order), 0) FROM bb_replies WHERE topic_id = ?", topicID)
	return n, err
}

// Create 创建Reply
func (r *replyRepository) Create(ctx context.Context, p *model.Reply) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO bb_replies ("+replyColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.TopicID, p.ForumID, p.ReplyTo, p.Content, p.AuthorID, p.AnonymousName, p.AnonymousEmail,
		p.AnonymousWebsite, p.AuthorIP, p.Status, p.PriorStatus, p.TrashPriorStatus, p.MenuOrder, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update 更新Reply
func (r *replyRepository) Update(ctx context.Context, p *model.Reply) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bb_replies SET topic_id = ?, forum_id = ?, reply_to = ?, content = ?, status = ?, prior_status = ?,
			trash_prior_status = ?, menu_order = ?, updated_at = ? WHERE id = ?`,
		p.TopicID, p.ForumID, p.ReplyTo, p.Content, p.Status, p.PriorStatus, p.TrashPriorStatus, p.MenuOrder, p.UpdatedAt, p.ID)
	return err
}

// SetForumByTopic follows a topic that moved forums
func (r *replyRepository) SetForumByTopic(ctx context.Context, topicID, forumID int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE bb_replies SET forum_id = ? WHERE topic_id = ?", forumID, topicID)
	return err
}

// Delete 删除Reply
func (r *replyRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_replies WHERE id = ?", id)
	return err
}

// DeleteByTopic 删除主题的全部回复
func (r *replyRepository) DeleteByTopic(ctx context.Context, topicID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_replies WHERE topic_id = ?", topicID)
	return err
}

// FindDuplicate reports a non-trashed reply in the topic with the same author and content
func (r *replyRepository) FindDuplicate(ctx context.Context, topicID int64, a model.Author, content string) (bool, error) {
	var n int
	var err error
	if a.AuthorID > 0 {
		err = sqlx.GetContext(ctx, r.db, &n,
			"SELECT COUNT(*) FROM bb_replies WHERE topic_id = ? AND author_id = ? AND content = ? AND status <> ?",
			topicID, a.AuthorID, content, model.StatusTrash)
	} else {
		err = sqlx.GetContext(ctx, r.db, &n,
			"SELECT COUNT(*) FROM bb_replies WHERE topic_id = ? AND author_id = 0 AND anonymous_email = ? AND content = ? AND status <> ?",
			topicID, a.AnonymousEmail, content, model.StatusTrash)
	}
	return n > 0, err
}
