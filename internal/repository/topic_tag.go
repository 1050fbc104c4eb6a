package repository

import (
	"context"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// TopicTagRepository TopicTag 数据访问接口
type TopicTagRepository interface {
	GetByTopic(ctx context.Context, topicID int64) ([]int64, error) // 返回 tagID 列表
	Create(ctx context.Context, tt *model.TopicTag) error
	Delete(ctx context.Context, topicID, tagID int64) error
	DeleteByTopic(ctx context.Context, topicID int64) error
}

// topicTagRepository TopicTag 数据访问实现
type topicTagRepository struct {
	db sqlx.ExtContext
}

// NewTopicTagRepository 创建 TopicTagRepository 实例
func NewTopicTagRepository(db sqlx.ExtContext) TopicTagRepository {
	return &topicTagRepository{db: db}
}

// GetByTopic 获取主题关联的 tagID 列表
func (r *topicTagRepository) GetByTopic(ctx context.Context, topicID int64) ([]int64, error) {
	var tagIDs []int64
	err := sqlx.SelectContext(ctx, r.db, &tagIDs, "SELECT tag_id FROM bb_topic_tags WHERE topic_id = ?", topicID)
	if err != nil {
		return nil, err
	}
	return tagIDs, nil
}

// Create 创建关联
func (r *topicTagRepository) Create(ctx context.Context, tt *model.TopicTag) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO bb_topic_tags (topic_id, tag_id) VALUES (?, ?)", tt.TopicID, tt.TagID)
	return err
}

// Delete 删除指定关联
func (r *topicTagRepository) Delete(ctx context.Context, topicID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_topic_tags WHERE topic_id = ? AND tag_id = ?", topicID, tagID)
	return err
}

// DeleteByTopic 删除主题的所有关联
func (r *topicTagRepository) DeleteByTopic(ctx context.Context, topicID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_topic_tags WHERE topic_id = ?", topicID)
	return err
}
