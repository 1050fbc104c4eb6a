package repository

import (
	"context"
	"strings"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// TagRepository Tag 数据访问接口
type TagRepository interface {
	GetByID(ctx context.Context, tagID int64) (*model.Tag, error)
	GetByName(ctx context.Context, name string) (*model.Tag, error)
	GetAll(ctx context.Context, offset, limit int) ([]*model.Tag, error)
	GetByTopic(ctx context.Context, topicID int64) ([]*model.Tag, error)
	Create(ctx context.Context, tag *model.Tag) error
	AddTopics(ctx context.Context, tagID int64, delta int) error
}

const tagColumns = `id, name, slug, topic_count, created_at`

// tagRepository Tag 数据访问实现
type tagRepository struct {
	db sqlx.ExtContext
}

// NewTagRepository 创建 TagRepository 实例
func NewTagRepository(db sqlx.ExtContext) TagRepository {
	return &tagRepository{db: db}
}

// GetByID 根据 ID 获取 Tag
func (r *tagRepository) GetByID(ctx context.Context, tagID int64) (*model.Tag, error) {
	var tag model.Tag
	err := sqlx.GetContext(ctx, r.db, &tag, "SELECT "+tagColumns+" FROM bb_tags WHERE id = ?", tagID)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// GetByName 根据名称获取 Tag
func (r *tagRepository) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := sqlx.GetContext(ctx, r.db, &tag, "SELECT "+tagColumns+" FROM bb_tags WHERE name = ?", name)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// GetAll 按主题数排序
func (r *tagRepository) GetAll(ctx context.Context, offset, limit int) ([]*model.Tag, error) {
	var tags []*model.Tag
	err := sqlx.SelectContext(ctx, r.db, &tags,
		"SELECT "+tagColumns+" FROM bb_tags WHERE topic_count > 0 ORDER BY topic_count DESC, id ASC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// GetByTopic 获取主题关联的 Tag
func (r *tagRepository) GetByTopic(ctx context.Context, topicID int64) ([]*model.Tag, error) {
	var tags []*model.Tag
	query := `
		SELECT t.id, t.name, t.slug, t.topic_count, t.created_at FROM bb_tags t
		INNER JOIN bb_topic_tags tt ON t.id = tt.tag_id
		WHERE tt.topic_id = ?
		ORDER BY t.name ASC
	`
	if err := sqlx.SelectContext(ctx, r.db, &tags, query, topicID); err != nil {
		return nil, err
	}
	return tags, nil
}

// Create 创建 Tag
func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) error {
	if tag.Slug == "" {
		tag.Slug = GenerateSlug(tag.Name)
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO bb_tags ("+tagColumns+") VALUES (?, ?, ?, ?, ?)",
		tag.ID, tag.Name, tag.Slug, tag.TopicCount, tag.CreatedAt)
	return err
}

// AddTopics adjusts the tag's topic count by delta
func (r *tagRepository) AddTopics(ctx context.Context, tagID int64, delta int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE bb_tags SET topic_count = topic_count + ? WHERE id = ?", delta, tagID)
	return err
}

// GenerateSlug lowercases, turns spaces into dashes and drops everything else
// that is not a letter or digit.
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	var result []byte
	for i := 0; i < len(slug); i++ {
		c := slug[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			result = append(result, c)
		}
	}
	return string(result)
}
