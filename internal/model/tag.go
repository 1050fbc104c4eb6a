package model

// Tag 标签模型
type Tag struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Slug       string `db:"slug" json:"slug"`
	TopicCount int    `db:"topic_count" json:"topic_count"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
}

// TopicTag 主题标签关联
type TopicTag struct {
	TopicID int64 `db:"topic_id"`
	TagID   int64 `db:"tag_id"`
}
