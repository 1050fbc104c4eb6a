package model

// Reply 回复模型
type Reply struct {
	ID      int64  `db:"id"`
	TopicID int64  `db:"topic_id"`
	ForumID int64  `db:"forum_id"` // denormalized from the topic
	ReplyTo int64  `db:"reply_to"` // threaded parent reply, 0 for none
	Content string `db:"content"`
	Author
	Status           Status `db:"status"`
	PriorStatus      Status `db:"prior_status"`       // status before spam
	TrashPriorStatus Status `db:"trash_prior_status"` // status before trash
	MenuOrder        int    `db:"menu_order"`         // position within the topic, 1-based
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

// ReplyDTO 回复数据传输对象
type ReplyDTO struct {
	ID       int64  `json:"id"`
	TopicID  int64  `json:"topic_id"`
	ForumID  int64  `json:"forum_id"`
	ReplyTo  int64  `json:"reply_to,omitempty"`
	Content  string `json:"content"`
	Rendered string `json:"rendered,omitempty"`
	Author
	Status    Status `json:"status"`
	Position  int    `json:"position"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ToDTO converts the row into its API shape
func (r *Reply) ToDTO() *ReplyDTO {
	return &ReplyDTO{
		ID:        r.ID,
		TopicID:   r.TopicID,
		ForumID:   r.ForumID,
		ReplyTo:   r.ReplyTo,
		Content:   r.Content,
		Author:    r.Author,
		Status:    r.Status,
		Position:  r.MenuOrder,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Revision one entry of a post's edit log
type Revision struct {
	ID        int64    `db:"id" json:"id"`
	PostID    int64    `db:"post_id" json:"post_id"`
	PostType  PostType `db:"post_type" json:"post_type"`
	AuthorID  int64    `db:"author_id" json:"author_id"`
	Reason    string   `db:"reason" json:"reason"`
	Content   string   `db:"content" json:"content"`
	CreatedAt int64    `db:"created_at" json:"created_at"`
}
