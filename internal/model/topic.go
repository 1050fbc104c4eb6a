package model

// Topic 主题模型
type Topic struct {
	ID      int64  `db:"id"`
	ForumID int64  `db:"forum_id"`
	Title   string `db:"title"`
	Content string `db:"content"`
	Author
	Status           Status `db:"status"`
	PriorStatus      Status `db:"prior_status"`       // status before spam
	TrashPriorStatus Status `db:"trash_prior_status"` // status before trash
	MenuOrder        int    `db:"menu_order"`
	TopicCounters
	PreTrashedReplies IDList `db:"pre_trashed_replies"`
	PreSpammedReplies IDList `db:"pre_spammed_replies"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

// TopicCounters denormalized topic aggregates, written only by the counter walker.
type TopicCounters struct {
	ReplyCount       int   `db:"reply_count" json:"reply_count"`
	ReplyCountHidden int   `db:"reply_count_hidden" json:"reply_count_hidden"`
	VoiceCount       int   `db:"voice_count" json:"voice_count"`
	LastReplyID      int64 `db:"last_reply_id" json:"last_reply_id"`
	LastActiveID     int64 `db:"last_active_id" json:"last_active_id"`
	LastActiveTime   int64 `db:"last_active_time" json:"last_active_time"`
}

// TopicDTO 主题数据传输对象
type TopicDTO struct {
	ID       int64  `json:"id"`
	ForumID  int64  `json:"forum_id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Rendered string `json:"rendered,omitempty"`
	Author
	Status    Status   `json:"status"`
	MenuOrder int      `json:"menu_order"`
	Tags      []string `json:"tags,omitempty"`
	TopicCounters
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// ToDTO converts the row into its API shape
func (t *Topic) ToDTO() *TopicDTO {
	return &TopicDTO{
		ID:            t.ID,
		ForumID:       t.ForumID,
		Title:         t.Title,
		Content:       t.Content,
		Author:        t.Author,
		Status:        t.Status,
		MenuOrder:     t.MenuOrder,
		TopicCounters: t.TopicCounters,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// TopicListItem 列表项（不含内容）
type TopicListItem struct {
	ID      int64  `json:"id"`
	ForumID int64  `json:"forum_id"`
	Title   string `json:"title"`
	Author
	Status Status `json:"status"`
	TopicCounters
	CreatedAt int64 `json:"created_at"`
}
