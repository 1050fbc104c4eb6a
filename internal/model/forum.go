package model

// ForumType 版块类型
type ForumType string

const (
	ForumTypeForum    ForumType = "forum"
	ForumTypeCategory ForumType = "category"
)

// ForumStatus 版块状态
type ForumStatus string

const (
	ForumOpen   ForumStatus = "open"
	ForumClosed ForumStatus = "closed"
)

// Visibility 版块可见性
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityHidden  Visibility = "hidden"
)

// rank orders visibilities from least to most restrictive
func (v Visibility) rank() int {
	switch v {
	case VisibilityPrivate:
		return 1
	case VisibilityHidden:
		return 2
	}
	return 0
}

// MoreRestrictive returns whichever of v and o hides more.
func (v Visibility) MoreRestrictive(o Visibility) Visibility {
	if o.rank() > v.rank() {
		return o
	}
	return v
}

// Forum 版块模型
type Forum struct {
	ID          int64       `db:"id"`
	Title       string      `db:"title"`
	Slug        string      `db:"slug"`
	Description string      `db:"description"`
	ParentID    int64       `db:"parent_id"` // 0 表示一级版块
	Type        ForumType   `db:"forum_type"`
	Status      ForumStatus `db:"status"`
	Visibility  Visibility  `db:"visibility"`
	MenuOrder   int         `db:"menu_order"`
	ForumCounters
	CreatedAt int64 `db:"created_at"`
	UpdatedAt int64 `db:"updated_at"`
}

// ForumCounters denormalized forum aggregates, written only by the counter walker.
type ForumCounters struct {
	SubforumCount    int   `db:"subforum_count" json:"subforum_count"`
	TopicCount       int   `db:"topic_count" json:"topic_count"`
	TopicCountHidden int   `db:"topic_count_hidden" json:"topic_count_hidden"`
	ReplyCount       int   `db:"reply_count" json:"reply_count"`
	TotalTopicCount  int   `db:"total_topic_count" json:"total_topic_count"`
	TotalReplyCount  int   `db:"total_reply_count" json:"total_reply_count"`
	LastTopicID      int64 `db:"last_topic_id" json:"last_topic_id"`
	LastReplyID      int64 `db:"last_reply_id" json:"last_reply_id"`
	LastActiveID     int64 `db:"last_active_id" json:"last_active_id"`
	LastActiveTime   int64 `db:"last_active_time" json:"last_active_time"`
}

// IsCategory categories group forums and never hold topics
func (f *Forum) IsCategory() bool {
	return f.Type == ForumTypeCategory
}

// ForumDTO 版块数据传输对象
type ForumDTO struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description,omitempty"`
	ParentID    int64       `json:"parent_id"`
	Type        ForumType   `json:"type"`
	Status      ForumStatus `json:"status"`
	Visibility  Visibility  `json:"visibility"`
	MenuOrder   int         `json:"menu_order"`
	ForumCounters
	CreatedAt int64 `json:"created_at"`
}

// ToDTO converts the row into its API shape
func (f *Forum) ToDTO() *ForumDTO {
	return &ForumDTO{
		ID:            f.ID,
		Title:         f.Title,
		Slug:          f.Slug,
		Description:   f.Description,
		ParentID:      f.ParentID,
		Type:          f.Type,
		Status:        f.Status,
		Visibility:    f.Visibility,
		MenuOrder:     f.MenuOrder,
		ForumCounters: f.ForumCounters,
		CreatedAt:     f.CreatedAt,
	}
}

// ForumTreeNode 论坛树节点
type ForumTreeNode struct {
	ForumDTO
	Children []*ForumTreeNode `json:"children,omitempty"`
}

// ForumRequest 创建/更新版块请求
type ForumRequest struct {
	Title       string      `json:"title" binding:"required,max=255"`
	Description string      `json:"description"`
	ParentID    int64       `json:"parent_id"`
	Type        ForumType   `json:"type" binding:"omitempty,oneof=forum category"`
	Status      ForumStatus `json:"status" binding:"omitempty,oneof=open closed"`
	Visibility  Visibility  `json:"visibility" binding:"omitempty,oneof=public private hidden"`
	MenuOrder   int         `json:"menu_order"`
}
