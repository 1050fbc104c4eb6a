package model

// AnonymousFields 匿名发帖信息, ignored for logged-in users
type AnonymousFields struct {
	Name    string `json:"anonymous_name"`
	Email   string `json:"anonymous_email"`
	Website string `json:"anonymous_website"`
}

// TopicRequest 发布主题请求
type TopicRequest struct {
	ForumID int64  `json:"forum_id" binding:"required"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Tags    string `json:"tags"` // comma separated
	Nonce   string `json:"nonce"`
	AnonymousFields
}

// ReplyRequest 发布回复请求
type ReplyRequest struct {
	TopicID int64  `json:"topic_id" binding:"required"`
	ReplyTo int64  `json:"reply_to"`
	Content string `json:"content"`
	Nonce   string `json:"nonce"`
	AnonymousFields
}

// EditRequest 编辑主题或回复. Title and Tags apply to topics only; a nil
// Tags leaves the tag set alone.
type EditRequest struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Reason  string  `json:"reason" binding:"max=255"`
	Tags    *string `json:"tags"`
	Nonce   string  `json:"nonce"`
}

// MoveTopicRequest 移动主题
type MoveTopicRequest struct {
	ForumID int64 `json:"forum_id" binding:"required"`
}

// SplitRequest splits a topic at ReplyID into a new topic
type SplitRequest struct {
	ReplyID int64  `json:"reply_id" binding:"required"`
	Title   string `json:"title"`
}

// MergeRequest merges the topic into TargetID
type MergeRequest struct {
	TargetID int64 `json:"target_id" binding:"required"`
}

// MoveReplyRequest 移动回复
type MoveReplyRequest struct {
	TopicID int64 `json:"topic_id" binding:"required"`
}

// RoleRequest 设置论坛角色
type RoleRequest struct {
	Role string `json:"role" binding:"omitempty,oneof=keymaster moderator participant spectator blocked"`
}

// UserStatusRequest 设置用户状态
type UserStatusRequest struct {
	Status UserStatus `json:"status" binding:"required,oneof=active spam deleted"`
}

// ModerateRequest 审核动作
type ModerateRequest struct {
	Action string `json:"action" binding:"required"`
}

// TagsRequest 标签增删, comma separated
type TagsRequest struct {
	Tags string `json:"tags" binding:"required"`
}
