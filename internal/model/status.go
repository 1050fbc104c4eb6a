package model

// Status post status shared by topics and replies
type Status string

const (
	StatusPublish Status = "publish"
	StatusClosed  Status = "closed" // topics only
	StatusPending Status = "pending"
	StatusSpam    Status = "spam"
	StatusTrash   Status = "trash"
)

// IsPublic reports whether content in this status is shown to everyone and
// counted in the public counters.
func (s Status) IsPublic() bool {
	return s == StatusPublish || s == StatusClosed
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusPublish, StatusClosed, StatusPending, StatusSpam, StatusTrash:
		return true
	}
	return false
}

// PostType distinguishes the two kinds of posts
type PostType string

const (
	PostTopic PostType = "topic"
	PostReply PostType = "reply"
)
