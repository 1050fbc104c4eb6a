package model

// ReplySnapshot is the slice of a reply the topic counters are computed from.
type ReplySnapshot struct {
	ID     int64  `db:"id"`
	Status Status `db:"status"`
	Author
	CreatedAt int64 `db:"created_at"`
}

// TopicSnapshot is the slice of a topic the forum counters are computed from.
type TopicSnapshot struct {
	ID             int64  `db:"id"`
	Status         Status `db:"status"`
	ReplyCount     int    `db:"reply_count"`
	LastReplyID    int64  `db:"last_reply_id"`
	LastActiveID   int64  `db:"last_active_id"`
	LastActiveTime int64  `db:"last_active_time"`
	CreatedAt      int64  `db:"created_at"`
}
