package event

import (
	"context"
	"sync"
	"time"

	"barebones/internal/core/logger"
)

// Type names what happened
type Type string

const (
	ForumSaved         Type = "forum.saved"
	ForumDeleted       Type = "forum.deleted"
	TopicCreated       Type = "topic.created"
	ReplyCreated       Type = "reply.created"
	PostEdited         Type = "post.edited"
	TopicStatusChanged Type = "topic.status_changed"
	ReplyStatusChanged Type = "reply.status_changed"
	TopicMoved         Type = "topic.moved"
	TopicSplit         Type = "topic.split"
	TopicMerged        Type = "topic.merged"
	ReplyMoved         Type = "reply.moved"
	UserChanged        Type = "user.changed"
)

// Event is published after the transaction that caused it commits.
type Event struct {
	Type    Type   `json:"type"`
	ForumID int64  `json:"forum_id,omitempty"`
	TopicID int64  `json:"topic_id,omitempty"`
	ReplyID int64  `json:"reply_id,omitempty"`
	UserID  int64  `json:"user_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Action  string `json:"action,omitempty"`
	// FromForumID and FromTopicID are set by moves, splits and merges.
	FromForumID int64 `json:"from_forum_id,omitempty"`
	FromTopicID int64 `json:"from_topic_id,omitempty"`
	// Public is true when anyone may see the affected post.
	Public bool  `json:"-"`
	At     int64 `json:"at"`
}

// Handler receives events synchronously
type Handler func(ctx context.Context, e Event)

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn under name, used only in logs
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, namedHandler{name: name, fn: fn})
}

// Publish delivers e to every subscriber. A panicking subscriber is logged
// and does not stop the others. A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At == 0 {
		e.At = time.Now().Unix()
	}
	b.mu.RLock()
	handlers := make([]namedHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(ctx, h, e)
	}
}

func deliver(ctx context.Context, h namedHandler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event subscriber panicked",
				logger.String("subscriber", h.name),
				logger.String("event", string(e.Type)),
				logger.Any("panic", r))
		}
	}()
	h.fn(ctx, e)
}
