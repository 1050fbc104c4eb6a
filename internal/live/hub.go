package live

import (
	"context"
	"time"

	"barebones/internal/core/logger"
	"barebones/internal/event"
)

// Message is what connected clients receive for every public event
type Message struct {
	Type    event.Type `json:"type"`
	ForumID int64      `json:"forum_id,omitempty"`
	TopicID int64      `json:"topic_id,omitempty"`
	ReplyID int64      `json:"reply_id,omitempty"`
	Status  string     `json:"status,omitempty"`
	Action  string     `json:"action,omitempty"`
	At      int64      `json:"at"`
}

// Hub fans public events out to websocket clients. All client bookkeeping
// happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop; it returns when ctx is done and closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			logger.Debug("live client connected", logger.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				logger.Debug("live client disconnected", logger.Int("clients", len(h.clients)))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow reader
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// OnEvent is the bus subscriber. Events touching non-public content are
// never pushed.
func (h *Hub) OnEvent(_ context.Context, e event.Event) {
	if !e.Public {
		return
	}
	at := e.At
	if at == 0 {
		at = time.Now().Unix()
	}
	msg := Message{
		Type:    e.Type,
		ForumID: e.ForumID,
		TopicID: e.TopicID,
		ReplyID: e.ReplyID,
		Status:  e.Status,
		Action:  e.Action,
		At:      at,
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("live broadcast queue full, dropping event", logger.String("type", string(e.Type)))
	}
}
