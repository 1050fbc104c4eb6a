package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"barebones/internal/core/logger"
	"barebones/internal/event"
)

// Envelope is the JSON body posted to every webhook
type Envelope struct {
	Event  event.Event `json:"event"`
	Public bool        `json:"public"`
	SentAt int64       `json:"sent_at"`
}

// Notifier posts events to the configured webhook URLs. Deliveries are
// fire-and-forget: a failure is logged and dropped.
type Notifier struct {
	client  *http.Client
	urls    []string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier 创建Webhook通知器
func NewNotifier(urls []string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		client:  &http.Client{Timeout: timeout},
		urls:    urls,
		timeout: timeout,
	}
}

// Enabled 是否配置了Webhook
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.urls) > 0
}

// OnEvent is the bus subscriber; delivery runs off the request path.
func (n *Notifier) OnEvent(_ context.Context, e event.Event) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.Send(ctx, e)
	}()
}

// Send posts e to every URL and returns how many deliveries failed.
func (n *Notifier) Send(ctx context.Context, e event.Event) int {
	body, err := json.Marshal(Envelope{Event: e, Public: e.Public, SentAt: time.Now().Unix()})
	if err != nil {
		logger.Error("webhook encode failed", logger.ErrorField(err))
		return len(n.urls)
	}

	failed := 0
	for _, url := range n.urls {
		if err := n.post(ctx, url, body); err != nil {
			failed++
			logger.Warn("webhook delivery failed",
				logger.String("url", url),
				logger.String("type", string(e.Type)),
				logger.ErrorField(err))
		}
	}
	return failed
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "barebones-webhook/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// Wait blocks until in-flight deliveries finish, used on shutdown.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
