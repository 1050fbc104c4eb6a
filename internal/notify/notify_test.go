package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"barebones/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsEnvelope(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Envelope
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		mu.Lock()
		got = append(got, env)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier([]string{srv.URL}, time.Second)
	failed := n.Send(context.Background(), event.Event{Type: event.TopicCreated, TopicID: 7, Public: true})

	assert.Equal(t, 0, failed)
	require.Len(t, got, 1)
	assert.Equal(t, event.TopicCreated, got[0].Event.Type)
	assert.Equal(t, int64(7), got[0].Event.TopicID)
	assert.True(t, got[0].Public)
}

func TestSendCountsFailures(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer good.Close()

	n := NewNotifier([]string{bad.URL, good.URL}, time.Second)
	assert.Equal(t, 1, n.Send(context.Background(), event.Event{Type: event.ReplyCreated}))
}

func TestOnEventDeliversAsync(t *testing.T) {
	hits := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
	}))
	defer srv.Close()

	n := NewNotifier([]string{srv.URL}, time.Second)
	n.OnEvent(context.Background(), event.Event{Type: event.ForumSaved})
	n.Wait()

	select {
	case <-hits:
	default:
		t.Fatal("webhook not delivered")
	}
}

func TestDisabledNotifierIsQuiet(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	n.OnEvent(context.Background(), event.Event{Type: event.ForumSaved})
	n.Wait()
}
