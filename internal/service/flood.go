package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// FloodGate remembers who posted recently. The reservation is a single
// SET NX EX so two concurrent posts by one actor cannot both pass.
type FloodGate struct {
	rdb    *redis.Client
	window time.Duration
}

// NewFloodGate window <= 0 disables throttling
func NewFloodGate(rdb *redis.Client, window time.Duration) *FloodGate {
	return &FloodGate{rdb: rdb, window: window}
}

func floodKey(actor string) string {
	return "flood:" + actor
}

// Enabled 是否启用
func (f *FloodGate) Enabled() bool {
	return f != nil && f.rdb != nil && f.window > 0
}

// Recent reports whether actor posted within the window. Read only.
func (f *FloodGate) Recent(ctx context.Context, actor string) (bool, error) {
	if !f.Enabled() {
		return false, nil
	}
	n, err := f.rdb.Exists(ctx, floodKey(actor)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Reserve claims the window for actor. False means someone else got there first.
func (f *FloodGate) Reserve(ctx context.Context, actor string) (bool, error) {
	if !f.Enabled() {
		return true, nil
	}
	return f.rdb.SetNX(ctx, floodKey(actor), time.Now().Unix(), f.window).Result()
}

// Release gives the window back after a failed insert
func (f *FloodGate) Release(ctx context.Context, actor string) error {
	if !f.Enabled() {
		return nil
	}
	return f.rdb.Del(ctx, floodKey(actor)).Err()
}
