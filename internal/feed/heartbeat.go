package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// heartbeat pings the feed server and forces a reconnect when it goes quiet
type heartbeat struct {
	client   Client
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	lastSeen atomic.Int64 // unix nanos
	stale    atomic.Bool
}

func newHeartbeat(client Client, interval, timeout time.Duration, logger *slog.Logger) *heartbeat {
	h := &heartbeat{
		client:   client,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
	h.touch()
	return h
}

func (h *heartbeat) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Debug("Heartbeat started", "interval", h.interval, "timeout", h.timeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *heartbeat) tick() {
	quiet := time.Since(time.Unix(0, h.lastSeen.Load()))
	if quiet > h.timeout {
		if !h.stale.Swap(true) {
			h.logger.Warn("Feed heartbeat timed out, reconnecting", "quiet", quiet, "timeout", h.timeout)
		}
		h.client.TriggerReconnect()
		return
	}
	h.stale.Store(false)

	ping, err := NewEnvelope(TypeHeartbeat, "", map[string]bool{"ping": true})
	if err != nil {
		h.logger.Error("Failed to build heartbeat", "error", err)
		return
	}
	if err := h.client.Send(ping); err != nil {
		h.logger.Error("Failed to send heartbeat", "error", err)
	}
}

// touch records inbound traffic
func (h *heartbeat) touch() {
	h.lastSeen.Store(time.Now().UnixNano())
}
