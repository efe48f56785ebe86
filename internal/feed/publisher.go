package feed

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/metrics"
)

// DefaultQueueSize bounds the envelopes waiting to be written
const DefaultQueueSize = 256

// Publisher pushes aggregation responses onto the feed without blocking callers
type Publisher struct {
	client Client
	queue  chan *structpb.Struct
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPublisher creates a publisher over client; queueSize <= 0 selects DefaultQueueSize
func NewPublisher(client Client, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	p := &Publisher{
		client: client,
		queue:  make(chan *structpb.Struct, queueSize),
		logger: logger.With("component", "FeedPublisher"),
	}
	client.SetMessageHandler(p.handleMessage)
	client.SetReconnectedHandler(func() {
		p.logger.Info("Feed reconnected")
	})
	return p
}

// Start connects and begins draining the queue.
// A failed initial dial is retried in the background.
func (p *Publisher) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if err := p.client.Connect(p.ctx); err != nil {
		p.logger.Warn("Feed unavailable, retrying in background", "error", err)
		p.client.TriggerReconnect()
	}

	p.wg.Add(1)
	go p.drain()
	p.logger.Info("Feed publisher started")
	return nil
}

// Stop halts the drain loop and closes the connection
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	_ = p.client.Close()
	p.logger.Info("Feed publisher stopped")
}

// Publish enqueues one response. It never blocks; when the queue is full
// the envelope is dropped and counted.
func (p *Publisher) Publish(requestID string, payload any) {
	msg, err := NewEnvelope(TypeQuoteResult, requestID, payload)
	if err != nil {
		p.logger.Error("Failed to build feed envelope", "requestId", requestID, "error", err)
		return
	}
	select {
	case p.queue <- msg:
	default:
		metrics.FeedDropped.Inc()
		p.logger.Warn("Feed queue full, dropping result", "requestId", requestID)
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg := <-p.queue:
			if err := p.client.Send(msg); err != nil {
				metrics.FeedDropped.Inc()
				p.logger.Debug("Feed send failed, result dropped", "error", err)
			}
		}
	}
}

func (p *Publisher) handleMessage(msg *structpb.Struct) error {
	switch TypeOf(msg) {
	case TypeHeartbeat:
		if PayloadOf(msg).GetFields()["ping"].GetBoolValue() {
			pong, err := NewEnvelope(TypeHeartbeat, "", map[string]bool{"pong": true})
			if err != nil {
				return err
			}
			return p.client.Send(pong)
		}
	case TypeConnectionAck:
		p.client.SetState(StateReady)
	case TypeError:
		p.logger.Error("Feed server error", "payload", PayloadOf(msg).AsMap())
	default:
		p.logger.Debug("Ignoring feed message", "type", TypeOf(msg))
	}
	return nil
}
