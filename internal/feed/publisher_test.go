package feed

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/metrics"
)

type result struct {
	Aggregator string   `json:"aggregator"`
	AmountOut  *string  `json:"amountOut"`
	Score      *float64 `json:"score"`
}

func TestNewEnvelope(t *testing.T) {
	out := "42"
	msg, err := NewEnvelope(TypeQuoteResult, "req-9", []result{{Aggregator: "odos", AmountOut: &out}})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	if TypeOf(msg) != TypeQuoteResult {
		t.Errorf("type = %v, want %v", TypeOf(msg), TypeQuoteResult)
	}
	if ts := msg.GetFields()["timestamp"].GetNumberValue(); ts <= 0 {
		t.Errorf("timestamp = %v, want > 0", ts)
	}

	rows := msg.GetFields()["payload"].GetListValue().GetValues()
	if len(rows) != 1 {
		t.Fatalf("payload rows = %d, want 1", len(rows))
	}
	row := rows[0].GetStructValue().GetFields()
	if got := row["amountOut"].GetStringValue(); got != "42" {
		t.Errorf("amountOut = %v, want 42", got)
	}
	if _, ok := row["score"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Errorf("score kind = %T, want null", row["score"].GetKind())
	}

	if _, err := NewEnvelope(TypeQuoteResult, "", math.Inf(1)); err == nil {
		t.Error("NewEnvelope should reject values json cannot encode")
	}
	if TypeOf(nil) != "" {
		t.Error("TypeOf(nil) should be empty")
	}
}

func TestPublisher_StreamsResults(t *testing.T) {
	received := make(chan *structpb.Struct, 4)
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		for {
			msg, err := readEnvelope(conn)
			if err != nil {
				return
			}
			received <- msg
		}
	})
	defer server.Close()

	p := NewPublisher(NewClient(testConfig(wsURL(server)), testLogger()), 8, testLogger())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	p.Publish("req-1", map[string]string{"status": "success"})

	select {
	case msg := <-received:
		if id := msg.GetFields()["requestId"].GetStringValue(); id != "req-1" {
			t.Errorf("requestId = %v, want req-1", id)
		}
		if status := PayloadOf(msg).GetFields()["status"].GetStringValue(); status != "success" {
			t.Errorf("payload.status = %v, want success", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for published result")
	}
}

func TestPublisher_HandlesServerMessages(t *testing.T) {
	pong := make(chan bool, 1)
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		writeEnvelope(t, conn, TypeConnectionAck, nil)
		writeEnvelope(t, conn, TypeHeartbeat, map[string]bool{"ping": true})
		for {
			msg, err := readEnvelope(conn)
			if err != nil {
				return
			}
			if TypeOf(msg) == TypeHeartbeat {
				pong <- PayloadOf(msg).GetFields()["pong"].GetBoolValue()
			}
		}
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server)), testLogger())
	p := NewPublisher(client, 0, testLogger())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	select {
	case ok := <-pong:
		if !ok {
			t.Error("heartbeat reply should carry pong=true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}

	deadline := time.Now().Add(time.Second)
	for client.State() != StateReady && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if client.State() != StateReady {
		t.Errorf("State = %v, want %v", client.State(), StateReady)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	p := NewPublisher(NewClient(Config{URL: "ws://localhost:9/feed"}, testLogger()), 1, testLogger())
	before := testutil.ToFloat64(metrics.FeedDropped)

	// not started, so nothing drains the queue
	p.Publish("a", nil)
	p.Publish("b", nil)
	p.Publish("c", nil)

	if got := testutil.ToFloat64(metrics.FeedDropped) - before; got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
	if len(p.queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(p.queue))
	}
}
