package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope types
const (
	TypeQuoteResult   = "quote_result"
	TypeHeartbeat     = "heartbeat"
	TypeConnectionAck = "connection_ack"
	TypeError         = "error"
)

// NewEnvelope wraps payload as {type, timestamp, requestId, payload}.
// payload goes through encoding/json first so its json tags shape the struct.
func NewEnvelope(msgType, requestID string, payload any) (*structpb.Struct, error) {
	fields := map[string]any{
		"type":      msgType,
		"timestamp": float64(time.Now().UnixMilli()),
	}
	if requestID != "" {
		fields["requestId"] = requestID
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		fields["payload"] = generic
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build envelope: %w", err)
	}
	return msg, nil
}

// TypeOf returns the envelope type, or "" when absent
func TypeOf(msg *structpb.Struct) string {
	if msg == nil {
		return ""
	}
	return msg.GetFields()["type"].GetStringValue()
}

// PayloadOf returns the payload object, or nil
func PayloadOf(msg *structpb.Struct) *structpb.Struct {
	if msg == nil {
		return nil
	}
	return msg.GetFields()["payload"].GetStructValue()
}
