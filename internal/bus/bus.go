// Package bus publishes automation events (room changes, state changes,
// agendas) to the home automation bus. Publishing is fire-and-forget from
// the caller's point of view; nothing is ever read back.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Topics published by the control loop and the planner.
const (
	TopicRoom   = "homepilot/room"
	TopicState  = "homepilot/state"
	TopicAgenda = "homepilot/agenda"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Message is the envelope written to the bus.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

func newMessage(topic string, payload any, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding payload for %s: %w", topic, err)
	}
	return Message{Topic: topic, Payload: raw, SentAt: now.UTC()}, nil
}

// LogPublisher writes messages to a structured logger. It is used when no bus
// URL is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "bus")}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ctx context.Context, topic string, payload any) error {
	msg, err := newMessage(topic, payload, time.Now())
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "publish", "topic", msg.Topic, "payload", string(msg.Payload))
	return nil
}

// Memory records published messages. Tests and the MCP server use it to
// inspect what the loop emitted.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, topic string, payload any) error {
	msg, err := newMessage(topic, payload, time.Now())
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return nil
}

// Messages returns a copy of the recorded messages, optionally filtered by
// topic.
func (m *Memory) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}
