// Package memory keeps recently published events in process. It backs runs without a
// Pub/Sub project and serves as a test double.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultCapacity is how many events are retained when New is given no capacity.
const DefaultCapacity = 256

// Publisher retains the most recent publishes, dropping the oldest beyond capacity.
type Publisher struct {
	mu       sync.RWMutex
	capacity int
	total    int
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
}

// New returns a Publisher holding at most capacity messages.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Publisher{capacity: capacity}
}

// Publish records the message and returns a sequential ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total++
	id := fmt.Sprintf("memory-%d", p.total)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload})
	if over := len(p.messages) - p.capacity; over > 0 {
		p.messages = append(p.messages[:0], p.messages[over:]...)
	}
	return id, nil
}

// Messages returns the retained publishes, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Total counts every publish, including dropped ones.
func (p *Publisher) Total() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}
