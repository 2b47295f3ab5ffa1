// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"sync"
)

// defaultMaxAttempts is the delivery cap before a message is dead-lettered.
const defaultMaxAttempts = 5

// Memory is an in-process queue with at-least-once delivery. It backs tests
// and the single-process worker mode; external brokers implement Source and
// Enqueuer instead.
type Memory struct {
	mu       sync.Mutex
	ready    []Delivery
	inflight map[uint64]Delivery
	dead     []Delivery
	nextID   uint64
	closed   bool

	maxAttempts int
	notify      chan struct{}
}

var (
	_ Source   = (*Memory)(nil)
	_ Enqueuer = (*Memory)(nil)
)

// MemoryOption configures a Memory queue.
type MemoryOption func(*Memory)

// WithMaxAttempts sets the delivery cap before a message is dead-lettered.
func WithMaxAttempts(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewMemory creates an empty in-memory queue.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		inflight:    make(map[uint64]Delivery),
		maxAttempts: defaultMaxAttempts,
		notify:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue adds messages to the queue.
func (m *Memory) Enqueue(ctx context.Context, messages ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrQueueClosed
	}

	for _, message := range messages {
		m.nextID++
		m.ready = append(m.ready, Delivery{
			ID:      m.nextID,
			Message: message,
			Attempt: 1,
		})
	}
	m.signal()
	return nil
}

// Receive blocks until at least one message is available, then returns up to
// max deliveries and moves them in flight.
func (m *Memory) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max < 1 {
		max = 1
	}

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if len(m.ready) > 0 {
			n := min(max, len(m.ready))
			batch := make([]Delivery, n)
			copy(batch, m.ready[:n])
			m.ready = append(m.ready[:0], m.ready[n:]...)
			for _, delivery := range batch {
				m.inflight[delivery.ID] = delivery
			}
			m.mu.Unlock()
			return batch, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.notify:
		}
	}
}

// Ack removes a delivery from flight. Acking an unknown delivery is a no-op.
func (m *Memory) Ack(ctx context.Context, delivery Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, delivery.ID)
	return nil
}

// Nack returns a delivery to the queue. A message past the attempt cap is
// moved to the dead-letter list instead of being redelivered.
func (m *Memory) Nack(ctx context.Context, delivery Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.inflight[delivery.ID]
	if !ok {
		return nil
	}
	delete(m.inflight, delivery.ID)

	stored.Attempt++
	if stored.Attempt > m.maxAttempts {
		m.dead = append(m.dead, stored)
		return nil
	}

	m.ready = append(m.ready, stored)
	m.signal()
	return nil
}

// Len reports how many messages are waiting for delivery.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready)
}

// DeadLetters returns the messages that exhausted their delivery attempts.
func (m *Memory) DeadLetters() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	dead := make([]Delivery, len(m.dead))
	copy(dead, m.dead)
	return dead
}

// Close marks the queue closed. Pending receivers return ErrQueueClosed.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.notify)
}

// signal wakes one blocked receiver. Must hold mu.
func (m *Memory) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
