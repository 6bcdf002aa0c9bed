// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/metrics"
)

const (
	defaultBuffer = 64
	dropLogEvery  = 100
)

// MemoryBus delivers messages to subscribers without ever blocking the
// publisher. A subscriber whose buffer is full misses the message; the drop
// is counted. Delivery is best effort and in-process only.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	buffer int

	dropped atomic.Uint64
}

// NewMemoryBus returns a bus with the default per-subscriber buffer.
func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(defaultBuffer)
}

// NewMemoryBusWithBuffer returns a bus whose subscribers buffer n messages.
func NewMemoryBusWithBuffer(n int) *MemoryBus {
	if n <= 0 {
		n = defaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]*memSub), buffer: n}
}

// Publish hands msg to every subscriber of topic that has room for it.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if err := ctx.Err(); err != nil {
		metrics.IncBusDropReason(topic, "canceled")
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}

	// Sends happen under the read lock so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	metrics.IncBusPublished(topic)
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		default:
			metrics.IncBusDrop(topic)
			if n := b.dropped.Add(1); n%dropLogEvery == 1 {
				log.L().Warn().
					Str("topic", topic).
					Uint64("dropped", n).
					Msg("memory bus subscriber is full; dropping messages")
			}
		}
	}
	return nil
}

// Subscribe registers a new subscriber. It is closed automatically when ctx ends.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if ctx == nil {
		return nil, fmt.Errorf("subscribe context is nil")
	}
	s := &memSub{b: b, topic: topic, ch: make(chan Message, b.buffer)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()
	metrics.AddBusSubscribers(topic, 1)

	if ctx.Done() != nil {
		s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })
	}
	return s, nil
}

// Subscribers returns the number of subscribers of topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Dropped returns the number of messages dropped since creation.
func (b *MemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
	once  sync.Once
	stop  func() bool
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.b.mu.Lock()
		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
		s.b.mu.Unlock()
		metrics.AddBusSubscribers(s.topic, -1)
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
