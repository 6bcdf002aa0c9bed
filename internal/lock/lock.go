// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lock provides the per-URL exclusivity table used to reject
// concurrent downloads of the same resource.
package lock

import (
	"context"
	"sync"
)

// Table hands out exclusive leases keyed by an arbitrary string.
//
// TryAcquire never waits: ok is false when the key is already held. The
// returned release func is non-nil only when ok is true and may be called
// more than once.
type Table interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Memory is a process-local Table.
type Memory struct {
	held sync.Map // map[string]struct{}
}

// NewMemory returns an empty in-process lock table.
func NewMemory() *Memory {
	return &Memory{}
}

// TryAcquire atomically marks key as held if it was free.
func (m *Memory) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if _, loaded := m.held.LoadOrStore(key, struct{}{}); loaded {
		return nil, false, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() { m.held.Delete(key) })
	}, true, nil
}

// Held reports whether key is currently held.
func (m *Memory) Held(key string) bool {
	_, ok := m.held.Load(key)
	return ok
}
