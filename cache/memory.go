// Package cache provides ResultCache implementations for tool results.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is a process-local LRU with a fixed TTL per entry.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.lru.Add(key, value)
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
