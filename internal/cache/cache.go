package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Store is the read-cache contract shared by the redis and in-memory
// implementations. Values round-trip through JSON so both behave the same.
type Store interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]entry
}

type entry struct {
	raw []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{
		m: make(map[string]entry),
	}
}

func (c *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return false, nil
	}

	return true, json.Unmarshal(e.raw, dest)
}

func (c *Memory) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	b, err := json.Marshal(val)

	if err != nil {
		return err
	}

	c.mu.Lock()
	c.m[key] = entry{raw: b, exp: time.Now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.m, key)
	}
	c.mu.Unlock()

	return nil
}
