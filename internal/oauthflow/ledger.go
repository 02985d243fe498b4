package oauthflow

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers issued state values so each one is honoured at most once.
type Ledger interface {
	Put(ctx context.Context, state string, ttl time.Duration) error
	// Consume removes state and reports whether it was outstanding.
	Consume(ctx context.Context, state string) (bool, error)
}

// MemoryLedger is a Ledger for a single instance.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryLedger) Put(ctx context.Context, state string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	// prune on write so abandoned attempts do not accumulate
	for k, exp := range l.entries {
		if now.After(exp) {
			delete(l.entries, k)
		}
	}
	l.entries[state] = now.Add(ttl)
	return nil
}

func (l *MemoryLedger) Consume(ctx context.Context, state string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[state]
	if !ok {
		return false, nil
	}
	delete(l.entries, state)
	return !l.now().After(exp), nil
}

// RedisLedger shares issued states between instances. Entries live under
// "oauth:state:<state>" and are consumed atomically with GETDEL.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "oauth:state:"
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) Put(ctx context.Context, state string, ttl time.Duration) error {
	return l.client.Set(ctx, l.prefix+state, "1", ttl).Err()
}

func (l *RedisLedger) Consume(ctx context.Context, state string) (bool, error) {
	_, err := l.client.GetDel(ctx, l.prefix+state).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
