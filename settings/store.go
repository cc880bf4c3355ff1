package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists per-display settings.
type Store interface {
	Get(ctx context.Context, display string) (Display, error)
	Save(ctx context.Context, display string, d Display) error
}

// RedisStore keeps one JSON document per display. Displays with no saved
// document, and fields missing from a saved one, fall back to the defaults.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	defaults Display
}

func NewRedisStore(client *redis.Client, prefix string, defaults Display) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, defaults: defaults}
}

func (r *RedisStore) key(display string) string { return r.prefix + display }
func (r *RedisStore) indexKey() string          { return strings.TrimSuffix(r.prefix, ":") + "s" }

func (r *RedisStore) Get(ctx context.Context, display string) (Display, error) {
	data, err := r.client.Get(ctx, r.key(display)).Bytes()
	if err == redis.Nil {
		return r.defaults, nil
	}
	if err != nil {
		return Display{}, fmt.Errorf("load settings for %s: %w", display, err)
	}
	return decode(data, r.defaults)
}

func (r *RedisStore) Save(ctx context.Context, display string, d Display) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(display), data, 0)
	pipe.SAdd(ctx, r.indexKey(), display)
	_, err = pipe.Exec(ctx)
	return err
}

// Displays lists every display with saved settings.
func (r *RedisStore) Displays(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.indexKey()).Result()
}

func decode(data []byte, defaults Display) (Display, error) {
	d := defaults
	if err := json.Unmarshal(data, &d); err != nil {
		return Display{}, fmt.Errorf("decode settings: %w", err)
	}
	return d, nil
}

// MemoryStore holds settings in process, for stations without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	defaults Display
	saved    map[string]Display
}

func NewMemoryStore(defaults Display) *MemoryStore {
	return &MemoryStore{defaults: defaults, saved: make(map[string]Display)}
}

func (m *MemoryStore) Get(_ context.Context, display string) (Display, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.saved[display]; ok {
		return d, nil
	}
	return m.defaults, nil
}

func (m *MemoryStore) Save(_ context.Context, display string, d Display) error {
	if err := d.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.saved[display] = d
	m.mu.Unlock()
	return nil
}
