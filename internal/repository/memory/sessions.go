package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"little_lemon/internal/redis"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// KV stands in for Redis: auth tokens and the JSON cache share one keyspace
// under different prefixes, the same way the Redis client lays them out.
type KV struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewKV() *KV {
	return &KV{entries: map[string]entry{}, now: time.Now}
}

func (k *KV) set(key string, value []byte, ttl time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = k.now().Add(ttl)
	}
	k.entries[key] = e
}

func (k *KV) get(key string) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(k.now()) {
		delete(k.entries, key)
		return nil, false
	}
	return e.value, true
}

func (k *KV) SetToken(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	data, err := json.Marshal(userID)
	if err != nil {
		return err
	}
	k.set("token:"+token, data, ttl)
	return nil
}

func (k *KV) GetToken(ctx context.Context, token string) (uint, error) {
	data, ok := k.get("token:" + token)
	if !ok {
		return 0, redis.ErrTokenNotFound
	}
	var userID uint
	if err := json.Unmarshal(data, &userID); err != nil {
		return 0, err
	}
	return userID, nil
}

func (k *KV) DeleteToken(ctx context.Context, token string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, "token:"+token)
	return nil
}

func (k *KV) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	k.set("cache:"+key, data, ttl)
	return nil
}

func (k *KV) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, ok := k.get("cache:" + key)
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (k *KV) DeletePrefix(ctx context.Context, prefix string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key := range k.entries {
		if strings.HasPrefix(key, "cache:"+prefix) {
			delete(k.entries, key)
		}
	}
	return nil
}
