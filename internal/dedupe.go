package internal

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/xerrors"
)

const (
	DedupeTypeMemory = "memory"
	DedupeTypeRedis  = "redis"
	DedupeTypeNone   = "none"

	redisDedupePrefix = "sticker-daemon:dedupe:"
)

// Deduplicator remembers update keys so redelivered updates are only handled once.
type Deduplicator interface {
	// CheckAndAdd returns true if key has been seen within the TTL.
	// Adds the key if it has not.
	CheckAndAdd(ctx context.Context, key string) (bool, error)
	Close() error
}

// NewDeduplicator returns the deduplicator for the configured type.
func NewDeduplicator(ctx context.Context, configuration DedupeConfiguration) (Deduplicator, error) {
	ttl := configuration.TTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	switch strings.ToLower(configuration.Type) {
	case DedupeTypeMemory, "":
		return NewMemoryDeduplicator(ttl), nil
	case DedupeTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     configuration.Redis.Address,
			Password: configuration.Redis.Password,
			DB:       configuration.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return nil, xerrors.Errorf("failed to connect to redis: %w", err)
		}

		return NewRedisDeduplicator(client, ttl), nil
	case DedupeTypeNone:
		return noopDeduplicator{}, nil
	default:
		return nil, ErrConfigurationValidateDedupe
	}
}

func createDedupeMessageKey(mid string) string {
	return "MC:" + mid
}

func createDedupeBotStartedKey(userID int64, timestamp int64) string {
	return "BS:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(timestamp, 10)
}

// MemoryDeduplicator keeps keys in process memory.
type MemoryDeduplicator struct {
	dedupeMu sync.Mutex
	dedupe   map[string]int64

	ttl time.Duration
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		dedupe: make(map[string]int64),
		ttl:    ttl,
	}
}

func (md *MemoryDeduplicator) CheckAndAdd(_ context.Context, key string) (bool, error) {
	md.dedupeMu.Lock()
	defer md.dedupeMu.Unlock()

	now := time.Now().UnixNano()
	value := md.dedupe[key]

	has := now < value && value != 0

	if !has {
		md.dedupe[key] = now + int64(md.ttl)
	}

	return has, nil
}

// Eject removes expired keys and returns how many were removed.
func (md *MemoryDeduplicator) Eject(now time.Time) int {
	md.dedupeMu.Lock()
	defer md.dedupeMu.Unlock()

	ejected := 0

	for key, expiry := range md.dedupe {
		if now.UnixNano() >= expiry {
			delete(md.dedupe, key)

			ejected++
		}
	}

	return ejected
}

// Len returns the number of stored keys.
func (md *MemoryDeduplicator) Len() int {
	md.dedupeMu.Lock()
	defer md.dedupeMu.Unlock()

	return len(md.dedupe)
}

func (md *MemoryDeduplicator) Close() error {
	return nil
}

// RedisDeduplicator shares keys between daemons through redis.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{
		client: client,
		ttl:    ttl,
	}
}

func (rd *RedisDeduplicator) CheckAndAdd(ctx context.Context, key string) (bool, error) {
	added, err := rd.client.SetNX(ctx, redisDedupePrefix+key, 1, rd.ttl).Result()
	if err != nil {
		return false, xerrors.Errorf("failed to set dedupe key: %w", err)
	}

	return !added, nil
}

func (rd *RedisDeduplicator) Close() error {
	return rd.client.Close()
}

type noopDeduplicator struct{}

func (noopDeduplicator) CheckAndAdd(context.Context, string) (bool, error) { return false, nil }
func (noopDeduplicator) Close() error                                       { return nil }
