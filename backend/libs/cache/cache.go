// Package cache is a fail-open JSON cache on top of redis. Every backend or serialization
// error is logged and reported to the caller as a miss, so a redis outage only costs latency.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultNamespace = "evslot"
	defaultScanCount = 100
	defaultOpTimeout = 2 * time.Second

	generationPrefix = "gen:"
)

// Options tunes the store.
type Options struct {
	// Namespace is prepended to every key as "<namespace>:".
	Namespace string
	// ScanCount bounds the number of keys visited per SCAN page during prefix invalidation.
	ScanCount int64
	// OpTimeout bounds a single cache round trip.
	OpTimeout time.Duration
}

// Store memoizes read models in redis. A Store with a nil client always misses.
type Store struct {
	client    *redis.Client
	namespace string
	scanCount int64
	opTimeout time.Duration
	logger    *zap.Logger
}

// New builds a Store. client may be nil to run without a cache.
func New(client *redis.Client, opts Options, logger *zap.Logger) *Store {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = defaultScanCount
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		namespace: strings.TrimSuffix(opts.Namespace, ":"),
		scanCount: opts.ScanCount,
		opTimeout: opts.OpTimeout,
		logger:    logger,
	}
}

// Enabled reports whether a redis client is attached.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *Store) fullKey(key string) string {
	return s.namespace + ":" + key
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
}

// Get decodes the cached value for key into dst and reports whether it was a hit.
func (s *Store) Get(ctx context.Context, key string, dst interface{}) bool {
	if !s.Enabled() {
		return false
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	data, err := s.client.Get(opCtx, s.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value as JSON under key for ttl. Failures are logged and dropped.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(opCtx, s.fullKey(key), data, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the given keys.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Del(opCtx, full...).Err(); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidatePrefix deletes every key that starts with prefix and returns how many were
// removed. It walks the keyspace with SCAN pages of at most ScanCount keys and deletes each
// page before fetching the next one, until the cursor returns to zero.
func (s *Store) InvalidatePrefix(ctx context.Context, prefix string) int {
	if !s.Enabled() {
		return 0
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	pattern := escapeGlob(s.fullKey(prefix)) + "*"
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.client.Scan(opCtx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			s.logger.Warn("cache scan failed", zap.String("prefix", prefix), zap.Error(err))
			return deleted
		}
		if len(keys) > 0 {
			n, err := s.client.Del(opCtx, keys...).Result()
			if err != nil {
				s.logger.Warn("cache prefix delete failed", zap.String("prefix", prefix), zap.Error(err))
				return deleted
			}
			deleted += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	s.logger.Debug("cache prefix invalidated", zap.String("prefix", prefix), zap.Int("deleted", deleted))
	return deleted
}

// Remember returns the cached value for key or computes it with load and caches the result.
// Errors from load are returned as is and nothing is cached.
func Remember[T any](ctx context.Context, s *Store, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if s.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(ctx, key, value, ttl)
	return value, nil
}

// Bump advances the generation of scope. Values filled through RememberVersioned under an
// older generation are never served again, including fills whose load raced with the write
// that triggered the bump.
func (s *Store) Bump(ctx context.Context, scope string) {
	if !s.Enabled() {
		return
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Incr(opCtx, s.fullKey(generationPrefix+scope)).Err(); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("scope", scope), zap.Error(err))
	}
}

// generation returns the current generation of scope. ok is false when it cannot be read,
// in which case nothing should be cached.
func (s *Store) generation(ctx context.Context, scope string) (int64, bool) {
	if !s.Enabled() {
		return 0, false
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	gen, err := s.client.Get(opCtx, s.fullKey(generationPrefix+scope)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		s.logger.Warn("cache generation read failed", zap.String("scope", scope), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// RememberVersioned is Remember for views invalidated with Bump(scope). The generation is read
// before load and becomes part of the key, so a value loaded before a concurrent write is
// stored under a generation no later reader asks for.
func RememberVersioned[T any](ctx context.Context, s *Store, scope, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	gen, ok := s.generation(ctx, scope)
	if !ok {
		return load(ctx)
	}
	return Remember(ctx, s, key+"@"+strconv.FormatInt(gen, 10), ttl, load)
}

func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
