package probe

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/redis"
)

// SupportStore remembers hosts confirmed to answer over HTTPS.
// Entries only ever get added: there is no eviction and no negative entry.
// Writes are idempotent, so concurrent duplicate marks are harmless.
type SupportStore interface {
	Supports(ctx context.Context, host string) bool
	MarkSupported(ctx context.Context, host string)
}

// MemoryStore is a process-local SupportStore
type MemoryStore struct {
	hosts sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Supports(_ context.Context, host string) bool {
	_, ok := s.hosts.Load(strings.ToLower(host))
	return ok
}

func (s *MemoryStore) MarkSupported(_ context.Context, host string) {
	s.hosts.Store(strings.ToLower(host), struct{}{})
}

// Len returns the number of recorded hosts
func (s *MemoryStore) Len() int {
	n := 0
	s.hosts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RedisStore shares HTTPS support markers between worker instances.
// Read failures count as a miss and write failures are dropped, so a Redis
// outage only costs extra probes.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: client.KeyPrefix(),
		logger: logger,
	}
}

func (s *RedisStore) Supports(ctx context.Context, host string) bool {
	ok, err := s.client.Exists(ctx, redis.HTTPSSupportKey(s.prefix, host))
	if err != nil {
		s.logger.Debug("HTTPS support lookup failed, treating as miss",
			zap.String("host", host),
			zap.Error(err))
		return false
	}
	return ok
}

func (s *RedisStore) MarkSupported(ctx context.Context, host string) {
	if err := s.client.Set(ctx, redis.HTTPSSupportKey(s.prefix, host), "1", 0); err != nil {
		s.logger.Warn("Failed to record HTTPS support",
			zap.String("host", host),
			zap.Error(err))
	}
}
