// Package datasetstore caches raw remote dataset bodies in process and,
// optionally, in Redis.
package datasetstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/keys"
	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/redisstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
)

// Loader fetches a dataset body from its origin.
type Loader func(ctx context.Context) ([]byte, error)

type Store interface {
	GetOrLoad(ctx context.Context, name, rawURL string, load Loader) ([]byte, error)
	Invalidate(ctx context.Context, name, rawURL string) error
}

type Config struct {
	LRUSize   int
	TTL       time.Duration
	OpTimeout time.Duration
	// LoadTimeout bounds one shared origin load, independent of the
	// callers waiting on it.
	LoadTimeout time.Duration
}

type layeredStore struct {
	log   *slog.Logger
	mem   *expirable.LRU[string, []byte]
	rdb   *redisstore.Client
	ttl     time.Duration
	opTTL   time.Duration
	loadTTL time.Duration
	group   singleflight.Group
}

// New builds a store; rdb may be nil to run memory-only.
func New(log *slog.Logger, rdb *redisstore.Client, cfg Config) Store {
	size := cfg.LRUSize
	if size <= 0 {
		size = 32
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	op := cfg.OpTimeout
	if op <= 0 {
		op = 250 * time.Millisecond
	}
	load := cfg.LoadTimeout
	if load <= 0 {
		load = 2 * time.Minute
	}
	return &layeredStore{
		log:     log,
		mem:     expirable.NewLRU[string, []byte](size, nil, ttl),
		rdb:     rdb,
		ttl:     ttl,
		opTTL:   op,
		loadTTL: load,
	}
}

func (s *layeredStore) GetOrLoad(ctx context.Context, name, rawURL string, load Loader) ([]byte, error) {
	key := keys.Dataset(name, rawURL)

	if b, ok := s.mem.Get(key); ok {
		observability.IncDatasetCache("lru", "hit")
		return b, nil
	}
	observability.IncDatasetCache("lru", "miss")

	// One load per key, detached from the caller that started it and bounded
	// by loadTTL. Each caller stops waiting when its own ctx is done.
	ch := s.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTTL)
		defer cancel()
		if b, ok := s.fromRedis(lctx, key); ok {
			s.mem.Add(key, b)
			return b, nil
		}
		b, err := load(lctx)
		if err != nil {
			return nil, err
		}
		s.mem.Add(key, b)
		s.toRedis(lctx, key, b)
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load dataset %s: %w", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load dataset %s: %w", name, res.Err)
		}
		return res.Val.([]byte), nil
	}
}

func (s *layeredStore) Invalidate(ctx context.Context, name, rawURL string) error {
	key := keys.Dataset(name, rawURL)
	s.mem.Remove(key)
	if s.rdb == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, s.opTTL)
	defer cancel()
	if err := s.rdb.Del(cctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", name, err)
	}
	return nil
}

// redis errors degrade to a miss
func (s *layeredStore) fromRedis(ctx context.Context, key string) ([]byte, bool) {
	if s.rdb == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, s.opTTL)
	defer cancel()
	b, ok, err := s.rdb.Get(cctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "dataset cache read failed", "key", key, "err", err)
		observability.IncDatasetCache("redis", "error")
		return nil, false
	}
	if !ok {
		observability.IncDatasetCache("redis", "miss")
		return nil, false
	}
	observability.IncDatasetCache("redis", "hit")
	return b, true
}

func (s *layeredStore) toRedis(ctx context.Context, key string, b []byte) {
	if s.rdb == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.opTTL)
	defer cancel()
	if err := s.rdb.Set(cctx, key, b, s.ttl); err != nil {
		s.log.WarnContext(ctx, "dataset cache write failed", "key", key, "err", err)
	}
}
