// Package cache keeps rendered snapshots in Redis in front of a provider.
// Cache failures never fail a request; the provider is always the fallback.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/pkg/logger"
	"github.com/okian/vctrank/pkg/metrics"
)

const (
	// DefaultTTL bounds how stale a cached snapshot can get between recomputes.
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "vctrank:snapshot:"
	scanBatch  = 100
)

// Snapshotter is the provider surface the cache wraps.
type Snapshotter interface {
	TeamSnapshot(ctx context.Context, scope model.Scope, topN int) (model.RatingSnapshot, error)
	PlayerSnapshot(ctx context.Context, scope model.Scope, topN int) (model.PlayerSnapshot, error)
}

// Snapshots is a read-through cache over a Snapshotter.
type Snapshots struct {
	next        Snapshotter
	rdb         redis.UniversalClient
	ttl         time.Duration
	currentYear func() int
	log         logger.Logger
}

// Option configures Snapshots.
type Option func(*Snapshots)

// WithTTL sets the entry lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Snapshots) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCurrentYear sets how the current scope resolves to a year. It should
// agree with the wrapped provider.
func WithCurrentYear(year func() int) Option {
	return func(s *Snapshots) {
		if year != nil {
			s.currentYear = year
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Snapshots) {
		if l != nil {
			s.log = l
		}
	}
}

// New wraps next with a Redis cache.
func New(next Snapshotter, rdb redis.UniversalClient, opts ...Option) *Snapshots {
	s := &Snapshots{
		next:        next,
		rdb:         rdb,
		ttl:         DefaultTTL,
		currentYear: func() int { return time.Now().UTC().Year() },
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect parses a redis:// or rediss:// URL and pings the server.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("redis url required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type teamEntry struct {
	Source model.Source       `json:"source"`
	Teams  []model.TeamRating `json:"teams"`
}

type playerEntry struct {
	Source  model.Source         `json:"source"`
	Players []model.PlayerRating `json:"players"`
}

// TeamSnapshot implements Snapshotter.
func (s *Snapshots) TeamSnapshot(ctx context.Context, scope model.Scope, topN int) (model.RatingSnapshot, error) {
	key := s.key("team", scope, topN)

	var e teamEntry
	if s.get(ctx, key, &e) {
		return model.RatingSnapshot{Scope: scope, Source: e.Source, Teams: e.Teams}, nil
	}

	snap, err := s.next.TeamSnapshot(ctx, scope, topN)
	if err != nil {
		return snap, err
	}
	// an unavailable table may be backfilled any moment
	if snap.Source != model.SourceUnavailable {
		s.set(ctx, key, teamEntry{Source: snap.Source, Teams: snap.Teams})
	}
	return snap, nil
}

// PlayerSnapshot implements Snapshotter.
func (s *Snapshots) PlayerSnapshot(ctx context.Context, scope model.Scope, topN int) (model.PlayerSnapshot, error) {
	key := s.key("player", scope, topN)

	var e playerEntry
	if s.get(ctx, key, &e) {
		return model.PlayerSnapshot{Scope: scope, Source: e.Source, Players: e.Players}, nil
	}

	snap, err := s.next.PlayerSnapshot(ctx, scope, topN)
	if err != nil {
		return snap, err
	}
	if snap.Source != model.SourceUnavailable {
		s.set(ctx, key, playerEntry{Source: snap.Source, Players: snap.Players})
	}
	return snap, nil
}

// Invalidate drops cached snapshots for the given scope keys, or every
// snapshot when no key is given. It returns the number of deleted entries.
func (s *Snapshots) Invalidate(ctx context.Context, keys ...string) (int, error) {
	patterns := []string{keyPrefix + "*"}
	if len(keys) > 0 {
		patterns = patterns[:0]
		for _, k := range keys {
			patterns = append(patterns, keyPrefix+"*:"+k+":*")
		}
	}

	deleted := 0
	for _, p := range patterns {
		iter := s.rdb.Scan(ctx, 0, p, scanBatch).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			metrics.RecordCacheError()
			return deleted, fmt.Errorf("scanning %s: %w", p, err)
		}
		if len(batch) == 0 {
			continue
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			metrics.RecordCacheError()
			return deleted, fmt.Errorf("deleting snapshots: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (s *Snapshots) get(ctx context.Context, key string, dst any) bool {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return false
	}
	if err != nil {
		metrics.RecordCacheError()
		s.log.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.RecordCacheError()
		s.log.Warn(ctx, "dropping corrupt cache entry", logger.String("key", key), logger.Error(err))
		_ = s.rdb.Del(ctx, key).Err()
		return false
	}
	metrics.RecordCacheHit()
	return true
}

func (s *Snapshots) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		metrics.RecordCacheError()
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		metrics.RecordCacheError()
		s.log.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// key files the current scope under its year so entries roll over with it.
func (s *Snapshots) key(kind string, scope model.Scope, topN int) string {
	if scope.Kind == model.ScopeCurrent {
		scope = model.Year(s.currentYear())
	}
	return fmt.Sprintf("%s%s:%s:%d", keyPrefix, kind, scope.Key(), topN)
}
