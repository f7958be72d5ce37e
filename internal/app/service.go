// Package service wires storage, the rating engine, the recompute pipeline
// and the cache into the dependencies the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/okian/vctrank/internal/adapters/cache"
	"github.com/okian/vctrank/internal/adapters/mq/queue"
	"github.com/okian/vctrank/internal/adapters/mq/worker"
	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/batch"
	"github.com/okian/vctrank/internal/config"
	"github.com/okian/vctrank/internal/domain/identity"
	"github.com/okian/vctrank/internal/domain/inflight"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/internal/domain/snapshot"
	"github.com/okian/vctrank/internal/domain/types"
	"github.com/okian/vctrank/pkg/logger"
	"github.com/okian/vctrank/pkg/metrics"
)

// ErrNotStarted is returned by calls made before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the ratings system.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store     repository.Store
	resolver  *identity.Resolver
	provider  *snapshot.Provider
	snapshots cache.Snapshotter
	cache     *cache.Snapshots
	runner    *batch.Runner
	tracker   inflight.Tracker
	jobs      *queue.InMemoryQueue
	pool      *worker.Pool
	cron      *cron.Cron

	// injected
	injectedStore repository.Store
	redisClient   redis.UniversalClient
	now           func() time.Time

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	batchMu   sync.Mutex
	lastBatch batch.Report

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore uses store instead of opening the configured driver.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.injectedStore = store }
}

// WithRedisClient enables the snapshot cache on an existing client.
func WithRedisClient(rdb redis.UniversalClient) Option {
	return func(s *Service) { s.redisClient = rdb }
}

// WithClock overrides time.Now for scope resolution.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, builds the engine and starts the recompute pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting ratings service...")

	// parsed before anything is opened
	var sched cron.Schedule
	if spec := s.cfg.Recompute.Schedule; spec != "" {
		parsed, err := cron.ParseStandard(spec)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", spec, err)
		}
		sched = parsed
	}

	if err := s.openStorage(ctx); err != nil {
		return err
	}
	if err := s.openCache(ctx); err != nil {
		if s.injectedStore == nil {
			_ = s.store.Close()
		}
		return err
	}
	s.buildDomain()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.tracker = inflight.New(inflight.WithLimit(s.cfg.Recompute.QueueSize), inflight.WithClock(s.now))
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.Recompute.QueueSize))
	s.pool = worker.NewPool(s.cfg.Recompute.Workers, s.jobs, s.runner,
		worker.WithReleaser(s.tracker),
		worker.WithLogger(s.logger.Named("recompute")),
	)
	s.pool.Start(runCtx)

	if sched != nil {
		s.cron = cron.New()
		s.cron.Schedule(sched, cron.FuncJob(func() { s.scheduled(runCtx) }))
		s.cron.Start()
	}

	s.started = true
	s.startedAt = s.now()

	if s.cfg.Recompute.OnStartup {
		year := s.provider.CurrentYear()
		for _, scope := range batch.Scopes(s.cfg.Recompute.FirstYear, year) {
			s.enqueueLocked(runCtx, scope, model.TriggerStartup)
		}
	}

	s.logger.Info(ctx, "ratings service started",
		logger.String("driver", s.cfg.Storage.Driver),
		logger.Int("workers", s.pool.Size()),
		logger.Int("aliases", s.resolver.Len()),
		logger.Bool("cache", s.cache != nil),
	)
	return nil
}

func (s *Service) openStorage(ctx context.Context) error {
	if s.injectedStore != nil {
		s.store = s.injectedStore
	} else {
		store, err := OpenStore(ctx, s.cfg.Storage, s.logger.Named("store"))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}

	if path := s.cfg.Storage.Seed; path != "" {
		n, err := LoadSeedFile(ctx, path, s.store)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		s.logger.Info(ctx, "seed loaded", logger.String("path", path), logger.Int("matches", n))
	}
	return nil
}

func (s *Service) openCache(ctx context.Context) error {
	if s.redisClient == nil && s.cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, s.cfg.Redis.URL)
		if err != nil {
			return err
		}
		s.redisClient = rdb
	}
	return nil
}

func (s *Service) buildDomain() {
	s.resolver, s.provider = BuildProvider(s.cfg, s.store, s.now, s.logger)
	s.snapshots = s.provider

	runnerOpts := []batch.Option{
		batch.WithLogger(s.logger.Named("batch")),
		batch.WithAfterSave(s.recordBatch),
	}
	if s.redisClient != nil {
		s.cache = cache.New(s.provider, s.redisClient,
			cache.WithTTL(time.Duration(s.cfg.Redis.TTLSeconds)*time.Second),
			cache.WithCurrentYear(s.provider.CurrentYear),
			cache.WithLogger(s.logger.Named("cache")),
		)
		s.snapshots = s.cache
		runnerOpts = append(runnerOpts, batch.WithAfterSave(s.invalidate))
	}
	s.runner = batch.NewRunner(s.provider, s.store, runnerOpts...)
}

func (s *Service) recordBatch(_ context.Context, r batch.Report) {
	s.batchMu.Lock()
	s.lastBatch = r
	s.batchMu.Unlock()
}

func (s *Service) invalidate(ctx context.Context, r batch.Report) {
	n, err := s.cache.Invalidate(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cache invalidation failed", logger.String("run_id", r.RunID), logger.Error(err))
		return
	}
	s.logger.Debug(ctx, "cache invalidated", logger.Int("entries", n))
}

// scheduled refreshes all-time and the current year.
func (s *Service) scheduled(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return
	}
	s.enqueueLocked(ctx, model.AllTime(), model.TriggerSchedule)
	s.enqueueLocked(ctx, model.Current(), model.TriggerSchedule)
}

// Stop shuts down the pipeline and closes storage.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	sched, pool, cancel := s.cron, s.pool, s.cancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping ratings service...")

	// scheduled jobs and workers take the lock themselves
	if sched != nil {
		<-sched.Stop().Done()
	}
	if pool != nil {
		_ = pool.Shutdown(ctx)
	}
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injectedStore == nil && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "error closing store", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "ratings service stopped")
}

// TeamSnapshot returns the ranked team table for scope.
func (s *Service) TeamSnapshot(ctx context.Context, scope model.Scope, topN int) (types.TeamTable, error) {
	s.mu.RLock()
	snaps := s.snapshots
	s.mu.RUnlock()
	if snaps == nil {
		return types.TeamTable{}, ErrNotStarted
	}
	snap, err := snaps.TeamSnapshot(ctx, scope, topN)
	if err != nil {
		return types.TeamTable{}, err
	}
	return types.FromTeamSnapshot(snap), nil
}

// PlayerSnapshot returns the ranked player table for scope.
func (s *Service) PlayerSnapshot(ctx context.Context, scope model.Scope, topN int) (types.PlayerTable, error) {
	s.mu.RLock()
	snaps := s.snapshots
	s.mu.RUnlock()
	if snaps == nil {
		return types.PlayerTable{}, ErrNotStarted
	}
	snap, err := snaps.PlayerSnapshot(ctx, scope, topN)
	if err != nil {
		return types.PlayerTable{}, err
	}
	return types.FromPlayerSnapshot(snap), nil
}

// Resolve explains how name is normalized.
func (s *Service) Resolve(_ context.Context, name string) (types.Resolution, error) {
	s.mu.RLock()
	r := s.resolver
	s.mu.RUnlock()
	if r == nil {
		return types.Resolution{}, ErrNotStarted
	}
	canonical := r.Normalize(name)
	return types.Resolution{Raw: name, Canonical: canonical, Exhibition: r.IsExhibition(canonical)}, nil
}

// RequestRecompute queues a rebuild of the table for scope. A scope that is
// already queued or running is reported as a duplicate.
func (s *Service) RequestRecompute(ctx context.Context, scope model.Scope) (types.RecomputeTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.RecomputeTicket{}, ErrNotStarted
	}
	return s.enqueueLocked(ctx, scope, model.TriggerAPI)
}

// enqueueLocked expects s.mu to be held.
func (s *Service) enqueueLocked(ctx context.Context, scope model.Scope, trigger string) (types.RecomputeTicket, error) {
	if scope.Kind == model.ScopeCurrent {
		scope = model.Year(s.provider.CurrentYear())
	}
	key := scope.Key()

	if since, seen := s.tracker.SeenAndRecord(ctx, key); seen {
		if since.IsZero() {
			metrics.RecordRecomputeJob("rejected")
			return types.RecomputeTicket{}, fmt.Errorf("%w: %s", types.ErrQueueFull, key)
		}
		metrics.RecordRecomputeJob("duplicate")
		return types.RecomputeTicket{Scope: key, Status: types.StatusDuplicate, Since: since}, nil
	}

	job := model.RecomputeJob{ID: uuid.New().String(), Scope: scope, Trigger: trigger, Requested: s.now()}
	if !s.jobs.Enqueue(ctx, job) {
		s.tracker.Unrecord(ctx, key)
		metrics.RecordRecomputeJob("rejected")
		return types.RecomputeTicket{}, fmt.Errorf("%w: %s", types.ErrQueueFull, key)
	}
	metrics.RecordRecomputeJob("enqueued")
	s.logger.Debug(ctx, "recompute queued",
		logger.String("job_id", job.ID),
		logger.String("scope", key),
		logger.String("trigger", trigger),
	)
	return types.RecomputeTicket{JobID: job.ID, Scope: key, Status: types.StatusQueued, Since: job.Requested}, nil
}

// GetStats returns service statistics.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	metrics.UpdateSystemMemoryUsage(memStats.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	stats := map[string]interface{}{
		"started":       s.started,
		"storage":       s.cfg.Storage.Driver,
		"cache_enabled": s.cache != nil,
		"goroutines":    runtime.NumGoroutine(),
		"memory_alloc":  memStats.Alloc,
	}
	if !s.started {
		return stats
	}

	stats["uptime_seconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	stats["current_year"] = s.provider.CurrentYear()
	stats["aliases"] = s.resolver.Len()
	stats["workers"] = s.pool.Size()
	stats["queue_len"] = s.jobs.Len(context.Background())
	stats["inflight"] = s.tracker.Size()
	s.batchMu.Lock()
	if s.lastBatch.RunID != "" {
		stats["last_batch"] = s.lastBatch
	}
	s.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if runs, err := s.store.Runs(ctx); err == nil {
		stats["tables"] = runs
	} else {
		s.logger.Warn(ctx, "listing runs failed", logger.Error(err))
	}
	return stats
}
