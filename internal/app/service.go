// Package service aggregates profile and performance data into character
// overviews and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/armory/internal/adapters/mq/queue"
	"github.com/okian/armory/internal/adapters/mq/worker"
	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/domain/cache"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/internal/domain/overview"
	"github.com/okian/armory/internal/roster"
	"github.com/okian/armory/pkg/logger"
	"github.com/okian/armory/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultZoneID        = 42
	DefaultWorkerCount   = 8
	DefaultQueueSize     = 1024
	DefaultBatchTimeout  = 60 * time.Second
	DefaultSweepInterval = time.Minute
)

// ProfileSource fetches raw profile documents.
type ProfileSource interface {
	Profile(ctx context.Context, realm, name string) (json.RawMessage, error)
	MythicKeystoneProfile(ctx context.Context, realm, name string) (json.RawMessage, error)
}

// RankingsSource fetches zone rankings.
type RankingsSource interface {
	ZoneRankings(ctx context.Context, name, realm, region string, zoneID int) (model.ZoneRankings, error)
}

// TeamSource resolves team names to members.
type TeamSource interface {
	Team(team string) ([]model.CharacterIdentifier, error)
	Teams() []string
}

// Service implements the API dependencies for character overviews.
type Service struct {
	mu sync.RWMutex

	// Core components
	profiles ProfileSource
	rankings RankingsSource
	roster   TeamSource
	cache    *cache.ResponseCache
	merger   *overview.Merger
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	region        string
	zoneID        int
	workerCount   int
	queueSize     int
	batchTimeout  time.Duration
	sweepInterval time.Duration

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCache sets the response cache in front of profile lookups.
func WithCache(c *cache.ResponseCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithMerger sets the overview merger.
func WithMerger(m *overview.Merger) Option {
	return func(s *Service) {
		if m != nil {
			s.merger = m
		}
	}
}

// WithRoster sets the team source.
func WithRoster(r TeamSource) Option {
	return func(s *Service) {
		if r != nil {
			s.roster = r
		}
	}
}

// WithRegion sets the region used when a request names none.
func WithRegion(region string) Option {
	return func(s *Service) {
		if region = strings.ToLower(strings.TrimSpace(region)); region != "" {
			s.region = region
		}
	}
}

// WithZoneID sets the raid zone used for performance queries.
func WithZoneID(id int) Option {
	return func(s *Service) {
		if id > 0 {
			s.zoneID = id
		}
	}
}

// WithWorkerCount sets the number of batch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the lookup queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithBatchTimeout caps the time a batch may take.
func WithBatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.batchTimeout = d
		}
	}
}

// WithSweepInterval sets how often expired cache entries are removed.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
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

// New constructs a Service on top of the two upstream sources.
func New(profiles ProfileSource, rankings RankingsSource, opts ...Option) *Service {
	s := &Service{
		profiles:      profiles,
		rankings:      rankings,
		region:        overview.DefaultRegion,
		zoneID:        DefaultZoneID,
		workerCount:   DefaultWorkerCount,
		queueSize:     DefaultQueueSize,
		batchTimeout:  DefaultBatchTimeout,
		sweepInterval: DefaultSweepInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.cache == nil {
		s.cache = cache.New(cache.WithLogger(s.logger.Named("cache")))
	}
	if s.merger == nil {
		s.merger = overview.NewMerger()
	}
	if s.roster == nil {
		s.roster = roster.Empty()
	}
	return s
}

// Start launches the batch workers and the cache sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(runCtx)
	s.cache.StartSweeper(runCtx, s.sweepInterval)

	s.started = true
	s.logger.Info(ctx, "overview service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("region", s.region),
		logger.Int("zoneID", s.zoneID),
		logger.Duration("cacheTTL", s.cache.TTL()),
	)
	return nil
}

// Stop drains queued lookups and stops background work.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	pool, cancel := s.pool, s.cancel
	s.started = false
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping overview service...")

	err := pool.Shutdown(ctx)
	cancel()

	if err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	s.logger.Info(ctx, "overview service stopped")
	return nil
}

// CharacterOverview builds the overview of one character. Profile documents
// come from the cache; rankings are always fetched, concurrently with it.
func (s *Service) CharacterOverview(ctx context.Context, realm, name, region string) (model.CharacterOverview, error) {
	start := time.Now()

	realm, name = strings.TrimSpace(realm), strings.TrimSpace(name)
	if realm == "" || name == "" {
		return model.CharacterOverview{}, ErrInvalidCharacter
	}
	region = s.regionOrDefault(region)

	var (
		docs     model.ProfileDocuments
		rankings model.ZoneRankings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.cache.GetOrFetch(gctx, cache.NewKey(realm, name), func(fctx context.Context) (model.ProfileDocuments, error) {
			return s.fetchDocuments(fctx, realm, name)
		})
		return err
	})
	g.Go(func() error {
		var err error
		rankings, err = s.rankings.ZoneRankings(gctx, name, realm, region, s.zoneID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(ctx, realm, name, err)
		return model.CharacterOverview{}, err
	}

	ov, err := s.merger.Merge(overview.Input{
		Profile:  docs.Profile,
		Mythic:   docs.Mythic,
		Rankings: rankings,
		Region:   region,
	})
	if err != nil {
		metrics.RecordMergeError()
		s.fail(ctx, realm, name, err)
		return model.CharacterOverview{}, err
	}

	metrics.RecordOverviewServed()
	metrics.RecordOverviewLatency(float64(time.Since(start).Milliseconds()))
	return ov, nil
}

// fetchDocuments loads the profile and, concurrently, the keystone profile.
// A keystone 404 means the character has no rating this season.
func (s *Service) fetchDocuments(ctx context.Context, realm, name string) (model.ProfileDocuments, error) {
	var docs model.ProfileDocuments

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs.Profile, err = s.profiles.Profile(gctx, realm, name)
		return err
	})
	g.Go(func() error {
		mythic, err := s.profiles.MythicKeystoneProfile(gctx, realm, name)
		if upstream.IsNotFound(err) {
			return nil
		}
		docs.Mythic = mythic
		return err
	})
	if err := g.Wait(); err != nil {
		return model.ProfileDocuments{}, err
	}
	return docs, nil
}

func (s *Service) fail(ctx context.Context, realm, name string, err error) {
	kind := ErrorKind(err)
	metrics.RecordOverviewError(kind)
	s.logger.Warn(ctx, "character overview failed",
		logger.String("realm", realm),
		logger.String("name", name),
		logger.String("kind", kind),
		logger.Error(err))
}

func (s *Service) regionOrDefault(region string) string {
	if region = strings.ToLower(strings.TrimSpace(region)); region != "" {
		return region
	}
	return s.region
}

// InvalidateCharacter drops the cached documents of one character so the
// next overview refetches them. Dropping an absent entry is not an error.
func (s *Service) InvalidateCharacter(ctx context.Context, realm, name string) error {
	realm, name = strings.TrimSpace(realm), strings.TrimSpace(name)
	if realm == "" || name == "" {
		return ErrInvalidCharacter
	}
	key := cache.NewKey(realm, name)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	s.logger.Info(ctx, "cached documents dropped", logger.String("key", key.String()))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cacheEntries := s.cache.Len(ctx)
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"region":       s.region,
		"zoneId":       s.zoneID,
		"cacheEntries": cacheEntries,
		"cacheTtl":     s.cache.TTL().String(),
		"teams":        s.roster.Teams(),
	}
	metrics.UpdateCacheEntries(cacheEntries)

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}
