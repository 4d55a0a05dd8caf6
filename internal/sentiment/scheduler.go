package sentiment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"stockcast/internal/domain"
	"stockcast/internal/news"
	"stockcast/internal/store"
)

// Default scheduler parameters.
const (
	DefaultWaitTimeout    = 10 * time.Second
	DefaultComputeTimeout = time.Minute
	DefaultMaxConcurrent  = 4
)

// Scheduler runs background sentiment computations, at most one per symbol at
// a time, and publishes results to a Cache.
type Scheduler struct {
	cache          *Cache
	news           news.Provider
	analyzer       *Analyzer
	history        store.SentimentHistory
	sem            *semaphore.Weighted
	computeTimeout time.Duration
	now            func() time.Time
	log            *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithHistory records every computed result in h.
func WithHistory(h store.SentimentHistory) SchedulerOption {
	return func(s *Scheduler) { s.history = h }
}

// WithMaxConcurrent bounds how many computations run at once.
func WithMaxConcurrent(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithComputeTimeout sets the deadline of each computation.
func WithComputeTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.computeTimeout = d
		}
	}
}

// NewScheduler creates a Scheduler that fetches articles from provider,
// scores them with analyzer and stores results in cache.
func NewScheduler(cache *Cache, provider news.Provider, analyzer *Analyzer, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cache:          cache,
		news:           provider,
		analyzer:       analyzer,
		sem:            semaphore.NewWeighted(DefaultMaxConcurrent),
		computeTimeout: DefaultComputeTimeout,
		now:            time.Now,
		log:            slog.Default().With("component", "sentiment"),
		ctx:            ctx,
		cancel:         cancel,
		inFlight:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the cache the scheduler publishes to.
func (s *Scheduler) Cache() *Cache { return s.cache }

// ScheduleIfAbsent starts a background computation for symbol unless a live
// result is cached or one is already in flight. It never blocks on the
// computation and reports whether one was started.
func (s *Scheduler) ScheduleIfAbsent(symbol, companyName string) bool {
	key := cacheKey(symbol)

	s.mu.Lock()
	if s.ctx.Err() != nil || s.cache.Has(key) {
		s.mu.Unlock()
		return false
	}
	if _, running := s.inFlight[key]; running {
		s.mu.Unlock()
		return false
	}
	s.inFlight[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.compute(key, companyName)
	return true
}

// InFlight reports whether a computation for symbol is queued or running.
func (s *Scheduler) InFlight(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[cacheKey(symbol)]
	return ok
}

// WaitFor returns the cached result for symbol, waiting up to timeout for one
// to appear. It returns false on timeout or when ctx is done; the computation
// itself keeps running.
func (s *Scheduler) WaitFor(ctx context.Context, symbol string, timeout time.Duration) (*domain.SentimentResult, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		// Take the notification channel before checking so a Set between the
		// check and the select is not missed.
		changed := s.cache.Changed()
		if r, ok := s.cache.Get(symbol); ok {
			return r, true
		}
		select {
		case <-changed:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close stops accepting work, cancels running computations and waits for
// them to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) compute(symbol, companyName string) {
	defer s.wg.Done()
	defer s.finish(symbol)

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(s.ctx, s.computeTimeout)
	defer cancel()

	start := time.Now()
	articles := s.news.Articles(ctx, symbol, companyName)
	if len(articles) == 0 {
		s.log.Info("no articles for sentiment", "symbol", symbol)
		return
	}

	result, err := s.analyzer.Overall(ctx, articles)
	if err != nil {
		s.log.Error("sentiment computation failed", "symbol", symbol, "error", err)
		return
	}
	s.cache.Set(symbol, result)
	s.log.Info("sentiment computed",
		"symbol", symbol,
		"articles", len(articles),
		"score", result.Score,
		"label", result.Label,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if s.history != nil {
		if err := s.history.RecordSentiment(ctx, symbol, s.now(), result); err != nil {
			s.log.Warn("recording sentiment history failed", "symbol", symbol, "error", err)
		}
	}
}

func (s *Scheduler) finish(symbol string) {
	s.mu.Lock()
	delete(s.inFlight, symbol)
	s.mu.Unlock()
}
