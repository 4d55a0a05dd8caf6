package market

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stockcast/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*Cached)(nil)

type entry[T any] struct {
	val T
	err error // only ErrNotFound outcomes are cached
	at  time.Time
}

type currentKey struct {
	symbol string
	period domain.Period
}

// Cached decorates a Provider with per-key TTL caching. Successful Current
// results live for currentTTL, Year results for yearTTL. ErrNotFound outcomes
// live for negativeTTL; a zero negativeTTL disables negative caching. Other
// errors are never cached. Cached values are shared between callers and must
// not be mutated.
type Cached struct {
	next        Provider
	currentTTL  time.Duration
	yearTTL     time.Duration
	negativeTTL time.Duration
	now         func() time.Time
	log         *slog.Logger

	mu      sync.Mutex
	current map[currentKey]entry[*domain.StockData]
	year    map[string]entry[*domain.Series]
}

// NewCached wraps next with TTL caching.
func NewCached(next Provider, currentTTL, yearTTL, negativeTTL time.Duration) *Cached {
	return &Cached{
		next:        next,
		currentTTL:  currentTTL,
		yearTTL:     yearTTL,
		negativeTTL: negativeTTL,
		now:         time.Now,
		log:         slog.Default().With("component", "market-cache"),
		current:     make(map[currentKey]entry[*domain.StockData]),
		year:        make(map[string]entry[*domain.Series]),
	}
}

// Current implements Provider.
func (c *Cached) Current(ctx context.Context, symbol string, period domain.Period) (*domain.StockData, error) {
	key := currentKey{strings.ToUpper(symbol), period}
	if e, ok := lookup(c, c.current, key, c.currentTTL); ok {
		return e.val, e.err
	}
	v, err := c.next.Current(ctx, symbol, period)
	remember(c, c.current, key, v, err)
	return v, err
}

// Year implements Provider.
func (c *Cached) Year(ctx context.Context, symbol string) (*domain.Series, error) {
	key := strings.ToUpper(symbol)
	if e, ok := lookup(c, c.year, key, c.yearTTL); ok {
		return e.val, e.err
	}
	v, err := c.next.Year(ctx, symbol)
	remember(c, c.year, key, v, err)
	return v, err
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.current)
	clear(c.year)
}

// lookup returns a live entry for key, evicting it when stale.
func lookup[K comparable, T any](c *Cached, m map[K]entry[T], key K, ttl time.Duration) (entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := m[key]
	if !ok {
		return e, false
	}
	if e.err != nil {
		ttl = c.negativeTTL
	}
	if c.now().Sub(e.at) >= ttl {
		delete(m, key)
		return entry[T]{}, false
	}
	if e.err != nil {
		c.log.Debug("serving cached miss", "key", key)
	}
	return e, true
}

// remember stores successes and, when enabled, ErrNotFound outcomes.
func remember[K comparable, T any](c *Cached, m map[K]entry[T], key K, v T, err error) {
	if err != nil && (c.negativeTTL <= 0 || !errors.Is(err, ErrNotFound)) {
		return
	}
	c.mu.Lock()
	m[key] = entry[T]{val: v, err: err, at: c.now()}
	c.mu.Unlock()
}
