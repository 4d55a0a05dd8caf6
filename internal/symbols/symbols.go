// Package symbols maintains the list of known ticker symbols used to
// validate requests. The list is scraped from the Wikipedia S&P 500
// constituents table, optionally seeded from a reference CSV, and refreshed
// on a cron schedule.
package symbols

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable is returned when no symbol list could be loaded.
var ErrUnavailable = errors.New("symbols: list unavailable")

// DefaultTTL is how long a fetched list stays fresh.
const DefaultTTL = 24 * time.Hour

// Validator reports whether a symbol is known.
type Validator interface {
	IsKnown(symbol string) bool
}

// Fetcher retrieves the current symbol list from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// List is a TTL-cached symbol list. IsKnown fails open: while no list has
// been loaded every symbol is accepted.
type List struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu        sync.RWMutex
	symbols   []string
	set       map[string]struct{}
	fetchedAt time.Time
	refreshMu sync.Mutex
}

// Compile-time interface check.
var _ Validator = (*List)(nil)

// NewList creates a List backed by fetcher. A non-positive ttl selects
// DefaultTTL.
func NewList(fetcher Fetcher, ttl time.Duration) *List {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &List{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		log:     slog.Default().With("component", "symbols"),
		set:     make(map[string]struct{}),
	}
}

// Normalize trims and upper-cases symbol and maps class separators to '-'.
func Normalize(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), ".", "-")
}

// IsKnown reports whether symbol is in the list, or true when no list has
// been loaded.
func (l *List) IsKnown(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.set) == 0 {
		return true
	}
	_, ok := l.set[Normalize(symbol)]
	return ok
}

// Len returns the number of loaded symbols.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.symbols)
}

// Symbols returns the sorted list, refreshing it first when stale. A stale
// list is still returned when the refresh fails.
func (l *List) Symbols(ctx context.Context) ([]string, error) {
	if l.stale() {
		if err := l.Refresh(ctx); err != nil {
			l.log.Warn("symbol refresh failed", "error", err)
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.symbols) == 0 {
		return nil, ErrUnavailable
	}
	return slices.Clone(l.symbols), nil
}

// Refresh fetches the list from upstream and replaces the current one. An
// empty upstream result leaves the list unchanged.
func (l *List) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	if l.fetcher == nil {
		return ErrUnavailable
	}
	syms, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(syms) == 0 {
		return errors.New("symbols: upstream returned an empty list")
	}
	l.replace(syms, l.now())
	l.log.Info("symbol list refreshed", "symbols", l.Len())
	return nil
}

// Seed loads syms without marking the list fresh, so the first Symbols call
// still tries upstream.
func (l *List) Seed(syms []string) {
	if len(syms) == 0 {
		return
	}
	l.replace(syms, time.Time{})
}

func (l *List) replace(syms []string, at time.Time) {
	set := make(map[string]struct{}, len(syms))
	for _, s := range syms {
		if s = Normalize(s); s != "" {
			set[s] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(set))
	for s := range set {
		sorted = append(sorted, s)
	}
	slices.Sort(sorted)

	l.mu.Lock()
	l.set, l.symbols, l.fetchedAt = set, sorted, at
	l.mu.Unlock()
}

func (l *List) stale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.symbols) == 0 || l.now().Sub(l.fetchedAt) >= l.ttl
}
