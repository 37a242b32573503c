package plugin

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

// Search router defaults.
const (
	DefaultSearchCacheSize = 256
	DefaultSearchCacheTTL  = 5 * time.Minute
	DefaultSearchFanOut    = 8
)

type searchKey struct {
	query       string
	translation string
}

// SearchRouter fans a query out to every active search plugin and merges
// the results. Merged results are cached until a plugin is loaded,
// unloaded or fails. A query in which any plugin call failed is never
// cached.
type SearchRouter struct {
	manager     *Manager
	cache       *lru.LRU[searchKey, []SearchResult]
	fanOut      int
	unsubscribe func()

	// generation changes on every purge; results computed across a
	// purge are stale.
	mu         sync.Mutex
	generation uint64
}

// SearchRouterOption configures a SearchRouter.
type SearchRouterOption func(*searchRouterConfig)

type searchRouterConfig struct {
	size   int
	ttl    time.Duration
	fanOut int
}

// WithSearchCache sets the cache size and entry lifetime.
func WithSearchCache(size int, ttl time.Duration) SearchRouterOption {
	return func(c *searchRouterConfig) {
		if size > 0 {
			c.size = size
		}
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSearchFanOut bounds the number of plugins queried at once.
func WithSearchFanOut(n int) SearchRouterOption {
	return func(c *searchRouterConfig) {
		if n > 0 {
			c.fanOut = n
		}
	}
}

// NewSearchRouter creates a router over m's search plugins.
func NewSearchRouter(m *Manager, opts ...SearchRouterOption) *SearchRouter {
	cfg := searchRouterConfig{
		size:   DefaultSearchCacheSize,
		ttl:    DefaultSearchCacheTTL,
		fanOut: DefaultSearchFanOut,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &SearchRouter{
		manager: m,
		cache:   lru.NewLRU[searchKey, []SearchResult](cfg.size, nil, cfg.ttl),
		fanOut:  cfg.fanOut,
	}
	r.unsubscribe = m.Subscribe(func(ev ManagerEvent) {
		switch ev.Type {
		case EventPluginLoaded, EventPluginUnloaded, EventStateChanged, EventPluginError:
			r.Invalidate()
		}
	})
	return r
}

// Search queries every active search plugin concurrently. Results are
// ordered by plugin quality, then by result score, both descending.
func (r *SearchRouter) Search(ctx context.Context, query, translation string) ([]SearchResult, error) {
	key := searchKey{query: query, translation: translation}
	if cached, ok := r.cache.Get(key); ok {
		return append([]SearchResult(nil), cached...), nil
	}

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()
	names := r.manager.activeByKind(KindSearch)
	perPlugin := make([][]SearchResult, len(names))
	var incomplete atomic.Bool

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.fanOut)
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sp, err := r.manager.Search(name)
			if err != nil {
				// Unloaded since the snapshot.
				incomplete.Store(true)
				return nil
			}
			var ok bool
			if ms, isManaged := sp.(managedSearch); isManaged {
				perPlugin[i], ok = ms.search(query, translation)
			} else {
				perPlugin[i], ok = sp.Search(query, translation), true
			}
			if !ok {
				incomplete.Store(true)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []SearchResult
	for _, rs := range perPlugin {
		merged = append(merged, rs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Quality != merged[j].Quality {
			return merged[i].Quality > merged[j].Quality
		}
		return merged[i].Score > merged[j].Score
	})

	r.mu.Lock()
	if !incomplete.Load() && r.generation == gen {
		r.cache.Add(key, merged)
	}
	r.mu.Unlock()
	return append([]SearchResult(nil), merged...), nil
}

// Invalidate drops all cached results.
func (r *SearchRouter) Invalidate() {
	r.mu.Lock()
	r.generation++
	r.cache.Purge()
	r.mu.Unlock()
}

// Close detaches the router from the manager's events.
func (r *SearchRouter) Close() {
	r.unsubscribe()
}
