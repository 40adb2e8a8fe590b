package authz

import (
	"context"
	"fmt"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/metrics"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL       = 30 * time.Second
	DefaultCacheSize      = 10000
	DefaultResolveTimeout = 5 * time.Second
)

// Resolver computes a user's effective permission set.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (map[string]struct{}, error)
}

type Config struct {
	// Zero disables caching
	CacheTTL  time.Duration
	CacheSize int
	// Bounds one shared resolution, independent of any caller's deadline
	ResolveTimeout time.Duration
}

// Gate answers "may user U do C?". It denies by default: unknown users,
// empty inputs and resolver failures all yield false. It never returns an
// error and never panics.
//
// Effective sets are cached per user. Within one process a cached entry never
// outlives the invalidation event of a mutation that affects it; across
// processes the bound is the bus latency, or CacheTTL without a shared bus.
type Gate struct {
	resolver Resolver
	cache    *lru.LRU[string, map[string]struct{}]
	flights  singleflight.Group
	log      *logrus.Logger
	metrics  *metrics.Metrics

	resolveTimeout time.Duration

	mu  sync.Mutex
	gen uint64 // bumped on every invalidation
}

func NewGate(resolver Resolver, cfg Config, log *logrus.Logger, m *metrics.Metrics) *Gate {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	g := &Gate{resolver: resolver, log: log, metrics: m, resolveTimeout: cfg.ResolveTimeout}
	if g.resolveTimeout <= 0 {
		g.resolveTimeout = DefaultResolveTimeout
	}

	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		g.cache = lru.NewLRU[string, map[string]struct{}](size, nil, cfg.CacheTTL)
	}
	return g
}

// Subscribe wires the gate's invalidation to bus.
func (g *Gate) Subscribe(bus events.Bus) {
	bus.Subscribe(g.HandleEvent)
}

func (g *Gate) HandleEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindMembership:
		g.Invalidate(ev.UserIDs...)
	default:
		g.InvalidateAll()
	}
}

// Invalidate drops the cached sets of the given users.
func (g *Gate) Invalidate(userIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	if g.cache != nil {
		for _, id := range userIDs {
			g.cache.Remove(id)
		}
	}
	g.metrics.CacheEvictionsTotal.WithLabelValues("user").Add(float64(len(userIDs)))
}

// InvalidateAll drops every cached set.
func (g *Gate) InvalidateAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	if g.cache != nil {
		g.cache.Purge()
	}
	g.metrics.CacheEvictionsTotal.WithLabelValues("all").Inc()
}

func (g *Gate) Check(ctx context.Context, userID, code string) bool {
	start := time.Now()
	allowed := false
	if code != "" {
		if perms, ok := g.permissions(ctx, userID); ok {
			_, allowed = perms[code]
		}
	}
	g.observe(start, userID, []string{code}, allowed)
	return allowed
}

// CheckAny is true when the user holds at least one of codes.
func (g *Gate) CheckAny(ctx context.Context, userID string, codes []string) bool {
	start := time.Now()
	allowed := false
	if len(codes) > 0 {
		if perms, ok := g.permissions(ctx, userID); ok {
			for _, code := range codes {
				if _, has := perms[code]; has {
					allowed = true
					break
				}
			}
		}
	}
	g.observe(start, userID, codes, allowed)
	return allowed
}

// CheckAll is true when the user holds every one of codes. An empty list
// is denied.
func (g *Gate) CheckAll(ctx context.Context, userID string, codes []string) bool {
	start := time.Now()
	allowed := false
	if len(codes) > 0 {
		if perms, ok := g.permissions(ctx, userID); ok {
			allowed = true
			for _, code := range codes {
				if _, has := perms[code]; !has {
					allowed = false
					break
				}
			}
		}
	}
	g.observe(start, userID, codes, allowed)
	return allowed
}

// Effective returns the user's codes sorted, or an empty list on failure.
func (g *Gate) Effective(ctx context.Context, userID string) []string {
	perms, ok := g.permissions(ctx, userID)
	out := make([]string, 0, len(perms))
	if !ok {
		return out
	}
	for code := range perms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// permissions returns the user's effective set; ok is false when it could
// not be resolved.
func (g *Gate) permissions(ctx context.Context, userID string) (perms map[string]struct{}, ok bool) {
	if userID == "" {
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			g.metrics.ResolveErrorsTotal.Inc()
			g.log.WithField("user_id", userID).Errorf("permission resolution panicked: %v", r)
			perms, ok = nil, false
		}
	}()

	if g.cache != nil {
		if cached, hit := g.cache.Get(userID); hit {
			g.metrics.CacheHitsTotal.Inc()
			return cached, true
		}
		g.metrics.CacheMissesTotal.Inc()
	}

	gen := g.generation()
	// Callers arriving after an invalidation never join a flight started before it.
	key := fmt.Sprintf("%s@%d", userID, gen)
	// The shared resolution is detached from the caller that started it, so
	// one cancelled request never denies the callers that joined it.
	ch := g.flights.DoChan(key, func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("permission resolution panicked: %v", r)
			}
		}()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.resolveTimeout)
		defer cancel()

		resolved, err := g.resolver.Resolve(rctx, userID)
		if err != nil {
			return nil, err
		}
		g.store(userID, resolved, gen)
		return resolved, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			g.metrics.ResolveErrorsTotal.Inc()
			g.log.WithError(res.Err).WithField("user_id", userID).Warn("permission resolution failed, denying")
			return nil, false
		}
		return res.Val.(map[string]struct{}), true
	case <-ctx.Done():
		g.log.WithError(ctx.Err()).WithField("user_id", userID).Debug("caller gone before resolution finished, denying")
		return nil, false
	}
}

func (g *Gate) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// store caches perms unless an invalidation happened since gen was read.
func (g *Gate) store(userID string, perms map[string]struct{}, gen uint64) {
	if g.cache == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return
	}
	g.cache.Add(userID, perms)
}

func (g *Gate) observe(start time.Time, userID string, codes []string, allowed bool) {
	g.metrics.CheckDuration.Observe(time.Since(start).Seconds())
	if allowed {
		g.metrics.ChecksTotal.WithLabelValues("allow").Inc()
		return
	}
	g.metrics.ChecksTotal.WithLabelValues("deny").Inc()
	g.log.WithFields(logrus.Fields{
		"user_id": userID,
		"codes":   codes,
	}).Debug("permission denied")
}
