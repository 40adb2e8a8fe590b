package authz

import (
	"context"
	"errors"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/metrics"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	mu    sync.Mutex
	perms map[string][]string
	err   error
	calls int32
	block chan struct{}
}

func (r *stubResolver) Resolve(ctx context.Context, userID string) (map[string]struct{}, error) {
	atomic.AddInt32(&r.calls, 1)

	// read before blocking so a blocked resolve returns the old state
	r.mu.Lock()
	err := r.err
	out := map[string]struct{}{}
	for _, code := range r.perms[userID] {
		out[code] = struct{}{}
	}
	r.mu.Unlock()

	if r.block != nil {
		<-r.block
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stubResolver) set(userID string, codes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms[userID] = codes
}

func newStub() *stubResolver {
	return &stubResolver{perms: map[string][]string{}}
}

func TestGate_Checks(t *testing.T) {
	r := newStub()
	r.set("u1", "a", "b")
	g := NewGate(r, Config{CacheTTL: time.Minute}, nil, nil)
	ctx := context.Background()

	assert.True(t, g.Check(ctx, "u1", "a"))
	assert.False(t, g.Check(ctx, "u1", "c"))
	assert.False(t, g.Check(ctx, "u1", ""))

	assert.True(t, g.CheckAny(ctx, "u1", []string{"c", "b"}))
	assert.False(t, g.CheckAny(ctx, "u1", []string{"c", "d"}))
	assert.False(t, g.CheckAny(ctx, "u1", nil))

	assert.True(t, g.CheckAll(ctx, "u1", []string{"a", "b"}))
	assert.False(t, g.CheckAll(ctx, "u1", []string{"a", "c"}))
	assert.False(t, g.CheckAll(ctx, "u1", []string{}))

	assert.Equal(t, []string{"a", "b"}, g.Effective(ctx, "u1"))
}

func TestGate_DefaultDeny(t *testing.T) {
	r := newStub()
	g := NewGate(r, Config{}, nil, nil)
	ctx := context.Background()

	assert.False(t, g.Check(ctx, "unknown", "system.manage"))
	assert.False(t, g.Check(ctx, "", "system.manage"))
	assert.Empty(t, g.Effective(ctx, "unknown"))
}

func TestGate_ResolverFailureDenies(t *testing.T) {
	r := newStub()
	r.set("u1", "a")
	r.err = errors.New("store down")
	m := metrics.NewMetrics(nil)
	g := NewGate(r, Config{CacheTTL: time.Minute}, nil, m)

	assert.False(t, g.Check(context.Background(), "u1", "a"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolveErrorsTotal))
	assert.NotNil(t, g.Effective(context.Background(), "u1"))
}

type panickingResolver struct{}

func (panickingResolver) Resolve(ctx context.Context, userID string) (map[string]struct{}, error) {
	panic("boom")
}

func TestGate_ResolverPanicDenies(t *testing.T) {
	g := NewGate(panickingResolver{}, Config{}, nil, nil)

	assert.NotPanics(t, func() {
		assert.False(t, g.Check(context.Background(), "u1", "a"))
	})
}

func TestGate_CachesUntilInvalidated(t *testing.T) {
	r := newStub()
	r.set("u1", "a")
	r.set("u2", "a")
	bus := events.NewLocalBus()
	g := NewGate(r, Config{CacheTTL: time.Minute}, nil, nil)
	g.Subscribe(bus)
	ctx := context.Background()

	assert.True(t, g.Check(ctx, "u1", "a"))
	assert.True(t, g.Check(ctx, "u2", "a"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&r.calls))

	r.set("u1", "b")
	r.set("u2", "b")
	assert.True(t, g.Check(ctx, "u1", "a"), "served from cache")

	require.NoError(t, bus.Publish(ctx, events.MembershipChanged("test", "u1")))
	assert.False(t, g.Check(ctx, "u1", "a"))
	assert.True(t, g.Check(ctx, "u1", "b"))
	assert.True(t, g.Check(ctx, "u2", "a"), "other users keep their entry")

	require.NoError(t, bus.Publish(ctx, events.PurgeAll("test")))
	assert.True(t, g.Check(ctx, "u2", "b"))
}

func TestGate_NoCacheResolvesEveryTime(t *testing.T) {
	r := newStub()
	r.set("u1", "a")
	g := NewGate(r, Config{CacheTTL: 0}, nil, nil)

	g.Check(context.Background(), "u1", "a")
	g.Check(context.Background(), "u1", "a")
	assert.EqualValues(t, 2, atomic.LoadInt32(&r.calls))
}

func TestGate_CoalescesConcurrentMisses(t *testing.T) {
	r := newStub()
	r.set("u1", "a")
	r.block = make(chan struct{})
	g := NewGate(r, Config{CacheTTL: time.Minute}, nil, nil)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Check(context.Background(), "u1", "a")
		}(i)
	}

	// let the goroutines pile up on the in-flight resolve
	time.Sleep(50 * time.Millisecond)
	close(r.block)
	wg.Wait()

	for _, allowed := range results {
		assert.True(t, allowed)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&r.calls), int32(len(results)))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&r.calls), int32(1))
}

// A resolve that raced an invalidation must not repopulate the cache.
func TestGate_StaleResolveIsNotCached(t *testing.T) {
	r := newStub()
	r.set("u1", "a")
	r.block = make(chan struct{})
	g := NewGate(r, Config{CacheTTL: time.Minute}, nil, nil)

	done := make(chan bool)
	go func() { done <- g.Check(context.Background(), "u1", "a") }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) == 1 }, time.Second, time.Millisecond)
	g.Invalidate("u1")
	r.set("u1", "b")
	close(r.block)
	assert.True(t, <-done, "in-flight caller sees the value it resolved")

	r.block = nil
	assert.False(t, g.Check(context.Background(), "u1", "a"))
	assert.True(t, g.Check(context.Background(), "u1", "b"))
}

// ctxResolver blocks until released or until its ctx ends.
type ctxResolver struct {
	calls   int32
	release chan struct{}
}

func (r *ctxResolver) Resolve(ctx context.Context, userID string) (map[string]struct{}, error) {
	atomic.AddInt32(&r.calls, 1)
	select {
	case <-r.release:
		return map[string]struct{}{"user.view": {}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGate_CancelledCallerDoesNotDenyJoinedCallers(t *testing.T) {
	r := &ctxResolver{release: make(chan struct{})}
	g := NewGate(r, Config{CacheTTL: time.Minute}, nil, nil)

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan bool)
	go func() { firstDone <- g.Check(first, "u1", "user.view") }()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) == 1 }, time.Second, time.Millisecond)

	joinedDone := make(chan bool)
	go func() { joinedDone <- g.Check(context.Background(), "u1", "user.view") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.False(t, <-firstDone, "the cancelled caller is denied")

	close(r.release)
	assert.True(t, <-joinedDone, "a live caller sharing the resolution keeps its answer")
	assert.EqualValues(t, 1, atomic.LoadInt32(&r.calls))
	assert.True(t, g.Check(context.Background(), "u1", "user.view"), "result was cached")
}

func TestGate_ResolveTimeoutDenies(t *testing.T) {
	r := &ctxResolver{release: make(chan struct{})}
	m := metrics.NewMetrics(nil)
	g := NewGate(r, Config{ResolveTimeout: 20 * time.Millisecond}, nil, m)

	assert.False(t, g.Check(context.Background(), "u1", "user.view"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolveErrorsTotal))
}
