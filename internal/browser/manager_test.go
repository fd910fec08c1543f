package browser

import (
	"context"
	"html/template"
	"sync"
	"testing"
	"time"

	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/metrics"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPlugin struct {
	deleted int
}

func (p *countingPlugin) Name() string             { return "Counter" }
func (p *countingPlugin) Description() string      { return "counts deletions" }
func (p *countingPlugin) FileExtensions() []string { return []string{plugins.Wildcard} }
func (p *countingPlugin) View(ctx context.Context, rec objects.Record) (template.HTML, error) {
	return "", nil
}
func (p *countingPlugin) Subscriptions() map[events.Kind]events.Handler {
	return map[events.Kind]events.Handler{
		events.ObjectDeleted: func(ctx context.Context, payload any) error {
			p.deleted++
			return nil
		},
	}
}

func TestManagerMountsIsolatedWidgets(t *testing.T) {
	store := newSpy()
	store.seed(t, "a.txt", "a")
	store.seed(t, "b.txt", "b")
	log := logger.Nop()

	counter := &countingPlugin{}
	registry := plugins.NewRegistry()
	require.NoError(t, registry.Register(counter))

	m := NewManager(Options{
		Client:      store,
		Bucket:      bucket,
		Mapper:      objects.NewMapper(store, bucket, log, objects.WithListMetadata(true)),
		Permissions: AllowAll(),
	}, registry, log)

	before := testutil.ToFloat64(metrics.ActiveWidgets)
	one := m.Mount()
	two := m.Mount()
	assert.NotEqual(t, one.ID, two.ID)
	assert.NotSame(t, one.Controller.Bus(), two.Controller.Bus())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ActiveWidgets))

	ctx := context.Background()
	require.NoError(t, one.Controller.Navigate(ctx, ""))
	require.NoError(t, two.Controller.Navigate(ctx, ""))
	rec, err := one.Controller.Lookup(ctx, "a.txt")
	require.NoError(t, err)
	_, err = one.Controller.Delete(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, 1, counter.deleted, "only the acting widget's bus fires")
	// the other widget keeps its own snapshot until it refreshes
	assert.Len(t, two.Controller.Snapshot().Records, 2)

	got, ok := m.Get(one.ID)
	require.True(t, ok)
	assert.Same(t, one, got)

	assert.True(t, m.Unmount(one.ID))
	assert.False(t, m.Unmount(one.ID))
	_, ok = m.Get(one.ID)
	assert.False(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActiveWidgets))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManagerSweepsIdleWidgets(t *testing.T) {
	store := newSpy()
	log := logger.Nop()
	fc := &fakeClock{now: clock}
	m := NewManager(Options{
		Client: store,
		Bucket: bucket,
		Mapper: objects.NewMapper(store, bucket, log),
	}, plugins.NewRegistry(), log, WithIdleTTL(10*time.Minute), WithClock(fc.Now))

	before := testutil.ToFloat64(metrics.ActiveWidgets)
	stale := m.Mount()
	busy := m.Mount()

	fc.Advance(6 * time.Minute)
	_, ok := m.Get(busy.ID)
	require.True(t, ok)
	assert.Zero(t, m.Sweep(), "nothing is idle yet")

	fc.Advance(6 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, ok = m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(busy.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActiveWidgets))

	assert.False(t, m.Unmount(stale.ID), "a swept widget is already gone")
	assert.True(t, m.Unmount(busy.ID))
	assert.Equal(t, before, testutil.ToFloat64(metrics.ActiveWidgets))
}

func TestManagerWithoutIdleTTLKeepsWidgets(t *testing.T) {
	store := newSpy()
	log := logger.Nop()
	fc := &fakeClock{now: clock}
	m := NewManager(Options{Client: store, Bucket: bucket, Mapper: objects.NewMapper(store, bucket, log)},
		plugins.NewRegistry(), log, WithIdleTTL(0), WithClock(fc.Now))

	w := m.Mount()
	fc.Advance(24 * time.Hour)
	assert.Zero(t, m.Sweep())
	assert.True(t, m.Unmount(w.ID))
}

func TestManagerRunStopsWithContext(t *testing.T) {
	store := newSpy()
	log := logger.Nop()
	m := NewManager(Options{Client: store, Bucket: bucket, Mapper: objects.NewMapper(store, bucket, log)},
		plugins.NewRegistry(), log, WithIdleTTL(time.Nanosecond))
	m.Mount()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
