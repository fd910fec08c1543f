package browser

import (
	"context"
	"sync"
	"time"

	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/metrics"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/google/uuid"
)

// Widget is one mounted browser instance.
type Widget struct {
	ID         string
	Controller *Controller
	Host       *plugins.Host

	lastSeen time.Time
}

// DefaultIdleTTL is how long a widget may go unused before Sweep drops it.
const DefaultIdleTTL = 30 * time.Minute

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTTL sets how long an unused widget is kept. Zero or less keeps
// widgets until they are unmounted.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTTL = ttl }
}

// WithClock replaces time.Now for idle tracking.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager owns the mounted widgets. Each widget gets its own controller and
// event bus, with every registered plugin subscribed to that bus.
type Manager struct {
	template Options
	registry *plugins.Registry
	host     *plugins.Host
	log      *logger.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	widgets map[string]*Widget
}

// NewManager builds controllers from opts; opts.Bus is ignored.
func NewManager(opts Options, registry *plugins.Registry, log *logger.Logger, options ...ManagerOption) *Manager {
	opts.Bus = nil
	if opts.Log == nil {
		opts.Log = log
	}
	m := &Manager{
		template: opts,
		registry: registry,
		host:     plugins.NewHost(registry),
		log:      log.Component("widgets"),
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		widgets:  make(map[string]*Widget),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Mount creates a widget with a fresh id.
func (m *Manager) Mount() *Widget {
	id := uuid.NewString()
	bus := events.NewBus(m.log.With().Str("widget_id", id).Logger())
	plugins.Subscribe(bus, m.registry)

	opts := m.template
	opts.Bus = bus
	w := &Widget{
		ID:         id,
		Controller: NewController(opts),
		Host:       m.host,
	}

	m.mu.Lock()
	w.lastSeen = m.now()
	m.widgets[id] = w
	m.mu.Unlock()
	metrics.ActiveWidgets.Inc()
	m.log.With().Str("widget_id", id).Logger().Debug("widget mounted")
	return w
}

// Get returns the widget with id and marks it as used.
func (m *Manager) Get(id string) (*Widget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.widgets[id]
	if ok {
		w.lastSeen = m.now()
	}
	return w, ok
}

// Unmount discards the widget and its bus. It reports whether id was mounted.
func (m *Manager) Unmount(id string) bool {
	m.mu.Lock()
	_, ok := m.widgets[id]
	delete(m.widgets, id)
	m.mu.Unlock()
	if ok {
		metrics.ActiveWidgets.Dec()
		m.log.With().Str("widget_id", id).Logger().Debug("widget unmounted")
	}
	return ok
}

// Len is the number of mounted widgets.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.widgets)
}

// Sweep unmounts every widget unused for longer than the idle TTL and
// returns how many went.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []string
	for id, w := range m.widgets {
		if w.lastSeen.Before(cutoff) {
			idle = append(idle, id)
			delete(m.widgets, id)
		}
	}
	m.mu.Unlock()

	for range idle {
		metrics.ActiveWidgets.Dec()
	}
	if len(idle) > 0 {
		m.log.With().Int("evicted", len(idle)).Int("remaining", m.Len()).Logger().Info("idle widgets swept")
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
