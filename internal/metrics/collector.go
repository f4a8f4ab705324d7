package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/portfolio/backend/internal/logger"
)

// Sampler refreshes one group of gauges. A returned error is counted under
// the sampler's name.
type Sampler func(ctx context.Context) error

// Collector periodically runs registered samplers.
type Collector struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	samplers map[string]Sampler
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Collector{
		interval: interval,
		stop:     make(chan struct{}),
		samplers: make(map[string]Sampler),
	}
}

// Register adds fn under name, replacing any sampler with the same name.
func (c *Collector) Register(name string, fn Sampler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samplers[name] = fn
}

// Start runs every sampler once, then on each tick until Stop or ctx ends.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector. It is safe to call more than once.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Collect runs all samplers in name order.
func (c *Collector) Collect(ctx context.Context) {
	c.mu.Lock()
	names := make([]string, 0, len(c.samplers))
	fns := make(map[string]Sampler, len(c.samplers))
	for name, fn := range c.samplers {
		names = append(names, name)
		fns[name] = fn
	}
	c.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if err := fns[name](ctx); err != nil {
			logger.Warn("metrics sampler failed", "source", name, "error", err)
			MetricsCollectionErrors.WithLabelValues(name).Inc()
		}
	}
}
