package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRunsSamplers(t *testing.T) {
	c := NewCollector(time.Hour)
	var order []string
	c.Register("b", func(ctx context.Context) error { order = append(order, "b"); return nil })
	c.Register("a", func(ctx context.Context) error { order = append(order, "a"); return nil })

	c.Collect(context.Background())

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected sampler order: %v", order)
	}
}

func TestCollectorCountsErrors(t *testing.T) {
	c := NewCollector(time.Hour)
	c.Register("collector_test_failing", func(ctx context.Context) error { return errors.New("boom") })

	before := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("collector_test_failing"))
	c.Collect(context.Background())
	after := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("collector_test_failing"))

	if after-before != 1 {
		t.Errorf("expected one collection error, got %v", after-before)
	}
}

func TestCollectorStartAndStop(t *testing.T) {
	c := NewCollector(10 * time.Millisecond)
	var runs atomic.Int32
	c.Register("tick", func(ctx context.Context) error { runs.Add(1); return nil })

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	if runs.Load() < 2 {
		t.Errorf("expected initial and ticked collections, got %d", runs.Load())
	}
}

func TestCollectorContextCancellation(t *testing.T) {
	c := NewCollector(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("collector ignored context cancellation")
	}
}
