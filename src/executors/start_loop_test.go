package executors

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type countingIterator struct {
	calls  atomic.Int32
	err    error
	cancel context.CancelFunc
	stopAt int32
}

func (c *countingIterator) RunIteration(ctx context.Context) error {
	n := c.calls.Add(1)
	if c.cancel != nil && n >= c.stopAt {
		c.cancel()
	}
	return c.err
}

func TestStartLoopRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	it := &countingIterator{cancel: cancel, stopAt: 3, err: errors.New("exchange unavailable")}
	if err := StartLoop(ctx, it, time.Millisecond); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if got := it.calls.Load(); got != 3 {
		t.Fatalf("expected 3 iterations, got %d", got)
	}
}

func TestStartLoopExitsOnEmergencyStop(t *testing.T) {
	it := &countingIterator{err: fmt.Errorf("iteration: %w", errors.Join(ErrEmergencyStop, errors.New("close failed")))}

	err := StartLoop(context.Background(), it, time.Hour)
	if !errors.Is(err, ErrEmergencyStop) {
		t.Fatalf("expected emergency stop, got %v", err)
	}
	if got := it.calls.Load(); got != 1 {
		t.Fatalf("expected a single iteration, got %d", got)
	}
}

func TestStartLoopCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it := &countingIterator{}
	if err := StartLoop(ctx, it, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := it.calls.Load(); got != 0 {
		t.Fatalf("expected no iterations, got %d", got)
	}
}

func TestStartLoopRejectsBadPeriod(t *testing.T) {
	if err := StartLoop(context.Background(), &countingIterator{}, 0); err == nil {
		t.Fatal("expected error for zero period")
	}
}
