package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeTimer struct {
	c chan time.Time
}

func (f *fakeTimer) C() <-chan time.Time        { return f.c }
func (f *fakeTimer) Stop() bool                 { return true }
func (f *fakeTimer) Reset(d time.Duration) bool { return true }

type fakeClock struct {
	mu    sync.Mutex
	timer *fakeTimer
}

func (f *fakeClock) Now() time.Time { return time.Now() }

func (f *fakeClock) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer == nil {
		f.timer = &fakeTimer{c: make(chan time.Time, 1)}
	}
	return f.timer
}

func (f *fakeClock) fire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timer.c <- time.Now()
}

func TestTriggerNowRunsACycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	s := New(time.Hour, func(ctx context.Context, cycleID string) error {
		calls.Add(1)
		return nil
	}, nil, nil)
	clock := &fakeClock{}
	s.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	s.TriggerNow()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestCoalescesConcurrentTriggers(t *testing.T) {
	var calls atomic.Int32
	block := make(chan struct{})
	s := New(time.Hour, func(ctx context.Context, cycleID string) error {
		calls.Add(1)
		<-block
		return nil
	}, nil, nil)
	clock := &fakeClock{}
	s.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	s.TriggerNow()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	s.TriggerNow()
	s.TriggerNow()
	close(block)

	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(2))

	cancel()
	<-done
}

func TestStatusReflectsFailure(t *testing.T) {
	s := New(time.Hour, func(ctx context.Context, cycleID string) error {
		return errors.New("boom")
	}, nil, nil)
	clock := &fakeClock{}
	s.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	s.TriggerNow()
	require.Eventually(t, func() bool { return s.Status().LastErr != "" }, time.Second, time.Millisecond)
	assert.Contains(t, s.Status().LastErr, "boom")

	cancel()
	<-done
}

func TestShutdownHooksRunInLIFOOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var order []string
	var mu sync.Mutex
	s := New(time.Hour, func(ctx context.Context, cycleID string) error { return nil }, nil, nil)
	s.clock = &fakeClock{}

	s.RegisterShutdownHook("first", func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return nil
	})
	s.RegisterShutdownHook("second", func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()
	cancel()
	<-done

	assert.Equal(t, []string{"second", "first"}, order)
}
