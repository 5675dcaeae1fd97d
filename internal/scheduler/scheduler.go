// Package scheduler implements spec.md §4.1's cycle loop: a periodic
// trigger that runs one enumeration+download cycle at a time, coalescing
// extra manual triggers into the next run instead of queuing them.
// Modeled on _examples/ManuGH-xg2g/internal/dvr/scheduler.go (injected
// Clock/Timer) and internal/daemon/manager.go (LIFO shutdown hooks).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/taskstatus/history"
)

// Snapshot is the status the admin API reads, published atomically so it
// never blocks on the scheduler's internal mutex.
type Snapshot struct {
	IsRunning   bool
	LastRun     time.Time
	LastFinish  time.Time
	NextRun     time.Time
	LastCycleID string
	LastErr     string
}

// StatusStore persists the latest Snapshot so it survives a restart.
type StatusStore interface {
	PutSchedulerStatus(ctx context.Context, st StatusRecord) error
	GetSchedulerStatus(ctx context.Context) (StatusRecord, error)
}

// StatusRecord is the persisted shape; kept distinct from Snapshot so this
// package doesn't import internal/store and create a cycle.
type StatusRecord struct {
	IsRunning  bool
	LastRun    time.Time
	LastFinish time.Time
	NextRun    time.Time
}

// RunFunc executes one full cycle (enumeration across all sources plus the
// orchestrator's download passes) and returns a human-readable error, if
// any step failed irrecoverably.
type RunFunc func(ctx context.Context, cycleID string) error

// ShutdownHook runs during Stop, in reverse registration order.
type ShutdownHook func(ctx context.Context) error

// Scheduler drives RunFunc on Interval, coalescing manual triggers.
type Scheduler struct {
	Interval time.Duration
	Jitter   time.Duration

	run    RunFunc
	clock  Clock
	status StatusStore
	hist   *history.Ring

	trigger chan struct{}

	mu      sync.Mutex
	running bool

	snapshot atomic.Pointer[Snapshot]

	hooksMu sync.Mutex
	hooks   []namedHook
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

// New builds a Scheduler. status and hist may be nil, in which case
// persistence/history recording is skipped (useful in tests).
func New(interval time.Duration, run RunFunc, status StatusStore, hist *history.Ring) *Scheduler {
	s := &Scheduler{
		Interval: interval,
		Jitter:   interval / 20,
		run:      run,
		clock:    RealClock{},
		status:   status,
		hist:     hist,
		trigger:  make(chan struct{}, 1),
	}
	s.snapshot.Store(&Snapshot{NextRun: time.Now().Add(interval)})
	return s
}

// RegisterShutdownHook registers fn to run during Stop, LIFO.
func (s *Scheduler) RegisterShutdownHook(name string, fn ShutdownHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: fn})
}

// TriggerNow requests an out-of-band cycle. If a trigger is already
// pending, the request coalesces into it; triggers sent while a cycle runs
// queue at most one further cycle.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Status returns the current published Snapshot.
func (s *Scheduler) Status() Snapshot {
	return *s.snapshot.Load()
}

// Run blocks, driving cycles until ctx is cancelled, then runs shutdown
// hooks in LIFO order.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)
	logger.Info().Dur("interval", s.Interval).Msg("scheduler started")

	timer := s.clock.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler stopping")
			return s.runShutdownHooks(context.Background())
		case <-timer.C():
			s.runCycle(ctx)
			timer.Reset(s.nextDelay())
		case <-s.trigger:
			s.runCycle(ctx)
			timer.Reset(s.nextDelay())
		}
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	if s.Jitter <= 0 {
		return s.Interval
	}
	return s.Interval + time.Duration(time.Now().UnixNano()%int64(s.Jitter))
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	cycleID := uuid.New().String()
	ctx = log.ContextWithCycleID(ctx, cycleID)
	logger := log.FromContext(ctx)

	started := s.clock.Now()
	s.publish(Snapshot{IsRunning: true, LastRun: started, LastCycleID: cycleID})

	err := s.run(ctx, cycleID)

	finished := s.clock.Now()
	next := Snapshot{
		IsRunning:   false,
		LastRun:     started,
		LastFinish:  finished,
		NextRun:     finished.Add(s.Interval),
		LastCycleID: cycleID,
	}
	if err != nil {
		next.LastErr = err.Error()
		logger.Error().Err(err).Str("cycle_id", cycleID).Msg("cycle failed")
	} else {
		logger.Info().Str("cycle_id", cycleID).Dur("duration", finished.Sub(started)).Msg("cycle complete")
	}
	s.publish(next)
}

func (s *Scheduler) publish(snap Snapshot) {
	s.snapshot.Store(&snap)

	if s.status != nil {
		rec := StatusRecord{IsRunning: snap.IsRunning, LastRun: snap.LastRun, LastFinish: snap.LastFinish, NextRun: snap.NextRun}
		if err := s.status.PutSchedulerStatus(context.Background(), rec); err != nil {
			log.Base().Warn().Err(err).Msg("persist scheduler status failed")
		}
	}
	if s.hist != nil {
		msg := "running"
		if !snap.IsRunning {
			msg = "finished"
			if snap.LastErr != "" {
				msg = fmt.Sprintf("finished with error: %s", snap.LastErr)
			}
		}
		_ = s.hist.Append(history.Snapshot{
			CycleID:    snap.LastCycleID,
			EntityKind: "cycle",
			Message:    msg,
		})
	}
}

func (s *Scheduler) runShutdownHooks(ctx context.Context) error {
	s.hooksMu.Lock()
	hooks := append([]namedHook(nil), s.hooks...)
	s.hooksMu.Unlock()

	var firstErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			log.FromContext(ctx).Warn().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown hook %s: %w", h.name, err)
			}
		}
	}
	return firstErr
}
