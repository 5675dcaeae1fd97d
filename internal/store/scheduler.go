package store

import (
	"context"
	"time"
)

// SchedulerStatus is the singleton row the scheduler publishes into so the
// admin API can serve a crash-consistent snapshot without touching the
// scheduler goroutine (spec.md §5, §7).
type SchedulerStatus struct {
	IsRunning  bool
	LastRun    time.Time
	LastFinish time.Time
	NextRun    time.Time
}

// GetSchedulerStatus reads the singleton row.
func (s *Store) GetSchedulerStatus(ctx context.Context) (SchedulerStatus, error) {
	var st SchedulerStatus
	var lastRun, lastFinish, nextRun int64
	row := s.db.QueryRowContext(ctx, `SELECT is_running, last_run, last_finish, next_run FROM scheduler_status WHERE id = 1`)
	if err := row.Scan(&st.IsRunning, &lastRun, &lastFinish, &nextRun); err != nil {
		return st, err
	}
	st.LastRun = time.Unix(lastRun, 0)
	st.LastFinish = time.Unix(lastFinish, 0)
	st.NextRun = time.Unix(nextRun, 0)
	return st, nil
}

// PutSchedulerStatus overwrites the singleton row.
func (s *Store) PutSchedulerStatus(ctx context.Context, st SchedulerStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduler_status SET is_running = ?, last_run = ?, last_finish = ?, next_run = ? WHERE id = 1
	`, st.IsRunning, st.LastRun.Unix(), st.LastFinish.Unix(), st.NextRun.Unix())
	return err
}
