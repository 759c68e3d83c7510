// Package timer runs named jobs at scheduled times from a min-heap, with a
// fixed pool of workers executing due jobs.
package timer

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is the work of a scheduled job.
type JobFunc func(ctx context.Context) error

// job is one pending execution
type job struct {
	name  string
	runAt time.Time
	fn    JobFunc
	// next computes the following run after this one; nil runs once.
	next  func(last time.Time) time.Time
	index int
}

// jobHeap is a min-heap of jobs ordered by runAt
type jobHeap []*job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	return h[i].runAt.Before(h[j].runAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}

// Scheduler runs jobs at their scheduled time
type Scheduler struct {
	heap    jobHeap
	jobs    map[string]*job
	mu      sync.Mutex
	wakeup  chan struct{}
	due     chan *job
	workers int
	wg      sync.WaitGroup
	stopped bool
	started bool
	stopCh  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	now     func() time.Time
}

// NewScheduler creates a scheduler with a pool of workers
func NewScheduler(workers int, logger *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		heap:    make(jobHeap, 0),
		jobs:    make(map[string]*job),
		wakeup:  make(chan struct{}, 1),
		due:     make(chan *job, workers),
		workers: workers,
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		now:     time.Now,
	}
	heap.Init(&s.heap)
	return s
}

// Start launches the workers and the dispatch loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.run()
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Once schedules fn to run at runAt. A job with the same name is replaced.
func (s *Scheduler) Once(name string, runAt time.Time, fn JobFunc) error {
	return s.schedule(&job{name: name, runAt: runAt, fn: fn})
}

// Every runs fn every interval, starting one interval from now.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	next := func(last time.Time) time.Time { return last.Add(interval) }
	return s.schedule(&job{name: name, runAt: s.now().Add(interval), fn: fn, next: next})
}

// Daily runs fn every day at hh:mm local time.
func (s *Scheduler) Daily(name, clock string, fn JobFunc) error {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	next := func(last time.Time) time.Time { return NextDailyRun(last, hour, minute) }
	return s.schedule(&job{name: name, runAt: next(s.now()), fn: fn, next: next})
}

func (s *Scheduler) schedule(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.jobs[j.name]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.jobs, j.name)
	}

	heap.Push(&s.heap, j)
	s.jobs[j.name] = j

	if s.heap[0] == j {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a scheduled job
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, j.index)
	delete(s.jobs, name)
	return true
}

// NextRun returns when the named job runs next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return j.runAt, true
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		wait := 24 * time.Hour
		if s.heap.Len() > 0 {
			next := s.heap[0]
			wait = next.runAt.Sub(s.now())
			if wait <= 0 {
				j := heap.Pop(&s.heap).(*job)
				delete(s.jobs, j.name)
				s.mu.Unlock()

				select {
				case s.due <- j:
				case <-s.stopCh:
					return
				}
				continue
			}
		}
		s.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-s.wakeup:
			t.Stop()
		case <-s.stopCh:
			t.Stop()
			return
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case j := <-s.due:
			s.execute(j)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) execute(j *job) {
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
		if j.next != nil {
			following := &job{name: j.name, runAt: j.next(j.runAt), fn: j.fn, next: j.next}
			if err := s.reschedule(following); err != nil && err != ErrSchedulerStopped {
				s.logger.Error("failed to reschedule job", zap.String("job", j.name), zap.Error(err))
			}
		}
	}()

	if err := j.fn(s.ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	s.logger.Info("job completed", zap.String("job", j.name), zap.Duration("took", s.now().Sub(start)))
}

// reschedule queues the next run unless the job was replaced or cancelled
// while it was running.
func (s *Scheduler) reschedule(j *job) error {
	s.mu.Lock()
	_, replaced := s.jobs[j.name]
	s.mu.Unlock()
	if replaced {
		return nil
	}
	// Skip missed runs rather than firing them back to back.
	for now := s.now(); !j.runAt.After(now); {
		j.runAt = j.next(j.runAt)
	}
	return s.schedule(j)
}

// Stats returns statistics about the scheduler
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStats{
		ScheduledJobs: len(s.jobs),
		Workers:       s.workers,
	}
}

// SchedulerStats contains statistics about the scheduler
type SchedulerStats struct {
	ScheduledJobs int
	Workers       int
}

// ParseClock parses "HH:MM".
func ParseClock(clock string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", clock)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDailyRun returns the first hh:mm strictly after now, in now's location.
func NextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

var (
	ErrSchedulerStopped = &TimerError{"scheduler is stopped"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
