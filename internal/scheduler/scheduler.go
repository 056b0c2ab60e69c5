// Package scheduler runs named background maintenance jobs on fixed
// intervals, such as the undo retention sweep.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

type Scheduler struct {
	jobs   map[string]*job
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

type job struct {
	ticker *time.Ticker
	cancel context.CancelFunc
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob schedules run every interval under name, replacing any job already
// registered with that name. The first run happens immediately.
func (s *Scheduler) AddJob(name string, interval time.Duration, run func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.jobs[name]; exists {
		existing.ticker.Stop()
		existing.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	ticker := time.NewTicker(interval)

	s.jobs[name] = &job{ticker: ticker, cancel: jobCancel}

	go func() {
		run(jobCtx)

		for {
			select {
			case <-jobCtx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				run(jobCtx)
			}
		}
	}()

	log.Printf("Scheduled job %q every %s", name, interval)
}

// RemoveJob stops and forgets a job. Unknown names are ignored.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.jobs[name]; exists {
		existing.ticker.Stop()
		existing.cancel()
		delete(s.jobs, name)
		log.Printf("Removed job %q", name)
	}
}

// Stop cancels every job. The scheduler cannot be restarted afterwards.
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		existing.ticker.Stop()
		existing.cancel()
	}

	s.jobs = make(map[string]*job)
	log.Println("Scheduler stopped")
}
