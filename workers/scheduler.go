package workers

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Job is a named periodic task. Run errors are logged; the job simply fires
// again on its next tick, which gives retry-on-next-tick semantics for
// transient failures like an unavailable database.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func() error
}

// Scheduler drives the periodic jobs (reconciliation sweeps, database
// backups). It is an explicit service with a start/stop lifecycle, injected
// where needed rather than living in package globals.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{stop: make(chan struct{})}
}

// AddJob registers a job. Must be called before Start.
func (s *Scheduler) AddJob(name string, interval time.Duration, run func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cannot add job %q after scheduler start", name)
	}
	if interval <= 0 {
		return fmt.Errorf("job %q needs a positive interval, got %v", name, interval)
	}
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
	return nil
}

// Start launches one goroutine per job. Calling Start twice is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}
	log.Printf("scheduler: started %d job(s)", len(s.jobs))
	return nil
}

func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	log.Printf("scheduler: job %q scheduled every %v", job.Name, job.Interval)
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := job.Run(); err != nil {
				log.Printf("scheduler: job %q failed: %v (will retry on next tick)", job.Name, err)
				continue
			}
			log.Printf("scheduler: job %q completed in %v", job.Name, time.Since(start))
		case <-s.stop:
			log.Printf("scheduler: job %q stopping", job.Name)
			return
		}
	}
}

// Stop signals all jobs to exit and waits for them. A job mid-run finishes
// its current execution first. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	log.Println("scheduler: stopping...")
	close(s.stop)
	s.wg.Wait()
	log.Println("scheduler: all jobs stopped")
}
