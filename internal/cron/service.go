// Package cron runs named jobs on six-field cron schedules (seconds first)
// in a fixed time zone.
package cron

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// JobFunc does one run of a job. The string is a short result for the log.
type JobFunc func(ctx context.Context) (string, error)

type JobState struct {
	LastRunAt  time.Time
	LastStatus string // "ok" or "error"
	LastError  string
}

type Job struct {
	Name     string
	Schedule string
	// Next is the next fire time after the moment ListJobs was called.
	Next  time.Time
	State JobState
}

var scheduleParser = rcron.NewParser(rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)

type entry struct {
	job   Job
	fn    JobFunc
	sched rcron.Schedule
}

type Service struct {
	mu      sync.Mutex
	cron    *rcron.Cron
	loc     *time.Location
	jobs    map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewService builds a scheduler evaluating schedules in loc. A nil loc
// means time.Local.
func NewService(loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		cron: rcron.New(rcron.WithParser(scheduleParser), rcron.WithLocation(loc)),
		loc:  loc,
		jobs: make(map[string]*entry),
		ctx:  context.Background(),
	}
}

// AddJob registers fn under name. Names are unique.
func (s *Service) AddJob(name, schedule string, fn JobFunc) error {
	if fn == nil {
		return fmt.Errorf("job %s: nil func", name)
	}
	sched, err := scheduleParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already exists", name)
	}
	s.jobs[name] = &entry{job: Job{Name: name, Schedule: schedule}, fn: fn, sched: sched}
	s.cron.Schedule(sched, rcron.FuncJob(func() { _, _ = s.execute(name) }))
	return nil
}

// ListJobs returns a snapshot sorted by name.
func (s *Service) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().In(s.loc)
	out := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		job := e.job
		job.Next = e.sched.Next(now)
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow executes name synchronously outside its schedule and returns the
// job's result.
func (s *Service) RunNow(name string) (string, error) {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("job %s not found", name)
	}
	return s.execute(name)
}

func (s *Service) execute(name string) (string, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	ctx := s.ctx
	s.mu.Unlock()
	if !ok {
		return "", nil
	}

	log.Printf("[cron] executing job %s", name)
	result, err := e.fn(ctx)

	s.mu.Lock()
	e.job.State.LastRunAt = time.Now()
	if err != nil {
		e.job.State.LastStatus = "error"
		e.job.State.LastError = err.Error()
	} else {
		e.job.State.LastStatus = "ok"
		e.job.State.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[cron] job %s error: %v", name, err)
		return "", err
	}
	log.Printf("[cron] job %s result: %s", name, result)
	return result, nil
}

// Start begins firing jobs until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("cron already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	runCtx := s.ctx
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", n)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.ctx = context.Background()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[cron] stop timeout waiting for running jobs")
	}
	log.Printf("[cron] stopped")
}
