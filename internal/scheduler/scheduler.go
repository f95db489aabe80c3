package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// misfireGrace is how stale a tick may be and still run. A tick
	// older than this (process paused, clock jump) is dropped.
	misfireGrace = time.Hour

	// drainTimeout bounds the wait for in-flight runs on shutdown.
	drainTimeout = 60 * time.Second
)

// JobState is the lifecycle state of one scheduled job.
type JobState int32

const (
	StateIdle JobState = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s JobState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Job is one periodic task. Runs never overlap themselves; a tick that
// arrives while the previous run is still going is coalesced away.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives the refresh and publish jobs on their intervals and
// tracks an explicit state per job.
type Scheduler struct {
	jobs   []Job
	states map[string]*atomic.Int32
	log    zerolog.Logger
}

// New creates a scheduler over the given jobs.
func New(log zerolog.Logger, jobs ...Job) *Scheduler {
	states := make(map[string]*atomic.Int32, len(jobs))
	for _, job := range jobs {
		states[job.Name] = &atomic.Int32{}
	}
	return &Scheduler{jobs: jobs, states: states, log: log}
}

// JobState reports the current state of a job by name.
func (s *Scheduler) JobState(name string) JobState {
	st, ok := s.states[name]
	if !ok {
		return StateStopped
	}
	return JobState(st.Load())
}

// Run starts every job and blocks until ctx is cancelled. Each job runs
// once immediately, then on its interval. On cancellation, jobs still
// running move to draining and get up to drainTimeout to finish before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer s.states[job.Name].Store(int32(StateStopped))
			s.runJob(ctx, job)
		}(job)
	}

	<-ctx.Done()

	for _, job := range s.jobs {
		if s.states[job.Name].CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
			s.log.Info().Str("job", job.Name).Msg("job draining")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
	case <-time.After(drainTimeout):
		for _, job := range s.jobs {
			if s.JobState(job.Name) == StateDraining {
				s.log.Warn().Str("job", job.Name).Msg("drain timeout, run abandoned")
			}
		}
	}
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Name).Logger()
	log.Info().Dur("interval", job.Interval).Msg("job started")

	s.execute(ctx, job, log)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fired := <-ticker.C:
			if time.Since(fired) > misfireGrace {
				log.Warn().Time("fired", fired).Msg("tick past misfire grace, skipped")
				continue
			}
			s.execute(ctx, job, log)
		}
	}
}

// execute runs the job under a context detached from shutdown
// cancellation so a run in progress completes (or is abandoned by the
// drain timeout) instead of being killed halfway.
func (s *Scheduler) execute(ctx context.Context, job Job, log zerolog.Logger) {
	if ctx.Err() != nil {
		return
	}

	st := s.states[job.Name]
	st.Store(int32(StateRunning))
	// Shutdown may have flipped the state to draining mid-run; only an
	// undisturbed run goes back to idle.
	defer st.CompareAndSwap(int32(StateRunning), int32(StateIdle))

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout+job.Interval)
	defer cancel()

	start := time.Now()
	if err := job.Run(runCtx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("run failed")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("run finished")
}
