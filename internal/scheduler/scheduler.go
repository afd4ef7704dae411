// Package scheduler owns the periodic background jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Job is one periodic task. Every zero disables it.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []string
	ids    []cron.EntryID
	wg     sync.WaitGroup
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("scheduler: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("scheduler: " + msg)
}

// New registers jobs on a cron running in loc. A run that is still in
// progress when its next tick arrives causes that tick to be skipped.
func New(loc *time.Location, jobs ...Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{logger: log.Logger}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, ctx: ctx, cancel: cancel}

	for _, job := range jobs {
		if job.Every <= 0 {
			log.Info().Str("job", job.Name).Msg("scheduler: job disabled")
			continue
		}
		if job.Every < time.Second {
			cancel()
			return nil, fmt.Errorf("scheduler: job %s interval %s is below one second", job.Name, job.Every)
		}
		s.ids = append(s.ids, c.Schedule(cron.Every(job.Every), s.wrap(job)))
		s.jobs = append(s.jobs, job.Name)
	}

	return s, nil
}

func (s *Scheduler) wrap(job Job) cron.Job {
	return cron.FuncJob(func() {
		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			log.Error().Err(err).Str("job", job.Name).Msg("scheduler: job failed")
			return
		}
		log.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("scheduler: job done")
	})
}

// Jobs lists the names of the enabled jobs.
func (s *Scheduler) Jobs() []string {
	return s.jobs
}

// Start runs every enabled job once right away, then on its interval.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, id := range s.ids {
		job := s.cron.Entry(id).WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
	log.Info().Strs("jobs", s.jobs).Msg("scheduler: started")
}

// Stop prevents new runs, cancels running ones and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("scheduler: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: jobs still running at shutdown: %w", ctx.Err())
	}
}
