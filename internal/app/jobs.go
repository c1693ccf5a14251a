package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xsrledger/internal/adapters/mq/queue"
	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/logger"
)

// maxFinishedJobs bounds how many terminal jobs stay queryable.
const maxFinishedJobs = 1000

// Submit queues a workflow run over the named sources, or all sources when
// names is empty. It returns ErrBusy when the queue is full.
func (s *Service) Submit(ctx context.Context, names ...string) (model.Job, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return model.Job{}, ErrNotStarted
	}
	c, jobs, registry := s.components(), s.jobs, s.registry
	s.mu.RUnlock()

	if _, err := c.resolve(names); err != nil {
		return model.Job{}, err
	}

	job := model.Job{
		ID:          uuid.NewString(),
		Sources:     append([]string(nil), names...),
		State:       model.JobPending,
		SubmittedAt: time.Now().UTC(),
	}
	registry.put(job)
	if err := jobs.Enqueue(ctx, job); err != nil {
		registry.remove(job.ID)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			return model.Job{}, ErrBusy
		}
		return model.Job{}, err
	}
	c.logger.Info(ctx, "workflow queued", logger.String("task_id", job.ID), logger.Strings("sources", names))
	return job, nil
}

// Job returns the current state of a submitted job.
func (s *Service) Job(id string) (model.Job, error) {
	s.mu.RLock()
	registry := s.registry
	s.mu.RUnlock()
	if registry == nil {
		return model.Job{}, ErrNotStarted
	}
	j, ok := registry.get(id)
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return j, nil
}

func (s *Service) runJobs(ctx context.Context, c components) {
	defer close(s.runnerDone)
	registry := s.registry
	for job := range s.jobs.Dequeue(ctx) {
		started := time.Now().UTC()
		registry.update(job.ID, func(j *model.Job) {
			j.State = model.JobStarted
			j.StartedAt = &started
		})
		c.logger.Info(ctx, "workflow started", logger.String("task_id", job.ID))

		reports, err := c.runAll(ctx, job.Sources)

		finished := time.Now().UTC()
		registry.update(job.ID, func(j *model.Job) {
			j.FinishedAt = &finished
			j.Reports = reports
			j.State = model.JobSuccess
			if err != nil {
				j.State = model.JobFailure
				j.Error = err.Error()
			}
		})
		c.logger.Info(ctx, "workflow finished",
			logger.String("task_id", job.ID),
			logger.Bool("failed", err != nil),
			logger.Duration("took", finished.Sub(started)),
		)
	}
}

// jobRegistry keeps job state for status queries. Terminal jobs beyond
// maxFinishedJobs are forgotten oldest first.
type jobRegistry struct {
	mu       sync.RWMutex
	jobs     map[string]*model.Job
	finished []string
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*model.Job)}
}

func (r *jobRegistry) put(j model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = &j
}

func (r *jobRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

func (r *jobRegistry) get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	out := *j
	out.Reports = append([]model.BatchReport(nil), j.Reports...)
	return out, true
}

func (r *jobRegistry) update(id string, fn func(*model.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	fn(j)
	if j.Done() {
		r.finished = append(r.finished, id)
		for len(r.finished) > maxFinishedJobs {
			delete(r.jobs, r.finished[0])
			r.finished = r.finished[1:]
		}
	}
}

func (r *jobRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
