package agent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"k8s.io/client-go/util/workqueue"
)

type RuntimeOptions struct {
	Concurrency int
}

func DefaultRuntimeOptions() *RuntimeOptions {
	return &RuntimeOptions{
		Concurrency: 3,
	}
}

type RuntimeOption func(*RuntimeOptions)

func WithConcurrency(concurrency int) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.Concurrency = concurrency
	}
}

// Job is one queued prompt. Done is closed when the run finishes, after
// Result and Err are set.
type Job struct {
	ID     uuid.UUID
	Prompt string

	Result *RunResult
	Err    error
	Done   chan struct{}
}

// Runtime fans queued prompts out to a bounded worker pool. Runs do not
// share history, so they execute concurrently; the file system and shell
// remain ambient shared state, and callers submitting jobs that touch
// overlapping paths accept the race.
type Runtime struct {
	loop        *Loop
	concurrency int
	queue       workqueue.TypedDelayingInterface[uuid.UUID]
	running     atomic.Bool

	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
}

func NewRuntime(loop *Loop, opts ...RuntimeOption) *Runtime {
	options := DefaultRuntimeOptions()
	for _, opt := range opts {
		opt(options)
	}

	queue := workqueue.NewTypedDelayingQueueWithConfig(workqueue.TypedDelayingQueueConfig[uuid.UUID]{
		Name: "ember",
	})

	return &Runtime{
		loop:        loop,
		concurrency: options.Concurrency,
		queue:       queue,
		jobs:        make(map[uuid.UUID]*Job),
	}
}

// Submit queues a prompt and returns its job handle immediately.
func (r *Runtime) Submit(prompt string) *Job {
	job := &Job{
		ID:     uuid.New(),
		Prompt: prompt,
		Done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.queue.Add(job.ID)
	return job
}

// Job looks up a submitted job by ID.
func (r *Runtime) Job(id uuid.UUID) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Run processes queued jobs until ctx is cancelled, then drains the queue
// and waits for in-flight runs to complete.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return nil
	}

	var wg sync.WaitGroup
	for range r.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				jobID, shutdown := r.queue.Get()
				if shutdown {
					return
				}
				r.process(ctx, jobID)
			}
		}()
	}

	<-ctx.Done()
	r.queue.ShutDownWithDrain()
	wg.Wait()
	return nil
}

func (r *Runtime) process(ctx context.Context, jobID uuid.UUID) {
	defer r.queue.Done(jobID)

	job, ok := r.Job(jobID)
	if !ok {
		slog.Warn("unknown job dequeued", "job_id", jobID)
		return
	}

	job.Result, job.Err = r.loop.Run(ctx, job.Prompt)
	if job.Err != nil {
		slog.Error("job failed", "job_id", jobID, "error", job.Err)
	}
	close(job.Done)
}
