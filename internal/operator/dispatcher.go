package operator

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fair-protocol/operator/internal/metrics"
)

// Runner is the per-job execution the dispatcher fans out to.
type Runner interface {
	Run(ctx context.Context, job Job) Outcome
}

// Dispatcher fans jobs out to a bounded worker pool while serializing
// jobs that target the same registration. Two requests for different
// scripts run concurrently; two requests for the same script queue
// behind one mutex so the backend never sees overlapping calls.
type Dispatcher struct {
	runner Runner
	state  *State

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	closeMu sync.Mutex
	closed  bool

	group  *errgroup.Group
	gctx   context.Context
	events chan Event
}

// NewDispatcher sizes the pool to the smaller of GOMAXPROCS and the
// registration count; a single registration degenerates to sequential
// execution, which is the correct behavior.
func NewDispatcher(ctx context.Context, runner Runner, state *State) *Dispatcher {
	limit := runtime.GOMAXPROCS(0)
	if n := len(state.Registrations()); n > 0 && n < limit {
		limit = n
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	return &Dispatcher{
		runner: runner,
		state:  state,
		locks:  make(map[string]*sync.Mutex),
		group:  group,
		gctx:   gctx,
		events: make(chan Event, 64),
	}
}

// Events delivers one Event per submitted job.
func (d *Dispatcher) Events() <-chan Event { return d.events }

// Submit enqueues a job. It blocks while the pool is saturated, which
// backpressures the poll loop instead of growing an unbounded queue.
// After Close has begun, Submit drops the job: the request id stays
// unmarked and the next start rediscovers it.
func (d *Dispatcher) Submit(job Job) {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return
	}
	d.group.Go(func() error {
		d.run(job)
		return nil
	})
}

func (d *Dispatcher) run(job Job) {
	jobID := uuid.NewString()
	lock := d.registrationLock(job.Registration.ID)
	lock.Lock()
	defer lock.Unlock()

	processed := d.state.Processed()
	// Re-check under the lock: a sibling job for the same request may
	// have finished while this one waited.
	if processed.IsProcessed(job.DiscoveredID) {
		d.emit(jobID, job, skipped(SkipAlreadyProcessed))
		return
	}

	start := time.Now()
	outcome := d.runner.Run(d.gctx, job)
	metrics.PipelineDuration.WithLabelValues(string(outcome.Status)).Observe(time.Since(start).Seconds())
	switch outcome.Status {
	case StatusRecorded:
		processed.MarkProcessed(job.DiscoveredID)
	case StatusSkipped:
		processed.MarkSkipped(job.DiscoveredID)
	}
	// Failed jobs stay unmarked so the next poll retries them.
	d.emit(jobID, job, outcome)
}

func (d *Dispatcher) emit(jobID string, job Job, outcome Outcome) {
	d.events <- Event{
		JobID:          jobID,
		RequestID:      job.RequestID,
		RegistrationID: job.Registration.ID,
		Outcome:        outcome,
	}
}

func (d *Dispatcher) registrationLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[id] = lock
	}
	return lock
}

// Close stops accepting jobs, waits for in-flight ones and closes the
// event channel.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	d.closed = true
	d.closeMu.Unlock()
	_ = d.group.Wait() // workers never return errors
	close(d.events)
}
