// Package jobqueue runs a bounded worker pool over submitted jobs and
// caches their terminal results, keyed by job id, for later retrieval and
// for Idempotency-Key deduplication on submission.
package jobqueue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/MorphGrid/Framework/internal/cacher"
	"github.com/MorphGrid/Framework/internal/observability"
)

var (
	ErrQueueFull    = errors.New("jobqueue: queue full")
	ErrQueueStopped = errors.New("jobqueue: stopped")
	ErrJobNotFound  = errors.New("jobqueue: job not found")
)

// Status is the lifecycle state of a submitted job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ResultTTL is how long a terminal job result stays retrievable after
// completion.
const ResultTTL = 1 * time.Hour

// Handler executes one job's payload and returns its output or an error.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Result is the terminal (or in-flight) outcome of one job, as returned by
// GET /v1/jobs/:id.
type Result struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Output     []byte    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type job struct {
	id      string
	payload []byte
}

// Queue is a bounded-channel worker pool. Construct with New, start with
// Run (blocks until ctx is canceled), submit with Submit.
type Queue struct {
	handler Handler
	results cacher.Cacher[Result]

	jobs    chan job
	workers int

	stopped chan struct{}
}

// New constructs a Queue with the given worker count and result cache
// (typically cacher.NewMemoryCacher[Result] or cacher.NewRedisCacher[Result]).
func New(workers int, handler Handler, results cacher.Cacher[Result]) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		handler: handler,
		results: results,
		jobs:    make(chan job, workers*4),
		workers: workers,
		stopped: make(chan struct{}),
	}
}

// Run starts the worker pool and blocks until ctx is canceled, at which
// point every worker finishes its in-flight job and exits.
func (q *Queue) Run(ctx context.Context) error {
	defer close(q.stopped)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			q.worker(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(ctx, j)
		}
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	started := time.Now()
	out, err := q.handler(ctx, j.payload)
	result := Result{ID: j.id, FinishedAt: time.Now()}
	outcome := "success"
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		outcome = "failure"
		log.Warn().Str("job", j.id).Err(err).Msg("jobqueue.job failed")
	} else {
		result.Status = StatusSucceeded
		result.Output = out
	}
	observability.RecordJobDuration(outcome, time.Since(started))
	if putErr := q.results.Put(context.Background(), j.id, result, ResultTTL); putErr != nil {
		log.Error().Str("job", j.id).Err(putErr).Msg("jobqueue.store result failed")
	}
}

// Submit enqueues payload under idempotencyKey (empty means no dedup) and
// returns the job id to poll via Result. If a result already exists for
// idempotencyKey, the existing job id is returned without re-enqueuing.
func (q *Queue) Submit(ctx context.Context, idempotencyKey string, payload []byte) (string, error) {
	if idempotencyKey != "" {
		freshlyEnqueued := false
		existing, err := q.results.GetOrFetch(ctx, idempotencyKey, ResultTTL, func(context.Context) (Result, error) {
			id, err := q.enqueue(ctx, payload)
			if err != nil {
				return Result{}, err
			}
			freshlyEnqueued = true
			return Result{ID: id, Status: StatusQueued, EnqueuedAt: time.Now()}, nil
		})
		if err != nil {
			observability.RecordJobEnqueued("rejected")
			return "", err
		}
		if freshlyEnqueued {
			observability.RecordJobEnqueued("accepted")
		} else {
			observability.RecordJobEnqueued("duplicate")
		}
		return existing.ID, nil
	}
	id, err := q.enqueue(ctx, payload)
	if err != nil {
		observability.RecordJobEnqueued("rejected")
		return "", err
	}
	observability.RecordJobEnqueued("accepted")
	return id, nil
}

func (q *Queue) enqueue(ctx context.Context, payload []byte) (string, error) {
	id, err := newJobID()
	if err != nil {
		return "", err
	}
	pending := Result{ID: id, Status: StatusQueued, EnqueuedAt: time.Now()}
	if err := q.results.Put(ctx, id, pending, ResultTTL); err != nil {
		return "", err
	}
	select {
	case q.jobs <- job{id: id, payload: payload}:
		return id, nil
	case <-q.stopped:
		return "", ErrQueueStopped
	default:
	}
	select {
	case q.jobs <- job{id: id, payload: payload}:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
		return "", ErrQueueFull
	}
}

// Result returns the current status/output for id.
func (q *Queue) Result(ctx context.Context, id string) (Result, error) {
	return q.results.GetOrFetch(ctx, id, 0, func(context.Context) (Result, error) {
		return Result{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	})
}

func newJobID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
