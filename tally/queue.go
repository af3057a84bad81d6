package tally

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chainvote-backend/models"
	"chainvote-backend/pkg/log"
)

var (
	// ErrQueueFull indicates the increment queue cannot accept more requests
	ErrQueueFull = errors.New("tally queue is full")
	// ErrQueueClosed indicates the queue was stopped
	ErrQueueClosed = errors.New("tally queue is closed")
)

// Queue serializes the increments of one process through a single worker
type Queue struct {
	store      *Store
	requestCh  chan *IncrementRequest
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
}

var _ Tally = (*Queue)(nil)

// IncrementRequest is a queued increment
type IncrementRequest struct {
	Ctx       context.Context
	Candidate string
	ResultCh  chan<- *Result
}

// Result is the outcome of a queued increment
type Result struct {
	Candidate string
	Total     int
	Err       error
	Duration  time.Duration
}

// NewQueue creates a queue in front of store
func NewQueue(store *Store, queueSize int) *Queue {
	if queueSize <= 0 {
		queueSize = DefaultConfig.QueueSize
	}
	return &Queue{
		store:      store,
		requestCh:  make(chan *IncrementRequest, queueSize),
		shutdownCh: make(chan struct{}),
	}
}

// Start launches the worker
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop shuts the worker down and fails requests still queued
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.shutdownCh)
	q.mu.Unlock()
	q.wg.Wait()

	for {
		select {
		case req := <-q.requestCh:
			req.ResultCh <- &Result{Candidate: req.Candidate, Err: ErrQueueClosed}
			close(req.ResultCh)
		default:
			return
		}
	}
}

// QueueIncrement enqueues an increment without blocking
func (q *Queue) QueueIncrement(ctx context.Context, candidate string) <-chan *Result {
	resultCh := make(chan *Result, 1)
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		resultCh <- &Result{Candidate: candidate, Err: ErrQueueClosed}
		close(resultCh)
		return resultCh
	}
	select {
	case q.requestCh <- &IncrementRequest{Ctx: ctx, Candidate: candidate, ResultCh: resultCh}:
	default:
		log.Logger("tally").Warn("tally queue is full", zap.String("candidate", candidate))
		resultCh <- &Result{Candidate: candidate, Err: ErrQueueFull}
		close(resultCh)
	}
	return resultCh
}

// Increment enqueues an increment and waits for its result. A request whose
// context is done before the worker reaches it is dropped; once the cycle
// starts it runs to completion and its result is returned.
func (q *Queue) Increment(ctx context.Context, candidate string) (int, error) {
	res := <-q.QueueIncrement(ctx, candidate)
	return res.Total, res.Err
}

// Get reads the tally directly from the store
func (q *Queue) Get(ctx context.Context) (models.VoteTally, error) {
	return q.store.Get(ctx)
}

// Store returns the underlying tally store
func (q *Queue) Store() *Store {
	return q.store
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.shutdownCh:
			return
		case req := <-q.requestCh:
			start := time.Now()
			var total int
			err := req.Ctx.Err()
			if err == nil {
				total, err = q.store.Increment(context.WithoutCancel(req.Ctx), req.Candidate)
			}
			req.ResultCh <- &Result{
				Candidate: req.Candidate,
				Total:     total,
				Err:       err,
				Duration:  time.Since(start),
			}
			close(req.ResultCh)
		}
	}
}
