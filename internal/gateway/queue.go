package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/agentdesk/internal/types"
)

// ErrQueueFull is returned when a session lane cannot take another run.
var ErrQueueFull = errors.New("queue full")

// ErrQueueStopped is returned by Enqueue before Start or after Stop.
var ErrQueueStopped = errors.New("queue stopped")

const laneSize = 100

// Queue manages per-session lanes with a global concurrency semaphore.
// Each session gets its own FIFO channel (lane) so that turns within a
// session are answered in order, while the semaphore limits the total number
// of concurrent run processors across all sessions.
type Queue struct {
	lanes     map[types.SessionID]chan *Run
	semaphore *semaphore.Weighted
	processor func(context.Context, *Run) error
	pending   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all session lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[types.SessionID]chan *Run),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to the session's lane, creating the lane (and its
// goroutine) on first use.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return ErrQueueStopped
	}

	lane, exists := q.lanes[run.SessionID]
	if !exists {
		lane = make(chan *Run, laneSize)
		q.lanes[run.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(q.ctx, lane)
	}

	q.pending.Add(1)
	select {
	case lane <- run:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("%w for session %s", ErrQueueFull, run.SessionID)
	}
}

// Drop closes the lane of a session that no longer exists. Runs already in
// the lane are still drained.
func (q *Queue) Drop(sessionID types.SessionID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if lane, ok := q.lanes[sessionID]; ok {
		close(lane)
		delete(q.lanes, sessionID)
	}
}

// Lanes returns the number of open session lanes.
func (q *Queue) Lanes() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.lanes)
}

// processLane drains a single session lane, acquiring a semaphore slot
// before running the processor synchronously.
func (q *Queue) processLane(ctx context.Context, lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(ctx, 1); err != nil {
				q.pending.Add(-1)
				return
			}
			q.process(ctx, run)
			q.semaphore.Release(1)
			q.pending.Add(-1)
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, run *Run) {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()
	if processor == nil {
		return
	}

	started := time.Now()
	run.StartedAt = &started
	run.Status = RunStatusRunning
	err := processor(ctx, run)
	ended := time.Now()
	run.EndedAt = &ended
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err
		slog.Error("run failed", "run_id", string(run.ID), "session_id", string(run.SessionID), "error", err)
		return
	}
	run.Status = RunStatusComplete
}

// WaitIdle blocks until no runs are queued or being processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn func(context.Context, *Run) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = fn
}
