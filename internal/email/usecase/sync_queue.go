package usecase

import (
	"context"
	"errors"
	"sync"

	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/gmail"
	"email-analyzer-backend/pkg/logger"
)

// SyncJob asks for one user's mailbox to be synced in the background.
type SyncJob struct {
	UserID string
	Mode   gmail.QueryMode
}

// SyncQueue runs background syncs on a single worker. A user already waiting in
// the queue is not queued again.
type SyncQueue struct {
	syncer   Syncer
	jobQueue chan SyncJob
	pending  map[string]struct{}
	mu       sync.Mutex
	workerWg sync.WaitGroup
	started  bool
	stopped  bool
}

// NewSyncQueue creates a queue holding up to capacity waiting users.
func NewSyncQueue(syncer Syncer, capacity int) *SyncQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &SyncQueue{
		syncer:   syncer,
		jobQueue: make(chan SyncJob, capacity),
		pending:  make(map[string]struct{}),
	}
}

// Start launches the worker. It exits when ctx is done or Stop is called.
func (q *SyncQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return
	}
	q.started = true
	q.workerWg.Add(1)
	go q.worker(ctx)
	logger.For("sync-queue").Info("worker started")
}

// Stop closes the queue and waits for the running job.
func (q *SyncQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobQueue)
	q.mu.Unlock()

	q.workerWg.Wait()
	logger.For("sync-queue").Info("worker stopped")
}

func (q *SyncQueue) worker(ctx context.Context) {
	defer q.workerWg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobQueue:
			if !ok {
				return
			}
			q.done(job.UserID)
			q.process(ctx, job)
		}
	}
}

func (q *SyncQueue) process(ctx context.Context, job SyncJob) {
	log := logger.For("sync-queue").WithField("user_id", job.UserID)

	result, err := q.syncer.SyncUser(ctx, job.UserID, job.Mode)
	switch {
	case err == nil:
		log.WithField("processed", result.Processed).Info("background sync finished")
	case errors.Is(err, emaildomain.ErrSyncInProgress):
		log.Debug("sync already running")
	default:
		log.WithError(err).Warn("background sync failed")
	}
}

// Enqueue adds a job without blocking. It reports false when the queue is full or stopped.
// A user that is already waiting counts as queued.
func (q *SyncQueue) Enqueue(job SyncJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}
	if _, waiting := q.pending[job.UserID]; waiting {
		return true
	}

	select {
	case q.jobQueue <- job:
		q.pending[job.UserID] = struct{}{}
		return true
	default:
		return false
	}
}

// Pending is the number of users waiting.
func (q *SyncQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *SyncQueue) done(userID string) {
	q.mu.Lock()
	delete(q.pending, userID)
	q.mu.Unlock()
}
