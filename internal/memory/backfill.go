package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sitewright/sitewright/internal/embedding"
	"github.com/sitewright/sitewright/pkg/models"
)

const (
	// backfillQueueSize bounds the in-flight backfill queue. Enqueue never
	// blocks; overflow goes straight to the dead-letter table for a later
	// sweep.
	backfillQueueSize = 64
	// backfillMaxAttempts is how many times a job is retried before it is
	// parked in the dead-letter table.
	backfillMaxAttempts = 3
	// backfillRetryDelay spaces retry attempts.
	backfillRetryDelay = 2 * time.Second
)

// backfillJob is one outcome awaiting an embedding.
type backfillJob struct {
	outcomeID string
	text      string
	attempts  int
}

// Backfiller generates embeddings for stored outcomes in the background.
// Outcome writes never wait on it; an embedding failure degrades retrieval
// to keyword search, nothing more.
type Backfiller struct {
	store      *Store
	engine     embedding.Engine
	jobs       chan backfillJob
	retryDelay time.Duration
	wg         sync.WaitGroup

	mu        sync.Mutex
	processed int
	failed    int
}

// NewBackfiller creates a backfill worker over the given store and engine.
// A nil engine yields a no-op backfiller.
func NewBackfiller(store *Store, engine embedding.Engine) *Backfiller {
	return &Backfiller{
		store:      store,
		engine:     engine,
		jobs:       make(chan backfillJob, backfillQueueSize),
		retryDelay: backfillRetryDelay,
	}
}

// Start launches the worker goroutine. It runs until ctx is cancelled;
// jobs still queued at that point are parked in the dead-letter table so
// nothing is silently lost across a shutdown.
func (b *Backfiller) Start(ctx context.Context) {
	if b.engine == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				b.drain()
				return
			case job := <-b.jobs:
				b.process(ctx, job)
			}
		}
	}()
}

// drain parks whatever is still queued so a later requeue sweep can pick
// it up.
func (b *Backfiller) drain() {
	for {
		select {
		case job := <-b.jobs:
			b.park(job.outcomeID, job.attempts, "shutdown before embedding")
		default:
			return
		}
	}
}

// Wait blocks until the worker goroutine has exited.
func (b *Backfiller) Wait() {
	b.wg.Wait()
}

// Enqueue submits an outcome for embedding generation. Best effort: with
// no engine the job is dropped, and a full queue parks the job in the
// dead-letter table instead of blocking the caller.
func (b *Backfiller) Enqueue(outcome *models.TaskOutcome) {
	if b.engine == nil || len(outcome.Embedding) > 0 {
		return
	}
	job := backfillJob{outcomeID: outcome.ID, text: outcome.TaskSummary}
	select {
	case b.jobs <- job:
	default:
		b.store.RecordDeadLetter(job.outcomeID, 0, "backfill queue full")
	}
}

// RequeueDeadLetters moves parked jobs back onto the queue, stopping at
// the first job that no longer fits.
func (b *Backfiller) RequeueDeadLetters() (int, error) {
	ids, err := b.store.DeadLetterIDs()
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, id := range ids {
		outcome, err := b.store.GetOutcome(id)
		if err != nil {
			continue
		}
		job := backfillJob{outcomeID: outcome.ID, text: outcome.TaskSummary}
		select {
		case b.jobs <- job:
			b.store.ClearDeadLetter(id)
			requeued++
		default:
			return requeued, nil
		}
	}
	return requeued, nil
}

// Stats returns how many jobs completed and how many were dead-lettered.
func (b *Backfiller) Stats() (processed, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed, b.failed
}

func (b *Backfiller) process(ctx context.Context, job backfillJob) {
	var lastErr error
	for attempt := job.attempts; attempt < backfillMaxAttempts; attempt++ {
		vec, err := b.engine.Embed(ctx, job.text)
		if err == nil {
			if err := b.store.UpdateEmbedding(job.outcomeID, vec); err != nil {
				lastErr = err
				break
			}
			b.mu.Lock()
			b.processed++
			b.mu.Unlock()
			return
		}
		lastErr = err

		select {
		case <-ctx.Done():
			b.park(job.outcomeID, attempt+1,
				models.NewWorkerError(models.ErrEmbedding, "", lastErr).Error())
			return
		case <-time.After(b.retryDelay):
		}
	}

	b.park(job.outcomeID, backfillMaxAttempts,
		models.NewWorkerError(models.ErrEmbedding, "", lastErr).Error())
}

// park dead-letters a job and counts it as failed.
func (b *Backfiller) park(outcomeID string, attempts int, reason string) {
	b.mu.Lock()
	b.failed++
	b.mu.Unlock()
	b.store.RecordDeadLetter(outcomeID, attempts, reason)
}
