// Package queue is the durable offline mutation queue. Mutations issued
// while the client is offline are persisted to a local bolt file and
// re-submitted in FIFO order once connectivity returns. The queue survives
// process restarts.
package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.etcd.io/bbolt"

	"github.com/internhub/internhub/internal/models"
)

var bucketPending = []byte("pending_mutations")

// ErrQueueClosed is returned for operations on a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// errFlushInterrupted marks a send that was halted by shutdown or an
// offline transition rather than resolved; the mutation stays at the queue
// head and is replayed on the next online transition.
var errFlushInterrupted = errors.New("flush interrupted")

// Retry policy for a single queued mutation. Transport failures back off
// exponentially; a rejection from the server is final immediately.
const (
	retryInitialInterval = 500 * time.Millisecond
	retryMultiplier      = 2.0
	retryMaxInterval     = 30 * time.Second
	retryMaxAttempts     = 5
)

// Sender submits one pending mutation to the server. A returned error that
// reports Retryable() == false (or implements no such method and is a
// *api.MutationError rejection) stops the retry loop; everything else is
// treated as transient.
type Sender interface {
	Send(ctx context.Context, mutation *models.PendingMutation) error
}

// PermanentFailureFunc is invoked when a queued mutation is dropped, either
// because the server rejected it or because the retry budget ran out.
type PermanentFailureFunc func(mutation *models.PendingMutation, err error)

// Queue is the durable FIFO of unsent mutations.
type Queue struct {
	db     *bbolt.DB
	sender Sender
	logger *slog.Logger

	onPermanentFailure PermanentFailureFunc

	retryInitial time.Duration
	retryMax     time.Duration
	maxAttempts  int

	mu     sync.Mutex
	online bool
	halt   chan struct{} // closed on the online→offline transition

	flushCh   chan struct{}
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New opens (or creates) the queue database at dbPath and starts the flush
// worker. The queue starts offline; call SetOnline once connectivity is
// established.
func New(dbPath string, sender Sender, onPermanentFailure PermanentFailureFunc, logger *slog.Logger) (*Queue, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPending)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create queue bucket: %w", err)
	}

	q := &Queue{
		db:                 db,
		sender:             sender,
		logger:             logger,
		onPermanentFailure: onPermanentFailure,
		retryInitial:       retryInitialInterval,
		retryMax:           retryMaxInterval,
		maxAttempts:        retryMaxAttempts,
		halt:               make(chan struct{}),
		flushCh:            make(chan struct{}, 1),
		quit:               make(chan struct{}),
	}

	q.wg.Add(1)
	go q.worker()

	return q, nil
}

// Close stops the worker and closes the database. Queued mutations stay on
// disk for the next run.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.quit)
	})
	q.wg.Wait()
	return q.db.Close()
}

// Enqueue persists a mutation. If the queue is online a flush is triggered
// immediately; otherwise the mutation waits for the next online transition.
func (q *Queue) Enqueue(mutation *models.PendingMutation) error {
	select {
	case <-q.quit:
		return ErrQueueClosed
	default:
	}

	record := mutation.Clone()
	if record.EnqueuedAt.IsZero() {
		record.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}

	err = q.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		return bucket.Put(seqKey(seq), data)
	})
	if err != nil {
		return fmt.Errorf("failed to persist mutation: %w", err)
	}

	q.logger.Debug("mutation enqueued",
		"local_id", record.LocalID,
		"operation", record.Operation,
		"entity_type", record.EntityType)

	if q.isOnline() {
		q.triggerFlush()
	}

	return nil
}

// SetOnline records the connectivity state. Going online triggers a flush;
// going offline interrupts the in-flight retry loop and leaves the head
// mutation queued for the next online transition.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	if online && !was {
		q.halt = make(chan struct{})
	}
	if !online && was {
		close(q.halt)
	}
	q.mu.Unlock()

	if online && !was {
		q.logger.Info("queue online, flushing")
		q.triggerFlush()
	}
}

// Len reports how many mutations are waiting.
func (q *Queue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPending).Stats().KeyN
		return nil
	})
	return n, err
}

// Pending returns the queued mutations in submission order.
func (q *Queue) Pending() ([]*models.PendingMutation, error) {
	var out []*models.PendingMutation

	err := q.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(_, v []byte) error {
			var m models.PendingMutation
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("failed to decode queued mutation: %w", err)
			}
			out = append(out, &m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (q *Queue) isOnline() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// haltCh returns the channel closed by the next offline transition.
func (q *Queue) haltCh() chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.halt
}

func (q *Queue) triggerFlush() {
	select {
	case q.flushCh <- struct{}{}:
	default:
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.flushCh:
			q.flush()
		case <-q.quit:
			return
		}
	}
}

// flush drains the queue head-first. Order is strict: a mutation is only
// attempted after every earlier one has been resolved, so dependent
// operations (create then update) replay correctly.
func (q *Queue) flush() {
	for q.isOnline() {
		select {
		case <-q.quit:
			return
		default:
		}

		key, mutation, err := q.head()
		if err != nil {
			q.logger.Error("failed to read queue head", "error", err)
			return
		}
		if mutation == nil {
			return
		}

		sendErr := q.sendWithRetry(mutation)

		// An offline transition or shutdown halts flushing without
		// consuming the queue; the mutation replays later.
		if errors.Is(sendErr, errFlushInterrupted) {
			return
		}

		if err := q.remove(key); err != nil {
			q.logger.Error("failed to remove queued mutation", "error", err)
			return
		}

		if sendErr != nil {
			q.logger.Warn("queued mutation rejected",
				"local_id", mutation.LocalID,
				"operation", mutation.Operation,
				"error", sendErr)
			if q.onPermanentFailure != nil {
				q.onPermanentFailure(mutation, sendErr)
			}
		}
	}
}

// sendWithRetry submits one mutation with exponential backoff. A permanent
// rejection is returned immediately; nil means confirmed. Interruption by
// shutdown or an offline transition is reported as errFlushInterrupted so
// the caller keeps the mutation.
func (q *Queue) sendWithRetry(mutation *models.PendingMutation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = q.retryInitial
	policy.Multiplier = retryMultiplier
	policy.MaxInterval = q.retryMax
	policy.RandomizationFactor = 0.2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-q.quit:
			cancel()
		case <-q.haltCh():
			cancel()
		case <-ctx.Done():
		}
	}()

	attempts := 0
	operation := func() error {
		attempts++
		mutation.AttemptCount = attempts

		err := q.sender.Send(ctx, mutation)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(q.maxAttempts-1)), ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || (isRetryable(err) && !q.isOnline()) {
		return errFlushInterrupted
	}
	return err
}

// head returns the oldest queued mutation, or nil when the queue is empty.
func (q *Queue) head() ([]byte, *models.PendingMutation, error) {
	var (
		key      []byte
		mutation *models.PendingMutation
	)

	err := q.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(bucketPending).Cursor().First()
		if k == nil {
			return nil
		}

		var m models.PendingMutation
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("failed to decode queued mutation: %w", err)
		}

		key = append([]byte(nil), k...)
		mutation = &m
		return nil
	})

	return key, mutation, err
}

func (q *Queue) remove(key []byte) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Delete(key)
	})
}

// isRetryable classifies a send failure. Errors carrying a Retryable()
// method (api.MutationError) speak for themselves; anything else is assumed
// to be transport-level and transient.
func isRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
