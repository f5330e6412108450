package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Recorder appends audit entries asynchronously through a single consumer
// goroutine, which preserves enqueue order across all actors. A full queue
// applies backpressure on the producer instead of dropping entries.
//
// Seq continues from the highest value already in the store, so ordering
// and the seq cursor survive process restarts. The table has a single
// writing process at a time.
type Recorder struct {
	repo   RepositoryAPI
	logger *slog.Logger
	queue  chan *Entry
	seq    atomic.Uint64
	wg     sync.WaitGroup

	mu     sync.RWMutex // guards closed together with sends on queue
	closed bool
}

func NewRecorder(repo RepositoryAPI, logger *slog.Logger, queueSize int) (*Recorder, error) {
	if queueSize <= 0 {
		queueSize = 256
	}
	last, err := repo.MaxSeq()
	if err != nil {
		return nil, fmt.Errorf("failed to load last audit sequence: %w", err)
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *Entry, queueSize),
	}
	r.seq.Store(last)
	r.wg.Add(1)
	go r.consume()
	return r, nil
}

// Record enqueues an audit entry for the completed action. An aborted
// request context means the action never completed, so nothing is written.
func (r *Recorder) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string) {
	if ctx != nil && ctx.Err() != nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Error("audit recorder closed, entry dropped",
			"action", action, "actor_effective_id", actor.EffectiveUserID)
		return
	}

	entry := &Entry{
		ID:                   uuid.NewString(),
		ActorEffectiveID:     actor.EffectiveUserID,
		OriginalUserID:       actor.OriginalUserID,
		IsImpersonated:       actor.IsImpersonated,
		ImpersonationContext: actor.Context,
		Action:               action,
		ResourceType:         resourceType,
		ResourceID:           resourceID,
		Seq:                  r.seq.Add(1),
		CreatedAt:            time.Now().UTC(),
	}

	r.queue <- entry
}

func (r *Recorder) consume() {
	defer r.wg.Done()
	for entry := range r.queue {
		if err := r.repo.Append(entry); err != nil {
			// fail-open: the primary action already succeeded
			r.logger.Error("audit write failed",
				"error", err,
				"action", entry.Action,
				"actor_effective_id", entry.ActorEffectiveID,
				"seq", entry.Seq)
		}
	}
}

// Close drains the queue and stops the consumer. Called on server shutdown.
// It waits out any Record call in flight before closing the queue, so a
// request racing shutdown cannot send on a closed channel.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

// Service answers operator queries over the audit trail.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(actorID *int64, afterSeq uint64, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(actorID, afterSeq, limit)
}
