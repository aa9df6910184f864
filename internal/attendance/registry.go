package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"markr/internal/apperr"
	"markr/internal/logger"
)

type entry struct {
	mu      sync.Mutex
	wf      *Workflow
	deleted bool
}

// Registry owns the live workflows. Each workflow is guarded by its own
// mutex so merges, overrides and confirmation never interleave.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	store   SnapshotStore
	log     *zap.Logger
	now     func() time.Time
}

// NewRegistry creates a registry. store may be nil for memory-only mode.
func NewRegistry(store SnapshotStore, log *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		store:   store,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// Len returns the number of workflows held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) add(ctx context.Context, wf *Workflow) {
	r.mu.Lock()
	r.entries[wf.ID] = &entry{wf: wf}
	r.mu.Unlock()
	r.persist(ctx, wf)
}

func (r *Registry) lookup(ctx context.Context, id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		return e, nil
	}
	if r.store == nil {
		return nil, apperr.NotFound("workflow not found")
	}

	wf, err := r.store.Load(ctx, id)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, apperr.NotFound("workflow not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInternal.Code, apperr.ErrInternal.Status, "failed to load workflow")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[id]; ok {
		return existing, nil
	}
	e = &entry{wf: wf}
	r.entries[id] = e
	return e, nil
}

// read runs fn with the workflow locked and does not persist.
func (r *Registry) read(ctx context.Context, id string, fn func(*Workflow) error) error {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return apperr.NotFound("workflow not found")
	}
	return fn(e.wf)
}

// update runs fn with the workflow locked and persists it when fn succeeds.
func (r *Registry) update(ctx context.Context, id string, fn func(*Workflow) error) error {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return apperr.NotFound("workflow not found")
	}
	if err := fn(e.wf); err != nil {
		return err
	}
	e.wf.UpdatedAt = r.now().UTC()
	r.persist(ctx, e.wf)
	return nil
}

// remove deletes a workflow after check approves it under the workflow lock.
func (r *Registry) remove(ctx context.Context, id string, check func(*Workflow) error) error {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return apperr.NotFound("workflow not found")
	}
	if check != nil {
		if err := check(e.wf); err != nil {
			return err
		}
	}
	e.deleted = true

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			r.log.Warn("workflow snapshot delete failed", zap.String("workflow_id", id), zap.Error(err))
		}
	}
	return nil
}

// Sweep drops idle workflows not touched within ttl from memory. Snapshots
// are left to expire on their own.
func (r *Registry) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().UTC().Add(-ttl)

	r.mu.Lock()
	candidates := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		candidates[id] = e
	}
	r.mu.Unlock()

	evicted := 0
	for id, e := range candidates {
		e.mu.Lock()
		stale := !e.deleted && !e.wf.Busy() && e.wf.UpdatedAt.Before(cutoff)
		if stale {
			e.deleted = true
			r.mu.Lock()
			delete(r.entries, id)
			r.mu.Unlock()
			evicted++
		}
		e.mu.Unlock()
	}
	if evicted > 0 {
		r.log.Info("idle workflows evicted", zap.Int("count", evicted))
	}
	return evicted
}

func (r *Registry) persist(ctx context.Context, wf *Workflow) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, wf); err != nil {
		r.log.Warn("workflow snapshot save failed", zap.String("workflow_id", wf.ID), zap.Error(err))
	}
}
