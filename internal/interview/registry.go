package interview

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/intervu-app/intervu/models"
)

// Registry holds the engines of interviews currently being driven by a
// user. Entries expire after the configured TTL of inactivity; completed
// sessions live in the persistent store, not here.
type Registry struct {
	ttl       time.Duration
	snapshots SnapshotStore
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]*registryEntry

	now func() time.Time
}

type registryEntry struct {
	engine    *Engine
	expiresAt time.Time
}

// NewRegistry creates a registry. snapshots may be nil to disable
// in-progress persistence.
func NewRegistry(ttl time.Duration, snapshots SnapshotStore, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ttl:       ttl,
		snapshots: snapshots,
		logger:    logger,
		entries:   make(map[string]*registryEntry),
		now:       time.Now,
	}
}

// Put registers an engine, wires its update hook to the snapshot store
// and writes an initial snapshot, so transitions that happened before
// registration (the first question) are recoverable too. Snapshot
// failures are logged, never fatal.
func (r *Registry) Put(eng *Engine) {
	r.wireSnapshots(eng)
	r.mu.Lock()
	r.entries[eng.ID()] = &registryEntry{engine: eng, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	r.saveSnapshot(eng.Session())
}

// GetOrPut returns the engine already registered under eng's session id,
// refreshing its TTL, or registers eng when there is none. Two requests
// reviving the same snapshot concurrently end up sharing one engine.
func (r *Registry) GetOrPut(eng *Engine) *Engine {
	r.mu.Lock()
	if ent, ok := r.entries[eng.ID()]; ok && !r.now().After(ent.expiresAt) {
		ent.expiresAt = r.now().Add(r.ttl)
		r.mu.Unlock()
		return ent.engine
	}
	r.wireSnapshots(eng)
	r.entries[eng.ID()] = &registryEntry{engine: eng, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	r.saveSnapshot(eng.Session())
	return eng
}

func (r *Registry) wireSnapshots(eng *Engine) {
	if r.snapshots == nil {
		return
	}
	eng.onUpdate = func(s models.Session) { r.saveSnapshot(s) }
}

func (r *Registry) saveSnapshot(s models.Session) {
	if r.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.snapshots.Save(ctx, s); err != nil {
		r.logger.Warn("session snapshot failed",
			zap.String("session_id", s.ID), zap.Error(err))
	}
}

// Get returns the active engine for id, refreshing its TTL.
func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[id]
	if !ok || r.now().After(ent.expiresAt) {
		delete(r.entries, id)
		return nil, ErrSessionNotFound
	}
	ent.expiresAt = r.now().Add(r.ttl)
	return ent.engine, nil
}

// Remove drops an engine, typically after its session has been persisted,
// and clears any snapshot.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()

	if r.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := r.snapshots.Delete(ctx, id); err != nil {
			r.logger.Warn("snapshot delete failed", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// Sweep evicts expired entries. Called periodically by the server.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := r.now()
	for id, ent := range r.entries {
		if now.After(ent.expiresAt) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
