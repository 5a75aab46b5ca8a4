// Package dedup decides whether a candidate unit was already committed.
//
// The knowledge store is the source of truth. The in-process cache only
// saves a store round-trip for keys this process wrote itself, and a store
// lookup failure is treated as "not a duplicate" so that an unavailable
// store costs a harmless rewrite rather than dropped data.
package dedup

import (
	"context"
	"sync"

	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
)

// Layer names the check that recognised a duplicate.
type Layer string

const (
	LayerNone  Layer = ""
	LayerBatch Layer = "batch"
	LayerCache Layer = "cache"
	LayerStore Layer = "store"
)

// ExistenceChecker is the part of the knowledge store the gate needs.
type ExistenceChecker interface {
	UnitExists(ctx context.Context, identityKey string) (bool, error)
}

// Decision is the outcome for one unit. LookupErr is set when the store
// could not be asked; Duplicate is then false.
type Decision struct {
	Duplicate bool
	Layer     Layer
	LookupErr error
}

// Batch tracks titles within one orchestrator invocation. It is not safe for
// concurrent use; each invocation owns its own.
type Batch struct {
	titles map[string]struct{}
}

func NewBatch() *Batch {
	return &Batch{titles: make(map[string]struct{})}
}

// seen records title and reports whether it was already present.
func (b *Batch) seen(title string) bool {
	if _, ok := b.titles[title]; ok {
		return true
	}
	b.titles[title] = struct{}{}
	return false
}

// Gate is shared by all workers.
type Gate struct {
	store ExistenceChecker

	mu        sync.RWMutex
	committed map[string]struct{}
}

// NewGate creates a gate over store. A nil store disables the store layer.
func NewGate(store ExistenceChecker) *Gate {
	return &Gate{
		store:     store,
		committed: make(map[string]struct{}),
	}
}

// Check runs the batch, cache and store layers in that order. It never fails.
func (g *Gate) Check(ctx context.Context, batch *Batch, unit domain.CandidateUnit) Decision {
	if batch != nil && batch.seen(unit.Title) {
		return Decision{Duplicate: true, Layer: LayerBatch}
	}

	key := unit.IdentityKey()
	if g.cached(key) {
		return Decision{Duplicate: true, Layer: LayerCache}
	}
	if g.store == nil {
		return Decision{}
	}

	exists, err := g.store.UnitExists(ctx, key)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("identity_key", key).
			Warn("Duplicate lookup failed, treating unit as new")
		return Decision{LookupErr: err}
	}
	if exists {
		g.Remember(key)
		return Decision{Duplicate: true, Layer: LayerStore}
	}
	return Decision{}
}

// Remember marks key as committed by this process.
func (g *Gate) Remember(key string) {
	g.mu.Lock()
	g.committed[key] = struct{}{}
	g.mu.Unlock()
}

func (g *Gate) cached(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.committed[key]
	return ok
}
