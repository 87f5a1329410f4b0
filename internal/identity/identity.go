// Package identity turns match results into canonical identity
// assignments. The invariants live here: each legacy id maps to exactly
// one UUID, and an assignment made in a prior run is authoritative and is
// never overwritten by anything this run discovers.
package identity

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmaia/idlink/internal/domain"
)

// Table is the in-memory identity store for a run: prior assignments
// loaded up front plus assignments made during the run. Check-then-insert
// is atomic per call, so assignment may run from several goroutines.
type Table struct {
	mu      sync.Mutex
	entries map[string]domain.Identity
	dirty   []domain.Identity
}

// NewTable creates a Table seeded with prior legacy-id -> UUID assignments.
func NewTable(prior map[string]string) *Table {
	entries := make(map[string]domain.Identity, len(prior))
	for legacyID, id := range prior {
		entries[legacyID] = domain.Identity{LegacyID: legacyID, UUID: id, Origin: domain.OriginExisting}
	}
	return &Table{entries: entries}
}

// Get returns the identity assigned to a legacy id, if any.
func (t *Table) Get(legacyID string) (domain.Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.entries[legacyID]
	return id, ok
}

// getOrPut atomically returns the existing identity for legacyID or, when
// absent, inserts the candidate. A caller that loses the race gets the
// winner back with origin EXISTING, exactly like a prior-run hit.
func (t *Table) getOrPut(candidate domain.Identity) domain.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[candidate.LegacyID]; ok {
		existing.Origin = domain.OriginExisting
		return existing
	}
	t.entries[candidate.LegacyID] = candidate
	t.dirty = append(t.dirty, candidate)
	return candidate
}

// Dirty returns the assignments created during this run, in assignment
// order. Prior-run entries are not included; flushing only these keeps the
// store append-only.
func (t *Table) Dirty() []domain.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Identity, len(t.dirty))
	copy(out, t.dirty)
	return out
}

// Snapshot returns the complete legacy-id -> UUID mapping.
func (t *Table) Snapshot() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.entries))
	for legacyID, id := range t.entries {
		out[legacyID] = id.UUID
	}
	return out
}

// Len returns the number of assigned legacy ids.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Resolver maps a matched target id to its existing canonical UUID, or ""
// when the target has none yet.
type Resolver func(targetID string) string

// Assigner applies the assignment policy: prior store entry wins, then a
// matched target's existing UUID is reused, then a fresh UUID is minted.
type Assigner struct {
	table   *Table
	resolve Resolver
	now     func() time.Time
	mint    func() string
}

// NewAssigner creates an Assigner over the run's identity table.
func NewAssigner(table *Table, resolve Resolver) *Assigner {
	return &Assigner{
		table:   table,
		resolve: resolve,
		now:     time.Now,
		mint:    uuid.NewString,
	}
}

// Assign produces the canonical identity for a match result's source
// record. The ordering here is what makes re-runs idempotent: the store
// is consulted before the match result is even looked at.
func (a *Assigner) Assign(res domain.MatchResult) (domain.Identity, error) {
	if res.SourceID == "" {
		return domain.Identity{}, fmt.Errorf("cannot assign identity: source record has no legacy id")
	}

	if existing, ok := a.table.Get(res.SourceID); ok {
		existing.Origin = domain.OriginExisting
		return existing, nil
	}

	candidate := domain.Identity{
		LegacyID:   res.SourceID,
		Origin:     domain.OriginMinted,
		AssignedAt: a.now().UTC(),
	}
	if res.Matched() {
		if existingUUID := a.resolve(res.TargetID); existingUUID != "" {
			candidate.UUID = existingUUID
			candidate.Origin = domain.OriginReused
		}
	}
	if candidate.UUID == "" {
		candidate.UUID = a.mint()
	}
	return a.table.getOrPut(candidate), nil
}
