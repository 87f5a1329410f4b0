// Package index builds the read-only candidate index over the target
// record set: one multimap per key kind, built once per run and never
// mutated afterwards, which is what makes the match phase safe to run in
// parallel without locking.
package index

import (
	"runtime"
	"sort"
	"sync"

	"github.com/rmaia/idlink/internal/domain"
	"github.com/rmaia/idlink/internal/normalize"
)

// Target is one indexed target record: its normalized legacy id, an
// optional pre-existing canonical UUID, and the keys it is findable by.
type Target struct {
	ID   string
	UUID string
	Keys normalize.RecordKeys
}

// Index is the frozen candidate index. Lookups are safe for concurrent
// use; there is no way to mutate an Index after Build returns.
type Index struct {
	kinds   map[domain.KeyKind]map[string][]string
	targets map[string]Target
	dupes   []domain.Collision
	skipped int
	names   []string // sorted normalized names, for optional fuzzy ranking
}

// Build extracts keys from every target record and assembles the per-kind
// maps. Records whose legacy id does not survive normalization cannot be
// referenced by a match and are skipped (counted, not fatal). Key
// collisions are retained as multi-entry sets, never overwritten.
func Build(records []domain.RawRecord, n *normalize.Normalizer, fields normalize.Fields, uuidAliases []string) *Index {
	entries := extractAll(records, n, fields, uuidAliases)

	idx := &Index{
		kinds:   make(map[domain.KeyKind]map[string][]string, 5),
		targets: make(map[string]Target, len(entries)),
	}
	conflicts := make(map[string][]string)
	for _, t := range entries {
		if t.ID == "" {
			idx.skipped++
			continue
		}
		prev, ok := idx.targets[t.ID]
		if !ok {
			idx.targets[t.ID] = t
			continue
		}
		// Duplicated rows for the same legacy id are harmless unless they
		// disagree on the canonical UUID. When they do, the id is
		// surfaced as an exact_id collision with the competing UUIDs and
		// the index refuses to pick a winner.
		switch {
		case t.UUID == "" || t.UUID == prev.UUID:
			// nothing new
		case prev.UUID == "":
			prev.UUID = t.UUID
			idx.targets[t.ID] = prev
		default:
			conflicts[t.ID] = appendUUID(appendUUID(conflicts[t.ID], prev.UUID), t.UUID)
		}
	}
	for id, uuids := range conflicts {
		sort.Strings(uuids)
		idx.dupes = append(idx.dupes, domain.Collision{
			Kind:      domain.KeyExactID,
			Value:     id,
			TargetIDs: uuids,
		})
		t := idx.targets[id]
		t.UUID = ""
		idx.targets[id] = t
	}
	sort.Slice(idx.dupes, func(i, j int) bool { return idx.dupes[i].Value < idx.dupes[j].Value })

	// Each kind map is an independent write target, so the passes run
	// concurrently over the shared extracted entries.
	kindOf := map[domain.KeyKind]func(Target) string{
		domain.KeyExactID:  func(t Target) string { return t.Keys.LegacyID },
		domain.KeyDocument: func(t Target) string { return t.Keys.Document },
		domain.KeyPhone:    func(t Target) string { return t.Keys.Phone },
		domain.KeyEmail:    func(t Target) string { return t.Keys.Email },
		domain.KeyName:     func(t Target) string { return t.Keys.Name },
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for kind, keyFn := range kindOf {
		wg.Add(1)
		go func(kind domain.KeyKind, keyFn func(Target) string) {
			defer wg.Done()
			m := make(map[string][]string)
			for _, t := range entries {
				if t.ID == "" {
					continue
				}
				if v := keyFn(t); v != "" {
					m[v] = append(m[v], t.ID)
				}
			}
			// The same target can be extracted twice (duplicated rows in
			// the snapshot); a key is only a collision when it points at
			// distinct target ids.
			for k, ids := range m {
				u := uniqueIDs(ids)
				sort.Strings(u)
				m[k] = u
			}
			mu.Lock()
			idx.kinds[kind] = m
			mu.Unlock()
		}(kind, keyFn)
	}
	wg.Wait()

	for name := range idx.kinds[domain.KeyName] {
		idx.names = append(idx.names, name)
	}
	sort.Strings(idx.names)

	return idx
}

func extractAll(records []domain.RawRecord, n *normalize.Normalizer, fields normalize.Fields, uuidAliases []string) []Target {
	entries := make([]Target, len(records))
	workers := runtime.NumCPU()
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(records) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(records) {
			hi = len(records)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				keys := n.Extract(records[i], fields)
				entries[i] = Target{
					ID:   keys.LegacyID,
					UUID: firstUUID(records[i], uuidAliases),
					Keys: keys,
				}
			}
		}(lo, hi)
	}
	wg.Wait()
	return entries
}

func firstUUID(rec domain.RawRecord, aliases []string) string {
	for _, a := range aliases {
		if v, ok := rec[a]; ok {
			if domain.ValidateUUID(v) == nil {
				return v
			}
		}
	}
	return ""
}

// Lookup returns the target ids indexed under a key, empty on miss. The
// returned slice is shared and must not be modified by callers.
func (idx *Index) Lookup(kind domain.KeyKind, value string) []string {
	if value == "" {
		return nil
	}
	return idx.kinds[kind][value]
}

// UUID returns the pre-existing canonical UUID carried by a target record,
// or "" when the target has none or when duplicated rows disagree on it.
func (idx *Index) UUID(targetID string) string {
	return idx.targets[targetID].UUID
}

// DuplicateIDs returns the legacy ids claimed by target rows carrying
// conflicting pre-existing UUIDs, sorted by id. Each collision lists the
// competing UUIDs; UUID() returns "" for these ids.
func (idx *Index) DuplicateIDs() []domain.Collision {
	return idx.dupes
}

// Len returns the number of indexed targets.
func (idx *Index) Len() int {
	return len(idx.targets)
}

// Skipped returns how many target records had no usable legacy id.
func (idx *Index) Skipped() int {
	return idx.skipped
}

// Names returns all indexed normalized names in sorted order.
func (idx *Index) Names() []string {
	return idx.names
}

// Collisions returns every key that resolves to more than one target id,
// plus any conflicting-UUID duplicates, sorted by kind then value for
// deterministic reporting.
func (idx *Index) Collisions() []domain.Collision {
	out := append([]domain.Collision(nil), idx.dupes...)
	for kind, m := range idx.kinds {
		for value, ids := range m {
			if len(uniqueIDs(ids)) > 1 {
				out = append(out, domain.Collision{Kind: kind, Value: value, TargetIDs: uniqueIDs(ids)})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func appendUUID(uuids []string, u string) []string {
	for _, have := range uuids {
		if have == u {
			return uuids
		}
	}
	return append(uuids, u)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
