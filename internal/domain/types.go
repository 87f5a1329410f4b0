// Package domain defines the core record-linkage types shared by every
// stage of a migration run: raw records, normalized keys, match results,
// and canonical identity assignments.
package domain

import "time"

// RawRecord is one row from a source or target snapshot: an arbitrary
// mapping of column name to raw string value. Fields of interest are
// resolved through the per-source alias configuration, not by fixed names.
type RawRecord map[string]string

// KeyKind identifies the namespace a normalized key lives in.
type KeyKind string

const (
	KeyExactID  KeyKind = "exact_id"
	KeyDocument KeyKind = "document"
	KeyPhone    KeyKind = "phone"
	KeyEmail    KeyKind = "email"
	KeyName     KeyKind = "name"
)

// Key is a normalized identity field value tagged with its kind.
// Equality is plain string equality; all kind-specific folding happens
// in the normalizer before a Key is built.
type Key struct {
	Kind  KeyKind
	Value string
}

// MatchMethod records which matcher in the cascade produced a result.
type MatchMethod string

const (
	MethodExactID   MatchMethod = "EXACT_ID"
	MethodPhone     MatchMethod = "PHONE"
	MethodEmail     MatchMethod = "EMAIL"
	MethodNameFuzzy MatchMethod = "NAME_FUZZY"
	MethodNone      MatchMethod = "NONE"
)

// Methods lists the non-NONE match methods in cascade priority order.
// The order encodes the business trust ranking and must not change.
func Methods() []MatchMethod {
	return []MatchMethod{MethodExactID, MethodPhone, MethodEmail, MethodNameFuzzy}
}

// MatchResult is the outcome of running one source record through the
// match cascade. Immutable after creation.
type MatchResult struct {
	SourceID   string      `json:"source_id"`
	TargetID   string      `json:"target_id,omitempty"`
	Method     MatchMethod `json:"method"`
	Confidence float64     `json:"confidence,omitempty"`
}

// Matched reports whether the cascade found an unambiguous target.
func (r MatchResult) Matched() bool {
	return r.Method != MethodNone && r.TargetID != ""
}

// Origin describes how a canonical identity was obtained for a legacy id.
type Origin string

const (
	// OriginExisting means the legacy id was already in the identity store
	// from a prior run; the stored UUID is authoritative.
	OriginExisting Origin = "EXISTING"
	// OriginReused means the matched target already had a UUID and the
	// legacy id was attached to it.
	OriginReused Origin = "REUSED"
	// OriginMinted means no prior assignment or match existed and a fresh
	// UUID was generated.
	OriginMinted Origin = "NEWLY_MINTED"
)

// Identity is one legacy-id to canonical-UUID assignment. A real-world
// entity may accumulate several Identity rows (one per legacy id) that all
// share the same UUID.
type Identity struct {
	LegacyID   string    `json:"legacy_id"`
	UUID       string    `json:"uuid"`
	Origin     Origin    `json:"origin"`
	AssignedAt time.Time `json:"assigned_at,omitempty"`
}

// Collision records a normalized key that resolved to more than one target
// record. The engine never picks a winner; collisions are surfaced for
// operator review.
type Collision struct {
	Kind      KeyKind  `json:"kind"`
	Value     string   `json:"value"`
	TargetIDs []string `json:"target_ids"`
}
