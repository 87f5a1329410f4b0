// Package report aggregates per-run coverage statistics: how many source
// records matched by which method, what stayed unmatched, and every key
// collision left for operator review. The reporter only observes; it never
// influences matching or assignment.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rmaia/idlink/internal/domain"
)

// Report is the finalized coverage report for one run.
type Report struct {
	SourceSystem    string                     `json:"source_system"`
	StartedAt       time.Time                  `json:"started_at"`
	FinishedAt      time.Time                  `json:"finished_at"`
	TotalSource     int                        `json:"total_source_records"`
	MatchedByMethod map[domain.MatchMethod]int `json:"matched_by_method"`
	UnmatchedCount  int                        `json:"unmatched_count"`
	MalformedCount  int                        `json:"malformed_count"`
	NoLegacyIDCount int                        `json:"no_legacy_id_count"`
	OriginCounts    map[domain.Origin]int      `json:"origin_counts"`
	Collisions      []domain.Collision         `json:"duplicate_collisions"`
}

// Matched returns the total number of matched source records.
func (r *Report) Matched() int {
	n := 0
	for _, c := range r.MatchedByMethod {
		n += c
	}
	return n
}

// Builder collects observations during a run. Safe for concurrent use.
type Builder struct {
	mu           sync.Mutex
	sourceSystem string
	startedAt    time.Time
	total        int
	byMethod     map[domain.MatchMethod]int
	unmatched    int
	malformed    int
	noLegacyID   int
	origins      map[domain.Origin]int
	collisions   map[string]domain.Collision
}

// NewBuilder creates a Builder for the named source system.
func NewBuilder(sourceSystem string) *Builder {
	return &Builder{
		sourceSystem: sourceSystem,
		startedAt:    time.Now().UTC(),
		byMethod:     make(map[domain.MatchMethod]int),
		origins:      make(map[domain.Origin]int),
		collisions:   make(map[string]domain.Collision),
	}
}

// ObserveResult records one match result. Malformed records (no linkable
// fields) count as unmatched, never as fatal.
func (b *Builder) ObserveResult(res domain.MatchResult, malformed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total++
	if malformed {
		b.malformed++
	}
	if res.Method == domain.MethodNone {
		b.unmatched++
		return
	}
	b.byMethod[res.Method]++
}

// ObserveCollision records an ambiguous key. Collisions are deduplicated
// by kind and value, since many source records can trip over the same key.
func (b *Builder) ObserveCollision(c domain.Collision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collisions[string(c.Kind)+"\x00"+c.Value] = c
}

// ObserveAssignment records the origin of one identity assignment.
func (b *Builder) ObserveAssignment(id domain.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.origins[id.Origin]++
}

// ObserveNoLegacyID records a source record that could not be assigned an
// identity because it carries no legacy id.
func (b *Builder) ObserveNoLegacyID() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noLegacyID++
}

// Finalize produces the report. It may be called mid-run on partial
// failure: whatever was observed so far is reported.
func (b *Builder) Finalize() *Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Report{
		SourceSystem:    b.sourceSystem,
		StartedAt:       b.startedAt,
		FinishedAt:      time.Now().UTC(),
		TotalSource:     b.total,
		MatchedByMethod: make(map[domain.MatchMethod]int, len(b.byMethod)),
		UnmatchedCount:  b.unmatched,
		MalformedCount:  b.malformed,
		NoLegacyIDCount: b.noLegacyID,
		OriginCounts:    make(map[domain.Origin]int, len(b.origins)),
	}
	for m, c := range b.byMethod {
		r.MatchedByMethod[m] = c
	}
	for o, c := range b.origins {
		r.OriginCounts[o] = c
	}
	for _, c := range b.collisions {
		r.Collisions = append(r.Collisions, c)
	}
	sort.Slice(r.Collisions, func(i, j int) bool {
		if r.Collisions[i].Kind != r.Collisions[j].Kind {
			return r.Collisions[i].Kind < r.Collisions[j].Kind
		}
		return r.Collisions[i].Value < r.Collisions[j].Value
	})
	return r
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// Text renders the human-readable summary. Timestamps are left out so the
// output is comparable across runs.
func (r *Report) Text() string {
	var b strings.Builder
	r.writeCoverage(&b)
	fmt.Fprintf(&b, "origins:        existing=%d reused=%d minted=%d\n",
		r.OriginCounts[domain.OriginExisting], r.OriginCounts[domain.OriginReused], r.OriginCounts[domain.OriginMinted])
	r.writeCollisions(&b)
	return b.String()
}

// coverageText is the rendering Diff compares: the match coverage and
// collision sections without the origin counts, which legitimately shift
// toward EXISTING when a run is replayed against a populated store.
func (r *Report) coverageText() string {
	var b strings.Builder
	r.writeCoverage(&b)
	r.writeCollisions(&b)
	return b.String()
}

func (r *Report) writeCoverage(b *strings.Builder) {
	fmt.Fprintf(b, "source system:  %s\n", r.SourceSystem)
	fmt.Fprintf(b, "total records:  %d\n", r.TotalSource)
	for _, m := range domain.Methods() {
		n := r.MatchedByMethod[m]
		fmt.Fprintf(b, "  %-12s %6d  (%s)\n", m, n, pct(n, r.TotalSource))
	}
	fmt.Fprintf(b, "  %-12s %6d  (%s)\n", "unmatched", r.UnmatchedCount, pct(r.UnmatchedCount, r.TotalSource))
	fmt.Fprintf(b, "malformed:      %d\n", r.MalformedCount)
	fmt.Fprintf(b, "no legacy id:   %d\n", r.NoLegacyIDCount)
}

func (r *Report) writeCollisions(b *strings.Builder) {
	fmt.Fprintf(b, "collisions:     %d\n", len(r.Collisions))
	for _, c := range r.Collisions {
		fmt.Fprintf(b, "  %s %q -> %s\n", c.Kind, c.Value, strings.Join(c.TargetIDs, ", "))
	}
}

func pct(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}
