package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rmaia/idlink/internal/domain"
)

func TestBuilder_CoverageTotals(t *testing.T) {
	b := NewBuilder("oss")

	b.ObserveResult(domain.MatchResult{SourceID: "1", TargetID: "10", Method: domain.MethodExactID}, false)
	b.ObserveResult(domain.MatchResult{SourceID: "2", TargetID: "11", Method: domain.MethodPhone}, false)
	b.ObserveResult(domain.MatchResult{SourceID: "3", TargetID: "12", Method: domain.MethodPhone}, false)
	b.ObserveResult(domain.MatchResult{SourceID: "4", Method: domain.MethodNone}, false)
	b.ObserveResult(domain.MatchResult{Method: domain.MethodNone}, true)

	r := b.Finalize()

	if r.TotalSource != 5 {
		t.Errorf("TotalSource = %d, want 5", r.TotalSource)
	}
	matched := 0
	for _, c := range r.MatchedByMethod {
		matched += c
	}
	if matched+r.UnmatchedCount != r.TotalSource {
		t.Errorf("matched (%d) + unmatched (%d) != total (%d)", matched, r.UnmatchedCount, r.TotalSource)
	}
	if r.MatchedByMethod[domain.MethodPhone] != 2 {
		t.Errorf("MatchedByMethod[PHONE] = %d, want 2", r.MatchedByMethod[domain.MethodPhone])
	}
	if r.MalformedCount != 1 {
		t.Errorf("MalformedCount = %d, want 1", r.MalformedCount)
	}
	if r.Matched() != 3 {
		t.Errorf("Matched() = %d, want 3", r.Matched())
	}
}

func TestBuilder_DeduplicatesCollisions(t *testing.T) {
	b := NewBuilder("oss")

	c := domain.Collision{Kind: domain.KeyName, Value: "MARIA SILVA", TargetIDs: []string{"1", "2"}}
	b.ObserveCollision(c)
	b.ObserveCollision(c)
	b.ObserveCollision(domain.Collision{Kind: domain.KeyPhone, Value: "11912345678", TargetIDs: []string{"3", "4"}})

	r := b.Finalize()

	if len(r.Collisions) != 2 {
		t.Fatalf("Collisions = %v, want 2 deduplicated entries", r.Collisions)
	}
	// Sorted by kind then value: name < phone.
	if r.Collisions[0].Kind != domain.KeyName || r.Collisions[1].Kind != domain.KeyPhone {
		t.Errorf("collisions not sorted: %v", r.Collisions)
	}
}

func TestBuilder_OriginCounts(t *testing.T) {
	b := NewBuilder("oss")

	b.ObserveAssignment(domain.Identity{LegacyID: "1", Origin: domain.OriginMinted})
	b.ObserveAssignment(domain.Identity{LegacyID: "2", Origin: domain.OriginMinted})
	b.ObserveAssignment(domain.Identity{LegacyID: "3", Origin: domain.OriginReused})
	b.ObserveAssignment(domain.Identity{LegacyID: "4", Origin: domain.OriginExisting})

	r := b.Finalize()

	if r.OriginCounts[domain.OriginMinted] != 2 || r.OriginCounts[domain.OriginReused] != 1 || r.OriginCounts[domain.OriginExisting] != 1 {
		t.Errorf("OriginCounts = %v", r.OriginCounts)
	}
}

func TestReport_JSONRoundTrip(t *testing.T) {
	b := NewBuilder("vixen")
	b.ObserveResult(domain.MatchResult{SourceID: "1", TargetID: "10", Method: domain.MethodEmail}, false)
	r := b.Finalize()

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.SourceSystem != "vixen" || decoded.TotalSource != 1 {
		t.Errorf("round trip lost data: %+v", decoded)
	}
}

func TestReport_Text(t *testing.T) {
	b := NewBuilder("oss")
	b.ObserveResult(domain.MatchResult{SourceID: "1", TargetID: "10", Method: domain.MethodExactID}, false)
	b.ObserveResult(domain.MatchResult{SourceID: "2", Method: domain.MethodNone}, false)
	b.ObserveCollision(domain.Collision{Kind: domain.KeyName, Value: "MARIA SILVA", TargetIDs: []string{"1", "2"}})

	text := b.Finalize().Text()

	for _, want := range []string{"total records:  2", "EXACT_ID", "50.0%", `MARIA SILVA`} {
		if !strings.Contains(text, want) {
			t.Errorf("Text() missing %q:\n%s", want, text)
		}
	}
}

func TestDiff(t *testing.T) {
	b1 := NewBuilder("oss")
	b1.ObserveResult(domain.MatchResult{SourceID: "1", TargetID: "10", Method: domain.MethodExactID}, false)
	r1 := b1.Finalize()

	b2 := NewBuilder("oss")
	b2.ObserveResult(domain.MatchResult{SourceID: "1", TargetID: "10", Method: domain.MethodExactID}, false)
	r2 := b2.Finalize()

	// Same observations, different wall-clock timestamps: no diff.
	diff, err := Diff(r1, r2)
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if diff != "" {
		t.Errorf("Diff() = %q, want empty for equivalent reports", diff)
	}

	// A replayed run reports the same matches but EXISTING origins
	// instead of minted ones; that is not drift.
	b2b := NewBuilder("oss")
	b2b.ObserveResult(domain.MatchResult{SourceID: "1", TargetID: "10", Method: domain.MethodExactID}, false)
	b2b.ObserveAssignment(domain.Identity{LegacyID: "1", UUID: "550e8400-e29b-41d4-a716-446655440000", Origin: domain.OriginExisting})
	r2b := b2b.Finalize()
	diff, err = Diff(r1, r2b)
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if diff != "" {
		t.Errorf("Diff() = %q, want empty when only origins changed", diff)
	}

	b3 := NewBuilder("oss")
	b3.ObserveResult(domain.MatchResult{SourceID: "1", Method: domain.MethodNone}, false)
	r3 := b3.Finalize()

	diff, err = Diff(r1, r3)
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if diff == "" {
		t.Error("Diff() empty for differing reports")
	}
	if !strings.Contains(diff, "unmatched") {
		t.Errorf("Diff() should mention the changed counter:\n%s", diff)
	}
}
