// Package match runs the matcher cascade for source records against a
// frozen candidate index. The priority order (exact id, then phone, then
// email, then name) encodes the trust ranking used across the migration
// scripts and must be preserved exactly. An ambiguous lookup, a key held
// by several targets, is never resolved by guessing: the engine records
// the collision and falls through to the next method.
package match

import (
	"errors"
	"sort"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/rmaia/idlink/internal/domain"
	"github.com/rmaia/idlink/internal/index"
	"github.com/rmaia/idlink/internal/normalize"
)

// maxFuzzyDistance bounds the Levenshtein distance accepted by the
// optional fuzzy name matcher.
const maxFuzzyDistance = 3

// Outcome is the full result of matching one source record: the match
// itself, any key collisions encountered on the way, and a per-record
// error for records that could not be linked at all. Per-record errors
// never abort a run; they are folded into the coverage report.
type Outcome struct {
	Result     domain.MatchResult
	Keys       normalize.RecordKeys
	Collisions []domain.Collision
	Err        error
}

// Malformed reports whether the record had no linkable field at all.
func (o Outcome) Malformed() bool {
	var malformed *domain.MalformedRecordError
	return errors.As(o.Err, &malformed)
}

// Engine matches source records against a built index. It is pure: no
// shared mutable state, safe for concurrent use.
type Engine struct {
	idx       *index.Index
	norm      *normalize.Normalizer
	fields    normalize.Fields
	fuzzyName bool
}

// New creates an Engine. fuzzyName enables rank-based fuzzy name matching
// as a last resort after exact normalized-name equality misses; it is off
// in the default configuration.
func New(idx *index.Index, n *normalize.Normalizer, fields normalize.Fields, fuzzyName bool) *Engine {
	return &Engine{idx: idx, norm: n, fields: fields, fuzzyName: fuzzyName}
}

// Match runs the cascade for one source record.
func (e *Engine) Match(rec domain.RawRecord) Outcome {
	keys := e.norm.Extract(rec, e.fields)
	out := Outcome{
		Keys:   keys,
		Result: domain.MatchResult{SourceID: keys.LegacyID, Method: domain.MethodNone},
	}
	if keys.Empty() {
		out.Err = &domain.MalformedRecordError{SourceID: keys.LegacyID}
		return out
	}

	steps := []struct {
		kind   domain.KeyKind
		value  string
		method domain.MatchMethod
	}{
		{domain.KeyExactID, keys.LegacyID, domain.MethodExactID},
		{domain.KeyDocument, keys.Document, domain.MethodExactID},
		{domain.KeyPhone, keys.Phone, domain.MethodPhone},
		{domain.KeyEmail, keys.Email, domain.MethodEmail},
		{domain.KeyName, keys.Name, domain.MethodNameFuzzy},
	}
	for _, step := range steps {
		if step.value == "" {
			continue
		}
		ids := e.idx.Lookup(step.kind, step.value)
		switch len(ids) {
		case 0:
			continue
		case 1:
			out.Result.TargetID = ids[0]
			out.Result.Method = step.method
			out.Result.Confidence = 1
			return out
		default:
			out.Collisions = append(out.Collisions, domain.Collision{
				Kind:      step.kind,
				Value:     step.value,
				TargetIDs: append([]string(nil), ids...),
			})
		}
	}

	if e.fuzzyName && keys.Name != "" {
		if id, conf, ok := e.fuzzyMatch(keys.Name); ok {
			out.Result.TargetID = id
			out.Result.Method = domain.MethodNameFuzzy
			out.Result.Confidence = conf
		}
	}
	return out
}

// fuzzyMatch ranks indexed names against the source name and accepts only
// a unique best candidate within the distance bound that itself maps to a
// single target.
func (e *Engine) fuzzyMatch(name string) (string, float64, bool) {
	ranks := fuzzy.RankFindFold(name, e.idx.Names())
	if len(ranks) == 0 {
		return "", 0, false
	}
	sort.Sort(ranks)
	best := ranks[0]
	if best.Distance > maxFuzzyDistance {
		return "", 0, false
	}
	if len(ranks) > 1 && ranks[1].Distance == best.Distance {
		// Two names tie: ambiguous, same rule as an exact collision.
		return "", 0, false
	}
	ids := e.idx.Lookup(domain.KeyName, best.Target)
	if len(ids) != 1 {
		return "", 0, false
	}
	return ids[0], 1.0 / float64(1+best.Distance), true
}

// MatchAll matches every source record using a bounded worker pool,
// preserving input order in the returned outcomes. Safe because the index
// is frozen after build and Match is pure.
func (e *Engine) MatchAll(records []domain.RawRecord, workers int) []Outcome {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome, len(records))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.Match(records[i])
			}
		}()
	}
	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outcomes
}
