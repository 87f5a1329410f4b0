// Package pipeline wires a full migration run together: load the identity
// store, build the candidate index over the target set, match every source
// record, assign canonical identities, and flush the store and coverage
// report atomically at the end.
package pipeline

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmaia/idlink/internal/config"
	"github.com/rmaia/idlink/internal/domain"
	"github.com/rmaia/idlink/internal/identity"
	"github.com/rmaia/idlink/internal/index"
	"github.com/rmaia/idlink/internal/match"
	"github.com/rmaia/idlink/internal/report"
)

// Store is the persistence boundary for identity assignments. The run
// loads the whole mapping up front and flushes once at the end; whether
// the backing is SQLite or something else is the caller's business.
type Store interface {
	Load() (map[string]string, error)
	Flush(assignments []domain.Identity, sourceSystem string, startedAt time.Time, reportJSON []byte) error
}

// Result carries the run's outputs: the per-record identity assignments
// (in source order, missing entries for unassignable records) and the
// coverage report.
type Result struct {
	Assignments []domain.Identity
	Report      *report.Report
}

// Run executes one migration batch. Per-record problems (malformed rows,
// ambiguous keys) are folded into the report; only configuration and store
// I/O failures abort the run. Even on an aborted flush the returned Result
// still carries the computed report.
func Run(cfg *config.Config, sourceSystem string, targets, sources []domain.RawRecord, st Store, log *logrus.Logger) (*Result, error) {
	return run(cfg, sourceSystem, targets, sources, st, log, true)
}

// DryRun executes the same match and assignment phases as Run but never
// flushes, leaving the store exactly as it was. Used to check what a run
// would produce against what a previous run recorded.
func DryRun(cfg *config.Config, sourceSystem string, targets, sources []domain.RawRecord, st Store, log *logrus.Logger) (*Result, error) {
	return run(cfg, sourceSystem, targets, sources, st, log, false)
}

func run(cfg *config.Config, sourceSystem string, targets, sources []domain.RawRecord, st Store, log *logrus.Logger, flush bool) (*Result, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	startedAt := time.Now().UTC()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sourceFields, err := cfg.Source(sourceSystem)
	if err != nil {
		return nil, err
	}

	prior, err := st.Load()
	if err != nil {
		return nil, err
	}
	table := identity.NewTable(prior)
	log.WithFields(logrus.Fields{
		"source":  sourceSystem,
		"prior":   len(prior),
		"targets": len(targets),
		"records": len(sources),
	}).Info("starting migration run")

	norm := cfg.Normalizer()
	idx := index.Build(targets, norm, cfg.Target.Fields(), cfg.Target.UUID)
	if idx.Skipped() > 0 {
		log.WithField("skipped", idx.Skipped()).Warn("target records without a usable legacy id were not indexed")
	}
	log.WithFields(logrus.Fields{
		"indexed":    idx.Len(),
		"collisions": len(idx.Collisions()),
	}).Info("candidate index built")

	engine := match.New(idx, norm, sourceFields.Fields(), cfg.FuzzyName)
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	outcomes := engine.MatchAll(sources, workers)

	resolve := func(targetID string) string {
		if u := idx.UUID(targetID); u != "" {
			return u
		}
		if id, ok := table.Get(targetID); ok {
			return id.UUID
		}
		return ""
	}
	assigner := identity.NewAssigner(table, resolve)

	builder := report.NewBuilder(sourceSystem)
	for _, c := range idx.DuplicateIDs() {
		builder.ObserveCollision(c)
	}
	result := &Result{}
	for _, out := range outcomes {
		builder.ObserveResult(out.Result, out.Malformed())
		for _, c := range out.Collisions {
			builder.ObserveCollision(c)
		}
		if out.Result.SourceID == "" {
			if !out.Malformed() {
				builder.ObserveNoLegacyID()
			}
			continue
		}
		id, err := assigner.Assign(out.Result)
		if err != nil {
			builder.ObserveNoLegacyID()
			continue
		}
		builder.ObserveAssignment(id)
		result.Assignments = append(result.Assignments, id)
	}

	result.Report = builder.Finalize()

	if flush {
		reportJSON, err := result.Report.JSON()
		if err != nil {
			return result, err
		}
		if err := st.Flush(table.Dirty(), sourceSystem, startedAt, reportJSON); err != nil {
			// The report survives the abort so the operator can see how far
			// the run got before retrying.
			return result, err
		}
	}

	log.WithFields(logrus.Fields{
		"matched":   result.Report.Matched(),
		"unmatched": result.Report.UnmatchedCount,
		"minted":    result.Report.OriginCounts[domain.OriginMinted],
		"reused":    result.Report.OriginCounts[domain.OriginReused],
		"elapsed":   time.Since(startedAt).Round(time.Millisecond).String(),
	}).Info("migration run finished")
	return result, nil
}
