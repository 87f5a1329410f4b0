// Package store persists the identity table in SQLite. The store is the
// single piece of state that survives across runs: it is loaded fully at
// start and flushed in one transaction at the end, so a failed run never
// leaves a partially-written store behind.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rmaia/idlink/internal/db"
	"github.com/rmaia/idlink/internal/domain"
)

// IdentityStore reads and writes identity assignments.
type IdentityStore struct {
	db *db.DB
}

// New creates an IdentityStore wrapping the given database connection.
func New(database *db.DB) *IdentityStore {
	return &IdentityStore{db: database}
}

// Load reads the full legacy-id -> UUID mapping into memory.
func (s *IdentityStore) Load() (map[string]string, error) {
	rows, err := s.db.Query("SELECT legacy_id, entity_uuid FROM identities")
	if err != nil {
		return nil, &domain.StoreIOError{Op: "load", Err: err}
	}
	defer rows.Close()

	prior := make(map[string]string)
	for rows.Next() {
		var legacyID, entityUUID string
		if err := rows.Scan(&legacyID, &entityUUID); err != nil {
			return nil, &domain.StoreIOError{Op: "load", Err: err}
		}
		prior[legacyID] = entityUUID
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreIOError{Op: "load", Err: err}
	}
	return prior, nil
}

// Flush writes the run's new assignments and its report row in a single
// transaction. Existing rows are never overwritten: a legacy id already in
// the store keeps its UUID no matter what this run computed.
func (s *IdentityStore) Flush(assignments []domain.Identity, sourceSystem string, startedAt time.Time, reportJSON []byte) error {
	err := s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO identities (legacy_id, entity_uuid, origin, assigned_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(legacy_id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, id := range assignments {
			assignedAt := id.AssignedAt
			if assignedAt.IsZero() {
				assignedAt = time.Now()
			}
			if _, err := stmt.Exec(id.LegacyID, id.UUID, string(id.Origin), assignedAt.UTC().Format(time.RFC3339)); err != nil {
				return fmt.Errorf("failed to insert identity %s: %w", id.LegacyID, err)
			}
		}

		_, err = tx.Exec(
			"INSERT INTO runs (source_system, started_at, report) VALUES (?, ?, ?)",
			sourceSystem, startedAt.UTC().Format(time.RFC3339), string(reportJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		return nil
	})
	if err != nil {
		return &domain.StoreIOError{Op: "flush", Err: err}
	}
	return nil
}

// LastReport returns the report JSON recorded by the most recent run for
// a source system. The second return is false when no run has been
// recorded yet.
func (s *IdentityStore) LastReport(sourceSystem string) ([]byte, bool, error) {
	var report string
	err := s.db.QueryRow(
		"SELECT report FROM runs WHERE source_system = ? ORDER BY id DESC LIMIT 1",
		sourceSystem,
	).Scan(&report)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StoreIOError{Op: "load", Err: err}
	}
	return []byte(report), true, nil
}

// Count returns the number of stored identities.
func (s *IdentityStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM identities").Scan(&n); err != nil {
		return 0, &domain.StoreIOError{Op: "load", Err: err}
	}
	return n, nil
}

// withTx executes fn within a transaction. If fn returns nil, the
// transaction is committed; otherwise it is rolled back.
func (s *IdentityStore) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
