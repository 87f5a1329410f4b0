package domain

import (
	"fmt"
	"regexp"
)

// UUIDRegex validates lowercase UUIDv4 format.
var UUIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ValidateUUID validates a UUID v4 format (lowercase with hyphens).
func ValidateUUID(uuid string) error {
	if !UUIDRegex.MatchString(uuid) {
		return fmt.Errorf("invalid UUID: must be lowercase UUIDv4 format (e.g., 550e8400-e29b-41d4-a716-446655440000)")
	}
	return nil
}

// MalformedRecordError marks a record that carries no linkable field at all
// (no id, document, phone, email, or name survives normalization). It is
// recoverable: the record is counted as unmatched and the run continues.
type MalformedRecordError struct {
	SourceID string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %q has no linkable fields", e.SourceID)
}

// ConfigError marks missing or invalid field-alias configuration. It is
// fatal and detected before any record is processed.
type ConfigError struct {
	Source string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("config: source %q, field %q: %s", e.Source, e.Field, e.Reason)
	}
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Reason)
}

// StoreIOError marks a failure loading or flushing the identity store.
// It is fatal to the whole run: no assignment is final until the store
// flush succeeds, so the run can be retried from scratch.
type StoreIOError struct {
	Op  string // "load" or "flush"
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("identity store %s failed: %v", e.Op, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}
