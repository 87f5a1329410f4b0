package domain

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestMethods_PriorityOrder(t *testing.T) {
	want := []MatchMethod{MethodExactID, MethodPhone, MethodEmail, MethodNameFuzzy}
	if got := Methods(); !reflect.DeepEqual(got, want) {
		t.Errorf("Methods() = %v, want %v", got, want)
	}
}

func TestMatchResult_Matched(t *testing.T) {
	tests := []struct {
		name string
		res  MatchResult
		want bool
	}{
		{name: "matched", res: MatchResult{TargetID: "1", Method: MethodPhone}, want: true},
		{name: "none", res: MatchResult{Method: MethodNone}, want: false},
		{name: "method without target", res: MatchResult{Method: MethodPhone}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Matched(); got != tt.want {
				t.Errorf("Matched() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID("550e8400-e29b-41d4-a716-446655440000"); err != nil {
		t.Errorf("valid uuid rejected: %v", err)
	}
	for _, bad := range []string{"", "550E8400-E29B-41D4-A716-446655440000", "not-a-uuid", "550e8400-e29b-11d4-a716-446655440000"} {
		if err := ValidateUUID(bad); err == nil {
			t.Errorf("ValidateUUID(%q) expected error", bad)
		}
	}
}

func TestErrorTypes(t *testing.T) {
	var malformed *MalformedRecordError
	err := fmt.Errorf("wrapped: %w", &MalformedRecordError{SourceID: "42"})
	if !errors.As(err, &malformed) {
		t.Error("MalformedRecordError not matched through wrapping")
	}

	var cfgErr *ConfigError
	err = fmt.Errorf("wrapped: %w", &ConfigError{Source: "oss", Field: "legacy_id", Reason: "missing"})
	if !errors.As(err, &cfgErr) {
		t.Error("ConfigError not matched through wrapping")
	}
	if cfgErr.Source != "oss" {
		t.Errorf("Source = %q", cfgErr.Source)
	}

	inner := errors.New("disk full")
	storeErr := &StoreIOError{Op: "flush", Err: inner}
	if !errors.Is(storeErr, inner) {
		t.Error("StoreIOError should unwrap to its cause")
	}
}
