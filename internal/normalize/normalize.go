// Package normalize canonicalizes raw identity fields (phone, email, name,
// numeric legacy ids) into comparable forms. Every normalizer rejects by
// returning ("", false) rather than an error, so a record missing one field
// can still be matched on another.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/rmaia/idlink/internal/domain"
)

// brazilCountryCode is stripped from phone numbers when enough digits remain.
const brazilCountryCode = "55"

// Normalizer holds the per-run normalization settings: the area code to
// prefix onto short local phone numbers and the sentinel strings upstream
// systems use to mean "no value" ("SEM EMAIL", "nan", ...).
type Normalizer struct {
	defaultAreaCode string
	sentinels       map[string]struct{}
}

// New creates a Normalizer. Sentinels are compared case-insensitively after
// trimming; the empty string is always treated as absent.
func New(defaultAreaCode string, sentinels []string) *Normalizer {
	set := make(map[string]struct{}, len(sentinels))
	for _, s := range sentinels {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &Normalizer{defaultAreaCode: defaultAreaCode, sentinels: set}
}

// Absent reports whether a raw value is empty or one of the configured
// "no value" sentinels.
func (n *Normalizer) Absent(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return true
	}
	_, ok := n.sentinels[v]
	return ok
}

// Phone canonicalizes a phone number to its significant digits:
// non-digits are stripped, a leading country code 55 is removed when at
// least 10 digits remain, and 8/9-digit local numbers get the default area
// code prefixed. Results shorter than 8 or longer than 11 digits are
// rejected.
func (n *Normalizer) Phone(raw string) (string, bool) {
	if n.Absent(raw) {
		return "", false
	}
	digits := keepDigits(raw)
	if strings.HasPrefix(digits, brazilCountryCode) && len(digits)-len(brazilCountryCode) >= 10 {
		digits = digits[len(brazilCountryCode):]
	}
	if len(digits) == 8 || len(digits) == 9 {
		digits = n.defaultAreaCode + digits
	}
	if len(digits) < 8 || len(digits) > 11 {
		return "", false
	}
	return digits, true
}

// Email canonicalizes an email address: trim and lower-case. Syntax is not
// validated beyond non-emptiness; sentinel values are rejected.
func (n *Normalizer) Email(raw string) (string, bool) {
	if n.Absent(raw) {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(raw)), true
}

// Name canonicalizes a person name: upper-case, accents removed, anything
// outside A-Z and space dropped, runs of whitespace collapsed.
func (n *Normalizer) Name(raw string) (string, bool) {
	if n.Absent(raw) {
		return "", false
	}
	s := strings.ToUpper(stripDiacritics(raw))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return "", false
	}
	return out, true
}

// LegacyID canonicalizes a legacy numeric id: a trailing ".0" artifact from
// float-serialized integers is stripped, then all non-digits.
func (n *Normalizer) LegacyID(raw string) (string, bool) {
	if n.Absent(raw) {
		return "", false
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	s = keepDigits(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Document canonicalizes a document number (CPF/CNPJ and the like) with the
// same digits-only rule as LegacyID.
func (n *Normalizer) Document(raw string) (string, bool) {
	return n.LegacyID(raw)
}

// RecordKeys holds every normalized key a single record yields. A zero
// value in a field means the record had no usable value for it.
type RecordKeys struct {
	LegacyID string
	Document string
	Phone    string
	Email    string
	Name     string
}

// Empty reports whether the record yielded no linkable key at all.
func (k RecordKeys) Empty() bool {
	return k.LegacyID == "" && k.Document == "" && k.Phone == "" && k.Email == "" && k.Name == ""
}

// Keys returns the non-empty keys tagged with their kinds.
func (k RecordKeys) Keys() []domain.Key {
	var keys []domain.Key
	if k.LegacyID != "" {
		keys = append(keys, domain.Key{Kind: domain.KeyExactID, Value: k.LegacyID})
	}
	if k.Document != "" {
		keys = append(keys, domain.Key{Kind: domain.KeyDocument, Value: k.Document})
	}
	if k.Phone != "" {
		keys = append(keys, domain.Key{Kind: domain.KeyPhone, Value: k.Phone})
	}
	if k.Email != "" {
		keys = append(keys, domain.Key{Kind: domain.KeyEmail, Value: k.Email})
	}
	if k.Name != "" {
		keys = append(keys, domain.Key{Kind: domain.KeyName, Value: k.Name})
	}
	return keys
}

// Fields lists, per logical field, the column aliases to try in order.
// The first alias whose value is present (not absent per the sentinel
// rules) wins.
type Fields struct {
	LegacyID []string
	Document []string
	Phone    []string
	Email    []string
	Name     []string
}

// Extract resolves a record's columns through the alias lists and
// normalizes each resolved value.
func (n *Normalizer) Extract(rec domain.RawRecord, f Fields) RecordKeys {
	var k RecordKeys
	if raw, ok := n.lookup(rec, f.LegacyID); ok {
		k.LegacyID, _ = n.LegacyID(raw)
	}
	if raw, ok := n.lookup(rec, f.Document); ok {
		k.Document, _ = n.Document(raw)
	}
	if raw, ok := n.lookup(rec, f.Phone); ok {
		k.Phone, _ = n.Phone(raw)
	}
	if raw, ok := n.lookup(rec, f.Email); ok {
		k.Email, _ = n.Email(raw)
	}
	if raw, ok := n.lookup(rec, f.Name); ok {
		k.Name, _ = n.Name(raw)
	}
	return k
}

func (n *Normalizer) lookup(rec domain.RawRecord, aliases []string) (string, bool) {
	for _, a := range aliases {
		if v, ok := rec[a]; ok && !n.Absent(v) {
			return v, true
		}
	}
	return "", false
}

func keepDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripDiacritics removes accent marks by decomposing to NFD and dropping
// combining marks (the Mn category).
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
