// CLAUDE:SUMMARY Identifier generators for acquisition runs and export batches (UUIDv7 based).
// CLAUDE:EXPORTS Generator, UUIDv7, Prefixed, Timestamped, New, RunID, Parse
// Package idgen produces identifiers for acquisition runs and log correlation.
//
// The generator is a plain function value so callers (and tests) can swap
// the strategy at construction time.
package idgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// IDs sort by creation time, which keeps run logs in order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID ("run_", "skip_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Timestamped produces "20060102T150405Z_<suffix>" IDs. now is injectable
// for deterministic tests; nil means time.Now.
func Timestamped(gen Generator, now func() time.Time) Generator {
	if now == nil {
		now = time.Now
	}
	return func() string {
		return now().UTC().Format("20060102T150405Z") + "_" + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// RunID is the generator used for acquisition runs.
var RunID Generator = Prefixed("run_", UUIDv7())

// Parse validates a UUID string, tolerating a "<prefix>_" in front of it.
func Parse(s string) (string, error) {
	raw := s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		raw = s[i+1:]
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return u.String(), nil
}
