// Package version implements the Maven version model: ordering of version
// strings, version ranges and version constraints.
//
// # Ordering
//
// A version string is split into items on '.', '-' and '+' and on every
// transition between digits and letters. Numeric items compare numerically
// with arbitrary precision. Alphabetic items are qualifiers compared by a
// fixed rank:
//
//	alpha < beta < milestone < rc (= cr) < snapshot < "" (= ga, final, release) < sp
//
// Unknown qualifiers sort after all known ones, lexically among themselves.
// A single letter directly followed by a digit is expanded (a1 = alpha-1,
// b1 = beta-1, m1 = milestone-1). Trailing zero or release items are
// ignored, so "1", "1.0" and "1.0.0-ga" are equal.
//
// # Ranges
//
// [ParseRange] accepts the bracket syntax, e.g. "[1.0,2.0)", "(,1.0]",
// "[1.2]" or a union "(,1.0],[1.2,)". [ParseConstraint] additionally accepts
// a plain version, which then acts as a recommended ("soft") version.
package version

import (
	"strings"
	"unicode"

	"github.com/matzehuels/mvnresolve/pkg/errors"
)

// Symbolic version tokens resolved against repository metadata.
const (
	Latest   = "LATEST"
	Release  = "RELEASE"
	Snapshot = "SNAPSHOT"
)

// Version is a parsed, totally ordered version. The zero value sorts like
// the empty version "".
type Version struct {
	raw   string
	items *listItem
}

// Parse parses a version string. It fails with *errors.VersionParseError on
// empty input and on characters that cannot be part of a version (whitespace,
// control characters, range syntax).
func Parse(s string) (Version, error) {
	if strings.TrimSpace(s) == "" {
		return Version{}, &errors.VersionParseError{Input: s, Reason: "empty version"}
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return Version{}, &errors.VersionParseError{Input: s, Reason: "contains whitespace"}
		}
		if strings.ContainsRune("[](),", r) {
			return Version{}, &errors.VersionParseError{Input: s, Reason: "range syntax in a plain version"}
		}
	}
	return Version{raw: s, items: parseItems(s)}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version exactly as it was given.
func (v Version) String() string { return v.raw }

// Canonical returns the normalized form used for equality, e.g.
// "1.0.0-GA" and "1" both yield "1".
func (v Version) Canonical() string { return v.list().String() }

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater
// than o.
func (v Version) Compare(o Version) int {
	return v.list().compare(o.list())
}

func (v Version) list() *listItem {
	if v.items == nil {
		return &listItem{}
	}
	return v.items
}

// Equal reports whether v and o are equivalent versions.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// IsSnapshot reports whether v is a snapshot version.
func (v Version) IsSnapshot() bool { return IsSnapshot(v.raw) }

// Compare parses both strings and compares them.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Max returns the greatest of the given versions, or false if none given.
func Max(vs []Version) (Version, bool) {
	if len(vs) == 0 {
		return Version{}, false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if v.Compare(best) > 0 {
			best = v
		}
	}
	return best, true
}
