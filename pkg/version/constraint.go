package version

import (
	"regexp"
	"strconv"
	"strings"
)

// Constraint is either a recommended version or a range.
type Constraint struct {
	Version *Version
	Range   *Range
}

// ParseConstraint parses range syntax into a range constraint and anything
// else into a recommended version.
func ParseConstraint(s string) (Constraint, error) {
	if IsRange(s) {
		r, err := ParseRange(s)
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{Range: r}, nil
	}
	v, err := Parse(s)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{Version: &v}, nil
}

// IsRange reports whether the constraint is range-based.
func (c Constraint) IsRange() bool { return c.Range != nil }

// Contains delegates to the range when present, otherwise compares against
// the recommended version.
func (c Constraint) Contains(v Version) bool {
	if c.Range != nil {
		return c.Range.Contains(v)
	}
	if c.Version != nil {
		return c.Version.Equal(v)
	}
	return false
}

func (c Constraint) String() string {
	switch {
	case c.Range != nil:
		return c.Range.String()
	case c.Version != nil:
		return c.Version.String()
	}
	return ""
}

// snapshotTimestamp matches timestamped snapshot versions such as
// "1.0-20240102.030405-7".
var snapshotTimestamp = regexp.MustCompile(`^(.*-)?([0-9]{8}\.[0-9]{6})-([0-9]+)$`)

// IsSnapshot reports whether s ends with SNAPSHOT or is a timestamped
// snapshot version.
func IsSnapshot(s string) bool {
	return strings.HasSuffix(s, Snapshot) || snapshotTimestamp.MatchString(s)
}

// BaseVersion maps a timestamped snapshot back to its "-SNAPSHOT" form and
// returns every other version unchanged.
func BaseVersion(s string) string {
	m := snapshotTimestamp.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[1] + Snapshot
}

// SnapshotTimestamp splits a timestamped snapshot into its timestamp and
// build number. ok is false for any other version.
func SnapshotTimestamp(s string) (timestamp, buildNumber string, ok bool) {
	m := snapshotTimestamp.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[2], m[3], true
}

// ExpandSnapshot replaces the SNAPSHOT suffix of base with
// "<timestamp>-<buildNumber>".
func ExpandSnapshot(base, timestamp string, buildNumber int) string {
	return strings.TrimSuffix(base, Snapshot) + timestamp + "-" + strconv.Itoa(buildNumber)
}
