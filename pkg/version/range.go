package version

import (
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/errors"
)

// Bound is one end of a restriction.
type Bound struct {
	Version   Version
	Inclusive bool
}

// Restriction is a single interval. A nil Lower or Upper means the interval
// is unbounded on that side.
type Restriction struct {
	Lower *Bound
	Upper *Bound
}

// Contains reports whether v lies inside the interval.
func (r Restriction) Contains(v Version) bool {
	if r.Lower != nil {
		c := v.Compare(r.Lower.Version)
		if c < 0 || (c == 0 && !r.Lower.Inclusive) {
			return false
		}
	}
	if r.Upper != nil {
		c := v.Compare(r.Upper.Version)
		if c > 0 || (c == 0 && !r.Upper.Inclusive) {
			return false
		}
	}
	return true
}

// IsExact reports whether the restriction pins a single version, as "[1.0]".
func (r Restriction) IsExact() bool {
	return r.Lower != nil && r.Upper != nil && r.Lower.Inclusive && r.Upper.Inclusive &&
		r.Lower.Version.Equal(r.Upper.Version)
}

func (r Restriction) String() string {
	if r.IsExact() {
		return "[" + r.Lower.Version.String() + "]"
	}
	var b strings.Builder
	if r.Lower != nil && r.Lower.Inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Lower != nil {
		b.WriteString(r.Lower.Version.String())
	}
	b.WriteByte(',')
	if r.Upper != nil {
		b.WriteString(r.Upper.Version.String())
	}
	if r.Upper != nil && r.Upper.Inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Range is a union of restrictions in ascending order. Each restriction
// starts at or above the upper bound of the one before it, unless that one
// is open-ended.
type Range struct {
	raw          string
	Restrictions []Restriction
}

// IsRange reports whether s uses range syntax.
func IsRange(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "(")
}

// ParseRange parses range syntax. Plain versions are rejected; use
// [ParseConstraint] to accept both.
func ParseRange(spec string) (*Range, error) {
	process := strings.TrimSpace(spec)
	if !IsRange(process) {
		return nil, &errors.VersionParseError{Input: spec, Reason: "not a version range"}
	}

	var restrictions []Restriction
	for IsRange(process) {
		idx := closingIndex(process)
		if idx < 0 {
			return nil, &errors.VersionParseError{Input: spec, Reason: "unbalanced range"}
		}
		r, err := parseRestriction(spec, process[:idx+1])
		if err != nil {
			return nil, err
		}
		if n := len(restrictions); n > 0 && overlaps(restrictions[n-1], r) {
			return nil, &errors.VersionParseError{Input: spec, Reason: "ranges overlap"}
		}
		restrictions = append(restrictions, r)

		process = strings.TrimSpace(process[idx+1:])
		if strings.HasPrefix(process, ",") {
			process = strings.TrimSpace(process[1:])
		}
	}
	if process != "" {
		return nil, &errors.VersionParseError{Input: spec, Reason: "only fully-qualified sets allowed in multiple set scenario"}
	}
	return &Range{raw: spec, Restrictions: restrictions}, nil
}

// overlaps reports whether next starts below the upper bound of prev. Only
// a bounded prev is checked, so a set may follow an open-ended restriction
// as Maven allows.
func overlaps(prev, next Restriction) bool {
	if prev.Upper == nil {
		return false
	}
	if next.Lower == nil {
		return true
	}
	return next.Lower.Version.Compare(prev.Upper.Version) < 0
}

// closingIndex finds the first ')' or ']' of the leading restriction.
func closingIndex(s string) int {
	paren := strings.IndexByte(s, ')')
	bracket := strings.IndexByte(s, ']')
	switch {
	case paren < 0:
		return bracket
	case bracket < 0:
		return paren
	case paren < bracket:
		return paren
	default:
		return bracket
	}
}

func parseRestriction(spec, s string) (Restriction, error) {
	lowerInclusive := strings.HasPrefix(s, "[")
	upperInclusive := strings.HasSuffix(s, "]")
	body := strings.TrimSpace(s[1 : len(s)-1])

	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		if !lowerInclusive || !upperInclusive {
			return Restriction{}, &errors.VersionParseError{Input: spec, Reason: "single version must be surrounded by []"}
		}
		v, err := Parse(body)
		if err != nil {
			return Restriction{}, &errors.VersionParseError{Input: spec, Reason: "invalid bound " + `"` + body + `"`}
		}
		return Restriction{
			Lower: &Bound{Version: v, Inclusive: true},
			Upper: &Bound{Version: v, Inclusive: true},
		}, nil
	}

	lower := strings.TrimSpace(body[:comma])
	upper := strings.TrimSpace(body[comma+1:])
	if lower == upper {
		return Restriction{}, &errors.VersionParseError{Input: spec, Reason: "range cannot have identical boundaries"}
	}

	var r Restriction
	if lower != "" {
		v, err := Parse(lower)
		if err != nil {
			return Restriction{}, &errors.VersionParseError{Input: spec, Reason: "invalid lower bound " + `"` + lower + `"`}
		}
		r.Lower = &Bound{Version: v, Inclusive: lowerInclusive}
	}
	if upper != "" {
		v, err := Parse(upper)
		if err != nil {
			return Restriction{}, &errors.VersionParseError{Input: spec, Reason: "invalid upper bound " + `"` + upper + `"`}
		}
		r.Upper = &Bound{Version: v, Inclusive: upperInclusive}
	}
	if r.Lower != nil && r.Upper != nil && r.Upper.Version.Compare(r.Lower.Version) < 0 {
		return Restriction{}, &errors.VersionParseError{Input: spec, Reason: "range defies version ordering"}
	}
	return r, nil
}

// Contains reports whether any restriction contains v.
func (r *Range) Contains(v Version) bool {
	for _, res := range r.Restrictions {
		if res.Contains(v) {
			return true
		}
	}
	return false
}

// LowerBound returns the lower bound of the whole union, nil if unbounded.
func (r *Range) LowerBound() *Bound {
	if len(r.Restrictions) == 0 {
		return nil
	}
	return r.Restrictions[0].Lower
}

// UpperBound returns the upper bound of the whole union, nil if any
// restriction is open above.
func (r *Range) UpperBound() *Bound {
	for _, res := range r.Restrictions {
		if res.Upper == nil {
			return nil
		}
	}
	if len(r.Restrictions) == 0 {
		return nil
	}
	return r.Restrictions[len(r.Restrictions)-1].Upper
}

// HasUpperBound reports whether the range is closed above. Open ranges
// parse fine but are rejected where reproducibility requires a bound.
func (r *Range) HasUpperBound() bool { return r.UpperBound() != nil }

// RequireUpperBound returns an *errors.UnboundedRangeError naming coordinate
// when the range is open above.
func (r *Range) RequireUpperBound(coordinate string) error {
	if r.HasUpperBound() {
		return nil
	}
	return &errors.UnboundedRangeError{Coordinate: coordinate, Range: r.String()}
}

// String returns the range as given, or a canonical rendering when the
// range was built programmatically.
func (r *Range) String() string {
	if r.raw != "" {
		return r.raw
	}
	parts := make([]string, len(r.Restrictions))
	for i, res := range r.Restrictions {
		parts[i] = res.String()
	}
	return strings.Join(parts, ",")
}
