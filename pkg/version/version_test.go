package version

import (
	"errors"
	"sort"
	"testing"

	mverrors "github.com/matzehuels/mvnresolve/pkg/errors"
)

var qualifierOrder = []string{
	"1-alpha2snapshot",
	"1-alpha2",
	"1-alpha-123",
	"1-beta-2",
	"1-beta123",
	"1-m2",
	"1-m11",
	"1-rc",
	"1-cr2",
	"1-rc123",
	"1-SNAPSHOT",
	"1",
	"1-sp",
	"1-sp2",
	"1-sp123",
	"1-abc",
	"1-def",
	"1-pom-1",
	"1-1-snapshot",
	"1-1",
	"1-2",
	"1-123",
}

var numberOrder = []string{
	"2.0", "2.0.a", "2-1", "2.0.2", "2.0.123", "2.1.0", "2.1-a", "2.1b", "2.1-c", "2.1-1", "2.1.0.1", "2.2",
	"2.123", "11.a2", "11.a11", "11.b2", "11.b11", "11.m2", "11.m11", "11", "11.a", "11b", "11c", "11m",
}

func checkOrder(t *testing.T, versions []string) {
	t.Helper()
	parsed := make([]Version, len(versions))
	for i, s := range versions {
		parsed[i] = MustParse(s)
	}
	for i := 1; i < len(parsed); i++ {
		low := parsed[i-1]
		for j := i; j < len(parsed); j++ {
			high := parsed[j]
			if low.Compare(high) >= 0 {
				t.Errorf("expected %s < %s", low, high)
			}
			if high.Compare(low) <= 0 {
				t.Errorf("expected %s > %s", high, low)
			}
		}
	}
}

func TestQualifierOrder(t *testing.T) { checkOrder(t, qualifierOrder) }

func TestNumberOrder(t *testing.T) { checkOrder(t, numberOrder) }

func TestPairOrder(t *testing.T) {
	pairs := [][2]string{
		{"1", "2"},
		{"1.5", "2"},
		{"1", "2.5"},
		{"1.0", "1.1"},
		{"1.0.0", "1.1"},
		{"1.0.1", "1.1"},
		{"1.0-alpha-1", "1.0"},
		{"1.0-alpha-1", "1.0-alpha-2"},
		{"1.0-alpha-1", "1.0-beta-1"},
		{"1.0-beta-1", "1.0-rc-1"},
		{"1.0-rc-1", "1.0"},
		{"1.0-beta-1", "1.0-SNAPSHOT"},
		{"1.0-SNAPSHOT", "1.0"},
		{"1.0-alpha-1-SNAPSHOT", "1.0-alpha-1"},
		{"1.0", "1.0-1"},
		{"1.0-1", "1.0-2"},
		{"2.0-1", "2.0.1"},
		{"2.0.1-klm", "2.0.1-lmn"},
		{"2.0.1", "2.0.1-xyz"},
		{"2.0.1-xyz", "2.0.1-123"},
		{"0.2", "1.0.7"},
		{"1.0.0.rc1", "1.0.0-rc2"},
		{"1.0", "1.0.1"},
		{"999999999999999999999", "1000000000000000000000"},
	}
	for _, p := range pairs {
		c, err := Compare(p[0], p[1])
		if err != nil {
			t.Fatalf("Compare(%q, %q) error: %v", p[0], p[1], err)
		}
		if c >= 0 {
			t.Errorf("Compare(%q, %q) = %d, want < 0", p[0], p[1], c)
		}
	}
}

func TestEqual(t *testing.T) {
	pairs := [][2]string{
		{"1", "1.0"},
		{"1", "1.0.0"},
		{"1", "1-0"},
		{"1.0", "1.0-0"},
		{"1a", "1-a"},
		{"1.0.0a", "1-a"},
		{"1cr", "1rc"},
		{"1a1", "1-alpha-1"},
		{"1b2", "1-beta-2"},
		{"1m3", "1-milestone-3"},
		{"1m3", "1MILESTONE3"},
		{"1-ga", "1"},
		{"1-final", "1.0"},
		{"1.0-release", "1"},
		{"1.007", "1.7"},
	}
	for _, p := range pairs {
		a, b := MustParse(p[0]), MustParse(p[1])
		if !a.Equal(b) {
			t.Errorf("expected %s == %s (canonical %q vs %q)", p[0], p[1], a.Canonical(), b.Canonical())
		}
		if a.Canonical() != b.Canonical() {
			t.Errorf("Canonical(%s) = %q, Canonical(%s) = %q", p[0], a.Canonical(), p[1], b.Canonical())
		}
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"1.0.0-GA":       "1",
		"1.0-alpha-1":    "1-alpha-1",
		"1.0-SNAPSHOT":   "1-snapshot",
		"2.1.0.1":        "2.1.0.1",
		"1.0.0.RC1":      "1-rc-1",
		"10.0.2-jre":     "10.0.2-jre",
		"1.0-20240102.1": "1-20240102.1",
	}
	for in, want := range tests {
		if got := MustParse(in).Canonical(); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "1.0 beta", "[1.0]", "1,0", "1.0)"} {
		_, err := Parse(in)
		var pe *mverrors.VersionParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error = %v, want *VersionParseError", in, err)
			continue
		}
		if pe.Input != in {
			t.Errorf("Parse(%q) error input = %q", in, pe.Input)
		}
	}
}

func TestSortVersions(t *testing.T) {
	in := []string{"1.0", "1.0-SNAPSHOT", "0.9", "1.0-rc-1", "1.1", "1.0-sp"}
	vs := make([]Version, len(in))
	for i, s := range in {
		vs[i] = MustParse(s)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
	want := []string{"0.9", "1.0-rc-1", "1.0-SNAPSHOT", "1.0", "1.0-sp", "1.1"}
	for i, v := range vs {
		if v.String() != want[i] {
			t.Errorf("sorted[%d] = %s, want %s", i, v, want[i])
		}
	}
	if m, ok := Max(vs); !ok || m.String() != "1.1" {
		t.Errorf("Max = %v, %v; want 1.1", m, ok)
	}
}

func TestZeroVersion(t *testing.T) {
	var zero Version
	if zero.Compare(MustParse("0")) != 0 {
		t.Error("zero Version should equal \"0\"")
	}
	if zero.Compare(MustParse("1")) >= 0 {
		t.Error("zero Version should sort before 1")
	}
}
