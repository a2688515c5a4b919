package version

import (
	"strconv"
	"strings"
)

// item is one parsed token of a version. other may be nil, meaning the
// other version ran out of items at this position.
type item interface {
	compare(other item) int
	isNull() bool
	String() string
}

// qualifiers lists the known qualifiers in ascending order. The empty
// qualifier is the release itself.
var qualifiers = []string{"alpha", "beta", "milestone", "rc", "snapshot", "", "sp"}

var releaseRank = strconv.Itoa(indexOf(qualifiers, ""))

var aliases = map[string]string{
	"ga":      "",
	"final":   "",
	"release": "",
	"cr":      "rc",
}

// =============================================================================
// Numbers
// =============================================================================

// numberItem holds decimal digits without leading zeros, so ordering is by
// length first and then lexical, which is exact for any magnitude.
type numberItem string

func newNumberItem(digits string) numberItem {
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	return numberItem(digits)
}

func (n numberItem) isNull() bool   { return n == "0" }
func (n numberItem) String() string { return string(n) }

func (n numberItem) compare(other item) int {
	switch o := other.(type) {
	case nil:
		if n.isNull() {
			return 0 // 1.0 == 1
		}
		return 1 // 1.1 > 1
	case numberItem:
		if len(n) != len(o) {
			if len(n) < len(o) {
				return -1
			}
			return 1
		}
		return strings.Compare(string(n), string(o))
	case stringItem:
		return 1 // 1.1 > 1-sp
	case *listItem:
		return 1 // 1.1 > 1-1
	}
	return 0
}

// =============================================================================
// Qualifiers
// =============================================================================

type stringItem string

func newStringItem(s string, followedByDigit bool) stringItem {
	if followedByDigit && len(s) == 1 {
		switch s[0] {
		case 'a':
			s = "alpha"
		case 'b':
			s = "beta"
		case 'm':
			s = "milestone"
		}
	}
	if alias, ok := aliases[s]; ok {
		s = alias
	}
	return stringItem(s)
}

func (s stringItem) isNull() bool   { return s == "" }
func (s stringItem) String() string { return string(s) }

// comparableQualifier maps known qualifiers to their rank and unknown ones
// past every known rank, keeping them lexically ordered among themselves.
func comparableQualifier(q string) string {
	i := indexOf(qualifiers, q)
	if i < 0 {
		return strconv.Itoa(len(qualifiers)) + "-" + q
	}
	return strconv.Itoa(i)
}

func (s stringItem) compare(other item) int {
	switch o := other.(type) {
	case nil:
		return strings.Compare(comparableQualifier(string(s)), releaseRank) // 1-rc < 1, 1-sp > 1
	case numberItem:
		return -1 // 1.any < 1.1
	case stringItem:
		return strings.Compare(comparableQualifier(string(s)), comparableQualifier(string(o)))
	case *listItem:
		return -1 // 1.any < 1-1
	}
	return 0
}

// =============================================================================
// Lists
// =============================================================================

// listItem is a sublist started by '-' or by a digit/letter transition.
type listItem struct {
	items []item
}

func (l *listItem) add(it item) { l.items = append(l.items, it) }

func (l *listItem) isNull() bool { return len(l.items) == 0 }

// normalize drops trailing null items ("1.0.0" -> "1") but stops at the
// first non-null item that is not itself a list.
func (l *listItem) normalize() {
	for i := len(l.items) - 1; i >= 0; i-- {
		last := l.items[i]
		if last.isNull() {
			l.items = append(l.items[:i], l.items[i+1:]...)
		} else if _, ok := last.(*listItem); !ok {
			break
		}
	}
}

func (l *listItem) compare(other item) int {
	switch o := other.(type) {
	case nil:
		for _, it := range l.items {
			if r := it.compare(nil); r != 0 {
				return r
			}
		}
		return 0
	case numberItem:
		return -1 // 1-1 < 1.0.x
	case stringItem:
		return 1 // 1-1 > 1-sp
	case *listItem:
		for i := 0; i < len(l.items) || i < len(o.items); i++ {
			var left, right item
			if i < len(l.items) {
				left = l.items[i]
			}
			if i < len(o.items) {
				right = o.items[i]
			}
			var r int
			switch {
			case left == nil:
				r = -right.compare(nil)
			default:
				r = left.compare(right)
			}
			if r != 0 {
				return r
			}
		}
		return 0
	}
	return 0
}

func (l *listItem) String() string {
	var b strings.Builder
	for _, it := range l.items {
		if b.Len() > 0 {
			if _, ok := it.(*listItem); ok {
				b.WriteByte('-')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString(it.String())
	}
	return b.String()
}

// =============================================================================
// Parsing
// =============================================================================

func parseItems(version string) *listItem {
	version = strings.ToLower(version)

	root := &listItem{}
	list := root
	stack := []*listItem{root}
	push := func() {
		next := &listItem{}
		list.add(next)
		list = next
		stack = append(stack, next)
	}

	isDigit := false
	start := 0
	for i := 0; i < len(version); i++ {
		c := version[i]
		switch {
		case c == '.' || c == '-' || c == '+':
			if i == start {
				list.add(numberItem("0"))
			} else {
				list.add(parseItem(isDigit, version[start:i]))
			}
			start = i + 1
			if c != '.' || !isDigit {
				push()
			}
		case c >= '0' && c <= '9':
			if !isDigit && i > start {
				// 1.0.0.RC1 < 1.0.0-RC2: treat .RC as -RC
				if len(list.items) > 0 {
					push()
				}
				list.add(newStringItem(version[start:i], true))
				start = i
				push()
			}
			isDigit = true
		default:
			if isDigit && i > start {
				list.add(parseItem(true, version[start:i]))
				start = i
				push()
			}
			isDigit = false
		}
	}

	if len(version) > start {
		if !isDigit && len(list.items) > 0 {
			push()
		}
		list.add(parseItem(isDigit, version[start:]))
	}

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].normalize()
	}
	return root
}

func parseItem(isDigit bool, buf string) item {
	if isDigit {
		return newNumberItem(buf)
	}
	return newStringItem(buf, false)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
