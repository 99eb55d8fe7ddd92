// Package version orders free-form release tags. Upstream driver tags are
// not always canonical semver ("v0.3", "1.0-beta2"), so parsing splits a
// tag into alternating numeric and non-numeric segments and compares
// segment by segment.
package version

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Segment is one run of digits or non-digits from a parsed tag.
type Segment struct {
	Num     int
	Str     string
	Numeric bool
}

// Key is the comparable form of a version string.
type Key []Segment

// Parse normalizes a version string into a Key: a leading "v" is
// stripped and anything from the first "-" on (pre-release or build
// suffix) is truncated before segmentation.
func Parse(v string) Key {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	var key Key
	for len(v) > 0 {
		j := 0
		numeric := isDigit(v[0])
		for j < len(v) && isDigit(v[j]) == numeric {
			j++
		}
		seg := Segment{Str: v[:j], Numeric: numeric}
		if numeric {
			seg.Num, _ = strconv.Atoi(v[:j])
		}
		key = append(key, seg)
		v = v[j:]
	}
	return key
}

// Compare returns -1, 0, or 1 ordering a against b. Numeric segments
// compare as integers, non-numeric as strings. When a numeric segment
// lines up against a non-numeric one the non-numeric side sorts
// greater; the rule is arbitrary but keeps the order total. A key that
// is a strict prefix of another is smaller ("1.2" < "1.2.1").
func Compare(a, b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		sa, sb := a[i], b[i]
		switch {
		case sa.Numeric && sb.Numeric:
			if sa.Num != sb.Num {
				return sign(sa.Num - sb.Num)
			}
		case !sa.Numeric && !sb.Numeric:
			if c := strings.Compare(sa.Str, sb.Str); c != 0 {
				return c
			}
		case sa.Numeric:
			return -1
		default:
			return 1
		}
	}
	return sign(len(a) - len(b))
}

// CompareStrings parses and compares two raw version strings.
func CompareStrings(a, b string) int {
	return Compare(Parse(a), Parse(b))
}

// Canonical returns the canonical semver form of v when v is valid
// semver (with or without the leading "v"), and v unchanged otherwise.
// Used for display only; ordering always goes through Compare.
func Canonical(v string) string {
	w := v
	if !strings.HasPrefix(w, "v") {
		w = "v" + w
	}
	if semver.IsValid(w) {
		return semver.Canonical(w)
	}
	return v
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
