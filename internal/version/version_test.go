package version

import "testing"

func TestCompareNumericSegments(t *testing.T) {
	if CompareStrings("v1.10.2", "v1.9.9") != 1 {
		t.Fatal("v1.10.2 should sort above v1.9.9 (integer compare, not lexicographic)")
	}
}

func TestCompareStrings(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"v1.0", "1.0", 0},
		{"1.0-beta2", "1.0", 0}, // suffix truncated before comparison
		{"1.2", "1.2.1", -1},
		{"1.2.1", "1.2", 1},
		{"0.3", "0.2.9", 1},
		{"2.0", "10.0", -1},
		{"1.0a", "1.0", 1},
		{"1.0a", "1.0b", -1},
		{"1.a", "1.2", 1}, // non-numeric sorts above numeric at the same position
		{"", "0.1", -1},
	}
	for _, tc := range cases {
		if got := CompareStrings(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareStrings(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareIsAntisymmetric(t *testing.T) {
	tags := []string{"v1.0", "1.0.1", "0.9", "1.0a", "1.a", "2", "1.10", "1.9.9", ""}
	for _, a := range tags {
		for _, b := range tags {
			ab := CompareStrings(a, b)
			ba := CompareStrings(b, a)
			if ab != -ba {
				t.Errorf("compare(%q,%q)=%d but compare(%q,%q)=%d", a, b, ab, b, a, ba)
			}
			if a == b && ab != 0 {
				t.Errorf("compare(%q,%q) = %d, want 0", a, b, ab)
			}
		}
	}
}

func TestCompareIsTransitive(t *testing.T) {
	tags := []string{"0.1", "0.2", "0.10", "1.0", "1.0a", "1.a", "1.2.1", "2.0"}
	for _, a := range tags {
		for _, b := range tags {
			for _, c := range tags {
				if CompareStrings(a, b) <= 0 && CompareStrings(b, c) <= 0 && CompareStrings(a, c) > 0 {
					t.Errorf("transitivity violated: %q <= %q <= %q but %q > %q", a, b, b, c, a)
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	key := Parse("v1.10rc2-dirty")
	want := []Segment{
		{Num: 1, Str: "1", Numeric: true},
		{Str: ".", Numeric: false},
		{Num: 10, Str: "10", Numeric: true},
		{Str: "rc", Numeric: false},
		{Num: 2, Str: "2", Numeric: true},
	}
	if len(key) != len(want) {
		t.Fatalf("Parse returned %d segments, want %d: %#v", len(key), len(want), key)
	}
	for i := range want {
		if key[i] != want[i] {
			t.Errorf("segment %d = %#v, want %#v", i, key[i], want[i])
		}
	}
}

func TestCanonical(t *testing.T) {
	if got := Canonical("1.2"); got != "v1.2.0" {
		t.Errorf("Canonical(1.2) = %q, want v1.2.0", got)
	}
	if got := Canonical("1.0a"); got != "1.0a" {
		t.Errorf("Canonical should pass non-semver tags through, got %q", got)
	}
}
