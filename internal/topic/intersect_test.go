package topic

import "testing"

func TestIntersects(t *testing.T) {
	tests := []struct {
		a, b Topic
		want bool
	}{
		// literal / literal
		{"a/b", "a/b", true},
		{"a/b", "a/c", false},

		// literal / pattern
		{"a/b", "a/*", true},
		{"a", "a/**", true},
		{"a/b/c", "a/*", false},

		// pattern / pattern
		{"a/*", "*/b", true},
		{"a/*", "b/*", false},
		{"a/**", "**/z", true},
		{"a/*/c", "a/b/*", true},
		{"a/*/c", "a/*/d", false},
		{"a/*", "a/*/*", false},
		{"a/**", "a/*/*", true},
		{"**", "x/y/z", true},
		{"*/*", "**/a/b/c", false},
		{"*/*/**", "**/a/b/c", true},
		{"a/**/b", "a/b", true},
		{"a/**/b", "a/*/*/c", false},
		{"**/x/**", "**/y/**", true},

		// empty
		{"", "a", false},
	}

	for _, tt := range tests {
		if got := Intersects(tt.a, tt.b); got != tt.want {
			t.Errorf("Intersects(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := Intersects(tt.b, tt.a); got != tt.want {
			t.Errorf("Intersects(%q, %q) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestIntersects_DeepDoubleWildcards(t *testing.T) {
	a := Join("**", "a", "**", "a", "**", "a", "**", "a", "**", "b")
	b := Join("**", "a", "**", "a", "**", "a", "**", "a", "**", "c")
	if Intersects(a, b) {
		t.Errorf("Intersects(%q, %q) = true, want false", a, b)
	}
}
