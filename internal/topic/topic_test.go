package topic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTopic_Segments(t *testing.T) {
	tests := []struct {
		topic    Topic
		expected []string
	}{
		{Topic("sensors/kitchen/temperature"), []string{"sensors", "kitchen", "temperature"}},
		{Topic("robot/*"), []string{"robot", "*"}},
		{Topic("single"), []string{"single"}},
		{Topic(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.topic.String(), func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, tt.topic.Segments()); diff != "" {
				t.Errorf("Segments() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	if got := Join("a", "b", "c"); got != "a/b/c" {
		t.Errorf("Join() = %q, want %q", got, "a/b/c")
	}
}

func TestTopic_IsLiteral(t *testing.T) {
	tests := []struct {
		topic Topic
		want  bool
	}{
		{"a/b/c", true},
		{"a", true},
		{"a/*", false},
		{"**", false},
		{"a/**/c", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.topic.IsLiteral(); got != tt.want {
			t.Errorf("%q.IsLiteral() = %v, want %v", tt.topic, got, tt.want)
		}
		if tt.topic != "" && tt.topic.IsPattern() == tt.want {
			t.Errorf("%q.IsPattern() should be the negation of IsLiteral()", tt.topic)
		}
	}
}

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"anything", "anything", true},
		{"anything", "anything/*", false},
		{"anything", "anything/**", true},
		{"anything/1", "anything/*", true},
		{"anything/1", "anything/**", true},
		{"anything/1/2", "anything/*", false},
		{"anything/1/2", "anything/**", true},
		{"a/b/c", "*/b/*", true},
		{"a/b/c", "**/c", true},
		{"a/b/c", "a/**/c", true},
		{"a/c", "a/**/c", true},
		{"a/b/c", "**", true},
		{"a/b/c", "a/b", false},
		{"a/b", "a/b/c", false},
	}

	for _, tt := range tests {
		if got := tt.topic.Matches(tt.pattern); got != tt.want {
			t.Errorf("%q.Matches(%q) = %v, want %v", tt.topic, tt.pattern, got, tt.want)
		}
	}
}
