package topic

import "strings"

// Topic is a slash-separated hierarchical address.
// Examples: "sensors/kitchen/temperature", "robot/*/status", "logs/**"
type Topic string

// Wildcard constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator is the character used to separate topic segments.
	Separator = "/"
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// IsLiteral returns true if no segment of the topic is a wildcard.
// The empty topic is not literal.
func (t Topic) IsLiteral() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == WildcardSingle || seg == WildcardMulti {
			return false
		}
	}
	return true
}

// IsPattern returns true if the topic contains at least one wildcard segment.
func (t Topic) IsPattern() bool {
	return t != "" && !t.IsLiteral()
}

// Matches returns true if this literal topic matches the given pattern.
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

// matchSegments performs recursive pattern matching on topic segments.
func matchSegments(topic, pattern []string) bool {
	ti, pi := 0, 0

	for pi < len(pattern) {
		if pattern[pi] == WildcardMulti {
			// Try matching 0, 1, 2, ... remaining topic segments
			for ti <= len(topic) {
				if matchSegments(topic[ti:], pattern[pi+1:]) {
					return true
				}
				ti++
			}
			return false
		}

		if ti >= len(topic) {
			return false
		}

		if pattern[pi] == WildcardSingle || pattern[pi] == topic[ti] {
			ti++
			pi++
			continue
		}
		return false
	}

	return ti == len(topic)
}

// Join joins multiple segments into a topic.
func Join(segments ...string) Topic {
	return Topic(strings.Join(segments, Separator))
}
