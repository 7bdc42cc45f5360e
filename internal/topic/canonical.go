package topic

import (
	"errors"
	"strings"
)

// ErrInvalidTopicSyntax is matched by every error returned from Canonicalize.
var ErrInvalidTopicSyntax = errors.New("invalid topic syntax")

// reservedChars may not appear anywhere in a topic.
const reservedChars = "#?$"

// SyntaxError describes why a topic string was rejected.
type SyntaxError struct {
	// Input is the raw string passed to Canonicalize.
	Input string

	// Reason is a short human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return "invalid topic " + quote(e.Input) + ": " + e.Reason
}

// Is allows errors.Is to match SyntaxError with ErrInvalidTopicSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrInvalidTopicSyntax
}

func quote(s string) string {
	return "\"" + s + "\""
}

// Canonicalize validates s and returns its canonical form.
//
// A single trailing separator is dropped. Empty input, empty segments,
// reserved characters and segments mixing "*" with other characters are
// rejected with a *SyntaxError. Runs of "**" collapse into one and "**/*"
// is reordered to "*/**" so equivalent patterns share one spelling.
func Canonicalize(s string) (Topic, error) {
	raw := s
	s = strings.TrimSuffix(s, Separator)
	if s == "" {
		return "", &SyntaxError{Input: raw, Reason: "empty topic"}
	}
	if strings.ContainsAny(s, reservedChars) {
		return "", &SyntaxError{Input: raw, Reason: "contains a reserved character (one of " + reservedChars + ")"}
	}

	segments := strings.Split(s, Separator)
	for _, seg := range segments {
		if seg == "" {
			return "", &SyntaxError{Input: raw, Reason: "empty segment"}
		}
		if strings.Contains(seg, WildcardSingle) && seg != WildcardSingle && seg != WildcardMulti {
			return "", &SyntaxError{Input: raw, Reason: "wildcard " + quote(seg) + " must occupy a whole segment"}
		}
	}

	return Join(normalizeWildcards(segments)...), nil
}

// MustCanonicalize is like Canonicalize but panics on error.
// It is intended for package-level topic constants.
func MustCanonicalize(s string) Topic {
	t, err := Canonicalize(s)
	if err != nil {
		panic(err)
	}
	return t
}

// normalizeWildcards rewrites every run of consecutive wildcard segments
// into its canonical spelling: the "*" segments first, followed by a single
// "**" when the run contains any. Both spellings match the same topics.
func normalizeWildcards(segments []string) []string {
	out := make([]string, 0, len(segments))
	singles, multi := 0, false

	flush := func() {
		for ; singles > 0; singles-- {
			out = append(out, WildcardSingle)
		}
		if multi {
			out = append(out, WildcardMulti)
			multi = false
		}
	}

	for _, seg := range segments {
		switch seg {
		case WildcardSingle:
			singles++
		case WildcardMulti:
			multi = true
		default:
			flush()
			out = append(out, seg)
		}
	}
	flush()
	return out
}
