// Package topic provides hierarchical topic types and pattern matching for the store.
//
// # Topic Format
//
// Topics use slash-separated segments to create hierarchical namespaces:
//
//	sensors/kitchen/temperature
//	robot/arm/joint/3/angle
//	status
//
// # Wildcards
//
// Two wildcard segments are supported:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	sensors/*             matches sensors/kitchen (not sensors/kitchen/temperature)
//	sensors/**            matches sensors, sensors/kitchen, sensors/a/b/c
//	*/temperature         matches kitchen/temperature, garage/temperature
//	**                    matches everything
//
// A topic without wildcard segments is literal. Only literal topics can be
// written to; patterns are used for reads, subscriptions and middleware.
//
// # Canonical Form
//
// Canonicalize validates a raw string and rewrites it into the canonical form
// used as a map and cache key: a trailing separator is removed, "**/**"
// collapses to "**" and "**/*" is rewritten to the equivalent "*/**".
//
// # Intersection
//
// Intersects reports whether two topics (literal or pattern) share at least one
// literal topic. For a literal and a pattern this reduces to Matches.
//
// # Pattern Trie
//
// The Trie type indexes patterns and returns every stored pattern that
// matches a literal topic in O(k) for k segments in the common case:
//
//	tr := topic.NewTrie()
//	tr.Insert(topic.Topic("sensors/*"))
//	tr.Insert(topic.Topic("sensors/**"))
//
//	matches := tr.Match(topic.Topic("sensors/kitchen"))
//	// matches contains both patterns
package topic
