package topic

import "sync"

// Trie is a thread-safe trie of topic patterns.
// It provides O(k) lookup where k is the number of topic segments.
//
// The trie stores patterns with wildcards (* and **) and finds all
// patterns that match a given literal topic.
type Trie struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

// trieNode represents a node in the pattern trie.
type trieNode struct {
	children map[string]*trieNode
	pattern  Topic // set when a pattern terminates at this node
}

func newTrieNode() *trieNode {
	return &trieNode{
		children: make(map[string]*trieNode),
	}
}

// NewTrie creates a new topic pattern trie.
func NewTrie() *Trie {
	return &Trie{
		root: newTrieNode(),
	}
}

// Insert adds a pattern to the trie.
// Returns true if the pattern was added, false if it already existed.
func (t *Trie) Insert(pattern Topic) bool {
	if pattern == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Initialize root if zero-value Trie is used
	if t.root == nil {
		t.root = newTrieNode()
	}

	node := t.root
	for _, seg := range pattern.Segments() {
		child := node.children[seg]
		if child == nil {
			child = newTrieNode()
			node.children[seg] = child
		}
		node = child
	}

	if node.pattern != "" {
		return false
	}
	node.pattern = pattern
	t.size++
	return true
}

// matchState tracks the state during recursive matching.
type matchState struct {
	matches []Topic
	visited map[visitKey]struct{}
}

// visitKey memoizes (node, depth) pairs so "**" branches are explored once.
type visitKey struct {
	node  *trieNode
	depth int
}

// Match returns all patterns that match the given literal topic, each once.
// Order is unspecified.
func (t *Trie) Match(literal Topic) []Topic {
	if literal == "" {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == nil {
		return nil
	}

	state := &matchState{visited: make(map[visitKey]struct{})}
	t.matchRecursive(t.root, literal.Segments(), 0, state)
	return state.matches
}

func (t *Trie) matchRecursive(node *trieNode, segments []string, depth int, state *matchState) {
	key := visitKey{node: node, depth: depth}
	if _, seen := state.visited[key]; seen {
		return
	}
	state.visited[key] = struct{}{}

	if depth == len(segments) {
		if node.pattern != "" {
			state.matches = append(state.matches, node.pattern)
		}
		// A trailing ** can match zero additional segments
		if child := node.children[WildcardMulti]; child != nil {
			t.matchRecursive(child, segments, depth, state)
		}
		return
	}

	if child := node.children[segments[depth]]; child != nil {
		t.matchRecursive(child, segments, depth+1, state)
	}

	if child := node.children[WildcardSingle]; child != nil {
		t.matchRecursive(child, segments, depth+1, state)
	}

	if child := node.children[WildcardMulti]; child != nil {
		for i := depth; i <= len(segments); i++ {
			t.matchRecursive(child, segments, i, state)
		}
	}
}

// Size returns the number of patterns in the trie.
func (t *Trie) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}
