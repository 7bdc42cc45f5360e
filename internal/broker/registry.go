package broker

import (
	"sort"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/topicstore/internal/topic"
)

// DefaultMatchCacheSize bounds the number of literal topics whose match
// lists are memoized per registry.
const DefaultMatchCacheSize = 4096

// registry is an append-only list of pattern-addressed entries with a
// memoized literal-topic lookup.
//
// Every Add bumps gen under the write lock. Cached lists carry the gen they
// were computed against and are only served while it is still current.
type registry[E any] struct {
	mu        sync.RWMutex
	entries   []E
	byPattern map[topic.Topic][]int
	trie      *topic.Trie

	gen   atomic.Uint64
	cache *lru.Cache[topic.Topic, matchList[E]]

	hits   atomic.Uint64
	misses atomic.Uint64
}

type matchList[E any] struct {
	gen     uint64
	entries []E
}

func newRegistry[E any](cacheSize int) *registry[E] {
	if cacheSize <= 0 {
		cacheSize = DefaultMatchCacheSize
	}
	cache, err := lru.New[topic.Topic, matchList[E]](cacheSize)
	if err != nil {
		// only fails for non-positive sizes
		panic(err)
	}
	return &registry[E]{
		byPattern: make(map[topic.Topic][]int),
		trie:      topic.NewTrie(),
		cache:     cache,
	}
}

// add registers e under pattern and returns its sequence number.
func (r *registry[E]) add(pattern topic.Topic, e E) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := len(r.entries)
	r.entries = append(r.entries, e)
	r.byPattern[pattern] = append(r.byPattern[pattern], seq)
	r.trie.Insert(pattern)
	r.gen.Add(1)
	return seq
}

// match returns the entries whose pattern matches the literal topic t, in
// registration order. The returned slice is shared and must not be modified.
func (r *registry[E]) match(t topic.Topic) []E {
	if cached, ok := r.cache.Get(t); ok && cached.gen == r.gen.Load() {
		r.hits.Add(1)
		return cached.entries
	}
	r.misses.Add(1)

	r.mu.RLock()
	gen := r.gen.Load()
	var seqs []int
	for _, p := range r.trie.Match(t) {
		seqs = append(seqs, r.byPattern[p]...)
	}
	sort.Ints(seqs)
	entries := make([]E, len(seqs))
	for i, seq := range seqs {
		entries[i] = r.entries[seq]
	}
	r.mu.RUnlock()

	r.cache.Add(t, matchList[E]{gen: gen, entries: entries})
	return entries
}

func (r *registry[E]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// each calls fn for every entry in registration order.
func (r *registry[E]) each(fn func(E)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		fn(e)
	}
}

// patterns returns the number of distinct patterns registered.
func (r *registry[E]) patterns() int {
	return r.trie.Size()
}

func (r *registry[E]) generation() uint64 {
	return r.gen.Load()
}

func (r *registry[E]) cacheStats() (hits, misses uint64) {
	return r.hits.Load(), r.misses.Load()
}
