package vault

// ring is a fixed-capacity circular buffer of values.
type ring struct {
	buf   []any
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]any, capacity)}
}

func (r *ring) push(v any) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) newest() any {
	return r.buf[(r.start+r.n-1)%len(r.buf)]
}

func (r *ring) values() []any {
	out := make([]any, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
