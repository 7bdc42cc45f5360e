package topic

// Intersects reports whether a and b share at least one literal topic.
// Either side may be a literal or a pattern; both are expected in canonical
// form. Two literals intersect only when equal.
func Intersects(a, b Topic) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if a.IsLiteral() && b.IsLiteral() {
		return false
	}
	if a.IsLiteral() {
		return a.Matches(b)
	}
	if b.IsLiteral() {
		return b.Matches(a)
	}

	x := &intersection{
		a:    a.Segments(),
		b:    b.Segments(),
		memo: make(map[[2]int]bool),
	}
	return x.at(0, 0)
}

// intersection walks two segment lists, memoizing (i, j) positions so runs
// of "**" on both sides stay polynomial.
type intersection struct {
	a, b []string
	memo map[[2]int]bool
}

func (x *intersection) at(i, j int) bool {
	key := [2]int{i, j}
	if v, ok := x.memo[key]; ok {
		return v
	}

	var r bool
	switch {
	case i == len(x.a) && j == len(x.b):
		r = true
	case i == len(x.a):
		r = x.b[j] == WildcardMulti && x.at(i, j+1)
	case j == len(x.b):
		r = x.a[i] == WildcardMulti && x.at(i+1, j)
	case x.a[i] == WildcardMulti:
		// "**" matches nothing, or swallows one more segment of b.
		r = x.at(i+1, j) || x.at(i, j+1)
	case x.b[j] == WildcardMulti:
		r = x.at(i, j+1) || x.at(i+1, j)
	case x.a[i] == WildcardSingle || x.b[j] == WildcardSingle || x.a[i] == x.b[j]:
		r = x.at(i+1, j+1)
	}

	x.memo[key] = r
	return r
}
