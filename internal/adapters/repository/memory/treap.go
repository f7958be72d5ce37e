package memory

import "hash/fnv"

// ranked is a treap ordered by rating DESC, then id ASC, so an in-order walk
// yields the leaderboard. Priorities are a hash of the id, which keeps the
// shape deterministic for a given set of rows.
type ranked[T any] struct {
	root *node[T]
}

type node[T any] struct {
	id     string
	rating float64
	prio   uint64
	row    T
	left   *node[T]
	right  *node[T]
	size   int
}

func nsize[T any](n *node[T]) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix[T any](n *node[T]) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aRating, aID) ranks before (bRating, bID).
func less(aRating float64, aID string, bRating float64, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight[T any](y *node[T]) *node[T] {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft[T any](x *node[T]) *node[T] {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert[T any](n *node[T], id string, rating float64, row T) *node[T] {
	if n == nil {
		return &node[T]{id: id, rating: rating, prio: priority(id), row: row, size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating, row)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating, row)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collect appends up to limit rows in rank order.
func collect[T any](n *node[T], limit int, out *[]T) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.row)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

func (t *ranked[T]) put(id string, rating float64, row T) {
	t.root = insert(t.root, id, rating, row)
}

func (t *ranked[T]) len() int { return nsize(t.root) }

func (t *ranked[T]) top(limit int) []T {
	if limit > t.len() {
		limit = t.len()
	}
	out := make([]T, 0, limit)
	collect(t.root, limit, &out)
	return out
}

func (t *ranked[T]) all() []T { return t.top(t.len()) }
