package validate

import "jjc/internal/types"

// unionFind joins the types of expressions that must agree at three sites:
// the branches of an if, the breaks of a loop, and the operands of a binary
// operator. A var binds to a concrete types.Type or merges with another var;
// resolve reports false for a var left unbound (checkLoop reads that as
// Never).
// Types are otherwise inferred bottom-up by direct recursion; expressions
// outside those three sites get no var.
type unionFind struct {
	parent []int
	rank   []int
	bound  []*types.Type
}

func newUnionFind() *unionFind { return &unionFind{} }

// fresh allocates a new unification variable with no bound type yet.
func (u *unionFind) fresh() int {
	u.parent = append(u.parent, len(u.parent))
	u.rank = append(u.rank, 0)
	u.bound = append(u.bound, nil)
	return len(u.parent) - 1
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// bind unifies var x with concrete type t, failing if x was already bound to
// a different type.
func (u *unionFind) bindType(x int, t types.Type) bool {
	r := u.find(x)
	if u.bound[r] == nil {
		u.bound[r] = &t
		return true
	}
	return types.Equal(*u.bound[r], t)
}

// union merges x and y, failing if both are already bound to different
// types.
func (u *unionFind) union(x, y int) bool {
	rx, ry := u.find(x), u.find(y)
	if rx == ry {
		return true
	}
	if u.bound[rx] != nil && u.bound[ry] != nil && !types.Equal(*u.bound[rx], *u.bound[ry]) {
		return false
	}
	bound := u.bound[rx]
	if bound == nil {
		bound = u.bound[ry]
	}
	if u.rank[rx] < u.rank[ry] {
		rx, ry = ry, rx
	}
	u.parent[ry] = rx
	u.bound[rx] = bound
	if u.rank[rx] == u.rank[ry] {
		u.rank[rx]++
	}
	return true
}

// resolve returns x's bound type, or false if it is still an unbound
// unification variable.
func (u *unionFind) resolve(x int) (types.Type, bool) {
	r := u.find(x)
	if u.bound[r] == nil {
		return types.Type{}, false
	}
	return *u.bound[r], true
}
