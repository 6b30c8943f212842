package thread

// unionFind is a disjoint-set structure over article ids with union by rank
// and path compression. Article ids are sparse, so roots are tracked in maps
// rather than a dense arena.
type unionFind struct {
	parent map[int64]int64
	rank   map[int64]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[int64]int64),
		rank:   make(map[int64]int),
	}
}

// add registers an id as its own singleton set if unknown.
func (u *unionFind) add(id int64) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
}

// contains reports whether the id has been registered.
func (u *unionFind) contains(id int64) bool {
	_, ok := u.parent[id]
	return ok
}

// find returns the set root for id, compressing the path.
func (u *unionFind) find(id int64) int64 {
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

// union merges the sets containing a and b.
func (u *unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
