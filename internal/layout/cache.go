package layout

import "cbind/internal/decl"

type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

type cache struct {
	m map[decl.NodeID]*cacheEntry
}

func newCache() *cache {
	return &cache{m: make(map[decl.NodeID]*cacheEntry, 128)}
}

func (c *cache) get(id decl.NodeID) (*cacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.m[id]
	return v, ok
}

func (c *cache) put(id decl.NodeID, v *cacheEntry) {
	if c == nil {
		return
	}
	c.m[id] = v
}
