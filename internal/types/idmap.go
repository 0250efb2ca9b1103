package types

// IDMap is the ordered source→target ID translation built up during a
// load. Entries are first-write-wins: once a source id maps to a
// target id the mapping never changes, which is what makes each upload
// pass monotone.
type IDMap struct {
	order []string
	m     map[string]string
}

// NewIDMap returns an empty map
func NewIDMap() *IDMap {
	return &IDMap{m: make(map[string]string)}
}

// Set records sourceID→targetID unless sourceID is already mapped.
// Returns true if the entry was added.
func (im *IDMap) Set(sourceID, targetID string) bool {
	if im.m == nil {
		im.m = make(map[string]string)
	}
	if _, ok := im.m[sourceID]; ok {
		return false
	}
	im.m[sourceID] = targetID
	im.order = append(im.order, sourceID)
	return true
}

// Get returns the target id for a source id
func (im *IDMap) Get(sourceID string) (string, bool) {
	if im == nil || im.m == nil {
		return "", false
	}
	v, ok := im.m[sourceID]
	return v, ok
}

// Has reports whether a source id is mapped
func (im *IDMap) Has(sourceID string) bool {
	_, ok := im.Get(sourceID)
	return ok
}

// Len returns the number of entries
func (im *IDMap) Len() int {
	if im == nil {
		return 0
	}
	return len(im.m)
}

// SourceIDs returns the mapped source ids in insertion order
func (im *IDMap) SourceIDs() []string {
	if im == nil {
		return nil
	}
	out := make([]string, len(im.order))
	copy(out, im.order)
	return out
}

// Clone returns an independent copy preserving insertion order
func (im *IDMap) Clone() *IDMap {
	c := NewIDMap()
	if im == nil {
		return c
	}
	for _, src := range im.order {
		c.Set(src, im.m[src])
	}
	return c
}

// Reverse returns a target→source lookup. When several source ids map
// to the same target (default mappings do this), the earliest entry
// wins so round-trip dumps rewrite to a stable source id.
func (im *IDMap) Reverse() map[string]string {
	rev := make(map[string]string)
	if im == nil {
		return rev
	}
	for _, src := range im.order {
		tgt := im.m[src]
		if _, ok := rev[tgt]; !ok {
			rev[tgt] = src
		}
	}
	return rev
}
