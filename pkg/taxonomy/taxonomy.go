// Package taxonomy implements a named directed acyclic graph of categories,
// per spec §3 and §4.5. Categories are kept in an arena keyed by name, with
// all cross-references stored as name strings rather than pointers so the
// graph serializes trivially and has no cycles to break during teardown.
package taxonomy

import "github.com/cuemby/restpose/pkg/rperrors"

// Category is one node's full record: direct and transitive edges in both
// directions.
type Category struct {
	Parents     map[string]struct{}
	Ancestors   map[string]struct{}
	Children    map[string]struct{}
	Descendants map[string]struct{}
}

func newCategory() *Category {
	return &Category{
		Parents:     make(map[string]struct{}),
		Ancestors:   make(map[string]struct{}),
		Children:    make(map[string]struct{}),
		Descendants: make(map[string]struct{}),
	}
}

// Taxonomy is one named category hierarchy.
type Taxonomy struct {
	Name       string
	categories map[string]*Category
}

// New returns an empty taxonomy named name.
func New(name string) *Taxonomy {
	return &Taxonomy{Name: name, categories: make(map[string]*Category)}
}

// Modified is the set-of-names return contract every mutating operation
// uses: every category whose stored record changed as a result of the call.
type Modified map[string]struct{}

func newModified() Modified { return make(Modified) }

func (m Modified) add(name string) { m[name] = struct{}{} }

// Names returns the modified set as a sorted-independent slice.
func (m Modified) Names() []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	return out
}

// Has reports whether name exists in this taxonomy.
func (t *Taxonomy) Has(name string) bool {
	_, ok := t.categories[name]
	return ok
}

// Get returns the category record for name, if present.
func (t *Taxonomy) Get(name string) (*Category, bool) {
	c, ok := t.categories[name]
	return c, ok
}

// Names returns every category name in the taxonomy, unordered.
func (t *Taxonomy) Names() []string {
	out := make([]string, 0, len(t.categories))
	for n := range t.categories {
		out = append(out, n)
	}
	return out
}

func (t *Taxonomy) ensure(name string) *Category {
	c, ok := t.categories[name]
	if !ok {
		c = newCategory()
		t.categories[name] = c
	}
	return c
}

// Add inserts name if missing, recording it in modified when it is new.
func (t *Taxonomy) Add(name string, modified Modified) {
	if _, ok := t.categories[name]; ok {
		return
	}
	t.categories[name] = newCategory()
	modified.add(name)
}

// NewModifiedSet returns a fresh Modified set for use with the mutating
// operations below.
func NewModifiedSet() Modified { return newModified() }

// AddParent adds a parent edge from child to parent, recomputing closures.
// It rejects a self-edge and any edge that would create a cycle.
func (t *Taxonomy) AddParent(child, parent string, modified Modified) error {
	if child == parent {
		return rperrors.Invalidf("taxonomy: category %q cannot be its own parent", child)
	}

	childCat, childExists := t.categories[child]
	if childExists {
		if _, isDescendant := childCat.Descendants[parent]; isDescendant {
			return rperrors.Invalidf("taxonomy: adding %q as parent of %q would create a cycle", parent, child)
		}
	}

	t.Add(child, modified)
	t.Add(parent, modified)
	childCat = t.categories[child]
	parentCat := t.categories[parent]

	if _, already := childCat.Parents[parent]; already {
		return nil
	}

	childCat.Parents[parent] = struct{}{}
	parentCat.Children[child] = struct{}{}
	modified.add(child)
	modified.add(parent)

	// child (and everything descending from it) gains parent's ancestors
	// plus parent itself.
	newAncestors := map[string]struct{}{parent: {}}
	for a := range parentCat.Ancestors {
		newAncestors[a] = struct{}{}
	}
	t.propagateAncestors(child, newAncestors, modified)

	// parent (and everything ancestor to it) gains child's descendants
	// plus child itself.
	newDescendants := map[string]struct{}{child: {}}
	for d := range childCat.Descendants {
		newDescendants[d] = struct{}{}
	}
	t.propagateDescendants(parent, newDescendants, modified)

	return nil
}

// propagateAncestors adds newAncestors to start and to every descendant of
// start, recording every category whose ancestor set actually grew.
func (t *Taxonomy) propagateAncestors(start string, newAncestors map[string]struct{}, modified Modified) {
	targets := map[string]struct{}{start: {}}
	if cat, ok := t.categories[start]; ok {
		for d := range cat.Descendants {
			targets[d] = struct{}{}
		}
	}
	for name := range targets {
		cat := t.categories[name]
		changed := false
		for a := range newAncestors {
			if a == name {
				continue
			}
			if _, has := cat.Ancestors[a]; !has {
				cat.Ancestors[a] = struct{}{}
				changed = true
			}
		}
		if changed {
			modified.add(name)
		}
	}
}

// propagateDescendants adds newDescendants to start and to every ancestor
// of start, recording every category whose descendant set actually grew.
func (t *Taxonomy) propagateDescendants(start string, newDescendants map[string]struct{}, modified Modified) {
	targets := map[string]struct{}{start: {}}
	if cat, ok := t.categories[start]; ok {
		for a := range cat.Ancestors {
			targets[a] = struct{}{}
		}
	}
	for name := range targets {
		cat := t.categories[name]
		changed := false
		for d := range newDescendants {
			if d == name {
				continue
			}
			if _, has := cat.Descendants[d]; !has {
				cat.Descendants[d] = struct{}{}
				changed = true
			}
		}
		if changed {
			modified.add(name)
		}
	}
}

// Remove drops name and all its edges, rebuilding the closures of every
// former neighbour from scratch by BFS.
func (t *Taxonomy) Remove(name string, modified Modified) {
	cat, ok := t.categories[name]
	if !ok {
		return
	}

	formerAncestors := keys(cat.Ancestors)
	formerDescendants := keys(cat.Descendants)

	for p := range cat.Parents {
		delete(t.categories[p].Children, name)
	}
	for c := range cat.Children {
		delete(t.categories[c].Parents, name)
	}
	delete(t.categories, name)
	modified.add(name)

	for _, a := range formerAncestors {
		t.rebuildDescendants(a, modified)
	}
	for _, d := range formerDescendants {
		t.rebuildAncestors(d, modified)
	}
}

// RemoveParent drops just the child->parent edge, recomputing the four
// closures touched by the edge's removal.
func (t *Taxonomy) RemoveParent(child, parent string, modified Modified) {
	childCat, ok := t.categories[child]
	if !ok {
		return
	}
	parentCat, ok := t.categories[parent]
	if !ok {
		return
	}
	if _, has := childCat.Parents[parent]; !has {
		return
	}

	delete(childCat.Parents, parent)
	delete(parentCat.Children, child)
	modified.add(child)
	modified.add(parent)

	t.rebuildAncestors(child, modified)
	descendantsOfChild := keys(childCat.Descendants)
	for _, d := range descendantsOfChild {
		t.rebuildAncestors(d, modified)
	}

	t.rebuildDescendants(parent, modified)
	ancestorsOfParent := keys(parentCat.Ancestors)
	for _, a := range ancestorsOfParent {
		t.rebuildDescendants(a, modified)
	}
}

// rebuildAncestors recomputes name's ancestor set from scratch via BFS over
// Parents, recording name in modified if the set changed.
func (t *Taxonomy) rebuildAncestors(name string, modified Modified) {
	cat, ok := t.categories[name]
	if !ok {
		return
	}
	fresh := make(map[string]struct{})
	queue := keys(cat.Parents)
	seen := make(map[string]struct{})
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, done := seen[p]; done {
			continue
		}
		seen[p] = struct{}{}
		fresh[p] = struct{}{}
		if pc, ok := t.categories[p]; ok {
			queue = append(queue, keys(pc.Parents)...)
		}
	}
	if !setsEqual(cat.Ancestors, fresh) {
		cat.Ancestors = fresh
		modified.add(name)
	}
}

// rebuildDescendants recomputes name's descendant set from scratch via BFS
// over Children.
func (t *Taxonomy) rebuildDescendants(name string, modified Modified) {
	cat, ok := t.categories[name]
	if !ok {
		return
	}
	fresh := make(map[string]struct{})
	queue := keys(cat.Children)
	seen := make(map[string]struct{})
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if _, done := seen[c]; done {
			continue
		}
		seen[c] = struct{}{}
		fresh[c] = struct{}{}
		if cc, ok := t.categories[c]; ok {
			queue = append(queue, keys(cc.Children)...)
		}
	}
	if !setsEqual(cat.Descendants, fresh) {
		cat.Descendants = fresh
		modified.add(name)
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
