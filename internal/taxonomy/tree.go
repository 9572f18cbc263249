// Package taxonomy provides an in-memory view of the category forest used
// by the listing query pipeline. A Tree is immutable once built; callers
// rebuild it when the category set changes and pass it down explicitly.
package taxonomy

import (
	"strings"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

type node struct {
	slug   string
	parent int
}

// Tree is an arena of category nodes with parent indices, keyed by
// lower-cased slug.
type Tree struct {
	nodes  []node
	bySlug map[string]int
	byID   map[uint]int
}

// NewTree builds a tree from a flat category set. Categories whose parent
// is missing from the set are treated as roots.
func NewTree(categories []models.Category) *Tree {
	t := &Tree{
		nodes:  make([]node, 0, len(categories)),
		bySlug: make(map[string]int, len(categories)),
		byID:   make(map[uint]int, len(categories)),
	}

	for _, category := range categories {
		slug := strings.ToLower(strings.TrimSpace(category.Slug))
		if slug == "" {
			continue
		}
		index := len(t.nodes)
		t.nodes = append(t.nodes, node{slug: slug, parent: -1})
		t.bySlug[slug] = index
		t.byID[category.ID] = index
	}

	for _, category := range categories {
		slug := strings.ToLower(strings.TrimSpace(category.Slug))
		index, ok := t.bySlug[slug]
		if !ok || category.ParentID == nil {
			continue
		}
		if parentIndex, ok := t.byID[*category.ParentID]; ok && parentIndex != index {
			t.nodes[index].parent = parentIndex
		}
	}

	return t
}

// Len reports the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Contains reports whether the slug names a known category.
func (t *Tree) Contains(slug string) bool {
	if t == nil {
		return false
	}
	_, ok := t.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	return ok
}

// IsAncestor reports whether ancestorSlug appears anywhere above
// descendantSlug in the tree. Comparison is case-insensitive. Missing nodes
// yield false rather than an error, and the walk is bounded by the node
// count so a malformed cycle fails closed.
func (t *Tree) IsAncestor(ancestorSlug, descendantSlug string) bool {
	if t == nil {
		return false
	}

	ancestor := strings.ToLower(strings.TrimSpace(ancestorSlug))
	descendant := strings.ToLower(strings.TrimSpace(descendantSlug))
	if ancestor == "" || descendant == "" || ancestor == descendant {
		return false
	}

	index, ok := t.bySlug[descendant]
	if !ok {
		return false
	}

	for steps := 0; steps < len(t.nodes); steps++ {
		parent := t.nodes[index].parent
		if parent < 0 {
			return false
		}
		if t.nodes[parent].slug == ancestor {
			return true
		}
		index = parent
	}

	return false
}

// PathMatch is the structural fallback for slug hierarchies encoded with a
// '/' convention ("parent/child"). It matches when either slug is a path
// prefix of the other.
func PathMatch(a, b string) bool {
	left := strings.ToLower(strings.TrimSpace(a))
	right := strings.ToLower(strings.TrimSpace(b))
	if left == "" || right == "" {
		return false
	}
	return strings.HasPrefix(right, left+"/") || strings.HasPrefix(left, right+"/")
}

// RootOf walks to the root of the slug's ancestor chain. The second return
// is false when the slug is unknown; a cycle returns the last node reached
// before the walk bound.
func (t *Tree) RootOf(slug string) (string, bool) {
	if t == nil {
		return "", false
	}

	index, ok := t.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return "", false
	}

	for steps := 0; steps < len(t.nodes); steps++ {
		parent := t.nodes[index].parent
		if parent < 0 {
			return t.nodes[index].slug, true
		}
		index = parent
	}

	return t.nodes[index].slug, true
}

// Children returns the slugs whose direct parent is the given slug.
func (t *Tree) Children(slug string) []string {
	if t == nil {
		return nil
	}

	parentIndex, ok := t.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return nil
	}

	var children []string
	for _, n := range t.nodes {
		if n.parent == parentIndex {
			children = append(children, n.slug)
		}
	}
	return children
}
