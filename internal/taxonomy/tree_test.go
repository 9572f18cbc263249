package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func sampleCategories() []models.Category {
	return []models.Category{
		{ID: 1, Slug: "vehicles", Name: "Vehicles"},
		{ID: 2, Slug: "cars", Name: "Cars", ParentID: uintPtr(1)},
		{ID: 3, Slug: "electric-cars", Name: "Electric Cars", ParentID: uintPtr(2)},
		{ID: 4, Slug: "electronics", Name: "Electronics"},
		{ID: 5, Slug: "phones", Name: "Phones", ParentID: uintPtr(4)},
	}
}

func TestIsAncestorWalksFullChain(t *testing.T) {
	tree := NewTree(sampleCategories())

	require.True(t, tree.IsAncestor("cars", "electric-cars"))
	require.True(t, tree.IsAncestor("vehicles", "electric-cars"), "ancestor matching must be transitive")
	require.True(t, tree.IsAncestor("vehicles", "cars"))
	require.False(t, tree.IsAncestor("electronics", "electric-cars"))
	require.False(t, tree.IsAncestor("electric-cars", "vehicles"), "direction matters")
}

func TestIsAncestorIsCaseInsensitive(t *testing.T) {
	tree := NewTree(sampleCategories())

	require.True(t, tree.IsAncestor("Vehicles", "Electric-Cars"))
	require.True(t, tree.IsAncestor("CARS", "electric-cars"))
}

func TestIsAncestorToleratesMissingNodes(t *testing.T) {
	tree := NewTree(sampleCategories())

	require.False(t, tree.IsAncestor("vehicles", "boats"))
	require.False(t, tree.IsAncestor("unknown", "cars"))
	require.False(t, tree.IsAncestor("", "cars"))
	require.False(t, tree.IsAncestor("cars", "cars"), "a node is not its own ancestor")
}

func TestIsAncestorFailsClosedOnCycle(t *testing.T) {
	// a -> b -> a is malformed input; the walk must terminate and return false.
	cats := []models.Category{
		{ID: 1, Slug: "a", ParentID: uintPtr(2)},
		{ID: 2, Slug: "b", ParentID: uintPtr(1)},
	}
	tree := NewTree(cats)

	require.False(t, tree.IsAncestor("missing", "a"))
	require.True(t, tree.IsAncestor("b", "a"))
}

func TestPathMatch(t *testing.T) {
	require.True(t, PathMatch("cars", "cars/electric"))
	require.True(t, PathMatch("cars/electric", "cars"))
	require.False(t, PathMatch("cars", "carsandmore"))
	require.False(t, PathMatch("", "cars"))
	require.True(t, PathMatch("Cars", "cars/Electric"))
}

func TestRootOfAndChildren(t *testing.T) {
	tree := NewTree(sampleCategories())

	root, ok := tree.RootOf("electric-cars")
	require.True(t, ok)
	require.Equal(t, "vehicles", root)

	_, ok = tree.RootOf("missing")
	require.False(t, ok)

	require.ElementsMatch(t, []string{"cars"}, tree.Children("vehicles"))
	require.Empty(t, tree.Children("electric-cars"))
}

func TestNilTreeIsInert(t *testing.T) {
	var tree *Tree

	require.False(t, tree.IsAncestor("a", "b"))
	require.False(t, tree.Contains("a"))
	require.Zero(t, tree.Len())
}
