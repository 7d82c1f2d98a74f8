package pointcloud

import (
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestKDTreeRadiusSearch(t *testing.T) {
	positions := []r3.Vector{
		{X: 0}, {X: 1}, {X: 2}, {X: 10}, {Y: 0.5},
	}
	tree := NewKDTree(positions)
	test.That(t, tree.Size(), test.ShouldEqual, 5)

	got := tree.RadiusSearch(r3.Vector{}, 1.1)
	sort.Ints(got)
	test.That(t, got, test.ShouldResemble, []int{0, 1, 4})

	test.That(t, tree.RadiusSearch(r3.Vector{X: 100}, 1), test.ShouldHaveLength, 0)
}

func TestKDTreeKNN(t *testing.T) {
	positions := []r3.Vector{
		{X: 0}, {X: 1}, {X: 4}, {X: 9},
	}
	tree := NewKDTree(positions)

	got := tree.KNN(r3.Vector{X: 0.4}, 2)
	sort.Ints(got)
	test.That(t, got, test.ShouldResemble, []int{0, 1})

	// asking for more neighbors than points returns them all
	got = tree.KNN(r3.Vector{}, 10)
	test.That(t, got, test.ShouldHaveLength, 4)
}

func TestKDTreeEmpty(t *testing.T) {
	tree := NewKDTree(nil)
	test.That(t, tree.RadiusSearch(r3.Vector{}, 1), test.ShouldHaveLength, 0)
	test.That(t, tree.KNN(r3.Vector{}, 3), test.ShouldHaveLength, 0)
}

func TestKDTreeHybridSearchCap(t *testing.T) {
	positions := make([]r3.Vector, 20)
	for i := range positions {
		positions[i] = r3.Vector{X: float64(i) * 0.01}
	}
	tree := NewKDTree(positions)
	got := tree.HybridSearch(r3.Vector{}, 1, 5)
	test.That(t, got, test.ShouldHaveLength, 5)
}
