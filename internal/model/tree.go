package model

import (
	"fmt"
	"math"

	"github.com/jonathan/churn-predictor/internal/types"
)

const leafFeature = -1

type node struct {
	feature    int // column index, leafFeature for leaves
	threshold  float64
	categories map[string]struct{} // nil for numeric splits
	left       int
	right      int
	cover      float64
	value      float64
}

// Tree is one compiled regression tree. Node 0 is the root.
// Trees are read-only once compiled.
type Tree struct {
	nodes []node
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// IsLeaf reports whether node i is a leaf.
func (t *Tree) IsLeaf(i int) bool { return t.nodes[i].feature == leafFeature }

// Leaf returns the value of leaf i.
func (t *Tree) Leaf(i int) float64 { return t.nodes[i].value }

// Feature returns the column index split on at node i.
func (t *Tree) Feature(i int) int { return t.nodes[i].feature }

// Cover returns the training weight that reached node i.
func (t *Tree) Cover(i int) float64 { return t.nodes[i].cover }

// Children returns the left and right child of split node i.
func (t *Tree) Children(i int) (left, right int) {
	return t.nodes[i].left, t.nodes[i].right
}

// GoesLeft reports whether v follows the left branch of split node i.
func (t *Tree) GoesLeft(i int, v types.Value) bool {
	n := &t.nodes[i]
	if n.categories != nil {
		_, ok := n.categories[v.Cat]
		return ok
	}
	return v.Num < n.threshold
}

// Eval walks the tree for one row and returns the leaf value reached.
func (t *Tree) Eval(row []types.Value) float64 {
	i := 0
	for !t.IsLeaf(i) {
		n := &t.nodes[i]
		if t.GoesLeft(i, row[n.feature]) {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].value
}

// Expected returns the cover-weighted mean leaf value.
func (t *Tree) Expected() float64 {
	return t.expected(0)
}

func (t *Tree) expected(i int) float64 {
	n := &t.nodes[i]
	if n.feature == leafFeature {
		return n.value
	}
	l, r := &t.nodes[n.left], &t.nodes[n.right]
	return (l.cover*t.expected(n.left) + r.cover*t.expected(n.right)) / n.cover
}

const coverTolerance = 1e-9

// compileTree turns a raw node list into a Tree, checking structure and covers.
func compileTree(raw rawTree, columns map[string]int, categorical []bool) (*Tree, error) {
	n := len(raw.Nodes)
	nodes := make([]node, n)

	for i, rn := range raw.Nodes {
		if rn.Leaf != nil {
			nodes[i] = node{feature: leafFeature, value: *rn.Leaf, cover: rn.Cover}
			continue
		}

		col, ok := columns[rn.Feature]
		if !ok {
			return nil, fmt.Errorf("node %d splits on unknown feature %q", i, rn.Feature)
		}
		if rn.Left <= 0 || rn.Left >= n || rn.Right <= 0 || rn.Right >= n {
			return nil, fmt.Errorf("node %d has child reference out of range", i)
		}
		if rn.Left == rn.Right {
			return nil, fmt.Errorf("node %d uses node %d for both branches", i, rn.Left)
		}

		nd := node{feature: col, left: rn.Left, right: rn.Right, cover: rn.Cover}
		switch {
		case rn.Categories != nil:
			if !categorical[col] {
				return nil, fmt.Errorf("node %d applies a category split to numeric feature %q", i, rn.Feature)
			}
			nd.categories = make(map[string]struct{}, len(rn.Categories))
			for _, c := range rn.Categories {
				nd.categories[c] = struct{}{}
			}
		case rn.Threshold != nil:
			if categorical[col] {
				return nil, fmt.Errorf("node %d applies a threshold split to categorical feature %q", i, rn.Feature)
			}
			nd.threshold = *rn.Threshold
		default:
			return nil, fmt.Errorf("node %d has neither threshold nor categories", i)
		}
		nodes[i] = nd
	}

	t := &Tree{nodes: nodes}
	if err := t.checkStructure(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkStructure requires every node to be reachable from the root exactly once,
// which rules out cycles and shared subtrees, and requires each split's cover to
// equal the sum of its children's covers.
func (t *Tree) checkStructure() error {
	seen := make([]bool, len(t.nodes))
	stack := []int{0}
	visited := 0

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[i] {
			return fmt.Errorf("node %d is reachable more than once", i)
		}
		seen[i] = true
		visited++

		if n := &t.nodes[i]; n.feature != leafFeature {
			stack = append(stack, n.right, n.left)
		}
	}
	if visited != len(t.nodes) {
		return fmt.Errorf("%d of %d nodes are unreachable from the root", len(t.nodes)-visited, len(t.nodes))
	}

	for i := range t.nodes {
		n := &t.nodes[i]
		if !(n.cover > 0) || math.IsInf(n.cover, 0) {
			return fmt.Errorf("node %d has non-positive cover %v", i, n.cover)
		}
		if n.feature == leafFeature {
			continue
		}
		sum := t.nodes[n.left].cover + t.nodes[n.right].cover
		if math.Abs(n.cover-sum) > coverTolerance*math.Max(1, n.cover) {
			return fmt.Errorf("node %d cover %v does not equal children's covers %v", i, n.cover, sum)
		}
	}
	return nil
}
