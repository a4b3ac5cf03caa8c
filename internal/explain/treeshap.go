package explain

import (
	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/types"
)

// pathElement tracks one split on the current root-to-node path.
// zero is the fraction of training data flowing down this path when the
// feature is absent; one is 1 if x follows the path, else 0.
type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// extendPath appends a split and updates the permutation weights in place
// on a fresh copy of parent.
func extendPath(parent []pathElement, zero, one float64, feature int) []pathElement {
	l := len(parent)
	path := make([]pathElement, l+1, l+2)
	copy(path, parent)

	w := 0.0
	if l == 0 {
		w = 1
	}
	path[l] = pathElement{feature: feature, zero: zero, one: one, weight: w}

	for i := l - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(l+1)
		path[i].weight = zero * path[i].weight * float64(l-i) / float64(l+1)
	}
	return path
}

// unwindPath removes element idx, undoing its extendPath. path is modified.
func unwindPath(path []pathElement, idx int) []pathElement {
	d := len(path) - 1
	one, zero := path[idx].one, path[idx].zero
	next := path[d].weight

	for i := d - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * float64(d+1) / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(d-i)/float64(d+1)
		} else {
			path[i].weight = path[i].weight * float64(d+1) / (zero * float64(d-i))
		}
	}

	for i := idx; i < d; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
	return path[:d]
}

// unwoundPathSum is the total permutation weight of the path with element idx
// removed, without modifying the path.
func unwoundPathSum(path []pathElement, idx int) float64 {
	d := len(path) - 1
	one, zero := path[idx].one, path[idx].zero
	next := path[d].weight
	total := 0.0

	for i := d - 1; i >= 0; i-- {
		if one != 0 {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(d-i)
		} else {
			total += path[i].weight / (zero * float64(d-i))
		}
	}
	return total * float64(d+1)
}

// treeShap adds the exact Shapley values of one tree for row to phi.
func treeShap(t *model.Tree, row []types.Value, phi []float64) {
	recurse(t, row, phi, 0, nil, 1, 1, -1)
}

func recurse(t *model.Tree, row []types.Value, phi []float64, node int, parent []pathElement, zero, one float64, feature int) {
	path := extendPath(parent, zero, one, feature)

	if t.IsLeaf(node) {
		leaf := t.Leaf(node)
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			phi[path[i].feature] += w * (path[i].one - path[i].zero) * leaf
		}
		return
	}

	split := t.Feature(node)
	left, right := t.Children(node)
	hot, cold := right, left
	if t.GoesLeft(node, row[split]) {
		hot, cold = left, right
	}

	incomingZero, incomingOne := 1.0, 1.0
	for k := range path {
		if path[k].feature == split {
			incomingZero, incomingOne = path[k].zero, path[k].one
			path = unwindPath(path, k)
			break
		}
	}

	cover := t.Cover(node)
	recurse(t, row, phi, hot, path, incomingZero*t.Cover(hot)/cover, incomingOne, split)
	recurse(t, row, phi, cold, path, incomingZero*t.Cover(cold)/cover, 0, split)
}
