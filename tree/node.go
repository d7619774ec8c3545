// Package tree implements Bayesian decision-tree learning: recursive
// induction driven by marginal log-likelihood comparison, axis-aligned and
// oblique (hyperplane) split search, batch prediction, pruning and feature
// importance, plus the Classifier and Regressor estimators built on the
// shared engine.
package tree

import (
	"fmt"
	"strings"

	"github.com/o-laurent/bayesian-tree/likelihood"
)

// SplitKind distinguishes the two split geometries.
type SplitKind int

const (
	// AxisSplit thresholds a single feature dimension.
	AxisSplit SplitKind = iota
	// HyperplaneSplit thresholds the projection onto a normal vector.
	HyperplaneSplit
)

// Split describes how an internal node partitions its data. Axis splits use
// Feature and Threshold; hyperplane splits use Normal and Origin.
type Split struct {
	Kind      SplitKind
	Feature   int
	Threshold float64
	Normal    []float64
	Origin    []float64
}

// Node is one vertex of a trained tree. A node is a leaf exactly when it has
// no split descriptor, which is exactly when it has no children; a node never
// has a single child. Each node exclusively owns its two children.
type Node struct {
	level    int
	nSamples int

	prior     likelihood.State
	posterior likelihood.State

	split       *Split
	left, right *Node

	logPNoSplit   float64
	logPBestSplit float64
}

// Level returns the node's depth level; the root is level 0.
func (n *Node) Level() int { return n.level }

// NSamples returns the number of training samples that reached the node.
func (n *Node) NSamples() int { return n.nSamples }

// IsLeaf reports whether the node has no split.
func (n *Node) IsLeaf() bool { return n.split == nil }

// SplitInfo returns the node's split descriptor, nil for leaves.
func (n *Node) SplitInfo() *Split { return n.split }

// Left returns the child receiving points below the split boundary.
func (n *Node) Left() *Node { return n.left }

// Right returns the child receiving points on or above the split boundary.
func (n *Node) Right() *Node { return n.right }

// Prior returns the node's prior state.
func (n *Node) Prior() likelihood.State { return n.prior }

// Posterior returns the node's posterior state.
func (n *Node) Posterior() likelihood.State { return n.posterior }

// LogMarginals returns the no-split and best-split marginal log-likelihoods
// recorded when the node was decided.
func (n *Node) LogMarginals() (noSplit, bestSplit float64) {
	return n.logPNoSplit, n.logPBestSplit
}

// Depth returns the maximum leaf level in the subtree.
func (n *Node) Depth() int {
	if n.IsLeaf() {
		return n.level
	}
	return max(n.left.Depth(), n.right.Depth())
}

// Leaves returns the number of leaves in the subtree.
func (n *Node) Leaves() int {
	if n.IsLeaf() {
		return 1
	}
	return n.left.Leaves() + n.right.Leaves()
}

// prune collapses splits whose two leaf children yield the same point
// prediction. Erasing a split can expose a new prune opportunity one level
// up, so the walk repeats on any subtree whose depth or leaf count changed,
// until a fixed point is reached.
func (n *Node) prune(m likelihood.Model) {
	if n.IsLeaf() {
		return
	}

	depth, leaves := n.Depth(), n.Leaves()

	if n.left.IsLeaf() && n.right.IsLeaf() {
		if m.PointPrediction(n.left.posterior) == m.PointPrediction(n.right.posterior) {
			n.eraseSplit()
		}
	} else {
		n.left.prune(m)
		n.right.prune(m)
	}

	if depth != n.Depth() || leaves != n.Leaves() {
		n.prune(m)
	}
}

// eraseSplit reverts the node to a leaf using its own stored posterior.
func (n *Node) eraseSplit() {
	n.split = nil
	n.left = nil
	n.right = nil
	n.logPBestSplit = n.logPNoSplit
}

// render writes an indented description of the subtree.
func (n *Node) render(sb *strings.Builder, m likelihood.Model, names []string) {
	indent := strings.Repeat("  ", n.level)
	if n.IsLeaf() {
		fmt.Fprintf(sb, "%sleaf: predict %v (n=%d)\n", indent, m.PointPrediction(n.posterior), n.nSamples)
		return
	}
	switch n.split.Kind {
	case AxisSplit:
		fmt.Fprintf(sb, "%s%s < %.6g (gain %.4g)\n",
			indent, featureName(names, n.split.Feature), n.split.Threshold, n.logPBestSplit-n.logPNoSplit)
	case HyperplaneSplit:
		offset := 0.0
		for i, c := range n.split.Normal {
			offset += c * n.split.Origin[i]
		}
		fmt.Fprintf(sb, "%sproj(x, %s) < %.6g (gain %.4g)\n",
			indent, formatVector(n.split.Normal), offset, n.logPBestSplit-n.logPNoSplit)
	}
	n.left.render(sb, m, names)
	n.right.render(sb, m, names)
}

func featureName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("x%d", i)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = fmt.Sprintf("%.4g", c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
