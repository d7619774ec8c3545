package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/o-laurent/bayesian-tree/core/table"
	"github.com/o-laurent/bayesian-tree/likelihood"
	"github.com/o-laurent/bayesian-tree/optimize"
	"github.com/o-laurent/bayesian-tree/pkg/log"
)

// engine runs the recursive induction shared by Classifier and Regressor.
// With a nil optimizer it searches axis-aligned splits; otherwise it hands
// the oblique search to the configured strategy.
type engine struct {
	model          likelihood.Model
	partitionPrior float64
	delta          float64
	precision      float64
	optimizer      optimize.Optimizer
	logger         log.Logger

	root  *Node
	nDims int
}

// splitResult is the winning split at one node, together with the row
// partition it induces. Both sides are always non-empty.
type splitResult struct {
	split Split
	logP  float64
	left  []int
	right []int
}

// logPriorNoSplit is the tree-geometry prior term for leaving a node at the
// given level unsplit.
func (e *engine) logPriorNoSplit(level int) float64 {
	return math.Log(1 - math.Pow(e.partitionPrior, float64(1+level)))
}

// logPriorSplit is the tree-geometry prior term for splitting a node at the
// given level, spread over the nSplits*nDims candidate positions.
func (e *engine) logPriorSplit(level, nSplits, nDims int) float64 {
	return math.Log(math.Pow(e.partitionPrior, float64(1+level)) / float64(nSplits*nDims))
}

// fit grows the tree from the root partition.
func (e *engine) fit(x table.Table, y []float64, prior likelihood.State) error {
	_, e.nDims = x.Dims()
	root, err := e.grow(x, y, prior, 0)
	if err != nil {
		return err
	}
	e.root = root
	return nil
}

// grow decides one node: it compares the no-split marginal against the best
// split found, splits only on a strict improvement, and recurses into the
// two children with damped priors derived from each child's own partition.
func (e *engine) grow(x table.Table, y []float64, prior likelihood.State, level int) (*Node, error) {
	n, _ := x.Dims()
	logPNoSplit := e.logPriorNoSplit(level) + e.model.LogMarginalNoSplit(prior, y)

	node := &Node{
		level:         level,
		nSamples:      n,
		prior:         prior,
		posterior:     e.model.Posterior(prior, y, 1),
		logPNoSplit:   logPNoSplit,
		logPBestSplit: logPNoSplit,
	}

	var (
		res *splitResult
		err error
	)
	if e.optimizer == nil {
		res = e.bestAxisSplit(x, y, prior, logPNoSplit, level)
	} else {
		res, err = e.bestHyperplaneSplit(x, y, prior, logPNoSplit, level)
		if err != nil {
			return nil, err
		}
	}
	if res == nil {
		return node, nil
	}

	split := res.split
	node.split = &split
	node.logPBestSplit = res.logP

	if e.logger != nil {
		e.logger.Debug("node split",
			log.LevelKey, level,
			log.SamplesKey, n,
			"gain", res.logP-logPNoSplit,
		)
	}

	node.left, err = e.growChild(x.Take(res.left), gather(y, res.left), prior, level+1)
	if err != nil {
		return nil, err
	}
	node.right, err = e.growChild(x.Take(res.right), gather(y, res.right), prior, level+1)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// growChild derives the child's damped prior from its own partition and
// recurses, short-circuiting single-point partitions into leaves.
func (e *engine) growChild(x table.Table, y []float64, parentPrior likelihood.State, level int) (*Node, error) {
	prior := e.model.Posterior(parentPrior, y, e.delta)
	if len(y) > 1 {
		return e.grow(x, y, prior, level)
	}
	logP := e.logPriorNoSplit(level) + e.model.LogMarginalNoSplit(prior, y)
	return &Node{
		level:         level,
		nSamples:      len(y),
		prior:         prior,
		posterior:     e.model.Posterior(prior, y, 1),
		logPNoSplit:   logP,
		logPBestSplit: logP,
	}, nil
}

// bestAxisSplit scans every feature dimension. Candidate positions sit
// between consecutive distinct sorted values, so both sides of any winner are
// non-empty; the per-dimension likelihoods come from one batched model call.
// Ties keep the earlier dimension.
func (e *engine) bestAxisSplit(x table.Table, y []float64, prior likelihood.State, bound float64, level int) *splitResult {
	n, d := x.Dims()
	var best *splitResult
	bestLogP := bound
	col := make([]float64, n)

	for dim := 0; dim < d; dim++ {
		col = x.Column(col, dim)
		order := argsortStable(col)

		var cands []int
		for i := 1; i < n; i++ {
			if col[order[i]] != col[order[i-1]] {
				cands = append(cands, i)
			}
		}
		if len(cands) == 0 {
			continue
		}

		lp := e.model.LogMarginalSplits(prior, gather(y, order), cands)
		offset := e.logPriorSplit(level, len(cands), d)
		iMax := floats.MaxIdx(lp)
		total := lp[iMax] + offset
		if total <= bestLogP {
			continue
		}

		at := cands[iMax]
		best = &splitResult{
			split: Split{
				Kind:      AxisSplit,
				Feature:   dim,
				Threshold: 0.5 * (col[order[at-1]] + col[order[at]]),
			},
			logP:  total,
			left:  append([]int(nil), order[:at]...),
			right: append([]int(nil), order[at:]...),
		}
		bestLogP = total
	}
	return best
}

// bestHyperplaneSplit delegates the orientation search to the configured
// strategy and partitions rows by the sign of their projection relative to
// the winning origin.
func (e *engine) bestHyperplaneSplit(x table.Table, y []float64, prior likelihood.State, bound float64, level int) (*splitResult, error) {
	_, d := x.Dims()

	score := func(ySorted []float64, splitIndices []int) []float64 {
		lp := e.model.LogMarginalSplits(prior, ySorted, splitIndices)
		offset := e.logPriorSplit(level, len(splitIndices), d)
		for i := range lp {
			lp[i] += offset
		}
		return lp
	}

	obj := optimize.NewObjective(x, y, bound, e.precision, score)
	if err := e.optimizer.Optimize(obj); err != nil {
		return nil, err
	}
	if e.logger != nil {
		e.logger.Debug("hyperplane search done",
			log.LevelKey, level,
			log.EvalsKey, obj.Evaluations,
		)
	}
	if obj.BestNormal == nil || obj.BestLogP <= bound {
		return nil, nil
	}

	proj := x.Project(nil, obj.BestNormal)
	offset := floats.Dot(obj.BestNormal, obj.BestOrigin)
	var left, right []int
	for i, p := range proj {
		if p-offset < 0 {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		// origin midway between distinct projections guarantees this never
		// happens; guard against a degenerate optimizer anyway
		return nil, nil
	}
	return &splitResult{
		split: Split{Kind: HyperplaneSplit, Normal: obj.BestNormal, Origin: obj.BestOrigin},
		logP:  obj.BestLogP,
		left:  left,
		right: right,
	}, nil
}

// walk routes the given rows of x through the subtree and calls visit once
// per reached leaf with the rows that landed there.
func (e *engine) walk(n *Node, x table.Table, rows []int, visit func(leaf *Node, rows []int)) {
	if n.IsLeaf() {
		visit(n, rows)
		return
	}

	var left, right []int
	switch n.split.Kind {
	case AxisSplit:
		for _, i := range rows {
			if x.At(i, n.split.Feature) < n.split.Threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
	case HyperplaneSplit:
		offset := floats.Dot(n.split.Normal, n.split.Origin)
		row := make([]float64, len(n.split.Normal))
		for _, i := range rows {
			row = x.Row(row, i)
			if floats.Dot(row, n.split.Normal)-offset < 0 {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
	}

	if len(left) > 0 {
		e.walk(n.left, x, left, visit)
	}
	if len(right) > 0 {
		e.walk(n.right, x, right, visit)
	}
}

// routeLeaves returns, for every row of x, the leaf node it lands in. The
// leaf exposes its raw prior and posterior states for callers that need more
// than a point prediction.
func (e *engine) routeLeaves(x table.Table) []*Node {
	n, _ := x.Dims()
	out := make([]*Node, n)
	e.walk(e.root, x, rowRange(n), func(leaf *Node, rows []int) {
		for _, i := range rows {
			out[i] = leaf
		}
	})
	return out
}

// predict returns the leaf point prediction for every row of x.
func (e *engine) predict(x table.Table) []float64 {
	n, _ := x.Dims()
	out := make([]float64, n)
	e.walk(e.root, x, rowRange(n), func(leaf *Node, rows []int) {
		p := e.model.PointPrediction(leaf.posterior)
		for _, i := range rows {
			out[i] = p
		}
	})
	return out
}

// HyperplaneImportance selects how an oblique split's likelihood gain is
// attributed to feature dimensions.
type HyperplaneImportance int

const (
	// DominantComponent credits the whole gain to the largest-magnitude
	// normal component.
	DominantComponent HyperplaneImportance = iota
	// ProportionalComponents spreads the gain over dimensions in proportion
	// to the normal's absolute components.
	ProportionalComponents
)

// featureImportance accumulates per-dimension likelihood gains over all
// internal nodes and normalizes them to sum to one. An unsplit tree yields
// all zeros.
func (e *engine) featureImportance(policy HyperplaneImportance) []float64 {
	imp := make([]float64, e.nDims)
	var acc func(n *Node)
	acc = func(n *Node) {
		if n.IsLeaf() {
			return
		}
		gain := n.logPBestSplit - n.logPNoSplit
		switch n.split.Kind {
		case AxisSplit:
			imp[n.split.Feature] += gain
		case HyperplaneSplit:
			switch policy {
			case ProportionalComponents:
				var sum float64
				for _, c := range n.split.Normal {
					sum += math.Abs(c)
				}
				for j, c := range n.split.Normal {
					imp[j] += gain * math.Abs(c) / sum
				}
			default:
				imp[maxAbsIdx(n.split.Normal)] += gain
			}
		}
		acc(n.left)
		acc(n.right)
	}
	acc(e.root)

	if s := floats.Sum(imp); s > 0 {
		floats.Scale(1/s, imp)
	}
	return imp
}

// prune collapses redundant splits until a fixed point.
func (e *engine) prune() {
	e.root.prune(e.model)
}

func gather(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

func rowRange(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func argsortStable(v []float64) []int {
	order := make([]int, len(v))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return v[order[a]] < v[order[b]] })
	return order
}

func maxAbsIdx(v []float64) int {
	best, bestAbs := 0, math.Abs(v[0])
	for i, c := range v[1:] {
		if a := math.Abs(c); a > bestAbs {
			best, bestAbs = i+1, a
		}
	}
	return best
}
