// Package optimize implements the oblique-split optimization subsystem: a
// shared objective over hyperplane normal vectors and a set of
// interchangeable search strategies that drive it.
//
// The objective value of a normal vector is the negated best marginal data
// log-likelihood over all legal split positions along that projection axis,
// so every strategy is a minimizer. Strategies share no state beyond the
// Objective instance they are handed.
package optimize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/o-laurent/bayesian-tree/core/table"
)

// SplitScorer returns, for every candidate split position over the sorted
// targets, the full log-likelihood of splitting there (data terms plus any
// tree-geometry prior terms). Injected by the induction engine.
type SplitScorer func(ySorted []float64, splitIndices []int) []float64

// Objective is the function minimized when searching for an oblique split at
// one tree node. It retains the best hyperplane seen across evaluations.
type Objective struct {
	x           table.Table
	y           []float64
	scoreSplits SplitScorer
	logPNoSplit float64
	precision   float64

	// Evaluations counts objective calls, for diagnostics and budgets.
	Evaluations int

	// Best split found so far. BestNormal is nil until some orientation
	// admits a split at least as good as the no-split baseline.
	BestLogP     float64
	BestDistance float64
	BestNormal   []float64
	BestOrigin   []float64
}

// NewObjective creates the per-node objective. logPNoSplit is the no-split
// baseline (including its geometry prior term); splitPrecision is the
// tolerance below which two projections cannot be separated.
func NewObjective(x table.Table, y []float64, logPNoSplit, splitPrecision float64, score SplitScorer) *Objective {
	return &Objective{
		x:           x,
		y:           y,
		scoreSplits: score,
		logPNoSplit: logPNoSplit,
		precision:   splitPrecision,
		BestLogP:    logPNoSplit,
	}
}

// Targets returns the node's target values.
func (f *Objective) Targets() []float64 { return f.y }

// Data returns the node's feature table.
func (f *Objective) Data() table.Table { return f.x }

// Dims returns the feature dimensionality.
func (f *Objective) Dims() int {
	_, c := f.x.Dims()
	return c
}

// SurfaceDims returns the dimensionality of the unit-hypercube search space,
// one less than the feature dimensionality.
func (f *Objective) SurfaceDims() int { return f.Dims() - 1 }

// EvalUnit maps a unit-hypercube point onto the half hypersphere and
// evaluates the resulting normal vector.
func (f *Objective) EvalUnit(u []float64) float64 {
	return f.Eval(CubeToSphere(u, true))
}

// Eval scores one proposed hyperplane normal. It returns the negated best
// split log-likelihood along this orientation, or the negated no-split
// baseline when no pair of projections differs by more than the split
// precision.
func (f *Objective) Eval(normal []float64) float64 {
	f.Evaluations++

	v := sanitizeNormal(normal)

	proj := f.x.Project(nil, v)
	order := argsort(proj)

	// legal splits exist only between points whose projections differ by
	// more than the tolerance
	var cands []int
	for i := 1; i < len(order); i++ {
		if math.Abs(proj[order[i]]-proj[order[i-1]]) > f.precision {
			cands = append(cands, i)
		}
	}
	if len(cands) == 0 {
		return -f.logPNoSplit
	}

	ySorted := make([]float64, len(order))
	for i, idx := range order {
		ySorted[i] = f.y[idx]
	}

	lp := f.scoreSplits(ySorted, cands)
	iMax := floats.MaxIdx(lp)

	if lp[iMax] >= f.BestLogP {
		split := cands[iMax]
		p1 := f.x.Row(nil, order[split-1])
		p2 := f.x.Row(nil, order[split])
		origin := make([]float64, len(p1))
		for i := range origin {
			origin[i] = 0.5 * (p1[i] + p2[i])
		}
		offset := floats.Dot(v, origin)
		var cumDist float64
		for _, p := range proj {
			cumDist += math.Abs(p - offset)
		}

		// a strictly better likelihood always wins; an equal one wins only
		// with a wider cumulative margin
		if lp[iMax] > f.BestLogP || cumDist > f.BestDistance {
			f.BestLogP = lp[iMax]
			f.BestDistance = cumDist
			f.BestNormal = v
			f.BestOrigin = origin
		}
	}

	return -lp[iMax]
}

// sanitizeNormal replaces non-finite components with zero, defaults an
// all-zero vector to the first basis vector, and normalizes to unit length.
func sanitizeNormal(normal []float64) []float64 {
	v := make([]float64, len(normal))
	allZero := true
	for i, c := range normal {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			c = 0
		}
		v[i] = c
		if c != 0 {
			allZero = false
		}
	}
	if allZero {
		v[0] = 1
	}
	floats.Scale(1/math.Sqrt(floats.Dot(v, v)), v)
	return v
}

// CubeToSphere maps a point from the (d-1)-dimensional unit hypercube to the
// surface of the d-dimensional unit hypersphere, preserving the uniform
// surface measure: each polar angle is drawn through the Beta quantile of
// its sin-power marginal. With half set, the result is flipped onto the half
// sphere whose first nonzero coordinate is positive, exploiting the sign
// symmetry of hyperplane normals.
func CubeToSphere(u []float64, half bool) []float64 {
	d := len(u) + 1
	v := make([]float64, d)
	if d == 1 {
		v[0] = 1
		return v
	}

	r := 1.0
	for i := 0; i < d-2; i++ {
		k := float64(d - 2 - i)
		b := distuv.Beta{Alpha: (k + 1) / 2, Beta: (k + 1) / 2}
		cos := 2*b.Quantile(clamp(u[i], 0, 1)) - 1
		v[i] = r * cos
		r *= math.Sqrt(math.Max(0, 1-cos*cos))
	}
	phi := 2 * math.Pi * clamp(u[d-2], 0, 1)
	v[d-2] = r * math.Cos(phi)
	v[d-1] = r * math.Sin(phi)

	if half {
		for _, c := range v {
			if c != 0 {
				if c < 0 {
					floats.Scale(-1, v)
				}
				break
			}
		}
	}
	return v
}

// r2Sequence returns a generator of the additive-recurrence low-discrepancy
// sequence over the unit hypercube, built from the generalized golden ratio
// (the unique positive root of x^(dim+1) = x + 1).
func r2Sequence(dim int) func() []float64 {
	phi := 2.0
	for i := 0; i < 64; i++ {
		phi = math.Pow(1+phi, 1/float64(dim+1))
	}
	alpha := make([]float64, dim)
	for i := range alpha {
		alpha[i] = math.Pow(1/phi, float64(i+1))
	}
	z := make([]float64, dim)
	for i := range z {
		z[i] = 0.5
	}
	return func() []float64 {
		out := make([]float64, dim)
		for i := range z {
			z[i] = math.Mod(z[i]+alpha[i], 1)
			out[i] = z[i]
		}
		return out
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func argsort(v []float64) []int {
	order := make([]int, len(v))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return v[order[a]] < v[order[b]] })
	return order
}
