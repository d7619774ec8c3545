package optimize

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// Optimizer searches the space of hyperplane normal vectors by repeatedly
// invoking the objective. Implementations bound their own work and always
// terminate; they report usage errors only.
type Optimizer interface {
	Optimize(f *Objective) error
}

// evalDegenerate handles the one-dimensional case, where the half
// hypersphere collapses to a single orientation.
func evalDegenerate(f *Objective) bool {
	if f.SurfaceDims() > 0 {
		return false
	}
	f.Eval([]float64{1})
	return true
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// QuasiRandomOptimizer covers the search space with a deterministic
// low-discrepancy sequence, spending a fixed evaluation budget evenly.
type QuasiRandomOptimizer struct {
	Evals int
}

// NewQuasiRandomOptimizer creates a quasi-random search with the given
// evaluation budget.
func NewQuasiRandomOptimizer(evals int) *QuasiRandomOptimizer {
	return &QuasiRandomOptimizer{Evals: evals}
}

// Optimize evaluates successive points of the low-discrepancy sequence.
func (o *QuasiRandomOptimizer) Optimize(f *Objective) error {
	if evalDegenerate(f) {
		return nil
	}
	next := r2Sequence(f.SurfaceDims())
	for i := 0; i < o.Evals; i++ {
		f.EvalUnit(next())
	}
	return nil
}

// RandomOptimizer draws normal vectors from an isotropic Gaussian, skipping
// the hypercube mapping entirely.
type RandomOptimizer struct {
	Evals int
	Seed  uint64
}

// NewRandomOptimizer creates an isotropic random search.
func NewRandomOptimizer(evals int, seed uint64) *RandomOptimizer {
	return &RandomOptimizer{Evals: evals, Seed: seed}
}

// Optimize evaluates randomly oriented normal vectors.
func (o *RandomOptimizer) Optimize(f *Objective) error {
	rng := newRNG(o.Seed)
	d := f.Dims()
	for i := 0; i < o.Evals; i++ {
		normal := make([]float64, d)
		for j := range normal {
			normal[j] = rng.NormFloat64()
		}
		f.Eval(normal)
	}
	return nil
}

// TwoPointOptimizer tests hyperplanes defined by the vector between two
// random points of different classes. Classification only: it fails fast on
// targets that are not class-like.
type TwoPointOptimizer struct {
	Trials int
	Seed   uint64
}

// NewTwoPointOptimizer creates a randomized two-point search.
func NewTwoPointOptimizer(trials int, seed uint64) *TwoPointOptimizer {
	return &TwoPointOptimizer{Trials: trials, Seed: seed}
}

// Optimize evaluates hyperplane normals connecting random point pairs from
// two different classes. A node whose data holds fewer than two classes is
// left unsplit without error.
func (o *TwoPointOptimizer) Optimize(f *Objective) error {
	y := f.Targets()
	for _, v := range y {
		if v != math.Round(v) || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValueError("TwoPointOptimizer.Optimize",
				"targets are not class labels; two-point search requires classification data")
		}
	}

	maxClass := 0
	for _, v := range y {
		if int(v) > maxClass {
			maxClass = int(v)
		}
	}
	classIndices := make([][]int, maxClass+1)
	for i, v := range y {
		classIndices[int(v)] = append(classIndices[int(v)], i)
	}
	var present []int
	for c, idx := range classIndices {
		if len(idx) > 0 {
			present = append(present, c)
		}
	}
	if len(present) < 2 {
		// cannot pick two points of different classes
		return nil
	}

	rng := newRNG(o.Seed)
	x := f.Data()
	for i := 0; i < o.Trials; i++ {
		c1 := present[rng.IntN(len(present))]
		c2 := c1
		for c2 == c1 {
			c2 = present[rng.IntN(len(present))]
		}
		idx1 := classIndices[c1]
		idx2 := classIndices[c2]
		p1 := x.Row(nil, idx1[rng.IntN(len(idx1))])
		p2 := x.Row(nil, idx2[rng.IntN(len(idx2))])

		normal := make([]float64, len(p1))
		floats.SubTo(normal, p2, p1)
		if normal[0] < 0 {
			// keep the first coordinate positive to match the half-sphere
			// convention of the hypercube-based strategies
			floats.Scale(-1, normal)
		}
		f.Eval(normal)
	}
	return nil
}
