package optimize

import (
	"math"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// GradientDescentOptimizer estimates a numerical gradient per candidate by
// finite differences and follows it with a doubling line search. The step
// size grows adaptively when a measured gradient component is exactly zero
// (to escape flat regions) and flips sign when a coordinate would leave the
// unit box. Terminates after a fixed number of non-improving rounds.
type GradientDescentOptimizer struct {
	Init int // initial random scan size
	Keep int // population bound
	Seed uint64
}

const gradientPatience = 3

// NewGradientDescentOptimizer creates a finite-difference gradient search.
func NewGradientDescentOptimizer(init, keep int, seed uint64) *GradientDescentOptimizer {
	return &GradientDescentOptimizer{Init: init, Keep: keep, Seed: seed}
}

// Optimize runs gradient-descent rounds against the objective.
func (o *GradientDescentOptimizer) Optimize(f *Objective) error {
	if o.Init < 1 || o.Keep < 1 {
		return errors.NewValueError("GradientDescentOptimizer.Optimize",
			"initial scan size and population bound must be at least 1")
	}
	if evalDegenerate(f) {
		return nil
	}
	nd := f.SurfaceDims()
	rng := newRNG(o.Seed)

	var cands []candidate
	noImprove := 0
	best := math.Inf(1)
	startDelta := 1e-6

	for rounds := 0; noImprove < gradientPatience && rounds < maxSearchRounds; rounds++ {
		if len(cands) == 0 {
			for i := 0; i < o.Init; i++ {
				u := uniformVec(rng, nd)
				cands = append(cands, candidate{value: f.EvalUnit(u), vec: u})
			}
		} else {
			sortCandidates(cands)
			best = cands[0].value
			n := len(cands)
			for i := 0; i < o.Keep; i++ {
				cur := cands[i*n/o.Keep]

				grad, delta, ok := numericalGradient(f, cur.vec, cur.value, startDelta)
				if !ok {
					continue
				}
				startDelta = delta / 10

				// doubling line search along the negative gradient
				step := 1e-6
				bestVec, bestVal := cur.vec, cur.value
				for {
					next := make([]float64, nd)
					for j := range next {
						next[j] = clamp(cur.vec[j]-step*grad[j], 0, 1)
					}
					v := f.EvalUnit(next)
					if v < bestVal {
						bestVal, bestVec = v, next
						step *= 2
					} else {
						break
					}
				}
				cands = append(cands, candidate{value: bestVal, vec: bestVec})
			}
		}

		sortCandidates(cands)
		if len(cands) > o.Keep {
			cands = cands[:o.Keep]
		}
		if cands[0].value < best {
			noImprove = 0
			best = cands[0].value
		} else {
			noImprove++
		}
	}
	return nil
}

// numericalGradient measures the finite-difference gradient at vec. A zero
// component means the step was too small to move the objective, so the step
// is grown tenfold; once it would reach the width of the unit box the region
// is flat beyond rescue and ok is false.
func numericalGradient(f *Objective, vec []float64, val, delta float64) (grad []float64, usedDelta float64, ok bool) {
	grad = make([]float64, len(vec))
	for {
		flat := false
		for i := range vec {
			next := make([]float64, len(vec))
			copy(next, vec)
			next[i] += delta
			if next[i] > 1 {
				delta = -delta
				next[i] = vec[i] + delta
			}
			grad[i] = (f.EvalUnit(next) - val) / delta
			delta = math.Abs(delta)
			if grad[i] == 0 {
				flat = true
				break
			}
		}
		if !flat {
			return grad, delta, true
		}
		delta *= 10
		if delta >= 1 {
			return nil, delta, false
		}
	}
}
