package optimize

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// candidate pairs a search-space vector with its objective value. Population
// strategies keep the best few between rounds.
type candidate struct {
	value float64
	vec   []float64
}

func sortCandidates(c []candidate) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].value < c[j].value })
}

// AnnealingOptimizer maintains a bounded population of best candidates and
// perturbs a subset each round by a random offset whose magnitude follows the
// spread factor. Terminates after a fixed number of non-improving rounds.
type AnnealingOptimizer struct {
	Scan   int     // initial random scan size
	Keep   int     // population bound
	Spread float64 // per-round multiplier on the perturbation magnitude
	Seed   uint64
}

const (
	annealingPatience = 50
	// hard cap so the strategy terminates even under pathological
	// improvement streaks
	maxSearchRounds = 1000
)

// NewAnnealingOptimizer creates a simulated-annealing search.
func NewAnnealingOptimizer(scan, keep int, spread float64, seed uint64) *AnnealingOptimizer {
	return &AnnealingOptimizer{Scan: scan, Keep: keep, Spread: spread, Seed: seed}
}

// Optimize runs the annealing rounds against the objective.
func (o *AnnealingOptimizer) Optimize(f *Objective) error {
	if o.Scan < 1 || o.Keep < 1 {
		return errors.NewValueError("AnnealingOptimizer.Optimize",
			"scan size and population bound must be at least 1")
	}
	if evalDegenerate(f) {
		return nil
	}
	nd := f.SurfaceDims()
	rng := newRNG(o.Seed)

	var cands []candidate
	noImprove := 0
	best := math.Inf(1)
	spread := 1.0

	for rounds := 0; noImprove < annealingPatience && rounds < maxSearchRounds; rounds++ {
		if len(cands) == 0 {
			for i := 0; i < o.Scan; i++ {
				u := uniformVec(rng, nd)
				cands = append(cands, candidate{value: f.EvalUnit(u), vec: u})
			}
		} else {
			sortCandidates(cands)
			best = cands[0].value
			n := len(cands)
			for i := 0; i < o.Keep; i++ {
				src := cands[i*n/o.Keep]
				u := make([]float64, nd)
				for j := range u {
					u[j] = clamp(src.vec[j]+spread*(2*rng.Float64()-1), 0, 1)
				}
				cands = append(cands, candidate{value: f.EvalUnit(u), vec: u})
			}
			spread *= o.Spread
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

func uniformVec(rng *rand.Rand, n int) []float64 {
	u := make([]float64, n)
	for i := range u {
		u[i] = rng.Float64()
	}
	return u
}
