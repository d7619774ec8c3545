package optimize

import (
	"fmt"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// TPEOptimizer delegates exploration of the unit-hypercube search space to
// goptuna's Tree-structured Parzen Estimator, a global black-box minimizer.
// Deterministic given a seed.
type TPEOptimizer struct {
	Trials int
	Seed   int64
}

// NewTPEOptimizer creates a TPE search with the given trial budget and seed.
func NewTPEOptimizer(trials int, seed int64) *TPEOptimizer {
	return &TPEOptimizer{Trials: trials, Seed: seed}
}

// Optimize runs one goptuna study over the hypercube coordinates.
func (o *TPEOptimizer) Optimize(f *Objective) error {
	if evalDegenerate(f) {
		return nil
	}
	nd := f.SurfaceDims()

	study, err := goptuna.CreateStudy(
		"hyperplane-search",
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(o.Seed))),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionLogger(nil),
	)
	if err != nil {
		return errors.Wrap(err, "TPEOptimizer: create study")
	}

	objective := func(trial goptuna.Trial) (float64, error) {
		u := make([]float64, nd)
		for i := range u {
			v, err := trial.SuggestFloat(fmt.Sprintf("u%d", i), 0, 1)
			if err != nil {
				return 0, err
			}
			u[i] = v
		}
		return f.EvalUnit(u), nil
	}

	if err := study.Optimize(objective, o.Trials); err != nil {
		return errors.Wrap(err, "TPEOptimizer: optimize")
	}
	return nil
}
