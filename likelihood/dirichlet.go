package likelihood

import (
	"math"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// DirichletState is the state of a Dirichlet prior or posterior over class
// probabilities. The number of classes is the length of Alphas.
type DirichletState struct {
	Alphas []float64
}

// Dirichlet is the conjugate family for classification targets: a
// categorical likelihood under a Dirichlet prior, whose marginal is the
// Dirichlet-multinomial. With two classes this reduces to Beta-Binomial.
type Dirichlet struct{}

var (
	_ Model      = Dirichlet{}
	_ ClassModel = Dirichlet{}
)

// UniformDirichletPrior returns a Dirichlet(1, ..., 1) prior over k classes.
func UniformDirichletPrior(k int) DirichletState {
	alphas := make([]float64, k)
	for i := range alphas {
		alphas[i] = 1
	}
	return DirichletState{Alphas: alphas}
}

// CheckTarget requires integer class labels 0, 1, 2, ...
func (Dirichlet) CheckTarget(y []float64) error {
	if len(y) == 0 {
		return errors.NewModelError("Dirichlet.CheckTarget", "empty target vector", errors.ErrEmptyData)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Round(v) || v < 0 {
			return errors.NewModelError("Dirichlet.CheckTarget",
				"class labels must be non-negative integers 0..K-1", errors.ErrInvalidTarget)
		}
	}
	return nil
}

// LogMarginalNoSplit returns the Dirichlet-multinomial marginal
// log-likelihood of y under one posterior.
func (Dirichlet) LogMarginalNoSplit(prior State, y []float64) float64 {
	st := prior.(DirichletState)
	counts := make([]float64, len(st.Alphas))
	for _, v := range y {
		counts[int(v)]++
	}
	return dirichletLogMarginal(st.Alphas, counts)
}

// LogMarginalSplits evaluates every candidate split from per-class
// cumulative counts over the sorted targets.
func (Dirichlet) LogMarginalSplits(prior State, ySorted []float64, splitIndices []int) []float64 {
	st := prior.(DirichletState)
	k := len(st.Alphas)
	n := len(ySorted)

	// cumCounts[i*k+c] = occurrences of class c among the first i+1 targets
	cumCounts := make([]float64, n*k)
	counts := make([]float64, k)
	for i, v := range ySorted {
		counts[int(v)]++
		copy(cumCounts[i*k:(i+1)*k], counts)
	}

	left := make([]float64, k)
	right := make([]float64, k)
	out := make([]float64, len(splitIndices))
	for i, split := range splitIndices {
		copy(left, cumCounts[(split-1)*k:split*k])
		for c := 0; c < k; c++ {
			right[c] = counts[c] - left[c]
		}
		out[i] = dirichletLogMarginal(st.Alphas, left) + dirichletLogMarginal(st.Alphas, right)
	}
	return out
}

// Posterior conditions the prior on y with observation weight w.
func (Dirichlet) Posterior(prior State, y []float64, w float64) State {
	st := prior.(DirichletState)
	post := make([]float64, len(st.Alphas))
	copy(post, st.Alphas)
	if w == 0 {
		return DirichletState{Alphas: post}
	}
	for _, v := range y {
		post[int(v)] += w
	}
	return DirichletState{Alphas: post}
}

// PointPrediction returns the modal class of the posterior; ties resolve to
// the lowest class index.
func (Dirichlet) PointPrediction(post State) float64 {
	alphas := post.(DirichletState).Alphas
	best := 0
	for i := 1; i < len(alphas); i++ {
		if alphas[i] > alphas[best] {
			best = i
		}
	}
	return float64(best)
}

// ClassProbabilities returns the posterior mean class distribution.
func (Dirichlet) ClassProbabilities(post State) []float64 {
	alphas := post.(DirichletState).Alphas
	var sum float64
	for _, a := range alphas {
		sum += a
	}
	probs := make([]float64, len(alphas))
	for i, a := range alphas {
		probs[i] = a / sum
	}
	return probs
}

// dirichletLogMarginal is ln B(alphas+counts) - ln B(alphas), the
// Dirichlet-multinomial marginal without the multinomial coefficient (which
// cancels in split comparisons).
func dirichletLogMarginal(alphas, counts []float64) float64 {
	var sumAlphas, sumPost, lp float64
	for i, a := range alphas {
		post := a + counts[i]
		lp += lgamma(post) - lgamma(a)
		sumAlphas += a
		sumPost += post
	}
	return lp + lgamma(sumAlphas) - lgamma(sumPost)
}
