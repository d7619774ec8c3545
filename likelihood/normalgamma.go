package likelihood

import (
	"math"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// NormalGammaState is the state of a Normal-Gamma prior or posterior over an
// unknown mean and precision.
type NormalGammaState struct {
	Mu    float64 // mean of the mean
	Kappa float64 // pseudo-observation count for the mean
	Alpha float64 // shape of the precision
	Beta  float64 // rate of the precision
}

// NormalGamma is the conjugate family for regression targets: a Normal
// likelihood with unknown mean and precision under a Normal-Gamma prior,
// giving closed-form marginals.
type NormalGamma struct{}

var _ Model = NormalGamma{}

// DefaultNormalGammaPrior derives a weakly informative prior from the target
// values: mu at the target mean, one pseudo-observation, and a prior standard
// deviation of a tenth of the observed one.
func DefaultNormalGammaPrior(y []float64) NormalGammaState {
	n := float64(len(y))
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= n
	var variance float64
	for _, v := range y {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	sd := math.Sqrt(variance) / 10
	if sd == 0 {
		sd = 1
	}
	const pseudoObs = 1.0
	alpha := pseudoObs / 2
	return NormalGammaState{
		Mu:    mean,
		Kappa: pseudoObs,
		Alpha: alpha,
		Beta:  alpha * sd * sd,
	}
}

// CheckTarget requires finite real values.
func (NormalGamma) CheckTarget(y []float64) error {
	if len(y) == 0 {
		return errors.NewModelError("NormalGamma.CheckTarget", "empty target vector", errors.ErrEmptyData)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewModelError("NormalGamma.CheckTarget",
				"target values must be finite", errors.ErrInvalidTarget)
		}
	}
	return nil
}

// LogMarginalNoSplit returns the marginal log-likelihood of y under one
// posterior.
func (NormalGamma) LogMarginalNoSplit(prior State, y []float64) float64 {
	st := prior.(NormalGammaState)
	n := float64(len(y))
	var sum float64
	for _, v := range y {
		sum += v
	}
	mean := sum / n
	var ssd float64
	for _, v := range y {
		ssd += (v - mean) * (v - mean)
	}
	return normalGammaLogMarginal(st, n, mean, ssd)
}

// LogMarginalSplits evaluates every candidate split with cumulative sums of
// y and y², one pass over the sorted targets.
func (NormalGamma) LogMarginalSplits(prior State, ySorted []float64, splitIndices []int) []float64 {
	st := prior.(NormalGammaState)
	n := len(ySorted)
	cum := make([]float64, n)
	cumSq := make([]float64, n)
	var s, sq float64
	for i, v := range ySorted {
		s += v
		sq += v * v
		cum[i] = s
		cumSq[i] = sq
	}

	out := make([]float64, len(splitIndices))
	for i, split := range splitIndices {
		n1 := float64(split)
		n2 := float64(n - split)
		sum1 := cum[split-1]
		sum2 := s - sum1
		mean1 := sum1 / n1
		mean2 := sum2 / n2
		ssd1 := cumSq[split-1] - n1*mean1*mean1
		ssd2 := (sq - cumSq[split-1]) - n2*mean2*mean2
		// guard tiny negative values from cancellation
		if ssd1 < 0 {
			ssd1 = 0
		}
		if ssd2 < 0 {
			ssd2 = 0
		}
		out[i] = normalGammaLogMarginal(st, n1, mean1, ssd1) +
			normalGammaLogMarginal(st, n2, mean2, ssd2)
	}
	return out
}

// Posterior conditions the prior on y with observation weight w.
func (NormalGamma) Posterior(prior State, y []float64, w float64) State {
	st := prior.(NormalGammaState)
	if w == 0 || len(y) == 0 {
		return st
	}
	n := w * float64(len(y))
	var sum float64
	for _, v := range y {
		sum += v
	}
	mean := sum / float64(len(y))
	var ssd float64
	for _, v := range y {
		ssd += (v - mean) * (v - mean)
	}
	ssd *= w

	kappaPost := st.Kappa + n
	return NormalGammaState{
		Mu:    (st.Kappa*st.Mu + n*mean) / kappaPost,
		Kappa: kappaPost,
		Alpha: st.Alpha + n/2,
		Beta:  st.Beta + 0.5*ssd + st.Kappa*n*(mean-st.Mu)*(mean-st.Mu)/(2*kappaPost),
	}
}

// PointPrediction returns the posterior predictive mean.
func (NormalGamma) PointPrediction(post State) float64 {
	return post.(NormalGammaState).Mu
}

// normalGammaLogMarginal is the closed-form marginal log-likelihood of n
// observations with the given mean and sum of squared deviations.
func normalGammaLogMarginal(st NormalGammaState, n, mean, ssd float64) float64 {
	kappaPost := st.Kappa + n
	alphaPost := st.Alpha + n/2
	betaPost := st.Beta + 0.5*ssd + st.Kappa*n*(mean-st.Mu)*(mean-st.Mu)/(2*kappaPost)
	return lgamma(alphaPost) - lgamma(st.Alpha) +
		st.Alpha*math.Log(st.Beta) - alphaPost*math.Log(betaPost) +
		0.5*math.Log(st.Kappa/kappaPost) -
		0.5*n*math.Log(2*math.Pi)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
