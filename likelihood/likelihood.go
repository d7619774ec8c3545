// Package likelihood defines the conjugate-prior model capability the tree
// engine depends on, together with the two families shipped with this
// library: Normal-Gamma for regression and Dirichlet-multinomial for
// classification (Beta-Binomial being its two-class case).
//
// The engine never touches family internals. It asks a Model for the
// marginal log-likelihood of keeping a data slice together, the marginal
// log-likelihoods of every candidate split in one batched call, Bayesian
// posterior updates, and point predictions. New families plug in without
// touching the engine. All computations happen in log space.
package likelihood

// State is an opaque prior or posterior of a conjugate family. Concrete
// models define and consume their own state types.
type State interface{}

// Model is the conjugate-prior capability consumed by the tree engine.
type Model interface {
	// CheckTarget validates the target encoding for this family: finite real
	// values for regression, integer class labels 0..K-1 for classification.
	CheckTarget(y []float64) error

	// LogMarginalNoSplit returns the marginal log-likelihood of all targets
	// under a single posterior derived from prior, i.e. the score of not
	// splitting. Excludes any tree-geometry prior terms.
	LogMarginalNoSplit(prior State, y []float64) float64

	// LogMarginalSplits returns, for every candidate split position, the
	// combined marginal log-likelihood of the two resulting partitions under
	// independent posteriors. ySorted must be ordered along the axis being
	// evaluated; splitIndices[i] is the number of points left of candidate i.
	// One batched call per axis keeps the candidate scan linear.
	LogMarginalSplits(prior State, ySorted []float64, splitIndices []int) []float64

	// Posterior conditions prior on y with observation weight w in [0,1]:
	// w=1 is the standard conjugate update, w=0 returns the prior untouched.
	// Fractional weights build damped child priors.
	Posterior(prior State, y []float64, w float64) State

	// PointPrediction returns the point estimate of a posterior: the
	// posterior predictive mean for regression, the modal class for
	// classification.
	PointPrediction(post State) float64
}

// ClassModel is implemented by classification families that can expose a
// full class distribution at a leaf.
type ClassModel interface {
	Model

	// ClassProbabilities returns the posterior class distribution, summing
	// to one.
	ClassProbabilities(post State) []float64
}
