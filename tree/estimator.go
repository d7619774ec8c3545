package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/o-laurent/bayesian-tree/core/table"
	"github.com/o-laurent/bayesian-tree/likelihood"
	"github.com/o-laurent/bayesian-tree/optimize"
	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// config holds the hyperparameters shared by Classifier and Regressor.
type config struct {
	partitionPrior float64
	delta          float64
	precision      float64
	prune          bool
	optimizer      optimize.Optimizer
	importance     HyperplaneImportance
	featureNames   []string

	dirichletPrior   []float64
	normalGammaPrior *likelihood.NormalGammaState
}

func defaultConfig() config {
	return config{
		partitionPrior: 0.9,
		delta:          0,
	}
}

// Option configures a Classifier or Regressor at construction time.
type Option func(*config)

// WithPartitionPrior sets the prior probability of splitting at the root,
// decayed geometrically with depth. Must lie strictly inside (0, 1).
func WithPartitionPrior(p float64) Option {
	return func(c *config) { c.partitionPrior = p }
}

// WithDelta sets the observation weight used when deriving a child's prior
// from its own partition, in [0, 1]. Zero keeps the parent's prior untouched.
func WithDelta(delta float64) Option {
	return func(c *config) { c.delta = delta }
}

// WithPrune enables collapsing splits whose children predict identically
// after fitting.
func WithPrune(prune bool) Option {
	return func(c *config) { c.prune = prune }
}

// WithOptimizer switches the tree to oblique hyperplane splits searched by
// the given strategy. Without it the tree uses exhaustive axis-aligned
// search.
func WithOptimizer(o optimize.Optimizer) Option {
	return func(c *config) { c.optimizer = o }
}

// WithSplitPrecision sets the minimum projection distance between two points
// for a hyperplane split boundary to pass between them.
func WithSplitPrecision(p float64) Option {
	return func(c *config) { c.precision = p }
}

// WithFeatureNames sets the names used when rendering the tree.
func WithFeatureNames(names ...string) Option {
	return func(c *config) { c.featureNames = names }
}

// WithHyperplaneImportance sets how oblique splits attribute their likelihood
// gain across feature dimensions.
func WithHyperplaneImportance(policy HyperplaneImportance) Option {
	return func(c *config) { c.importance = policy }
}

// WithDirichletPrior overrides the Classifier's uniform class prior. The
// length fixes the number of classes. Ignored by Regressor.
func WithDirichletPrior(alphas ...float64) Option {
	return func(c *config) { c.dirichletPrior = alphas }
}

// WithNormalGammaPrior overrides the Regressor's data-derived prior. Ignored
// by Classifier.
func WithNormalGammaPrior(prior likelihood.NormalGammaState) Option {
	return func(c *config) { c.normalGammaPrior = &prior }
}

func (c *config) validate(op string) error {
	if c.partitionPrior <= 0 || c.partitionPrior >= 1 {
		return errors.NewValueError(op, "partition prior must lie strictly inside (0, 1)")
	}
	if c.delta < 0 || c.delta > 1 {
		return errors.NewValueError(op, "delta must lie in [0, 1]")
	}
	if c.precision < 0 || math.IsNaN(c.precision) {
		return errors.NewValueError(op, "split precision must be non-negative")
	}
	return nil
}

// fitInputs converts and validates the Fit arguments of the mat.Matrix
// surface: X non-empty, y a column vector with one entry per row of X.
func fitInputs(op string, X, y mat.Matrix) (table.Table, []float64, error) {
	if X == nil || y == nil {
		return nil, nil, errors.NewValueError(op, "X and y must be non-nil")
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, nil, errors.NewModelError(op, "empty feature matrix", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yc != 1 {
		return nil, nil, errors.NewDimensionError(op, 1, yc, 1)
	}
	if yr != r {
		return nil, nil, errors.NewDimensionError(op, r, yr, 0)
	}

	targets := make([]float64, yr)
	for i := range targets {
		targets[i] = y.At(i, 0)
	}
	return table.FromMatrix(X), targets, nil
}

// predictInput validates the feature matrix of a prediction call against the
// trained dimensionality.
func predictInput(op string, X mat.Matrix, nFeatures int) (table.Table, error) {
	if X == nil {
		return nil, errors.NewValueError(op, "X must be non-nil")
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.NewModelError(op, "empty feature matrix", errors.ErrEmptyData)
	}
	if c != nFeatures {
		return nil, errors.NewDimensionError(op, nFeatures, c, 1)
	}
	return table.FromMatrix(X), nil
}

// checkTableTargets validates the Table-surface Fit arguments.
func checkTableTargets(op string, x table.Table, y []float64) error {
	if x == nil {
		return errors.NewValueError(op, "x must be non-nil")
	}
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError(op, "empty feature table", errors.ErrEmptyData)
	}
	if len(y) != r {
		return errors.NewDimensionError(op, r, len(y), 0)
	}
	return nil
}

func checkTableDims(op string, x table.Table, nFeatures int) error {
	if x == nil {
		return errors.NewValueError(op, "x must be non-nil")
	}
	r, c := x.Dims()
	if r == 0 {
		return errors.NewModelError(op, "empty feature table", errors.ErrEmptyData)
	}
	if c != nFeatures {
		return errors.NewDimensionError(op, nFeatures, c, 1)
	}
	return nil
}

func columnMatrix(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}
