package tree

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/o-laurent/bayesian-tree/core/model"
	"github.com/o-laurent/bayesian-tree/core/table"
	"github.com/o-laurent/bayesian-tree/likelihood"
	"github.com/o-laurent/bayesian-tree/metrics"
	"github.com/o-laurent/bayesian-tree/pkg/errors"
	"github.com/o-laurent/bayesian-tree/pkg/log"
)

// Classifier is a Bayesian decision-tree classifier under a
// Dirichlet-multinomial likelihood. Class labels are non-negative integers
// 0..K-1 encoded as float64.
type Classifier struct {
	state  *model.StateManager
	logger log.Logger
	cfg    config

	likelihood likelihood.Dirichlet
	eng        *engine
	nClasses   int
}

// NewClassifier creates a classifier with axis-aligned splits, partition
// prior 0.9 and a uniform Dirichlet class prior; see the Option functions for
// the tunable behavior.
func NewClassifier(opts ...Option) *Classifier {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Classifier{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("bayesian-tree-classifier"),
		cfg:    cfg,
	}
}

// Fit trains the tree on X (n x d) and integer class labels y (n x 1).
func (c *Classifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Classifier.Fit")

	x, targets, err := fitInputs("Classifier.Fit", X, y)
	if err != nil {
		return err
	}
	return c.FitTable(x, targets)
}

// FitTable trains the tree on any Table implementation, dense or sparse.
func (c *Classifier) FitTable(x table.Table, y []float64) (err error) {
	defer errors.Recover(&err, "Classifier.FitTable")

	if err := c.cfg.validate("Classifier.FitTable"); err != nil {
		return err
	}
	if err := checkTableTargets("Classifier.FitTable", x, y); err != nil {
		return err
	}
	if err := c.likelihood.CheckTarget(y); err != nil {
		return err
	}

	prior, err := c.classPrior(y)
	if err != nil {
		return err
	}
	c.nClasses = len(prior.Alphas)

	n, d := x.Dims()
	start := time.Now()
	c.logger.Info("fit started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
		"classes", c.nClasses,
	)

	c.eng = &engine{
		model:          c.likelihood,
		partitionPrior: c.cfg.partitionPrior,
		delta:          c.cfg.delta,
		precision:      c.cfg.precision,
		optimizer:      c.cfg.optimizer,
		logger:         c.logger,
	}
	if err := c.eng.fit(table.EnsureColumnAccess(x), y, prior); err != nil {
		c.eng = nil
		return err
	}
	if c.cfg.prune {
		c.eng.prune()
	}

	c.state.SetDimensions(d, n)
	c.state.SetFitted()
	c.logger.Info("fit finished",
		log.OperationKey, log.OperationFit,
		log.DepthKey, c.eng.root.Depth(),
		log.LeavesKey, c.eng.root.Leaves(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// classPrior resolves the Dirichlet prior: an explicit one fixes the class
// count, otherwise the labels do, with at least two classes.
func (c *Classifier) classPrior(y []float64) (likelihood.DirichletState, error) {
	maxLabel := 0
	for _, v := range y {
		if int(v) > maxLabel {
			maxLabel = int(v)
		}
	}
	if c.cfg.dirichletPrior != nil {
		if maxLabel >= len(c.cfg.dirichletPrior) {
			return likelihood.DirichletState{}, errors.NewValueError("Classifier.FitTable",
				"class label exceeds the number of classes of the Dirichlet prior")
		}
		alphas := append([]float64(nil), c.cfg.dirichletPrior...)
		return likelihood.DirichletState{Alphas: alphas}, nil
	}
	k := maxLabel + 1
	if k < 2 {
		k = 2
	}
	return likelihood.UniformDirichletPrior(k), nil
}

// Predict returns the modal class per row of X as an n x 1 matrix.
func (c *Classifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Classifier.Predict")

	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "Predict")
	}
	x, err := predictInput("Classifier.Predict", X, c.state.NFeatures())
	if err != nil {
		return nil, err
	}
	return columnMatrix(c.eng.predict(x)), nil
}

// PredictTable returns the modal class per row of x.
func (c *Classifier) PredictTable(x table.Table) (_ []float64, err error) {
	defer errors.Recover(&err, "Classifier.PredictTable")

	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "PredictTable")
	}
	if err := checkTableDims("Classifier.PredictTable", x, c.state.NFeatures()); err != nil {
		return nil, err
	}
	return c.eng.predict(x), nil
}

// PredictProba returns the posterior class distribution per row of X as an
// n x K matrix whose rows sum to one.
func (c *Classifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Classifier.PredictProba")

	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "PredictProba")
	}
	x, err := predictInput("Classifier.PredictProba", X, c.state.NFeatures())
	if err != nil {
		return nil, err
	}

	n, _ := x.Dims()
	out := mat.NewDense(n, c.nClasses, nil)
	c.eng.walk(c.eng.root, x, rowRange(n), func(leaf *Node, rows []int) {
		probs := c.likelihood.ClassProbabilities(leaf.Posterior())
		for _, i := range rows {
			out.SetRow(i, probs)
		}
	})
	return out, nil
}

// PredictNodes returns, per row of X, the leaf node the row lands in, giving
// access to the raw prior and posterior states behind the prediction.
func (c *Classifier) PredictNodes(X mat.Matrix) (_ []*Node, err error) {
	defer errors.Recover(&err, "Classifier.PredictNodes")

	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "PredictNodes")
	}
	x, err := predictInput("Classifier.PredictNodes", X, c.state.NFeatures())
	if err != nil {
		return nil, err
	}
	return c.eng.routeLeaves(x), nil
}

// Score returns the accuracy on X against labels y.
func (c *Classifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(y, pred)
}

// NClasses returns the number of classes seen during Fit.
func (c *Classifier) NClasses() int { return c.nClasses }

// Depth returns the maximum leaf level of the trained tree.
func (c *Classifier) Depth() (int, error) {
	if !c.state.IsFitted() {
		return 0, errors.NewNotFittedError("Classifier", "Depth")
	}
	return c.eng.root.Depth(), nil
}

// NLeaves returns the number of leaves of the trained tree.
func (c *Classifier) NLeaves() (int, error) {
	if !c.state.IsFitted() {
		return 0, errors.NewNotFittedError("Classifier", "NLeaves")
	}
	return c.eng.root.Leaves(), nil
}

// FeatureImportance returns the normalized per-dimension likelihood gains.
func (c *Classifier) FeatureImportance() ([]float64, error) {
	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "FeatureImportance")
	}
	return c.eng.featureImportance(c.cfg.importance), nil
}

// Prune collapses splits whose children predict the same class.
func (c *Classifier) Prune() error {
	if !c.state.IsFitted() {
		return errors.NewNotFittedError("Classifier", "Prune")
	}
	c.eng.prune()
	return nil
}

// Root exposes the trained tree for inspection.
func (c *Classifier) Root() (*Node, error) {
	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "Root")
	}
	return c.eng.root, nil
}

// String renders the trained tree, or a placeholder before Fit.
func (c *Classifier) String() string {
	if !c.state.IsFitted() {
		return "Classifier(unfitted)"
	}
	var sb strings.Builder
	c.eng.root.render(&sb, c.likelihood, c.cfg.featureNames)
	return sb.String()
}
