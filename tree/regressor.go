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

// Regressor is a Bayesian decision-tree regressor under a Normal-Gamma
// likelihood. Unless an explicit prior is supplied, a weakly informative one
// is derived from the training targets.
type Regressor struct {
	state  *model.StateManager
	logger log.Logger
	cfg    config

	likelihood likelihood.NormalGamma
	eng        *engine
}

// NewRegressor creates a regressor with axis-aligned splits and partition
// prior 0.9; see the Option functions for the tunable behavior.
func NewRegressor(opts ...Option) *Regressor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Regressor{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("bayesian-tree-regressor"),
		cfg:    cfg,
	}
}

// Fit trains the tree on X (n x d) and real-valued targets y (n x 1).
func (r *Regressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Regressor.Fit")

	x, targets, err := fitInputs("Regressor.Fit", X, y)
	if err != nil {
		return err
	}
	return r.FitTable(x, targets)
}

// FitTable trains the tree on any Table implementation, dense or sparse.
func (r *Regressor) FitTable(x table.Table, y []float64) (err error) {
	defer errors.Recover(&err, "Regressor.FitTable")

	if err := r.cfg.validate("Regressor.FitTable"); err != nil {
		return err
	}
	if err := checkTableTargets("Regressor.FitTable", x, y); err != nil {
		return err
	}
	if err := r.likelihood.CheckTarget(y); err != nil {
		return err
	}

	prior := likelihood.DefaultNormalGammaPrior(y)
	if r.cfg.normalGammaPrior != nil {
		prior = *r.cfg.normalGammaPrior
	}

	n, d := x.Dims()
	start := time.Now()
	r.logger.Info("fit started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	r.eng = &engine{
		model:          r.likelihood,
		partitionPrior: r.cfg.partitionPrior,
		delta:          r.cfg.delta,
		precision:      r.cfg.precision,
		optimizer:      r.cfg.optimizer,
		logger:         r.logger,
	}
	if err := r.eng.fit(table.EnsureColumnAccess(x), y, prior); err != nil {
		r.eng = nil
		return err
	}
	if r.cfg.prune {
		r.eng.prune()
	}

	r.state.SetDimensions(d, n)
	r.state.SetFitted()
	r.logger.Info("fit finished",
		log.OperationKey, log.OperationFit,
		log.DepthKey, r.eng.root.Depth(),
		log.LeavesKey, r.eng.root.Leaves(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns the leaf posterior predictive mean per row of X as an
// n x 1 matrix.
func (r *Regressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Regressor.Predict")

	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "Predict")
	}
	x, err := predictInput("Regressor.Predict", X, r.state.NFeatures())
	if err != nil {
		return nil, err
	}
	return columnMatrix(r.eng.predict(x)), nil
}

// PredictTable returns the posterior predictive mean per row of x.
func (r *Regressor) PredictTable(x table.Table) (_ []float64, err error) {
	defer errors.Recover(&err, "Regressor.PredictTable")

	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "PredictTable")
	}
	if err := checkTableDims("Regressor.PredictTable", x, r.state.NFeatures()); err != nil {
		return nil, err
	}
	return r.eng.predict(x), nil
}

// PredictNodes returns, per row of X, the leaf node the row lands in, giving
// access to the raw prior and posterior states behind the prediction.
func (r *Regressor) PredictNodes(X mat.Matrix) (_ []*Node, err error) {
	defer errors.Recover(&err, "Regressor.PredictNodes")

	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "PredictNodes")
	}
	x, err := predictInput("Regressor.PredictNodes", X, r.state.NFeatures())
	if err != nil {
		return nil, err
	}
	return r.eng.routeLeaves(x), nil
}

// Score returns the coefficient of determination on X against targets y.
func (r *Regressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// Depth returns the maximum leaf level of the trained tree.
func (r *Regressor) Depth() (int, error) {
	if !r.state.IsFitted() {
		return 0, errors.NewNotFittedError("Regressor", "Depth")
	}
	return r.eng.root.Depth(), nil
}

// NLeaves returns the number of leaves of the trained tree.
func (r *Regressor) NLeaves() (int, error) {
	if !r.state.IsFitted() {
		return 0, errors.NewNotFittedError("Regressor", "NLeaves")
	}
	return r.eng.root.Leaves(), nil
}

// FeatureImportance returns the normalized per-dimension likelihood gains.
func (r *Regressor) FeatureImportance() ([]float64, error) {
	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "FeatureImportance")
	}
	return r.eng.featureImportance(r.cfg.importance), nil
}

// Prune collapses splits whose children predict the same value.
func (r *Regressor) Prune() error {
	if !r.state.IsFitted() {
		return errors.NewNotFittedError("Regressor", "Prune")
	}
	r.eng.prune()
	return nil
}

// Root exposes the trained tree for inspection.
func (r *Regressor) Root() (*Node, error) {
	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "Root")
	}
	return r.eng.root, nil
}

// String renders the trained tree, or a placeholder before Fit.
func (r *Regressor) String() string {
	if !r.state.IsFitted() {
		return "Regressor(unfitted)"
	}
	var sb strings.Builder
	r.eng.root.render(&sb, r.likelihood, r.cfg.featureNames)
	return sb.String()
}
