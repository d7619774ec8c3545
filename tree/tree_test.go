package tree_test

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/o-laurent/bayesian-tree/core/table"
	"github.com/o-laurent/bayesian-tree/likelihood"
	"github.com/o-laurent/bayesian-tree/metrics"
	"github.com/o-laurent/bayesian-tree/optimize"
	"github.com/o-laurent/bayesian-tree/pkg/errors"
	"github.com/o-laurent/bayesian-tree/tree"
)

const epsilon = 1e-10

func column(v ...float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

// With all feature values identical no dimension offers a legal split, so the
// tree must stay a single leaf predicting the posterior mean, which for the
// data-derived prior is exactly the target mean.
func TestRegressor_NoSplitPossible(t *testing.T) {
	X := column(4, 4, 4, 4)
	y := column(1, 2, 3, 6)

	reg := tree.NewRegressor()
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	depth, _ := reg.Depth()
	leaves, _ := reg.NLeaves()
	if depth != 0 || leaves != 1 {
		t.Fatalf("expected a single leaf, got depth=%d leaves=%d", depth, leaves)
	}

	pred, err := reg.Predict(column(4, 0))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if math.Abs(pred.At(i, 0)-3) > epsilon {
			t.Errorf("prediction %d: expected the target mean 3, got %f", i, pred.At(i, 0))
		}
	}
}

// Even when legal split positions exist, a weak prior and noisy targets must
// make keeping the data together win the likelihood comparison. The single
// leaf then predicts the exact posterior mean (kappa*mu + n*mean)/(kappa+n).
func TestRegressor_WeakPriorDeclinesSplit(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		0, 0,
		0.1, 0.1,
		0.9, 0.9,
		1, 1,
		1, 1,
	})
	y := column(0, 1.3, 0, 1.2, 0)

	// prior strength 0.01 around mean 0 with unit prior sd
	prior := likelihood.NormalGammaState{Mu: 0, Kappa: 0.01, Alpha: 0.005, Beta: 0.005}

	reg := tree.NewRegressor(
		tree.WithPartitionPrior(0.5),
		tree.WithNormalGammaPrior(prior),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	depth, _ := reg.Depth()
	leaves, _ := reg.NLeaves()
	if depth != 0 || leaves != 1 {
		t.Fatalf("expected a single leaf, got depth=%d leaves=%d", depth, leaves)
	}
	root, _ := reg.Root()
	if root.SplitInfo() != nil {
		t.Fatal("expected no split descriptor at the root")
	}
	if root.NSamples() != 5 {
		t.Errorf("expected 5 samples at the root, got %d", root.NSamples())
	}

	// mean(y) = 0.5, so mu_post = (0.01*0 + 5*0.5)/(0.01+5)
	want := 2.5 / 5.01
	pred, err := reg.Predict(mat.NewDense(1, 2, []float64{0, 0.5}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(pred.At(0, 0)-want) > 1e-12 {
		t.Errorf("prediction: expected the posterior mean %.15f, got %.15f", want, pred.At(0, 0))
	}
}

func TestRegressor_StepFunction(t *testing.T) {
	X := column(0, 1, 2, 3, 4, 5)
	y := column(0, 0, 0, 1, 1, 1)

	reg := tree.NewRegressor()
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	root, err := reg.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	split := root.SplitInfo()
	if split == nil {
		t.Fatal("expected the root to split")
	}
	if split.Kind != tree.AxisSplit || split.Feature != 0 {
		t.Fatalf("expected an axis split on feature 0, got %+v", split)
	}
	if math.Abs(split.Threshold-2.5) > epsilon {
		t.Errorf("threshold: expected the midpoint 2.5, got %f", split.Threshold)
	}

	pred, err := reg.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if pred.At(i, 0) > 0.3 {
			t.Errorf("low-side prediction %d too high: %f", i, pred.At(i, 0))
		}
		if pred.At(i+3, 0) < 0.7 {
			t.Errorf("high-side prediction %d too low: %f", i+3, pred.At(i+3, 0))
		}
	}
}

// A larger partition prior lets the tree grow deeper and fit the training
// data at least as well.
func TestRegressor_PartitionPriorControlsFit(t *testing.T) {
	var rows []float64
	var targets []float64
	for i := 0; i < 5; i++ {
		for j := 0; j < 4; j++ {
			rows = append(rows, float64(i), float64(j))
			targets = append(targets, math.Sin(float64(i))+3*math.Cos(float64(j)))
		}
	}
	X := mat.NewDense(20, 2, rows)
	y := column(targets...)

	fitOne := func(pp float64) (float64, int) {
		reg := tree.NewRegressor(tree.WithPartitionPrior(pp))
		if err := reg.Fit(X, y); err != nil {
			t.Fatalf("Fit with partition prior %f failed: %v", pp, err)
		}
		pred, err := reg.Predict(X)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		mse, err := metrics.MSE(y, pred)
		if err != nil {
			t.Fatalf("MSE failed: %v", err)
		}
		leaves, _ := reg.NLeaves()
		return mse, leaves
	}

	priors := []float64{0.1, 0.5, 0.9, 0.99}
	mses := make([]float64, len(priors))
	leaves := make([]int, len(priors))
	for i, pp := range priors {
		mses[i], leaves[i] = fitOne(pp)
	}

	for i := 1; i < len(priors); i++ {
		if leaves[i] < leaves[i-1] {
			t.Errorf("leaves must not shrink from prior %.2f to %.2f: %d vs %d",
				priors[i-1], priors[i], leaves[i-1], leaves[i])
		}
		if mses[i] > mses[i-1]+epsilon {
			t.Errorf("training MSE must not worsen from prior %.2f to %.2f: %f vs %f",
				priors[i-1], priors[i], mses[i-1], mses[i])
		}
	}
}

func TestClassifier_AxisSeparable(t *testing.T) {
	X := column(-3, -2, -1, 1, 2, 3)
	y := column(0, 0, 0, 1, 1, 1)

	clf := tree.NewClassifier(tree.WithPrune(true))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	root, _ := clf.Root()
	split := root.SplitInfo()
	if split == nil || split.Feature != 0 {
		t.Fatalf("expected a root split on feature 0, got %+v", split)
	}
	if math.Abs(split.Threshold) > epsilon {
		t.Errorf("threshold: expected 0, got %f", split.Threshold)
	}

	depth, _ := clf.Depth()
	if depth != 1 {
		t.Errorf("expected the pruned tree to have depth 1, got %d", depth)
	}

	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc != 1 {
		t.Errorf("expected perfect training accuracy, got %f", acc)
	}

	probs, err := clf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	r, c := probs.Dims()
	if c != 2 {
		t.Fatalf("expected 2 class columns, got %d", c)
	}
	for i := 0; i < r; i++ {
		if math.Abs(probs.At(i, 0)+probs.At(i, 1)-1) > epsilon {
			t.Errorf("row %d probabilities do not sum to one", i)
		}
	}
	// the low side is confidently class 0
	if probs.At(0, 0) <= probs.At(0, 1) {
		t.Errorf("expected class 0 to dominate on the low side, got %v vs %v", probs.At(0, 0), probs.At(0, 1))
	}
}

// With a single label every leaf predicts the same class, so pruning must
// collapse the whole tree back to its root.
func TestClassifier_ConstantLabelsPruneCollapse(t *testing.T) {
	X := column(0, 1, 2, 3, 4, 5)
	y := column(0, 0, 0, 0, 0, 0)

	clf := tree.NewClassifier(tree.WithPrune(true))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	depth, _ := clf.Depth()
	leaves, _ := clf.NLeaves()
	if depth != 0 || leaves != 1 {
		t.Errorf("expected a single leaf after pruning, got depth=%d leaves=%d", depth, leaves)
	}

	pred, err := clf.Predict(column(2.5))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.At(0, 0) != 0 {
		t.Errorf("expected class 0, got %f", pred.At(0, 0))
	}
}

func diagonalData() (*mat.Dense, *mat.Dense) {
	var rows, labels []float64
	for i := -5; i <= 5; i++ {
		if i == 0 {
			continue
		}
		rows = append(rows, float64(i), float64(i))
		if i > 0 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}
	return mat.NewDense(10, 2, rows), column(labels...)
}

func TestClassifier_HyperplaneSeparable(t *testing.T) {
	X, y := diagonalData()

	clf := tree.NewClassifier(tree.WithOptimizer(optimize.NewRandomOptimizer(200, 1)))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	root, _ := clf.Root()
	split := root.SplitInfo()
	if split == nil || split.Kind != tree.HyperplaneSplit {
		t.Fatalf("expected a hyperplane split at the root, got %+v", split)
	}
	if len(split.Normal) != 2 || len(split.Origin) != 2 {
		t.Fatalf("expected 2-d normal and origin, got %+v", split)
	}

	depth, _ := clf.Depth()
	if depth != 1 {
		t.Errorf("expected depth 1, got %d", depth)
	}

	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc != 1 {
		t.Errorf("expected perfect training accuracy, got %f", acc)
	}
}

func TestClassifier_TwoPointOptimizer(t *testing.T) {
	X, y := diagonalData()

	clf := tree.NewClassifier(tree.WithOptimizer(optimize.NewTwoPointOptimizer(20, 3)))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc != 1 {
		t.Errorf("expected perfect training accuracy, got %f", acc)
	}
}

// The two-point strategy needs class labels; regression targets must be
// rejected as a usage error.
func TestRegressor_TwoPointOptimizerRejected(t *testing.T) {
	X := column(0, 1, 2, 3)
	y := column(0.5, 1.25, 2.5, 3.75)

	reg := tree.NewRegressor(tree.WithOptimizer(optimize.NewTwoPointOptimizer(10, 1)))
	err := reg.Fit(X, y)
	if err == nil {
		t.Fatal("expected an error for two-point search on regression targets")
	}
	var ve *errors.ValueError
	if !errors.As(err, &ve) {
		t.Errorf("expected a ValueError, got %v", err)
	}
}

func TestEstimators_UsageErrors(t *testing.T) {
	X := column(0, 1, 2, 3)
	y := column(0, 0, 1, 1)

	t.Run("predict before fit", func(t *testing.T) {
		clf := tree.NewClassifier()
		if _, err := clf.Predict(X); !errors.Is(err, errors.ErrNotFitted) {
			t.Errorf("expected ErrNotFitted, got %v", err)
		}
		if _, err := clf.Depth(); !errors.Is(err, errors.ErrNotFitted) {
			t.Errorf("Depth: expected ErrNotFitted, got %v", err)
		}
		if _, err := clf.FeatureImportance(); !errors.Is(err, errors.ErrNotFitted) {
			t.Errorf("FeatureImportance: expected ErrNotFitted, got %v", err)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		clf := tree.NewClassifier()
		if err := clf.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		wide := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
		if _, err := clf.Predict(wide); !errors.Is(err, errors.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("mismatched target length", func(t *testing.T) {
		clf := tree.NewClassifier()
		if err := clf.Fit(X, column(0, 1)); !errors.Is(err, errors.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("invalid class labels", func(t *testing.T) {
		clf := tree.NewClassifier()
		if err := clf.Fit(X, column(0, 1, 1.5, 1)); !errors.Is(err, errors.ErrInvalidTarget) {
			t.Errorf("expected ErrInvalidTarget, got %v", err)
		}
	})

	t.Run("invalid hyperparameters", func(t *testing.T) {
		var ve *errors.ValueError
		if err := tree.NewRegressor(tree.WithPartitionPrior(1.5)).Fit(X, y); !errors.As(err, &ve) {
			t.Errorf("partition prior: expected a ValueError, got %v", err)
		}
		if err := tree.NewRegressor(tree.WithDelta(-0.1)).Fit(X, y); !errors.As(err, &ve) {
			t.Errorf("delta: expected a ValueError, got %v", err)
		}
	})

	t.Run("label exceeds explicit prior", func(t *testing.T) {
		clf := tree.NewClassifier(tree.WithDirichletPrior(1, 1))
		var ve *errors.ValueError
		if err := clf.Fit(X, column(0, 1, 2, 1)); !errors.As(err, &ve) {
			t.Errorf("expected a ValueError, got %v", err)
		}
	})
}

func TestTrees_SparseDenseAgreement(t *testing.T) {
	dense := mat.NewDense(8, 3, []float64{
		0, 0, 1,
		1, 0, 0,
		2, 0, 0,
		3, 0, 2,
		4, 1, 0,
		5, 0, 0,
		6, 2, 0,
		7, 0, 3,
	})
	y := []float64{0, 0, 0, 0, 1, 1, 1, 1}

	fitPredict := func(tbl table.Table) []float64 {
		clf := tree.NewClassifier()
		if err := clf.FitTable(tbl, y); err != nil {
			t.Fatalf("FitTable failed: %v", err)
		}
		pred, err := clf.PredictTable(tbl)
		if err != nil {
			t.Fatalf("PredictTable failed: %v", err)
		}
		return pred
	}

	fromDense := fitPredict(table.FromDense(dense))
	fromCSR := fitPredict(table.CSRFromDense(table.FromDense(dense)))

	for i := range fromDense {
		if fromDense[i] != fromCSR[i] {
			t.Errorf("row %d: dense predicted %f, CSR predicted %f", i, fromDense[i], fromCSR[i])
		}
	}
}

func TestRegressor_FeatureImportance(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 3.3,
		1, 3.3,
		2, 3.3,
		3, 3.3,
		4, 3.3,
		5, 3.3,
	})
	y := column(0, 0, 0, 1, 1, 1)

	reg := tree.NewRegressor()
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	imp, err := reg.FeatureImportance()
	if err != nil {
		t.Fatalf("FeatureImportance failed: %v", err)
	}
	if len(imp) != 2 {
		t.Fatalf("expected 2 importances, got %d", len(imp))
	}
	if math.Abs(imp[0]-1) > epsilon || math.Abs(imp[1]) > epsilon {
		t.Errorf("expected importance [1 0], got %v", imp)
	}
}

func TestClassifier_FitDeterministic(t *testing.T) {
	X, y := diagonalData()

	fit := func() string {
		clf := tree.NewClassifier(tree.WithOptimizer(optimize.NewRandomOptimizer(100, 7)))
		if err := clf.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		return clf.String()
	}

	if first, second := fit(), fit(); first != second {
		t.Errorf("identical fits rendered different trees:\n%s\nvs\n%s", first, second)
	}
}

// Structural invariants: leaf exactly when childless, levels increment by
// one, and internal nodes record a strict likelihood improvement.
func TestTree_StructureInvariants(t *testing.T) {
	var rows, targets []float64
	for i := 0; i < 5; i++ {
		for j := 0; j < 4; j++ {
			rows = append(rows, float64(i), float64(j))
			targets = append(targets, math.Sin(float64(i))+3*math.Cos(float64(j)))
		}
	}
	reg := tree.NewRegressor(tree.WithPartitionPrior(0.95))
	if err := reg.Fit(mat.NewDense(20, 2, rows), column(targets...)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	root, _ := reg.Root()
	var check func(n *tree.Node)
	check = func(n *tree.Node) {
		leaf := n.SplitInfo() == nil
		if leaf != (n.Left() == nil && n.Right() == nil) {
			t.Fatalf("node at level %d: leaf/children mismatch", n.Level())
		}
		if (n.Left() == nil) != (n.Right() == nil) {
			t.Fatalf("node at level %d has exactly one child", n.Level())
		}
		if leaf {
			return
		}
		noSplit, bestSplit := n.LogMarginals()
		if bestSplit <= noSplit {
			t.Errorf("internal node at level %d: split is not a strict improvement (%f vs %f)",
				n.Level(), bestSplit, noSplit)
		}
		if n.Left().Level() != n.Level()+1 || n.Right().Level() != n.Level()+1 {
			t.Errorf("node at level %d: child levels do not increment", n.Level())
		}
		if n.Left().NSamples() == 0 || n.Right().NSamples() == 0 {
			t.Errorf("node at level %d has an empty child", n.Level())
		}
		if n.Left().NSamples()+n.Right().NSamples() != n.NSamples() {
			t.Errorf("node at level %d: children do not partition the samples", n.Level())
		}
		check(n.Left())
		check(n.Right())
	}
	check(root)
}

// After pruning, no internal node may have two leaf children with identical
// point predictions, and repeating the prune must change nothing.
func TestClassifier_PruneFixedPoint(t *testing.T) {
	var rows, labels []float64
	for i := 0; i < 12; i++ {
		rows = append(rows, float64(i), float64(i%3))
		if i < 6 {
			labels = append(labels, 0)
		} else {
			labels = append(labels, 1)
		}
	}
	X := mat.NewDense(12, 2, rows)
	y := column(labels...)

	clf := tree.NewClassifier(tree.WithPartitionPrior(0.99), tree.WithPrune(true))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	m := likelihood.Dirichlet{}
	root, _ := clf.Root()
	var check func(n *tree.Node)
	check = func(n *tree.Node) {
		if n.SplitInfo() == nil {
			return
		}
		l, r := n.Left(), n.Right()
		if l.SplitInfo() == nil && r.SplitInfo() == nil {
			if m.PointPrediction(l.Posterior()) == m.PointPrediction(r.Posterior()) {
				t.Errorf("unpruned redundant split at level %d", n.Level())
			}
		}
		check(l)
		check(r)
	}
	check(root)

	depth, _ := clf.Depth()
	leaves, _ := clf.NLeaves()
	if err := clf.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	depth2, _ := clf.Depth()
	leaves2, _ := clf.NLeaves()
	if depth != depth2 || leaves != leaves2 {
		t.Errorf("pruning again changed the tree: depth %d->%d leaves %d->%d",
			depth, depth2, leaves, leaves2)
	}
}

// PredictNodes must route every row to the leaf whose posterior produces the
// point prediction.
func TestRegressor_PredictNodes(t *testing.T) {
	X := column(0, 1, 2, 3, 4, 5)
	y := column(0, 0, 0, 1, 1, 1)

	reg := tree.NewRegressor()
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	nodes, err := reg.PredictNodes(X)
	if err != nil {
		t.Fatalf("PredictNodes failed: %v", err)
	}
	pred, err := reg.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	m := likelihood.NormalGamma{}
	for i, n := range nodes {
		if n == nil || n.SplitInfo() != nil {
			t.Fatalf("row %d did not land in a leaf", i)
		}
		if got := m.PointPrediction(n.Posterior()); math.Abs(got-pred.At(i, 0)) > epsilon {
			t.Errorf("row %d: leaf posterior predicts %f, Predict returned %f", i, got, pred.At(i, 0))
		}
	}
}

func TestRegressor_ScoreAndString(t *testing.T) {
	X := column(0, 1, 2, 3, 4, 5)
	y := column(0, 0, 0, 1, 1, 1)

	reg := tree.NewRegressor(tree.WithFeatureNames("age"))
	if reg.String() != "Regressor(unfitted)" {
		t.Errorf("unexpected unfitted rendering: %q", reg.String())
	}
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	r2, err := reg.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if r2 < 0.5 {
		t.Errorf("expected a decent training fit, got R²=%f", r2)
	}

	rendered := reg.String()
	if rendered == "" {
		t.Fatal("expected a non-empty rendering")
	}
	if !strings.Contains(rendered, "age") {
		t.Errorf("expected the feature name in the rendering:\n%s", rendered)
	}
}
